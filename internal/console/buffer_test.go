package console

import (
	"fmt"
	"testing"
	"time"
)

func entry(level, msg string) Entry {
	return Entry{Time: time.Now(), Level: level, Message: msg, ClientID: "c1"}
}

func TestFIFOEviction(t *testing.T) {
	b := NewBuffer(1000)
	for i := 0; i < 1001; i++ {
		b.Append(entry("info", fmt.Sprintf("msg-%d", i)))
	}

	if b.Len() != 1000 {
		t.Fatalf("len = %d, want 1000", b.Len())
	}

	all, err := b.Query("all", 0, "", "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if all[0].Message != "msg-1" {
		t.Fatalf("oldest surviving entry = %q, want msg-1 (msg-0 evicted)", all[0].Message)
	}
	if all[len(all)-1].Message != "msg-1000" {
		t.Fatalf("newest entry = %q, want msg-1000", all[len(all)-1].Message)
	}
}

func TestLevelAndKeywordFilter(t *testing.T) {
	b := NewBuffer(100)
	b.Append(entry("error", "request TIMEOUT after 30s"))
	b.Append(entry("error", "null pointer"))
	b.Append(entry("warn", "timeout approaching"))
	b.Append(entry("info", "ok"))

	got, err := b.Query("error", 100, "timeout", "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || got[0].Message != "request TIMEOUT after 30s" {
		t.Fatalf("got %+v, want only the error containing timeout", got)
	}
}

func TestRegexFilterMatchesStack(t *testing.T) {
	b := NewBuffer(100)
	b.Append(Entry{Level: "error", Message: "boom", Stack: "at handleClick (app.js:42)"})
	b.Append(Entry{Level: "error", Message: "boom", Stack: "at render (view.js:7)"})

	got, err := b.Query("error", 100, "", `app\.js:\d+`)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("regex over stack matched %d entries, want 1", len(got))
	}
}

func TestBadRegexIsError(t *testing.T) {
	b := NewBuffer(10)
	if _, err := b.Query("all", 10, "", "("); err == nil {
		t.Fatal("expected error for malformed pattern")
	}
}

func TestLimitKeepsMostRecent(t *testing.T) {
	b := NewBuffer(100)
	for i := 0; i < 10; i++ {
		b.Append(entry("info", fmt.Sprintf("m%d", i)))
	}

	got, err := b.Query("all", 3, "", "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 3 || got[0].Message != "m7" || got[2].Message != "m9" {
		t.Fatalf("limit slice wrong: %+v", got)
	}
}
