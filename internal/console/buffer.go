// Package console buffers log output captured from connected pages. Pages
// forward their console calls and uncaught errors over the bridge; entries
// land in a bounded ring so a chatty page cannot grow server memory.
package console

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

// DefaultCapacity is the ring size used when none is configured.
const DefaultCapacity = 1000

// Entry is one captured console message or page error.
type Entry struct {
	Time     time.Time `json:"time"`
	Level    string    `json:"level"` // error, warn, info, debug
	Message  string    `json:"message"`
	Stack    string    `json:"stack,omitempty"`
	ClientID string    `json:"clientId"`
}

// Buffer is a fixed-capacity FIFO ring of log entries. Appends come from the
// websocket read loop, queries from tool calls; the mutex keeps the two
// interleavings safe.
type Buffer struct {
	mu      sync.Mutex
	entries []Entry
	head    int // next write position once the ring is full
	full    bool
}

// NewBuffer returns a ring holding at most capacity entries; non-positive
// capacity falls back to DefaultCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{entries: make([]Entry, 0, capacity)}
}

// Append records an entry, evicting the oldest when the ring is full.
func (b *Buffer) Append(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.full {
		b.entries = append(b.entries, e)
		if len(b.entries) == cap(b.entries) {
			b.full = true
		}
		return
	}
	b.entries[b.head] = e
	b.head = (b.head + 1) % len(b.entries)
}

// Len returns the number of buffered entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Query filters the buffer and returns matching entries in chronological
// order (oldest first). Filters apply in sequence: level (or "all"), then a
// case-insensitive keyword substring over the message, then a regular
// expression matched against message and stack. limit keeps the most recent
// N matches; non-positive means no limit. A malformed pattern is an error.
func (b *Buffer) Query(level string, limit int, keyword, pattern string) ([]Entry, error) {
	var re *regexp.Regexp
	if pattern != "" {
		var err error
		re, err = regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
		}
	}

	kw := strings.ToLower(keyword)

	b.mu.Lock()
	snapshot := b.chronological()
	b.mu.Unlock()

	out := make([]Entry, 0, len(snapshot))
	for _, e := range snapshot {
		if level != "" && level != "all" && e.Level != level {
			continue
		}
		if kw != "" && !strings.Contains(strings.ToLower(e.Message), kw) {
			continue
		}
		if re != nil && !re.MatchString(e.Message) && !re.MatchString(e.Stack) {
			continue
		}
		out = append(out, e)
	}

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// chronological copies the ring oldest-first. Caller holds the lock.
func (b *Buffer) chronological() []Entry {
	out := make([]Entry, 0, len(b.entries))
	if !b.full {
		return append(out, b.entries...)
	}
	out = append(out, b.entries[b.head:]...)
	return append(out, b.entries[:b.head]...)
}
