package ids

import (
	"testing"

	"github.com/devpilot/devpilot/internal/dom"
)

func parse(t *testing.T, markup string) *dom.Document {
	t.Helper()
	doc, err := dom.Parse(markup, nil, "", "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestEnsureIDIsIdempotent(t *testing.T) {
	doc := parse(t, `<body><button data-devpilot-seq="1">a</button></body>`)
	reg := New()

	btns, err := dom.QueryAll(doc.Root(), "button")
	if err != nil || len(btns) != 1 {
		t.Fatalf("fixture query: %v", err)
	}

	first := reg.EnsureID(btns[0])
	second := reg.EnsureID(btns[0])
	if first != second {
		t.Fatalf("id changed between calls: %q then %q", first, second)
	}
	if first != "e1" {
		t.Fatalf("first allocation = %q, want e1", first)
	}

	el, ok := reg.Lookup(first)
	if !ok || el.Tag() != "button" {
		t.Fatal("Lookup did not return the button")
	}
}

func TestEnsureIDHonorsExistingAttribute(t *testing.T) {
	doc := parse(t, `<body><div data-devpilot-id="e7">x</div></body>`)
	reg := New()
	reg.Rebind(doc)

	divs, _ := dom.QueryAll(doc.Root(), "div")
	if got := reg.EnsureID(divs[0]); got != "e7" {
		t.Fatalf("EnsureID = %q, want existing e7", got)
	}
}

func TestRebindSeedsCounterPastExistingIDs(t *testing.T) {
	doc := parse(t, `<body><div data-devpilot-id="e7">x</div><span>y</span></body>`)
	reg := New()
	reg.Rebind(doc)

	spans, _ := dom.QueryAll(doc.Root(), "span")
	if got := reg.EnsureID(spans[0]); got != "e8" {
		t.Fatalf("allocation after rebind = %q, want e8", got)
	}
}

func TestPendingWriteBackTracksSerials(t *testing.T) {
	doc := parse(t, `<body><button data-devpilot-seq="4">a</button><i>b</i></body>`)
	reg := New()

	btns, _ := dom.QueryAll(doc.Root(), "button")
	italics, _ := dom.QueryAll(doc.Root(), "i")
	reg.EnsureID(btns[0])
	reg.EnsureID(italics[0]) // no serial, nothing to write back

	pending := reg.TakePending()
	if len(pending) != 1 || pending[4] != "e1" {
		t.Fatalf("pending = %v, want map[4:e1]", pending)
	}
	if reg.TakePending() != nil {
		t.Fatal("second TakePending should be empty")
	}
}

func TestRebindDoesNotReissueAcrossDocuments(t *testing.T) {
	reg := New()

	doc1 := parse(t, `<body><button data-devpilot-seq="1">a</button></body>`)
	reg.Rebind(doc1)
	btns, _ := dom.QueryAll(doc1.Root(), "button")
	id1 := reg.EnsureID(btns[0])

	// The second sync carries the attribute back, as the live page would.
	doc2 := parse(t, `<body><button data-devpilot-seq="1" data-devpilot-id="`+id1+`">a</button><input data-devpilot-seq="2"></body>`)
	reg.Rebind(doc2)

	btns2, _ := dom.QueryAll(doc2.Root(), "button")
	if got := reg.EnsureID(btns2[0]); got != id1 {
		t.Fatalf("id not stable across syncs: %q vs %q", got, id1)
	}
	inputs, _ := dom.QueryAll(doc2.Root(), "input")
	if got := reg.EnsureID(inputs[0]); got != "e2" {
		t.Fatalf("new element got %q, want e2", got)
	}
}
