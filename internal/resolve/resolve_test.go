package resolve

import (
	"errors"
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

func TestIdentifierBeatsCSSIDCollision(t *testing.T) {
	// The span's HTML id collides with the div's devpilot id. Resolving
	// "e5" must return the div: the identifier tier runs first.
	doc := parse(t, `<body><div data-devpilot-id="e5"><span id="e5"></span></div></body>`)

	el, err := One(doc, "e5", nil)
	if err != nil {
		t.Fatalf("One: %v", err)
	}
	if el.Tag() != "div" {
		t.Fatalf("resolved %q, want div", el.Tag())
	}
}

func TestSelectorLookingInputTriesIdentifierFirst(t *testing.T) {
	// "#submitBtn" is a valid selector but also a legal identifier value.
	// With an element literally carrying it as devpilot id, that wins.
	doc := parse(t, `<body><i data-devpilot-id="#submitBtn"></i><button id="submitBtn"></button></body>`)

	el, err := One(doc, "#submitBtn", nil)
	if err != nil {
		t.Fatalf("One: %v", err)
	}
	if el.Tag() != "i" {
		t.Fatalf("resolved %q, want i (identifier tier)", el.Tag())
	}
}

func TestCSSFallback(t *testing.T) {
	doc := parse(t, `<body><button id="submitBtn">Go</button></body>`)

	els := All(doc, "#submitBtn", nil)
	if len(els) != 1 || els[0].Tag() != "button" {
		t.Fatalf("CSS fallback failed: %v", els)
	}
}

func TestNoMatchIsEmpty(t *testing.T) {
	doc := parse(t, `<body><p>x</p></body>`)

	if els := All(doc, "#missing", nil); len(els) != 0 {
		t.Fatalf("expected no matches, got %d", len(els))
	}
	_, err := One(doc, "#missing", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAmbiguousMatch(t *testing.T) {
	doc := parse(t, `<body><p class="x">a</p><p class="x">b</p></body>`)

	_, err := One(doc, "p.x", nil)
	if !errors.Is(err, ErrAmbiguous) {
		t.Fatalf("err = %v, want ErrAmbiguous", err)
	}
	if els := All(doc, "p.x", nil); len(els) != 2 {
		t.Fatalf("All should return both matches, got %d", len(els))
	}
}

func TestMalformedSelectorIsEmptyNotError(t *testing.T) {
	doc := parse(t, `<body><p>x</p></body>`)
	if els := All(doc, "p[[", nil); els != nil {
		t.Fatalf("malformed selector should resolve to nothing, got %v", els)
	}
}

func TestScopeLimitsResolution(t *testing.T) {
	doc := parse(t, `<body><div id="a"><span class="t"></span></div><div id="b"><span class="t"></span></div></body>`)

	scope, err := One(doc, "#a", nil)
	if err != nil {
		t.Fatalf("scope lookup: %v", err)
	}
	els := All(doc, "span.t", scope)
	if len(els) != 1 {
		t.Fatalf("scoped resolution returned %d elements, want 1", len(els))
	}
}
