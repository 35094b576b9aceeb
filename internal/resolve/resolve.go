// Package resolve turns caller-supplied identifier strings into live mirror
// elements under a two-tier priority rule: an exact data-devpilot-id match
// always wins; only when no element carries the string as its identifier is
// the input interpreted as a CSS selector.
package resolve

import (
	"errors"
	"fmt"

	"github.com/devpilot/devpilot/internal/dom"
)

var (
	// ErrNotFound means the input matched no element under either tier.
	ErrNotFound = errors.New("element not found")

	// ErrAmbiguous means more than one element matched where the caller
	// required exactly one.
	ErrAmbiguous = errors.New("ambiguous match")
)

// All resolves the input against the document, scoped to scope (the document
// root when nil). Tier 1 matches the input verbatim against data-devpilot-id
// attributes; tier 2 falls back to CSS selector semantics. The ordering is
// deliberate: an input like "#submitBtn" is still checked as a literal id
// value first, so identifier values always win when both readings could
// apply. A selector that fails to compile yields no matches.
func All(doc *dom.Document, input string, scope *dom.Element) []*dom.Element {
	if scope == nil {
		scope = doc.Root()
	}
	if scope == nil || input == "" {
		return nil
	}

	var byID []*dom.Element
	collect(scope, func(el *dom.Element) {
		if el.Attr(dom.IDAttr) == input {
			byID = append(byID, el)
		}
	})
	if len(byID) > 0 {
		return byID
	}

	els, err := dom.QueryAll(scope, input)
	if err != nil {
		return nil
	}
	return els
}

// One resolves the input and requires exactly one match. Zero matches yield
// ErrNotFound, more than one ErrAmbiguous; both carry the input string.
func One(doc *dom.Document, input string, scope *dom.Element) (*dom.Element, error) {
	els := All(doc, input, scope)
	switch len(els) {
	case 0:
		return nil, fmt.Errorf("%w: %q", ErrNotFound, input)
	case 1:
		return els[0], nil
	default:
		return nil, fmt.Errorf("%w: %q matched %d elements", ErrAmbiguous, input, len(els))
	}
}

// collect visits scope and its descendants in document order. Tier 1 includes
// the scope element itself: an identifier names a node, wherever it sits.
func collect(scope *dom.Element, fn func(*dom.Element)) {
	fn(scope)
	for _, c := range scope.Children() {
		collect(c, fn)
	}
}
