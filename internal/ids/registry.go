// Package ids assigns and tracks stable element identifiers for one page
// session. Identifiers have the form e<N> with a counter that only moves
// forward while the page is alive; they are mirrored into the DOM as a
// data-devpilot-id attribute so they survive re-serialization.
package ids

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/devpilot/devpilot/internal/dom"
)

// Registry owns the id counter and id-to-element association for one client
// session. Not safe for concurrent use; the session serializes tool calls.
type Registry struct {
	counter int
	byID    map[string]*dom.Element

	// pending maps element serials to freshly allocated ids that still
	// need to be written back onto the live page.
	pending map[int]string
}

// New returns an empty registry. One per page load; a reconnect gets a new one.
func New() *Registry {
	return &Registry{
		byID:    make(map[string]*dom.Element),
		pending: make(map[int]string),
	}
}

// EnsureID returns the element's existing identifier or allocates the next
// one. Allocation writes the attribute onto the mirror node and queues the
// assignment for write-back to the live page. An element never changes id
// while the page is alive.
func (r *Registry) EnsureID(el *dom.Element) string {
	if id := el.Attr(dom.IDAttr); id != "" {
		if _, known := r.byID[id]; !known {
			r.byID[id] = el
		}
		return id
	}

	r.counter++
	id := fmt.Sprintf("e%d", r.counter)
	el.SetAttr(dom.IDAttr, id)
	r.byID[id] = el
	if seq := el.Seq(); seq >= 0 {
		r.pending[seq] = id
	}
	return id
}

// Lookup returns the element currently bound to the identifier.
func (r *Registry) Lookup(id string) (*dom.Element, bool) {
	el, ok := r.byID[id]
	return el, ok
}

// Rebind points the registry at a freshly synced document. Existing
// data-devpilot-id attributes are re-indexed and the counter is advanced past
// the highest id seen, so ids assigned in earlier passes are never reissued.
func (r *Registry) Rebind(doc *dom.Document) {
	r.byID = make(map[string]*dom.Element)
	doc.Each(func(el *dom.Element) {
		id := el.Attr(dom.IDAttr)
		if id == "" {
			return
		}
		if _, dup := r.byID[id]; !dup {
			r.byID[id] = el
		}
		if n, ok := parseID(id); ok && n > r.counter {
			r.counter = n
		}
	})
}

// TakePending drains the queued serial-to-id write-backs.
func (r *Registry) TakePending() map[int]string {
	if len(r.pending) == 0 {
		return nil
	}
	out := r.pending
	r.pending = make(map[int]string)
	return out
}

// parseID extracts N from an e<N> identifier.
func parseID(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, "e")
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
