// Package dom holds the server-side mirror of a connected page's DOM.
//
// Pages serialize their document (with per-element viewport rects keyed by an
// ephemeral serial attribute) and the mirror is parsed here with
// golang.org/x/net/html. Everything the inspection engine does — id
// assignment, resolution, accessibility trees, coverage analysis — runs
// against this mirror, never against the live page directly.
package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	// IDAttr carries the stable element identifier (e1, e2, ...).
	// It travels with the serialized DOM, which is what keeps ids
	// stable across repeated snapshots of the same page load.
	IDAttr = "data-devpilot-id"

	// SeqAttr is the ephemeral serial stamped by the page during
	// serialization. It keys the geometry map and addresses elements
	// in commands sent back to the live page. Re-assigned on every
	// serialization; never surfaced to callers.
	SeqAttr = "data-devpilot-seq"
)

// Rect is an element's bounding box in viewport coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Zero reports whether the rect has no rendered area.
func (r Rect) Zero() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Covers reports whether r fully contains o: every edge of r is at or
// beyond the corresponding edge of o. Equal rects cover each other.
func (r Rect) Covers(o Rect) bool {
	return r.X <= o.X && r.Y <= o.Y &&
		r.X+r.Width >= o.X+o.Width &&
		r.Y+r.Height >= o.Y+o.Height
}

// Document is one parsed mirror of a client page.
type Document struct {
	URL   string
	Title string

	root  *html.Node
	rects map[int]Rect
	bySeq map[int]*Element
	byID  map[string]*Element // HTML id attribute, first occurrence wins
}

// Element wraps an element node in its owning document.
type Element struct {
	doc  *Document
	node *html.Node
}

// Parse builds a Document from serialized page HTML and its geometry map.
func Parse(markup string, rects map[int]Rect, url, title string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}

	doc := &Document{
		URL:   url,
		Title: title,
		root:  root,
		rects: rects,
		bySeq: make(map[int]*Element),
		byID:  make(map[string]*Element),
	}

	doc.walk(root, func(el *Element) {
		if seq := el.Seq(); seq >= 0 {
			doc.bySeq[seq] = el
		}
		if id, ok := el.attr("id"); ok && id != "" {
			if _, dup := doc.byID[id]; !dup {
				doc.byID[id] = el
			}
		}
	})

	return doc, nil
}

// walk visits every element node depth-first in document order.
func (d *Document) walk(n *html.Node, fn func(*Element)) {
	if n.Type == html.ElementNode {
		fn(&Element{doc: d, node: n})
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		d.walk(c, fn)
	}
}

// Root returns the document's root element (html), or nil for an empty tree.
func (d *Document) Root() *Element {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return &Element{doc: d, node: c}
		}
	}
	return nil
}

// Body returns the body element. html.Parse always synthesizes one, but the
// nil check keeps callers safe on degenerate input.
func (d *Document) Body() *Element {
	var body *Element
	d.walk(d.root, func(el *Element) {
		if body == nil && el.node.DataAtom == atom.Body {
			body = el
		}
	})
	return body
}

// BySeq returns the element carrying the given serial, if any.
func (d *Document) BySeq(seq int) (*Element, bool) {
	el, ok := d.bySeq[seq]
	return el, ok
}

// ByHTMLID returns the element with the given HTML id attribute.
func (d *Document) ByHTMLID(id string) (*Element, bool) {
	el, ok := d.byID[id]
	return el, ok
}

// Each visits every element in document order.
func (d *Document) Each(fn func(*Element)) {
	d.walk(d.root, fn)
}

// Tag returns the lowercase tag name.
func (e *Element) Tag() string {
	return e.node.Data
}

// Node exposes the underlying parse node. Used by the selector engine.
func (e *Element) Node() *html.Node {
	return e.node
}

// Document returns the owning document.
func (e *Element) Document() *Document {
	return e.doc
}

func (e *Element) attr(name string) (string, bool) {
	for _, a := range e.node.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// Attr returns the value of the named attribute, or "" when absent.
func (e *Element) Attr(name string) string {
	v, _ := e.attr(name)
	return v
}

// HasAttr reports whether the attribute is present, even if empty.
func (e *Element) HasAttr(name string) bool {
	_, ok := e.attr(name)
	return ok
}

// SetAttr sets or replaces an attribute on the mirror node.
func (e *Element) SetAttr(name, value string) {
	for i := range e.node.Attr {
		if e.node.Attr[i].Key == name {
			e.node.Attr[i].Val = value
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: name, Val: value})
}

// AttrPair is one author-set attribute, order-preserving.
type AttrPair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Attrs returns the author-set attributes in source order, excluding the
// bookkeeping attributes the engine itself writes.
func (e *Element) Attrs() []AttrPair {
	out := make([]AttrPair, 0, len(e.node.Attr))
	for _, a := range e.node.Attr {
		if a.Key == IDAttr || a.Key == SeqAttr {
			continue
		}
		out = append(out, AttrPair{Name: a.Key, Value: a.Val})
	}
	return out
}

// Seq returns the element's serial from the last serialization, or -1.
// An empty attribute counts as absent; serial 0 never targets an element.
func (e *Element) Seq() int {
	v, ok := e.attr(SeqAttr)
	if !ok || v == "" {
		return -1
	}
	n := 0
	for _, ch := range v {
		if ch < '0' || ch > '9' {
			return -1
		}
		n = n*10 + int(ch-'0')
	}
	return n
}

// Rect returns the element's viewport rect from the geometry map. Elements
// the page did not report (display:none, detached) get a zero rect.
func (e *Element) Rect() Rect {
	if seq := e.Seq(); seq >= 0 {
		return e.doc.rects[seq]
	}
	return Rect{}
}

// Parent returns the parent element, or nil at the root.
func (e *Element) Parent() *Element {
	for p := e.node.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return &Element{doc: e.doc, node: p}
		}
	}
	return nil
}

// Children returns child elements in document order.
func (e *Element) Children() []*Element {
	var out []*Element
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, &Element{doc: e.doc, node: c})
		}
	}
	return out
}

// OwnText returns the element's direct text content (no descendants),
// whitespace-collapsed.
func (e *Element) OwnText() string {
	var b strings.Builder
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
	}
	return collapse(b.String())
}

// Text returns the full text content of the subtree, whitespace-collapsed.
func (e *Element) Text() string {
	var b strings.Builder
	var rec func(n *html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(e.node)
	return collapse(b.String())
}

// Contains reports whether other is e or a descendant of e.
func (e *Element) Contains(other *Element) bool {
	for n := other.node; n != nil; n = n.Parent {
		if n == e.node {
			return true
		}
	}
	return false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
