package dom

import (
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// QueryAll returns the elements under scope matching the CSS selector, in
// document order. The scope element itself is not a candidate, matching
// querySelectorAll semantics. A selector that fails to compile is an error;
// callers deciding between "bad selector" and "no match" own that choice.
func QueryAll(scope *Element, selector string) ([]*Element, error) {
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, err
	}

	var out []*Element
	var rec func(n *html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.ElementNode && sel.Match(n) {
			out = append(out, &Element{doc: scope.doc, node: n})
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	for c := scope.node.FirstChild; c != nil; c = c.NextSibling {
		rec(c)
	}
	return out, nil
}
