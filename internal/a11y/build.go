// Package a11y builds filtered, accessibility-oriented trees over the DOM
// mirror and renders them as compact text for model consumption.
//
// The builder keeps a node when it means something — it has a role, it is
// natively interactive, or it carries its own visible text — or when it is
// needed to connect meaningful descendants to the root. Everything else is
// elided, with its children spliced into the parent, so purely structural
// wrapper stacks collapse out of the output.
package a11y

import (
	"github.com/devpilot/devpilot/internal/dom"
	"github.com/devpilot/devpilot/internal/ids"
)

// Node is one retained element of the accessibility tree.
type Node struct {
	DevpilotID  string         `json:"devpilotId"`
	Tag         string         `json:"tag"`
	Role        string         `json:"role,omitempty"`
	Name        string         `json:"name,omitempty"`
	Value       string         `json:"value,omitempty"`
	Description string         `json:"description,omitempty"`
	Text        string         `json:"text,omitempty"`
	Attributes  []dom.AttrPair `json:"attributes,omitempty"`
	Rect        dom.Rect       `json:"rect"`
	Children    []*Node        `json:"children,omitempty"`
}

// Build walks the mirror depth-first from root, depth-limited to maxDepth
// (root is depth 0; children past the limit are not visited at all), and
// returns the filtered tree. Every retained element is assigned a stable
// identifier through the registry. Returns nil for a nil root.
func Build(reg *ids.Registry, root *dom.Element, maxDepth int) *Node {
	if root == nil {
		return nil
	}
	// The traversal start node is always retained, meaningful or not.
	var children []*Node
	if maxDepth > 0 {
		for _, c := range root.Children() {
			children = append(children, visit(reg, c, 1, maxDepth)...)
		}
	}
	return newNode(reg, root, children)
}

// visit returns the retained nodes representing el's subtree at this level:
// either el itself (with its retained descendants as children) or, when el is
// elided, its retained descendants spliced up.
func visit(reg *ids.Registry, el *dom.Element, depth, maxDepth int) []*Node {
	if skippedTags[el.Tag()] {
		return nil
	}

	var children []*Node
	if depth < maxDepth {
		for _, c := range el.Children() {
			children = append(children, visit(reg, c, depth+1, maxDepth)...)
		}
	}

	if !meaningful(el) {
		// Elide the wrapper; its retained descendants move up a level.
		return children
	}
	return []*Node{newNode(reg, el, children)}
}

// meaningful reports whether the element stands on its own in the tree.
func meaningful(el *dom.Element) bool {
	return roleOf(el) != "" || isInteractive(el) || el.OwnText() != ""
}

func newNode(reg *ids.Registry, el *dom.Element, children []*Node) *Node {
	return &Node{
		DevpilotID:  reg.EnsureID(el),
		Tag:         el.Tag(),
		Role:        roleOf(el),
		Name:        accessibleName(el),
		Value:       accessibleValue(el),
		Description: accessibleDescription(el),
		Text:        el.OwnText(),
		Attributes:  el.Attrs(),
		Rect:        el.Rect(),
		Children:    children,
	}
}

// Subtree finds the node with the given identifier within an already built
// tree. Used to re-root snapshot output.
func Subtree(tree *Node, id string) (*Node, bool) {
	if tree == nil {
		return nil, false
	}
	if tree.DevpilotID == id {
		return tree, true
	}
	for _, c := range tree.Children {
		if n, ok := Subtree(c, id); ok {
			return n, true
		}
	}
	return nil, false
}
