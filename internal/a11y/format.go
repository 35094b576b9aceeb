package a11y

import (
	"strings"
)

// maxLabelRunes bounds the text carried per line; snapshots are for models,
// not archival.
const maxLabelRunes = 80

// Format renders the tree one line per node: two-space indentation by depth,
// the element id, the role (or tag when the element has none), and a
// truncated label. Output is deterministic for a given tree; child order is
// document order.
func Format(tree *Node) string {
	var b strings.Builder
	writeNode(&b, tree, 0)
	return b.String()
}

func writeNode(b *strings.Builder, n *Node, depth int) {
	if n == nil {
		return
	}
	for range depth {
		b.WriteString("  ")
	}
	b.WriteString(n.DevpilotID)
	b.WriteByte(' ')
	if n.Role != "" {
		b.WriteString(n.Role)
	} else {
		b.WriteString(n.Tag)
	}
	if label := labelOf(n); label != "" {
		b.WriteString(` "`)
		b.WriteString(truncate(label, maxLabelRunes))
		b.WriteByte('"')
	}
	if n.Value != "" {
		b.WriteString(` val="`)
		b.WriteString(truncate(n.Value, maxLabelRunes))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
	for _, c := range n.Children {
		writeNode(b, c, depth+1)
	}
}

// labelOf prefers the accessible name, falling back to the node's own text.
func labelOf(n *Node) string {
	if n.Name != "" {
		return n.Name
	}
	return n.Text
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}

// UsageGuide is returned alongside every page snapshot so the calling model
// knows how to address what it sees.
const UsageGuide = `Each line is one element: <id> <role-or-tag> "label".
Ids look like e12 and stay stable for the lifetime of the page. Pass an id to
click_element, input_text, scroll_to_element, or get_element_details to target
that element. Strings that are not known ids are interpreted as CSS selectors;
an id value always wins over a selector reading of the same string. Indentation
shows nesting; wrappers with no semantic content are collapsed.`
