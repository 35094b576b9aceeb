// Package visual computes coverage relationships between nested elements:
// which descendants' bounding boxes fully cover the box of their nearest
// rendered ancestor. Deep wrapper stacks make it hard to tell the "real"
// visible container from purely structural ancestors; the covering set at
// each depth answers that.
package visual

import (
	"github.com/devpilot/devpilot/internal/dom"
	"github.com/devpilot/devpilot/internal/ids"
)

// Entry is one covering element.
type Entry struct {
	DevpilotID string   `json:"devpilotId"`
	Tag        string   `json:"tag"`
	Rect       dom.Rect `json:"rect"`
}

// Level groups covering elements found at one depth below the root.
type Level struct {
	Depth    int     `json:"depth"`
	Elements []Entry `json:"elements"`
}

// Analyze walks depth-first from root down to maxDepth and reports, level by
// level, the elements whose rect covers the rect of their nearest rendered
// ancestor. Elements with zero area never enter the covering set, but their
// children are still inspected against that same ancestor. Levels are ordered
// outer to inner; entries within a level follow document order.
func Analyze(reg *ids.Registry, root *dom.Element, maxDepth int) []Level {
	if root == nil || maxDepth < 1 {
		return nil
	}

	byDepth := make(map[int][]Entry)
	refRect := root.Rect()

	var walk func(el *dom.Element, ref dom.Rect, depth int)
	walk = func(el *dom.Element, ref dom.Rect, depth int) {
		if depth > maxDepth {
			return
		}
		r := el.Rect()
		if r.Zero() {
			// Not rendered; descendants still measure against ref.
			for _, c := range el.Children() {
				walk(c, ref, depth+1)
			}
			return
		}
		if r.Covers(ref) {
			byDepth[depth] = append(byDepth[depth], Entry{
				DevpilotID: reg.EnsureID(el),
				Tag:        el.Tag(),
				Rect:       r,
			})
		}
		for _, c := range el.Children() {
			walk(c, r, depth+1)
		}
	}

	for _, c := range root.Children() {
		walk(c, refRect, 1)
	}

	var levels []Level
	for d := 1; d <= maxDepth; d++ {
		if entries, ok := byDepth[d]; ok {
			levels = append(levels, Level{Depth: d, Elements: entries})
		}
	}
	return levels
}
