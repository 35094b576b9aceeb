package a11y

import (
	"strings"

	"github.com/devpilot/devpilot/internal/dom"
)

// accessibleName computes the element's accessible name. Resolution order:
// aria-label, aria-labelledby references, an associated <label> for form
// controls, then alt/title/placeholder, then the element's own text.
func accessibleName(el *dom.Element) string {
	if v := strings.TrimSpace(el.Attr("aria-label")); v != "" {
		return v
	}

	if refs := strings.Fields(el.Attr("aria-labelledby")); len(refs) > 0 {
		var parts []string
		for _, ref := range refs {
			if target, ok := el.Document().ByHTMLID(ref); ok {
				if txt := target.Text(); txt != "" {
					parts = append(parts, txt)
				}
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
	}

	if isFormControl(el) {
		if lbl := associatedLabel(el); lbl != "" {
			return lbl
		}
	}

	for _, attr := range []string{"alt", "title", "placeholder"} {
		if v := strings.TrimSpace(el.Attr(attr)); v != "" {
			return v
		}
	}

	return el.OwnText()
}

// accessibleValue returns the element's current value where one exists.
func accessibleValue(el *dom.Element) string {
	switch el.Tag() {
	case "input":
		return el.Attr("value")
	case "textarea":
		// Serialization mirrors the live value into the attribute; the
		// text child only holds the author-time initial content.
		if el.HasAttr("value") {
			return el.Attr("value")
		}
		return el.Text()
	case "select":
		for _, opts := range el.Children() {
			if opts.Tag() == "option" && opts.HasAttr("selected") {
				return opts.Text()
			}
		}
		return ""
	default:
		return el.Attr("aria-valuenow")
	}
}

// accessibleDescription returns supplementary text distinct from the name.
func accessibleDescription(el *dom.Element) string {
	if refs := strings.Fields(el.Attr("aria-describedby")); len(refs) > 0 {
		var parts []string
		for _, ref := range refs {
			if target, ok := el.Document().ByHTMLID(ref); ok {
				if txt := target.Text(); txt != "" {
					parts = append(parts, txt)
				}
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
	}
	return strings.TrimSpace(el.Attr("aria-description"))
}

func isFormControl(el *dom.Element) bool {
	switch el.Tag() {
	case "input", "select", "textarea", "button":
		return true
	}
	return false
}

// associatedLabel finds label text via label[for] or a wrapping <label>.
func associatedLabel(el *dom.Element) string {
	if id := el.Attr("id"); id != "" {
		root := el.Document().Root()
		if root != nil {
			labels, err := dom.QueryAll(root, `label[for="`+id+`"]`)
			if err == nil && len(labels) > 0 {
				if txt := labels[0].Text(); txt != "" {
					return txt
				}
			}
		}
	}
	for p := el.Parent(); p != nil; p = p.Parent() {
		if p.Tag() == "label" {
			return p.Text()
		}
	}
	return ""
}
