package a11y

import "github.com/devpilot/devpilot/internal/dom"

// implicitRoles maps tags whose role does not depend on attributes.
var implicitRoles = map[string]string{
	"button":   "button",
	"select":   "combobox",
	"textarea": "textbox",
	"option":   "option",
	"nav":      "navigation",
	"main":     "main",
	"header":   "banner",
	"footer":   "contentinfo",
	"aside":    "complementary",
	"article":  "article",
	"section":  "region",
	"form":     "form",
	"img":      "img",
	"table":    "table",
	"tr":       "row",
	"th":       "columnheader",
	"td":       "cell",
	"ul":       "list",
	"ol":       "list",
	"li":       "listitem",
	"dialog":   "dialog",
	"summary":  "button",
	"progress": "progressbar",
	"output":   "status",
	"fieldset": "group",
	"h1":       "heading",
	"h2":       "heading",
	"h3":       "heading",
	"h4":       "heading",
	"h5":       "heading",
	"h6":       "heading",
}

// inputRoles maps input type attributes to roles. Unlisted types (hidden,
// file, color, date...) keep the generic textbox-or-nothing handling below.
var inputRoles = map[string]string{
	"text":     "textbox",
	"search":   "searchbox",
	"email":    "textbox",
	"password": "textbox",
	"tel":      "textbox",
	"url":      "textbox",
	"number":   "spinbutton",
	"checkbox": "checkbox",
	"radio":    "radio",
	"range":    "slider",
	"button":   "button",
	"submit":   "button",
	"reset":    "button",
	"image":    "button",
}

// roleOf computes the element's role: the explicit role attribute wins, then
// tag semantics, else empty.
func roleOf(el *dom.Element) string {
	if r := el.Attr("role"); r != "" {
		return r
	}
	switch tag := el.Tag(); tag {
	case "a":
		if el.HasAttr("href") {
			return "link"
		}
		return ""
	case "input":
		typ := el.Attr("type")
		if typ == "" {
			typ = "text"
		}
		if typ == "hidden" {
			return ""
		}
		if r, ok := inputRoles[typ]; ok {
			return r
		}
		return "textbox"
	default:
		return implicitRoles[tag]
	}
}

// isInteractive reports native interactivity: links, buttons, form controls.
func isInteractive(el *dom.Element) bool {
	switch el.Tag() {
	case "button", "select", "textarea", "summary":
		return true
	case "a":
		return el.HasAttr("href")
	case "input":
		return el.Attr("type") != "hidden"
	default:
		return false
	}
}

// skippedTags are never retained and never descended into.
var skippedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"template": true,
	"noscript": true,
	"head":     true,
	"meta":     true,
	"link":     true,
	"title":    true,
}
