package a11y

import (
	"testing"

	"github.com/devpilot/devpilot/internal/dom"
	"github.com/devpilot/devpilot/internal/ids"
)

func build(t *testing.T, markup string, maxDepth int) (*Node, *ids.Registry) {
	t.Helper()
	doc, err := dom.Parse(markup, nil, "", "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	reg := ids.New()
	reg.Rebind(doc)
	return Build(reg, doc.Body(), maxDepth), reg
}

func TestWrappersAreSpliced(t *testing.T) {
	tree, _ := build(t, `<body><div><div><button>Go</button><a href="/x">Link</a></div></div></body>`, 10)

	// Both wrapper divs collapse; body keeps button and link directly.
	if len(tree.Children) != 2 {
		t.Fatalf("root has %d children, want 2 (wrappers spliced)", len(tree.Children))
	}
	if tree.Children[0].Role != "button" || tree.Children[1].Role != "link" {
		t.Fatalf("unexpected children: %+v", tree.Children)
	}
}

func TestScriptAndStyleNeverRetained(t *testing.T) {
	tree, _ := build(t, `<body><script>var x=1;</script><style>p{}</style><p>text</p></body>`, 10)

	if len(tree.Children) != 1 || tree.Children[0].Tag != "p" {
		t.Fatalf("want only the paragraph, got %+v", tree.Children)
	}
}

func TestMaxDepthZeroReturnsOnlyRoot(t *testing.T) {
	tree, _ := build(t, `<body><div><button>Go</button></div></body>`, 0)

	if tree == nil {
		t.Fatal("root must be returned")
	}
	if len(tree.Children) != 0 {
		t.Fatalf("maxDepth=0 must not visit children, got %d", len(tree.Children))
	}
}

func TestExplicitRoleWinsOverTag(t *testing.T) {
	tree, _ := build(t, `<body><button role="switch">On</button></body>`, 5)
	if tree.Children[0].Role != "switch" {
		t.Fatalf("role = %q, want switch", tree.Children[0].Role)
	}
}

func TestImplicitRoles(t *testing.T) {
	cases := []struct {
		markup string
		role   string
	}{
		{`<a href="/x">l</a>`, "link"},
		{`<a>bare</a>`, ""},
		{`<input type="search">`, "searchbox"},
		{`<input type="hidden">`, ""},
		{`<input>`, "textbox"},
		{`<h2>t</h2>`, "heading"},
		{`<nav>n</nav>`, "navigation"},
		{`<select><option>a</option></select>`, "combobox"},
	}
	for _, tc := range cases {
		doc, err := dom.Parse(`<body>`+tc.markup+`</body>`, nil, "", "")
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		els := doc.Body().Children()
		if len(els) == 0 {
			t.Fatalf("fixture %q produced no element", tc.markup)
		}
		if got := roleOf(els[0]); got != tc.role {
			t.Errorf("roleOf(%s) = %q, want %q", tc.markup, got, tc.role)
		}
	}
}

func TestAccessibleNameChain(t *testing.T) {
	markup := `<body>
	<span id="lbl">Referenced</span>
	<button aria-label="Direct">x</button>
	<button aria-labelledby="lbl">x</button>
	<label for="fld">Field label</label><input id="fld">
	<img src="p.png" alt="A picture">
	<input type="text" placeholder="Type here">
	<button>Own text</button>
	</body>`
	doc, err := dom.Parse(markup, nil, "", "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	want := map[string]string{
		`button[aria-label]`:      "Direct",
		`button[aria-labelledby]`: "Referenced",
		`#fld`:                    "Field label",
		`img`:                     "A picture",
		`input[placeholder]`:      "Type here",
	}
	for sel, name := range want {
		els, err := dom.QueryAll(doc.Root(), sel)
		if err != nil || len(els) == 0 {
			t.Fatalf("fixture selector %q: %v", sel, err)
		}
		if got := accessibleName(els[0]); got != name {
			t.Errorf("name(%s) = %q, want %q", sel, got, name)
		}
	}

	btns, _ := dom.QueryAll(doc.Root(), "button")
	last := btns[len(btns)-1]
	if got := accessibleName(last); got != "Own text" {
		t.Errorf("own-text fallback = %q", got)
	}
}

func TestAccessibleValuePerControl(t *testing.T) {
	markup := `<body>
	<input id="email" value="user@example.test">
	<input id="blank">
	<textarea id="live" value="edited text">initial text</textarea>
	<textarea id="plain">author text</textarea>
	<select id="pick"><option>One</option><option selected>Two</option></select>
	<select id="none"><option>One</option></select>
	<div id="slider" role="slider" aria-valuenow="40"></div>
	</body>`
	doc, err := dom.Parse(markup, nil, "", "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	want := map[string]string{
		"#email": "user@example.test",
		"#blank": "",
		// A value attribute on a textarea is the mirrored live value and
		// beats the author-time text child.
		"#live":   "edited text",
		"#plain":  "author text",
		"#pick":   "Two",
		"#none":   "",
		"#slider": "40",
	}
	for sel, val := range want {
		els, err := dom.QueryAll(doc.Root(), sel)
		if err != nil || len(els) == 0 {
			t.Fatalf("fixture selector %q: %v", sel, err)
		}
		if got := accessibleValue(els[0]); got != val {
			t.Errorf("value(%s) = %q, want %q", sel, got, val)
		}
	}
}

func TestIdsStableAcrossRebuilds(t *testing.T) {
	markup := `<body><button>A</button><a href="/b">B</a></body>`
	doc, err := dom.Parse(markup, nil, "", "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	reg := ids.New()
	reg.Rebind(doc)

	first := Build(reg, doc.Body(), 5)
	second := Build(reg, doc.Body(), 5)

	if first.Children[0].DevpilotID != second.Children[0].DevpilotID ||
		first.Children[1].DevpilotID != second.Children[1].DevpilotID {
		t.Fatalf("ids changed between builds: %+v vs %+v", first.Children, second.Children)
	}
}

func TestSubtreeReRoot(t *testing.T) {
	tree, _ := build(t, `<body><nav><a href="/h">Home</a></nav><main><button>Go</button></main></body>`, 10)

	var navID string
	for _, c := range tree.Children {
		if c.Role == "navigation" {
			navID = c.DevpilotID
		}
	}
	if navID == "" {
		t.Fatal("nav not retained")
	}

	sub, ok := Subtree(tree, navID)
	if !ok {
		t.Fatal("Subtree did not find nav")
	}
	if len(sub.Children) != 1 || sub.Children[0].Role != "link" {
		t.Fatalf("unexpected subtree: %+v", sub)
	}
	if _, ok := Subtree(tree, "e999"); ok {
		t.Fatal("Subtree found an id that was never assigned")
	}
}
