package attach

import (
	"fmt"
	"strings"
)

// serializeScript stamps every element under body with a fresh serial
// (serials start at 1; 0 is reserved for "no target"), collects bounding
// boxes for rendered elements, and returns the serialized document. Serials
// are reassigned on every call; stable ids live in data-devpilot-id, which
// travels inside the serialized HTML.
// Form control state lives in properties, not attributes, so current values
// are synced into attributes before outerHTML is read. Otherwise a value set
// through input_text would be invisible to the next snapshot.
const serializeScript = `(() => {
	let seq = 0;
	const rects = {};
	const walk = (el) => {
		seq++;
		el.setAttribute('data-devpilot-seq', String(seq));
		const tag = el.tagName;
		if (tag === 'INPUT' || tag === 'TEXTAREA') {
			el.setAttribute('value', el.value);
			if (el.checked) { el.setAttribute('checked', ''); } else { el.removeAttribute('checked'); }
		} else if (tag === 'OPTION') {
			if (el.selected) { el.setAttribute('selected', ''); } else { el.removeAttribute('selected'); }
		}
		const r = el.getBoundingClientRect();
		if (r.width > 0 || r.height > 0) {
			rects[seq] = {x: r.x, y: r.y, width: r.width, height: r.height};
		}
		for (const child of el.children) walk(child);
	};
	if (document.body) walk(document.body);
	return JSON.stringify({
		html: document.documentElement.outerHTML,
		rects: rects,
		url: location.href,
		title: document.title,
	});
})()`

// seqSelector addresses the element carrying a serial.
func seqSelector(seq int) string {
	return fmt.Sprintf(`[data-devpilot-seq="%d"]`, seq)
}

// clickScript clicks the target and reports whether the click took.
func clickScript(seq int) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector('%s');
	if (!el) return JSON.stringify({success: false, error: 'element no longer in document'});
	if (el.disabled) return JSON.stringify({success: false, error: 'element is disabled'});
	el.click();
	return JSON.stringify({success: true});
})()`, seqSelector(seq))
}

// inputScript sets the value through the native setter so framework bindings
// (React and friends track the property descriptor) observe the change, then
// fires input and change events.
func inputScript(seq int, text string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector('%s');
	if (!el) return JSON.stringify({success: false, error: 'element no longer in document'});
	if (el.disabled || el.readOnly) return JSON.stringify({success: false, error: 'element is disabled or read-only'});
	const text = %s;
	if (el.isContentEditable) {
		el.textContent = text;
	} else if ('value' in el) {
		const proto = Object.getPrototypeOf(el);
		const desc = Object.getOwnPropertyDescriptor(proto, 'value');
		if (desc && desc.set) { desc.set.call(el, text); } else { el.value = text; }
	} else {
		return JSON.stringify({success: false, error: 'element does not accept text'});
	}
	el.dispatchEvent(new Event('input', {bubbles: true}));
	el.dispatchEvent(new Event('change', {bubbles: true}));
	return JSON.stringify({success: true});
})()`, seqSelector(seq), jsString(text))
}

// scrollScript scrolls the target into view.
func scrollScript(seq int, behavior string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector('%s');
	if (!el) return JSON.stringify({success: false, error: 'element no longer in document'});
	el.scrollIntoView({behavior: %s, block: 'center'});
	return JSON.stringify({success: true});
})()`, seqSelector(seq), jsString(behavior))
}

// setAttrsScript stamps stable ids onto elements by serial.
func setAttrsScript(attrs map[string]string) string {
	var b strings.Builder
	b.WriteString("(() => {\n")
	for seq, id := range attrs {
		fmt.Fprintf(&b, "\t{ const el = document.querySelector('[data-devpilot-seq=%s]'); if (el) el.setAttribute('data-devpilot-id', %s); }\n",
			jsString(seq), jsString(id))
	}
	b.WriteString("\treturn true;\n})()")
	return b.String()
}

// elementClipScript reports the target's box in page coordinates, for use as
// a screenshot clip.
func elementClipScript(seq int) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector('%s');
	if (!el) return "null";
	const r = el.getBoundingClientRect();
	return JSON.stringify({
		x: r.x + window.scrollX,
		y: r.y + window.scrollY,
		width: r.width,
		height: r.height,
	});
})()`, seqSelector(seq))
}

// fullPageClipScript reports the full scrollable document size.
const fullPageClipScript = `JSON.stringify({
	x: 0,
	y: 0,
	width: Math.max(document.documentElement.scrollWidth, document.body ? document.body.scrollWidth : 0),
	height: Math.max(document.documentElement.scrollHeight, document.body ? document.body.scrollHeight : 0),
})`

// viewportScript reports the page's current viewport and document context.
const viewportScript = `JSON.stringify({
	width: window.innerWidth,
	height: window.innerHeight,
	url: location.href,
	title: document.title,
})`

// jsString renders s as a JS string literal. JSON escaping is valid JS.
func jsString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '<':
			// Never emit a literal that could close a script context.
			b.WriteString(`\u003c`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}
