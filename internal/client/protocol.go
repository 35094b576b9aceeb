package client

import (
	"encoding/json"

	"github.com/devpilot/devpilot/internal/dom"
)

// Wire protocol between the server and a connected page. One JSON message
// per websocket frame, both directions. Server-to-page messages are commands
// carrying a correlation id; the page answers with a message of the matching
// id. Console events and the initial hello are unsolicited.

// Command types sent to the page.
const (
	CmdDOMRequest = "dom_request"
	CmdClick      = "click"
	CmdInput      = "input"
	CmdScroll     = "scroll"
	CmdScreenshot = "screenshot"
	CmdSetAttrs   = "set_attrs"
)

// Message types received from the page.
const (
	MsgHello   = "hello"
	MsgDOM     = "dom"
	MsgConsole = "console"
	MsgResult  = "result"
)

// Command is a server-to-page instruction.
type Command struct {
	Type     string `json:"type"`
	ID       int    `json:"id,omitempty"`
	Seq      int    `json:"seq,omitempty"`      // target element serial
	Text     string `json:"text,omitempty"`     // input text
	Behavior string `json:"behavior,omitempty"` // scroll behavior

	Screenshot *ScreenshotRequest `json:"screenshot,omitempty"`

	// Attrs maps element serials (stringified, JSON keys) to identifier
	// values to stamp onto the live DOM.
	Attrs map[string]string `json:"attrs,omitempty"`
}

// ScreenshotRequest parameterizes page-side rendering.
type ScreenshotRequest struct {
	Seq      int     `json:"seq,omitempty"` // 0 means whole viewport
	FullPage bool    `json:"fullPage,omitempty"`
	Format   string  `json:"format,omitempty"`
	Quality  float64 `json:"quality,omitempty"`
}

// Message is a page-to-server frame.
type Message struct {
	Type string `json:"type"`
	ID   int    `json:"id,omitempty"`

	Hello   *HelloPayload   `json:"hello,omitempty"`
	DOM     *DOMPayload     `json:"dom,omitempty"`
	Console *ConsolePayload `json:"console,omitempty"`
	Result  *ResultPayload  `json:"result,omitempty"`
}

// HelloPayload registers a page with the hub.
type HelloPayload struct {
	ClientID  string `json:"clientId,omitempty"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	UserAgent string `json:"userAgent,omitempty"`
}

// DOMPayload answers a dom_request: the serialized document plus the
// geometry map keyed by element serial.
type DOMPayload struct {
	HTML  string              `json:"html"`
	Rects map[string]dom.Rect `json:"rects"`
	URL   string              `json:"url"`
	Title string              `json:"title"`
}

// ConsolePayload is one intercepted console call or page error.
type ConsolePayload struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
	TimeMS  int64  `json:"ts,omitempty"` // epoch milliseconds at the page
}

// ResultPayload answers an interaction or screenshot command. Success=false
// with Error set is an action failure, not a transport error.
type ResultPayload struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	// Screenshot results.
	Image  string `json:"image,omitempty"` // base64
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	URL    string `json:"url,omitempty"`
	Title  string `json:"title,omitempty"`
}

// decodeRects converts the JSON string-keyed geometry map to serial keys.
func decodeRects(in map[string]dom.Rect) map[int]dom.Rect {
	out := make(map[int]dom.Rect, len(in))
	for k, v := range in {
		var n int
		if err := json.Unmarshal([]byte(k), &n); err == nil {
			out[n] = v
		}
	}
	return out
}
