// Package bridge dispatches inbound tool calls to the inspection engine.
// Every tool requires a clientId routing key; parameter validation happens
// up front and is a distinct failure kind from element resolution. Action
// failures on a resolved element (disabled control, rejected input) travel
// inside the result payload, never as call errors — callers need to tell
// "nothing to target" apart from "target exists but the action didn't take".
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/devpilot/devpilot/internal/a11y"
	"github.com/devpilot/devpilot/internal/client"
	"github.com/devpilot/devpilot/internal/console"
	"github.com/devpilot/devpilot/internal/dom"
	"github.com/devpilot/devpilot/internal/resolve"
	"github.com/devpilot/devpilot/internal/visual"
)

// Defaults applied when optional parameters are omitted.
const (
	DefaultSnapshotDepth  = 5
	DefaultHierarchyDepth = 15
	DefaultDetailsDepth   = 5
	DefaultLogLimit       = 100
	DefaultScrollBehavior = "smooth"
	DefaultImageFormat    = "png"
	DefaultImageQuality   = 0.9
)

// Bridge routes tool calls to connected page sessions.
type Bridge struct {
	hub    *client.Hub
	logger *slog.Logger
}

// New wires a bridge over the hub.
func New(hub *client.Hub) *Bridge {
	return &Bridge{
		hub:    hub,
		logger: slog.Default().With("component", "bridge"),
	}
}

// Handle is the dispatch table: toolName plus raw JSON params in, result or
// error out. The typed per-tool methods below do the work; Handle only
// decodes.
func (b *Bridge) Handle(ctx context.Context, toolName string, raw json.RawMessage) (any, error) {
	decode := func(v any) error {
		if len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, v); err != nil {
			return &ValidationError{Field: "params", Msg: err.Error()}
		}
		return nil
	}

	switch toolName {
	case "get_page_snapshot":
		var p SnapshotParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		return b.PageSnapshot(ctx, p)
	case "get_visual_hierarchy":
		var p HierarchyParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		return b.VisualHierarchy(ctx, p)
	case "get_element_details":
		var p DetailsParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		return b.ElementDetails(ctx, p)
	case "click_element":
		var p TargetParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		return b.ClickElement(ctx, p)
	case "input_text":
		var p InputParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		return b.InputText(ctx, p)
	case "scroll_to_element":
		var p ScrollParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		return b.ScrollToElement(ctx, p)
	case "get_console_logs":
		var p LogsParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		return b.ConsoleLogs(ctx, p)
	case "capture_screenshot":
		var p ScreenshotParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		return b.CaptureScreenshot(ctx, p)
	case "list_clients":
		return b.ListClients(ctx)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, toolName)
	}
}

func (b *Bridge) session(clientID string) (*client.Session, error) {
	if clientID == "" {
		return nil, missing("clientId")
	}
	s, ok := b.hub.Get(clientID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClient, clientID)
	}
	return s, nil
}

// SnapshotParams selects a page snapshot.
type SnapshotParams struct {
	ClientID    string `json:"clientId" jsonschema:"required,Target page's client id"`
	MaxDepth    *int   `json:"maxDepth,omitempty" jsonschema:"Depth limit for the tree walk (default 5; 0 = root only)"`
	StartNodeID string `json:"startNodeId,omitempty" jsonschema:"Re-root the snapshot at this element id or selector"`
}

// SnapshotResult is the formatted page snapshot.
type SnapshotResult struct {
	Text       string `json:"text"`
	UsageGuide string `json:"usageGuide"`
}

// PageSnapshot syncs the page's DOM, builds the filtered accessibility tree,
// and renders it as text. With StartNodeID set, output is re-rooted at that
// element's node; the element must sit inside the built tree.
func (b *Bridge) PageSnapshot(ctx context.Context, p SnapshotParams) (*SnapshotResult, error) {
	s, err := b.session(p.ClientID)
	if err != nil {
		return nil, err
	}

	doc, err := s.SyncDOM(ctx)
	if err != nil {
		return nil, err
	}
	maxDepth := DefaultSnapshotDepth
	if p.MaxDepth != nil {
		maxDepth = *p.MaxDepth
	}

	tree := a11y.Build(s.Registry, doc.Body(), maxDepth)
	defer b.flush(s)

	if p.StartNodeID != "" {
		el, err := resolve.One(doc, p.StartNodeID, nil)
		if err != nil {
			return nil, err
		}
		// Build stamped an id onto every retained element, so an element
		// without one was elided. The failed lookup must not allocate.
		id := el.Attr(dom.IDAttr)
		if id == "" {
			return nil, fmt.Errorf("%w: %q is outside the snapshot tree", ErrNotFound, p.StartNodeID)
		}
		sub, ok := a11y.Subtree(tree, id)
		if !ok {
			return nil, fmt.Errorf("%w: %q is outside the snapshot tree", ErrNotFound, p.StartNodeID)
		}
		tree = sub
	}

	return &SnapshotResult{Text: a11y.Format(tree), UsageGuide: a11y.UsageGuide}, nil
}

// HierarchyParams selects a coverage analysis.
type HierarchyParams struct {
	ClientID  string `json:"clientId" jsonschema:"required,Target page's client id"`
	ElementID string `json:"elementId,omitempty" jsonschema:"Root element id or selector (default body)"`
	MaxDepth  *int   `json:"maxDepth,omitempty" jsonschema:"Depth limit (default 15)"`
}

// HierarchyResult lists covering elements level by level, outer to inner.
type HierarchyResult struct {
	Levels []visual.Level `json:"levels"`
}

// VisualHierarchy reports which nested elements fully cover their nearest
// rendered ancestor's box, level by level under the chosen root.
func (b *Bridge) VisualHierarchy(ctx context.Context, p HierarchyParams) (*HierarchyResult, error) {
	s, err := b.session(p.ClientID)
	if err != nil {
		return nil, err
	}

	doc, err := s.SyncDOM(ctx)
	if err != nil {
		return nil, err
	}
	rootSel := p.ElementID
	if rootSel == "" {
		rootSel = "body"
	}
	root, err := resolve.One(doc, rootSel, nil)
	if err != nil {
		return nil, err
	}
	maxDepth := DefaultHierarchyDepth
	if p.MaxDepth != nil {
		maxDepth = *p.MaxDepth
	}

	levels := visual.Analyze(s.Registry, root, maxDepth)
	b.flush(s)
	return &HierarchyResult{Levels: levels}, nil
}

// DetailsParams selects elements for detailed inspection.
type DetailsParams struct {
	ClientID        string `json:"clientId" jsonschema:"required,Target page's client id"`
	Selector        string `json:"selector" jsonschema:"required,Element id or CSS selector; all matches are returned"`
	IncludeChildren bool   `json:"includeChildren,omitempty" jsonschema:"Include each match's accessibility subtree"`
	MaxDepth        *int   `json:"maxDepth,omitempty" jsonschema:"Subtree depth when includeChildren is set (default 5)"`
}

// ElementDetail is the full per-element record.
type ElementDetail struct {
	DevpilotID  string         `json:"devpilotId"`
	Tag         string         `json:"tag"`
	Text        string         `json:"text,omitempty"`
	Attributes  []dom.AttrPair `json:"attributes"`
	Role        string         `json:"role,omitempty"`
	Name        string         `json:"name,omitempty"`
	Value       string         `json:"value,omitempty"`
	Description string         `json:"description,omitempty"`
	Rect        dom.Rect       `json:"rect"`
	Children    []*a11y.Node   `json:"children,omitempty"`
}

// DetailsResult carries every matched element.
type DetailsResult struct {
	Elements []ElementDetail `json:"elements"`
}

// ElementDetails resolves the selector and reports visual and accessibility
// metadata for every match. Unlike the single-target tools, multiple matches
// are all returned; zero matches is a not-found error.
func (b *Bridge) ElementDetails(ctx context.Context, p DetailsParams) (*DetailsResult, error) {
	s, err := b.session(p.ClientID)
	if err != nil {
		return nil, err
	}
	if p.Selector == "" {
		return nil, missing("selector")
	}

	doc, err := s.SyncDOM(ctx)
	if err != nil {
		return nil, err
	}
	els := resolve.All(doc, p.Selector, nil)
	if len(els) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, p.Selector)
	}
	maxDepth := DefaultDetailsDepth
	if p.MaxDepth != nil {
		maxDepth = *p.MaxDepth
	}

	defer b.flush(s)

	out := make([]ElementDetail, 0, len(els))
	for _, el := range els {
		node := a11y.Build(s.Registry, el, 0)
		detail := ElementDetail{
			DevpilotID:  node.DevpilotID,
			Tag:         node.Tag,
			Text:        node.Text,
			Attributes:  node.Attributes,
			Role:        node.Role,
			Name:        node.Name,
			Value:       node.Value,
			Description: node.Description,
			Rect:        node.Rect,
		}
		if p.IncludeChildren {
			detail.Children = a11y.Build(s.Registry, el, maxDepth).Children
		}
		out = append(out, detail)
	}
	return &DetailsResult{Elements: out}, nil
}

// TargetParams addresses a single element.
type TargetParams struct {
	ClientID string `json:"clientId" jsonschema:"required,Target page's client id"`
	ID       string `json:"id" jsonschema:"required,Element id or CSS selector; must match exactly one element"`
}

// ActionResult reports an interaction outcome. Success=false with Error set
// means the element was found but the action could not complete.
type ActionResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ClickElement resolves the target (exactly one match required) and clicks it.
func (b *Bridge) ClickElement(ctx context.Context, p TargetParams) (*ActionResult, error) {
	s, seq, err := b.target(ctx, p.ClientID, p.ID)
	if err != nil {
		return nil, err
	}
	res, err := s.Click(ctx, seq)
	if err != nil {
		return nil, err
	}
	return &ActionResult{Success: res.Success, Error: res.Error}, nil
}

// InputParams carries text for a single input target.
type InputParams struct {
	ClientID string `json:"clientId" jsonschema:"required,Target page's client id"`
	ID       string `json:"id" jsonschema:"required,Element id or CSS selector; must match exactly one element"`
	Text     string `json:"text" jsonschema:"Text to set; the page fires its input and change events"`
}

// InputText sets the target's value and fires the page's change notifications.
func (b *Bridge) InputText(ctx context.Context, p InputParams) (*ActionResult, error) {
	s, seq, err := b.target(ctx, p.ClientID, p.ID)
	if err != nil {
		return nil, err
	}
	res, err := s.Input(ctx, seq, p.Text)
	if err != nil {
		return nil, err
	}
	return &ActionResult{Success: res.Success, Error: res.Error}, nil
}

// ScrollParams selects a scroll target and behavior.
type ScrollParams struct {
	ClientID string `json:"clientId" jsonschema:"required,Target page's client id"`
	ID       string `json:"id" jsonschema:"required,Element id or CSS selector; must match exactly one element"`
	Behavior string `json:"behavior,omitempty" jsonschema:"smooth (animated, default) or auto (instant)"`
}

// ScrollToElement scrolls the target into view.
func (b *Bridge) ScrollToElement(ctx context.Context, p ScrollParams) (*ActionResult, error) {
	behavior := p.Behavior
	switch behavior {
	case "":
		behavior = DefaultScrollBehavior
	case "smooth", "auto":
	default:
		return nil, &ValidationError{Field: "behavior", Msg: `must be "smooth" or "auto"`}
	}

	s, seq, err := b.target(ctx, p.ClientID, p.ID)
	if err != nil {
		return nil, err
	}
	res, err := s.Scroll(ctx, seq, behavior)
	if err != nil {
		return nil, err
	}
	return &ActionResult{Success: res.Success, Error: res.Error}, nil
}

// target syncs the page and resolves a single-element target to its serial.
func (b *Bridge) target(ctx context.Context, clientID, id string) (*client.Session, int, error) {
	s, err := b.session(clientID)
	if err != nil {
		return nil, 0, err
	}
	if id == "" {
		return nil, 0, missing("id")
	}

	doc, err := s.SyncDOM(ctx)
	if err != nil {
		return nil, 0, err
	}
	el, err := resolve.One(doc, id, nil)
	if err != nil {
		return nil, 0, err
	}
	seq := el.Seq()
	if seq < 0 {
		return nil, 0, fmt.Errorf("%w: %q has no live locator", ErrNotFound, id)
	}
	s.Registry.EnsureID(el)
	b.flush(s)
	return s, seq, nil
}

// LogsParams filters captured console output.
type LogsParams struct {
	ClientID string `json:"clientId" jsonschema:"required,Target page's client id"`
	Level    string `json:"level,omitempty" jsonschema:"error, warn, info, debug, or all (default)"`
	Limit    *int   `json:"limit,omitempty" jsonschema:"Keep the most recent N matches (default 100)"`
	Keyword  string `json:"keyword,omitempty" jsonschema:"Case-insensitive substring filter on the message"`
	Regex    string `json:"regex,omitempty" jsonschema:"Regular expression matched against message and stack"`
}

// LogsResult carries matching entries in chronological order.
type LogsResult struct {
	Logs []console.Entry `json:"logs"`
}

// ConsoleLogs queries the client's capture buffer.
func (b *Bridge) ConsoleLogs(_ context.Context, p LogsParams) (*LogsResult, error) {
	s, err := b.session(p.ClientID)
	if err != nil {
		return nil, err
	}

	level := p.Level
	if level == "" {
		level = "all"
	}
	switch level {
	case "all", "error", "warn", "info", "debug":
	default:
		return nil, &ValidationError{Field: "level", Msg: "must be error, warn, info, debug, or all"}
	}
	limit := DefaultLogLimit
	if p.Limit != nil {
		limit = *p.Limit
	}

	logs, err := s.Console.Query(level, limit, p.Keyword, p.Regex)
	if err != nil {
		return nil, &ValidationError{Field: "regex", Msg: err.Error()}
	}
	if logs == nil {
		logs = []console.Entry{}
	}
	return &LogsResult{Logs: logs}, nil
}

// ScreenshotParams parameterizes page-side rendering.
type ScreenshotParams struct {
	ClientID string   `json:"clientId" jsonschema:"required,Target page's client id"`
	Selector string   `json:"selector,omitempty" jsonschema:"Element id or CSS selector; omitted captures the viewport"`
	FullPage bool     `json:"fullPage,omitempty" jsonschema:"Capture the full scrollable page"`
	Format   string   `json:"format,omitempty" jsonschema:"png (default) or jpeg"`
	Quality  *float64 `json:"quality,omitempty" jsonschema:"Encoding quality 0..1 for lossy formats (default 0.9)"`
}

// ScreenshotResult is the rendered image with page context.
type ScreenshotResult struct {
	ImageBase64 string `json:"imageBase64"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	URL         string `json:"url"`
	Title       string `json:"title"`
}

// CaptureScreenshot renders the page (or one element) to an image on the
// client side. Rendering failures surface as call errors, unlike interaction
// failures: there is no partial result worth returning.
func (b *Bridge) CaptureScreenshot(ctx context.Context, p ScreenshotParams) (*ScreenshotResult, error) {
	s, err := b.session(p.ClientID)
	if err != nil {
		return nil, err
	}

	format := p.Format
	switch format {
	case "":
		format = DefaultImageFormat
	case "png", "jpeg":
	default:
		return nil, &ValidationError{Field: "format", Msg: `must be "png" or "jpeg"`}
	}
	quality := DefaultImageQuality
	if p.Quality != nil {
		quality = *p.Quality
	}
	if quality <= 0 || quality > 1 {
		return nil, &ValidationError{Field: "quality", Msg: "must be in (0, 1]"}
	}

	req := client.ScreenshotRequest{FullPage: p.FullPage, Format: format, Quality: quality}
	if p.Selector != "" {
		doc, err := s.SyncDOM(ctx)
		if err != nil {
			return nil, err
		}
		el, err := resolve.One(doc, p.Selector, nil)
		if err != nil {
			return nil, err
		}
		if el.Seq() < 0 {
			return nil, fmt.Errorf("%w: %q has no live locator", ErrNotFound, p.Selector)
		}
		req.Seq = el.Seq()
		s.Registry.EnsureID(el)
		b.flush(s)
	}

	res, err := s.Screenshot(ctx, req)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, fmt.Errorf("screenshot failed: %s", res.Error)
	}
	return &ScreenshotResult{
		ImageBase64: res.Image,
		Width:       res.Width,
		Height:      res.Height,
		URL:         res.URL,
		Title:       res.Title,
	}, nil
}

// ClientsResult enumerates connected pages.
type ClientsResult struct {
	Clients []client.Info `json:"clients"`
}

// ListClients reports every connected page.
func (b *Bridge) ListClients(_ context.Context) (*ClientsResult, error) {
	return &ClientsResult{Clients: b.hub.List()}, nil
}

// flush pushes pending id assignments to the page; losing one only delays
// the write-back to the next snapshot.
func (b *Bridge) flush(s *client.Session) {
	if err := s.FlushIDs(); err != nil {
		b.logger.Debug("id flush failed", "client", s.ID, "err", err)
	}
}
