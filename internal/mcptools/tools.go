// Package mcptools exposes the inspection bridge as MCP tools. Every tool
// takes a clientId: the model first calls list_clients, then addresses one
// connected page per call.
package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/devpilot/devpilot/internal/bridge"
)

const serverVersion = "1.0.0"

// NewServer creates an MCP server with all page inspection tools registered.
func NewServer(b *bridge.Bridge) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "devpilot",
		Version: serverVersion,
	}, nil)

	registerListClients(server, b)
	registerPageSnapshot(server, b)
	registerVisualHierarchy(server, b)
	registerElementDetails(server, b)
	registerClickElement(server, b)
	registerInputText(server, b)
	registerScrollToElement(server, b)
	registerConsoleLogs(server, b)
	registerCaptureScreenshot(server, b)

	return server
}

// Handler wraps the server as a streamable HTTP endpoint. The transport is
// stateless: each tool call carries its full routing in the params, so there
// is no per-session server state worth caching.
func Handler(b *bridge.Bridge) http.Handler {
	server := NewServer(b)
	return mcp.NewStreamableHTTPHandler(
		func(*http.Request) *mcp.Server { return server },
		&mcp.StreamableHTTPOptions{Stateless: true},
	)
}

func registerListClients(server *mcp.Server, b *bridge.Bridge) {
	mcp.AddTool(server, &mcp.Tool{
		Name:  "list_clients",
		Title: "List Connected Pages",
		Description: `List every page currently connected to the bridge.

Returns each page's clientId, URL, title, and connect time, oldest first.
Call this first: every other tool requires one of these clientIds.`,
	}, func(ctx context.Context, req *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
		out, err := b.ListClients(ctx)
		if err != nil {
			return nil, nil, err
		}
		return nil, out, nil
	})
}

func registerPageSnapshot(server *mcp.Server, b *bridge.Bridge) {
	mcp.AddTool(server, &mcp.Tool{
		Name:  "get_page_snapshot",
		Title: "Page Snapshot",
		Description: `Get a token-efficient text snapshot of the page's interactive structure.

One line per element: a stable id (e12), the accessibility role (or tag), and
a short label. Purely structural wrappers are collapsed so nesting stays
shallow. Ids remain valid for the lifetime of the page and can be passed to
click_element, input_text, scroll_to_element, get_element_details, and
capture_screenshot.

Use maxDepth to bound the tree (default 5) and startNodeId to re-root the
snapshot at one element when drilling into a region.`,
	}, func(ctx context.Context, req *mcp.CallToolRequest, input bridge.SnapshotParams) (*mcp.CallToolResult, any, error) {
		out, err := b.PageSnapshot(ctx, input)
		if err != nil {
			return nil, nil, err
		}
		return nil, out, nil
	})
}

func registerVisualHierarchy(server *mcp.Server, b *bridge.Bridge) {
	mcp.AddTool(server, &mcp.Tool{
		Name:  "get_visual_hierarchy",
		Title: "Visual Hierarchy",
		Description: `Analyze which nested elements fully cover their container's box.

Walks down from elementId (default body) and reports, level by level, the
elements whose bounding box covers the nearest rendered ancestor's box. This
finds the element that actually paints a region: overlays, full-bleed
sections, and wrappers that own the visible area. maxDepth defaults to 15.`,
	}, func(ctx context.Context, req *mcp.CallToolRequest, input bridge.HierarchyParams) (*mcp.CallToolResult, any, error) {
		out, err := b.VisualHierarchy(ctx, input)
		if err != nil {
			return nil, nil, err
		}
		return nil, out, nil
	})
}

func registerElementDetails(server *mcp.Server, b *bridge.Bridge) {
	mcp.AddTool(server, &mcp.Tool{
		Name:  "get_element_details",
		Title: "Element Details",
		Description: `Inspect elements matching an id or CSS selector in depth.

Every match is returned with its tag, attributes, bounding box, accessibility
role, name, value, and description. Set includeChildren to also get each
match's accessibility subtree (maxDepth defaults to 5). Zero matches is an
error; use get_page_snapshot first to find ids.`,
	}, func(ctx context.Context, req *mcp.CallToolRequest, input bridge.DetailsParams) (*mcp.CallToolResult, any, error) {
		out, err := b.ElementDetails(ctx, input)
		if err != nil {
			return nil, nil, err
		}
		return nil, out, nil
	})
}

func registerClickElement(server *mcp.Server, b *bridge.Bridge) {
	mcp.AddTool(server, &mcp.Tool{
		Name:  "click_element",
		Title: "Click Element",
		Description: `Click one element, addressed by stable id (e12) or CSS selector.

The target must match exactly one element. success=false in the result means
the element was found but the click did not take (for example a disabled
control); that is not a call error.`,
	}, func(ctx context.Context, req *mcp.CallToolRequest, input bridge.TargetParams) (*mcp.CallToolResult, any, error) {
		out, err := b.ClickElement(ctx, input)
		if err != nil {
			return nil, nil, err
		}
		return nil, out, nil
	})
}

func registerInputText(server *mcp.Server, b *bridge.Bridge) {
	mcp.AddTool(server, &mcp.Tool{
		Name:  "input_text",
		Title: "Input Text",
		Description: `Set the value of one input, textarea, or editable element.

The target must match exactly one element. The page fires its input and
change events afterwards so framework state stays in sync. success=false in
the result means the element rejected the input (read-only, disabled).`,
	}, func(ctx context.Context, req *mcp.CallToolRequest, input bridge.InputParams) (*mcp.CallToolResult, any, error) {
		out, err := b.InputText(ctx, input)
		if err != nil {
			return nil, nil, err
		}
		return nil, out, nil
	})
}

func registerScrollToElement(server *mcp.Server, b *bridge.Bridge) {
	mcp.AddTool(server, &mcp.Tool{
		Name:  "scroll_to_element",
		Title: "Scroll To Element",
		Description: `Scroll the page until one element is in view.

behavior is "smooth" (animated, default) or "auto" (instant). The target must
match exactly one element.`,
	}, func(ctx context.Context, req *mcp.CallToolRequest, input bridge.ScrollParams) (*mcp.CallToolResult, any, error) {
		out, err := b.ScrollToElement(ctx, input)
		if err != nil {
			return nil, nil, err
		}
		return nil, out, nil
	})
}

func registerConsoleLogs(server *mcp.Server, b *bridge.Bridge) {
	mcp.AddTool(server, &mcp.Tool{
		Name:  "get_console_logs",
		Title: "Console Logs",
		Description: `Read the page's captured console output and uncaught errors.

Filters combine: level (error, warn, info, debug, or all), a case-insensitive
keyword over the message, and a regex matched against message and stack.
limit keeps the most recent N matches (default 100); entries come back oldest
first. The capture buffer holds the last 1000 entries per page.`,
	}, func(ctx context.Context, req *mcp.CallToolRequest, input bridge.LogsParams) (*mcp.CallToolResult, any, error) {
		out, err := b.ConsoleLogs(ctx, input)
		if err != nil {
			return nil, nil, err
		}
		return nil, out, nil
	})
}

func registerCaptureScreenshot(server *mcp.Server, b *bridge.Bridge) {
	mcp.AddTool(server, &mcp.Tool{
		Name:  "capture_screenshot",
		Title: "Capture Screenshot",
		Description: `Render the page, one element, or the full scrollable page to an image.

Omit selector to capture the viewport; set fullPage for the whole document.
format is png (default) or jpeg; quality applies to lossy formats (default
0.9). The image comes back base64-encoded with its pixel dimensions.`,
	}, func(ctx context.Context, req *mcp.CallToolRequest, input bridge.ScreenshotParams) (*mcp.CallToolResult, any, error) {
		out, err := b.CaptureScreenshot(ctx, input)
		if err != nil {
			return nil, nil, err
		}
		return nil, out, nil
	})
}
