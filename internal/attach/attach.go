// Package attach drives a Chrome tab as a connected page. It opens the
// target URL under DevTools control, registers with the bridge over
// websocket, and answers inspection and interaction commands against the
// live document. Console output and uncaught exceptions are forwarded as
// they happen.
package attach

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/gorilla/websocket"

	"github.com/devpilot/devpilot/internal/client"
)

// Options configures one attached page.
type Options struct {
	ServerURL string // websocket endpoint, e.g. ws://localhost:4330/ws
	TargetURL string // page to open and expose
	ClientID  string // optional; the server assigns one when empty
	Headless  bool
}

// Agent is one Chrome tab bound to the bridge.
type Agent struct {
	logger *slog.Logger

	connMu sync.Mutex
	conn   *websocket.Conn
}

// Run opens the page, registers with the bridge, and serves commands until
// ctx is cancelled or either connection drops.
func Run(ctx context.Context, opts Options) error {
	if opts.ServerURL == "" {
		return fmt.Errorf("server url is required")
	}
	if opts.TargetURL == "" {
		return fmt.Errorf("target url is required")
	}

	a := &Agent{
		logger: slog.Default().With("component", "attach"),
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	// Console forwarding starts before navigation so early output is not
	// lost. Events arrive on chromedp's goroutine; they go through a channel
	// so the websocket write path stays single-threaded per frame.
	events := make(chan client.ConsolePayload, 256)
	chromedp.ListenTarget(browserCtx, func(ev any) {
		switch e := ev.(type) {
		case *runtime.EventConsoleAPICalled:
			select {
			case events <- consolePayload(e):
			default:
			}
		case *runtime.EventExceptionThrown:
			select {
			case events <- exceptionPayload(e):
			default:
			}
		}
	})

	var title string
	err := chromedp.Run(browserCtx,
		runtime.Enable(),
		chromedp.Navigate(opts.TargetURL),
		chromedp.WaitReady("body"),
		chromedp.Title(&title),
	)
	if err != nil {
		return fmt.Errorf("open %s: %w", opts.TargetURL, err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, opts.ServerURL, nil)
	if err != nil {
		return fmt.Errorf("connect bridge: %w", err)
	}
	defer conn.Close()
	a.conn = conn

	hello := client.Message{Type: client.MsgHello, Hello: &client.HelloPayload{
		ClientID:  opts.ClientID,
		URL:       opts.TargetURL,
		Title:     title,
		UserAgent: "devpilot-attach",
	}}
	if err := a.writeJSON(hello); err != nil {
		return fmt.Errorf("hello: %w", err)
	}

	var ack client.Message
	if err := conn.ReadJSON(&ack); err != nil || ack.Type != client.MsgHello || ack.Hello == nil {
		return fmt.Errorf("bridge did not acknowledge hello: %w", err)
	}
	a.logger.Info("registered", "client", ack.Hello.ClientID, "url", opts.TargetURL)

	go a.forwardConsole(ctx, events)

	// The read loop runs on its own goroutine so ctx cancellation can
	// unblock the wait below.
	readErr := make(chan error, 1)
	go func() { readErr <- a.serve(browserCtx) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-readErr:
		return err
	}
}

func (a *Agent) serve(browserCtx context.Context) error {
	for {
		var cmd client.Command
		if err := a.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("bridge connection lost: %w", err)
		}
		a.handle(browserCtx, cmd)
	}
}

func (a *Agent) handle(browserCtx context.Context, cmd client.Command) {
	ctx, cancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer cancel()

	switch cmd.Type {
	case client.CmdDOMRequest:
		a.answerDOM(ctx, cmd.ID)
	case client.CmdClick:
		a.answerAction(ctx, cmd.ID, clickScript(cmd.Seq))
	case client.CmdInput:
		a.answerAction(ctx, cmd.ID, inputScript(cmd.Seq, cmd.Text))
	case client.CmdScroll:
		a.answerAction(ctx, cmd.ID, scrollScript(cmd.Seq, cmd.Behavior))
	case client.CmdScreenshot:
		a.answerScreenshot(ctx, cmd)
	case client.CmdSetAttrs:
		// Fire-and-forget id write-back; no answer expected.
		if err := chromedp.Run(ctx, chromedp.Evaluate(setAttrsScript(cmd.Attrs), nil)); err != nil {
			a.logger.Debug("set_attrs failed", "err", err)
		}
	default:
		a.logger.Debug("unknown command", "type", cmd.Type)
	}
}

func (a *Agent) answerDOM(ctx context.Context, id int) {
	var raw string
	if err := chromedp.Run(ctx, chromedp.Evaluate(serializeScript, &raw)); err != nil {
		a.logger.Warn("serialize failed", "err", err)
		a.reply(client.Message{Type: client.MsgResult, ID: id, Result: &client.ResultPayload{
			Success: false, Error: err.Error(),
		}})
		return
	}
	msg := domReply(id, raw)
	if msg.Type == client.MsgResult {
		a.logger.Warn("serialize produced bad json", "err", msg.Result.Error)
	}
	a.reply(msg)
}

// domReply turns one serialize eval result into the frame to send back. The
// server has a call waiting on this correlation id, so a result that does not
// decode still gets an answer instead of leaving the call to time out.
func domReply(id int, raw string) client.Message {
	var payload client.DOMPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return client.Message{Type: client.MsgResult, ID: id, Result: &client.ResultPayload{
			Success: false,
			Error:   fmt.Sprintf("bad serialize result: %v", err),
		}}
	}
	return client.Message{Type: client.MsgDOM, ID: id, DOM: &payload}
}

func (a *Agent) answerAction(ctx context.Context, id int, script string) {
	res := client.ResultPayload{Success: false}
	var raw string
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &raw)); err != nil {
		res.Error = err.Error()
	} else if err := json.Unmarshal([]byte(raw), &res); err != nil {
		res.Error = fmt.Sprintf("bad action result: %v", err)
	}
	a.reply(client.Message{Type: client.MsgResult, ID: id, Result: &res})
}

func (a *Agent) answerScreenshot(ctx context.Context, cmd client.Command) {
	req := cmd.Screenshot
	if req == nil {
		req = &client.ScreenshotRequest{}
	}

	res := client.ResultPayload{}
	img, w, h, err := a.capture(ctx, req)
	if err != nil {
		res.Error = err.Error()
	} else {
		res.Success = true
		res.Image = base64.StdEncoding.EncodeToString(img)
		res.Width = w
		res.Height = h

		var vp viewportInfo
		var raw string
		if err := chromedp.Run(ctx, chromedp.Evaluate(viewportScript, &raw)); err == nil {
			if json.Unmarshal([]byte(raw), &vp) == nil {
				res.URL = vp.URL
				res.Title = vp.Title
			}
		}
	}
	a.reply(client.Message{Type: client.MsgResult, ID: cmd.ID, Result: &res})
}

type viewportInfo struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	URL    string `json:"url"`
	Title  string `json:"title"`
}

type clipRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// capture renders the viewport, the full page, or one element.
func (a *Agent) capture(ctx context.Context, req *client.ScreenshotRequest) ([]byte, int, int, error) {
	format := page.CaptureScreenshotFormatPng
	if req.Format == "jpeg" {
		format = page.CaptureScreenshotFormatJpeg
	}

	params := page.CaptureScreenshot().WithFormat(format).WithFromSurface(true)
	if req.Format == "jpeg" {
		q := req.Quality
		if q <= 0 || q > 1 {
			q = 0.9
		}
		params = params.WithQuality(int64(q * 100))
	}

	var width, height int
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		switch {
		case req.Seq > 0:
			var raw string
			if err := chromedp.Evaluate(elementClipScript(req.Seq), &raw).Do(ctx); err != nil {
				return err
			}
			var clipPtr *clipRect
			if err := json.Unmarshal([]byte(raw), &clipPtr); err != nil || clipPtr == nil {
				return fmt.Errorf("element no longer in document")
			}
			clip := *clipPtr
			if clip.Width <= 0 || clip.Height <= 0 {
				return fmt.Errorf("element has no rendered area")
			}
			params = params.WithCaptureBeyondViewport(true).WithClip(&page.Viewport{
				X: clip.X, Y: clip.Y, Width: clip.Width, Height: clip.Height, Scale: 1,
			})
			width, height = int(clip.Width), int(clip.Height)
		case req.FullPage:
			var raw string
			if err := chromedp.Evaluate(fullPageClipScript, &raw).Do(ctx); err != nil {
				return err
			}
			var clip clipRect
			if err := json.Unmarshal([]byte(raw), &clip); err != nil {
				return err
			}
			params = params.WithCaptureBeyondViewport(true).WithClip(&page.Viewport{
				X: 0, Y: 0, Width: clip.Width, Height: clip.Height, Scale: 1,
			})
			width, height = int(clip.Width), int(clip.Height)
		default:
			var raw string
			if err := chromedp.Evaluate(viewportScript, &raw).Do(ctx); err != nil {
				return err
			}
			var vp viewportInfo
			if err := json.Unmarshal([]byte(raw), &vp); err != nil {
				return err
			}
			width, height = vp.Width, vp.Height
		}
		return nil
	}))
	if err != nil {
		return nil, 0, 0, err
	}

	var buf []byte
	err = chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = params.Do(ctx)
		return err
	}))
	if err != nil {
		return nil, 0, 0, err
	}
	return buf, width, height, nil
}

func (a *Agent) forwardConsole(ctx context.Context, events <-chan client.ConsolePayload) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			msg := client.Message{Type: client.MsgConsole, Console: &e}
			if err := a.writeJSON(msg); err != nil {
				return
			}
		}
	}
}

func (a *Agent) reply(msg client.Message) {
	if err := a.writeJSON(msg); err != nil {
		a.logger.Debug("reply failed", "type", msg.Type, "err", err)
	}
}

func (a *Agent) writeJSON(v any) error {
	a.connMu.Lock()
	defer a.connMu.Unlock()
	return a.conn.WriteJSON(v)
}

// consolePayload flattens a console API call into one message line.
func consolePayload(ev *runtime.EventConsoleAPICalled) client.ConsolePayload {
	parts := make([]string, 0, len(ev.Args))
	for _, arg := range ev.Args {
		parts = append(parts, remoteObjectString(arg))
	}
	return client.ConsolePayload{
		Level:   string(ev.Type),
		Message: strings.Join(parts, " "),
		TimeMS:  int64(ev.Timestamp.Time().UnixMilli()),
	}
}

// exceptionPayload renders an uncaught exception as an error entry with its
// stack attached.
func exceptionPayload(ev *runtime.EventExceptionThrown) client.ConsolePayload {
	d := ev.ExceptionDetails
	msg := d.Text
	if d.Exception != nil {
		if desc := d.Exception.Description; desc != "" {
			msg = desc
		}
	}

	var stack string
	if d.StackTrace != nil {
		var b strings.Builder
		for _, f := range d.StackTrace.CallFrames {
			fmt.Fprintf(&b, "at %s (%s:%d:%d)\n", f.FunctionName, f.URL, f.LineNumber, f.ColumnNumber)
		}
		stack = strings.TrimRight(b.String(), "\n")
	}

	return client.ConsolePayload{
		Level:   "error",
		Message: msg,
		Stack:   stack,
		TimeMS:  int64(ev.Timestamp.Time().UnixMilli()),
	}
}

// remoteObjectString renders one console argument the way DevTools would.
func remoteObjectString(o *runtime.RemoteObject) string {
	if o == nil {
		return ""
	}
	if o.Value != nil {
		var v any
		if err := json.Unmarshal(o.Value, &v); err == nil {
			if s, ok := v.(string); ok {
				return s
			}
			if b, err := json.Marshal(v); err == nil {
				return string(b)
			}
		}
		return string(o.Value)
	}
	if o.Description != "" {
		return o.Description
	}
	return string(o.Type)
}
