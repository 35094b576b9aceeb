// Package client tracks connected pages and speaks the websocket bridge
// protocol with them. Each page gets a Session owning its console buffer,
// identifier registry, and the latest DOM mirror; commands round-trip through
// a pending-request table keyed by correlation id.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/devpilot/devpilot/internal/console"
	"github.com/devpilot/devpilot/internal/dom"
	"github.com/devpilot/devpilot/internal/ids"
)

// ErrClosed is returned for operations on a disconnected session.
var ErrClosed = errors.New("client disconnected")

// Transport is the write side of the page connection. *websocket.Conn
// satisfies it; tests substitute a recorder.
type Transport interface {
	WriteJSON(v any) error
}

type pendingCall struct {
	resolve chan *Message
	reject  chan error
}

// Session is one connected page.
type Session struct {
	ID          string
	URL         string
	Title       string
	UserAgent   string
	ConnectedAt time.Time

	Console  *console.Buffer
	Registry *ids.Registry

	conn   Transport
	logger *slog.Logger

	mu      sync.Mutex
	pending map[int]*pendingCall
	nextID  int
	doc     *dom.Document
	closed  bool
}

// NewSession wraps an accepted page connection. The registry and console
// buffer are fresh: a reconnect is a new page load.
func NewSession(id string, hello *HelloPayload, conn Transport, logCapacity int) *Session {
	s := &Session{
		ID:          id,
		ConnectedAt: time.Now(),
		Console:     console.NewBuffer(logCapacity),
		Registry:    ids.New(),
		conn:        conn,
		pending:     make(map[int]*pendingCall),
		logger:      slog.Default().With("component", "client", "client", id),
	}
	if hello != nil {
		s.URL = hello.URL
		s.Title = hello.Title
		s.UserAgent = hello.UserAgent
	}
	return s
}

// HandleMessage dispatches one inbound frame from the page's read loop.
func (s *Session) HandleMessage(msg *Message) {
	switch msg.Type {
	case MsgConsole:
		if msg.Console == nil {
			return
		}
		ts := time.Now()
		if msg.Console.TimeMS > 0 {
			ts = time.UnixMilli(msg.Console.TimeMS)
		}
		s.Console.Append(console.Entry{
			Time:     ts,
			Level:    normalizeLevel(msg.Console.Level),
			Message:  msg.Console.Message,
			Stack:    msg.Console.Stack,
			ClientID: s.ID,
		})
	case MsgDOM, MsgResult:
		s.mu.Lock()
		call, ok := s.pending[msg.ID]
		delete(s.pending, msg.ID)
		s.mu.Unlock()
		if ok {
			call.resolve <- msg
		} else {
			s.logger.Debug("unmatched response", "id", msg.ID, "type", msg.Type)
		}
	default:
		s.logger.Debug("unknown message type", "type", msg.Type)
	}
}

// Close rejects all in-flight calls and marks the session unusable.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, call := range s.pending {
		delete(s.pending, id)
		call.reject <- ErrClosed
	}
}

// call sends a command and waits for the page's correlated answer. The
// caller's context owns the timeout; there is no internal retry.
func (s *Session) call(ctx context.Context, cmd Command) (*Message, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.nextID++
	cmd.ID = s.nextID
	pc := &pendingCall{
		resolve: make(chan *Message, 1),
		reject:  make(chan error, 1),
	}
	s.pending[cmd.ID] = pc
	err := s.conn.WriteJSON(cmd)
	s.mu.Unlock()

	if err != nil {
		s.mu.Lock()
		delete(s.pending, cmd.ID)
		s.mu.Unlock()
		return nil, fmt.Errorf("send %s: %w", cmd.Type, err)
	}

	select {
	case msg := <-pc.resolve:
		return msg, nil
	case err := <-pc.reject:
		return nil, err
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.pending, cmd.ID)
		s.mu.Unlock()
		return nil, ctx.Err()
	}
}

// SyncDOM asks the page for a fresh serialization, parses it, and rebinds
// the identifier registry. Every tool call that reads the DOM starts here:
// the mirror is a snapshot of a single instant, never cached across calls.
func (s *Session) SyncDOM(ctx context.Context) (*dom.Document, error) {
	msg, err := s.call(ctx, Command{Type: CmdDOMRequest})
	if err != nil {
		return nil, err
	}
	if msg.DOM == nil {
		if msg.Result != nil && msg.Result.Error != "" {
			return nil, fmt.Errorf("dom_request failed: %s", msg.Result.Error)
		}
		return nil, errors.New("page answered dom_request without a document")
	}

	doc, err := dom.Parse(msg.DOM.HTML, decodeRects(msg.DOM.Rects), msg.DOM.URL, msg.DOM.Title)
	if err != nil {
		return nil, fmt.Errorf("parse page dom: %w", err)
	}

	s.mu.Lock()
	s.doc = doc
	s.URL = msg.DOM.URL
	s.Title = msg.DOM.Title
	s.mu.Unlock()

	s.Registry.Rebind(doc)
	return doc, nil
}

// Document returns the last synced mirror, or nil before the first sync.
func (s *Session) Document() *dom.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Click dispatches a click on the element with the given serial.
func (s *Session) Click(ctx context.Context, seq int) (*ResultPayload, error) {
	return s.action(ctx, Command{Type: CmdClick, Seq: seq})
}

// Input sets the element's value and fires the page's change notifications.
func (s *Session) Input(ctx context.Context, seq int, text string) (*ResultPayload, error) {
	return s.action(ctx, Command{Type: CmdInput, Seq: seq, Text: text})
}

// Scroll scrolls the element into view with the requested behavior.
func (s *Session) Scroll(ctx context.Context, seq int, behavior string) (*ResultPayload, error) {
	return s.action(ctx, Command{Type: CmdScroll, Seq: seq, Behavior: behavior})
}

// Screenshot asks the page to render itself (or one element) to an image.
func (s *Session) Screenshot(ctx context.Context, req ScreenshotRequest) (*ResultPayload, error) {
	return s.action(ctx, Command{Type: CmdScreenshot, Screenshot: &req})
}

func (s *Session) action(ctx context.Context, cmd Command) (*ResultPayload, error) {
	msg, err := s.call(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if msg.Result == nil {
		return nil, fmt.Errorf("page answered %s without a result", cmd.Type)
	}
	return msg.Result, nil
}

// FlushIDs pushes freshly assigned identifiers onto the live page so the
// next serialization carries them. Fire-and-forget: losing a flush only
// means the ids get re-sent after the next snapshot.
func (s *Session) FlushIDs() error {
	pending := s.Registry.TakePending()
	if len(pending) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(pending))
	for seq, id := range pending {
		attrs[strconv.Itoa(seq)] = id
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.conn.WriteJSON(Command{Type: CmdSetAttrs, Attrs: attrs})
}

func normalizeLevel(level string) string {
	switch level {
	case "error", "warn", "info", "debug":
		return level
	case "warning":
		return "warn"
	case "log":
		return "info"
	default:
		return "info"
	}
}
