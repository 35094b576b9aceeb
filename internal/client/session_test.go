package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devpilot/devpilot/internal/dom"
)

// fakeConn records written commands and lets tests answer them.
type fakeConn struct {
	mu   sync.Mutex
	sent []Command
}

func (f *fakeConn) WriteJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd, ok := v.(Command)
	if !ok {
		return errors.New("unexpected frame type")
	}
	f.sent = append(f.sent, cmd)
	return nil
}

func (f *fakeConn) last() Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

func newTestSession() (*Session, *fakeConn) {
	conn := &fakeConn{}
	s := NewSession("c1", &HelloPayload{URL: "https://x.test", Title: "x"}, conn, 100)
	return s, conn
}

func TestSyncDOMParsesAndRebinds(t *testing.T) {
	s, conn := newTestSession()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Wait for the dom_request, then answer it.
		for {
			conn.mu.Lock()
			n := len(conn.sent)
			conn.mu.Unlock()
			if n > 0 {
				break
			}
			time.Sleep(time.Millisecond)
		}
		req := conn.last()
		s.HandleMessage(&Message{
			Type: MsgDOM,
			ID:   req.ID,
			DOM: &DOMPayload{
				HTML:  `<body data-devpilot-seq="0"><button data-devpilot-seq="1" data-devpilot-id="e3">Go</button></body>`,
				Rects: map[string]dom.Rect{"1": {X: 1, Y: 2, Width: 3, Height: 4}},
				URL:   "https://x.test/next",
				Title: "next",
			},
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	doc, err := s.SyncDOM(ctx)
	require.NoError(t, err)
	<-done

	assert.Equal(t, "https://x.test/next", s.URL)

	el, ok := doc.BySeq(1)
	require.True(t, ok)
	assert.Equal(t, dom.Rect{X: 1, Y: 2, Width: 3, Height: 4}, el.Rect())

	// Rebind picked up the existing id and seeded the counter past it.
	bound, ok := s.Registry.Lookup("e3")
	require.True(t, ok)
	assert.Equal(t, "button", bound.Tag())
	body, _ := doc.BySeq(0)
	assert.Equal(t, "e4", s.Registry.EnsureID(body))
}

func TestSyncDOMSurfacesPageFailure(t *testing.T) {
	s, conn := newTestSession()

	go func() {
		for {
			conn.mu.Lock()
			n := len(conn.sent)
			conn.mu.Unlock()
			if n > 0 {
				break
			}
			time.Sleep(time.Millisecond)
		}
		req := conn.last()
		// A page that cannot serialize answers with a failed result on the
		// same correlation id instead of going silent.
		s.HandleMessage(&Message{
			Type:   MsgResult,
			ID:     req.ID,
			Result: &ResultPayload{Success: false, Error: "bad serialize result: unexpected end of JSON input"},
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.SyncDOM(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad serialize result")
}

func TestActionResultPassthrough(t *testing.T) {
	s, conn := newTestSession()

	go func() {
		for {
			conn.mu.Lock()
			n := len(conn.sent)
			conn.mu.Unlock()
			if n > 0 {
				break
			}
			time.Sleep(time.Millisecond)
		}
		req := conn.last()
		s.HandleMessage(&Message{
			Type:   MsgResult,
			ID:     req.ID,
			Result: &ResultPayload{Success: false, Error: "element is disabled"},
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := s.Click(ctx, 7)
	require.NoError(t, err, "action failure is a payload, not a call error")
	assert.False(t, res.Success)
	assert.Equal(t, "element is disabled", res.Error)
	assert.Equal(t, CmdClick, conn.last().Type)
	assert.Equal(t, 7, conn.last().Seq)
}

func TestCallHonorsContextCancellation(t *testing.T) {
	s, _ := newTestSession()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Click(ctx, 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The pending slot was reclaimed.
	s.mu.Lock()
	pending := len(s.pending)
	s.mu.Unlock()
	assert.Zero(t, pending)
}

func TestCloseRejectsInFlightCalls(t *testing.T) {
	s, _ := newTestSession()

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Click(context.Background(), 1)
		errCh <- err
	}()

	// Let the call register before closing.
	deadline := time.Now().Add(time.Second)
	for {
		s.mu.Lock()
		n := len(s.pending)
		s.mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	s.Close()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight call was not rejected")
	}

	_, err := s.Click(context.Background(), 1)
	require.ErrorIs(t, err, ErrClosed)
}

func TestConsoleEventsLandInBuffer(t *testing.T) {
	s, _ := newTestSession()

	s.HandleMessage(&Message{Type: MsgConsole, Console: &ConsolePayload{Level: "log", Message: "hello"}})
	s.HandleMessage(&Message{Type: MsgConsole, Console: &ConsolePayload{Level: "error", Message: "boom", Stack: "at x"}})

	entries, err := s.Console.Query("all", 0, "", "")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "info", entries[0].Level, "console.log normalizes to info")
	assert.Equal(t, "c1", entries[0].ClientID)
	assert.Equal(t, "error", entries[1].Level)
}

func TestFlushIDsSendsPendingAssignments(t *testing.T) {
	s, conn := newTestSession()

	doc, err := dom.Parse(`<body><input data-devpilot-seq="5"></body>`, nil, "", "")
	require.NoError(t, err)
	inputs, err := dom.QueryAll(doc.Root(), "input")
	require.NoError(t, err)
	id := s.Registry.EnsureID(inputs[0])

	require.NoError(t, s.FlushIDs())
	cmd := conn.last()
	assert.Equal(t, CmdSetAttrs, cmd.Type)
	assert.Equal(t, map[string]string{"5": id}, cmd.Attrs)

	// Nothing pending: no frame goes out.
	before := len(conn.sent)
	require.NoError(t, s.FlushIDs())
	assert.Equal(t, before, len(conn.sent))
}
