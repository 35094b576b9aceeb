package client

import (
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Info is the caller-visible summary of a connected page.
type Info struct {
	ClientID    string    `json:"clientId"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// Hub indexes live sessions by client id.
type Hub struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	logCapacity int
	logger      *slog.Logger

	upgrader websocket.Upgrader
}

// NewHub returns an empty hub. logCapacity sizes each session's console ring.
func NewHub(logCapacity int) *Hub {
	return &Hub{
		sessions:    make(map[string]*Session),
		logCapacity: logCapacity,
		logger:      slog.Default().With("component", "hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1 << 16,
			WriteBufferSize: 1 << 16,
			// Pages register from their own origin; the bridge is
			// origin-agnostic by design.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Get returns the session for a client id.
func (h *Hub) Get(clientID string) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[clientID]
	return s, ok
}

// List returns connected clients, stable-ordered by connect time.
func (h *Hub) List() []Info {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Info, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, Info{
			ClientID:    s.ID,
			URL:         s.URL,
			Title:       s.Title,
			ConnectedAt: s.ConnectedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ClientID < out[j].ClientID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

// Register installs a session, displacing any previous connection that
// claimed the same client id (a page reload reconnects before the stale
// socket times out).
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	old := h.sessions[s.ID]
	h.sessions[s.ID] = s
	h.mu.Unlock()

	if old != nil {
		old.Close()
	}
	h.logger.Info("client connected", "client", s.ID, "url", s.URL)
}

// Unregister removes the session if it is still the registered one.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	if h.sessions[s.ID] == s {
		delete(h.sessions, s.ID)
	}
	h.mu.Unlock()

	s.Close()
	h.logger.Info("client disconnected", "client", s.ID)
}

// ServeWS upgrades an incoming page connection and runs its read loop until
// the socket drops. The first frame must be a hello; the assigned client id
// is echoed back so the page can display or persist it.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	var first Message
	if err := conn.ReadJSON(&first); err != nil || first.Type != MsgHello || first.Hello == nil {
		h.logger.Warn("client did not hello", "err", err)
		return
	}

	clientID := first.Hello.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	}

	session := NewSession(clientID, first.Hello, conn, h.logCapacity)
	h.Register(session)
	defer h.Unregister(session)

	// Acknowledge registration with the canonical client id.
	ack := Message{Type: MsgHello, Hello: &HelloPayload{ClientID: clientID}}
	if err := conn.WriteJSON(ack); err != nil {
		return
	}

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("read loop ended", "client", clientID, "err", err)
			}
			return
		}
		session.HandleMessage(&msg)
	}
}
