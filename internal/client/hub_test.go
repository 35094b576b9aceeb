package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubRegisterGetList(t *testing.T) {
	h := NewHub(100)

	a := NewSession("a", &HelloPayload{URL: "https://a.test", Title: "A"}, &fakeConn{}, 100)
	b := NewSession("b", &HelloPayload{URL: "https://b.test", Title: "B"}, &fakeConn{}, 100)
	a.ConnectedAt = time.Now().Add(-time.Minute)
	h.Register(a)
	h.Register(b)

	got, ok := h.Get("a")
	require.True(t, ok)
	assert.Same(t, a, got)

	list := h.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ClientID, "oldest connection first")
	assert.Equal(t, "https://b.test", list[1].URL)

	h.Unregister(a)
	_, ok = h.Get("a")
	assert.False(t, ok)
}

func TestReconnectDisplacesStaleSession(t *testing.T) {
	h := NewHub(100)

	stale := NewSession("c", &HelloPayload{}, &fakeConn{}, 100)
	fresh := NewSession("c", &HelloPayload{}, &fakeConn{}, 100)
	h.Register(stale)
	h.Register(fresh)

	got, ok := h.Get("c")
	require.True(t, ok)
	assert.Same(t, fresh, got)

	// The displaced session is closed and rejects further calls.
	_, err := stale.Click(t.Context(), 1)
	assert.ErrorIs(t, err, ErrClosed)

	// Unregistering the stale one must not evict the fresh session.
	h.Unregister(stale)
	_, ok = h.Get("c")
	assert.True(t, ok)
}
