package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubBroadcastReachesClient(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dialHub(t, srv)
	require.Eventually(t, func() bool { return hub.Count() == 1 },
		5*time.Second, 10*time.Millisecond)

	hub.Broadcast(EventScore, map[string]float64{"score": 82})

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(msg, &env))
	assert.Equal(t, EventScore, env.Event)
	data, ok := env.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 82.0, data["score"])
}

func TestHubCountTracksDisconnects(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dialHub(t, srv)
	require.Eventually(t, func() bool { return hub.Count() == 1 },
		5*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Count() == 0 },
		5*time.Second, 10*time.Millisecond)
}

func TestHubRunClosesClientsOnShutdown(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx) //nolint:errcheck
	}()

	conn := dialHub(t, srv)
	require.Eventually(t, func() bool { return hub.Count() == 1 },
		5*time.Second, 10*time.Millisecond)

	cancel()
	<-done
	assert.Zero(t, hub.Count())

	// The client observes a close frame rather than a hard drop.
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNoStatusReceived) ||
		websocket.IsUnexpectedCloseError(err))
}

func TestHubBroadcastWithNoClients(t *testing.T) {
	NewHub().Broadcast(EventAlert, nil)
}
