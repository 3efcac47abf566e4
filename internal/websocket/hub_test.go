package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T, opts Options) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(opts, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, strings.TrimPrefix(r.URL.Path, "/"), nil)
	}))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = hub.Shutdown(ctx)
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, topic string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/"+topic, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestBroadcastIsScopedToTopic(t *testing.T) {
	hub, srv := newTestHub(t, DefaultOptions())
	editor := dial(t, srv, "editor")
	previewConn := dial(t, srv, "preview/abc")

	require.Eventually(t, func() bool {
		return hub.Count("editor") == 1 && hub.Count("preview/abc") == 1
	}, 2*time.Second, 10*time.Millisecond)

	n, err := hub.Broadcast("preview/abc", map[string]string{"type": "update", "markupText": "<p>"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = hub.Broadcast("editor", map[string]string{"type": "state"})
	require.NoError(t, err)

	assert.Equal(t, "update", readJSON(t, previewConn)["type"])
	assert.Equal(t, "state", readJSON(t, editor)["type"])

	n, err = hub.Broadcast("nobody", map[string]string{"type": "x"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBroadcastPreservesOrder(t *testing.T) {
	hub, srv := newTestHub(t, DefaultOptions())
	conn := dial(t, srv, "t")
	require.Eventually(t, func() bool { return hub.Count("t") == 1 }, 2*time.Second, 10*time.Millisecond)

	for i := 0; i < 20; i++ {
		_, err := hub.Broadcast("t", map[string]int{"seq": i})
		require.NoError(t, err)
	}
	for i := 0; i < 20; i++ {
		assert.EqualValues(t, i, readJSON(t, conn)["seq"])
	}
}

func TestInboundMessagesReachHandler(t *testing.T) {
	hub := NewHub(DefaultOptions(), nil)
	var mu sync.Mutex
	var got []string
	hub.OnMessage(func(ctx context.Context, c *Client, data []byte) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, c.Topic()+":"+string(data))
	})
	connected := make(chan *Client, 1)
	hub.OnConnect(func(c *Client) { connected <- c })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, "editor", nil)
	}))
	defer srv.Close()
	defer hub.Shutdown(context.Background())

	conn := dial(t, srv, "")
	client := <-connected
	assert.NotEmpty(t, client.ID())

	require.NoError(t, conn.Write(context.Background(), websocket.MessageText, []byte(`{"type":"edit"}`)))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0] == `editor:{"type":"edit"}`
	}, 2*time.Second, 10*time.Millisecond)
	assert.WithinDuration(t, time.Now(), client.LastActivity(), 2*time.Second)

	require.True(t, client.Send(map[string]string{"type": "direct"}))
	assert.Equal(t, "direct", readJSON(t, conn)["type"])
}

func TestRateLimitDisconnects(t *testing.T) {
	opts := DefaultOptions()
	opts.MessagesPerSecond = 1
	opts.Burst = 1
	hub, srv := newTestHub(t, opts)
	conn := dial(t, srv, "editor")
	require.Eventually(t, func() bool { return hub.Count("editor") == 1 }, 2*time.Second, 10*time.Millisecond)

	for i := 0; i < 3; i++ {
		_ = conn.Write(context.Background(), websocket.MessageText, []byte(`{}`))
	}
	assert.Eventually(t, func() bool { return hub.Count("editor") == 0 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	assert.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))
}

func TestCloseTopic(t *testing.T) {
	hub, srv := newTestHub(t, DefaultOptions())
	left := make(chan string, 2)
	hub.OnDisconnect(func(c *Client) { left <- c.Topic() })

	a := dial(t, srv, "preview/old")
	dial(t, srv, "editor")
	require.Eventually(t, func() bool {
		return hub.Count("preview/old") == 1 && hub.Count("editor") == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, hub.CloseTopic("preview/old", "context released"))
	assert.Equal(t, 0, hub.Count("preview/old"))
	assert.Equal(t, 1, hub.Count("editor"))
	assert.Equal(t, "preview/old", <-left)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := a.Read(ctx)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}

func TestShutdownRejectsNewClients(t *testing.T) {
	hub, srv := newTestHub(t, DefaultOptions())
	conn := dial(t, srv, "editor")
	go func() { _, _, _ = conn.Read(context.Background()) }()
	require.Eventually(t, func() bool { return hub.Count("editor") == 1 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, hub.Shutdown(ctx))
	assert.True(t, hub.IsShutdown())
	assert.Equal(t, 0, hub.Count("editor"))

	resp, err := http.Get(srv.URL + "/editor")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
