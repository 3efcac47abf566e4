// Package websocket fans JSON messages out to groups of browser connections
// and routes their inbound messages back to the server. Connections are
// grouped by topic: the editor page subscribes to one topic and every
// rendering context to its own.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/conneroisu/codepad/internal/logging"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// MessageHandler receives one inbound text message.
type MessageHandler func(ctx context.Context, client *Client, data []byte)

// ClientHook observes a client joining or leaving.
type ClientHook func(client *Client)

// Options configure the hub.
type Options struct {
	// MessagesPerSecond and Burst limit inbound messages per client. A
	// client exceeding the limit is disconnected. Zero disables limiting.
	MessagesPerSecond float64
	Burst             int
	// OriginPatterns are passed to websocket.Accept.
	OriginPatterns []string
	SendBuffer     int
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	WriteTimeout   time.Duration
}

// DefaultOptions returns the limits used by the server.
func DefaultOptions() Options {
	return Options{
		MessagesPerSecond: 50,
		Burst:             100,
		SendBuffer:        256,
		ReadTimeout:       60 * time.Second,
		PingInterval:      54 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Hub tracks clients by topic. Broadcasts are delivered to each client's
// send queue synchronously, so messages from one caller keep their order.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[string]*Client

	opts       Options
	onMessage  MessageHandler
	onConnect  ClientHook
	onLeave    ClientHook
	logger     logging.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	isShutdown atomic.Bool
	wg         sync.WaitGroup
}

// NewHub creates an empty hub.
func NewHub(opts Options, logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	def := DefaultOptions()
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = def.SendBuffer
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = def.ReadTimeout
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = def.PingInterval
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = def.WriteTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients: make(map[string]map[string]*Client),
		opts:    opts,
		logger:  logger.WithComponent("websocket"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// OnMessage sets the inbound message handler. Call before serving.
func (h *Hub) OnMessage(fn MessageHandler) { h.onMessage = fn }

// OnConnect sets a hook run after a client is registered.
func (h *Hub) OnConnect(fn ClientHook) { h.onConnect = fn }

// OnDisconnect sets a hook run after a client is unregistered.
func (h *Hub) OnDisconnect(fn ClientHook) { h.onLeave = fn }

// Serve upgrades the request and subscribes the connection to topic. It
// returns once the connection is registered; pumps run in the background.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, topic string, acceptOpts *websocket.AcceptOptions) {
	if h.isShutdown.Load() {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	if acceptOpts == nil {
		acceptOpts = &websocket.AcceptOptions{OriginPatterns: h.opts.OriginPatterns}
	}
	conn, err := websocket.Accept(w, r, acceptOpts)
	if err != nil {
		h.logger.Warn(r.Context(), err, "WebSocket upgrade failed",
			"remote_addr", r.RemoteAddr,
			"topic", topic,
		)
		return
	}

	client := &Client{
		id:     uuid.NewString(),
		topic:  topic,
		conn:   conn,
		send:   make(chan []byte, h.opts.SendBuffer),
		closed: make(chan struct{}),
	}
	if h.opts.MessagesPerSecond > 0 {
		burst := h.opts.Burst
		if burst <= 0 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(h.opts.MessagesPerSecond), burst)
	}
	client.touch()

	if !h.register(client) {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		return
	}

	h.wg.Add(2)
	go h.writePump(client)
	go h.readPump(client)

	if h.onConnect != nil {
		h.onConnect(client)
	}
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.isShutdown.Load() {
		return false
	}
	group, ok := h.clients[c.topic]
	if !ok {
		group = make(map[string]*Client)
		h.clients[c.topic] = group
	}
	group[c.id] = c
	h.logger.Debug(h.ctx, "WebSocket client connected",
		"client_id", c.id,
		"topic", c.topic,
		"topic_clients", len(group),
	)
	return true
}

// unregister removes c and closes its queue. It reports whether c was
// registered.
func (h *Hub) unregister(c *Client) bool {
	h.mu.Lock()
	group, ok := h.clients[c.topic]
	_, exists := group[c.id]
	if ok && exists {
		delete(group, c.id)
		if len(group) == 0 {
			delete(h.clients, c.topic)
		}
		c.shutdown()
	}
	h.mu.Unlock()

	if exists {
		h.logger.Debug(h.ctx, "WebSocket client disconnected",
			"client_id", c.id,
			"topic", c.topic,
		)
		if h.onLeave != nil {
			h.onLeave(c)
		}
	}
	return exists
}

// Broadcast marshals v and queues it for every client of topic. Clients
// whose queue is full are disconnected. It returns the number of clients
// the message was queued for.
func (h *Hub) Broadcast(topic string, v any) (int, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	return h.BroadcastRaw(topic, data), nil
}

// BroadcastRaw queues data for every client of topic.
func (h *Hub) BroadcastRaw(topic string, data []byte) int {
	h.mu.RLock()
	var slow []*Client
	sent := 0
	for _, c := range h.clients[topic] {
		if c.enqueue(data) {
			sent++
		} else {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn(h.ctx, nil, "Dropping slow WebSocket client", "client_id", c.id, "topic", topic)
		h.disconnect(c, websocket.StatusPolicyViolation, "send queue full")
	}
	return sent
}

// CloseTopic disconnects every client of topic.
func (h *Hub) CloseTopic(topic, reason string) int {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients[topic]))
	for _, c := range h.clients[topic] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.disconnect(c, websocket.StatusGoingAway, reason)
	}
	return len(clients)
}

// Count returns the number of clients subscribed to topic.
func (h *Hub) Count(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// Shutdown disconnects every client and waits for the pumps to exit or ctx
// to expire.
func (h *Hub) Shutdown(ctx context.Context) error {
	if !h.isShutdown.CompareAndSwap(false, true) {
		return nil
	}

	h.mu.RLock()
	var all []*Client
	for _, group := range h.clients {
		for _, c := range group {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range all {
		h.disconnect(c, websocket.StatusGoingAway, "Server shutdown")
	}
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		h.logger.Info(ctx, "WebSocket hub shut down", "clients", len(all))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsShutdown reports whether Shutdown has been called.
func (h *Hub) IsShutdown() bool {
	return h.isShutdown.Load()
}

// disconnect unregisters c at once and runs the close handshake in the
// background, since it waits on the peer.
func (h *Hub) disconnect(c *Client, code websocket.StatusCode, reason string) {
	if !h.unregister(c) {
		return
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		_ = c.conn.Close(code, reason)
	}()
}

func (h *Hub) readPump(c *Client) {
	defer h.wg.Done()
	defer h.disconnect(c, websocket.StatusNormalClosure, "")

	for {
		ctx, cancel := context.WithTimeout(h.ctx, h.opts.ReadTimeout)
		typ, data, err := c.conn.Read(ctx)
		cancel()
		if err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				h.logger.Debug(h.ctx, "WebSocket read ended", "client_id", c.id, "error", err.Error())
			}
			return
		}
		c.touch()

		if c.limiter != nil && !c.limiter.Allow() {
			h.logger.Warn(h.ctx, nil, "WebSocket message rate limit exceeded", "client_id", c.id)
			h.disconnect(c, websocket.StatusPolicyViolation, "rate limit exceeded")
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		if h.onMessage != nil {
			h.onMessage(h.ctx, c, data)
		}
	}
}

func (h *Hub) writePump(c *Client) {
	defer h.wg.Done()
	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			ctx, cancel := context.WithTimeout(h.ctx, h.opts.WriteTimeout)
			err := c.conn.Write(ctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				h.disconnect(c, websocket.StatusInternalError, "write failed")
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(h.ctx, h.opts.WriteTimeout)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				h.disconnect(c, websocket.StatusInternalError, "ping failed")
				return
			}

		case <-c.closed:
			return
		}
	}
}
