package websocket

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/time/rate"
)

// Client is one WebSocket connection subscribed to a topic.
type Client struct {
	id           string
	topic        string
	conn         *websocket.Conn
	send         chan []byte
	closed       chan struct{}
	closeOnce    sync.Once
	limiter      *rate.Limiter
	lastActivity atomic.Int64
}

// ID returns the unique client id.
func (c *Client) ID() string { return c.id }

// Topic returns the topic the client is subscribed to.
func (c *Client) Topic() string { return c.topic }

// LastActivity returns when the client last sent a message.
func (c *Client) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

// Send marshals v and queues it for this client only.
func (c *Client) Send(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return c.enqueue(data)
}

func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() { close(c.closed) })
}
