// FilePath: internal/fanout/fanout.go

// Package fanout broadcasts lifecycle and telemetry events to connected
// observers. Delivery is best effort: publishing never blocks a caller and
// a slow observer gets dropped messages, not backpressure. Fan-out is never
// part of any transactional boundary.
package fanout

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	nuts "github.com/vaudience/go-nuts"
)

// Publisher is the single logical broadcast point consumed by services.
type Publisher interface {
	Publish(event string, payload any)
}

// Envelope is the wire format delivered to observers.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	TS    int64           `json:"ts"` // unix milliseconds
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	publishTimeout = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboards connect cross-origin; access control is handled upstream.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub owns the set of connected websocket observers. When a redis client
// and channel are configured, events are bridged through redis pub/sub so
// every horizontally scaled instance delivers every event locally.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}
	queueSize  int

	rdb     *redis.Client
	channel string
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub. rdb may be nil; events then stay instance-local.
func NewHub(rdb *redis.Client, channel string, queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, queueSize),
		done:       make(chan struct{}),
		queueSize:  queueSize,
		rdb:        rdb,
		channel:    channel,
	}
}

// Run drives the hub loop until ctx is cancelled. Call in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil && h.channel != "" {
		go h.runBridge(ctx)
	}

	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			nuts.L.Debugf("[Fanout] Observer connected (%d total)", len(h.clients))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// slow observer: drop it rather than block the hub
					delete(h.clients, c)
					close(c.send)
				}
			}
		case <-ctx.Done():
			close(h.done)
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return
		}
	}
}

// release hands a client back to the hub loop. After shutdown the loop no
// longer drains unregister, so the send must not block connection teardown.
func (h *Hub) release(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish broadcasts one event. It never blocks and never returns an error;
// failures are logged and swallowed.
func (h *Hub) Publish(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		nuts.L.Errorf("[Fanout] Failed to marshal %s payload: %v", event, err)
		return
	}
	env := Envelope{Event: event, Data: data, TS: time.Now().UnixMilli()}
	raw, err := json.Marshal(env)
	if err != nil {
		nuts.L.Errorf("[Fanout] Failed to marshal %s envelope: %v", event, err)
		return
	}

	if h.rdb != nil && h.channel != "" {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := h.rdb.Publish(ctx, h.channel, raw).Err(); err != nil {
			nuts.L.Warnf("[Fanout] Redis bridge publish failed, delivering locally: %v", err)
			h.enqueue(raw)
		}
		// local delivery happens through the bridge subscription
		return
	}

	h.enqueue(raw)
}

func (h *Hub) enqueue(raw []byte) {
	select {
	case h.broadcast <- raw:
	default:
		nuts.L.Warnf("[Fanout] Broadcast queue full, dropping event")
	}
}

// runBridge replays events published by any instance into the local hub.
func (h *Hub) runBridge(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, h.channel)
	defer pubsub.Close()

	nuts.L.Infof("[Fanout] Bridging events via redis channel %s", h.channel)
	for {
		select {
		case msg, ok := <-pubsub.Channel():
			if !ok {
				return
			}
			h.enqueue([]byte(msg.Payload))
		case <-ctx.Done():
			return
		}
	}
}

// ServeWS upgrades an HTTP request to a websocket observer connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		nuts.L.Warnf("[Fanout] Websocket upgrade failed: %v", err)
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, h.queueSize)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (c *client) readPump() {
	defer func() {
		c.hub.release(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		// observers only receive; inbound frames are drained for control flow
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
