package network

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/MRamiBalles/agentia/internal/events"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Filter selects events by actor, target, type and tick. Empty fields match everything.
type Filter struct {
	Agent string
	Type  events.EventType
	Tick  *int64
}

// ParseFilter reads agent, type and tick from query parameters.
// An unparsable tick is ignored.
func ParseFilter(q url.Values) Filter {
	f := Filter{
		Agent: q.Get("agent"),
		Type:  events.EventType(strings.ToUpper(q.Get("type"))),
	}
	if s := q.Get("tick"); s != "" {
		if tick, err := strconv.ParseInt(s, 10, 64); err == nil {
			f.Tick = &tick
		}
	}
	return f
}

// Match reports whether e passes the filter. An agent matches as actor or target.
func (f Filter) Match(e events.GameEvent) bool {
	if f.Agent != "" && e.ActorID != f.Agent && e.TargetID != f.Agent {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Tick != nil && e.Tick != *f.Tick {
		return false
	}
	return true
}

// String describes the filter for logs.
func (f Filter) String() string {
	var parts []string
	if f.Agent != "" {
		parts = append(parts, "agent="+f.Agent)
	}
	if f.Type != "" {
		parts = append(parts, "type="+string(f.Type))
	}
	if f.Tick != nil {
		parts = append(parts, "tick="+strconv.FormatInt(*f.Tick, 10))
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, " ")
}

// Client is one connected observer.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	filter Filter
}

// NewClient creates a new WebSocket client and returns it.
func NewClient(hub *Hub, conn *websocket.Conn, filter Filter) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, hub.opts.ClientBuffer),
		filter: filter,
	}
}

// ReadPump keeps the connection alive and notices when the observer leaves.
// Observers are read-only, so anything they send is discarded.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("observer read failed", zap.Error(err))
			}
			return
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
// Queued events are batched into one frame, one JSON document per line.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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
