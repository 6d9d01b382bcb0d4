// Package network exposes a running simulation to observers: a websocket
// stream of world events and a small HTTP API for replays and stats.
// Observers are read-only; nothing here can change the world.
package network

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/MRamiBalles/agentia/internal/events"
	"github.com/MRamiBalles/agentia/internal/platform/logger"
	"github.com/MRamiBalles/agentia/internal/platform/metrics"
)

// Defaults for HubOptions.
const (
	DefaultBroadcastBuffer = 256
	DefaultClientBuffer    = 256
	DefaultPollInterval    = 200 * time.Millisecond
)

// HubOptions configures a Hub.
type HubOptions struct {
	BroadcastBuffer int
	ClientBuffer    int
	// MaxObservers refuses connections beyond this many. Zero means unlimited.
	MaxObservers int
	Stats        *metrics.Collector
	Logger       *logger.Logger
}

type outbound struct {
	event   events.GameEvent
	payload []byte
}

// Hub maintains the set of active observers and broadcasts events to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex
	opts       HubOptions
	upgrader   websocket.Upgrader
	stats      *metrics.Collector
	logger     *logger.Logger
}

// NewHub initializes a new WebSocket Hub.
func NewHub(opts HubOptions) *Hub {
	if opts.BroadcastBuffer <= 0 {
		opts.BroadcastBuffer = DefaultBroadcastBuffer
	}
	if opts.ClientBuffer <= 0 {
		opts.ClientBuffer = DefaultClientBuffer
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Hub{
		broadcast:  make(chan outbound, opts.BroadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		opts:       opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		stats:  opts.Stats,
		logger: log.With(zap.String("component", "hub")),
	}
}

// Run starts the Hub's main loop to handle client connections and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.dropLocked(client)
			}
			h.mu.Unlock()
			h.logger.Info("websocket hub shutting down")
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			if h.stats != nil {
				h.stats.RecordWSConnection(1)
			}
			h.logger.Info("observer connected", zap.String("filter", client.filter.String()))
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.dropLocked(client)
				h.logger.Info("observer disconnected")
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.filter.Match(msg.event) {
					continue
				}
				select {
				case client.send <- msg.payload:
					if h.stats != nil {
						h.stats.RecordWSMessage()
					}
				default:
					h.logger.Warn("observer too slow, dropping")
					h.dropLocked(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) dropLocked(client *Client) {
	delete(h.clients, client)
	close(client.send)
	if h.stats != nil {
		h.stats.RecordWSConnection(-1)
	}
}

// ClientCount returns the number of connected observers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// BroadcastEvent serializes an event and queues it for every matching observer.
// It returns false once the hub has stopped.
func (h *Hub) BroadcastEvent(event events.GameEvent) bool {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("serialize event for broadcast", zap.String("event_id", event.ID), zap.Error(err))
		return false
	}
	select {
	case h.broadcast <- outbound{event: event, payload: payload}:
		return true
	case <-h.done:
		return false
	}
}

// StartEventPoller spawns a goroutine that polls the EventLog and pushes new
// events to the Hub. The hub runs independently of the simulation loop while
// picking up the same events. A zero interval uses DefaultPollInterval.
func (h *Hub) StartEventPoller(ctx context.Context, eventLog *events.EventLog, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		offset := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, event := range eventLog.Since(offset) {
					if !h.BroadcastEvent(event) {
						return
					}
					offset++
				}
			}
		}
	}()
}

// ServeWS upgrades an observer connection. Query parameters agent and type
// restrict which events the observer receives.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.opts.MaxObservers > 0 && h.ClientCount() >= h.opts.MaxObservers {
		http.Error(w, "too many observers", http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := NewClient(h, conn, ParseFilter(r.URL.Query()))
	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	}
	go client.WritePump()
	go client.ReadPump()
}
