package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// DraftEvent is the frame pushed to subscribed clients.
type DraftEvent struct {
	ID        string          `json:"id"`
	DraftID   string          `json:"draft_id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// HubConfig tunes client connection handling.
type HubConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultHubConfig returns development defaults. CheckOrigin accepts all
// origins; production deployments should restrict it.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
}

// Hub fans committed draft events out to websocket subscribers, pooled per
// draft. Clients only receive; the read side exists to notice disconnects
// and answer pings.
type Hub struct {
	mu    sync.RWMutex
	pools map[uuid.UUID]map[*client]bool

	upgrader  websocket.Upgrader
	cfg       HubConfig
	broadcast chan DraftEvent
}

type client struct {
	id      string
	draftID uuid.UUID
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	hub     *Hub
}

// NewHub creates a Hub.
func NewHub(cfg HubConfig) *Hub {
	return &Hub{
		pools: make(map[uuid.UUID]map[*client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
		cfg:       cfg,
		broadcast: make(chan DraftEvent, 1000),
	}
}

// Run delivers broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	log.Info().Msg("gateway hub started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("gateway hub shutting down")
			return
		case ev := <-h.broadcast:
			h.deliver(ev)
		}
	}
}

// Broadcast queues an event for every subscriber of its draft. Drops the
// event if the hub is backed up; clients resync from the state endpoint.
func (h *Hub) Broadcast(ev DraftEvent) {
	select {
	case h.broadcast <- ev:
	default:
		log.Warn().Str("draft_id", ev.DraftID).Msg("broadcast channel full, dropping event")
	}
}

// Subscribe upgrades the HTTP request and registers the client for a draft.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, draftID uuid.UUID) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	c := &client{
		id:      uuid.NewString(),
		draftID: draftID,
		conn:    conn,
		send:    make(chan []byte, 256),
		done:    make(chan struct{}),
		hub:     h,
	}
	h.register(c)
	go c.writePump()
	go c.readPump()

	log.Info().
		Str("client_id", c.id).
		Str("draft_id", draftID.String()).
		Msg("websocket subscriber connected")
	return nil
}

// Stats reports active subscriber counts per draft.
func (h *Hub) Stats() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]int, len(h.pools))
	for draftID, pool := range h.pools {
		out[draftID.String()] = len(pool)
	}
	return out
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pools[c.draftID] == nil {
		h.pools[c.draftID] = make(map[*client]bool)
	}
	h.pools[c.draftID][c] = true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	pool, ok := h.pools[c.draftID]
	if !ok || !pool[c] {
		return
	}
	delete(pool, c)
	// The send channel is never closed: deliver may still hold a reference
	// to this client and a send to a closed channel panics. The done channel
	// tells writePump to stop; the buffer is garbage collected with the
	// client.
	close(c.done)
	if len(pool) == 0 {
		delete(h.pools, c.draftID)
	}
	log.Debug().Str("client_id", c.id).Str("draft_id", c.draftID.String()).Msg("subscriber disconnected")
}

func (h *Hub) deliver(ev DraftEvent) {
	draftID, err := uuid.Parse(ev.DraftID)
	if err != nil {
		log.Error().Err(err).Str("draft_id", ev.DraftID).Msg("dropping event with bad draft id")
		return
	}

	h.mu.RLock()
	pool, ok := h.pools[draftID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	targets := make([]*client, 0, len(pool))
	for c := range pool {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal broadcast event")
		return
	}
	for _, c := range targets {
		select {
		case c.send <- data:
		default:
			// Slow consumer. Drop it rather than stall everyone else.
			log.Warn().Str("client_id", c.id).Msg("subscriber send buffer full, closing")
			h.unregister(c)
			c.conn.Close()
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.hub.unregister(c)
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.ReadTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("client_id", c.id).Msg("unexpected websocket close")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.ReadTimeout))
	}
}
