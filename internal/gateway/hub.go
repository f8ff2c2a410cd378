package gateway

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mindvswild/api/internal/auth"
	"github.com/mindvswild/api/internal/quiz"
)

// ConnConfig holds WebSocket connection tuning.
type ConnConfig struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBufferSize int
	CheckOrigin    func(r *http.Request) bool
}

// DefaultConnConfig returns the default WebSocket configuration.
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 1024,
		SendBufferSize: 256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// Hub owns the room broadcast groups: every open connection belongs to exactly
// one room pool, and an event broadcast to a room reaches every connection in
// its pool. The hub performs no game logic.
type Hub struct {
	mu    sync.RWMutex
	rooms map[int64]map[*Conn]struct{}

	config ConnConfig
}

// Conn is one participant's WebSocket connection.
type Conn struct {
	id     string
	roomID int64
	user   auth.Identity

	ws   *websocket.Conn
	send chan []byte
	hub  *Hub
}

// NewHub creates an empty hub.
func NewHub(config ConnConfig) *Hub {
	return &Hub{
		rooms:  make(map[int64]map[*Conn]struct{}),
		config: config,
	}
}

// join registers an upgraded connection with its room pool and starts its
// pumps.
func (h *Hub) join(ws *websocket.Conn, roomID int64, user auth.Identity) *Conn {
	conn := &Conn{
		id:     uuid.New().String(),
		roomID: roomID,
		user:   user,
		ws:     ws,
		send:   make(chan []byte, h.config.SendBufferSize),
		hub:    h,
	}

	h.mu.Lock()
	pool := h.rooms[roomID]
	if pool == nil {
		pool = make(map[*Conn]struct{})
		h.rooms[roomID] = pool
	}
	pool[conn] = struct{}{}
	total := len(pool)
	h.mu.Unlock()

	log.Info().
		Str("connection_id", conn.id).
		Int64("user_id", user.UserID).
		Int64("room_id", roomID).
		Int("room_connections", total).
		Msg("connection joined room group")

	go conn.writePump()
	return conn
}

// leave removes a connection from its room pool. Safe to call more than once;
// only the first call closes the send channel.
func (h *Hub) leave(conn *Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	pool, ok := h.rooms[conn.roomID]
	if !ok {
		return false
	}
	if _, ok := pool[conn]; !ok {
		return false
	}

	delete(pool, conn)
	close(conn.send)
	if len(pool) == 0 {
		delete(h.rooms, conn.roomID)
	}

	log.Info().
		Str("connection_id", conn.id).
		Int64("user_id", conn.user.UserID).
		Int64("room_id", conn.roomID).
		Msg("connection left room group")
	return true
}

// Broadcast fans one event out to every connection in the room's pool. The
// event is marshaled once; connections whose send buffer is full are evicted
// rather than allowed to stall the room.
func (h *Hub) Broadcast(roomID int64, event quiz.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("event", string(event.Type())).Msg("failed to marshal event for broadcast")
		return
	}

	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.rooms[roomID]))
	for conn := range h.rooms[roomID] {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		if !conn.trySend(data) {
			log.Warn().
				Str("connection_id", conn.id).
				Int64("user_id", conn.user.UserID).
				Msg("connection send buffer full, closing connection")
			h.leave(conn)
			conn.ws.Close()
		}
	}

	log.Debug().
		Str("event", string(event.Type())).
		Int64("room_id", roomID).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

// RoomConnections reports how many connections a room pool currently holds.
func (h *Hub) RoomConnections(roomID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// sendEvent delivers an event to this connection only, used for error
// reporting that must not leak to the rest of the room.
func (c *Conn) sendEvent(event quiz.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("event", string(event.Type())).Msg("failed to marshal event")
		return
	}
	c.trySend(data)
}

func (c *Conn) trySend(data []byte) bool {
	defer func() {
		// The send channel closes when the connection leaves its pool; a
		// concurrent broadcast may still hold a reference.
		_ = recover()
	}()

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// writePump serializes all writes to the WebSocket connection and keeps the
// peer alive with pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.id).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
