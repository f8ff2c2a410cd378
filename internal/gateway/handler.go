// Package gateway accepts and authorizes WebSocket connections for quiz rooms
// and fans room events out to them.
package gateway

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mindvswild/api/internal/auth"
	"github.com/mindvswild/api/internal/models"
	"github.com/mindvswild/api/internal/quiz"
)

// Membership is the gateway's view of the rooms service.
type Membership interface {
	IsMember(ctx context.Context, roomID, userID int64) (bool, error)
}

// Game is what the gateway dispatches inbound actions to.
type Game interface {
	StartGame(ctx context.Context, roomID, issuerID int64, opts models.GameOptions) error
	SubmitAnswer(roomID, userID int64, questionID, answer string)
}

// Handler authorizes incoming connections and routes their messages. It never
// mutates game state itself.
type Handler struct {
	hub      *Hub
	resolver auth.Resolver
	members  Membership
	game     Game
	upgrader websocket.Upgrader
}

// NewHandler creates the WebSocket handler.
func NewHandler(hub *Hub, resolver auth.Resolver, members Membership, game Game) *Handler {
	return &Handler{
		hub:      hub,
		resolver: resolver,
		members:  members,
		game:     game,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     hub.config.CheckOrigin,
		},
	}
}

// RegisterRoutes registers the gateway's routes on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/rooms/{room_id}", h.HandleRoomConnection)
}

// HandleRoomConnection authorizes and upgrades one connection. Authorization
// failures close the connection before the upgrade with no event at all.
func (h *Handler) HandleRoomConnection(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.ParseInt(r.PathValue("room_id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid room id", http.StatusBadRequest)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	identity, err := h.resolver.ResolveToken(r.Context(), token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	member, err := h.members.IsMember(r.Context(), roomID, identity.UserID)
	if err != nil {
		log.Error().Err(err).Int64("room_id", roomID).Int64("user_id", identity.UserID).
			Msg("membership lookup failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !member {
		http.Error(w, "not a member of this room", http.StatusForbidden)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Int64("room_id", roomID).Msg("failed to upgrade WebSocket connection")
		return
	}

	conn := h.hub.join(ws, roomID, identity)

	h.hub.Broadcast(roomID, quiz.NewParticipantJoined(models.Participant{
		UserID:   identity.UserID,
		Username: identity.Username,
	}))

	go h.readPump(conn)
}

// readPump reads client frames until the connection drops, dispatching each to
// the game service. Teardown broadcasts participant_left before the
// connection leaves its pool so the departing user is excluded from it only
// after every peer heard the news.
func (h *Handler) readPump(conn *Conn) {
	defer func() {
		if h.hub.leave(conn) {
			h.hub.Broadcast(conn.roomID, quiz.NewParticipantLeft(models.Participant{
				UserID:   conn.user.UserID,
				Username: conn.user.Username,
			}))
		}
		conn.ws.Close()
	}()

	conn.ws.SetReadLimit(h.hub.config.MaxMessageSize)
	conn.ws.SetReadDeadline(time.Now().Add(h.hub.config.ReadTimeout))
	conn.ws.SetPongHandler(func(string) error {
		conn.ws.SetReadDeadline(time.Now().Add(h.hub.config.ReadTimeout))
		return nil
	})

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("connection_id", conn.id).Msg("unexpected WebSocket close")
			}
			return
		}

		h.dispatch(conn, data)
		conn.ws.SetReadDeadline(time.Now().Add(h.hub.config.ReadTimeout))
	}
}

// dispatch routes one inbound frame. Malformed frames and rejected starts are
// reported to this connection only; the room state is untouched and the
// connection stays open.
func (h *Handler) dispatch(conn *Conn, data []byte) {
	msg, err := parseInbound(data)
	if err != nil {
		conn.sendEvent(quiz.NewError(err.Error()))
		return
	}

	switch msg.Action {
	case ActionStartGame:
		var opts models.GameOptions
		if msg.Options != nil {
			opts = *msg.Options
		}

		// The provider fetch happens inside StartGame; bound it so a hung
		// provider cannot pin the connection's dispatch loop forever.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := h.game.StartGame(ctx, conn.roomID, conn.user.UserID, opts); err != nil {
			log.Warn().
				Err(err).
				Int64("room_id", conn.roomID).
				Int64("user_id", conn.user.UserID).
				Msg("start_game rejected")
			conn.sendEvent(quiz.NewError(err.Error()))
		}

	case ActionSubmitAnswer:
		h.game.SubmitAnswer(conn.roomID, conn.user.UserID, msg.QuestionID, msg.Answer)
	}
}
