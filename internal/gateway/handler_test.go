package gateway_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/mindvswild/api/internal/auth"
	"github.com/mindvswild/api/internal/gateway"
	"github.com/mindvswild/api/internal/models"
)

type fakeResolver struct {
	tokens map[string]auth.Identity
}

func (f *fakeResolver) ResolveToken(_ context.Context, token string) (auth.Identity, error) {
	id, ok := f.tokens[token]
	if !ok {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return id, nil
}

type fakeMembership struct {
	members map[int64]bool
	err     error
}

func (f *fakeMembership) IsMember(_ context.Context, _ int64, userID int64) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.members[userID], nil
}

type startCall struct {
	roomID   int64
	issuerID int64
	opts     models.GameOptions
}

type answerCall struct {
	roomID     int64
	userID     int64
	questionID string
	answer     string
}

type fakeGame struct {
	mu       sync.Mutex
	startErr error
	starts   []startCall
	answers  []answerCall
}

func (f *fakeGame) StartGame(_ context.Context, roomID, issuerID int64, opts models.GameOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, startCall{roomID, issuerID, opts})
	return f.startErr
}

func (f *fakeGame) SubmitAnswer(roomID, userID int64, questionID, answer string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, answerCall{roomID, userID, questionID, answer})
}

type harness struct {
	srv  *httptest.Server
	hub  *gateway.Hub
	game *fakeGame
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	hub := gateway.NewHub(gateway.DefaultConnConfig())
	resolver := &fakeResolver{tokens: map[string]auth.Identity{
		"alice-token": {UserID: 1, Username: "alice"},
		"bob-token":   {UserID: 2, Username: "bob"},
		"eve-token":   {UserID: 9, Username: "eve"},
	}}
	members := &fakeMembership{members: map[int64]bool{1: true, 2: true}}
	game := &fakeGame{}

	handler := gateway.NewHandler(hub, resolver, members, game)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &harness{srv: srv, hub: hub, game: game}
}

func (h *harness) wsURL(room, token string) string {
	u := "ws" + strings.TrimPrefix(h.srv.URL, "http")
	u += "/ws/rooms/" + room
	if token != "" {
		u += "?token=" + token
	}
	return u
}

func dial(t *testing.T, h *harness, room, token string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(h.wsURL(room, token), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// wireEvent is the flattened shape of every outbound payload the tests care
// about.
type wireEvent struct {
	Action   string `json:"action"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

func readEvent(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var e wireEvent
	require.NoError(t, conn.ReadJSON(&e))
	return e
}

func TestHandleRoomConnection_Rejections(t *testing.T) {
	h := newHarness(t)
	h.game.startErr = nil

	tests := map[string]struct {
		room       string
		token      string
		wantStatus int
	}{
		"non-numeric room id": {"abc", "alice-token", http.StatusBadRequest},
		"missing token":       {"1", "", http.StatusUnauthorized},
		"unknown token":       {"1", "forged", http.StatusUnauthorized},
		"non-member":          {"1", "eve-token", http.StatusForbidden},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			conn, resp, err := websocket.DefaultDialer.Dial(h.wsURL(tt.room, tt.token), nil)
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.Nil(t, conn)
			require.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestHandleRoomConnection_MembershipLookupFailure(t *testing.T) {
	hub := gateway.NewHub(gateway.DefaultConnConfig())
	resolver := &fakeResolver{tokens: map[string]auth.Identity{"alice-token": {UserID: 1, Username: "alice"}}}
	members := &fakeMembership{err: errors.New("db down")}
	handler := gateway.NewHandler(hub, resolver, members, &fakeGame{})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/rooms/1?token=alice-token"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestConnect_BroadcastsParticipantJoined(t *testing.T) {
	h := newHarness(t)

	alice := dial(t, h, "1", "alice-token")

	// A connection hears its own join.
	e := readEvent(t, alice)
	require.Equal(t, "participant_joined", e.Action)
	require.Equal(t, int64(1), e.UserID)
	require.Equal(t, "alice", e.Username)

	bob := dial(t, h, "1", "bob-token")
	_ = readEvent(t, bob) // bob's own join

	e = readEvent(t, alice)
	require.Equal(t, "participant_joined", e.Action)
	require.Equal(t, int64(2), e.UserID)
	require.Equal(t, "bob", e.Username)

	require.Eventually(t, func() bool {
		return h.hub.RoomConnections(1) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestDisconnect_BroadcastsParticipantLeft(t *testing.T) {
	h := newHarness(t)

	alice := dial(t, h, "1", "alice-token")
	_ = readEvent(t, alice)

	bob := dial(t, h, "1", "bob-token")
	_ = readEvent(t, bob)
	_ = readEvent(t, alice) // bob joined

	require.NoError(t, bob.Close())

	e := readEvent(t, alice)
	require.Equal(t, "participant_left", e.Action)
	require.Equal(t, int64(2), e.UserID)
	require.Equal(t, "bob", e.Username)

	require.Eventually(t, func() bool {
		return h.hub.RoomConnections(1) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestDispatch_StartGame(t *testing.T) {
	h := newHarness(t)

	alice := dial(t, h, "1", "alice-token")
	_ = readEvent(t, alice)

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(
		`{"action": "start_game", "options": {"questionCount": 3, "questionTime": 15}}`,
	)))

	require.Eventually(t, func() bool {
		h.game.mu.Lock()
		defer h.game.mu.Unlock()
		return len(h.game.starts) == 1
	}, time.Second, 10*time.Millisecond)

	h.game.mu.Lock()
	call := h.game.starts[0]
	h.game.mu.Unlock()
	require.Equal(t, startCall{
		roomID:   1,
		issuerID: 1,
		opts:     models.GameOptions{QuestionCount: 3, QuestionTimeSec: 15},
	}, call)
}

func TestDispatch_StartGameRejectionGoesToIssuerOnly(t *testing.T) {
	h := newHarness(t)
	h.game.startErr = errors.New("only the room admin can start a game")

	alice := dial(t, h, "1", "alice-token")
	_ = readEvent(t, alice)

	bob := dial(t, h, "1", "bob-token")
	_ = readEvent(t, bob)
	_ = readEvent(t, alice)

	require.NoError(t, bob.WriteMessage(websocket.TextMessage, []byte(`{"action": "start_game"}`)))

	e := readEvent(t, bob)
	require.Equal(t, "error", e.Action)
	require.Contains(t, e.Message, "admin")

	// alice hears nothing about bob's rejected attempt.
	require.NoError(t, alice.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var unexpected wireEvent
	require.Error(t, alice.ReadJSON(&unexpected))
}

func TestDispatch_SubmitAnswer(t *testing.T) {
	h := newHarness(t)

	alice := dial(t, h, "1", "alice-token")
	_ = readEvent(t, alice)

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(
		`{"action": "submit_answer", "question_id": "q1", "answer": "Paris"}`,
	)))

	require.Eventually(t, func() bool {
		h.game.mu.Lock()
		defer h.game.mu.Unlock()
		return len(h.game.answers) == 1
	}, time.Second, 10*time.Millisecond)

	h.game.mu.Lock()
	call := h.game.answers[0]
	h.game.mu.Unlock()
	require.Equal(t, answerCall{roomID: 1, userID: 1, questionID: "q1", answer: "Paris"}, call)
}

func TestDispatch_BadFramesGetErrorEvents(t *testing.T) {
	h := newHarness(t)

	alice := dial(t, h, "1", "alice-token")
	_ = readEvent(t, alice)

	tests := map[string]struct {
		frame       string
		wantMessage string
	}{
		"not json":       {`garbage`, "malformed message"},
		"unknown action": {`{"action": "dance"}`, "unknown action"},
		"missing fields": {`{"action": "submit_answer"}`, "question_id and answer"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(tt.frame)))

			e := readEvent(t, alice)
			require.Equal(t, "error", e.Action)
			require.Contains(t, e.Message, tt.wantMessage)
		})
	}

	// The connection survives every bad frame.
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(
		`{"action": "submit_answer", "question_id": "q1", "answer": "ok"}`,
	)))
	require.Eventually(t, func() bool {
		h.game.mu.Lock()
		defer h.game.mu.Unlock()
		return len(h.game.answers) == 1
	}, time.Second, 10*time.Millisecond)
}
