package quiz

import "github.com/mindvswild/api/internal/models"

// EventType identifies an outbound room event. The set is closed; the gateway
// marshals events as-is, so every payload carries its type in the "action"
// field of the wire envelope.
type EventType string

const (
	EventParticipantJoined EventType = "participant_joined"
	EventParticipantLeft   EventType = "participant_left"
	EventGameStarting      EventType = "game_starting"
	EventNewQuestion       EventType = "new_question"
	EventTimerUpdate       EventType = "timer_update"
	EventScoresUpdate      EventType = "scores_update"
	EventGameOver          EventType = "game_over"
	EventError             EventType = "error"
)

// Event is an outbound payload bound for every connection in a room group.
type Event interface {
	Type() EventType
}

// ParticipantJoinedEvent announces a new connection in the room group.
type ParticipantJoinedEvent struct {
	Action   EventType `json:"action"`
	UserID   int64     `json:"user_id"`
	Username string    `json:"username"`
}

func (ParticipantJoinedEvent) Type() EventType { return EventParticipantJoined }

// NewParticipantJoined builds the join broadcast for a participant.
func NewParticipantJoined(p models.Participant) ParticipantJoinedEvent {
	return ParticipantJoinedEvent{Action: EventParticipantJoined, UserID: p.UserID, Username: p.Username}
}

// ParticipantLeftEvent is the symmetric teardown broadcast.
type ParticipantLeftEvent struct {
	Action   EventType `json:"action"`
	UserID   int64     `json:"user_id"`
	Username string    `json:"username"`
}

func (ParticipantLeftEvent) Type() EventType { return EventParticipantLeft }

func NewParticipantLeft(p models.Participant) ParticipantLeftEvent {
	return ParticipantLeftEvent{Action: EventParticipantLeft, UserID: p.UserID, Username: p.Username}
}

// GameStartingEvent carries the clamped match settings.
type GameStartingEvent struct {
	Action          EventType `json:"action"`
	QuestionCount   int       `json:"question_count"`
	TimerDuration   int       `json:"timer_duration"`
	EliminationMode bool      `json:"elimination_mode"`
}

func (GameStartingEvent) Type() EventType { return EventGameStarting }

// NewQuestionEvent presents a question to the room. Options are shuffled and
// never flag which one is correct.
type NewQuestionEvent struct {
	Action  EventType `json:"action"`
	ID      string    `json:"id"`
	Text    string    `json:"text"`
	Options []string  `json:"options"`
}

func (NewQuestionEvent) Type() EventType { return EventNewQuestion }

// TimerUpdateEvent is the periodic countdown broadcast.
type TimerUpdateEvent struct {
	Action        EventType `json:"action"`
	TimeRemaining int       `json:"time_remaining"`
}

func (TimerUpdateEvent) Type() EventType { return EventTimerUpdate }

func NewTimerUpdate(remaining int) TimerUpdateEvent {
	return TimerUpdateEvent{Action: EventTimerUpdate, TimeRemaining: remaining}
}

// LeaderboardEntry is one ranked row in scores_update and game_over payloads.
type LeaderboardEntry struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Score    int    `json:"score"`
	IsActive bool   `json:"is_active"`
}

// ScoresUpdateEvent carries the current leaderboard, score descending.
type ScoresUpdateEvent struct {
	Action EventType          `json:"action"`
	Scores []LeaderboardEntry `json:"scores"`
}

func (ScoresUpdateEvent) Type() EventType { return EventScoresUpdate }

// GameOverEvent carries the final leaderboard. Its length always equals the
// participant count observed at game start, eliminations included.
type GameOverEvent struct {
	Action EventType          `json:"action"`
	Scores []LeaderboardEntry `json:"scores"`
}

func (GameOverEvent) Type() EventType { return EventGameOver }

// ErrorEvent reports a recoverable failure to a single connection.
type ErrorEvent struct {
	Action  EventType `json:"action"`
	Message string    `json:"message"`
}

func (ErrorEvent) Type() EventType { return EventError }

func NewError(msg string) ErrorEvent {
	return ErrorEvent{Action: EventError, Message: msg}
}
