package models

// Participant is a room member as seen by the game engine. Participants are
// owned by the rooms service; the engine only references them by id.
type Participant struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// GameOptions are the admin-supplied settings for a match. Out-of-range values
// are clamped by the session state machine, not rejected.
type GameOptions struct {
	QuestionCount   int    `json:"questionCount"`
	QuestionTimeSec int    `json:"questionTime"`
	EliminationMode bool   `json:"eliminationMode"`
	Category        string `json:"category,omitempty"`
}
