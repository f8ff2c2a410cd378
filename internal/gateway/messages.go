package gateway

import (
	"encoding/json"
	"errors"

	"github.com/mindvswild/api/internal/models"
)

// Inbound actions form a closed set; anything else is reported back as an
// error event and otherwise ignored.
const (
	ActionStartGame    = "start_game"
	ActionSubmitAnswer = "submit_answer"
)

var (
	errMalformedMessage = errors.New("malformed message")
	errUnknownAction    = errors.New("unknown action")
	errMissingFields    = errors.New("submit_answer requires question_id and answer")
)

// inboundMessage is the envelope clients send over the socket.
type inboundMessage struct {
	Action     string              `json:"action"`
	Options    *models.GameOptions `json:"options,omitempty"`
	QuestionID string              `json:"question_id,omitempty"`
	Answer     string              `json:"answer,omitempty"`
}

// parseInbound decodes and validates one client frame.
func parseInbound(data []byte) (inboundMessage, error) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return inboundMessage{}, errMalformedMessage
	}

	switch msg.Action {
	case ActionStartGame:
		return msg, nil
	case ActionSubmitAnswer:
		if msg.QuestionID == "" || msg.Answer == "" {
			return inboundMessage{}, errMissingFields
		}
		return msg, nil
	default:
		return inboundMessage{}, errUnknownAction
	}
}
