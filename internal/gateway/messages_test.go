package gateway

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseInbound(t *testing.T) {
	tests := map[string]struct {
		data    string
		wantErr error
	}{
		"start_game without options": {
			data: `{"action": "start_game"}`,
		},
		"start_game with options": {
			data: `{"action": "start_game", "options": {"questionCount": 10, "questionTime": 20, "eliminationMode": true}}`,
		},
		"submit_answer": {
			data: `{"action": "submit_answer", "question_id": "q1", "answer": "Paris"}`,
		},
		"submit_answer without question id": {
			data:    `{"action": "submit_answer", "answer": "Paris"}`,
			wantErr: errMissingFields,
		},
		"submit_answer without answer": {
			data:    `{"action": "submit_answer", "question_id": "q1"}`,
			wantErr: errMissingFields,
		},
		"unknown action": {
			data:    `{"action": "self_destruct"}`,
			wantErr: errUnknownAction,
		},
		"empty action": {
			data:    `{}`,
			wantErr: errUnknownAction,
		},
		"not json": {
			data:    `start please`,
			wantErr: errMalformedMessage,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			msg, err := parseInbound([]byte(tt.data))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotEmpty(t, msg.Action)
		})
	}
}

func TestParseInbound_OptionsDecode(t *testing.T) {
	msg, err := parseInbound([]byte(`{"action": "start_game", "options": {"questionCount": 7, "questionTime": 15, "category": "sport"}}`))
	require.NoError(t, err)
	require.NotNil(t, msg.Options)
	require.Equal(t, 7, msg.Options.QuestionCount)
	require.Equal(t, 15, msg.Options.QuestionTimeSec)
	require.Equal(t, "sport", msg.Options.Category)
	require.False(t, msg.Options.EliminationMode)
}
