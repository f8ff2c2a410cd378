package trivia_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mindvswild/api/internal/trivia"
)

const sampleBody = `{
	"count": 2,
	"quizzes": [
		{
			"_id": "abc123",
			"question": "Quelle est la capitale de la France ?",
			"answer": "Paris",
			"badAnswers": ["Lyon", "Marseille", "Lille"],
			"category": "culture_generale",
			"difficulty": "facile"
		},
		{
			"_id": "def456",
			"question": "Combien font 2+2 ?",
			"answer": "4",
			"badAnswers": ["3", "5", "22"],
			"category": "culture_generale",
			"difficulty": "facile"
		}
	]
}`

func TestFetchQuestions(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleBody))
	}))
	defer srv.Close()

	client := trivia.NewClient(srv.URL)
	questions, err := client.FetchQuestions(context.Background(), 2, "culture_generale")
	require.NoError(t, err)

	require.Equal(t, "/api/v1/quiz", gotPath)
	require.Equal(t, []string{"2"}, gotQuery["limit"])
	require.Equal(t, []string{"culture_generale"}, gotQuery["category"])

	require.Len(t, questions, 2)
	require.Equal(t, "abc123", questions[0].ID)
	require.Equal(t, "Quelle est la capitale de la France ?", questions[0].Text)
	require.Equal(t, "Paris", questions[0].Answer)
	require.Equal(t, []string{"Lyon", "Marseille", "Lille"}, questions[0].BadAnswers)
	require.Equal(t, "facile", questions[0].Difficulty)
}

func TestFetchQuestions_OmitsEmptyCategory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.False(t, r.URL.Query().Has("category"))
		_, _ = w.Write([]byte(sampleBody))
	}))
	defer srv.Close()

	_, err := trivia.NewClient(srv.URL).FetchQuestions(context.Background(), 2, "")
	require.NoError(t, err)
}

func TestFetchQuestions_DropsMalformedEntries(t *testing.T) {
	// First entry misses its answer, second has too few distractors; only the
	// third is usable.
	body := `{"quizzes": [
		{"_id": "a", "question": "?", "answer": "", "badAnswers": ["1", "2", "3"]},
		{"_id": "b", "question": "?", "answer": "x", "badAnswers": ["1"]},
		{"_id": "c", "question": "?", "answer": "x", "badAnswers": ["1", "2", "3"]}
	]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	questions, err := trivia.NewClient(srv.URL).FetchQuestions(context.Background(), 3, "")
	require.NoError(t, err)
	require.Len(t, questions, 1)
	require.Equal(t, "c", questions[0].ID)
}

func TestFetchQuestions_EmptyBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"quizzes": []}`))
	}))
	defer srv.Close()

	_, err := trivia.NewClient(srv.URL).FetchQuestions(context.Background(), 5, "")
	require.ErrorIs(t, err, trivia.ErrNoQuestions)
}

func TestFetchQuestions_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := trivia.NewClient(srv.URL).FetchQuestions(context.Background(), 5, "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}

func TestFetchQuestions_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"quizzes": `))
	}))
	defer srv.Close()

	_, err := trivia.NewClient(srv.URL).FetchQuestions(context.Background(), 5, "")
	require.Error(t, err)
}
