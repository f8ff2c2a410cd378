// Package trivia fetches question batches from the external quiz content
// provider.
package trivia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mindvswild/api/internal/models"
)

const (
	// DefaultBaseURL is the public quiz API the original rooms pull from.
	DefaultBaseURL = "https://quizzapi.jomoreschi.fr"

	quizEndpoint   = "/api/v1/quiz"
	defaultTimeout = 30 * time.Second

	// distractorCount is the number of wrong options a usable question must
	// carry: one correct answer plus three distractors, four options total.
	distractorCount = 3
)

// ErrNoQuestions is returned when the provider has nothing for the requested
// category. A start_game built on this batch must be rejected.
var ErrNoQuestions = errors.New("provider returned no usable questions")

// Client wraps the provider's HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a provider client for the given base URL. An empty base
// URL falls back to the public API.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// quizResponse mirrors the provider's wire format.
type quizResponse struct {
	Quizzes []quizEntry `json:"quizzes"`
}

type quizEntry struct {
	ID         string   `json:"_id"`
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	BadAnswers []string `json:"badAnswers"`
	Category   string   `json:"category"`
	Difficulty string   `json:"difficulty"`
}

// FetchQuestions retrieves up to count questions, optionally filtered by
// category. Entries that do not carry an answer and exactly three distractors
// are dropped; fewer questions than requested is acceptable but an empty
// result is an error, never a silent short batch.
func (c *Client) FetchQuestions(ctx context.Context, count int, category string) ([]models.Question, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(count))
	if category != "" {
		q.Set("category", category)
	}
	endpoint := c.baseURL + quizEndpoint + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch questions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("provider returned status code: %d, response: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var parsed quizResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	questions := make([]models.Question, 0, len(parsed.Quizzes))
	for _, entry := range parsed.Quizzes {
		if entry.Answer == "" || len(entry.BadAnswers) != distractorCount {
			log.Warn().
				Str("question_id", entry.ID).
				Int("distractors", len(entry.BadAnswers)).
				Msg("dropping malformed provider question")
			continue
		}
		questions = append(questions, models.Question{
			ID:         entry.ID,
			Text:       entry.Question,
			Answer:     entry.Answer,
			BadAnswers: entry.BadAnswers,
			Category:   entry.Category,
			Difficulty: entry.Difficulty,
		})
	}

	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	return questions, nil
}
