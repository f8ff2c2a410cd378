package models

// Question is a single trivia question held in memory for the duration of a
// match. The correct answer never leaves the server; clients only ever see the
// shuffled option list.
type Question struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	Answer     string   `json:"-"`
	BadAnswers []string `json:"-"`
	Category   string   `json:"category,omitempty"`
	Difficulty string   `json:"difficulty,omitempty"`
}

// Options returns the correct answer plus the distractors, unshuffled.
func (q Question) Options() []string {
	opts := make([]string, 0, len(q.BadAnswers)+1)
	opts = append(opts, q.Answer)
	opts = append(opts, q.BadAnswers...)
	return opts
}
