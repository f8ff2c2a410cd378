package quiz

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mindvswild/api/internal/models"
)

const (
	minQuestionCount = 1
	maxQuestionCount = 30
	defQuestionCount = 5

	minQuestionTime = 10
	maxQuestionTime = 60
	defQuestionTime = 30

	pointsPerQuestion = 10
)

// ErrNotAdmin is returned when a start_game issuer is not the room's admin.
var ErrNotAdmin = errors.New("only the room admin can start a game")

// Broadcaster delivers events to the connections of a room group.
// Implementations must not block: the state machine invokes them while holding
// the session guard.
type Broadcaster interface {
	Broadcast(roomID int64, event Event)
}

// QuestionSource fetches a batch of trivia questions from the content
// provider. Returning fewer questions than requested is allowed as long as at
// least one comes back; an empty batch is an error.
type QuestionSource interface {
	FetchQuestions(ctx context.Context, count int, category string) ([]models.Question, error)
}

// MembershipStore is the narrow view of the rooms service the engine needs.
type MembershipStore interface {
	IsAdmin(ctx context.Context, roomID, userID int64) (bool, error)
	ListParticipants(ctx context.Context, roomID int64) ([]models.Participant, error)
}

// Session holds the live state of one match. All fields behind mu are mutated
// only through the Service entry points; the advance transition runs under mu
// so it executes exactly once per question index no matter which trigger
// (all-answered or timer expiry) fires first.
type Session struct {
	roomID       int64
	questions    []models.Question
	elimination  bool
	questionTime time.Duration
	participants []models.Participant // join order, drives the leaderboard tie-break

	mu          sync.Mutex
	current     int // -1 before the first question
	scores      map[int64]int
	answered    map[int64]struct{}
	active      map[int64]struct{}
	over        bool
	cancelTimer context.CancelFunc
}

// Config wires the session service's collaborators.
type Config struct {
	Registry    *Registry
	Broadcaster Broadcaster
	Source      QuestionSource
	Members     MembershipStore
	Clock       clockwork.Clock // defaults to the real clock
}

// Service is the per-room game state machine. One Service instance drives
// every room; per-room state lives in the Registry's sessions.
type Service struct {
	registry *Registry
	bc       Broadcaster
	source   QuestionSource
	members  MembershipStore
	clock    clockwork.Clock
}

// NewService creates the game session service.
func NewService(c Config) *Service {
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return &Service{
		registry: c.Registry,
		bc:       c.Broadcaster,
		source:   c.Source,
		members:  c.Members,
		clock:    c.Clock,
	}
}

// clampOptions normalizes admin-supplied settings into the allowed ranges.
func clampOptions(opts models.GameOptions) models.GameOptions {
	if opts.QuestionCount == 0 {
		opts.QuestionCount = defQuestionCount
	}
	if opts.QuestionCount < minQuestionCount {
		opts.QuestionCount = minQuestionCount
	}
	if opts.QuestionCount > maxQuestionCount {
		opts.QuestionCount = maxQuestionCount
	}

	if opts.QuestionTimeSec == 0 {
		opts.QuestionTimeSec = defQuestionTime
	}
	if opts.QuestionTimeSec < minQuestionTime {
		opts.QuestionTimeSec = minQuestionTime
	}
	if opts.QuestionTimeSec > maxQuestionTime {
		opts.QuestionTimeSec = maxQuestionTime
	}

	return opts
}

// StartGame handles a start_game command. It is valid only while the room is
// idle and only for the room's admin. On success the room enters the first
// question and a countdown timer is running; on failure the returned error is
// reported to the issuer only and the room stays idle.
func (s *Service) StartGame(ctx context.Context, roomID, issuerID int64, opts models.GameOptions) error {
	admin, err := s.members.IsAdmin(ctx, roomID, issuerID)
	if err != nil {
		return fmt.Errorf("check room admin: %w", err)
	}
	if !admin {
		return ErrNotAdmin
	}

	if _, exists := s.registry.Get(roomID); exists {
		return ErrGameInProgress
	}

	opts = clampOptions(opts)

	questions, err := s.source.FetchQuestions(ctx, opts.QuestionCount, opts.Category)
	if err != nil {
		return fmt.Errorf("fetch questions: %w", err)
	}

	participants, err := s.members.ListParticipants(ctx, roomID)
	if err != nil {
		return fmt.Errorf("list room participants: %w", err)
	}

	sess := &Session{
		roomID:       roomID,
		questions:    questions,
		elimination:  opts.EliminationMode,
		questionTime: time.Duration(opts.QuestionTimeSec) * time.Second,
		participants: participants,
		current:      -1,
		scores:       make(map[int64]int, len(participants)),
		answered:     make(map[int64]struct{}),
		active:       make(map[int64]struct{}, len(participants)),
	}
	for _, p := range participants {
		sess.scores[p.UserID] = 0
		sess.active[p.UserID] = struct{}{}
	}

	if err := s.registry.Create(sess); err != nil {
		return err
	}

	log.Info().
		Int64("room_id", roomID).
		Int64("user_id", issuerID).
		Int("questions", len(questions)).
		Int("timer_sec", opts.QuestionTimeSec).
		Bool("elimination", opts.EliminationMode).
		Msg("game started")

	s.bc.Broadcast(roomID, GameStartingEvent{
		Action:          EventGameStarting,
		QuestionCount:   len(questions),
		TimerDuration:   opts.QuestionTimeSec,
		EliminationMode: opts.EliminationMode,
	})

	sess.mu.Lock()
	sess.current = 0
	s.presentQuestionLocked(sess)
	sess.mu.Unlock()

	return nil
}

// SubmitAnswer handles an inbound answer. Submissions with no live session,
// from users who already answered or were eliminated, or tagged with a stale
// question id are dropped without any event, so a probing client learns
// nothing about the room's timing.
func (s *Service) SubmitAnswer(roomID, userID int64, questionID, answer string) {
	sess, ok := s.registry.Get(roomID)
	if !ok {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.over || sess.current < 0 || sess.current >= len(sess.questions) {
		return
	}

	q := sess.questions[sess.current]
	if q.ID != questionID {
		return // stale submission for an already-advanced question
	}
	if _, dup := sess.answered[userID]; dup {
		return
	}
	if _, act := sess.active[userID]; !act {
		return
	}

	correct := strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(q.Answer))
	if correct {
		sess.scores[userID] += pointsPerQuestion
	} else if sess.elimination {
		// Eliminated players keep their score but leave the active set, so
		// they no longer count toward the all-answered condition.
		delete(sess.active, userID)
	}
	if _, act := sess.active[userID]; act {
		sess.answered[userID] = struct{}{}
	}

	log.Debug().
		Int64("room_id", roomID).
		Int64("user_id", userID).
		Str("question_id", questionID).
		Bool("correct", correct).
		Msg("answer submitted")

	s.bc.Broadcast(roomID, ScoresUpdateEvent{
		Action: EventScoresUpdate,
		Scores: sess.leaderboardLocked(),
	})

	if len(sess.answered) >= len(sess.active) {
		s.advanceLocked(sess)
	}
}

// timerExpired is the timer-path trigger for the advance transition. Active
// players who never answered are treated as having missed the question, which
// in elimination mode removes them before the transition runs.
func (s *Service) timerExpired(sess *Session, index int) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.over || sess.current != index {
		return // the all-answered path already advanced this question
	}

	if sess.elimination {
		for _, p := range sess.participants {
			if _, act := sess.active[p.UserID]; !act {
				continue
			}
			if _, ans := sess.answered[p.UserID]; !ans {
				delete(sess.active, p.UserID)
			}
		}
	}

	log.Debug().
		Int64("room_id", sess.roomID).
		Int("index", index).
		Msg("question timer expired")

	s.advanceLocked(sess)
}

// advanceLocked moves the match to the next question or to game over. Callers
// hold sess.mu; the checks they perform before calling guarantee the
// transition runs at most once per question index.
func (s *Service) advanceLocked(sess *Session) {
	if sess.cancelTimer != nil {
		sess.cancelTimer()
		sess.cancelTimer = nil
	}

	sess.current++

	if sess.current >= len(sess.questions) || (sess.elimination && len(sess.active) <= 1) {
		s.finishLocked(sess)
		return
	}

	sess.answered = make(map[int64]struct{})
	s.presentQuestionLocked(sess)
}

// presentQuestionLocked broadcasts the current question with shuffled options
// and spawns its countdown timer.
func (s *Service) presentQuestionLocked(sess *Session) {
	q := sess.questions[sess.current]

	options := q.Options()
	rand.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	s.bc.Broadcast(sess.roomID, NewQuestionEvent{
		Action:  EventNewQuestion,
		ID:      q.ID,
		Text:    q.Text,
		Options: options,
	})

	ctx, cancel := context.WithCancel(context.Background())
	sess.cancelTimer = cancel
	go s.runTimer(ctx, sess, sess.current)
}

// finishLocked ends the match: final leaderboard out, session out of the
// registry, room back to idle.
func (s *Service) finishLocked(sess *Session) {
	sess.over = true

	s.bc.Broadcast(sess.roomID, GameOverEvent{
		Action: EventGameOver,
		Scores: sess.leaderboardLocked(),
	})

	s.registry.Remove(sess.roomID)

	log.Info().
		Int64("room_id", sess.roomID).
		Int("questions_played", sess.current).
		Int("still_active", len(sess.active)).
		Msg("game over")
}

// leaderboardLocked ranks every participant scored at game start, score
// descending, ties broken by the order users first appeared in the room.
func (sess *Session) leaderboardLocked() []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(sess.participants))
	for _, p := range sess.participants {
		_, act := sess.active[p.UserID]
		entries = append(entries, LeaderboardEntry{
			UserID:   p.UserID,
			Username: p.Username,
			Score:    sess.scores[p.UserID],
			IsActive: act,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})

	return entries
}

// currentIndex reports the question index the match is on, used by timers to
// detect that they are stale.
func (sess *Session) currentIndex() (int, bool) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.current, sess.over
}
