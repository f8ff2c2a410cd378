package quiz

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// timerBroadcastEvery bounds countdown chatter: updates go out every 5
	// seconds instead of every tick.
	timerBroadcastEvery = 5
	// timerFinalCountdown switches to per-second updates for the last seconds.
	timerFinalCountdown = 3
)

// runTimer counts down one question. A timer is bound to the index it was
// spawned for: the advance transition cancels it through ctx, and as a
// backstop every tick re-checks that the session is still on that index, so a
// timer that lost the race against the all-answered path exits without side
// effects. If the countdown reaches zero while still current, the timer itself
// triggers the advance.
func (s *Service) runTimer(ctx context.Context, sess *Session, index int) {
	ticker := s.clock.NewTicker(time.Second)
	defer ticker.Stop()

	remaining := int(sess.questionTime / time.Second)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}

		current, over := sess.currentIndex()
		if over || current != index {
			log.Debug().
				Int64("room_id", sess.roomID).
				Int("index", index).
				Msg("stale question timer exiting")
			return
		}

		remaining--
		if remaining <= 0 {
			s.timerExpired(sess, index)
			return
		}

		if remaining%timerBroadcastEvery == 0 || remaining <= timerFinalCountdown {
			s.bc.Broadcast(sess.roomID, NewTimerUpdate(remaining))
		}
	}
}
