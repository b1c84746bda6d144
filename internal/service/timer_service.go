package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tossconsultancy/assessment-backend/internal/config"
	"github.com/tossconsultancy/assessment-backend/internal/model"
)

// TimerService is the authoritative countdown. Remaining time is always derived
// from expires_at; client values only decide whether a correction is sent back.
type TimerService struct {
	attempts AttemptStore
	activity ActivityRecorder
	drift    time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

// NewTimerService creates a new TimerService.
func NewTimerService(attempts AttemptStore, activity ActivityRecorder, quiz config.QuizConfig, log zerolog.Logger) *TimerService {
	return &TimerService{
		attempts: attempts,
		activity: activity,
		drift:    quiz.DriftThreshold,
		now:      time.Now,
		log:      log.With().Str("component", "timer").Logger(),
	}
}

// ExpireIfDue moves an in_progress attempt past its deadline to expired and
// updates a in place. Losing the race to another request is not an error.
func (t *TimerService) ExpireIfDue(ctx context.Context, a *model.Attempt, now time.Time) error {
	if a.Status != model.AttemptStatusInProgress || now.Before(a.ExpiresAt) {
		return nil
	}

	changed, err := t.attempts.MarkExpired(ctx, a.ID, now)
	if err != nil {
		return fmt.Errorf("mark expired: %w", err)
	}
	if changed {
		t.log.Info().Int64("attempt_id", a.ID).Int64("candidate_id", a.CandidateID).Msg("Attempt expired")
		a.Status = model.AttemptStatusExpired
		a.ExpiredAt = &now
		a.RemainingTimeSeconds = 0
		return nil
	}

	// Someone else moved it first; report what is stored now.
	fresh, err := t.attempts.GetByID(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("reload attempt: %w", err)
	}
	*a = *fresh
	return nil
}

// Sync answers a client heartbeat for an attempt owned by scope.
func (t *TimerService) Sync(ctx context.Context, scope model.RequestScope, attemptID int64, clientRemaining *int) (*model.TimerSync, error) {
	a, err := loadOwnedAttempt(ctx, t.attempts, attemptID, scope)
	if err != nil {
		return nil, err
	}

	now := t.now()
	if err := t.ExpireIfDue(ctx, a, now); err != nil {
		return nil, err
	}

	sync := &model.TimerSync{
		ElapsedSeconds: elapsedSeconds(a, now),
		ServerTime:     now.Unix(),
	}

	switch a.Status {
	case model.AttemptStatusSubmitted:
		return nil, &StateError{Status: a.Status}
	case model.AttemptStatusExpired:
		sync.Expired = true
		sync.NeedsCorrection = clientRemaining != nil && *clientRemaining != 0
		return sync, nil
	}

	sync.RemainingSeconds = a.RemainingSeconds(now)
	if clientRemaining != nil {
		diff := time.Duration(*clientRemaining-sync.RemainingSeconds) * time.Second
		if diff < 0 {
			diff = -diff
		}
		sync.NeedsCorrection = diff > t.drift
	}

	if sync.NeedsCorrection {
		if err := t.attempts.UpdateRemaining(ctx, a.ID, sync.RemainingSeconds, now); err != nil {
			return nil, fmt.Errorf("update remaining: %w", err)
		}
		t.log.Debug().
			Int64("attempt_id", a.ID).
			Int("client_remaining", *clientRemaining).
			Int("server_remaining", sync.RemainingSeconds).
			Msg("Timer drift corrected")
	} else {
		t.activity.Touch(ctx, a.ID, now)
	}

	return sync, nil
}

func elapsedSeconds(a *model.Attempt, now time.Time) int {
	elapsed := int(now.Sub(a.StartTime) / time.Second)
	if elapsed < 0 {
		return 0
	}
	if elapsed > a.DurationSeconds {
		return a.DurationSeconds
	}
	return elapsed
}
