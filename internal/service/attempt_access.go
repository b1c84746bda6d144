package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tossconsultancy/assessment-backend/internal/model"
)

// loadOwnedAttempt fetches an attempt and refuses it to anyone but its candidate.
func loadOwnedAttempt(ctx context.Context, attempts AttemptStore, attemptID int64, scope model.RequestScope) (*model.Attempt, error) {
	if attemptID <= 0 {
		return nil, invalidField("attempt_id", "attempt_id must be a positive integer")
	}

	a, err := attempts.GetByID(ctx, attemptID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}

	if a.CandidateID != scope.CandidateID {
		return nil, ErrForbidden
	}
	return a, nil
}
