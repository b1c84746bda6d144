package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tossconsultancy/assessment-backend/internal/model"
)

const attemptColumns = `attempt_id, candidate_id, role, level, question_ids, current_question_index,
	status, start_time, expires_at, duration_seconds, remaining_time_seconds,
	last_activity_time, expired_at, end_time`

// AttemptRepository handles quiz attempt data access. Every state change is a
// conditional UPDATE whose affected-row count tells the caller whether it won.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

func scanAttempt(row pgx.Row) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := row.Scan(
		&a.ID, &a.CandidateID, &a.Role, &a.Level, &a.QuestionIDs, &a.CurrentQuestionIndex,
		&a.Status, &a.StartTime, &a.ExpiresAt, &a.DurationSeconds, &a.RemainingTimeSeconds,
		&a.LastActivityTime, &a.ExpiredAt, &a.EndTime,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetByID retrieves an attempt by ID.
func (r *AttemptRepository) GetByID(ctx context.Context, id int64) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts WHERE attempt_id = $1`, id))
}

// GetByCandidate retrieves the attempt for a (candidate, role, level) triple.
func (r *AttemptRepository) GetByCandidate(ctx context.Context, candidateID int64, role, level string) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+`
		 FROM quiz_attempts
		 WHERE candidate_id = $1 AND role = $2 AND level = $3`, candidateID, role, level))
}

// ListByCandidate retrieves every attempt a candidate owns, newest first.
func (r *AttemptRepository) ListByCandidate(ctx context.Context, candidateID int64) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+`
		 FROM quiz_attempts
		 WHERE candidate_id = $1
		 ORDER BY start_time DESC`, candidateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}

// Create inserts a new in_progress attempt. When the candidate already has an attempt
// for this (candidate, role, level), or any unsubmitted attempt, nothing is written
// and pgx.ErrNoRows is returned.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO quiz_attempts (
			candidate_id, role, level, question_ids, current_question_index, status,
			start_time, expires_at, duration_seconds, remaining_time_seconds, last_activity_time)
		 VALUES ($1, $2, $3, $4, 0, $5, $6, $7, $8, $8, $6)
		 ON CONFLICT DO NOTHING
		 RETURNING attempt_id`,
		a.CandidateID, a.Role, a.Level, a.QuestionIDs, model.AttemptStatusInProgress,
		a.StartTime, a.ExpiresAt, a.DurationSeconds,
	).Scan(&a.ID)
}

// MarkExpired moves an in_progress attempt whose deadline has passed to expired.
// The first expiry mark is kept so the grace window cannot be renewed.
func (r *AttemptRepository) MarkExpired(ctx context.Context, id int64, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE quiz_attempts
		 SET status = $2,
		     expired_at = COALESCE(expired_at, $3),
		     remaining_time_seconds = 0
		 WHERE attempt_id = $1 AND status = $4 AND expires_at <= $3`,
		id, model.AttemptStatusExpired, now, model.AttemptStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Reactivate moves an expired attempt back to in_progress when it was marked
// expired at or after notBefore. expires_at and expired_at are left alone.
func (r *AttemptRepository) Reactivate(ctx context.Context, id int64, notBefore time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE quiz_attempts
		 SET status = $2
		 WHERE attempt_id = $1 AND status = $3 AND expired_at >= $4`,
		id, model.AttemptStatusInProgress, model.AttemptStatusExpired, notBefore)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpdatePosition stores the last viewed question index of an in_progress attempt.
func (r *AttemptRepository) UpdatePosition(ctx context.Context, id int64, index int, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE quiz_attempts
		 SET current_question_index = $2,
		     last_activity_time = GREATEST(last_activity_time, $3)
		 WHERE attempt_id = $1 AND status = $4`,
		id, index, now, model.AttemptStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateRemaining refreshes the advisory remaining-time mirror.
func (r *AttemptRepository) UpdateRemaining(ctx context.Context, id int64, remaining int, now time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE quiz_attempts
		 SET remaining_time_seconds = $2,
		     last_activity_time = GREATEST(last_activity_time, $3)
		 WHERE attempt_id = $1 AND status = $4`,
		id, remaining, now, model.AttemptStatusInProgress)
	return err
}
