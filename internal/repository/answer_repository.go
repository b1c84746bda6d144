package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tossconsultancy/assessment-backend/internal/model"
)

// AnswerRepository is the ledger of in-progress selections.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// Upsert writes the selection for one question, last write wins. The row is only
// written while the attempt is in_progress and its deadline is still ahead of now;
// the returned bool is false when that guard rejected the write.
func (r *AnswerRepository) Upsert(ctx context.Context, attemptID, questionID int64, option *string, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO quiz_answers (attempt_id, question_id, selected_option, saved_at)
		 SELECT $1, $2, $3, $4
		 WHERE EXISTS (
			SELECT 1 FROM quiz_attempts
			WHERE attempt_id = $1 AND status = $5 AND expires_at > $4
		 )
		 ON CONFLICT (attempt_id, question_id)
		 DO UPDATE SET selected_option = EXCLUDED.selected_option, saved_at = EXCLUDED.saved_at`,
		attemptID, questionID, option, now, model.AttemptStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListByAttempt returns the ledger of an attempt keyed by question ID.
func (r *AnswerRepository) ListByAttempt(ctx context.Context, attemptID int64) (map[int64]*string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id, selected_option FROM quiz_answers WHERE attempt_id = $1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := make(map[int64]*string)
	for rows.Next() {
		var (
			qid int64
			opt *string
		)
		if err := rows.Scan(&qid, &opt); err != nil {
			return nil, err
		}
		answers[qid] = opt
	}
	return answers, rows.Err()
}
