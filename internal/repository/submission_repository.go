package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tossconsultancy/assessment-backend/internal/model"
)

// GradeFunc turns an attempt's fixed question set and ledger snapshot into result rows.
type GradeFunc func(questionIDs []int64, ledger map[int64]*string) []model.Result

// SubmissionRepository performs the terminal transition of an attempt.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// Finalize moves the attempt to submitted and writes its results in a single transaction.
// Only the caller whose conditional UPDATE matched gets won == true; everyone else
// (a concurrent submit, or an attempt that was already submitted) gets false and no error.
// Results are only written when the candidate has none yet.
func (r *SubmissionRepository) Finalize(ctx context.Context, attemptID, candidateID int64, now time.Time, grade GradeFunc) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var questionIDs []int64
	err = tx.QueryRow(ctx,
		`UPDATE quiz_attempts
		 SET status = $3, end_time = $4, remaining_time_seconds = 0
		 WHERE attempt_id = $1 AND candidate_id = $2 AND status IN ($5, $6)
		 RETURNING question_ids`,
		attemptID, candidateID, model.AttemptStatusSubmitted, now,
		model.AttemptStatusInProgress, model.AttemptStatusExpired,
	).Scan(&questionIDs)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("transition: %w", err)
	}

	var graded bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM responses WHERE candidate_id = $1)`, candidateID,
	).Scan(&graded); err != nil {
		return false, fmt.Errorf("check results: %w", err)
	}

	if !graded {
		ledger, err := readLedger(ctx, tx, attemptID)
		if err != nil {
			return false, fmt.Errorf("read ledger: %w", err)
		}
		if err := insertResults(ctx, tx, candidateID, now, grade(questionIDs, ledger)); err != nil {
			return false, fmt.Errorf("insert results: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func readLedger(ctx context.Context, tx pgx.Tx, attemptID int64) (map[int64]*string, error) {
	rows, err := tx.Query(ctx,
		`SELECT question_id, selected_option FROM quiz_answers WHERE attempt_id = $1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ledger := make(map[int64]*string)
	for rows.Next() {
		var (
			qid int64
			opt *string
		)
		if err := rows.Scan(&qid, &opt); err != nil {
			return nil, err
		}
		ledger[qid] = opt
	}
	return ledger, rows.Err()
}

// insertResults writes every result row with one UNNEST insert.
func insertResults(ctx context.Context, tx pgx.Tx, candidateID int64, now time.Time, results []model.Result) error {
	if len(results) == 0 {
		return nil
	}

	n := len(results)
	questionIDs := make([]int64, 0, n)
	options := make([]*string, 0, n)
	correct := make([]*bool, 0, n)
	for _, res := range results {
		questionIDs = append(questionIDs, res.QuestionID)
		options = append(options, res.SelectedOption)
		correct = append(correct, res.IsCorrect)
	}

	_, err := tx.Exec(ctx,
		`INSERT INTO responses (candidate_id, question_id, selected_option, is_correct, created_at)
		 SELECT $1, u.question_id, u.selected_option, u.is_correct, $5
		 FROM UNNEST($2::bigint[], $3::text[], $4::bool[]) AS u (question_id, selected_option, is_correct)
		 ON CONFLICT (candidate_id, question_id) DO NOTHING`,
		candidateID, questionIDs, options, correct, now)
	return err
}
