package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tossconsultancy/assessment-backend/internal/model"
)

// ResultRepository reads graded submissions.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// HasResults reports whether any result row exists for the candidate.
func (r *ResultRepository) HasResults(ctx context.Context, candidateID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM responses WHERE candidate_id = $1)`, candidateID,
	).Scan(&exists)
	return exists, err
}

// ListByCandidate returns a candidate's graded rows in insertion order, which is the
// attempt's question order, and the submission time (zero when nothing was graded).
func (r *ResultRepository) ListByCandidate(ctx context.Context, candidateID int64) ([]model.ResultItem, time.Time, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT r.question_id, COALESCE(q.question, ''), r.selected_option, r.is_correct,
		        COALESCE(q.correct_option, ''), r.created_at
		 FROM responses r
		 LEFT JOIN questions q ON q.id = r.question_id
		 WHERE r.candidate_id = $1
		 ORDER BY r.id`, candidateID)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer rows.Close()

	var (
		items       []model.ResultItem
		submittedAt time.Time
	)
	for rows.Next() {
		var it model.ResultItem
		if err := rows.Scan(&it.QuestionID, &it.Question, &it.SelectedOption, &it.IsCorrect, &it.CorrectOption, &submittedAt); err != nil {
			return nil, time.Time{}, err
		}
		items = append(items, it)
	}
	return items, submittedAt, rows.Err()
}

const submissionSummarySelect = `
	SELECT c.id, c.name, c.email, c.mobile, c.role, c.level, c.location,
	       COUNT(*) FILTER (WHERE r.is_correct), COUNT(*), MAX(r.created_at)
	FROM responses r
	JOIN candidates c ON c.id = r.candidate_id
	GROUP BY c.id
	ORDER BY MAX(r.created_at) DESC, c.id DESC`

// ListSubmissions pages through graded candidates, most recent first.
func (r *ResultRepository) ListSubmissions(ctx context.Context, limit, offset int) ([]model.SubmissionSummary, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT candidate_id) FROM responses`,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	out, err := r.querySummaries(ctx, submissionSummarySelect+` LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListAllSubmissions returns every graded candidate.
func (r *ResultRepository) ListAllSubmissions(ctx context.Context) ([]model.SubmissionSummary, error) {
	return r.querySummaries(ctx, submissionSummarySelect)
}

func (r *ResultRepository) querySummaries(ctx context.Context, query string, args ...any) ([]model.SubmissionSummary, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SubmissionSummary
	for rows.Next() {
		var s model.SubmissionSummary
		if err := rows.Scan(&s.CandidateID, &s.Name, &s.Email, &s.Mobile, &s.Role, &s.Level, &s.Location,
			&s.Correct, &s.Total, &s.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
