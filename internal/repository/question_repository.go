package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tossconsultancy/assessment-backend/internal/model"
)

// QuestionRepository handles question bank data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// DrawIDs picks up to n random question IDs for a role and level.
func (r *QuestionRepository) DrawIDs(ctx context.Context, role, level string, n int) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM questions
		 WHERE role = $1 AND level = $2
		 ORDER BY random()
		 LIMIT $3`, role, level, n)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// ListByIDs retrieves questions including their correct option. Order is unspecified.
func (r *QuestionRepository) ListByIDs(ctx context.Context, ids []int64) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, role, level, question, option_a, option_b, option_c, option_d, correct_option
		 FROM questions WHERE id = ANY($1::bigint[])`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.Role, &q.Level, &q.Text, &q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD, &q.CorrectOption); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// CountByRoleLevel reports how many questions each (role, level) pair holds.
func (r *QuestionRepository) CountByRoleLevel(ctx context.Context) (map[[2]string]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT role, level, COUNT(*) FROM questions GROUP BY role, level`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[[2]string]int)
	for rows.Next() {
		var (
			role, level string
			n           int
		)
		if err := rows.Scan(&role, &level, &n); err != nil {
			return nil, err
		}
		counts[[2]string{role, level}] = n
	}
	return counts, rows.Err()
}

// BulkInsert loads questions with COPY.
func (r *QuestionRepository) BulkInsert(ctx context.Context, questions []model.Question) (int64, error) {
	return r.pool.CopyFrom(ctx,
		pgx.Identifier{"questions"},
		[]string{"role", "level", "question", "option_a", "option_b", "option_c", "option_d", "correct_option"},
		pgx.CopyFromSlice(len(questions), func(i int) ([]any, error) {
			q := questions[i]
			return []any{q.Role, q.Level, q.Text, q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.CorrectOption}, nil
		}),
	)
}
