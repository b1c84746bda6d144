package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tossconsultancy/assessment-backend/internal/model"
)

// ErrDuplicateCandidate is returned when the email or mobile is already registered.
var ErrDuplicateCandidate = errors.New("candidate with this email or mobile already exists")

const candidateColumns = `id, name, email, mobile, role, level, location, created_at, updated_at`

// CandidateRepository handles candidate data access.
type CandidateRepository struct {
	pool *pgxpool.Pool
}

// NewCandidateRepository creates a new CandidateRepository.
func NewCandidateRepository(pool *pgxpool.Pool) *CandidateRepository {
	return &CandidateRepository{pool: pool}
}

func scanCandidate(row pgx.Row) (*model.Candidate, error) {
	c := &model.Candidate{}
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Mobile, &c.Role, &c.Level, &c.Location, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetByID retrieves a candidate by ID.
func (r *CandidateRepository) GetByID(ctx context.Context, id int64) (*model.Candidate, error) {
	return scanCandidate(r.pool.QueryRow(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE id = $1`, id))
}

// FindByEmailOrMobile returns every candidate whose normalized email or mobile matches.
// At most two rows come back, one per unique key.
func (r *CandidateRepository) FindByEmailOrMobile(ctx context.Context, emailNormalized, mobile string) ([]model.Candidate, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+candidateColumns+`
		 FROM candidates
		 WHERE email_normalized = $1 OR mobile = $2
		 ORDER BY id`, emailNormalized, mobile)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Create inserts a new candidate. Unique violations map to ErrDuplicateCandidate
// so the caller can re-read the row that won the race.
func (r *CandidateRepository) Create(ctx context.Context, c *model.Candidate) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO candidates (name, email, email_normalized, mobile, role, level, location)
		 VALUES ($1, $2, lower(trim($2)), $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		c.Name, c.Email, c.Mobile, c.Role, c.Level, c.Location,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateCandidate
		}
		return err
	}
	return nil
}

// UpdateLocation changes the only mutable candidate field.
func (r *CandidateRepository) UpdateLocation(ctx context.Context, id int64, location string, now time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE candidates SET location = $2, updated_at = $3 WHERE id = $1`,
		id, location, now)
	return err
}

// Purge deletes candidates in one transaction. Attempts, ledger rows and results
// go with them through ON DELETE CASCADE. Returns the names that were removed.
func (r *CandidateRepository) Purge(ctx context.Context, ids []int64) ([]string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`DELETE FROM candidates WHERE id = ANY($1::bigint[]) RETURNING name`, ids)
	if err != nil {
		return nil, err
	}

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, err
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return names, nil
}
