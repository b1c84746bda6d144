package service

import (
	"context"
	"time"

	"github.com/tossconsultancy/assessment-backend/internal/model"
	"github.com/tossconsultancy/assessment-backend/internal/repository"
)

// Not-found lookups return pgx.ErrNoRows, as the pgx repositories do.

// CandidateStore is the candidate table.
type CandidateStore interface {
	GetByID(ctx context.Context, id int64) (*model.Candidate, error)
	FindByEmailOrMobile(ctx context.Context, emailNormalized, mobile string) ([]model.Candidate, error)
	Create(ctx context.Context, c *model.Candidate) error
	UpdateLocation(ctx context.Context, id int64, location string, now time.Time) error
}

// AttemptStore is the attempt table. Conditional writes report whether they matched.
type AttemptStore interface {
	GetByID(ctx context.Context, id int64) (*model.Attempt, error)
	GetByCandidate(ctx context.Context, candidateID int64, role, level string) (*model.Attempt, error)
	ListByCandidate(ctx context.Context, candidateID int64) ([]model.Attempt, error)
	Create(ctx context.Context, a *model.Attempt) error
	MarkExpired(ctx context.Context, id int64, now time.Time) (bool, error)
	Reactivate(ctx context.Context, id int64, notBefore time.Time) (bool, error)
	UpdatePosition(ctx context.Context, id int64, index int, now time.Time) (bool, error)
	UpdateRemaining(ctx context.Context, id int64, remaining int, now time.Time) error
}

// AnswerLedger stores in-progress selections.
type AnswerLedger interface {
	Upsert(ctx context.Context, attemptID, questionID int64, option *string, now time.Time) (bool, error)
	ListByAttempt(ctx context.Context, attemptID int64) (map[int64]*string, error)
}

// SubmissionStore performs the terminal transition and result write.
type SubmissionStore interface {
	Finalize(ctx context.Context, attemptID, candidateID int64, now time.Time, grade repository.GradeFunc) (bool, error)
}

// ResultStore reads graded submissions.
type ResultStore interface {
	HasResults(ctx context.Context, candidateID int64) (bool, error)
	ListByCandidate(ctx context.Context, candidateID int64) ([]model.ResultItem, time.Time, error)
}

// QuestionProvider is the question bank as seen by the attempt lifecycle.
type QuestionProvider interface {
	// FetchQuestions draws up to count random question IDs.
	FetchQuestions(ctx context.Context, role, level string, count int) ([]int64, error)
	// FetchByIDs returns client-safe questions in the order of ids.
	FetchByIDs(ctx context.Context, ids []int64) ([]model.Question, error)
	// FetchAnswerKey maps question ID to its correct option.
	FetchAnswerKey(ctx context.Context, ids []int64) (map[int64]string, error)
}

// ActivityRecorder receives advisory last-activity timestamps.
type ActivityRecorder interface {
	Touch(ctx context.Context, attemptID int64, at time.Time)
}
