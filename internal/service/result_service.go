package service

import (
	"context"
	"fmt"

	"github.com/tossconsultancy/assessment-backend/internal/model"
	"github.com/tossconsultancy/assessment-backend/internal/response"
)

// SubmissionLister pages through graded candidates.
type SubmissionLister interface {
	ListSubmissions(ctx context.Context, limit, offset int) ([]model.SubmissionSummary, int, error)
}

// ResultService builds result views from graded rows.
type ResultService struct {
	candidates CandidateStore
	attempts   AttemptStore
	results    ResultStore
	lister     SubmissionLister
}

// NewResultService creates a new ResultService.
func NewResultService(candidates CandidateStore, attempts AttemptStore, results ResultStore, lister SubmissionLister) *ResultService {
	return &ResultService{candidates: candidates, attempts: attempts, results: results, lister: lister}
}

// ForCandidate returns the caller's own result. Correct options are withheld.
func (s *ResultService) ForCandidate(ctx context.Context, scope model.RequestScope, candidateID int64) (*model.ResultView, error) {
	if candidateID != scope.CandidateID {
		return nil, ErrForbidden
	}
	view, err := s.build(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	for i := range view.Items {
		view.Items[i].CorrectOption = ""
	}
	return view, nil
}

// ForAdmin returns any candidate's result including correct options.
func (s *ResultService) ForAdmin(ctx context.Context, candidateID int64) (*model.ResultView, error) {
	return s.build(ctx, candidateID)
}

func (s *ResultService) build(ctx context.Context, candidateID int64) (*model.ResultView, error) {
	items, submittedAt, err := s.results.ListByCandidate(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}

	c, err := s.candidates.GetByID(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("get candidate: %w", err)
	}

	view := &model.ResultView{
		CandidateID: c.ID,
		Name:        c.Name,
		Role:        c.Role,
		Level:       c.Level,
		Total:       len(items),
		SubmittedAt: submittedAt,
		Items:       items,
	}

	// The attempt, not the candidate row, records which assessment was taken.
	attempts, err := s.attempts.ListByCandidate(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	for _, a := range attempts {
		if a.Status == model.AttemptStatusSubmitted {
			view.Role, view.Level = a.Role, a.Level
			break
		}
	}

	for _, it := range items {
		if it.SelectedOption != nil {
			view.Attempted++
		}
		if it.IsCorrect != nil && *it.IsCorrect {
			view.Score++
		}
	}
	return view, nil
}

// ListSubmissions pages through graded candidates.
func (s *ResultService) ListSubmissions(ctx context.Context, page, perPage int) ([]model.SubmissionSummary, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	items, total, err := s.lister.ListSubmissions(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, fmt.Errorf("list submissions: %w", err)
	}
	if items == nil {
		items = []model.SubmissionSummary{}
	}
	return items, response.NewPagination(page, perPage, total), nil
}
