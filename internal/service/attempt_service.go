package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/tossconsultancy/assessment-backend/internal/config"
	"github.com/tossconsultancy/assessment-backend/internal/model"
)

// Verdict is the outcome of a duplicate check.
type Verdict int

const (
	// VerdictNone means the candidate has never started an attempt.
	VerdictNone Verdict = iota
	// VerdictResumable means an attempt can be continued.
	VerdictResumable
	// VerdictAttempted means the candidate is locked out.
	VerdictAttempted
)

// DuplicateStatus is what CheckDuplicate found for a candidate.
type DuplicateStatus struct {
	Verdict Verdict
	// Attempt is set when Verdict is VerdictResumable.
	Attempt *model.Attempt
}

// AttemptService owns the attempt state machine:
// in_progress → expired | submitted, expired → submitted, and
// expired → in_progress inside the grace window.
type AttemptService struct {
	candidates  CandidateStore
	attempts    AttemptStore
	answers     AnswerLedger
	submissions SubmissionStore
	results     ResultStore
	questions   QuestionProvider
	activity    ActivityRecorder
	timer       *TimerService
	quiz        config.QuizConfig
	now         func() time.Time
	log         zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	candidates CandidateStore,
	attempts AttemptStore,
	answers AnswerLedger,
	submissions SubmissionStore,
	results ResultStore,
	questions QuestionProvider,
	activity ActivityRecorder,
	timer *TimerService,
	quiz config.QuizConfig,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		candidates:  candidates,
		attempts:    attempts,
		answers:     answers,
		submissions: submissions,
		results:     results,
		questions:   questions,
		activity:    activity,
		timer:       timer,
		quiz:        quiz,
		now:         time.Now,
		log:         log.With().Str("component", "attempt").Logger(),
	}
}

// withinGrace reports whether an expired attempt may still be reactivated.
// The window runs from the first expiry mark, which is never moved.
func (s *AttemptService) withinGrace(a *model.Attempt, now time.Time) bool {
	if a.ExpiredAt == nil {
		return true
	}
	return !now.After(a.ExpiredAt.Add(s.quiz.GraceWindow))
}

// CheckDuplicate decides whether a candidate is new, resumable or locked out.
// Any result row or any terminal attempt locks the candidate out. An in_progress
// attempt past its deadline is still resumable: the client sees zero seconds and submits.
// An expired attempt outside the grace window is graded from its ledger on the way out.
func (s *AttemptService) CheckDuplicate(ctx context.Context, candidateID int64) (*DuplicateStatus, error) {
	graded, err := s.results.HasResults(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("check results: %w", err)
	}
	if graded {
		return &DuplicateStatus{Verdict: VerdictAttempted}, nil
	}

	attempts, err := s.attempts.ListByCandidate(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	now := s.now()
	status := &DuplicateStatus{Verdict: VerdictNone}
	for i := range attempts {
		a := &attempts[i]
		switch {
		case a.Status == model.AttemptStatusSubmitted:
			return &DuplicateStatus{Verdict: VerdictAttempted}, nil
		case a.Status == model.AttemptStatusExpired && !s.withinGrace(a, now):
			if err := s.finalizeLapsed(ctx, a); err != nil {
				return nil, err
			}
			return &DuplicateStatus{Verdict: VerdictAttempted}, nil
		case status.Attempt == nil:
			status = &DuplicateStatus{Verdict: VerdictResumable, Attempt: a}
		}
	}
	return status, nil
}

// StartOrResume returns the candidate's attempt for (role, level), creating it
// with a fresh random question set the first time. An existing in_progress
// attempt is returned unchanged; an expired one inside the grace window is reactivated.
// A candidate holds at most one unsubmitted attempt: asking for another role or
// level while one is open is a credential mismatch.
func (s *AttemptService) StartOrResume(ctx context.Context, c *model.Candidate, role, level string) (*model.Attempt, error) {
	existing, err := s.attempts.GetByCandidate(ctx, c.ID, role, level)
	if err == nil {
		return s.resolveExisting(ctx, existing)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get attempt: %w", err)
	}

	graded, err := s.results.HasResults(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("check results: %w", err)
	}
	if graded {
		return nil, ErrAlreadyAttempted
	}

	ids, err := s.questions.FetchQuestions(ctx, role, level, s.quiz.QuestionCount)
	if err != nil {
		return nil, fmt.Errorf("draw questions: %w", err)
	}
	if len(ids) == 0 {
		return nil, ErrNoQuestions
	}

	now := s.now()
	a := &model.Attempt{
		CandidateID:          c.ID,
		Role:                 role,
		Level:                level,
		QuestionIDs:          ids,
		Status:               model.AttemptStatusInProgress,
		StartTime:            now,
		ExpiresAt:            now.Add(s.quiz.Duration),
		DurationSeconds:      int(s.quiz.Duration / time.Second),
		RemainingTimeSeconds: int(s.quiz.Duration / time.Second),
		LastActivityTime:     now,
	}

	if err := s.attempts.Create(ctx, a); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("create attempt: %w", err)
		}
		// Concurrent start: the other request's attempt is the only one.
		winner, fetchErr := s.attempts.GetByCandidate(ctx, c.ID, role, level)
		if errors.Is(fetchErr, pgx.ErrNoRows) {
			// The open attempt that blocked the insert is for another role or level.
			s.log.Info().
				Int64("candidate_id", c.ID).
				Str("role", role).
				Str("level", level).
				Msg("Start refused: another attempt is open")
			return nil, ErrCredentialMismatch
		}
		if fetchErr != nil {
			return nil, fmt.Errorf("concurrent start detected, but fetch failed: %w", fetchErr)
		}
		return s.resolveExisting(ctx, winner)
	}

	s.log.Info().
		Int64("candidate_id", c.ID).
		Int64("attempt_id", a.ID).
		Str("role", role).
		Str("level", level).
		Int("questions", len(ids)).
		Msg("Attempt started")
	return a, nil
}

// resolveExisting applies the resume rules to an attempt that already exists.
// An in_progress attempt is returned as stored, even past its deadline, so the
// client can submit what is in the ledger.
func (s *AttemptService) resolveExisting(ctx context.Context, a *model.Attempt) (*model.Attempt, error) {
	now := s.now()
	switch a.Status {
	case model.AttemptStatusInProgress:
		return a, nil
	case model.AttemptStatusSubmitted:
		return nil, ErrAlreadyAttempted
	}

	if !s.withinGrace(a, now) {
		if err := s.finalizeLapsed(ctx, a); err != nil {
			return nil, err
		}
		return nil, ErrAlreadyAttempted
	}

	ok, err := s.attempts.Reactivate(ctx, a.ID, now.Add(-s.quiz.GraceWindow))
	if err != nil {
		return nil, fmt.Errorf("reactivate attempt: %w", err)
	}

	fresh, err := s.attempts.GetByID(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("reload attempt: %w", err)
	}
	if fresh.Status != model.AttemptStatusInProgress {
		// A submit won the race.
		return nil, ErrAlreadyAttempted
	}
	if ok {
		s.log.Info().Int64("attempt_id", a.ID).Int64("candidate_id", a.CandidateID).Msg("Attempt reactivated inside grace window")
	}
	return fresh, nil
}

// StartNew handles an explicit quiz start for the attempt bound to the session.
func (s *AttemptService) StartNew(ctx context.Context, scope model.RequestScope) (*model.QuizState, error) {
	bound, err := loadOwnedAttempt(ctx, s.attempts, scope.AttemptID, scope)
	if err != nil {
		return nil, err
	}
	c, err := s.getCandidate(ctx, scope.CandidateID)
	if err != nil {
		return nil, err
	}

	a, err := s.StartOrResume(ctx, c, bound.Role, bound.Level)
	if err != nil {
		return nil, err
	}
	return s.renderQuizState(ctx, c, a)
}

// Resume reloads the attempt bound to the session, for a page reload or reconnect.
func (s *AttemptService) Resume(ctx context.Context, scope model.RequestScope) (*model.QuizState, error) {
	bound, err := loadOwnedAttempt(ctx, s.attempts, scope.AttemptID, scope)
	if err != nil {
		return nil, err
	}
	c, err := s.getCandidate(ctx, scope.CandidateID)
	if err != nil {
		return nil, err
	}

	a, err := s.resolveExisting(ctx, bound)
	if err != nil {
		return nil, err
	}
	return s.renderQuizState(ctx, c, a)
}

// renderQuizState assembles the client view of a resolved attempt.
func (s *AttemptService) renderQuizState(ctx context.Context, c *model.Candidate, a *model.Attempt) (*model.QuizState, error) {
	questions, err := s.questions.FetchByIDs(ctx, a.QuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch questions: %w", err)
	}

	ledger, err := s.answers.ListByAttempt(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	answers := make(map[int64]*string, len(ledger))
	for qid, opt := range ledger {
		if a.HasQuestion(qid) {
			answers[qid] = opt
		}
	}

	now := s.now()
	return &model.QuizState{
		AttemptID:            a.ID,
		CandidateID:          c.ID,
		CandidateName:        c.Name,
		Role:                 a.Role,
		Level:                a.Level,
		Status:               a.Status,
		QuestionIDs:          a.QuestionIDs,
		Questions:            questions,
		Answers:              answers,
		CurrentQuestionIndex: a.CurrentQuestionIndex,
		RemainingSeconds:     a.RemainingSeconds(now),
		DurationSeconds:      a.DurationSeconds,
		ExpiresAt:            a.ExpiresAt,
		ServerTime:           now.Unix(),
	}, nil
}

// GetState returns the state of an in_progress attempt, expiring it first when
// its deadline has passed.
func (s *AttemptService) GetState(ctx context.Context, scope model.RequestScope, attemptID int64) (*model.QuizState, error) {
	a, err := loadOwnedAttempt(ctx, s.attempts, attemptID, scope)
	if err != nil {
		return nil, err
	}
	if err := s.timer.ExpireIfDue(ctx, a, s.now()); err != nil {
		return nil, err
	}
	if a.Status != model.AttemptStatusInProgress {
		return nil, &StateError{Status: a.Status}
	}

	c, err := s.getCandidate(ctx, a.CandidateID)
	if err != nil {
		return nil, err
	}
	return s.renderQuizState(ctx, c, a)
}

// NormalizeOption maps "", nil and whitespace to nil and upper-cases A-D.
func NormalizeOption(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	opt := strings.ToUpper(strings.TrimSpace(*raw))
	if opt == "" {
		return nil, nil
	}
	if len(opt) != 1 || opt[0] < 'A' || opt[0] > 'D' {
		return nil, invalidField("selected_option", "selected_option must be one of A, B, C or D")
	}
	return &opt, nil
}

// SaveAnswer records a selection while the attempt is in progress and before its deadline.
func (s *AttemptService) SaveAnswer(ctx context.Context, scope model.RequestScope, req model.SaveAnswerRequest) (*model.Answer, error) {
	opt, err := NormalizeOption(req.SelectedOption)
	if err != nil {
		return nil, err
	}

	a, err := loadOwnedAttempt(ctx, s.attempts, req.AttemptID, scope)
	if err != nil {
		return nil, err
	}
	if a.Status != model.AttemptStatusInProgress {
		return nil, &StateError{Status: a.Status}
	}
	if !a.HasQuestion(req.QuestionID) {
		return nil, invalidField("question_id", "question_id is not part of this attempt")
	}

	now := s.now()
	saved, err := s.answers.Upsert(ctx, a.ID, req.QuestionID, opt, now)
	if err != nil {
		return nil, fmt.Errorf("upsert answer: %w", err)
	}
	if !saved {
		return nil, s.blockedWrite(ctx, a, now)
	}

	s.activity.Touch(ctx, a.ID, now)
	return &model.Answer{
		AttemptID:      a.ID,
		QuestionID:     req.QuestionID,
		SelectedOption: opt,
		SavedAt:        now,
	}, nil
}

// UpdatePosition stores the question index the candidate is viewing.
func (s *AttemptService) UpdatePosition(ctx context.Context, scope model.RequestScope, attemptID int64, index int) error {
	a, err := loadOwnedAttempt(ctx, s.attempts, attemptID, scope)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(a.QuestionIDs) {
		return invalidField("question_index", fmt.Sprintf("question_index must be between 0 and %d", len(a.QuestionIDs)-1))
	}
	if a.Status != model.AttemptStatusInProgress {
		return &StateError{Status: a.Status}
	}

	now := s.now()
	ok, err := s.attempts.UpdatePosition(ctx, a.ID, index, now)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	if !ok {
		return s.blockedWrite(ctx, a, now)
	}
	return nil
}

// blockedWrite explains why a guarded write matched nothing.
func (s *AttemptService) blockedWrite(ctx context.Context, a *model.Attempt, now time.Time) error {
	fresh, err := s.attempts.GetByID(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("reload attempt: %w", err)
	}
	if err := s.timer.ExpireIfDue(ctx, fresh, now); err != nil {
		return err
	}
	status := fresh.Status
	if status == model.AttemptStatusInProgress {
		// Deadline reached between the read and the write.
		status = model.AttemptStatusExpired
	}
	return &StateError{Status: status}
}

// Submit finalizes an attempt and grades it from the ledger. Exactly one caller
// wins the transition; everyone else, including repeat submits, gets the same redirect.
// Answers sent with the request are never graded.
func (s *AttemptService) Submit(ctx context.Context, scope model.RequestScope, req model.SubmitRequest) (*model.SubmitResponse, error) {
	attemptID := req.AttemptID
	if attemptID == 0 {
		attemptID = scope.AttemptID
	}

	a, err := loadOwnedAttempt(ctx, s.attempts, attemptID, scope)
	if err != nil {
		return nil, err
	}

	if len(req.Answers) > 0 {
		s.log.Warn().
			Int64("attempt_id", a.ID).
			Int("fallback_answers", len(req.Answers)).
			Str("request_id", scope.RequestID).
			Msg("Ignoring answers sent with submit; grading from ledger")
	}

	resp := &model.SubmitResponse{
		CandidateID: a.CandidateID,
		AttemptID:   a.ID,
		Redirect:    fmt.Sprintf("/result?candidate_id=%d", a.CandidateID),
	}
	if a.Status == model.AttemptStatusSubmitted {
		return resp, nil
	}

	won, err := s.finalize(ctx, a)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("attempt_id", a.ID).
		Int64("candidate_id", a.CandidateID).
		Bool("won", won).
		Str("request_id", scope.RequestID).
		Msg("Attempt submitted")
	return resp, nil
}

// finalize moves a to submitted and grades its ledger. Only the caller that
// wins the transition writes results.
func (s *AttemptService) finalize(ctx context.Context, a *model.Attempt) (bool, error) {
	key, err := s.questions.FetchAnswerKey(ctx, a.QuestionIDs)
	if err != nil {
		return false, fmt.Errorf("fetch answer key: %w", err)
	}

	won, err := s.submissions.Finalize(ctx, a.ID, a.CandidateID, s.now(), func(questionIDs []int64, ledger map[int64]*string) []model.Result {
		return Grade(a.CandidateID, questionIDs, ledger, key)
	})
	if err != nil {
		return false, fmt.Errorf("finalize attempt: %w", err)
	}
	return won, nil
}

// finalizeLapsed grades an expired attempt whose grace window has closed, so
// the candidate's saved answers still reach the results.
func (s *AttemptService) finalizeLapsed(ctx context.Context, a *model.Attempt) error {
	won, err := s.finalize(ctx, a)
	if err != nil {
		return err
	}
	if won {
		s.log.Info().
			Int64("attempt_id", a.ID).
			Int64("candidate_id", a.CandidateID).
			Msg("Lapsed attempt graded")
	}
	return nil
}

func (s *AttemptService) getCandidate(ctx context.Context, id int64) (*model.Candidate, error) {
	c, err := s.candidates.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get candidate: %w", err)
	}
	return c, nil
}
