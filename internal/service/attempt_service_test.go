package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tossconsultancy/assessment-backend/internal/model"
)

func TestStartOrResume_ConcurrentStartsCreateOneAttempt(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	reg, err := env.identity.RegisterOrResume(ctx, validRegistration())
	require.NoError(t, err)

	const callers = 16
	ids := make([]int64, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := env.attempts.StartOrResume(ctx, reg.Candidate, reg.Role, reg.Level)
			errs[i] = err
			if err == nil {
				ids[i] = a.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, 1, env.db.creates)
}

func TestStartOrResume_OneOpenAttemptPerCandidate(t *testing.T) {
	const otherRole = "Python Developer"

	t.Run("sequential", func(t *testing.T) {
		env := newTestEnv()
		env.questions.add(otherRole, testLevel, 5)
		ctx := context.Background()

		// Both registrations see a known identity without an attempt.
		backend, err := env.identity.RegisterOrResume(ctx, validRegistration())
		require.NoError(t, err)
		req := validRegistration()
		req.Role = otherRole
		python, err := env.identity.RegisterOrResume(ctx, req)
		require.NoError(t, err)

		first, err := env.attempts.StartOrResume(ctx, backend.Candidate, backend.Role, backend.Level)
		require.NoError(t, err)
		_, err = env.attempts.StartOrResume(ctx, python.Candidate, python.Role, python.Level)
		assert.ErrorIs(t, err, ErrCredentialMismatch)

		attempts, _ := fakeAttempts{env.db}.ListByCandidate(ctx, backend.Candidate.ID)
		require.Len(t, attempts, 1)
		assert.Equal(t, first.ID, attempts[0].ID)
	})

	t.Run("concurrent", func(t *testing.T) {
		env := newTestEnv()
		env.questions.add(otherRole, testLevel, 5)
		ctx := context.Background()
		reg, err := env.identity.RegisterOrResume(ctx, validRegistration())
		require.NoError(t, err)

		roles := []string{testRole, otherRole}
		errs := make([]error, len(roles))
		var wg sync.WaitGroup
		for i, role := range roles {
			wg.Add(1)
			go func(i int, role string) {
				defer wg.Done()
				_, errs[i] = env.attempts.StartOrResume(ctx, reg.Candidate, role, testLevel)
			}(i, role)
		}
		wg.Wait()

		var started, refused int
		for _, err := range errs {
			switch {
			case err == nil:
				started++
			case errors.Is(err, ErrCredentialMismatch):
				refused++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, started)
		assert.Equal(t, 1, refused)
		assert.Equal(t, 1, env.db.creates)
	})
}

func TestResume_NeverChangesQuestionsOrDeadline(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	scope, first, err := env.register(validRegistration())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		env.clock.Advance(time.Minute)
		state, err := env.attempts.Resume(ctx, scope)
		require.NoError(t, err)
		assert.Equal(t, first.QuestionIDs, state.QuestionIDs)
		assert.Equal(t, first.ExpiresAt, state.ExpiresAt)

		again, err := env.attempts.StartNew(ctx, scope)
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.AttemptID)
		assert.Equal(t, first.QuestionIDs, again.QuestionIDs)
	}
	assert.Equal(t, 1, env.db.creates)
}

func TestStartOrResume_NoQuestions(t *testing.T) {
	env := newTestEnv()
	req := validRegistration()
	req.Role = "Data Analytics"

	_, _, err := env.register(req)
	assert.ErrorIs(t, err, ErrNoQuestions)
	assert.Zero(t, env.db.creates)
}

func TestSaveAnswer_IdempotentUpsert(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	scope, a, err := env.register(validRegistration())
	require.NoError(t, err)
	qid := a.QuestionIDs[0]

	for i := 0; i < 2; i++ {
		saved, err := env.attempts.SaveAnswer(ctx, scope, model.SaveAnswerRequest{AttemptID: a.ID, QuestionID: qid, SelectedOption: opt("a")})
		require.NoError(t, err)
		assert.Equal(t, "A", *saved.SelectedOption)
	}
	ledger, _ := fakeAnswers{env.db}.ListByAttempt(ctx, a.ID)
	require.Len(t, ledger, 1)
	assert.Equal(t, "A", *ledger[qid])

	_, err = env.attempts.SaveAnswer(ctx, scope, model.SaveAnswerRequest{AttemptID: a.ID, QuestionID: qid, SelectedOption: opt("C")})
	require.NoError(t, err)
	ledger, _ = fakeAnswers{env.db}.ListByAttempt(ctx, a.ID)
	assert.Equal(t, "C", *ledger[qid])

	// Clearing keeps the row with no selection.
	_, err = env.attempts.SaveAnswer(ctx, scope, model.SaveAnswerRequest{AttemptID: a.ID, QuestionID: qid})
	require.NoError(t, err)
	ledger, _ = fakeAnswers{env.db}.ListByAttempt(ctx, a.ID)
	require.Contains(t, ledger, qid)
	assert.Nil(t, ledger[qid])
}

func TestSaveAnswer_Validation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	scope, a, err := env.register(validRegistration())
	require.NoError(t, err)

	_, err = env.attempts.SaveAnswer(ctx, scope, model.SaveAnswerRequest{AttemptID: a.ID, QuestionID: a.QuestionIDs[0], SelectedOption: opt("E")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.attempts.SaveAnswer(ctx, scope, model.SaveAnswerRequest{AttemptID: a.ID, QuestionID: 1, SelectedOption: opt("A")})
	var inputErr *InputError
	require.True(t, errors.As(err, &inputErr))
	assert.Contains(t, inputErr.Fields, "question_id")
}

func TestSaveAnswer_RejectedAfterDeadline(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	scope, a, err := env.register(validRegistration())
	require.NoError(t, err)

	// No one polled; storage still says in_progress.
	env.clock.Advance(env.quiz.Duration + time.Second)
	_, err = env.attempts.SaveAnswer(ctx, scope, model.SaveAnswerRequest{AttemptID: a.ID, QuestionID: a.QuestionIDs[0], SelectedOption: opt("A")})

	var stateErr *StateError
	require.True(t, errors.As(err, &stateErr))
	assert.Equal(t, model.AttemptStatusExpired, stateErr.Status)
	assert.ErrorIs(t, err, ErrNotInProgress)

	ledger, _ := fakeAnswers{env.db}.ListByAttempt(ctx, a.ID)
	assert.Empty(t, ledger)

	stored, _ := fakeAttempts{env.db}.GetByID(ctx, a.ID)
	assert.Equal(t, model.AttemptStatusExpired, stored.Status)
}

func TestUpdatePosition(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	scope, a, err := env.register(validRegistration())
	require.NoError(t, err)

	require.NoError(t, env.attempts.UpdatePosition(ctx, scope, a.ID, 3))
	state, err := env.attempts.Resume(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, 3, state.CurrentQuestionIndex)

	err = env.attempts.UpdatePosition(ctx, scope, a.ID, len(a.QuestionIDs))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.attempts.Submit(ctx, scope, model.SubmitRequest{AttemptID: a.ID})
	require.NoError(t, err)
	err = env.attempts.UpdatePosition(ctx, scope, a.ID, 1)
	assert.ErrorIs(t, err, ErrNotInProgress)
}

func TestSubmit_ConcurrentCallersGradeOnce(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	scope, a, err := env.register(validRegistration())
	require.NoError(t, err)

	_, err = env.attempts.SaveAnswer(ctx, scope, model.SaveAnswerRequest{AttemptID: a.ID, QuestionID: a.QuestionIDs[0], SelectedOption: opt("A")})
	require.NoError(t, err)

	const callers = 8
	responses := make([]*model.SubmitResponse, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			responses[i], errs[i] = env.attempts.Submit(ctx, scope, model.SubmitRequest{AttemptID: a.ID})
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, fmt.Sprintf("/result?candidate_id=%d", scope.CandidateID), responses[i].Redirect)
	}
	assert.Len(t, env.db.results[scope.CandidateID], len(a.QuestionIDs))
}

func TestSubmit_IgnoresFallbackAnswers(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	scope, a, err := env.register(validRegistration())
	require.NoError(t, err)

	fallback := map[string]*string{}
	for _, id := range a.QuestionIDs {
		fallback[fmt.Sprint(id)] = opt("A")
	}
	// Attempt ID defaults to the session's.
	_, err = env.attempts.Submit(ctx, scope, model.SubmitRequest{Answers: fallback})
	require.NoError(t, err)

	correct, attempted := Score(env.db.results[scope.CandidateID])
	assert.Zero(t, correct)
	assert.Zero(t, attempted)
}

func TestScenario_ExpiredAttemptStillSubmits(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	scope, a, err := env.register(validRegistration())
	require.NoError(t, err)
	assert.Len(t, a.QuestionIDs, env.quiz.QuestionCount)
	assert.Equal(t, env.clock.Now().Add(2700*time.Second), a.ExpiresAt)

	_, err = env.attempts.SaveAnswer(ctx, scope, model.SaveAnswerRequest{AttemptID: a.ID, QuestionID: a.QuestionIDs[0], SelectedOption: opt("A")})
	require.NoError(t, err)

	env.clock.Advance(90 * time.Second)
	state, err := env.attempts.Resume(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, "A", *state.Answers[a.QuestionIDs[0]])
	assert.Equal(t, 2610, state.RemainingSeconds)
	for _, q := range state.Questions {
		assert.Empty(t, q.CorrectOption)
	}

	env.clock.Advance(2700 * time.Second)
	tick, err := env.timer.Sync(ctx, scope, a.ID, nil)
	require.NoError(t, err)
	assert.True(t, tick.Expired)

	_, err = env.attempts.GetState(ctx, scope, a.ID)
	assert.ErrorIs(t, err, ErrNotInProgress)

	_, err = env.attempts.Submit(ctx, scope, model.SubmitRequest{AttemptID: a.ID})
	require.NoError(t, err)

	results := env.db.results[scope.CandidateID]
	require.Len(t, results, len(a.QuestionIDs))
	correct, attempted := Score(results)
	assert.Equal(t, 1, correct)
	assert.Equal(t, 1, attempted)
	for _, r := range results[1:] {
		assert.Nil(t, r.SelectedOption)
		assert.Nil(t, r.IsCorrect)
	}

	stored, _ := fakeAttempts{env.db}.GetByID(ctx, a.ID)
	assert.Equal(t, model.AttemptStatusSubmitted, stored.Status)
	assert.NotNil(t, stored.EndTime)
}

func TestCrossCandidateAccessIsForbidden(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	_, victim, err := env.register(validRegistration())
	require.NoError(t, err)

	other := validRegistration()
	other.Name = "Ravi Kumar"
	other.Email = "ravi@example.com"
	other.Mobile = "9123456780"
	attacker, _, err := env.register(other)
	require.NoError(t, err)

	_, err = env.attempts.GetState(ctx, attacker, victim.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.attempts.SaveAnswer(ctx, attacker, model.SaveAnswerRequest{AttemptID: victim.ID, QuestionID: victim.QuestionIDs[0], SelectedOption: opt("A")})
	assert.ErrorIs(t, err, ErrForbidden)

	assert.ErrorIs(t, env.attempts.UpdatePosition(ctx, attacker, victim.ID, 0), ErrForbidden)

	_, err = env.attempts.Submit(ctx, attacker, model.SubmitRequest{AttemptID: victim.ID})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.timer.Sync(ctx, attacker, victim.ID, nil)
	assert.ErrorIs(t, err, ErrForbidden)

	// Resume through a scope whose attempt is someone else's.
	forged := attacker
	forged.AttemptID = victim.ID
	_, err = env.attempts.Resume(ctx, forged)
	assert.ErrorIs(t, err, ErrForbidden)

	stored, _ := fakeAttempts{env.db}.GetByID(ctx, victim.ID)
	assert.Equal(t, model.AttemptStatusInProgress, stored.Status)
}

func TestGraceWindow(t *testing.T) {
	t.Run("reactivates inside the window", func(t *testing.T) {
		env := newTestEnv()
		ctx := context.Background()
		scope, a, err := env.register(validRegistration())
		require.NoError(t, err)

		env.clock.Advance(env.quiz.Duration + time.Second)
		_, err = env.timer.Sync(ctx, scope, a.ID, nil)
		require.NoError(t, err)

		env.clock.Advance(2 * time.Minute)
		state, err := env.attempts.Resume(ctx, scope)
		require.NoError(t, err)
		assert.Equal(t, model.AttemptStatusInProgress, state.Status)
		assert.Equal(t, a.ExpiresAt, state.ExpiresAt)
		assert.Zero(t, state.RemainingSeconds)

		// The reactivated attempt can still be submitted.
		_, err = env.attempts.Submit(ctx, scope, model.SubmitRequest{AttemptID: a.ID})
		require.NoError(t, err)
	})

	t.Run("unpolled attempt past the deadline resumes at zero", func(t *testing.T) {
		env := newTestEnv()
		ctx := context.Background()
		scope, a, err := env.register(validRegistration())
		require.NoError(t, err)
		_, err = env.attempts.SaveAnswer(ctx, scope, model.SaveAnswerRequest{AttemptID: a.ID, QuestionID: a.QuestionIDs[0], SelectedOption: opt("A")})
		require.NoError(t, err)

		// Browser closed; nothing polled until well after the deadline.
		env.clock.Advance(env.quiz.Duration + 10*time.Minute)
		scope, again, err := env.register(validRegistration())
		require.NoError(t, err)
		assert.Equal(t, a.ID, again.ID)

		state, err := env.attempts.Resume(ctx, scope)
		require.NoError(t, err)
		assert.Equal(t, model.AttemptStatusInProgress, state.Status)
		assert.Zero(t, state.RemainingSeconds)
		assert.Equal(t, "A", *state.Answers[a.QuestionIDs[0]])

		_, err = env.attempts.Submit(ctx, scope, model.SubmitRequest{AttemptID: a.ID})
		require.NoError(t, err)

		results := env.db.results[scope.CandidateID]
		require.Len(t, results, len(a.QuestionIDs))
		_, attempted := Score(results)
		assert.Equal(t, 1, attempted)
	})

	t.Run("window runs from the expiry mark", func(t *testing.T) {
		env := newTestEnv()
		ctx := context.Background()
		scope, a, err := env.register(validRegistration())
		require.NoError(t, err)

		env.clock.Advance(env.quiz.Duration + 10*time.Minute)
		tick, err := env.timer.Sync(ctx, scope, a.ID, nil)
		require.NoError(t, err)
		assert.True(t, tick.Expired)

		env.clock.Advance(2 * time.Minute)
		state, err := env.attempts.Resume(ctx, scope)
		require.NoError(t, err)
		assert.Equal(t, model.AttemptStatusInProgress, state.Status)
		assert.Equal(t, a.ExpiresAt, state.ExpiresAt)
	})

	t.Run("closed window grades the ledger and locks out", func(t *testing.T) {
		env := newTestEnv()
		ctx := context.Background()
		scope, a, err := env.register(validRegistration())
		require.NoError(t, err)
		_, err = env.attempts.SaveAnswer(ctx, scope, model.SaveAnswerRequest{AttemptID: a.ID, QuestionID: a.QuestionIDs[0], SelectedOption: opt("A")})
		require.NoError(t, err)

		env.clock.Advance(env.quiz.Duration + time.Second)
		_, err = env.timer.Sync(ctx, scope, a.ID, nil)
		require.NoError(t, err)
		stored, _ := fakeAttempts{env.db}.GetByID(ctx, a.ID)
		require.NotNil(t, stored.ExpiredAt)
		firstMark := *stored.ExpiredAt

		// A reactivation inside the window does not renew it.
		env.clock.Advance(time.Minute)
		_, err = env.attempts.Resume(ctx, scope)
		require.NoError(t, err)
		_, err = env.timer.Sync(ctx, scope, a.ID, nil)
		require.NoError(t, err)
		stored, _ = fakeAttempts{env.db}.GetByID(ctx, a.ID)
		assert.Equal(t, firstMark, *stored.ExpiredAt)

		env.clock.Advance(env.quiz.GraceWindow)
		_, _, err = env.register(validRegistration())
		assert.ErrorIs(t, err, ErrAlreadyAttempted)

		_, err = env.attempts.Resume(ctx, scope)
		assert.ErrorIs(t, err, ErrAlreadyAttempted)

		results := env.db.results[scope.CandidateID]
		require.Len(t, results, len(a.QuestionIDs))
		correct, attempted := Score(results)
		assert.Equal(t, 1, correct)
		assert.Equal(t, 1, attempted)

		stored, _ = fakeAttempts{env.db}.GetByID(ctx, a.ID)
		assert.Equal(t, model.AttemptStatusSubmitted, stored.Status)
	})

	t.Run("submitted is never reactivated", func(t *testing.T) {
		env := newTestEnv()
		ctx := context.Background()
		scope, a, err := env.register(validRegistration())
		require.NoError(t, err)

		_, err = env.attempts.Submit(ctx, scope, model.SubmitRequest{AttemptID: a.ID})
		require.NoError(t, err)

		_, err = env.attempts.Resume(ctx, scope)
		assert.ErrorIs(t, err, ErrAlreadyAttempted)
	})
}

func TestCheckDuplicate(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	dup, err := env.attempts.CheckDuplicate(ctx, 999)
	require.NoError(t, err)
	assert.Equal(t, VerdictNone, dup.Verdict)

	scope, a, err := env.register(validRegistration())
	require.NoError(t, err)

	dup, err = env.attempts.CheckDuplicate(ctx, scope.CandidateID)
	require.NoError(t, err)
	assert.Equal(t, VerdictResumable, dup.Verdict)
	assert.Equal(t, a.ID, dup.Attempt.ID)

	_, err = env.attempts.Submit(ctx, scope, model.SubmitRequest{AttemptID: a.ID})
	require.NoError(t, err)

	dup, err = env.attempts.CheckDuplicate(ctx, scope.CandidateID)
	require.NoError(t, err)
	assert.Equal(t, VerdictAttempted, dup.Verdict)
}

func TestNormalizeOption(t *testing.T) {
	cases := []struct {
		in      *string
		want    *string
		wantErr bool
	}{
		{in: nil, want: nil},
		{in: opt(""), want: nil},
		{in: opt("  "), want: nil},
		{in: opt(" b "), want: opt("B")},
		{in: opt("D"), want: opt("D")},
		{in: opt("E"), wantErr: true},
		{in: opt("AB"), wantErr: true},
	}
	for _, tc := range cases {
		got, err := NormalizeOption(tc.in)
		if tc.wantErr {
			assert.ErrorIs(t, err, ErrInvalidInput)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}
