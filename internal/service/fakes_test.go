package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/tossconsultancy/assessment-backend/internal/config"
	"github.com/tossconsultancy/assessment-backend/internal/model"
	"github.com/tossconsultancy/assessment-backend/internal/repository"
)

// memDB mirrors the relational guards the pgx repositories rely on.
type memDB struct {
	mu         sync.Mutex
	candidates map[int64]*model.Candidate
	attempts   map[int64]*model.Attempt
	answers    map[int64]map[int64]*string
	results    map[int64][]model.Result
	nextID     int64
	creates    int
}

func newMemDB() *memDB {
	return &memDB{
		candidates: make(map[int64]*model.Candidate),
		attempts:   make(map[int64]*model.Attempt),
		answers:    make(map[int64]map[int64]*string),
		results:    make(map[int64][]model.Result),
	}
}

func (db *memDB) id() int64 {
	db.nextID++
	return db.nextID
}

// ─── Candidates ─────────────────────────────────────────────────────

type fakeCandidates struct{ db *memDB }

func (f fakeCandidates) GetByID(_ context.Context, id int64) (*model.Candidate, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	c, ok := f.db.candidates[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (f fakeCandidates) FindByEmailOrMobile(_ context.Context, email, mobile string) ([]model.Candidate, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []model.Candidate
	for _, c := range f.db.candidates {
		if (email != "" && NormalizeEmail(c.Email) == email) || (mobile != "" && c.Mobile == mobile) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeCandidates) Create(_ context.Context, c *model.Candidate) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, existing := range f.db.candidates {
		if NormalizeEmail(existing.Email) == NormalizeEmail(c.Email) || existing.Mobile == c.Mobile {
			return repository.ErrDuplicateCandidate
		}
	}
	c.ID = f.db.id()
	cp := *c
	f.db.candidates[c.ID] = &cp
	return nil
}

func (f fakeCandidates) UpdateLocation(_ context.Context, id int64, location string, now time.Time) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if c, ok := f.db.candidates[id]; ok {
		c.Location = location
		c.UpdatedAt = now
	}
	return nil
}

// ─── Attempts ───────────────────────────────────────────────────────

type fakeAttempts struct{ db *memDB }

func copyAttempt(a *model.Attempt) *model.Attempt {
	cp := *a
	cp.QuestionIDs = append([]int64(nil), a.QuestionIDs...)
	return &cp
}

func (f fakeAttempts) GetByID(_ context.Context, id int64) (*model.Attempt, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	a, ok := f.db.attempts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return copyAttempt(a), nil
}

func (f fakeAttempts) GetByCandidate(_ context.Context, candidateID int64, role, level string) (*model.Attempt, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, a := range f.db.attempts {
		if a.CandidateID == candidateID && a.Role == role && a.Level == level {
			return copyAttempt(a), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f fakeAttempts) ListByCandidate(_ context.Context, candidateID int64) ([]model.Attempt, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []model.Attempt
	for _, a := range f.db.attempts {
		if a.CandidateID == candidateID {
			out = append(out, *copyAttempt(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeAttempts) Create(_ context.Context, a *model.Attempt) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, existing := range f.db.attempts {
		if existing.CandidateID != a.CandidateID {
			continue
		}
		sameTriple := existing.Role == a.Role && existing.Level == a.Level
		if sameTriple || existing.Status != model.AttemptStatusSubmitted {
			return pgx.ErrNoRows
		}
	}
	a.ID = f.db.id()
	f.db.attempts[a.ID] = copyAttempt(a)
	f.db.creates++
	return nil
}

func (f fakeAttempts) MarkExpired(_ context.Context, id int64, now time.Time) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	a, ok := f.db.attempts[id]
	if !ok || a.Status != model.AttemptStatusInProgress || a.ExpiresAt.After(now) {
		return false, nil
	}
	a.Status = model.AttemptStatusExpired
	a.RemainingTimeSeconds = 0
	if a.ExpiredAt == nil {
		t := now
		a.ExpiredAt = &t
	}
	return true, nil
}

func (f fakeAttempts) Reactivate(_ context.Context, id int64, notBefore time.Time) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	a, ok := f.db.attempts[id]
	if !ok || a.Status != model.AttemptStatusExpired || a.ExpiredAt == nil || a.ExpiredAt.Before(notBefore) {
		return false, nil
	}
	a.Status = model.AttemptStatusInProgress
	return true, nil
}

func (f fakeAttempts) UpdatePosition(_ context.Context, id int64, index int, now time.Time) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	a, ok := f.db.attempts[id]
	if !ok || a.Status != model.AttemptStatusInProgress {
		return false, nil
	}
	a.CurrentQuestionIndex = index
	a.LastActivityTime = now
	return true, nil
}

func (f fakeAttempts) UpdateRemaining(_ context.Context, id int64, remaining int, now time.Time) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if a, ok := f.db.attempts[id]; ok && a.Status == model.AttemptStatusInProgress {
		a.RemainingTimeSeconds = remaining
		a.LastActivityTime = now
	}
	return nil
}

// ─── Answer ledger ──────────────────────────────────────────────────

type fakeAnswers struct{ db *memDB }

func (f fakeAnswers) Upsert(_ context.Context, attemptID, questionID int64, option *string, now time.Time) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	a, ok := f.db.attempts[attemptID]
	if !ok || a.Status != model.AttemptStatusInProgress || !a.ExpiresAt.After(now) {
		return false, nil
	}
	if f.db.answers[attemptID] == nil {
		f.db.answers[attemptID] = make(map[int64]*string)
	}
	f.db.answers[attemptID][questionID] = option
	return true, nil
}

func (f fakeAnswers) ListByAttempt(_ context.Context, attemptID int64) (map[int64]*string, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	out := make(map[int64]*string, len(f.db.answers[attemptID]))
	for k, v := range f.db.answers[attemptID] {
		out[k] = v
	}
	return out, nil
}

// ─── Submission and results ─────────────────────────────────────────

type fakeSubmissions struct{ db *memDB }

func (f fakeSubmissions) Finalize(_ context.Context, attemptID, candidateID int64, now time.Time, grade repository.GradeFunc) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	a, ok := f.db.attempts[attemptID]
	if !ok || a.CandidateID != candidateID ||
		(a.Status != model.AttemptStatusInProgress && a.Status != model.AttemptStatusExpired) {
		return false, nil
	}
	a.Status = model.AttemptStatusSubmitted
	end := now
	a.EndTime = &end

	if len(f.db.results[candidateID]) > 0 {
		return true, nil
	}
	ledger := make(map[int64]*string)
	for k, v := range f.db.answers[attemptID] {
		ledger[k] = v
	}
	f.db.results[candidateID] = grade(a.QuestionIDs, ledger)
	return true, nil
}

type fakeResults struct {
	db        *memDB
	questions *fakeQuestions
}

func (f fakeResults) HasResults(_ context.Context, candidateID int64) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return len(f.db.results[candidateID]) > 0, nil
}

func (f fakeResults) ListByCandidate(_ context.Context, candidateID int64) ([]model.ResultItem, time.Time, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	rows := f.db.results[candidateID]
	items := make([]model.ResultItem, 0, len(rows))
	for _, r := range rows {
		q := f.questions.bank[r.QuestionID]
		items = append(items, model.ResultItem{
			QuestionID:     r.QuestionID,
			Question:       q.Text,
			SelectedOption: r.SelectedOption,
			IsCorrect:      r.IsCorrect,
			CorrectOption:  q.CorrectOption,
		})
	}
	return items, time.Time{}, nil
}

func (f fakeResults) ListSubmissions(_ context.Context, limit, offset int) ([]model.SubmissionSummary, int, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var all []model.SubmissionSummary
	for cid, rows := range f.db.results {
		correct, _ := Score(rows)
		c := f.db.candidates[cid]
		all = append(all, model.SubmissionSummary{CandidateID: cid, Name: c.Name, Correct: correct, Total: len(rows)})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CandidateID < all[j].CandidateID })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// ─── Questions and activity ─────────────────────────────────────────

type fakeQuestions struct {
	bank  map[int64]model.Question
	order []int64
}

// newFakeQuestions seeds n questions for one role and level; every correct option is "A".
func newFakeQuestions(role, level string, n int) *fakeQuestions {
	f := &fakeQuestions{bank: make(map[int64]model.Question)}
	for i := 1; i <= n; i++ {
		id := int64(1000 + i)
		f.bank[id] = model.Question{
			ID: id, Role: role, Level: level, Text: "question",
			OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectOption: "A",
		}
		f.order = append(f.order, id)
	}
	return f
}

// add seeds n more questions for another role and level.
func (f *fakeQuestions) add(role, level string, n int) {
	for i := 0; i < n; i++ {
		id := int64(1001 + len(f.order))
		f.bank[id] = model.Question{
			ID: id, Role: role, Level: level, Text: "question",
			OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectOption: "A",
		}
		f.order = append(f.order, id)
	}
}

func (f *fakeQuestions) FetchQuestions(_ context.Context, role, level string, count int) ([]int64, error) {
	var ids []int64
	for _, id := range f.order {
		q := f.bank[id]
		if q.Role == role && q.Level == level && len(ids) < count {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeQuestions) FetchByIDs(_ context.Context, ids []int64) ([]model.Question, error) {
	out := make([]model.Question, 0, len(ids))
	for _, id := range ids {
		q := f.bank[id]
		q.CorrectOption = ""
		out = append(out, q)
	}
	return out, nil
}

func (f *fakeQuestions) FetchAnswerKey(_ context.Context, ids []int64) (map[int64]string, error) {
	key := make(map[int64]string, len(ids))
	for _, id := range ids {
		key[id] = f.bank[id].CorrectOption
	}
	return key, nil
}

type fakeActivity struct {
	mu      sync.Mutex
	touches map[int64]int
}

func (f *fakeActivity) Touch(_ context.Context, attemptID int64, _ time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.touches == nil {
		f.touches = make(map[int64]int)
	}
	f.touches[attemptID]++
}

func (f *fakeActivity) count(attemptID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.touches[attemptID]
}

// ─── Environment ────────────────────────────────────────────────────

const (
	testRole  = "Backend Developer"
	testLevel = "Beginner"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	db        *memDB
	questions *fakeQuestions
	activity  *fakeActivity
	clock     *clock
	quiz      config.QuizConfig

	timer    *TimerService
	attempts *AttemptService
	identity *IdentityService
	results  *ResultService
}

func newTestEnv() *testEnv {
	db := newMemDB()
	questions := newFakeQuestions(testRole, testLevel, 5)
	activity := &fakeActivity{}
	clk := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	quiz := config.QuizConfig{
		QuestionCount:  5,
		Duration:       2700 * time.Second,
		GraceWindow:    5 * time.Minute,
		DriftThreshold: 5 * time.Second,
	}
	log := zerolog.Nop()

	results := fakeResults{db: db, questions: questions}

	timer := NewTimerService(fakeAttempts{db}, activity, quiz, log)
	timer.now = clk.Now

	attempts := NewAttemptService(
		fakeCandidates{db},
		fakeAttempts{db},
		fakeAnswers{db},
		fakeSubmissions{db},
		results,
		questions,
		activity,
		timer,
		quiz,
		log,
	)
	attempts.now = clk.Now

	identity := NewIdentityService(fakeCandidates{db}, attempts, config.DefaultCatalog(), log)
	identity.now = clk.Now

	return &testEnv{
		db:        db,
		questions: questions,
		activity:  activity,
		clock:     clk,
		quiz:      quiz,
		timer:     timer,
		attempts:  attempts,
		identity:  identity,
		results:   NewResultService(fakeCandidates{db}, fakeAttempts{db}, results, results),
	}
}

func validRegistration() model.RegisterRequest {
	return model.RegisterRequest{
		Name:     "Asha Rao",
		Email:    "a@x.com",
		Mobile:   "9876543210",
		Role:     testRole,
		Level:    testLevel,
		Location: "Pune",
	}
}

// register runs the registration path the handler uses and returns the scope a session would carry.
func (e *testEnv) register(req model.RegisterRequest) (model.RequestScope, *model.Attempt, error) {
	ctx := context.Background()
	reg, err := e.identity.RegisterOrResume(ctx, req)
	if err != nil {
		return model.RequestScope{}, nil, err
	}
	a, err := e.attempts.StartOrResume(ctx, reg.Candidate, reg.Role, reg.Level)
	if err != nil {
		return model.RequestScope{}, nil, err
	}
	return model.RequestScope{CandidateID: reg.Candidate.ID, AttemptID: a.ID, RequestID: "test"}, a, nil
}

func opt(s string) *string { return &s }
