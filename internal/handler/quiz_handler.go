package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/tossconsultancy/assessment-backend/internal/middleware"
	"github.com/tossconsultancy/assessment-backend/internal/model"
	"github.com/tossconsultancy/assessment-backend/internal/response"
	"github.com/tossconsultancy/assessment-backend/internal/service"
	"github.com/tossconsultancy/assessment-backend/internal/validator"
)

// QuizHandler handles candidate-facing endpoints.
type QuizHandler struct {
	identity     *service.IdentityService
	attempts     *service.AttemptService
	timer        *service.TimerService
	results      *service.ResultService
	sessions     *service.SessionService
	secureCookie bool
	log          zerolog.Logger
}

// NewQuizHandler creates a new QuizHandler.
func NewQuizHandler(
	identity *service.IdentityService,
	attempts *service.AttemptService,
	timer *service.TimerService,
	results *service.ResultService,
	sessions *service.SessionService,
	secureCookie bool,
	log zerolog.Logger,
) *QuizHandler {
	return &QuizHandler{
		identity:     identity,
		attempts:     attempts,
		timer:        timer,
		results:      results,
		sessions:     sessions,
		secureCookie: secureCookie,
		log:          log.With().Str("component", "quiz_handler").Logger(),
	}
}

// RegisterOrResume godoc
// POST /api/v1/register-or-resume
// Resolves the candidate, starts or resumes their attempt and binds a session to it.
func (h *QuizHandler) RegisterOrResume(c *gin.Context) {
	var req model.RegisterRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	ctx := c.Request.Context()
	reg, err := h.identity.RegisterOrResume(ctx, req)
	if err != nil {
		failWithServiceError(c, h.log, err)
		return
	}

	attempt, err := h.attempts.StartOrResume(ctx, reg.Candidate, reg.Role, reg.Level)
	if err != nil {
		failWithServiceError(c, h.log, err)
		return
	}

	token, err := h.sessions.IssueCandidateToken(ctx, reg.Candidate.ID, attempt.ID)
	if err != nil {
		failWithServiceError(c, h.log, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookieName, token, int(h.sessions.TTL().Seconds()), "/", "", h.secureCookie, true)

	status := http.StatusCreated
	if reg.Resume {
		status = http.StatusOK
	}
	response.Success(c, status, model.RegisterResponse{
		Token:       token,
		CandidateID: reg.Candidate.ID,
		AttemptID:   attempt.ID,
		Resumed:     reg.Resume,
		Redirect:    "/quiz",
	})
}

// CheckAttempt godoc
// POST /api/v1/check-attempt
// Tells the registration form whether an email or mobile is known and locked out.
func (h *QuizHandler) CheckAttempt(c *gin.Context) {
	var req model.CheckAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.identity.CheckAttempt(c.Request.Context(), req)
	if err != nil {
		failWithServiceError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// StartQuiz godoc
// POST /api/v1/quiz
// Starts the session's attempt, or resumes it when it already exists.
func (h *QuizHandler) StartQuiz(c *gin.Context) {
	scope, ok := middleware.GetScope(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	state, err := h.attempts.StartNew(c.Request.Context(), scope)
	if err != nil {
		failWithServiceError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// ResumeQuiz godoc
// GET /api/v1/quiz
// Reloads the session's attempt with saved answers and the authoritative remaining time.
func (h *QuizHandler) ResumeQuiz(c *gin.Context) {
	scope, ok := middleware.GetScope(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	state, err := h.attempts.Resume(c.Request.Context(), scope)
	if err != nil {
		failWithServiceError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

type attemptQuery struct {
	AttemptID int64 `form:"attempt_id" binding:"required,gt=0"`
}

// GetState godoc
// GET /api/v1/quiz/state?attempt_id=
// Returns the state of an in-progress attempt; expired attempts answer 403.
func (h *QuizHandler) GetState(c *gin.Context) {
	scope, ok := middleware.GetScope(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var q attemptQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	state, err := h.attempts.GetState(c.Request.Context(), scope, q.AttemptID)
	if err != nil {
		failWithServiceError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// SaveAnswer godoc
// POST /api/v1/answers/save
// Upserts one selection; null clears it.
func (h *QuizHandler) SaveAnswer(c *gin.Context) {
	scope, ok := middleware.GetScope(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SaveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	answer, err := h.attempts.SaveAnswer(c.Request.Context(), scope, req)
	if err != nil {
		failWithServiceError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, answer)
}

// SyncTimer godoc
// POST /api/v1/timer/sync
// Returns the server's remaining seconds and whether the client clock must be corrected.
func (h *QuizHandler) SyncTimer(c *gin.Context) {
	scope, ok := middleware.GetScope(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.TimerSyncRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sync, err := h.timer.Sync(c.Request.Context(), scope, req.AttemptID, req.ClientRemainingSeconds)
	if err != nil {
		failWithServiceError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, sync)
}

// UpdatePosition godoc
// POST /api/v1/position/update
// Remembers the question the candidate is viewing.
func (h *QuizHandler) UpdatePosition(c *gin.Context) {
	scope, ok := middleware.GetScope(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.UpdatePositionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.attempts.UpdatePosition(c.Request.Context(), scope, req.AttemptID, *req.QuestionIndex); err != nil {
		failWithServiceError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"question_index": *req.QuestionIndex})
}

// Submit godoc
// POST /api/v1/submit
// Finalizes and grades the attempt. Repeat submits get the same redirect.
func (h *QuizHandler) Submit(c *gin.Context) {
	scope, ok := middleware.GetScope(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SubmitRequest
	if c.Request.ContentLength != 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	res, err := h.attempts.Submit(c.Request.Context(), scope, req)
	if err != nil {
		failWithServiceError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// GetResult godoc
// GET /api/v1/result?candidate_id=
// Returns the caller's graded submission.
func (h *QuizHandler) GetResult(c *gin.Context) {
	scope, ok := middleware.GetScope(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var q model.ResultQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.results.ForCandidate(c.Request.Context(), scope, q.CandidateID)
	if err != nil {
		failWithServiceError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}
