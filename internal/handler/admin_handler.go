package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/tossconsultancy/assessment-backend/internal/middleware"
	"github.com/tossconsultancy/assessment-backend/internal/model"
	"github.com/tossconsultancy/assessment-backend/internal/response"
	"github.com/tossconsultancy/assessment-backend/internal/service"
	"github.com/tossconsultancy/assessment-backend/internal/validator"
)

// AdminHandler handles reviewer endpoints.
type AdminHandler struct {
	admins  *service.AdminService
	results *service.ResultService
	log     zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(admins *service.AdminService, results *service.ResultService, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		admins:  admins,
		results: results,
		log:     log.With().Str("component", "admin_handler").Logger(),
	}
}

// Login godoc
// POST /api/v1/auth/admin/login
// Authenticates an admin and returns a JWT.
func (h *AdminHandler) Login(c *gin.Context) {
	var req model.AdminLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.admins.Login(c.Request.Context(), req)
	if err != nil {
		failWithServiceError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// ListSubmissions godoc
// GET /api/v1/admin/submissions?page=&per_page=
// Lists graded candidates with their scores, most recent first.
func (h *AdminHandler) ListSubmissions(c *gin.Context) {
	var q model.ListSubmissionsQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	items, pagination, err := h.results.ListSubmissions(c.Request.Context(), q.Page, q.PerPage)
	if err != nil {
		failWithServiceError(c, h.log, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"submissions": items}, pagination)
}

// GetCandidateResult godoc
// GET /api/v1/admin/candidates/:id/result
// Returns a candidate's graded answers including the correct options.
func (h *AdminHandler) GetCandidateResult(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	view, err := h.results.ForAdmin(c.Request.Context(), id)
	if err != nil {
		failWithServiceError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// PurgeCandidates godoc
// POST /api/v1/admin/candidates/purge
// Deletes candidates with their attempts, answers and results.
func (h *AdminHandler) PurgeCandidates(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.PurgeCandidatesRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	names, err := h.admins.PurgeCandidates(c.Request.Context(), claims.AdminID, req.CandidateIDs)
	if err != nil {
		failWithServiceError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, model.PurgeCandidatesResponse{Deleted: names})
}
