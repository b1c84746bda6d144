package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/tossconsultancy/assessment-backend/internal/middleware"
	"github.com/tossconsultancy/assessment-backend/internal/response"
	"github.com/tossconsultancy/assessment-backend/internal/service"
)

// failWithServiceError maps a service error onto the response envelope.
// Unknown errors are logged and reported as a generic 500.
func failWithServiceError(c *gin.Context, log zerolog.Logger, err error) {
	var inputErr *service.InputError
	var stateErr *service.StateError

	switch {
	case errors.As(err, &inputErr):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, inputErr.Fields)
	case errors.As(err, &stateErr):
		response.FailWithFields(c, http.StatusForbidden, response.ErrNotInProgress, map[string]string{
			"status": string(stateErr.Status),
		})
	case errors.Is(err, service.ErrAlreadyAttempted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadyAttempted)
	case errors.Is(err, service.ErrCredentialMismatch):
		response.Fail(c, http.StatusConflict, response.ErrCredentialMismatch)
	case errors.Is(err, service.ErrForbidden):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusServiceUnavailable, response.ErrNoQuestions)
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
	case errors.Is(err, service.ErrSessionInvalidated):
		response.Fail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
	default:
		evt := log.Error().Err(err).Str("request_id", response.RequestID(c)).Str("path", c.FullPath())
		if scope, ok := middleware.GetScope(c); ok {
			evt = evt.Int64("candidate_id", scope.CandidateID).Int64("attempt_id", scope.AttemptID)
		}
		evt.Msg("Request failed")
		_ = c.Error(err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
