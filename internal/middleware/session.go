package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tossconsultancy/assessment-backend/internal/model"
	"github.com/tossconsultancy/assessment-backend/internal/response"
	"github.com/tossconsultancy/assessment-backend/internal/service"
)

// ContextKeyScope is the Gin context key for the candidate request scope.
const ContextKeyScope = "scope"

// CheckCandidateSession rejects tokens that are no longer the candidate's bound
// session (a newer registration replaced them) and builds the request scope.
func CheckCandidateSession(sessions *service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if err := sessions.ValidateCandidateSession(c.Request.Context(), claims); err != nil {
			if errors.Is(err, service.ErrSessionInvalidated) {
				response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
				return
			}
			_ = c.Error(err)
			response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}

		c.Set(ContextKeyScope, model.RequestScope{
			CandidateID: claims.CandidateID,
			AttemptID:   claims.AttemptID,
			RequestID:   response.RequestID(c),
		})
		c.Next()
	}
}

// GetScope returns the scope set by CheckCandidateSession.
func GetScope(c *gin.Context) (model.RequestScope, bool) {
	val, exists := c.Get(ContextKeyScope)
	if !exists {
		return model.RequestScope{}, false
	}
	scope, ok := val.(model.RequestScope)
	return scope, ok
}
