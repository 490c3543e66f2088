package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/busline/backoffice-iam/internal/core/domain"
)

const notAuthenticated = "not authenticated"

// ErrorResponse is the JSON error body shared by middleware and handlers.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// SessionValidator checks bearer tokens.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*domain.SessionClaims, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireAuth validates the bearer token and stores the claims. Every failure, whatever its cause,
// produces the same 401 body so callers learn nothing about why a token was refused.
func RequireAuth(sessions SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, notAuthenticated))
			return
		}

		claims, err := sessions.ValidateSession(c.Request.Context(), token)
		if err != nil || claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, notAuthenticated))
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}
