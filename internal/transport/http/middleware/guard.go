package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/busline/backoffice-iam/internal/core/domain"
)

// Authorizer decides whether a subject holds a permission.
type Authorizer interface {
	Authorize(ctx context.Context, subject domain.Subject, perm domain.PermissionID) (bool, error)
}

// PermissionDeniedResponse is the 403 body naming the permission the caller lacks.
type PermissionDeniedResponse struct {
	Error      string              `json:"error"`
	Permission domain.PermissionID `json:"permission"`
	TraceID    string              `json:"trace_id,omitempty"`
}

// RequirePermission admits the request only when the authenticated subject holds perm.
// It must run after RequireAuth. Resolution failures deny with 503 so a storage outage never grants access.
func RequirePermission(authz Authorizer, perm domain.PermissionID, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		subject, ok := CurrentSubject(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, notAuthenticated))
			return
		}

		allowed, err := authz.Authorize(c.Request.Context(), subject, perm)
		if err != nil {
			logger.Warn("permission check failed",
				zap.String("trace_id", GetTraceID(c)),
				zap.String("permission", string(perm)),
				zap.Error(err),
			)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, newErrorResponse(c, "authorization unavailable"))
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, PermissionDeniedResponse{
				Error:      "missing permission",
				Permission: perm,
				TraceID:    GetTraceID(c),
			})
			return
		}

		c.Set(authorizedPermKey, perm)
		c.Next()
	}
}

// RequirePrincipalKind admits the request only when the authenticated caller is one of kinds.
// It must run after RequireAuth.
func RequirePrincipalKind(kinds ...domain.PrincipalKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, notAuthenticated))
			return
		}
		for _, kind := range kinds {
			if claims.PrincipalKind == kind {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, newErrorResponse(c, "principal kind not allowed"))
	}
}
