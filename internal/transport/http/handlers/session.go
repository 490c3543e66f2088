package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/busline/backoffice-iam/internal/core/domain"
	"github.com/busline/backoffice-iam/internal/transport/http/middleware"
	"github.com/busline/backoffice-iam/internal/usecase"
)

// SessionController is the part of the session manager the HTTP layer drives.
type SessionController interface {
	RefreshSession(ctx context.Context, token, ip, userAgent string) (*domain.IssuedSession, error)
	EndSession(ctx context.Context, token string) (*domain.SessionClaims, error)
	EndAllSessions(ctx context.Context, kind domain.PrincipalKind, principalID, reason string) (int, error)
	ListSessions(ctx context.Context, kind domain.PrincipalKind, principalID string) ([]domain.Session, error)
}

// SessionHandler exposes endpoints for session rotation and revocation.
type SessionHandler struct {
	sessions SessionController
	now      func() time.Time
}

// NewSessionHandler constructs a session handler.
func NewSessionHandler(sessions SessionController) *SessionHandler {
	return &SessionHandler{sessions: sessions, now: time.Now}
}

// RegisterPublicRoutes binds the routes that authenticate from the bearer token themselves.
// Refresh must accept tokens inside the grace period that RequireAuth would already refuse.
func (h *SessionHandler) RegisterPublicRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.POST("/refresh", h.Refresh)
	r.POST("/logout", h.Logout)
}

// RegisterRoutes binds routes that require an authenticated session.
func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.GET("", h.ListSessions)
	r.POST("/logout-all", h.LogoutAll)
}

// Refresh godoc
// @Summary Rotate the bearer token
// @Tags Sessions
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Success 200 {object} TokenPayload
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/sessions/refresh [post]
func (h *SessionHandler) Refresh(c *gin.Context) {
	token, ok := middleware.BearerToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "not authenticated"))
		return
	}

	reqCtx := middleware.GetRequestContext(c)
	issued, err := h.sessions.RefreshSession(c.Request.Context(), token, reqCtx.IP, reqCtx.UserAgent)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to refresh session")
		return
	}

	middleware.SetAuditActor(c, issued.Claims.PrincipalID)
	middleware.SetAudit(c, middleware.AuditRecord{
		Action:       "session.refresh",
		ResourceType: "session",
		ResourceID:   issued.Claims.SessionID,
		Detail:       map[string]any{"principal_kind": string(issued.Claims.PrincipalKind)},
	})
	c.JSON(http.StatusOK, newTokenPayload(*issued, h.now()))
}

// Logout godoc
// @Summary End the current session
// @Tags Sessions
// @Param Authorization header string true "Bearer token"
// @Success 204
// @Router /api/v1/sessions/logout [post]
func (h *SessionHandler) Logout(c *gin.Context) {
	token, ok := middleware.BearerToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "not authenticated"))
		return
	}

	claims, err := h.sessions.EndSession(c.Request.Context(), token)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to end session")
		return
	}

	middleware.SetAuditActor(c, claims.PrincipalID)
	middleware.SetAudit(c, middleware.AuditRecord{
		Action:       "session.logout",
		ResourceType: "session",
		ResourceID:   claims.SessionID,
		Detail:       map[string]any{"principal_kind": string(claims.PrincipalKind)},
	})
	c.Status(http.StatusNoContent)
}

// LogoutAll revokes every session of the caller, including the one making the request.
func (h *SessionHandler) LogoutAll(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "not authenticated"))
		return
	}

	count, err := h.sessions.EndAllSessions(c.Request.Context(), claims.PrincipalKind, claims.PrincipalID, "logout_all")
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to end sessions")
		return
	}

	middleware.SetAudit(c, middleware.AuditRecord{
		Action:       "session.logout_all",
		ResourceType: "session",
		Detail:       map[string]any{"revoked": count},
	})
	c.JSON(http.StatusOK, LogoutAllResponse{Revoked: count})
}

// ListSessions returns the caller's active sessions, flagging the one in use.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "not authenticated"))
		return
	}

	sessions, err := h.sessions.ListSessions(c.Request.Context(), claims.PrincipalKind, claims.PrincipalID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrStorageUnavailable, Status: http.StatusServiceUnavailable, Message: "session registry unavailable"},
		}, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	payload := make([]SessionPayload, 0, len(sessions))
	for _, s := range sessions {
		payload = append(payload, newSessionPayload(s, claims.SessionID))
	}
	c.JSON(http.StatusOK, SessionListResponse{Sessions: payload})
}
