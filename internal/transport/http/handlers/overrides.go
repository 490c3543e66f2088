package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/busline/backoffice-iam/internal/core/domain"
	"github.com/busline/backoffice-iam/internal/transport/http/middleware"
)

// OverrideManager edits the overrides of one namespace.
type OverrideManager interface {
	Namespace() domain.OverrideNamespace
	ListOverrides(ctx context.Context, principalID string) ([]domain.PermissionOverride, error)
	SetOverride(ctx context.Context, principalID string, perm domain.PermissionID, granted bool, grantorID string) (*domain.PermissionOverride, error)
	ClearOverride(ctx context.Context, principalID string, perm domain.PermissionID, actorID string) error
	ToggleOverride(ctx context.Context, principalID string, perm domain.PermissionID, granted bool, grantorID string) (domain.OverrideState, error)
	CycleOverride(ctx context.Context, principalID string, perm domain.PermissionID, grantorID string) (domain.OverrideState, error)
}

// OverrideHandler serves one override namespace. Mount one instance per namespace.
type OverrideHandler struct {
	overrides OverrideManager
}

// NewOverrideHandler constructs a handler for the namespace served by overrides.
func NewOverrideHandler(overrides OverrideManager) *OverrideHandler {
	return &OverrideHandler{overrides: overrides}
}

// RegisterRoutes binds override routes. Every route needs permissions_manage and a caller of the
// namespace's own principal kind.
func (h *OverrideHandler) RegisterRoutes(r *gin.RouterGroup, guard Guard) {
	if r == nil {
		return
	}

	kind := middleware.RequirePrincipalKind(h.overrides.Namespace().PrincipalKind())
	g := guard(domain.PermPermissionsManage)
	r.GET("/:principal_id", kind, g, h.List)
	r.PUT("/:principal_id/:permission", kind, g, h.Set)
	r.DELETE("/:principal_id/:permission", kind, g, h.Clear)
	r.POST("/:principal_id/:permission/toggle", kind, g, h.Toggle)
}

func (h *OverrideHandler) List(c *gin.Context) {
	principalID := strings.TrimSpace(c.Param("principal_id"))
	items, err := h.overrides.ListOverrides(c.Request.Context(), principalID)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to list overrides")
		return
	}

	payload := make([]OverridePayload, 0, len(items))
	for _, o := range items {
		payload = append(payload, newOverridePayload(o))
	}
	c.JSON(http.StatusOK, OverrideListResponse{
		Namespace:   h.overrides.Namespace(),
		PrincipalID: principalID,
		Overrides:   payload,
	})
}

// Set godoc
// @Summary Grant or deny one permission to one principal
// @Tags Overrides
// @Accept json
// @Produce json
// @Param request body OverrideSetRequest true "Override"
// @Success 200 {object} OverridePayload
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} middleware.PermissionDeniedResponse
// @Router /api/v1/overrides/admins/{principal_id}/{permission} [put]
func (h *OverrideHandler) Set(c *gin.Context) {
	if !requireMark(c) {
		return
	}
	principalID, perm := overrideTarget(c)
	actorID, _ := currentActor(c)

	var req OverrideSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "granted is required"))
		return
	}

	override, err := h.overrides.SetOverride(c.Request.Context(), principalID, perm, *req.Granted, actorID)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to set override")
		return
	}

	h.audit(c, "override.set", principalID, perm, domain.StateOf(override))
	c.JSON(http.StatusOK, newOverridePayload(*override))
}

func (h *OverrideHandler) Clear(c *gin.Context) {
	if !requireMark(c) {
		return
	}
	principalID, perm := overrideTarget(c)
	actorID, _ := currentActor(c)

	if err := h.overrides.ClearOverride(c.Request.Context(), principalID, perm, actorID); err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to clear override")
		return
	}

	h.audit(c, "override.clear", principalID, perm, domain.OverrideInherit)
	c.Status(http.StatusNoContent)
}

// Toggle flips the override towards the requested value, or cycles it when no value is given.
func (h *OverrideHandler) Toggle(c *gin.Context) {
	if !requireMark(c) {
		return
	}
	principalID, perm := overrideTarget(c)
	actorID, _ := currentActor(c)

	var req OverrideToggleRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid toggle payload"))
			return
		}
	}

	var (
		state domain.OverrideState
		err   error
	)
	if req.Granted != nil {
		state, err = h.overrides.ToggleOverride(c.Request.Context(), principalID, perm, *req.Granted, actorID)
	} else {
		state, err = h.overrides.CycleOverride(c.Request.Context(), principalID, perm, actorID)
	}
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to toggle override")
		return
	}

	h.audit(c, "override.toggle", principalID, perm, state)
	c.JSON(http.StatusOK, OverrideStateResponse{Permission: perm, State: state})
}

func (h *OverrideHandler) audit(c *gin.Context, action, principalID string, perm domain.PermissionID, state domain.OverrideState) {
	middleware.SetAudit(c, middleware.AuditRecord{
		Action:       action,
		ResourceType: string(h.overrides.Namespace()),
		ResourceID:   principalID,
		Detail:       map[string]any{"permission": string(perm), "state": string(state)},
	})
}

func overrideTarget(c *gin.Context) (string, domain.PermissionID) {
	return strings.TrimSpace(c.Param("principal_id")), domain.PermissionID(strings.TrimSpace(c.Param("permission")))
}
