package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/busline/backoffice-iam/internal/core/domain"
	"github.com/busline/backoffice-iam/internal/transport/http/middleware"
	"github.com/busline/backoffice-iam/internal/usecase"
)

// RoleManager manages custom roles and exposes the system templates.
type RoleManager interface {
	ListTemplates() []domain.RoleTemplate
	ListRoles(ctx context.Context) ([]domain.Role, error)
	GetRole(ctx context.Context, id int64) (*domain.Role, error)
	CreateRole(ctx context.Context, actorID string, input usecase.RoleInput) (*domain.Role, error)
	UpdateRole(ctx context.Context, actorID string, id int64, input usecase.RoleInput) (*domain.Role, error)
	DeleteRole(ctx context.Context, actorID string, id int64) error
}

// Guard builds a permission guard for one route.
type Guard func(perm domain.PermissionID) gin.HandlerFunc

type RoleHandler struct {
	roles RoleManager
}

func NewRoleHandler(roles RoleManager) *RoleHandler {
	return &RoleHandler{roles: roles}
}

// RegisterRoutes binds role routes. Reads need admins_view, writes admins_manage. Custom roles are
// global, so writes also run writeGuards ahead of the permission check.
func (h *RoleHandler) RegisterRoutes(r *gin.RouterGroup, guard Guard, writeGuards ...gin.HandlerFunc) {
	if r == nil {
		return
	}

	write := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		return chain(append(writeGuards[:len(writeGuards):len(writeGuards)], guard(domain.PermAdminsManage)), handler)
	}

	r.GET("", guard(domain.PermAdminsView), h.ListRoles)
	r.GET("/templates", guard(domain.PermAdminsView), h.ListTemplates)
	r.GET("/:id", guard(domain.PermAdminsView), h.GetRole)
	r.POST("", write(h.CreateRole)...)
	r.PUT("/:id", write(h.UpdateRole)...)
	r.DELETE("/:id", write(h.DeleteRole)...)
}

var roleErrorCases = []ErrorCase{
	{Err: usecase.ErrRoleNotFound, Status: http.StatusNotFound, Message: "role not found"},
	{Err: usecase.ErrRoleExists, Status: http.StatusConflict, Message: "role already exists"},
	{Err: usecase.ErrSystemRoleImmutable, Status: http.StatusConflict, Message: "system roles cannot be modified"},
}

func (h *RoleHandler) ListTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, RoleTemplateListResponse{Templates: h.roles.ListTemplates()})
}

func (h *RoleHandler) ListRoles(c *gin.Context) {
	roles, err := h.roles.ListRoles(c.Request.Context())
	if err != nil {
		RespondWithMappedError(c, err, roleErrorCases, http.StatusInternalServerError, "failed to list roles")
		return
	}

	payload := make([]RolePayload, 0, len(roles))
	for _, role := range roles {
		payload = append(payload, newRolePayload(role))
	}
	c.JSON(http.StatusOK, RoleListResponse{Roles: payload})
}

// GetRole returns a custom role by id, or a system template when addressed by its tag.
func (h *RoleHandler) GetRole(c *gin.Context) {
	tag := domain.SystemTag(strings.ToLower(strings.TrimSpace(c.Param("id"))))
	if template, ok := domain.LookupTemplate(tag); ok {
		c.JSON(http.StatusOK, template)
		return
	}

	id, ok := roleID(c)
	if !ok {
		return
	}

	role, err := h.roles.GetRole(c.Request.Context(), id)
	if err != nil {
		RespondWithMappedError(c, err, roleErrorCases, http.StatusInternalServerError, "failed to load role")
		return
	}
	c.JSON(http.StatusOK, newRolePayload(*role))
}

// CreateRole godoc
// @Summary Create a custom role
// @Tags Roles
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param request body RoleRequest true "Role"
// @Success 201 {object} RolePayload
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} middleware.PermissionDeniedResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/roles [post]
func (h *RoleHandler) CreateRole(c *gin.Context) {
	if !requireMark(c) {
		return
	}
	actorID, _ := currentActor(c)

	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid role payload"))
		return
	}

	role, err := h.roles.CreateRole(c.Request.Context(), actorID, req.input())
	if err != nil {
		RespondWithMappedError(c, err, roleErrorCases, http.StatusInternalServerError, "failed to create role")
		return
	}

	middleware.SetAudit(c, middleware.AuditRecord{
		Action:       "role.create",
		ResourceType: "role",
		ResourceID:   strconv.FormatInt(role.ID, 10),
		Detail:       map[string]any{"name": role.Name, "permissions": role.Permissions},
	})
	c.JSON(http.StatusCreated, newRolePayload(*role))
}

func (h *RoleHandler) UpdateRole(c *gin.Context) {
	if !requireMark(c) {
		return
	}
	id, ok := roleID(c)
	if !ok {
		return
	}
	actorID, _ := currentActor(c)

	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid role payload"))
		return
	}

	role, err := h.roles.UpdateRole(c.Request.Context(), actorID, id, req.input())
	if err != nil {
		RespondWithMappedError(c, err, roleErrorCases, http.StatusInternalServerError, "failed to update role")
		return
	}

	middleware.SetAudit(c, middleware.AuditRecord{
		Action:       "role.update",
		ResourceType: "role",
		ResourceID:   strconv.FormatInt(role.ID, 10),
		Detail:       map[string]any{"name": role.Name, "permissions": role.Permissions},
	})
	c.JSON(http.StatusOK, newRolePayload(*role))
}

func (h *RoleHandler) DeleteRole(c *gin.Context) {
	if !requireMark(c) {
		return
	}
	id, ok := roleID(c)
	if !ok {
		return
	}
	actorID, _ := currentActor(c)

	if err := h.roles.DeleteRole(c.Request.Context(), actorID, id); err != nil {
		RespondWithMappedError(c, err, roleErrorCases, http.StatusInternalServerError, "failed to delete role")
		return
	}

	middleware.SetAudit(c, middleware.AuditRecord{
		Action:       "role.delete",
		ResourceType: "role",
		ResourceID:   strconv.FormatInt(id, 10),
	})
	c.Status(http.StatusNoContent)
}

func (r RoleRequest) input() usecase.RoleInput {
	perms := make([]domain.PermissionID, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		perms = append(perms, domain.PermissionID(strings.TrimSpace(p)))
	}
	return usecase.RoleInput{
		Name:        r.Name,
		Description: r.Description,
		Permissions: perms,
		Color:       r.Color,
	}
}

// roleID parses the :id path parameter. System templates have no numeric id, so a tag here
// is rejected the same way a write to a template would be.
func roleID(c *gin.Context) (int64, bool) {
	raw := strings.TrimSpace(c.Param("id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err == nil && id > 0 {
		return id, true
	}
	if domain.IsSystemTag(raw) {
		c.JSON(http.StatusConflict, NewErrorResponse(c, "system roles cannot be modified"))
		return 0, false
	}
	c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid role id"))
	return 0, false
}

func currentActor(c *gin.Context) (string, bool) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		return "", false
	}
	return claims.PrincipalID, true
}
