package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/busline/backoffice-iam/internal/core/domain"
	"github.com/busline/backoffice-iam/internal/transport/http/middleware"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse = middleware.ErrorResponse

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: middleware.GetTraceID(c),
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// AdminLoginRequest defines the payload for the admin console login endpoint.
type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// VendorLoginRequest defines the payload for the vendor sub-user login endpoint.
type VendorLoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// PrincipalPayload describes the authenticated actor.
type PrincipalPayload struct {
	ID          string           `json:"id"`
	Kind        string           `json:"kind"`
	Login       string           `json:"login"`
	DisplayName string           `json:"display_name,omitempty"`
	Role        domain.RoleClaim `json:"role"`
	VendorID    *string          `json:"vendor_id,omitempty"`
}

// TokenPayload carries a freshly issued bearer token.
type TokenPayload struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	ExpiresIn int       `json:"expires_in"`
}

// LoginResponse describes the response returned for a successful login.
type LoginResponse struct {
	Principal PrincipalPayload `json:"principal"`
	TokenPayload
}

// SessionPayload is one registry row as exposed to the console.
type SessionPayload struct {
	ID          string     `json:"id"`
	Role        string     `json:"role"`
	IP          *string    `json:"ip,omitempty"`
	UserAgent   *string    `json:"user_agent,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CreatedAt   time.Time  `json:"created_at"`
	RefreshedAt *time.Time `json:"refreshed_at,omitempty"`
	ExpiresAt   time.Time  `json:"expires_at"`
	Current     bool       `json:"current"`
}

// SessionListResponse lists the caller's active sessions.
type SessionListResponse struct {
	Sessions []SessionPayload `json:"sessions"`
}

// LogoutAllResponse reports how many sessions were revoked.
type LogoutAllResponse struct {
	Revoked int `json:"revoked"`
}

// PermissionCatalogResponse lists every permission grouped by category.
type PermissionCatalogResponse struct {
	Version     int                                                 `json:"version"`
	Permissions []domain.Permission                                 `json:"permissions"`
	Categories  map[domain.PermissionCategory][]domain.PermissionID `json:"categories"`
}

// EffectivePermissionsResponse is the caller's resolved permission set.
type EffectivePermissionsResponse struct {
	PrincipalID string                `json:"principal_id"`
	Kind        string                `json:"kind"`
	Role        domain.RoleClaim      `json:"role"`
	Permissions []domain.PermissionID `json:"permissions"`
}

// RoleRequest is the create/update payload for custom roles.
type RoleRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description *string  `json:"description"`
	Permissions []string `json:"permissions"`
	Color       string   `json:"color"`
}

// RolePayload describes a persisted custom role.
type RolePayload struct {
	ID          int64                 `json:"id"`
	Name        string                `json:"name"`
	Description *string               `json:"description,omitempty"`
	Permissions []domain.PermissionID `json:"permissions"`
	Color       string                `json:"color"`
	CreatedBy   string                `json:"created_by"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// RoleListResponse lists custom roles.
type RoleListResponse struct {
	Roles []RolePayload `json:"roles"`
}

// RoleTemplateListResponse lists the compiled system templates.
type RoleTemplateListResponse struct {
	Templates []domain.RoleTemplate `json:"templates"`
}

// OverridePayload is one per-principal permission exception.
type OverridePayload struct {
	Permission domain.PermissionID  `json:"permission"`
	State      domain.OverrideState `json:"state"`
	Granted    bool                 `json:"granted"`
	GrantedBy  string               `json:"granted_by"`
	CreatedAt  time.Time            `json:"created_at"`
}

// OverrideListResponse lists the overrides held by one principal.
type OverrideListResponse struct {
	Namespace   domain.OverrideNamespace `json:"namespace"`
	PrincipalID string                   `json:"principal_id"`
	Overrides   []OverridePayload        `json:"overrides"`
}

// OverrideSetRequest sets an explicit grant or deny.
type OverrideSetRequest struct {
	Granted *bool `json:"granted" binding:"required"`
}

// OverrideToggleRequest toggles towards granted. When Granted is omitted the override cycles
// through inherit, grant and deny.
type OverrideToggleRequest struct {
	Granted *bool `json:"granted"`
}

// OverrideStateResponse reports the state now in effect for one permission.
type OverrideStateResponse struct {
	Permission domain.PermissionID  `json:"permission"`
	State      domain.OverrideState `json:"state"`
}

// AuditEntryPayload is one audit trail row.
type AuditEntryPayload struct {
	ID           int64          `json:"id"`
	UserID       string         `json:"user_id"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   *string        `json:"resource_id,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	IPAddress    *string        `json:"ip_address,omitempty"`
	UserAgent    *string        `json:"user_agent,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AuditListResponse is one page of the audit trail.
type AuditListResponse struct {
	Entries []AuditEntryPayload `json:"entries"`
	Total   int                 `json:"total"`
	Limit   int                 `json:"limit"`
	Offset  int                 `json:"offset"`
}

// AuditCountResponse is the number of matching audit entries.
type AuditCountResponse struct {
	Count int `json:"count"`
}

// HealthResponse describes liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports dependency checks.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func newPrincipalPayload(p domain.Principal) PrincipalPayload {
	return PrincipalPayload{
		ID:          p.ID,
		Kind:        string(p.Kind),
		Login:       p.Login,
		DisplayName: p.DisplayName,
		Role:        p.Role.Claim(),
		VendorID:    p.VendorID,
	}
}

func newTokenPayload(issued domain.IssuedSession, now time.Time) TokenPayload {
	expiresIn := int(issued.ExpiresAt.Sub(now).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	return TokenPayload{
		Token:     issued.Token,
		TokenType: "Bearer",
		ExpiresAt: issued.ExpiresAt,
		ExpiresIn: expiresIn,
	}
}

func newSessionPayload(s domain.Session, currentID string) SessionPayload {
	return SessionPayload{
		ID:          s.ID,
		Role:        s.Role.String(),
		IP:          s.IP,
		UserAgent:   s.UserAgent,
		StartedAt:   s.StartedAt,
		CreatedAt:   s.CreatedAt,
		RefreshedAt: s.RefreshedAt,
		ExpiresAt:   s.ExpiresAt,
		Current:     s.ID == currentID,
	}
}

func newRolePayload(r domain.Role) RolePayload {
	perms := r.Permissions
	if perms == nil {
		perms = []domain.PermissionID{}
	}
	return RolePayload{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Permissions: perms,
		Color:       r.Color,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func newOverridePayload(o domain.PermissionOverride) OverridePayload {
	return OverridePayload{
		Permission: o.Permission,
		State:      domain.StateOf(&o),
		Granted:    o.Granted,
		GrantedBy:  o.GrantedBy,
		CreatedAt:  o.CreatedAt,
	}
}

func newAuditEntryPayload(e domain.AuditEntry) AuditEntryPayload {
	return AuditEntryPayload{
		ID:           e.ID,
		UserID:       e.ActorID,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Details:      e.Detail,
		IPAddress:    e.IP,
		UserAgent:    e.UserAgent,
		CreatedAt:    e.CreatedAt,
	}
}
