package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/busline/backoffice-iam/internal/core/domain"
	"github.com/busline/backoffice-iam/internal/transport/http/middleware"
)

// EffectiveResolver computes a subject's effective permission set.
type EffectiveResolver interface {
	ResolveEffective(ctx context.Context, subject domain.Subject) (domain.PermissionSet, error)
}

// PermissionHandler serves the catalog and the caller's effective permissions.
type PermissionHandler struct {
	catalog  *domain.Catalog
	resolver EffectiveResolver
}

// NewPermissionHandler constructs a permission handler.
func NewPermissionHandler(catalog *domain.Catalog, resolver EffectiveResolver) *PermissionHandler {
	return &PermissionHandler{catalog: catalog, resolver: resolver}
}

// Catalog lists every permission the service knows about.
func (h *PermissionHandler) Catalog(c *gin.Context) {
	grouped := h.catalog.ByCategory()
	categories := make(map[domain.PermissionCategory][]domain.PermissionID, len(grouped))
	for category, perms := range grouped {
		ids := make([]domain.PermissionID, 0, len(perms))
		for _, p := range perms {
			ids = append(ids, p.ID)
		}
		categories[category] = ids
	}

	c.JSON(http.StatusOK, PermissionCatalogResponse{
		Version:     h.catalog.Version(),
		Permissions: h.catalog.All(),
		Categories:  categories,
	})
}

// Mine returns the caller's effective permission set in lexical order.
func (h *PermissionHandler) Mine(c *gin.Context) {
	subject, ok := middleware.CurrentSubject(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "not authenticated"))
		return
	}

	set, err := h.resolver.ResolveEffective(c.Request.Context(), subject)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusServiceUnavailable, "authorization unavailable")
		return
	}

	c.JSON(http.StatusOK, EffectivePermissionsResponse{
		PrincipalID: subject.PrincipalID,
		Kind:        string(subject.Kind),
		Role:        subject.Role.Claim(),
		Permissions: set.Sorted(),
	})
}
