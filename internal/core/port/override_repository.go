package port

import (
	"context"

	"github.com/busline/backoffice-iam/internal/core/domain"
)

// OverrideRepository stores per-principal permission overrides for a single namespace.
type OverrideRepository interface {
	Namespace() domain.OverrideNamespace
	ListByPrincipal(ctx context.Context, principalID string) ([]domain.PermissionOverride, error)
	Get(ctx context.Context, principalID string, permission domain.PermissionID) (*domain.PermissionOverride, error)
	Upsert(ctx context.Context, override domain.PermissionOverride) error
	Delete(ctx context.Context, principalID string, permission domain.PermissionID) error
}
