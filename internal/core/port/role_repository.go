package port

import (
	"context"

	"github.com/busline/backoffice-iam/internal/core/domain"
)

// RoleRepository persists custom roles. System templates never reach it.
type RoleRepository interface {
	Create(ctx context.Context, role domain.Role) (*domain.Role, error)
	Update(ctx context.Context, role domain.Role) (*domain.Role, error)
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Role, error)
	GetByName(ctx context.Context, name string) (*domain.Role, error)
	List(ctx context.Context) ([]domain.Role, error)
}
