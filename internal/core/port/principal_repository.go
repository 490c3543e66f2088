package port

import (
	"context"
	"time"

	"github.com/busline/backoffice-iam/internal/core/domain"
)

// PrincipalRepository looks up login credentials for console principals.
type PrincipalRepository interface {
	GetAdminByUsername(ctx context.Context, username string) (*domain.Credential, error)
	GetVendorUserByEmail(ctx context.Context, email string) (*domain.Credential, error)
	GetPrincipal(ctx context.Context, kind domain.PrincipalKind, principalID string) (*domain.Principal, error)
	UpdateLastLogin(ctx context.Context, kind domain.PrincipalKind, principalID string, at time.Time) error
}
