package postgres

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/busline/backoffice-iam/internal/core/domain"
)

// Repositories groups PostgreSQL-backed repository implementations.
type Repositories struct {
	Roles           *RoleRepository
	AdminOverrides  *OverrideRepository
	VendorOverrides *OverrideRepository
	Sessions        *SessionRepository
	Audit           *AuditRepository
	Principals      *PrincipalRepository
}

// NewRepositories wires repositories using the shared executor.
func NewRepositories(exec pgExecutor, logger *zap.Logger) (*Repositories, error) {
	admin, err := NewOverrideRepository(exec, domain.NamespaceAdmin)
	if err != nil {
		return nil, fmt.Errorf("admin overrides: %w", err)
	}
	vendor, err := NewOverrideRepository(exec, domain.NamespaceVendorUser)
	if err != nil {
		return nil, fmt.Errorf("vendor overrides: %w", err)
	}
	return &Repositories{
		Roles:           NewRoleRepository(exec),
		AdminOverrides:  admin,
		VendorOverrides: vendor,
		Sessions:        NewSessionRepository(exec).WithLogger(logger),
		Audit:           NewAuditRepository(exec),
		Principals:      NewPrincipalRepository(exec).WithLogger(logger),
	}, nil
}
