package port

import (
	"context"

	"github.com/busline/backoffice-iam/internal/core/domain"
)

// AuditRepository is the append-only audit log. It deliberately has no update or delete.
type AuditRepository interface {
	Append(ctx context.Context, entry domain.AuditEntry) (int64, error)
	Query(ctx context.Context, filter domain.AuditFilter, limit, offset int) ([]domain.AuditEntry, error)
	Count(ctx context.Context, filter domain.AuditFilter) (int, error)
}
