package port

import (
	"context"
	"time"

	"github.com/busline/backoffice-iam/internal/core/domain"
)

// SessionRepository keeps the registry of issued sessions.
type SessionRepository interface {
	Create(ctx context.Context, session domain.Session) error
	MarkRefreshed(ctx context.Context, sessionID string, at time.Time) error
	Revoke(ctx context.Context, sessionID string, reason string) error
	RevokeAllForPrincipal(ctx context.Context, kind domain.PrincipalKind, principalID string, reason string) (int, error)
	ListActiveByPrincipal(ctx context.Context, kind domain.PrincipalKind, principalID string) ([]domain.Session, error)
}
