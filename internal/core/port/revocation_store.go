package port

import (
	"context"
	"time"

	"github.com/busline/backoffice-iam/internal/core/domain"
)

// TokenDenylist records revoked token identifiers until their natural expiry.
type TokenDenylist interface {
	Deny(ctx context.Context, jti string, revocation domain.Revocation, ttl time.Duration) error
	Lookup(ctx context.Context, jti string) (*domain.Revocation, error)
}

// NotBeforeStore keeps the per-principal issue-timestamp cutoff used by global logout.
type NotBeforeStore interface {
	SetNotBefore(ctx context.Context, kind domain.PrincipalKind, principalID string, at time.Time, ttl time.Duration) error
	GetNotBefore(ctx context.Context, kind domain.PrincipalKind, principalID string) (time.Time, bool, error)
}
