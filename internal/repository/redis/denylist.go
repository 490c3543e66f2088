package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/busline/backoffice-iam/internal/core/domain"
	"github.com/busline/backoffice-iam/internal/core/port"
)

// DenylistRepository stores revoked token identifiers as expiring Redis keys.
type DenylistRepository struct {
	client *red.Client
	prefix string
}

// NewDenylistRepository constructs a Redis-backed token denylist.
func NewDenylistRepository(client *red.Client, prefix string) *DenylistRepository {
	return &DenylistRepository{client: client, prefix: normalizePrefix(prefix)}
}

// Deny records the revocation until ttl elapses. A non-positive ttl is rejected
// so entries never outlive their usefulness by accident.
func (r *DenylistRepository) Deny(ctx context.Context, jti string, revocation domain.Revocation, ttl time.Duration) error {
	if r == nil || r.client == nil {
		return fmt.Errorf("denylist repository not configured")
	}
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return fmt.Errorf("jti required")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	revocation.RevokedAt = revocation.RevokedAt.UTC()
	data, err := json.Marshal(revocation)
	if err != nil {
		return fmt.Errorf("encode revocation: %w", err)
	}

	if err := r.client.Set(ctx, r.key(jti), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set denied jti: %w", err)
	}
	return nil
}

// Lookup returns the revocation recorded for jti, or nil when the token is not denied.
func (r *DenylistRepository) Lookup(ctx context.Context, jti string) (*domain.Revocation, error) {
	if r == nil || r.client == nil {
		return nil, fmt.Errorf("denylist repository not configured")
	}

	data, err := r.client.Get(ctx, r.key(jti)).Bytes()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get denied jti: %w", err)
	}

	var revocation domain.Revocation
	if err := json.Unmarshal(data, &revocation); err != nil {
		return nil, fmt.Errorf("decode revocation: %w", err)
	}
	return &revocation, nil
}

func (r *DenylistRepository) key(jti string) string {
	return joinKey(r.prefix, "denied", jti)
}

var _ port.TokenDenylist = (*DenylistRepository)(nil)
