package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/busline/backoffice-iam/internal/core/domain"
	"github.com/busline/backoffice-iam/internal/core/port"
)

// setNotBeforeScript writes the cutoff only when no later one is stored.
var setNotBeforeScript = red.NewScript(`
local current = redis.call('GET', KEYS[1])
if current and tonumber(current) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return 1
`)

// NotBeforeRepository stores per-principal issue cutoffs as unix seconds.
type NotBeforeRepository struct {
	client *red.Client
	prefix string
}

// NewNotBeforeRepository constructs a Redis-backed not-before store.
func NewNotBeforeRepository(client *red.Client, prefix string) *NotBeforeRepository {
	return &NotBeforeRepository{client: client, prefix: normalizePrefix(prefix)}
}

// SetNotBefore stores the cutoff. A later cutoff always replaces an earlier one.
func (r *NotBeforeRepository) SetNotBefore(ctx context.Context, kind domain.PrincipalKind, principalID string, at time.Time, ttl time.Duration) error {
	if r == nil || r.client == nil {
		return fmt.Errorf("not-before repository not configured")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	keys := []string{r.key(kind, principalID)}
	if err := setNotBeforeScript.Run(ctx, r.client, keys, at.Unix(), ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis set not-before: %w", err)
	}
	return nil
}

// GetNotBefore returns the stored cutoff and whether one exists.
func (r *NotBeforeRepository) GetNotBefore(ctx context.Context, kind domain.PrincipalKind, principalID string) (time.Time, bool, error) {
	if r == nil || r.client == nil {
		return time.Time{}, false, fmt.Errorf("not-before repository not configured")
	}

	raw, err := r.client.Get(ctx, r.key(kind, principalID)).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("redis get not-before: %w", err)
	}

	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse not-before: %w", err)
	}
	return time.Unix(seconds, 0).UTC(), true, nil
}

func (r *NotBeforeRepository) key(kind domain.PrincipalKind, principalID string) string {
	return joinKey(r.prefix, "not_before", string(kind), principalID)
}

var _ port.NotBeforeStore = (*NotBeforeRepository)(nil)
