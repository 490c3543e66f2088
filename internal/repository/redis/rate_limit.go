package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	red "github.com/redis/go-redis/v9"

	"github.com/busline/backoffice-iam/internal/core/port"
)

// RateLimitRepository persists login attempts in Redis sorted sets scored by unix nanoseconds.
type RateLimitRepository struct {
	client *red.Client
	prefix string
}

// NewRateLimitRepository constructs a sliding-window attempt store.
func NewRateLimitRepository(client *red.Client, prefix string) *RateLimitRepository {
	return &RateLimitRepository{client: client, prefix: normalizePrefix(prefix)}
}

// Window trims expired attempts and returns the count and oldest attempt still inside the window.
func (r *RateLimitRepository) Window(ctx context.Context, key string, window time.Duration, reference time.Time) (port.AttemptWindow, error) {
	if window <= 0 {
		return port.AttemptWindow{}, errors.New("window must be positive")
	}

	storageKey := r.key(key)
	threshold := strconv.FormatInt(reference.Add(-window).UnixNano(), 10)

	var (
		countCmd  *red.IntCmd
		oldestCmd *red.ZSliceCmd
	)
	_, err := r.client.TxPipelined(ctx, func(pipe red.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, storageKey, "-inf", "("+threshold)
		countCmd = pipe.ZCard(ctx, storageKey)
		oldestCmd = pipe.ZRangeWithScores(ctx, storageKey, 0, 0)
		return nil
	})
	if err != nil {
		return port.AttemptWindow{}, fmt.Errorf("redis rate limit window: %w", err)
	}

	result := port.AttemptWindow{Count: int(countCmd.Val())}
	if oldest := oldestCmd.Val(); len(oldest) > 0 {
		result.Oldest = time.Unix(0, int64(oldest[0].Score))
	}
	return result, nil
}

// Record adds an attempt and keeps the set alive for one more window.
func (r *RateLimitRepository) Record(ctx context.Context, key string, at time.Time, window time.Duration) error {
	storageKey := r.key(key)
	member := red.Z{Score: float64(at.UnixNano()), Member: uuid.NewString()}

	_, err := r.client.TxPipelined(ctx, func(pipe red.Pipeliner) error {
		pipe.ZAdd(ctx, storageKey, member)
		if window > 0 {
			pipe.Expire(ctx, storageKey, window)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis record attempt: %w", err)
	}
	return nil
}

func (r *RateLimitRepository) key(identifier string) string {
	return joinKey(r.prefix, "rate_limit", identifier)
}

var _ port.RateLimitStore = (*RateLimitRepository)(nil)
