package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/busline/backoffice-iam/internal/core/domain"
)

// DefaultKeepAliveInterval is how often an active client rotates its token.
const DefaultKeepAliveInterval = 15 * time.Minute

// SessionRefresher rotates a session token.
type SessionRefresher interface {
	RefreshSession(ctx context.Context, token, ip, userAgent string) (*domain.IssuedSession, error)
}

// KeepAlive rotates a client's token on a fixed interval so an open console
// never presents a stale token.
type KeepAlive struct {
	refresher SessionRefresher
	interval  time.Duration
	ip        string
	userAgent string
	logger    *zap.Logger
	onRotate  func(domain.IssuedSession)

	mu      sync.RWMutex
	current domain.IssuedSession
}

// KeepAliveOption customises a KeepAlive.
type KeepAliveOption func(*KeepAlive)

// WithKeepAliveInterval overrides DefaultKeepAliveInterval.
func WithKeepAliveInterval(interval time.Duration) KeepAliveOption {
	return func(k *KeepAlive) {
		if interval > 0 {
			k.interval = interval
		}
	}
}

// WithClientInfo sets the IP and user agent reported on refresh.
func WithClientInfo(ip, userAgent string) KeepAliveOption {
	return func(k *KeepAlive) {
		k.ip = ip
		k.userAgent = userAgent
	}
}

// OnRotate registers a callback invoked with every replacement token.
func OnRotate(fn func(domain.IssuedSession)) KeepAliveOption {
	return func(k *KeepAlive) {
		k.onRotate = fn
	}
}

// NewKeepAlive starts from an already issued session.
func NewKeepAlive(refresher SessionRefresher, initial domain.IssuedSession, logger *zap.Logger, opts ...KeepAliveOption) *KeepAlive {
	if logger == nil {
		logger = zap.NewNop()
	}
	k := &KeepAlive{
		refresher: refresher,
		interval:  DefaultKeepAliveInterval,
		logger:    logger,
		current:   initial,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(k)
		}
	}
	return k
}

// Current returns the most recent session.
func (k *KeepAlive) Current() domain.IssuedSession {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.current
}

// Token returns the most recent bearer token.
func (k *KeepAlive) Token() string {
	return k.Current().Token
}

// Run refreshes until ctx ends or the session can no longer be refreshed.
// Transient failures are logged and retried on the next tick.
func (k *KeepAlive) Run(ctx context.Context) error {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			issued, err := k.refresher.RefreshSession(ctx, k.Token(), k.ip, k.userAgent)
			if err != nil {
				if errors.Is(err, ErrUnauthenticated) {
					k.logger.Info("keepalive stopped: session no longer refreshable")
					return err
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				k.logger.Warn("keepalive refresh failed", zap.Error(err))
				continue
			}

			k.mu.Lock()
			k.current = *issued
			k.mu.Unlock()

			if k.onRotate != nil {
				k.onRotate(*issued)
			}
		}
	}
}
