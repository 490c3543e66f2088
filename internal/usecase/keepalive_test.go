package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/busline/backoffice-iam/internal/core/domain"
)

type scriptedRefresher struct {
	mu     sync.Mutex
	calls  []string
	failAt int
	errAt  error
	stopAt int
}

func (r *scriptedRefresher) RefreshSession(_ context.Context, token, _, _ string) (*domain.IssuedSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, token)
	n := len(r.calls)
	if n == r.failAt {
		return nil, r.errAt
	}
	if n == r.stopAt {
		return nil, ErrUnauthenticated
	}
	return &domain.IssuedSession{Token: fmt.Sprintf("token-%d", n)}, nil
}

func (r *scriptedRefresher) tokens() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func TestKeepAliveRotatesUntilUnauthenticated(t *testing.T) {
	refresher := &scriptedRefresher{failAt: 2, errAt: errors.New("network blip"), stopAt: 4}
	var rotations []string
	var mu sync.Mutex

	k := NewKeepAlive(refresher, domain.IssuedSession{Token: "token-0"}, nil,
		WithKeepAliveInterval(5*time.Millisecond),
		OnRotate(func(s domain.IssuedSession) {
			mu.Lock()
			rotations = append(rotations, s.Token)
			mu.Unlock()
		}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := k.Run(ctx); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}

	calls := refresher.tokens()
	want := []string{"token-0", "token-1", "token-1", "token-3"}
	if len(calls) != len(want) {
		t.Fatalf("expected %d refresh calls, got %v", len(want), calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("call %d presented %s, want %s", i, calls[i], want[i])
		}
	}
	if k.Token() != "token-3" {
		t.Fatalf("expected latest token token-3, got %s", k.Token())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(rotations) != 2 {
		t.Fatalf("expected 2 rotation callbacks, got %v", rotations)
	}
}

func TestKeepAliveStopsOnContextCancel(t *testing.T) {
	refresher := &scriptedRefresher{}
	k := NewKeepAlive(refresher, domain.IssuedSession{Token: "token-0"}, nil, WithKeepAliveInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := k.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(refresher.tokens()) != 0 {
		t.Fatal("no refresh should happen before the first tick")
	}
}
