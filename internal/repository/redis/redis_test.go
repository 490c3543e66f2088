package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"

	"github.com/busline/backoffice-iam/internal/core/domain"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func TestDenylistRepository_DenyAndLookup(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewDenylistRepository(client, "bo")

	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ttl := 2 * time.Minute

	if err := repo.Deny(ctx, "jti-1", domain.Revocation{Reason: domain.RevocationLogout, RevokedAt: at}, ttl); err != nil {
		t.Fatalf("Deny returned error: %v", err)
	}

	revocation, err := repo.Lookup(ctx, "jti-1")
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if revocation == nil {
		t.Fatalf("expected revocation to be present")
	}
	if revocation.Reason != domain.RevocationLogout || !revocation.RevokedAt.Equal(at) {
		t.Fatalf("unexpected revocation: %+v", revocation)
	}

	remaining := server.TTL("bo:denied:jti-1")
	if remaining <= 0 || remaining > ttl {
		t.Fatalf("expected ttl within (0, %v], got %v", ttl, remaining)
	}

	server.FastForward(ttl + time.Second)
	revocation, err = repo.Lookup(ctx, "jti-1")
	if err != nil {
		t.Fatalf("Lookup after expiry returned error: %v", err)
	}
	if revocation != nil {
		t.Fatalf("expected entry to expire, got %+v", revocation)
	}
}

func TestDenylistRepository_LookupMiss(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewDenylistRepository(client, "")

	revocation, err := repo.Lookup(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if revocation != nil {
		t.Fatalf("expected nil revocation, got %+v", revocation)
	}
}

func TestDenylistRepository_RejectsNonPositiveTTL(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewDenylistRepository(client, "bo")

	if err := repo.Deny(context.Background(), "jti-1", domain.Revocation{Reason: domain.RevocationRotated}, 0); err == nil {
		t.Fatalf("expected error for zero ttl")
	}
}

func TestDenylistRepository_LookupFailsWhenRedisDown(t *testing.T) {
	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := red.NewClient(&red.Options{Addr: server.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	repo := NewDenylistRepository(client, "bo")
	server.Close()

	if _, err := repo.Lookup(context.Background(), "jti-1"); err == nil {
		t.Fatalf("expected error when redis is unavailable")
	}
}

func TestNotBeforeRepository_SetAndGet(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewNotBeforeRepository(client, "bo")

	ctx := context.Background()
	cutoff := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if _, ok, err := repo.GetNotBefore(ctx, domain.PrincipalAdmin, "7"); err != nil || ok {
		t.Fatalf("expected no cutoff, got ok=%v err=%v", ok, err)
	}

	if err := repo.SetNotBefore(ctx, domain.PrincipalAdmin, "7", cutoff, time.Hour); err != nil {
		t.Fatalf("SetNotBefore returned error: %v", err)
	}

	got, ok, err := repo.GetNotBefore(ctx, domain.PrincipalAdmin, "7")
	if err != nil || !ok {
		t.Fatalf("expected cutoff, got ok=%v err=%v", ok, err)
	}
	if !got.Equal(cutoff) {
		t.Fatalf("expected %v, got %v", cutoff, got)
	}

	if !server.Exists("bo:not_before:admin:7") {
		t.Fatalf("expected key bo:not_before:admin:7")
	}
	if _, ok, _ := repo.GetNotBefore(ctx, domain.PrincipalVendorUser, "7"); ok {
		t.Fatalf("vendor user must not share the admin cutoff")
	}
}

func TestNotBeforeRepository_EarlierCutoffDoesNotReplaceLater(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewNotBeforeRepository(client, "bo")

	ctx := context.Background()
	later := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := repo.SetNotBefore(ctx, domain.PrincipalAdmin, "7", later, time.Hour); err != nil {
		t.Fatalf("SetNotBefore returned error: %v", err)
	}
	if err := repo.SetNotBefore(ctx, domain.PrincipalAdmin, "7", later.Add(-time.Minute), time.Hour); err != nil {
		t.Fatalf("SetNotBefore returned error: %v", err)
	}

	got, ok, err := repo.GetNotBefore(ctx, domain.PrincipalAdmin, "7")
	if err != nil || !ok || !got.Equal(later) {
		t.Fatalf("expected later cutoff %v kept, got %v ok=%v err=%v", later, got, ok, err)
	}

	if err := repo.SetNotBefore(ctx, domain.PrincipalAdmin, "7", later.Add(time.Minute), time.Hour); err != nil {
		t.Fatalf("SetNotBefore returned error: %v", err)
	}
	got, _, _ = repo.GetNotBefore(ctx, domain.PrincipalAdmin, "7")
	if !got.Equal(later.Add(time.Minute)) {
		t.Fatalf("expected cutoff moved forward, got %v", got)
	}
}

func TestRateLimitRepository_SlidingWindow(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, "bo")

	ctx := context.Background()
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	window := time.Minute

	for i := 0; i < 3; i++ {
		if err := repo.Record(ctx, "login:198.51.100.1", start.Add(time.Duration(i)*10*time.Second), window); err != nil {
			t.Fatalf("Record returned error: %v", err)
		}
	}

	state, err := repo.Window(ctx, "login:198.51.100.1", window, start.Add(30*time.Second))
	if err != nil {
		t.Fatalf("Window returned error: %v", err)
	}
	if state.Count != 3 {
		t.Fatalf("expected 3 attempts, got %d", state.Count)
	}
	if !state.Oldest.Equal(start) {
		t.Fatalf("expected oldest %v, got %v", start, state.Oldest)
	}

	state, err = repo.Window(ctx, "login:198.51.100.1", window, start.Add(65*time.Second))
	if err != nil {
		t.Fatalf("Window returned error: %v", err)
	}
	if state.Count != 2 {
		t.Fatalf("expected first attempt to slide out, got %d", state.Count)
	}
}
