package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/busline/backoffice-iam/internal/core/domain"
	"github.com/busline/backoffice-iam/internal/core/port"
	"github.com/busline/backoffice-iam/internal/repository"
)

// SessionPolicy bounds token lifetimes.
type SessionPolicy struct {
	// AccessTTL is the absolute lifetime of one issued token.
	AccessTTL time.Duration
	// RefreshGrace lets a token that expired this recently still be rotated.
	RefreshGrace time.Duration
	// MaxSessionLifetime caps the whole refresh chain, measured from the first login.
	MaxSessionLifetime time.Duration
	// RotationRaceWindow lets a just-rotated token be refreshed again by a concurrent client.
	RotationRaceWindow time.Duration
}

// DefaultSessionPolicy returns the production defaults.
func DefaultSessionPolicy() SessionPolicy {
	return SessionPolicy{
		AccessTTL:          24 * time.Hour,
		RefreshGrace:       10 * time.Minute,
		MaxSessionLifetime: 7 * 24 * time.Hour,
		RotationRaceWindow: 30 * time.Second,
	}
}

func (p SessionPolicy) normalized() SessionPolicy {
	def := DefaultSessionPolicy()
	if p.AccessTTL <= 0 {
		p.AccessTTL = def.AccessTTL
	}
	if p.RefreshGrace < 0 {
		p.RefreshGrace = 0
	}
	if p.MaxSessionLifetime <= 0 {
		p.MaxSessionLifetime = def.MaxSessionLifetime
	}
	if p.MaxSessionLifetime < p.AccessTTL {
		p.MaxSessionLifetime = p.AccessTTL
	}
	if p.RotationRaceWindow < 0 {
		p.RotationRaceWindow = 0
	}
	return p
}

// SessionManager issues, validates, rotates and revokes bearer tokens.
type SessionManager struct {
	signer     port.TokenSigner
	denylist   port.TokenDenylist
	notBefore  port.NotBeforeStore
	sessions   port.SessionRepository
	principals port.PrincipalRepository
	events     port.EventPublisher
	policy     SessionPolicy
	tracer     trace.Tracer
	logger     *zap.Logger
	now        func() time.Time
}

// SessionManagerOption customises a SessionManager.
type SessionManagerOption func(*SessionManager)

// WithSessionRegistry records issued sessions so they can be listed and bulk revoked.
func WithSessionRegistry(repo port.SessionRepository) SessionManagerOption {
	return func(m *SessionManager) {
		m.sessions = repo
	}
}

// WithRoleRefresh re-reads the principal on refresh so role changes take effect on rotation.
func WithRoleRefresh(repo port.PrincipalRepository) SessionManagerOption {
	return func(m *SessionManager) {
		m.principals = repo
	}
}

// WithSessionEvents publishes revocation events.
func WithSessionEvents(events port.EventPublisher) SessionManagerOption {
	return func(m *SessionManager) {
		m.events = events
	}
}

// WithSessionClock overrides the internal clock for deterministic tests.
func WithSessionClock(clock func() time.Time) SessionManagerOption {
	return func(m *SessionManager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// NewSessionManager constructs a SessionManager. The signer carries the process-wide key.
func NewSessionManager(signer port.TokenSigner, denylist port.TokenDenylist, notBefore port.NotBeforeStore, policy SessionPolicy, logger *zap.Logger, opts ...SessionManagerOption) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &SessionManager{
		signer:    signer,
		denylist:  denylist,
		notBefore: notBefore,
		policy:    policy.normalized(),
		tracer:    otel.Tracer("backoffice-iam/usecase/session"),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Policy returns the effective lifetime policy.
func (m *SessionManager) Policy() SessionPolicy {
	return m.policy
}

// CreateSession mints a token for principal, snapshotting its role.
func (m *SessionManager) CreateSession(ctx context.Context, principal domain.Principal, ip, userAgent string) (*domain.IssuedSession, error) {
	if strings.TrimSpace(principal.ID) == "" || !principal.Kind.Valid() {
		return nil, invalidInput("principal id and kind are required")
	}
	now := m.now().Truncate(time.Second)
	return m.issue(ctx, principal.ID, principal.Kind, principal.Role, now, now, ip, userAgent)
}

func (m *SessionManager) issue(ctx context.Context, principalID string, kind domain.PrincipalKind, role domain.RoleRef, startedAt, now time.Time, ip, userAgent string) (*domain.IssuedSession, error) {
	claims := domain.SessionClaims{
		SessionID:     uuid.NewString(),
		PrincipalID:   principalID,
		PrincipalKind: kind,
		Role:          role,
		IssuedAt:      now,
		ExpiresAt:     now.Add(m.policy.AccessTTL),
		StartedAt:     startedAt,
	}

	token, err := m.signer.Sign(claims)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	if m.sessions != nil {
		record := domain.Session{
			ID:            claims.SessionID,
			PrincipalID:   principalID,
			PrincipalKind: kind,
			Role:          role,
			IP:            optionalString(ip),
			UserAgent:     optionalString(userAgent),
			StartedAt:     startedAt,
			CreatedAt:     now,
			ExpiresAt:     claims.ExpiresAt,
		}
		if !startedAt.Equal(now) {
			refreshed := now
			record.RefreshedAt = &refreshed
		}
		if err := m.sessions.Create(ctx, record); err != nil {
			return nil, storageError("register session", err)
		}
	}

	return &domain.IssuedSession{Token: token, Claims: claims, ExpiresAt: claims.ExpiresAt}, nil
}

// ValidateSession verifies token and returns its claims. Every failure, including
// storage errors, is reported as ErrUnauthenticated.
func (m *SessionManager) ValidateSession(ctx context.Context, token string) (*domain.SessionClaims, error) {
	ctx, span := m.tracer.Start(ctx, "session.Validate")
	defer span.End()

	claims, err := m.signer.Parse(token)
	if err != nil {
		return nil, m.reject(span, "malformed or tampered token", err)
	}
	span.SetAttributes(attribute.String("principal.kind", string(claims.PrincipalKind)))

	now := m.now()
	if !now.Before(claims.ExpiresAt) {
		return nil, m.reject(span, "token expired", nil)
	}

	revocation, err := m.denylist.Lookup(ctx, claims.SessionID)
	if err != nil {
		return nil, m.reject(span, "denylist unavailable", err)
	}
	if revocation != nil {
		return nil, m.reject(span, "token revoked", fmt.Errorf("reason=%s", revocation.Reason))
	}

	if err := m.checkNotBefore(ctx, claims); err != nil {
		return nil, m.reject(span, "token issued before principal cutoff", err)
	}

	return claims, nil
}

// RefreshSession rotates token into a new one. The old token is denylisted.
func (m *SessionManager) RefreshSession(ctx context.Context, token, ip, userAgent string) (*domain.IssuedSession, error) {
	ctx, span := m.tracer.Start(ctx, "session.Refresh")
	defer span.End()

	claims, err := m.signer.Parse(token)
	if err != nil {
		return nil, m.reject(span, "malformed or tampered token", err)
	}

	now := m.now()
	if now.After(claims.ExpiresAt.Add(m.policy.RefreshGrace)) {
		return nil, m.reject(span, "token past refresh grace", nil)
	}
	if now.After(claims.StartedAt.Add(m.policy.MaxSessionLifetime)) {
		return nil, m.reject(span, "session exceeded maximum lifetime", nil)
	}

	revocation, err := m.denylist.Lookup(ctx, claims.SessionID)
	if err != nil {
		return nil, m.reject(span, "denylist unavailable", err)
	}
	racing := false
	if revocation != nil {
		if revocation.Reason != domain.RevocationRotated || now.Sub(revocation.RevokedAt) > m.policy.RotationRaceWindow {
			return nil, m.reject(span, "token revoked", fmt.Errorf("reason=%s", revocation.Reason))
		}
		racing = true
	}

	if err := m.checkNotBefore(ctx, claims); err != nil {
		return nil, m.reject(span, "token issued before principal cutoff", err)
	}

	role := claims.Role
	if m.principals != nil {
		principal, err := m.principals.GetPrincipal(ctx, claims.PrincipalKind, claims.PrincipalID)
		if err != nil {
			return nil, m.reject(span, "principal lookup failed", err)
		}
		role = principal.Role
	}

	if !racing {
		revocation := domain.Revocation{Reason: domain.RevocationRotated, RevokedAt: now}
		if err := m.denylist.Deny(ctx, claims.SessionID, revocation, m.denyTTL(claims, now)); err != nil {
			return nil, storageError("denylist rotated token", err)
		}
		if m.sessions != nil {
			if err := m.sessions.Revoke(ctx, claims.SessionID, string(domain.RevocationRotated)); err != nil && !errors.Is(err, repository.ErrNotFound) {
				m.logger.Warn("mark rotated session in registry", zap.String("session_id", claims.SessionID), zap.Error(err))
			}
		}
	}

	issued, err := m.issue(ctx, claims.PrincipalID, claims.PrincipalKind, role, claims.StartedAt, now.Truncate(time.Second), ip, userAgent)
	if err != nil {
		return nil, err
	}
	if racing {
		m.logger.Debug("concurrent refresh of rotated token accepted",
			zap.String("session_id", claims.SessionID),
			zap.String("replacement_id", issued.Claims.SessionID),
		)
	}
	return issued, nil
}

// EndSession revokes exactly this token and returns the claims it carried. Tokens already past their
// refresh grace need no entry.
func (m *SessionManager) EndSession(ctx context.Context, token string) (*domain.SessionClaims, error) {
	claims, err := m.signer.Parse(token)
	if err != nil {
		m.logger.Debug("end session with unparseable token", zap.Error(err))
		return nil, ErrUnauthenticated
	}

	now := m.now()
	ttl := m.denyTTL(claims, now)
	if now.After(claims.ExpiresAt.Add(m.policy.RefreshGrace)) {
		return claims, nil
	}

	revocation := domain.Revocation{Reason: domain.RevocationLogout, RevokedAt: now}
	if err := m.denylist.Deny(ctx, claims.SessionID, revocation, ttl); err != nil {
		return nil, storageError("denylist token", err)
	}

	if m.sessions != nil {
		if err := m.sessions.Revoke(ctx, claims.SessionID, string(domain.RevocationLogout)); err != nil && !errors.Is(err, repository.ErrNotFound) {
			m.logger.Warn("mark session revoked in registry", zap.String("session_id", claims.SessionID), zap.Error(err))
		}
	}

	m.publishRevoked(ctx, claims.SessionID, claims.PrincipalID, claims.PrincipalKind, string(domain.RevocationLogout))
	return claims, nil
}

// EndAllSessions revokes every token the principal holds by moving its issue-time cutoff
// forward and denylisting every registered session.
func (m *SessionManager) EndAllSessions(ctx context.Context, kind domain.PrincipalKind, principalID, reason string) (int, error) {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" || !kind.Valid() {
		return 0, invalidInput("principal id and kind are required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "logout_all"
	}

	now := m.now()
	cutoff := now.Truncate(time.Second)
	if err := m.notBefore.SetNotBefore(ctx, kind, principalID, cutoff, m.policy.MaxSessionLifetime+m.policy.RefreshGrace); err != nil {
		return 0, storageError("set not-before", err)
	}

	if m.sessions == nil {
		m.publishRevoked(ctx, "", principalID, kind, reason)
		return 0, nil
	}

	active, err := m.sessions.ListActiveByPrincipal(ctx, kind, principalID)
	if err != nil {
		return 0, storageError("list sessions", err)
	}
	revocation := domain.Revocation{Reason: domain.RevocationLogout, RevokedAt: now}
	for _, session := range active {
		claims := domain.SessionClaims{SessionID: session.ID, ExpiresAt: session.ExpiresAt}
		if err := m.denylist.Deny(ctx, session.ID, revocation, m.denyTTL(&claims, now)); err != nil {
			return 0, storageError("denylist session", err)
		}
	}

	count, err := m.sessions.RevokeAllForPrincipal(ctx, kind, principalID, reason)
	if err != nil {
		return 0, storageError("revoke sessions", err)
	}
	m.publishRevoked(ctx, "", principalID, kind, reason)
	return count, nil
}

// ListSessions returns the principal's unexpired, unrevoked sessions.
func (m *SessionManager) ListSessions(ctx context.Context, kind domain.PrincipalKind, principalID string) ([]domain.Session, error) {
	if m.sessions == nil {
		return nil, fmt.Errorf("session registry not configured")
	}
	sessions, err := m.sessions.ListActiveByPrincipal(ctx, kind, principalID)
	if err != nil {
		return nil, storageError("list sessions", err)
	}
	now := m.now()
	active := make([]domain.Session, 0, len(sessions))
	for _, s := range sessions {
		if s.IsActive(now) {
			active = append(active, s)
		}
	}
	return active, nil
}

func (m *SessionManager) checkNotBefore(ctx context.Context, claims *domain.SessionClaims) error {
	if m.notBefore == nil {
		return nil
	}
	cutoff, ok, err := m.notBefore.GetNotBefore(ctx, claims.PrincipalKind, claims.PrincipalID)
	if err != nil {
		return fmt.Errorf("not-before lookup: %w", err)
	}
	if ok && claims.IssuedAt.Before(cutoff) {
		return fmt.Errorf("issued %s before cutoff %s", claims.IssuedAt.Format(time.RFC3339), cutoff.Format(time.RFC3339))
	}
	return nil
}

// denyTTL keeps an entry until the token can no longer be presented even for refresh.
func (m *SessionManager) denyTTL(claims *domain.SessionClaims, now time.Time) time.Duration {
	ttl := claims.ExpiresAt.Add(m.policy.RefreshGrace).Sub(now)
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func (m *SessionManager) reject(span trace.Span, reason string, cause error) error {
	span.SetAttributes(attribute.String("session.reject_reason", reason))
	fields := []zap.Field{zap.String("reason", reason)}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	m.logger.Debug("session rejected", fields...)
	return ErrUnauthenticated
}

func (m *SessionManager) publishRevoked(ctx context.Context, sessionID, principalID string, kind domain.PrincipalKind, reason string) {
	if m.events == nil {
		return
	}
	event := domain.SessionRevokedEvent{
		EventID:       uuid.NewString(),
		SessionID:     sessionID,
		PrincipalID:   principalID,
		PrincipalKind: kind,
		Reason:        reason,
		RevokedAt:     m.now(),
	}
	if err := m.events.PublishSessionRevoked(ctx, event); err != nil {
		m.logger.Warn("publish session revoked event", zap.String("principal_id", principalID), zap.Error(err))
	}
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
