package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/busline/backoffice-iam/internal/core/domain"
	"github.com/busline/backoffice-iam/internal/core/port"
	"github.com/busline/backoffice-iam/internal/repository"
)

// SessionRepository persists the session registry.
type SessionRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	now     func() time.Time
	logger  *zap.Logger
}

var _ port.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository constructs a PostgreSQL-backed session repository.
func NewSessionRepository(exec pgExecutor) *SessionRepository {
	return &SessionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now:     time.Now,
		logger:  zap.NewNop(),
	}
}

// WithLogger sets the logger used to report inconsistent rows.
func (r *SessionRepository) WithLogger(logger *zap.Logger) *SessionRepository {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// WithClock overrides the time source used for revocation timestamps.
func (r *SessionRepository) WithClock(now func() time.Time) *SessionRepository {
	if now != nil {
		r.now = now
	}
	return r
}

// Create inserts a new session row.
func (r *SessionRepository) Create(ctx context.Context, session domain.Session) error {
	tag, customID := roleColumns(session.Role)
	stmt, args, err := r.builder.Insert("sessions").
		Columns("id", "principal_id", "principal_kind", "role_tag", "custom_role_id", "ip", "user_agent", "started_at", "created_at", "expires_at").
		Values(session.ID, session.PrincipalID, string(session.PrincipalKind), tag, customID, session.IP, session.UserAgent, session.StartedAt, session.CreatedAt, session.ExpiresAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// MarkRefreshed records that a session was rotated at the supplied moment.
func (r *SessionRepository) MarkRefreshed(ctx context.Context, sessionID string, at time.Time) error {
	stmt, args, err := r.builder.Update("sessions").
		Set("refreshed_at", at).
		Where(squirrel.Eq{"id": sessionID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build refresh session sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("mark session refreshed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Revoke marks a session as revoked. Revoking an already revoked session keeps the first reason.
func (r *SessionRepository) Revoke(ctx context.Context, sessionID string, reason string) error {
	stmt, args, err := r.builder.Update("sessions").
		Set("revoked_at", r.now().UTC()).
		Set("revoke_reason", reason).
		Where(squirrel.Eq{"id": sessionID}).
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("build revoke session sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RevokeAllForPrincipal revokes every open session of a principal and returns how many were changed.
func (r *SessionRepository) RevokeAllForPrincipal(ctx context.Context, kind domain.PrincipalKind, principalID string, reason string) (int, error) {
	stmt, args, err := r.builder.Update("sessions").
		Set("revoked_at", r.now().UTC()).
		Set("revoke_reason", reason).
		Where(squirrel.Eq{"principal_kind": string(kind), "principal_id": principalID}).
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build revoke sessions sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListActiveByPrincipal returns unrevoked, unexpired sessions, newest first.
func (r *SessionRepository) ListActiveByPrincipal(ctx context.Context, kind domain.PrincipalKind, principalID string) ([]domain.Session, error) {
	stmt, args, err := r.builder.Select("id", "principal_id", "principal_kind", "role_tag", "custom_role_id", "ip", "user_agent", "started_at", "created_at", "refreshed_at", "expires_at", "revoked_at", "revoke_reason").
		From("sessions").
		Where(squirrel.Eq{"principal_kind": string(kind), "principal_id": principalID}).
		Where("revoked_at IS NULL").
		Where(squirrel.Gt{"expires_at": r.now().UTC()}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sessions sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var (
			s        domain.Session
			kindRaw  string
			roleTag  *string
			customID *int64
		)
		if err := rows.Scan(&s.ID, &s.PrincipalID, &kindRaw, &roleTag, &customID, &s.IP, &s.UserAgent, &s.StartedAt, &s.CreatedAt, &s.RefreshedAt, &s.ExpiresAt, &s.RevokedAt, &s.RevokeReason); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.PrincipalKind = domain.PrincipalKind(kindRaw)
		role, ok := roleFromColumns(roleTag, customID)
		if !ok {
			logAmbiguousRole(r.logger, "sessions", s.ID, roleTag, customID)
		}
		s.Role = role
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}
