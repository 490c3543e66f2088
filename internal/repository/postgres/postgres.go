package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/busline/backoffice-iam/internal/core/domain"
)

// pgExecutor is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store wraps the pgx pool shared by repositories.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewStore wraps an already configured pool.
func NewStore(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, logger: logger}
}

// Repositories wires every repository against the pool.
func (s *Store) Repositories() (*Repositories, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("postgres store is not initialised")
	}
	return NewRepositories(s.pool, s.logger)
}

// Ping checks connectivity for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("postgres store is not initialised")
	}
	return s.pool.Ping(ctx)
}

// Close releases resources associated with the store.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// roleColumns splits a RoleRef into its two nullable storage columns.
func roleColumns(ref domain.RoleRef) (*string, *int64) {
	if tag, ok := ref.System(); ok {
		value := string(tag)
		return &value, nil
	}
	if id, ok := ref.Custom(); ok {
		return nil, &id
	}
	return nil, nil
}

// roleFromColumns rebuilds a RoleRef. A row carrying both columns is ambiguous: it yields the
// zero RoleRef and false, so the principal resolves to no base permissions.
func roleFromColumns(tag *string, customID *int64) (domain.RoleRef, bool) {
	hasTag := tag != nil && *tag != ""
	hasCustom := customID != nil && *customID > 0
	switch {
	case hasTag && hasCustom:
		return domain.RoleRef{}, false
	case hasTag:
		return domain.SystemRef(domain.SystemTag(*tag)), true
	case hasCustom:
		return domain.CustomRef(*customID), true
	default:
		return domain.RoleRef{}, true
	}
}

func logAmbiguousRole(logger *zap.Logger, table, id string, tag *string, customID *int64) {
	logger.Error("row carries both a system role and a custom role, treating as no role",
		zap.String("table", table),
		zap.String("id", id),
		zap.Stringp("role_tag", tag),
		zap.Int64p("custom_role_id", customID),
	)
}

func permissionStrings(ids []domain.PermissionID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func permissionIDs(values []string) []domain.PermissionID {
	out := make([]domain.PermissionID, len(values))
	for i, v := range values {
		out[i] = domain.PermissionID(v)
	}
	return out
}
