package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/busline/backoffice-iam/internal/core/domain"
	"github.com/busline/backoffice-iam/internal/core/port"
	"github.com/busline/backoffice-iam/internal/repository"
)

// ErrUnknownNamespace is returned when an override repository is requested for an unsupported namespace.
var ErrUnknownNamespace = errors.New("unknown override namespace")

var overrideTables = map[domain.OverrideNamespace]string{
	domain.NamespaceAdmin:      "admin_permission_overrides",
	domain.NamespaceVendorUser: "vendor_user_permission_overrides",
}

const overrideUpsertSuffix = "ON CONFLICT (principal_id, permission) DO UPDATE SET granted = EXCLUDED.granted, granted_by = EXCLUDED.granted_by, created_at = EXCLUDED.created_at"

// OverrideRepository persists permission overrides for one namespace. Each namespace owns its own table.
type OverrideRepository struct {
	exec      pgExecutor
	builder   squirrel.StatementBuilderType
	namespace domain.OverrideNamespace
	table     string
}

var _ port.OverrideRepository = (*OverrideRepository)(nil)

// NewOverrideRepository constructs a repository bound to the namespace's table.
func NewOverrideRepository(exec pgExecutor, namespace domain.OverrideNamespace) (*OverrideRepository, error) {
	table, ok := overrideTables[namespace]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNamespace, namespace)
	}
	return &OverrideRepository{
		exec:      exec,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		namespace: namespace,
		table:     table,
	}, nil
}

// Namespace reports which override namespace the repository serves.
func (r *OverrideRepository) Namespace() domain.OverrideNamespace {
	return r.namespace
}

// ListByPrincipal returns every override of a principal, newest first.
func (r *OverrideRepository) ListByPrincipal(ctx context.Context, principalID string) ([]domain.PermissionOverride, error) {
	stmt, args, err := r.builder.Select("principal_id", "permission", "granted", "granted_by", "created_at").
		From(r.table).
		Where(squirrel.Eq{"principal_id": principalID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list overrides sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.table, err)
	}
	defer rows.Close()

	var overrides []domain.PermissionOverride
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", r.table, err)
	}
	return overrides, nil
}

// Get fetches a single override.
func (r *OverrideRepository) Get(ctx context.Context, principalID string, permission domain.PermissionID) (*domain.PermissionOverride, error) {
	stmt, args, err := r.builder.Select("principal_id", "permission", "granted", "granted_by", "created_at").
		From(r.table).
		Where(squirrel.Eq{"principal_id": principalID, "permission": string(permission)}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get override sql: %w", err)
	}

	o, err := scanOverride(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return o, nil
}

// Upsert inserts an override or replaces the existing one for the same permission.
func (r *OverrideRepository) Upsert(ctx context.Context, override domain.PermissionOverride) error {
	stmt, args, err := r.builder.Insert(r.table).
		Columns("principal_id", "permission", "granted", "granted_by", "created_at").
		Values(override.PrincipalID, string(override.Permission), override.Granted, override.GrantedBy, override.CreatedAt).
		Suffix(overrideUpsertSuffix).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert override sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert %s: %w", r.table, err)
	}
	return nil
}

// Delete removes an override. Deleting a missing override is not an error.
func (r *OverrideRepository) Delete(ctx context.Context, principalID string, permission domain.PermissionID) error {
	stmt, args, err := r.builder.Delete(r.table).
		Where(squirrel.Eq{"principal_id": principalID, "permission": string(permission)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete override sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("delete from %s: %w", r.table, err)
	}
	return nil
}

func scanOverride(row pgx.Row) (*domain.PermissionOverride, error) {
	var (
		o    domain.PermissionOverride
		perm string
	)
	if err := row.Scan(&o.PrincipalID, &perm, &o.Granted, &o.GrantedBy, &o.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan override: %w", err)
	}
	o.Permission = domain.PermissionID(perm)
	return &o, nil
}
