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

var roleSelectColumns = []string{"id", "name", "description", "permissions", "color", "created_by", "created_at", "updated_at"}

// RoleRepository persists custom roles.
type RoleRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

var _ port.RoleRepository = (*RoleRepository)(nil)

// NewRoleRepository constructs a PostgreSQL-backed role repository.
func NewRoleRepository(exec pgExecutor) *RoleRepository {
	return &RoleRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a role and returns it with its generated id.
func (r *RoleRepository) Create(ctx context.Context, role domain.Role) (*domain.Role, error) {
	stmt, args, err := r.builder.Insert("roles").
		Columns("name", "description", "permissions", "color", "created_by", "created_at", "updated_at").
		Values(role.Name, role.Description, permissionStrings(role.Permissions), role.Color, role.CreatedBy, role.CreatedAt, role.UpdatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert role sql: %w", err)
	}

	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&role.ID); err != nil {
		return nil, fmt.Errorf("insert role: %w", err)
	}
	return &role, nil
}

// Update replaces the mutable columns of a role.
func (r *RoleRepository) Update(ctx context.Context, role domain.Role) (*domain.Role, error) {
	stmt, args, err := r.builder.Update("roles").
		Set("name", role.Name).
		Set("description", role.Description).
		Set("permissions", permissionStrings(role.Permissions)).
		Set("color", role.Color).
		Set("updated_at", role.UpdatedAt).
		Where(squirrel.Eq{"id": role.ID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update role sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, repository.ErrNotFound
	}
	return &role, nil
}

// Delete removes a role by id.
func (r *RoleRepository) Delete(ctx context.Context, id int64) error {
	stmt, args, err := r.builder.Delete("roles").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete role sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// GetByID fetches a role by id.
func (r *RoleRepository) GetByID(ctx context.Context, id int64) (*domain.Role, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// GetByName fetches a role by case-insensitive name.
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*domain.Role, error) {
	return r.getOne(ctx, squirrel.Expr("lower(name) = lower(?)", name))
}

// List retrieves all roles sorted by name.
func (r *RoleRepository) List(ctx context.Context) ([]domain.Role, error) {
	stmt, args, err := r.builder.Select(roleSelectColumns...).
		From("roles").
		OrderBy("name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list roles sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query roles: %w", err)
	}
	defer rows.Close()

	var roles []domain.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}
	return roles, nil
}

func (r *RoleRepository) getOne(ctx context.Context, where squirrel.Sqlizer) (*domain.Role, error) {
	stmt, args, err := r.builder.Select(roleSelectColumns...).
		From("roles").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get role sql: %w", err)
	}

	role, err := scanRole(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return role, nil
}

func scanRole(row pgx.Row) (*domain.Role, error) {
	var (
		role  domain.Role
		perms []string
	)
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &perms, &role.Color, &role.CreatedBy, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan role: %w", err)
	}
	role.Permissions = permissionIDs(perms)
	return &role, nil
}
