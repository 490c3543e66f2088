package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/busline/backoffice-iam/internal/core/domain"
	"github.com/busline/backoffice-iam/internal/core/port"
	"github.com/busline/backoffice-iam/internal/repository"
)

// principalTable describes how a principal kind is laid out in storage.
type principalTable struct {
	name        string
	loginColumn string
	nameColumn  string
	vendor      bool
}

var principalTables = map[domain.PrincipalKind]principalTable{
	domain.PrincipalAdmin:      {name: "admins", loginColumn: "username", nameColumn: "full_name"},
	domain.PrincipalVendorUser: {name: "vendor_users", loginColumn: "email", nameColumn: "full_name", vendor: true},
}

// PrincipalRepository reads console principals and their credentials.
type PrincipalRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	logger  *zap.Logger
}

var _ port.PrincipalRepository = (*PrincipalRepository)(nil)

// NewPrincipalRepository constructs a PostgreSQL-backed principal repository.
func NewPrincipalRepository(exec pgExecutor) *PrincipalRepository {
	return &PrincipalRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		logger:  zap.NewNop(),
	}
}

// WithLogger sets the logger used to report inconsistent rows.
func (r *PrincipalRepository) WithLogger(logger *zap.Logger) *PrincipalRepository {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// GetAdminByUsername returns the credential of an admin-console user.
func (r *PrincipalRepository) GetAdminByUsername(ctx context.Context, username string) (*domain.Credential, error) {
	return r.getCredential(ctx, domain.PrincipalAdmin, squirrel.Eq{"username": username})
}

// GetVendorUserByEmail returns the credential of a vendor sub-user. Emails compare case-insensitively.
func (r *PrincipalRepository) GetVendorUserByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	return r.getCredential(ctx, domain.PrincipalVendorUser, squirrel.Expr("lower(email) = lower(?)", email))
}

// GetPrincipal returns an active principal by id.
func (r *PrincipalRepository) GetPrincipal(ctx context.Context, kind domain.PrincipalKind, principalID string) (*domain.Principal, error) {
	cred, err := r.getCredential(ctx, kind, squirrel.Expr("id::text = ?", principalID))
	if err != nil {
		return nil, err
	}
	if !cred.IsActive {
		return nil, repository.ErrNotFound
	}
	principal := cred.Principal
	return &principal, nil
}

// UpdateLastLogin stamps the principal's last successful login.
func (r *PrincipalRepository) UpdateLastLogin(ctx context.Context, kind domain.PrincipalKind, principalID string, at time.Time) error {
	table, ok := principalTables[kind]
	if !ok {
		return fmt.Errorf("unknown principal kind %q", kind)
	}

	stmt, args, err := r.builder.Update(table.name).
		Set("last_login", at).
		Where(squirrel.Expr("id::text = ?", principalID)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update last login sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *PrincipalRepository) getCredential(ctx context.Context, kind domain.PrincipalKind, where squirrel.Sqlizer) (*domain.Credential, error) {
	table, ok := principalTables[kind]
	if !ok {
		return nil, fmt.Errorf("unknown principal kind %q", kind)
	}

	vendorColumn := "NULL::text"
	if table.vendor {
		vendorColumn = "vendor_id::text"
	}

	stmt, args, err := r.builder.Select(
		"id::text", table.loginColumn, table.nameColumn, "role_tag", "custom_role_id",
		vendorColumn, "password_hash", "is_active", "last_login",
	).
		From(table.name).
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get %s sql: %w", table.name, err)
	}

	var (
		cred     domain.Credential
		roleTag  *string
		customID *int64
	)
	err = r.exec.QueryRow(ctx, stmt, args...).Scan(
		&cred.Principal.ID, &cred.Principal.Login, &cred.Principal.DisplayName, &roleTag, &customID,
		&cred.Principal.VendorID, &cred.PasswordHash, &cred.IsActive, &cred.LastLogin,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", table.name, err)
	}
	cred.Principal.Kind = kind
	role, ok := roleFromColumns(roleTag, customID)
	if !ok {
		logAmbiguousRole(r.logger, table.name, cred.Principal.ID, roleTag, customID)
	}
	cred.Principal.Role = role
	return &cred, nil
}
