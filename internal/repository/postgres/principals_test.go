package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/busline/backoffice-iam/internal/core/domain"
	"github.com/busline/backoffice-iam/internal/repository"
)

func ptr[T any](v T) *T { return &v }

var principalColumns = []string{"id", "username", "full_name", "role_tag", "custom_role_id", "vendor_id", "password_hash", "is_active", "last_login"}

func TestPrincipalRepository_GetAdminByUsername(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewPrincipalRepository(mock)

	rows := pgxmock.NewRows(principalColumns).
		AddRow("1", "olga", "Olga K.", ptr("owner"), nil, nil, "salt:hash", true, nil)

	mock.ExpectQuery(`SELECT .*FROM admins WHERE username = \$1 LIMIT 1`).
		WithArgs("olga").
		WillReturnRows(rows)

	cred, err := repo.GetAdminByUsername(context.Background(), "olga")
	if err != nil {
		t.Fatalf("GetAdminByUsername returned error: %v", err)
	}
	if cred.Principal.Kind != domain.PrincipalAdmin || cred.Principal.ID != "1" {
		t.Fatalf("unexpected principal: %+v", cred.Principal)
	}
	if !cred.Principal.Role.Equal(domain.SystemRef(domain.SystemOwner)) {
		t.Fatalf("expected owner role, got %s", cred.Principal.Role)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPrincipalRepository_GetPrincipalInactive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewPrincipalRepository(mock)

	rows := pgxmock.NewRows(principalColumns).
		AddRow("8", "ann@example.com", "Ann", nil, ptr(int64(5)), ptr("vendor-3"), "salt:hash", false, nil)

	mock.ExpectQuery(`SELECT .*FROM vendor_users WHERE id::text = \$1`).
		WithArgs("8").
		WillReturnRows(rows)

	if _, err := repo.GetPrincipal(context.Background(), domain.PrincipalVendorUser, "8"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for inactive principal, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPrincipalRepository_AmbiguousRoleFailsClosed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	core, logs := observer.New(zap.ErrorLevel)
	repo := NewPrincipalRepository(mock).WithLogger(zap.New(core))

	rows := pgxmock.NewRows(principalColumns).
		AddRow("3", "mira", "Mira S.", ptr("admin"), ptr(int64(12)), nil, "salt:hash", true, nil)

	mock.ExpectQuery(`SELECT .*FROM admins WHERE username = \$1 LIMIT 1`).
		WithArgs("mira").
		WillReturnRows(rows)

	cred, err := repo.GetAdminByUsername(context.Background(), "mira")
	if err != nil {
		t.Fatalf("GetAdminByUsername returned error: %v", err)
	}
	if !cred.Principal.Role.Equal(domain.RoleRef{}) {
		t.Fatalf("expected no role for ambiguous row, got %s", cred.Principal.Role)
	}
	if logs.FilterField(zap.String("id", "3")).Len() != 1 {
		t.Fatalf("expected the ambiguous row to be logged, got %d entries", logs.Len())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPrincipalRepository_VendorUserMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewPrincipalRepository(mock)

	mock.ExpectQuery(`SELECT .*FROM vendor_users WHERE lower\(email\) = lower\(\$1\)`).
		WithArgs("nobody@example.com").
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.GetVendorUserByEmail(context.Background(), "nobody@example.com"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPrincipalRepository_UpdateLastLogin(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewPrincipalRepository(mock)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE admins SET last_login = \$1 WHERE id::text = \$2`).
		WithArgs(at, "1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.UpdateLastLogin(context.Background(), domain.PrincipalAdmin, "1", at); err != nil {
		t.Fatalf("UpdateLastLogin returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
