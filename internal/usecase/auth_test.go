package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/busline/backoffice-iam/internal/core/domain"
)

type hasherStub struct {
	err error
}

func (h hasherStub) Hash(password string) (string, error) {
	return "hash:" + password, nil
}

func (h hasherStub) Verify(password, encoded string) (bool, error) {
	if h.err != nil {
		return false, h.err
	}
	return encoded == "hash:"+password, nil
}

type countingHasher struct {
	hasherStub
	hashes   int
	verifies int
}

func (h *countingHasher) Hash(password string) (string, error) {
	h.hashes++
	return h.hasherStub.Hash(password)
}

func (h *countingHasher) Verify(password, encoded string) (bool, error) {
	h.verifies++
	return h.hasherStub.Verify(password, encoded)
}

type issuerStub struct {
	issued []domain.Principal
	err    error
}

func (i *issuerStub) CreateSession(_ context.Context, principal domain.Principal, _, _ string) (*domain.IssuedSession, error) {
	if i.err != nil {
		return nil, i.err
	}
	i.issued = append(i.issued, principal)
	return &domain.IssuedSession{Token: "tok-" + principal.ID}, nil
}

func newAuthFixture() (*AuthService, *principalRepoStub, *issuerStub) {
	repo := newPrincipalRepoStub()
	repo.admins["root"] = domain.Credential{
		Principal:    domain.Principal{ID: "1", Login: "root", Role: domain.SystemRef(domain.SystemAdmin)},
		PasswordHash: "hash:s3cret",
		IsActive:     true,
	}
	repo.admins["former"] = domain.Credential{
		Principal:    domain.Principal{ID: "2", Login: "former", Role: domain.SystemRef(domain.SystemStaff)},
		PasswordHash: "hash:s3cret",
		IsActive:     false,
	}
	repo.vendors["ops@coach.example"] = domain.Credential{
		Principal:    domain.Principal{ID: "31", Login: "ops@coach.example", Role: domain.CustomRef(5)},
		PasswordHash: "hash:pw",
		IsActive:     true,
	}
	issuer := &issuerStub{}
	svc := NewAuthService(repo, hasherStub{}, issuer, nil)
	svc.WithClock(func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) })
	return svc, repo, issuer
}

func TestLoginAdminSuccess(t *testing.T) {
	svc, repo, issuer := newAuthFixture()

	result, err := svc.LoginAdmin(context.Background(), " root ", "s3cret", "10.1.1.1", "curl")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Session.Token != "tok-1" || result.Principal.Kind != domain.PrincipalAdmin {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(issuer.issued) != 1 || !issuer.issued[0].Role.IsSuperuser() {
		t.Fatalf("expected admin role snapshot, got %+v", issuer.issued)
	}
	if _, ok := repo.lastLogin["admin:1"]; !ok {
		t.Fatal("last login should be recorded")
	}
}

func TestLoginVendorUserNormalizesEmail(t *testing.T) {
	svc, _, _ := newAuthFixture()

	result, err := svc.LoginVendorUser(context.Background(), "OPS@coach.example", "pw", "", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Principal.Kind != domain.PrincipalVendorUser {
		t.Fatalf("expected vendor_user kind, got %s", result.Principal.Kind)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc, _, issuer := newAuthFixture()
	ctx := context.Background()

	cases := []struct {
		name     string
		username string
		password string
	}{
		{"unknown user", "ghost", "s3cret"},
		{"wrong password", "root", "nope"},
		{"inactive account", "former", "s3cret"},
	}
	for _, tc := range cases {
		if _, err := svc.LoginAdmin(ctx, tc.username, tc.password, "", ""); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("%s: expected ErrInvalidCredentials, got %v", tc.name, err)
		}
	}
	if len(issuer.issued) != 0 {
		t.Fatal("no session may be issued on failure")
	}
}

func TestLoginUnknownUserStillVerifiesPassword(t *testing.T) {
	repo := newPrincipalRepoStub()
	hasher := &countingHasher{}
	svc := NewAuthService(repo, hasher, &issuerStub{}, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.LoginAdmin(ctx, "ghost", "s3cret", "", ""); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	}
	if hasher.verifies != 3 {
		t.Fatalf("expected one verification per attempt, got %d", hasher.verifies)
	}
	if hasher.hashes != 1 {
		t.Fatalf("expected the decoy hash to be computed once, got %d", hasher.hashes)
	}
}

func TestLoginStorageFailure(t *testing.T) {
	svc, repo, _ := newAuthFixture()
	repo.lookupErr = errors.New("conn refused")

	if _, err := svc.LoginAdmin(context.Background(), "root", "s3cret", "", ""); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestLoginRequiresInput(t *testing.T) {
	svc, _, _ := newAuthFixture()

	if _, err := svc.LoginAdmin(context.Background(), "", "x", "", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.LoginVendorUser(context.Background(), "a@b", "", "", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
