package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/busline/backoffice-iam/internal/core/domain"
	"github.com/busline/backoffice-iam/internal/core/port"
	"github.com/busline/backoffice-iam/internal/repository"
)

// SessionIssuer mints sessions for verified principals.
type SessionIssuer interface {
	CreateSession(ctx context.Context, principal domain.Principal, ip, userAgent string) (*domain.IssuedSession, error)
}

// LoginResult is returned to the console after a successful login.
type LoginResult struct {
	Principal domain.Principal
	Session   domain.IssuedSession
}

// AuthService verifies console credentials and opens sessions.
type AuthService struct {
	principals port.PrincipalRepository
	hasher     port.PasswordHasher
	sessions   SessionIssuer
	logger     *zap.Logger
	now        func() time.Time

	decoyOnce sync.Once
	decoyHash string
}

// decoyPassword backs the hash verified when no credential matches the identifier.
const decoyPassword = "backoffice-decoy-credential"

// NewAuthService constructs an AuthService.
func NewAuthService(principals port.PrincipalRepository, hasher port.PasswordHasher, sessions SessionIssuer, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		principals: principals,
		hasher:     hasher,
		sessions:   sessions,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// LoginAdmin authenticates an admin-console user by username.
func (s *AuthService) LoginAdmin(ctx context.Context, username, password, ip, userAgent string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, invalidInput("username and password are required")
	}
	return s.login(ctx, domain.PrincipalAdmin, username, password, ip, userAgent, s.principals.GetAdminByUsername)
}

// LoginVendorUser authenticates a vendor sub-user by email.
func (s *AuthService) LoginVendorUser(ctx context.Context, email, password, ip, userAgent string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, invalidInput("email and password are required")
	}
	return s.login(ctx, domain.PrincipalVendorUser, email, password, ip, userAgent, s.principals.GetVendorUserByEmail)
}

func (s *AuthService) login(
	ctx context.Context,
	kind domain.PrincipalKind,
	identifier, password, ip, userAgent string,
	lookup func(context.Context, string) (*domain.Credential, error),
) (*LoginResult, error) {
	credential, err := lookup(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.verifyDecoy(password)
			return nil, ErrInvalidCredentials
		}
		return nil, storageError("lookup credential", err)
	}

	ok, err := s.hasher.Verify(password, credential.PasswordHash)
	if err != nil {
		s.logger.Warn("password hash could not be verified",
			zap.String("principal_kind", string(kind)),
			zap.String("principal_id", credential.Principal.ID),
			zap.Error(err),
		)
		return nil, ErrInvalidCredentials
	}
	if !ok || !credential.IsActive {
		return nil, ErrInvalidCredentials
	}

	principal := credential.Principal
	principal.Kind = kind

	issued, err := s.sessions.CreateSession(ctx, principal, ip, userAgent)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	if err := s.principals.UpdateLastLogin(ctx, kind, principal.ID, s.now()); err != nil {
		s.logger.Warn("update last login", zap.String("principal_id", principal.ID), zap.Error(err))
	}

	return &LoginResult{Principal: principal, Session: *issued}, nil
}

func (s *AuthService) verifyDecoy(password string) {
	s.decoyOnce.Do(func() {
		hash, err := s.hasher.Hash(decoyPassword)
		if err != nil {
			s.logger.Warn("decoy password hash unavailable", zap.Error(err))
			return
		}
		s.decoyHash = hash
	})
	if s.decoyHash == "" {
		return
	}
	_, _ = s.hasher.Verify(password, s.decoyHash)
}
