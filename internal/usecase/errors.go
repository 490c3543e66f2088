package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/busline/backoffice-iam/internal/core/domain"
)

var (
	// ErrUnauthenticated covers every token failure. Sub-causes are only logged.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrPermissionDenied indicates the principal lacks the required permission.
	ErrPermissionDenied = errors.New("missing permission")
	// ErrRoleNotFound is returned when a custom role fetched by id does not exist.
	ErrRoleNotFound = errors.New("role not found")
	// ErrRoleExists indicates a custom role with the provided name already exists.
	ErrRoleExists = errors.New("role already exists")
	// ErrSystemRoleImmutable is returned for any attempt to persist or edit a system template.
	ErrSystemRoleImmutable = errors.New("system roles cannot be modified")
	// ErrUnknownPermission indicates a permission id missing from the catalog.
	ErrUnknownPermission = errors.New("unknown permission")
	// ErrStorageUnavailable indicates the persistence collaborator could not serve the request.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrInvalidCredentials is returned by login for any username/password mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidInput flags malformed caller input.
	ErrInvalidInput = errors.New("invalid input")
)

// PermissionDeniedError names the permission an authorization check required.
type PermissionDeniedError struct {
	Permission domain.PermissionID
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("missing permission %s", e.Permission)
}

// Is lets errors.Is match ErrPermissionDenied.
func (e *PermissionDeniedError) Is(target error) bool {
	return target == ErrPermissionDenied
}

// storageError wraps a repository failure so callers can match ErrStorageUnavailable
// while the original cause stays in the chain for logging.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func unknownPermissions(ids []domain.PermissionID) error {
	return fmt.Errorf("%w: %v", ErrUnknownPermission, ids)
}
