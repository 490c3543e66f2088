package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/busline/backoffice-iam/internal/core/domain"
	"github.com/busline/backoffice-iam/internal/core/port"
	"github.com/busline/backoffice-iam/internal/repository"
)

const defaultRoleColor = "gray"

// RoleInput captures the mutable fields of a custom role.
type RoleInput struct {
	Name        string
	Description *string
	Permissions []domain.PermissionID
	Color       string
}

// RoleService resolves role references and manages custom roles.
type RoleService struct {
	catalog *domain.Catalog
	roles   port.RoleRepository
	events  port.EventPublisher
	logger  *zap.Logger
	now     func() time.Time
}

// NewRoleService constructs a RoleService.
func NewRoleService(catalog *domain.Catalog, roles port.RoleRepository, events port.EventPublisher, logger *zap.Logger) *RoleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleService{
		catalog: catalog,
		roles:   roles,
		events:  events,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *RoleService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// ResolveBasePermissions returns the permission set granted by ref.
// Unknown system tags, the zero reference and orphaned custom ids all yield the empty set.
func (s *RoleService) ResolveBasePermissions(ctx context.Context, ref domain.RoleRef) (domain.PermissionSet, error) {
	switch ref.Kind() {
	case domain.RoleKindSystem:
		tag, _ := ref.System()
		tpl, ok := domain.LookupTemplate(tag)
		if !ok {
			return domain.NewPermissionSet(), nil
		}
		return domain.NewPermissionSet(tpl.Permissions...), nil
	case domain.RoleKindCustom:
		id, _ := ref.Custom()
		role, err := s.roles.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.NewPermissionSet(), nil
			}
			return nil, storageError("fetch custom role", err)
		}
		return domain.NewPermissionSet(role.Permissions...), nil
	default:
		return domain.NewPermissionSet(), nil
	}
}

// ListTemplates returns every compiled system role.
func (s *RoleService) ListTemplates() []domain.RoleTemplate {
	return domain.SystemTemplates()
}

// ListRoles returns all custom roles.
func (s *RoleService) ListRoles(ctx context.Context) ([]domain.Role, error) {
	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, storageError("list roles", err)
	}
	return roles, nil
}

// GetRole fetches one custom role, reporting ErrRoleNotFound when absent.
func (s *RoleService) GetRole(ctx context.Context, id int64) (*domain.Role, error) {
	if id <= 0 {
		return nil, ErrRoleNotFound
	}
	role, err := s.roles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, storageError("get role", err)
	}
	return role, nil
}

// CreateRole persists a new custom role.
func (s *RoleService) CreateRole(ctx context.Context, actorID string, input RoleInput) (*domain.Role, error) {
	role, err := s.normalize(input)
	if err != nil {
		return nil, err
	}

	if existing, err := s.roles.GetByName(ctx, role.Name); err == nil && existing != nil {
		return nil, ErrRoleExists
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, storageError("lookup role by name", err)
	}

	now := s.now()
	role.CreatedBy = strings.TrimSpace(actorID)
	role.CreatedAt = now
	role.UpdatedAt = now

	created, err := s.roles.Create(ctx, role)
	if err != nil {
		return nil, storageError("create role", err)
	}

	s.publish(ctx, *created, "created", actorID)
	return created, nil
}

// UpdateRole replaces the mutable fields of an existing custom role.
func (s *RoleService) UpdateRole(ctx context.Context, actorID string, id int64, input RoleInput) (*domain.Role, error) {
	current, err := s.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := s.normalize(input)
	if err != nil {
		return nil, err
	}

	if !strings.EqualFold(next.Name, current.Name) {
		if existing, err := s.roles.GetByName(ctx, next.Name); err == nil && existing != nil && existing.ID != id {
			return nil, ErrRoleExists
		} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, storageError("lookup role by name", err)
		}
	}

	next.ID = current.ID
	next.CreatedBy = current.CreatedBy
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = s.now()

	updated, err := s.roles.Update(ctx, next)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, storageError("update role", err)
	}

	s.publish(ctx, *updated, "updated", actorID)
	return updated, nil
}

// DeleteRole removes a custom role. Principals still referencing it resolve to the empty set.
func (s *RoleService) DeleteRole(ctx context.Context, actorID string, id int64) error {
	role, err := s.GetRole(ctx, id)
	if err != nil {
		return err
	}

	if err := s.roles.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRoleNotFound
		}
		return storageError("delete role", err)
	}

	s.publish(ctx, *role, "deleted", actorID)
	return nil
}

func (s *RoleService) normalize(input RoleInput) (domain.Role, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return domain.Role{}, invalidInput("role name is required")
	}
	if domain.IsSystemTag(name) {
		return domain.Role{}, ErrSystemRoleImmutable
	}

	perms := make([]domain.PermissionID, 0, len(input.Permissions))
	seen := make(map[domain.PermissionID]struct{}, len(input.Permissions))
	for _, raw := range input.Permissions {
		id := domain.PermissionID(strings.TrimSpace(string(raw)))
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		perms = append(perms, id)
	}
	if unknown := s.catalog.Unknown(perms); len(unknown) > 0 {
		return domain.Role{}, unknownPermissions(unknown)
	}

	var description *string
	if input.Description != nil {
		trimmed := strings.TrimSpace(*input.Description)
		if trimmed != "" {
			description = &trimmed
		}
	}

	color := strings.TrimSpace(input.Color)
	if color == "" {
		color = defaultRoleColor
	}

	return domain.Role{
		Name:        name,
		Description: description,
		Permissions: perms,
		Color:       color,
	}, nil
}

func (s *RoleService) publish(ctx context.Context, role domain.Role, operation, actorID string) {
	if s.events == nil {
		return
	}
	event := domain.RoleChangedEvent{
		EventID:     uuid.NewString(),
		RoleID:      role.ID,
		Name:        role.Name,
		Operation:   operation,
		Permissions: role.Permissions,
		ChangedBy:   actorID,
		ChangedAt:   s.now(),
	}
	if err := s.events.PublishRoleChanged(ctx, event); err != nil {
		s.logger.Warn("publish role changed event",
			zap.Int64("role_id", role.ID),
			zap.String("operation", operation),
			zap.Error(err),
		)
	}
}
