package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/busline/backoffice-iam/internal/core/domain"
	"github.com/busline/backoffice-iam/internal/core/port"
	"github.com/busline/backoffice-iam/internal/repository"
)

// OverrideService manages permission overrides for one namespace.
// The admin and vendor sub-user stores are two instances of this type.
type OverrideService struct {
	catalog   *domain.Catalog
	overrides port.OverrideRepository
	events    port.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewOverrideService constructs an OverrideService over repo.
func NewOverrideService(catalog *domain.Catalog, repo port.OverrideRepository, events port.EventPublisher, logger *zap.Logger) *OverrideService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverrideService{
		catalog:   catalog,
		overrides: repo,
		events:    events,
		logger:    logger.With(zap.String("namespace", string(repo.Namespace()))),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *OverrideService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Namespace returns the override namespace served by this instance.
func (s *OverrideService) Namespace() domain.OverrideNamespace {
	return s.overrides.Namespace()
}

// ListOverrides returns overrides for principalID, most recent first.
func (s *OverrideService) ListOverrides(ctx context.Context, principalID string) ([]domain.PermissionOverride, error) {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return nil, invalidInput("principal id is required")
	}
	items, err := s.overrides.ListByPrincipal(ctx, principalID)
	if err != nil {
		return nil, storageError("list overrides", err)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

// SetOverride upserts an explicit grant or deny for one permission.
func (s *OverrideService) SetOverride(ctx context.Context, principalID string, perm domain.PermissionID, granted bool, grantorID string) (*domain.PermissionOverride, error) {
	principalID, err := s.validate(principalID, perm)
	if err != nil {
		return nil, err
	}

	override := domain.PermissionOverride{
		PrincipalID: principalID,
		Permission:  perm,
		Granted:     granted,
		GrantedBy:   strings.TrimSpace(grantorID),
		CreatedAt:   s.now(),
	}
	if err := s.overrides.Upsert(ctx, override); err != nil {
		return nil, storageError("upsert override", err)
	}

	s.publish(ctx, principalID, perm, domain.StateOf(&override), grantorID)
	return &override, nil
}

// ClearOverride removes any exception so the permission follows the role again.
func (s *OverrideService) ClearOverride(ctx context.Context, principalID string, perm domain.PermissionID, actorID string) error {
	principalID, err := s.validate(principalID, perm)
	if err != nil {
		return err
	}
	if err := s.overrides.Delete(ctx, principalID, perm); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return storageError("delete override", err)
	}
	s.publish(ctx, principalID, perm, domain.OverrideInherit, actorID)
	return nil
}

// ToggleOverride sets the override to granted unless it already holds that value,
// in which case the override is cleared. The returned state is the one now in effect.
func (s *OverrideService) ToggleOverride(ctx context.Context, principalID string, perm domain.PermissionID, granted bool, grantorID string) (domain.OverrideState, error) {
	principalID, err := s.validate(principalID, perm)
	if err != nil {
		return "", err
	}
	current, err := s.current(ctx, principalID, perm)
	if err != nil {
		return "", err
	}

	if current != nil && current.Granted == granted {
		if err := s.ClearOverride(ctx, principalID, perm, grantorID); err != nil {
			return "", err
		}
		return domain.OverrideInherit, nil
	}

	set, err := s.SetOverride(ctx, principalID, perm, granted, grantorID)
	if err != nil {
		return "", err
	}
	return domain.StateOf(set), nil
}

// CycleOverride advances one permission through inherit, grant, deny and back to inherit.
func (s *OverrideService) CycleOverride(ctx context.Context, principalID string, perm domain.PermissionID, grantorID string) (domain.OverrideState, error) {
	principalID, err := s.validate(principalID, perm)
	if err != nil {
		return "", err
	}
	current, err := s.current(ctx, principalID, perm)
	if err != nil {
		return "", err
	}

	switch domain.StateOf(current).Next() {
	case domain.OverrideGrant:
		_, err = s.SetOverride(ctx, principalID, perm, true, grantorID)
		return domain.OverrideGrant, err
	case domain.OverrideDeny:
		_, err = s.SetOverride(ctx, principalID, perm, false, grantorID)
		return domain.OverrideDeny, err
	default:
		return domain.OverrideInherit, s.ClearOverride(ctx, principalID, perm, grantorID)
	}
}

func (s *OverrideService) current(ctx context.Context, principalID string, perm domain.PermissionID) (*domain.PermissionOverride, error) {
	current, err := s.overrides.Get(ctx, principalID, perm)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, storageError("get override", err)
	}
	return current, nil
}

func (s *OverrideService) validate(principalID string, perm domain.PermissionID) (string, error) {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return "", invalidInput("principal id is required")
	}
	if !s.catalog.Has(perm) {
		return "", unknownPermissions([]domain.PermissionID{perm})
	}
	return principalID, nil
}

func (s *OverrideService) publish(ctx context.Context, principalID string, perm domain.PermissionID, state domain.OverrideState, actorID string) {
	if s.events == nil {
		return
	}
	event := domain.OverrideChangedEvent{
		EventID:     uuid.NewString(),
		Namespace:   s.Namespace(),
		PrincipalID: principalID,
		Permission:  perm,
		State:       state,
		ChangedBy:   actorID,
		ChangedAt:   s.now(),
	}
	if err := s.events.PublishOverrideChanged(ctx, event); err != nil {
		s.logger.Warn("publish override changed event",
			zap.String("principal_id", principalID),
			zap.String("permission", string(perm)),
			zap.Error(err),
		)
	}
}
