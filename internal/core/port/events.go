package port

import (
	"context"

	"github.com/busline/backoffice-iam/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishAuditRecorded(ctx context.Context, event domain.AuditRecordedEvent) error
	PublishRoleChanged(ctx context.Context, event domain.RoleChangedEvent) error
	PublishOverrideChanged(ctx context.Context, event domain.OverrideChangedEvent) error
	PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error
}
