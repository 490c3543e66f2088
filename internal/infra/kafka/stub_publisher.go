package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/busline/backoffice-iam/internal/core/domain"
	"github.com/busline/backoffice-iam/internal/core/port"
)

// StubPublisher logs events instead of sending them. Used when no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

var _ port.EventPublisher = (*StubPublisher)(nil)

// NewStubPublisher constructs a logging event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	p.logger.Debug("event published",
		append([]zap.Field{zap.String("event_type", eventType), zap.Time("timestamp", at.UTC())}, fields...)...,
	)
}

// PublishAuditRecorded logs audit.recorded events.
func (p *StubPublisher) PublishAuditRecorded(_ context.Context, event domain.AuditRecordedEvent) error {
	p.logEvent(TopicAuditRecorded, event.RecordedAt,
		zap.Int64("entry_id", event.EntryID),
		zap.String("actor_id", event.ActorID),
		zap.String("action", event.Action),
		zap.String("resource_type", event.ResourceType),
	)
	return nil
}

// PublishRoleChanged logs role.changed events.
func (p *StubPublisher) PublishRoleChanged(_ context.Context, event domain.RoleChangedEvent) error {
	p.logEvent(TopicRoleChanged, event.ChangedAt,
		zap.Int64("role_id", event.RoleID),
		zap.String("operation", event.Operation),
		zap.String("changed_by", event.ChangedBy),
	)
	return nil
}

// PublishOverrideChanged logs override.changed events.
func (p *StubPublisher) PublishOverrideChanged(_ context.Context, event domain.OverrideChangedEvent) error {
	p.logEvent(TopicOverrideChanged, event.ChangedAt,
		zap.String("namespace", string(event.Namespace)),
		zap.String("principal_id", event.PrincipalID),
		zap.String("permission", string(event.Permission)),
		zap.String("state", string(event.State)),
	)
	return nil
}

// PublishSessionRevoked logs session.revoked events.
func (p *StubPublisher) PublishSessionRevoked(_ context.Context, event domain.SessionRevokedEvent) error {
	p.logEvent(TopicSessionRevoked, event.RevokedAt,
		zap.String("session_id", event.SessionID),
		zap.String("principal_id", event.PrincipalID),
		zap.String("reason", event.Reason),
	)
	return nil
}
