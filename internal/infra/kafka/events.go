package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/busline/backoffice-iam/internal/core/domain"
	"github.com/busline/backoffice-iam/internal/core/port"
	"github.com/busline/backoffice-iam/internal/infra/config"
)

const schemaVersion = "1.0"

// Event types, prefixed with the configured topic prefix when published.
const (
	TopicAuditRecorded   = "audit.recorded"
	TopicRoleChanged     = "role.changed"
	TopicOverrideChanged = "override.changed"
	TopicSessionRevoked  = "session.revoked"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

var _ port.EventPublisher = (*EventPublisher)(nil)

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	Subject   string            `json:"subject,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// publish keys the message by subject so events for one principal or role stay ordered.
func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, subject string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	metadata := map[string]string{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	bytes, err := json.Marshal(eventEnvelope{
		EventID:   eventID,
		EventType: eventType,
		Subject:   subject,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}
	if subject != "" {
		message.Key = sarama.StringEncoder(subject)
	}

	select {
	case p.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishAuditRecorded publishes audit.recorded events.
func (p *EventPublisher) PublishAuditRecorded(ctx context.Context, event domain.AuditRecordedEvent) error {
	payload := struct {
		EntryID      int64          `json:"entry_id"`
		ActorID      string         `json:"actor_id"`
		Action       string         `json:"action"`
		ResourceType string         `json:"resource_type"`
		ResourceID   *string        `json:"resource_id,omitempty"`
		Detail       map[string]any `json:"detail,omitempty"`
		IP           *string        `json:"ip_address,omitempty"`
		RecordedAt   time.Time      `json:"recorded_at"`
	}{
		EntryID:      event.EntryID,
		ActorID:      event.ActorID,
		Action:       event.Action,
		ResourceType: event.ResourceType,
		ResourceID:   event.ResourceID,
		Detail:       event.Detail,
		IP:           event.IP,
		RecordedAt:   event.RecordedAt.UTC(),
	}
	return p.publish(ctx, event.EventID, TopicAuditRecorded, event.ActorID, event.RecordedAt, payload)
}

// PublishRoleChanged publishes role.changed events.
func (p *EventPublisher) PublishRoleChanged(ctx context.Context, event domain.RoleChangedEvent) error {
	payload := struct {
		RoleID      int64                 `json:"role_id"`
		Name        string                `json:"name"`
		Operation   string                `json:"operation"`
		Permissions []domain.PermissionID `json:"permissions"`
		ChangedBy   string                `json:"changed_by"`
		ChangedAt   time.Time             `json:"changed_at"`
	}{
		RoleID:      event.RoleID,
		Name:        event.Name,
		Operation:   event.Operation,
		Permissions: event.Permissions,
		ChangedBy:   event.ChangedBy,
		ChangedAt:   event.ChangedAt.UTC(),
	}
	return p.publish(ctx, event.EventID, TopicRoleChanged, fmt.Sprintf("role:%d", event.RoleID), event.ChangedAt, payload)
}

// PublishOverrideChanged publishes override.changed events.
func (p *EventPublisher) PublishOverrideChanged(ctx context.Context, event domain.OverrideChangedEvent) error {
	payload := struct {
		Namespace   domain.OverrideNamespace `json:"namespace"`
		PrincipalID string                   `json:"principal_id"`
		Permission  domain.PermissionID      `json:"permission"`
		State       domain.OverrideState     `json:"state"`
		ChangedBy   string                   `json:"changed_by"`
		ChangedAt   time.Time                `json:"changed_at"`
	}{
		Namespace:   event.Namespace,
		PrincipalID: event.PrincipalID,
		Permission:  event.Permission,
		State:       event.State,
		ChangedBy:   event.ChangedBy,
		ChangedAt:   event.ChangedAt.UTC(),
	}
	subject := fmt.Sprintf("%s:%s", event.Namespace, event.PrincipalID)
	return p.publish(ctx, event.EventID, TopicOverrideChanged, subject, event.ChangedAt, payload)
}

// PublishSessionRevoked publishes session.revoked events.
func (p *EventPublisher) PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error {
	payload := struct {
		SessionID     string               `json:"session_id"`
		PrincipalID   string               `json:"principal_id"`
		PrincipalKind domain.PrincipalKind `json:"principal_kind"`
		Reason        string               `json:"reason"`
		RevokedAt     time.Time            `json:"revoked_at"`
	}{
		SessionID:     event.SessionID,
		PrincipalID:   event.PrincipalID,
		PrincipalKind: event.PrincipalKind,
		Reason:        event.Reason,
		RevokedAt:     event.RevokedAt.UTC(),
	}
	subject := fmt.Sprintf("%s:%s", event.PrincipalKind, event.PrincipalID)
	return p.publish(ctx, event.EventID, TopicSessionRevoked, subject, event.RevokedAt, payload)
}
