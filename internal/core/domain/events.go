package domain

import "time"

// AuditRecordedEvent represents the payload for backoffice.audit.recorded messages.
type AuditRecordedEvent struct {
	EventID      string
	EntryID      int64
	ActorID      string
	Action       string
	ResourceType string
	ResourceID   *string
	Detail       map[string]any
	IP           *string
	RecordedAt   time.Time
}

// RoleChangedEvent represents the payload for backoffice.role.changed messages.
type RoleChangedEvent struct {
	EventID     string
	RoleID      int64
	Name        string
	Operation   string
	Permissions []PermissionID
	ChangedBy   string
	ChangedAt   time.Time
}

// OverrideChangedEvent represents the payload for backoffice.override.changed messages.
type OverrideChangedEvent struct {
	EventID     string
	Namespace   OverrideNamespace
	PrincipalID string
	Permission  PermissionID
	State       OverrideState
	ChangedBy   string
	ChangedAt   time.Time
}

// SessionRevokedEvent represents the payload for backoffice.session.revoked messages.
type SessionRevokedEvent struct {
	EventID       string
	SessionID     string
	PrincipalID   string
	PrincipalKind PrincipalKind
	Reason        string
	RevokedAt     time.Time
}
