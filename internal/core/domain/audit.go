package domain

import "time"

// AuditEntry is one append-only record of a mutating action.
type AuditEntry struct {
	ID           int64
	ActorID      string
	Action       string
	ResourceType string
	ResourceID   *string
	Detail       map[string]any
	IP           *string
	UserAgent    *string
	CreatedAt    time.Time
}

// AuditFilter narrows audit queries. Nil fields match everything.
type AuditFilter struct {
	ActorID      *string
	Action       *string
	ResourceType *string
	From         *time.Time
	To           *time.Time
}
