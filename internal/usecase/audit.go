package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/busline/backoffice-iam/internal/core/domain"
	"github.com/busline/backoffice-iam/internal/core/port"
)

const (
	defaultAuditLimit = 20
	maxAuditLimit     = 100
)

// AuditPage is one page of audit entries with the matching total.
type AuditPage struct {
	Entries []domain.AuditEntry
	Total   int
	Limit   int
	Offset  int
}

// AuditService records and reads the append-only audit trail.
type AuditService struct {
	entries port.AuditRepository
	events  port.EventPublisher
	logger  *zap.Logger
	now     func() time.Time
}

// NewAuditService constructs an AuditService.
func NewAuditService(entries port.AuditRepository, events port.EventPublisher, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		entries: entries,
		events:  events,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *AuditService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Record appends one entry and returns it with its assigned id.
func (s *AuditService) Record(ctx context.Context, entry domain.AuditEntry) (*domain.AuditEntry, error) {
	entry.ActorID = strings.TrimSpace(entry.ActorID)
	entry.Action = strings.TrimSpace(entry.Action)
	entry.ResourceType = strings.TrimSpace(entry.ResourceType)
	if entry.ActorID == "" || entry.Action == "" || entry.ResourceType == "" {
		return nil, invalidInput("actor, action and resource type are required")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}

	id, err := s.entries.Append(ctx, entry)
	if err != nil {
		return nil, storageError("append audit entry", err)
	}
	entry.ID = id

	if s.events != nil {
		event := domain.AuditRecordedEvent{
			EventID:      uuid.NewString(),
			EntryID:      entry.ID,
			ActorID:      entry.ActorID,
			Action:       entry.Action,
			ResourceType: entry.ResourceType,
			ResourceID:   entry.ResourceID,
			Detail:       entry.Detail,
			IP:           entry.IP,
			RecordedAt:   entry.CreatedAt,
		}
		if err := s.events.PublishAuditRecorded(ctx, event); err != nil {
			s.logger.Warn("publish audit recorded event", zap.Int64("entry_id", entry.ID), zap.Error(err))
		}
	}
	return &entry, nil
}

// Query returns entries matching filter, newest first.
func (s *AuditService) Query(ctx context.Context, filter domain.AuditFilter, limit, offset int) ([]domain.AuditEntry, error) {
	limit, offset = NormalizePage(limit, offset)
	entries, err := s.entries.Query(ctx, filter, limit, offset)
	if err != nil {
		return nil, storageError("query audit entries", err)
	}
	return entries, nil
}

// Count returns the number of entries matching filter.
func (s *AuditService) Count(ctx context.Context, filter domain.AuditFilter) (int, error) {
	total, err := s.entries.Count(ctx, filter)
	if err != nil {
		return 0, storageError("count audit entries", err)
	}
	return total, nil
}

// Page combines Query and Count for paginated listings.
func (s *AuditService) Page(ctx context.Context, filter domain.AuditFilter, limit, offset int) (*AuditPage, error) {
	limit, offset = NormalizePage(limit, offset)
	entries, err := s.Query(ctx, filter, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &AuditPage{Entries: entries, Total: total, Limit: limit, Offset: offset}, nil
}

// NormalizePage applies the default and maximum page size.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
