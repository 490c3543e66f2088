package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/busline/backoffice-iam/internal/core/domain"
	"github.com/busline/backoffice-iam/internal/core/port"
)

var auditSelectColumns = []string{"id", "user_id", "action", "resource_type", "resource_id", "details", "ip_address", "user_agent", "created_at"}

// AuditRepository is the append-only audit_logs store.
type AuditRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

var _ port.AuditRepository = (*AuditRepository)(nil)

// NewAuditRepository constructs a PostgreSQL-backed audit repository.
func NewAuditRepository(exec pgExecutor) *AuditRepository {
	return &AuditRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Append inserts an entry and returns its generated id.
func (r *AuditRepository) Append(ctx context.Context, entry domain.AuditEntry) (int64, error) {
	var details []byte
	if len(entry.Detail) > 0 {
		encoded, err := json.Marshal(entry.Detail)
		if err != nil {
			return 0, fmt.Errorf("encode audit details: %w", err)
		}
		details = encoded
	}

	stmt, args, err := r.builder.Insert("audit_logs").
		Columns("user_id", "action", "resource_type", "resource_id", "details", "ip_address", "user_agent", "created_at").
		Values(entry.ActorID, entry.Action, entry.ResourceType, entry.ResourceID, details, entry.IP, entry.UserAgent, entry.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert audit sql: %w", err)
	}

	var id int64
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert audit entry: %w", err)
	}
	return id, nil
}

// Query returns entries matching filter, newest first.
func (r *AuditRepository) Query(ctx context.Context, filter domain.AuditFilter, limit, offset int) ([]domain.AuditEntry, error) {
	query := applyAuditFilter(r.builder.Select(auditSelectColumns...).From("audit_logs"), filter).
		OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}
	if offset > 0 {
		query = query.Offset(uint64(offset))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query audit sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit_logs: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var (
			entry   domain.AuditEntry
			details []byte
		)
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.Action, &entry.ResourceType, &entry.ResourceID, &details, &entry.IP, &entry.UserAgent, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Detail); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit_logs: %w", err)
	}
	return entries, nil
}

// Count returns the number of entries matching filter.
func (r *AuditRepository) Count(ctx context.Context, filter domain.AuditFilter) (int, error) {
	stmt, args, err := applyAuditFilter(r.builder.Select("COUNT(*)").From("audit_logs"), filter).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count audit sql: %w", err)
	}

	var total int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count audit_logs: %w", err)
	}
	return total, nil
}

func applyAuditFilter(query squirrel.SelectBuilder, filter domain.AuditFilter) squirrel.SelectBuilder {
	if filter.ActorID != nil {
		query = query.Where(squirrel.Eq{"user_id": *filter.ActorID})
	}
	if filter.Action != nil {
		query = query.Where(squirrel.Eq{"action": *filter.Action})
	}
	if filter.ResourceType != nil {
		query = query.Where(squirrel.Eq{"resource_type": *filter.ResourceType})
	}
	if filter.From != nil {
		query = query.Where(squirrel.GtOrEq{"created_at": *filter.From})
	}
	if filter.To != nil {
		query = query.Where(squirrel.LtOrEq{"created_at": *filter.To})
	}
	return query
}
