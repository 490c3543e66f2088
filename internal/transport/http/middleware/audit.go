package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/busline/backoffice-iam/internal/core/domain"
)

// AuditEnqueuer accepts entries for asynchronous persistence.
type AuditEnqueuer interface {
	Enqueue(entry domain.AuditEntry) bool
}

// AuditRecord is what a handler declares about the mutation it performed.
type AuditRecord struct {
	Action       string
	ResourceType string
	ResourceID   string
	Detail       map[string]any
}

// SetAudit asks the audit hook to record rec once the handler has finished successfully.
func SetAudit(c *gin.Context, rec AuditRecord) {
	c.Set(auditRecordKey, rec)
}

// AuditTrail records handler-declared mutations after the response is written. Only requests that
// completed with a non-error status and carry an authenticated actor are recorded. Enqueueing never
// blocks and a full queue only loses the entry.
func AuditTrail(queue AuditEnqueuer, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		c.Next()

		if queue == nil || c.Writer.Status() >= 400 {
			return
		}
		value, exists := c.Get(auditRecordKey)
		if !exists {
			return
		}
		rec, ok := value.(AuditRecord)
		if !ok {
			return
		}

		actor := ""
		if claims, ok := CurrentClaims(c); ok {
			actor = claims.PrincipalID
		}
		if actor == "" {
			actor = c.GetString(auditActorKey)
		}
		if actor == "" {
			return
		}

		reqCtx := GetRequestContext(c)
		entry := domain.AuditEntry{
			ActorID:      actor,
			Action:       rec.Action,
			ResourceType: rec.ResourceType,
			ResourceID:   optional(rec.ResourceID),
			Detail:       rec.Detail,
			IP:           optional(reqCtx.IP),
			UserAgent:    optional(reqCtx.UserAgent),
			CreatedAt:    time.Now().UTC(),
		}
		if !queue.Enqueue(entry) {
			logger.Warn("audit entry dropped",
				zap.String("action", rec.Action),
				zap.String("trace_id", GetTraceID(c)),
			)
		}
	}
}

const auditActorKey = "audit_actor"

// SetAuditActor names the actor for requests that authenticate inside the handler, such as login.
func SetAuditActor(c *gin.Context, principalID string) {
	c.Set(auditActorKey, principalID)
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
