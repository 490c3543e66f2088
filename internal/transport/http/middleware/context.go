package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/busline/backoffice-iam/internal/core/domain"
)

const (
	// TraceIDHeader is the HTTP header name for trace ID
	TraceIDHeader = "X-Trace-ID"
	// TraceIDKey is the context key for trace ID
	TraceIDKey = "trace_id"

	claimsKey         = "session_claims"
	authorizedPermKey = "authorized_permission"
	requestContextKey = "request_context"
	auditRecordKey    = "audit_record"
)

// RequestContext holds request-scoped client information.
type RequestContext struct {
	TraceID   string
	IP        string
	UserAgent string
}

// EnrichContext assigns a trace id and captures client metadata. An active span's trace id wins over a
// generated one so logs and traces correlate.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.IsValid() {
			traceID = sc.TraceID().String()
		}
		if traceID == "" {
			traceID = uuid.NewString()
		}

		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)
		c.Set(requestContextKey, &RequestContext{
			TraceID:   traceID,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})

		c.Next()
	}
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(c *gin.Context) string {
	if traceID, exists := c.Get(TraceIDKey); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return ""
}

// GetRequestContext retrieves the client metadata, falling back to the raw request.
func GetRequestContext(c *gin.Context) *RequestContext {
	if ctx, exists := c.Get(requestContextKey); exists {
		if reqCtx, ok := ctx.(*RequestContext); ok {
			return reqCtx
		}
	}
	return &RequestContext{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

// CurrentClaims returns the validated session claims set by RequireAuth.
func CurrentClaims(c *gin.Context) (*domain.SessionClaims, bool) {
	value, exists := c.Get(claimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*domain.SessionClaims)
	return claims, ok && claims != nil
}

// CurrentSubject returns the authorization subject of the authenticated caller.
func CurrentSubject(c *gin.Context) (domain.Subject, bool) {
	claims, ok := CurrentClaims(c)
	if !ok {
		return domain.Subject{}, false
	}
	return claims.Subject(), true
}

// AuthorizedFor reports whether a permission guard admitted this request.
func AuthorizedFor(c *gin.Context) (domain.PermissionID, bool) {
	value, exists := c.Get(authorizedPermKey)
	if !exists {
		return "", false
	}
	perm, ok := value.(domain.PermissionID)
	return perm, ok
}
