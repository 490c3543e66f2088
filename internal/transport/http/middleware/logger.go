package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appLogger "github.com/busline/backoffice-iam/internal/infra/logger"
)

// Logger emits one access log line per request with correlation ids and a masked client IP.
func Logger(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("trace_id", GetTraceID(c)),
			zap.String("request_id", c.GetString("request_id")),
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", appLogger.MaskIP(c.ClientIP())),
		}
		if claims, ok := CurrentClaims(c); ok {
			fields = append(fields,
				zap.String("principal_id", claims.PrincipalID),
				zap.String("principal_kind", string(claims.PrincipalKind)),
			)
		}
		if perm, ok := AuthorizedFor(c); ok {
			fields = append(fields, zap.String("permission", string(perm)))
		}

		switch {
		case len(c.Errors) > 0:
			log.Error("request failed", append(fields, zap.String("errors", c.Errors.String()))...)
		case status >= 500:
			log.Error("request completed", fields...)
		default:
			log.Info("request completed", fields...)
		}
	}
}
