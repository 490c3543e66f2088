package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/busline/backoffice-iam/internal/core/port"
)

// IdentifierFunc extracts the identifier used to scope a limit (for example the client IP).
type IdentifierFunc func(*gin.Context) (string, bool)

// ClientIPIdentifier scopes limits by client IP.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		return ip, ip != ""
	}
}

// RateLimitRule configures a sliding-window limit.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

// RateLimitResponse is the 429 body.
type RateLimitResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retry_after"`
	TraceID    string `json:"trace_id,omitempty"`
}

// RateLimiter enforces sliding-window limits backed by a RateLimitStore.
type RateLimiter struct {
	store  port.RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

// NewRateLimiter builds a limiter. A nil store disables limiting.
func NewRateLimiter(store port.RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{store: store, logger: logger, now: time.Now}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// RateLimit returns a middleware enforcing rule. Store failures are logged and the request proceeds,
// since throttling is a brute-force brake rather than an access decision.
func (rl *RateLimiter) RateLimit(rule RateLimitRule) gin.HandlerFunc {
	if rule.Name == "" {
		rule.Name = "default"
	}
	if rule.Identifier == nil {
		rule.Identifier = ClientIPIdentifier()
	}

	return func(c *gin.Context) {
		if rl.store == nil || rule.Limit <= 0 || rule.Window <= 0 {
			c.Next()
			return
		}

		identifier, ok := rule.Identifier(c)
		if !ok {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := rule.Name + ":" + identifier
		now := rl.now()

		window, err := rl.store.Window(ctx, key, rule.Window, now)
		if err != nil {
			rl.logger.Warn("rate limit check failed", zap.String("rule", rule.Name), zap.Error(err))
			c.Next()
			return
		}

		reset := now.Add(rule.Window)
		if window.Count > 0 && !window.Oldest.IsZero() {
			reset = window.Oldest.Add(rule.Window)
		}

		headers := c.Writer.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if window.Count >= rule.Limit {
			retry := int(math.Ceil(reset.Sub(now).Seconds()))
			if retry < 0 {
				retry = 0
			}
			headers.Set("X-RateLimit-Remaining", "0")
			headers.Set("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, RateLimitResponse{
				Error:      "too many requests",
				RetryAfter: retry,
				TraceID:    GetTraceID(c),
			})
			return
		}

		if err := rl.store.Record(ctx, key, now, rule.Window); err != nil {
			rl.logger.Warn("rate limit record failed", zap.String("rule", rule.Name), zap.Error(err))
		}
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(rule.Limit-window.Count-1))

		c.Next()
	}
}
