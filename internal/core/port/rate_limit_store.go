package port

import (
	"context"
	"time"
)

// AttemptWindow summarises the attempts recorded inside a sliding window.
type AttemptWindow struct {
	Count  int
	Oldest time.Time
}

// RateLimitStore keeps sliding-window attempt logs for login throttling.
type RateLimitStore interface {
	// Window drops attempts older than the window and reports what remains.
	Window(ctx context.Context, key string, window time.Duration, reference time.Time) (AttemptWindow, error)
	// Record appends an attempt at the supplied moment.
	Record(ctx context.Context, key string, at time.Time, window time.Duration) error
}
