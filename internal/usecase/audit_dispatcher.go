package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/busline/backoffice-iam/internal/core/domain"
)

// AuditRecorder is the synchronous write side of the audit trail.
type AuditRecorder interface {
	Record(ctx context.Context, entry domain.AuditEntry) (*domain.AuditEntry, error)
}

// AuditQueueMetrics observes dispatcher throughput.
type AuditQueueMetrics interface {
	IncEnqueued()
	IncDropped()
	IncFailed()
	IncWritten()
}

// DispatcherConfig tunes the audit queue.
type DispatcherConfig struct {
	QueueSize    int
	Workers      int
	WriteTimeout time.Duration
}

// AuditDispatcher writes audit entries off the request path. A failed or dropped
// write is logged and never reaches the request that caused it.
type AuditDispatcher struct {
	recorder AuditRecorder
	metrics  AuditQueueMetrics
	logger   *zap.Logger
	timeout  time.Duration

	queue     chan domain.AuditEntry
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewAuditDispatcher starts cfg.Workers goroutines draining a queue of cfg.QueueSize.
func NewAuditDispatcher(recorder AuditRecorder, cfg DispatcherConfig, metrics AuditQueueMetrics, logger *zap.Logger) *AuditDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	d := &AuditDispatcher{
		recorder: recorder,
		metrics:  metrics,
		logger:   logger,
		timeout:  cfg.WriteTimeout,
		queue:    make(chan domain.AuditEntry, cfg.QueueSize),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Enqueue schedules entry for writing. It never blocks; it reports false when the entry was dropped.
func (d *AuditDispatcher) Enqueue(entry domain.AuditEntry) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(entry, "dispatcher closed")
		return false
	}

	select {
	case d.queue <- entry:
		if d.metrics != nil {
			d.metrics.IncEnqueued()
		}
		return true
	default:
		d.drop(entry, "queue full")
		return false
	}
}

// Close stops accepting entries and waits for queued ones to be written or ctx to end.
func (d *AuditDispatcher) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *AuditDispatcher) worker() {
	defer d.wg.Done()
	for entry := range d.queue {
		d.write(entry)
	}
}

func (d *AuditDispatcher) write(entry domain.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("audit write panicked", zap.Any("panic", r), zap.String("action", entry.Action))
			if d.metrics != nil {
				d.metrics.IncFailed()
			}
		}
	}()

	if _, err := d.recorder.Record(ctx, entry); err != nil {
		d.logger.Error("audit write failed",
			zap.String("actor_id", entry.ActorID),
			zap.String("action", entry.Action),
			zap.String("resource_type", entry.ResourceType),
			zap.Error(err),
		)
		if d.metrics != nil {
			d.metrics.IncFailed()
		}
		return
	}
	if d.metrics != nil {
		d.metrics.IncWritten()
	}
}

func (d *AuditDispatcher) drop(entry domain.AuditEntry, reason string) {
	d.logger.Warn("audit entry dropped",
		zap.String("reason", reason),
		zap.String("actor_id", entry.ActorID),
		zap.String("action", entry.Action),
	)
	if d.metrics != nil {
		d.metrics.IncDropped()
	}
}
