package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/busline/backoffice-iam/internal/core/domain"
)

const namespace = "backoffice"

// Metrics holds the authorization and audit collectors.
type Metrics struct {
	decisions  *prometheus.CounterVec
	auditQueue *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg, reusing collectors that are already registered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	decisions, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authz_decisions_total",
		Help:      "Authorization decisions partitioned by permission and outcome.",
	}, []string{"permission", "outcome"})
	if err != nil {
		return nil, err
	}

	auditQueue, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "audit",
		Name:      "queue_events_total",
		Help:      "Audit dispatcher events partitioned by state (enqueued, dropped, failed, written).",
	}, []string{"state"})
	if err != nil {
		return nil, err
	}

	return &Metrics{decisions: decisions, auditQueue: auditQueue}, nil
}

func registerCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, labels []string) (*prometheus.CounterVec, error) {
	vec := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(vec); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("existing %s collector has unexpected type %T", opts.Name, already.ExistingCollector)
		}
		return nil, fmt.Errorf("register %s collector: %w", opts.Name, err)
	}
	return vec, nil
}

// ObserveDecision counts one authorization outcome.
func (m *Metrics) ObserveDecision(permission domain.PermissionID, outcome string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(string(permission), outcome).Inc()
}

func (m *Metrics) IncEnqueued() { m.incAudit("enqueued") }
func (m *Metrics) IncDropped()  { m.incAudit("dropped") }
func (m *Metrics) IncFailed()   { m.incAudit("failed") }
func (m *Metrics) IncWritten()  { m.incAudit("written") }

func (m *Metrics) incAudit(state string) {
	if m == nil {
		return
	}
	m.auditQueue.WithLabelValues(state).Inc()
}
