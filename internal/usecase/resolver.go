package usecase

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/busline/backoffice-iam/internal/core/domain"
)

// Decision outcomes reported to DecisionRecorder.
const (
	OutcomeAllow     = "allow"
	OutcomeDeny      = "deny"
	OutcomeSuperuser = "superuser"
	OutcomeError     = "error"
)

// BasePermissionResolver maps a role reference to its permission set.
type BasePermissionResolver interface {
	ResolveBasePermissions(ctx context.Context, ref domain.RoleRef) (domain.PermissionSet, error)
}

// OverrideLister lists the overrides held by a principal in one namespace.
type OverrideLister interface {
	ListOverrides(ctx context.Context, principalID string) ([]domain.PermissionOverride, error)
}

// DecisionRecorder observes authorization outcomes.
type DecisionRecorder interface {
	ObserveDecision(permission domain.PermissionID, outcome string)
}

// ApplyOverrides folds overrides into base and returns a new set. Grants add, denies remove.
// Overrides are keyed by permission so application order does not change the result.
func ApplyOverrides(base domain.PermissionSet, overrides []domain.PermissionOverride) domain.PermissionSet {
	out := base.Clone()
	for _, o := range overrides {
		if o.Granted {
			out.Add(o.Permission)
		} else {
			out.Remove(o.Permission)
		}
	}
	return out
}

// Resolver computes effective permissions and enforces them.
type Resolver struct {
	roles     BasePermissionResolver
	overrides map[domain.OverrideNamespace]OverrideLister
	recorder  DecisionRecorder
	tracer    trace.Tracer
	logger    *zap.Logger
}

// ResolverOption customises a Resolver.
type ResolverOption func(*Resolver)

// WithDecisionRecorder attaches a metrics sink for authorization decisions.
func WithDecisionRecorder(recorder DecisionRecorder) ResolverOption {
	return func(r *Resolver) {
		r.recorder = recorder
	}
}

// WithResolverTracer overrides the tracer used for authorization spans.
func WithResolverTracer(tracer trace.Tracer) ResolverOption {
	return func(r *Resolver) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// NewResolver constructs a Resolver. overrides maps each namespace to its store.
func NewResolver(roles BasePermissionResolver, overrides map[domain.OverrideNamespace]OverrideLister, logger *zap.Logger, opts ...ResolverOption) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{
		roles:     roles,
		overrides: overrides,
		tracer:    otel.Tracer("backoffice-iam/usecase/resolver"),
		logger:    logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// ResolveEffective returns base permissions of the subject's role with its overrides applied.
func (r *Resolver) ResolveEffective(ctx context.Context, subject domain.Subject) (domain.PermissionSet, error) {
	ctx, span := r.tracer.Start(ctx, "resolver.ResolveEffective", trace.WithAttributes(
		attribute.String("principal.kind", string(subject.Kind)),
		attribute.String("role", subject.Role.String()),
	))
	defer span.End()

	effective, err := r.resolve(ctx, subject)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("permissions.count", len(effective)))
	return effective, nil
}

func (r *Resolver) resolve(ctx context.Context, subject domain.Subject) (domain.PermissionSet, error) {
	base, err := r.roles.ResolveBasePermissions(ctx, subject.Role)
	if err != nil {
		return nil, fmt.Errorf("resolve base permissions: %w", err)
	}

	lister, ok := r.overrides[subject.Kind.Namespace()]
	if !ok || lister == nil || subject.PrincipalID == "" {
		return base, nil
	}

	overrides, err := lister.ListOverrides(ctx, subject.PrincipalID)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	return ApplyOverrides(base, overrides), nil
}

// Authorize reports whether subject holds perm. Any resolution error yields false with the error.
// The top-level admin tag is allowed everything without consulting overrides.
func (r *Resolver) Authorize(ctx context.Context, subject domain.Subject, perm domain.PermissionID) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "resolver.Authorize", trace.WithAttributes(
		attribute.String("permission", string(perm)),
		attribute.String("principal.kind", string(subject.Kind)),
	))
	defer span.End()

	if subject.Role.IsSuperuser() {
		r.observe(perm, OutcomeSuperuser)
		span.SetAttributes(attribute.String("outcome", OutcomeSuperuser))
		return true, nil
	}

	effective, err := r.resolve(ctx, subject)
	if err != nil {
		r.observe(perm, OutcomeError)
		span.RecordError(err)
		span.SetStatus(codes.Error, "authorization failed closed")
		r.logger.Warn("authorization failed closed",
			zap.String("principal_id", subject.PrincipalID),
			zap.String("permission", string(perm)),
			zap.Error(err),
		)
		return false, err
	}

	allowed := effective.Has(perm)
	outcome := OutcomeDeny
	if allowed {
		outcome = OutcomeAllow
	}
	r.observe(perm, outcome)
	span.SetAttributes(attribute.String("outcome", outcome))
	return allowed, nil
}

// Require is Authorize returning *PermissionDeniedError on denial.
func (r *Resolver) Require(ctx context.Context, subject domain.Subject, perm domain.PermissionID) error {
	allowed, err := r.Authorize(ctx, subject, perm)
	if err != nil {
		return err
	}
	if !allowed {
		return &PermissionDeniedError{Permission: perm}
	}
	return nil
}

func (r *Resolver) observe(perm domain.PermissionID, outcome string) {
	if r.recorder != nil {
		r.recorder.ObserveDecision(perm, outcome)
	}
}
