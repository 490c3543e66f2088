package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/busline/backoffice-iam/internal/core/domain"
	"github.com/busline/backoffice-iam/internal/repository"
)

type roleRepoStub struct {
	mu      sync.Mutex
	roles   map[int64]domain.Role
	nextID  int64
	getErr  error
	listErr error
}

func newRoleRepoStub() *roleRepoStub {
	return &roleRepoStub{roles: make(map[int64]domain.Role)}
}

func (r *roleRepoStub) Create(_ context.Context, role domain.Role) (*domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	role.ID = r.nextID
	r.roles[role.ID] = role
	return &role, nil
}

func (r *roleRepoStub) Update(_ context.Context, role domain.Role) (*domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[role.ID]; !ok {
		return nil, repository.ErrNotFound
	}
	r.roles[role.ID] = role
	return &role, nil
}

func (r *roleRepoStub) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.roles, id)
	return nil
}

func (r *roleRepoStub) GetByID(_ context.Context, id int64) (*domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	role, ok := r.roles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &role, nil
}

func (r *roleRepoStub) GetByName(_ context.Context, name string) (*domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, role := range r.roles {
		if role.Name == name {
			role := role
			return &role, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *roleRepoStub) List(_ context.Context) ([]domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]domain.Role, 0, len(r.roles))
	for _, role := range r.roles {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type overrideKey struct {
	principal  string
	permission domain.PermissionID
}

type overrideRepoStub struct {
	mu        sync.Mutex
	namespace domain.OverrideNamespace
	items     map[overrideKey]domain.PermissionOverride
	listErr   error
	upsertErr error
}

func newOverrideRepoStub(ns domain.OverrideNamespace) *overrideRepoStub {
	return &overrideRepoStub{namespace: ns, items: make(map[overrideKey]domain.PermissionOverride)}
}

func (r *overrideRepoStub) Namespace() domain.OverrideNamespace {
	return r.namespace
}

func (r *overrideRepoStub) ListByPrincipal(_ context.Context, principalID string) ([]domain.PermissionOverride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []domain.PermissionOverride
	for k, v := range r.items {
		if k.principal == principalID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *overrideRepoStub) Get(_ context.Context, principalID string, perm domain.PermissionID) (*domain.PermissionOverride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.items[overrideKey{principalID, perm}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &v, nil
}

func (r *overrideRepoStub) Upsert(_ context.Context, o domain.PermissionOverride) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.items[overrideKey{o.PrincipalID, o.Permission}] = o
	return nil
}

func (r *overrideRepoStub) Delete(_ context.Context, principalID string, perm domain.PermissionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, overrideKey{principalID, perm})
	return nil
}

type denylistStub struct {
	mu        sync.Mutex
	entries   map[string]domain.Revocation
	ttls      map[string]time.Duration
	lookupErr error
	denyErr   error
}

func newDenylistStub() *denylistStub {
	return &denylistStub{entries: make(map[string]domain.Revocation), ttls: make(map[string]time.Duration)}
}

func (d *denylistStub) Deny(_ context.Context, jti string, rev domain.Revocation, ttl time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.denyErr != nil {
		return d.denyErr
	}
	d.entries[jti] = rev
	d.ttls[jti] = ttl
	return nil
}

func (d *denylistStub) Lookup(_ context.Context, jti string) (*domain.Revocation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lookupErr != nil {
		return nil, d.lookupErr
	}
	rev, ok := d.entries[jti]
	if !ok {
		return nil, nil
	}
	return &rev, nil
}

type notBeforeStub struct {
	mu     sync.Mutex
	values map[string]time.Time
}

func newNotBeforeStub() *notBeforeStub {
	return &notBeforeStub{values: make(map[string]time.Time)}
}

func (n *notBeforeStub) SetNotBefore(_ context.Context, kind domain.PrincipalKind, principalID string, at time.Time, _ time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.values[string(kind)+":"+principalID] = at
	return nil
}

func (n *notBeforeStub) GetNotBefore(_ context.Context, kind domain.PrincipalKind, principalID string) (time.Time, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	v, ok := n.values[string(kind)+":"+principalID]
	return v, ok, nil
}

type sessionRegistryStub struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

func newSessionRegistryStub() *sessionRegistryStub {
	return &sessionRegistryStub{sessions: make(map[string]domain.Session)}
}

func (s *sessionRegistryStub) Create(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *sessionRegistryStub) MarkRefreshed(_ context.Context, sessionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return repository.ErrNotFound
	}
	session.RefreshedAt = &at
	s.sessions[sessionID] = session
	return nil
}

func markRevoked(session *domain.Session, reason string) bool {
	if session.RevokedAt != nil {
		return false
	}
	at := time.Now()
	session.RevokedAt = &at
	session.RevokeReason = &reason
	return true
}

func (s *sessionRegistryStub) Revoke(_ context.Context, sessionID string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return repository.ErrNotFound
	}
	markRevoked(&session, reason)
	s.sessions[sessionID] = session
	return nil
}

func (s *sessionRegistryStub) RevokeAllForPrincipal(_ context.Context, kind domain.PrincipalKind, principalID string, reason string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, session := range s.sessions {
		if session.PrincipalKind == kind && session.PrincipalID == principalID && markRevoked(&session, reason) {
			s.sessions[id] = session
			count++
		}
	}
	return count, nil
}

func (s *sessionRegistryStub) ListActiveByPrincipal(_ context.Context, kind domain.PrincipalKind, principalID string) ([]domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Session
	for _, session := range s.sessions {
		if session.PrincipalKind == kind && session.PrincipalID == principalID && session.RevokedAt == nil {
			out = append(out, session)
		}
	}
	return out, nil
}

type principalRepoStub struct {
	admins     map[string]domain.Credential
	vendors    map[string]domain.Credential
	principals map[string]domain.Principal
	lastLogin  map[string]time.Time
	lookupErr  error
}

func newPrincipalRepoStub() *principalRepoStub {
	return &principalRepoStub{
		admins:     make(map[string]domain.Credential),
		vendors:    make(map[string]domain.Credential),
		principals: make(map[string]domain.Principal),
		lastLogin:  make(map[string]time.Time),
	}
}

func (p *principalRepoStub) GetAdminByUsername(_ context.Context, username string) (*domain.Credential, error) {
	if p.lookupErr != nil {
		return nil, p.lookupErr
	}
	c, ok := p.admins[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (p *principalRepoStub) GetVendorUserByEmail(_ context.Context, email string) (*domain.Credential, error) {
	if p.lookupErr != nil {
		return nil, p.lookupErr
	}
	c, ok := p.vendors[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (p *principalRepoStub) GetPrincipal(_ context.Context, kind domain.PrincipalKind, principalID string) (*domain.Principal, error) {
	if p.lookupErr != nil {
		return nil, p.lookupErr
	}
	pr, ok := p.principals[string(kind)+":"+principalID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &pr, nil
}

func (p *principalRepoStub) UpdateLastLogin(_ context.Context, kind domain.PrincipalKind, principalID string, at time.Time) error {
	p.lastLogin[string(kind)+":"+principalID] = at
	return nil
}

type auditRepoStub struct {
	mu        sync.Mutex
	entries   []domain.AuditEntry
	appendErr error
}

func (a *auditRepoStub) Append(_ context.Context, entry domain.AuditEntry) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.appendErr != nil {
		return 0, a.appendErr
	}
	entry.ID = int64(len(a.entries) + 1)
	a.entries = append(a.entries, entry)
	return entry.ID, nil
}

func (a *auditRepoStub) matching(filter domain.AuditFilter) []domain.AuditEntry {
	var out []domain.AuditEntry
	for _, e := range a.entries {
		if filter.ActorID != nil && e.ActorID != *filter.ActorID {
			continue
		}
		if filter.Action != nil && e.Action != *filter.Action {
			continue
		}
		if filter.ResourceType != nil && e.ResourceType != *filter.ResourceType {
			continue
		}
		if filter.From != nil && e.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.CreatedAt.After(*filter.To) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (a *auditRepoStub) Query(_ context.Context, filter domain.AuditFilter, limit, offset int) ([]domain.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	all := a.matching(filter)
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (a *auditRepoStub) Count(_ context.Context, filter domain.AuditFilter) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.matching(filter)), nil
}

type eventPublisherStub struct {
	mu        sync.Mutex
	audits    []domain.AuditRecordedEvent
	roles     []domain.RoleChangedEvent
	overrides []domain.OverrideChangedEvent
	sessions  []domain.SessionRevokedEvent
	err       error
}

func (p *eventPublisherStub) PublishAuditRecorded(_ context.Context, e domain.AuditRecordedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.audits = append(p.audits, e)
	return p.err
}

func (p *eventPublisherStub) PublishRoleChanged(_ context.Context, e domain.RoleChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roles = append(p.roles, e)
	return p.err
}

func (p *eventPublisherStub) PublishOverrideChanged(_ context.Context, e domain.OverrideChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.overrides = append(p.overrides, e)
	return p.err
}

func (p *eventPublisherStub) PublishSessionRevoked(_ context.Context, e domain.SessionRevokedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions = append(p.sessions, e)
	return p.err
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
