package domain

import "time"

// OverrideNamespace selects one of the disjoint override stores.
type OverrideNamespace string

const (
	NamespaceAdmin      OverrideNamespace = "admin"
	NamespaceVendorUser OverrideNamespace = "vendor_user"
)

// Valid reports whether the namespace is known.
func (n OverrideNamespace) Valid() bool {
	return n == NamespaceAdmin || n == NamespaceVendorUser
}

// PrincipalKind returns the only principal kind allowed to edit the namespace.
func (n OverrideNamespace) PrincipalKind() PrincipalKind {
	if n == NamespaceVendorUser {
		return PrincipalVendorUser
	}
	return PrincipalAdmin
}

// PermissionOverride grants or denies one permission to one principal regardless of role.
type PermissionOverride struct {
	PrincipalID string
	Permission  PermissionID
	Granted     bool
	GrantedBy   string
	CreatedAt   time.Time
}

// OverrideState is the tri-state view of a single permission for a principal.
type OverrideState string

const (
	OverrideInherit OverrideState = "inherit"
	OverrideGrant   OverrideState = "grant"
	OverrideDeny    OverrideState = "deny"
)

// StateOf returns the override state held by o, or inherit for nil.
func StateOf(o *PermissionOverride) OverrideState {
	switch {
	case o == nil:
		return OverrideInherit
	case o.Granted:
		return OverrideGrant
	default:
		return OverrideDeny
	}
}

// Next returns the following state in the inherit -> grant -> deny -> inherit cycle.
func (s OverrideState) Next() OverrideState {
	switch s {
	case OverrideInherit:
		return OverrideGrant
	case OverrideGrant:
		return OverrideDeny
	default:
		return OverrideInherit
	}
}
