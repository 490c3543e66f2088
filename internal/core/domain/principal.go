package domain

import "time"

// PrincipalKind distinguishes admin-console users from vendor sub-users.
type PrincipalKind string

const (
	PrincipalAdmin      PrincipalKind = "admin"
	PrincipalVendorUser PrincipalKind = "vendor_user"
)

// Valid reports whether the kind is known.
func (k PrincipalKind) Valid() bool {
	return k == PrincipalAdmin || k == PrincipalVendorUser
}

// Namespace maps a principal kind to its override namespace.
func (k PrincipalKind) Namespace() OverrideNamespace {
	if k == PrincipalVendorUser {
		return NamespaceVendorUser
	}
	return NamespaceAdmin
}

// Principal is an authenticated actor whose access is being decided.
type Principal struct {
	ID          string
	Kind        PrincipalKind
	Login       string
	DisplayName string
	Role        RoleRef
	VendorID    *string
}

// Subject is the minimal identity the resolver needs.
func (p Principal) Subject() Subject {
	return Subject{PrincipalID: p.ID, Kind: p.Kind, Role: p.Role}
}

// Subject identifies a principal for authorization decisions.
type Subject struct {
	PrincipalID string
	Kind        PrincipalKind
	Role        RoleRef
}

// Credential is a stored login record for the identity boundary.
type Credential struct {
	Principal    Principal
	PasswordHash string
	IsActive     bool
	LastLogin    *time.Time
}
