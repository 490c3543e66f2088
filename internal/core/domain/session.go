package domain

import "time"

// Session is a registry row describing one issued bearer token.
type Session struct {
	ID            string
	PrincipalID   string
	PrincipalKind PrincipalKind
	Role          RoleRef
	IP            *string
	UserAgent     *string
	StartedAt     time.Time
	CreatedAt     time.Time
	RefreshedAt   *time.Time
	ExpiresAt     time.Time
	RevokedAt     *time.Time
	RevokeReason  *string
}

// IsActive reports whether the session is neither revoked nor expired at the supplied moment.
func (s Session) IsActive(at time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	return s.ExpiresAt.After(at)
}

// SessionClaims are the validated contents of a bearer token.
type SessionClaims struct {
	SessionID     string
	PrincipalID   string
	PrincipalKind PrincipalKind
	Role          RoleRef
	IssuedAt      time.Time
	ExpiresAt     time.Time
	StartedAt     time.Time
}

// Subject returns the authorization subject carried by the claims.
func (c SessionClaims) Subject() Subject {
	return Subject{PrincipalID: c.PrincipalID, Kind: c.PrincipalKind, Role: c.Role}
}

// RevocationReason explains why a token identifier was denylisted.
type RevocationReason string

const (
	RevocationLogout  RevocationReason = "logout"
	RevocationRotated RevocationReason = "rotated"
)

// Revocation is a denylist entry for a single token identifier.
type Revocation struct {
	Reason    RevocationReason `json:"reason"`
	RevokedAt time.Time        `json:"at"`
}

// IssuedSession is the result of issuing or rotating a token.
type IssuedSession struct {
	Token     string
	Claims    SessionClaims
	ExpiresAt time.Time
}
