package port

import "github.com/busline/backoffice-iam/internal/core/domain"

// Argon2Params captures tunable parameters for the Argon2id hashing algorithm.
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// PasswordHasher hashes and verifies secrets using the configured algorithm.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) (bool, error)
}

// TokenSigner mints and parses signed session tokens.
type TokenSigner interface {
	Sign(claims domain.SessionClaims) (string, error)
	// Parse verifies signature and shape only. Expiry is left to the caller so that
	// refresh can apply its grace window.
	Parse(token string) (*domain.SessionClaims, error)
}
