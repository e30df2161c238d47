// Package credential hashes and verifies team secrets with bcrypt.
package credential

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptySecret is returned when hashing an empty secret.
var ErrEmptySecret = errors.New("empty secret")

// Verifier checks a submitted secret against a stored hash.
type Verifier interface {
	Verify(secret, hash string) bool
}

// Hasher produces storable hashes.
type Hasher interface {
	Hash(secret string) (string, error)
}

// Bcrypt implements Hasher and Verifier.
type Bcrypt struct {
	cost int
}

// Option configures Bcrypt.
type Option func(*Bcrypt)

// WithCost sets the bcrypt work factor. Values outside bcrypt's accepted
// range are ignored.
func WithCost(cost int) Option {
	return func(b *Bcrypt) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			b.cost = cost
		}
	}
}

// NewBcrypt creates a bcrypt hasher with bcrypt.DefaultCost unless overridden.
func NewBcrypt(opts ...Option) *Bcrypt {
	b := &Bcrypt{cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Cost returns the configured work factor.
func (b *Bcrypt) Cost() int {
	return b.cost
}

func (b *Bcrypt) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	h, err := bcrypt.GenerateFromPassword([]byte(secret), b.cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(h), nil
}

// Verify reports whether secret matches hash. Malformed hashes never match.
func (b *Bcrypt) Verify(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
