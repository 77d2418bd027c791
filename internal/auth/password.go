package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost matches the work factor the service has always used for
// stored hashes. bcrypt embeds the cost in the hash, so raising it later only
// affects new registrations.
const DefaultBcryptCost = 10

// Hasher hashes and verifies local passwords with bcrypt. The cost is
// injectable so tests can run at bcrypt.MinCost.
type Hasher struct {
	cost int
}

// NewHasher creates a Hasher with the given cost. Costs outside bcrypt's
// supported range fall back to DefaultBcryptCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt hash of plaintext. The salt and cost are embedded
// in the returned string. bcrypt silently truncates inputs beyond 72 bytes,
// so those are rejected instead.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", ErrPasswordTooLong
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashingFailure, err)
	}
	return string(hashed), nil
}

// Verify checks plaintext against a stored hash. A mismatch returns
// ErrInvalidCredentials; anything else (malformed hash, bcrypt failure) is
// ErrHashingFailure so an infrastructure fault is never reported as a wrong
// password. The comparison is constant-time inside bcrypt.
func (h *Hasher) Verify(plaintext, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("%w: %v", ErrHashingFailure, err)
	}
	return nil
}

// HashResult is delivered on the channel returned by HashAsync.
type HashResult struct {
	Hash string
	Err  error
}

// HashAsync runs Hash on its own goroutine and delivers the result on the
// returned channel. Hashing is CPU-bound; running it off the calling flow
// keeps a burst of registrations from serializing behind one another. The
// channel is buffered, so an abandoned result never leaks the goroutine.
func (h *Hasher) HashAsync(ctx context.Context, plaintext string) <-chan HashResult {
	out := make(chan HashResult, 1)
	go func() {
		hash, err := h.Hash(plaintext)
		if ctx.Err() != nil {
			out <- HashResult{Err: ctx.Err()}
			return
		}
		out <- HashResult{Hash: hash, Err: err}
	}()
	return out
}
