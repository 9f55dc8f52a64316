package security

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// Verifier hashes and verifies secrets using bcrypt. Callers must not log or
// persist plaintext secrets. A weighted semaphore caps concurrent hashing so
// the deliberately expensive hash cannot be used to exhaust CPU.
type Verifier struct {
	cost      int
	sem       *semaphore.Weighted
	dummyHash string
}

// NewVerifier returns a Verifier with the given bcrypt cost (4–31) and a cap
// on simultaneous hashing operations. Cost 12 is a reasonable default for
// interactive login; maxConcurrent <= 0 defaults to 8.
func NewVerifier(cost, maxConcurrent int) (*Verifier, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	filler := make([]byte, 16)
	if _, err := rand.Read(filler); err != nil {
		return nil, err
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(filler)), cost)
	if err != nil {
		return nil, err
	}
	return &Verifier{
		cost:      cost,
		sem:       semaphore.NewWeighted(int64(maxConcurrent)),
		dummyHash: string(dummy),
	}, nil
}

// Hash produces a bcrypt hash of secret, suitable for storage. Blocks until a
// hashing slot is free or ctx is done.
func (v *Verifier) Hash(ctx context.Context, secret []byte) (string, error) {
	if err := v.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer v.sem.Release(1)
	b, err := bcrypt.GenerateFromPassword(secret, v.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify checks secret against storedHash. The outcome is a plain boolean: a
// wrong secret and a malformed stored hash are indistinguishable, so the
// result leaks nothing about which check failed. The error return is reserved
// for context cancellation while waiting on a hashing slot.
func (v *Verifier) Verify(ctx context.Context, storedHash string, secret []byte) (bool, error) {
	if err := v.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer v.sem.Release(1)
	return bcrypt.CompareHashAndPassword([]byte(storedHash), secret) == nil, nil
}

// VerifyDummy burns the same work as a real verification against a throwaway
// hash. Called when no credential record exists for the presented identity so
// an attacker cannot distinguish unknown identities by response time.
func (v *Verifier) VerifyDummy(ctx context.Context, secret []byte) {
	if err := v.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer v.sem.Release(1)
	_ = bcrypt.CompareHashAndPassword([]byte(v.dummyHash), secret)
}
