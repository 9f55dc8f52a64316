package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Jeffr-K/metagate/internal/session/domain"
)

// Outcomes of AdvanceSequence beyond plain store failures.
var (
	// ErrReuseDetected means the presented sequence number is older than the
	// latest recorded for the chain: an already-rotated refresh token was
	// presented again. Callers must treat this as a security event.
	ErrReuseDetected = errors.New("refresh token reuse detected")
	// ErrChainRevoked means the chain's session is permanently revoked.
	ErrChainRevoked = errors.New("session chain revoked")
	// ErrChainNotFound means no session exists for the chain.
	ErrChainNotFound = errors.New("session chain not found")
)

// Ledger is the durable record of issued sessions and refresh lineage.
//
// AdvanceSequence must be atomic: when two refreshes race with the same
// presented sequence number, exactly one advances and the other observes
// ErrReuseDetected. Implementations back this with a conditional update at
// the storage layer, not an in-process lock, since multiple gate instances
// run concurrently.
type Ledger interface {
	// Create records a freshly issued session (sequence 0, status active).
	Create(ctx context.Context, s *domain.Session) error
	// GetByID returns the session for id, or nil when absent.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// GetByChain returns the session owning the chain, or nil when absent.
	GetByChain(ctx context.Context, chainID string) (*domain.Session, error)
	// AdvanceSequence advances the chain's sequence number by one, but only
	// if presented matches the latest recorded value and the session is not
	// revoked, extending the chain's expiry to extendTo (the successor
	// refresh token's horizon) in the same atomic step. Returns
	// ErrReuseDetected when presented is stale, ErrChainRevoked or
	// ErrChainNotFound otherwise.
	AdvanceSequence(ctx context.Context, chainID string, presented uint64, extendTo time.Time) error
	// Revoke marks the session revoked at the given time. Permanent and
	// idempotent; revoking an already-revoked session is a no-op.
	Revoke(ctx context.Context, id string, at time.Time) error
	// RevokeChain is Revoke keyed by chain id.
	RevokeChain(ctx context.Context, chainID string, at time.Time) error
	// ListActiveByIdentity returns the identity's non-revoked, non-expired
	// sessions. Used for forced invalidation of every chain.
	ListActiveByIdentity(ctx context.Context, identity string) ([]*domain.Session, error)
}
