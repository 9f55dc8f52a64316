// Package revocation tracks session and chain identifiers that must be
// rejected before their tokens naturally expire. Entries self-expire at the
// revocation deadline, so absence means "not known revoked" and no sweep is
// needed for correctness.
package revocation

import (
	"context"
	"time"
)

// Store is the revocation set consulted on every token verification. Lookups
// sit on the hot path of authenticated requests and must stay O(1).
//
// Implementations must treat Revoke as idempotent: revoking an identifier
// again only ever extends its deadline, never shortens it. Any error from
// either method means the caller cannot trust the answer and must fail closed.
type Store interface {
	// Revoke marks id as revoked until the given deadline.
	Revoke(ctx context.Context, id string, until time.Time) error
	// IsRevoked reports whether id currently has a live revocation entry.
	IsRevoked(ctx context.Context, id string) (bool, error)
}
