package domain

import "time"

// Status is the lifecycle state of a session. Transitions are forward-only:
// active → rotated on the first refresh, and active or rotated → revoked on
// logout or reuse detection. Nothing leaves revoked.
type Status string

const (
	StatusActive  Status = "active"
	StatusRotated Status = "rotated"
	StatusRevoked Status = "revoked"
)

// Session is one authenticated login lifetime. ChainID links every refresh
// token descended from the login; Sequence is the latest refresh sequence
// number recorded for the chain, advanced by exactly one per rotation.
type Session struct {
	ID        string
	Identity  string
	ChainID   string
	Sequence  uint64
	Status    Status
	IssuedAt  time.Time
	ExpiresAt time.Time  // refresh-token horizon; also the revocation deadline
	RevokedAt *time.Time // nil when not revoked
	CreatedAt time.Time
}

// Revoked reports whether the session is permanently invalid.
func (s *Session) Revoked() bool {
	return s.Status == StatusRevoked
}
