// Package events emits session lifecycle events to the bus for downstream
// consumers. Delivery is best-effort, at most once: session state in the
// ledger is the source of truth and a failed publish never fails the
// operation that triggered it.
package events

import (
	"context"
	"time"
)

// Type names a session lifecycle event.
type Type string

const (
	TypeIssued        Type = "session.issued"
	TypeRefreshed     Type = "session.refreshed"
	TypeRevoked       Type = "session.revoked"
	TypeSecurityAlert Type = "session.security_alert"
)

// Event is one lifecycle notification. Reason is set only on security alerts
// and says what tripped the alert (reuse, revoked-token replay).
type Event struct {
	Type      Type      `json:"type"`
	SessionID string    `json:"session_id"`
	ChainID   string    `json:"chain_id,omitempty"`
	Identity  string    `json:"identity,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher emits session events. Callers use it best-effort: log and ignore
// errors. Publish after the state transition is durably recorded, not before.
type Publisher interface {
	// Publish sends a single event. Implementations may block briefly; use
	// PublishAsync from request paths.
	Publish(ctx context.Context, e Event) error
	// Close releases resources (e.g. the Kafka writer). Safe to call twice.
	Close() error
}
