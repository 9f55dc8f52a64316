package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Jeffr-K/metagate/internal/session/domain"
)

// PostgresLedger is a Ledger backed by the sessions table.
type PostgresLedger struct {
	db *sql.DB
}

// NewPostgresLedger returns a Ledger using the given db for persistence.
func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

const sessionColumns = `id, identity, chain_id, sequence, status, issued_at, expires_at, revoked_at, created_at`

// Create persists the session. The session must have ID and ChainID set.
func (l *PostgresLedger) Create(ctx context.Context, s *domain.Session) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO sessions (id, identity, chain_id, sequence, status, issued_at, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.Identity, s.ChainID, s.Sequence, string(s.Status), s.IssuedAt, s.ExpiresAt, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetByID returns the session for id, or nil if not found. It returns an
// error only for database failures, not for missing rows.
func (l *PostgresLedger) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

// GetByChain returns the session owning chainID, or nil if not found.
func (l *PostgresLedger) GetByChain(ctx context.Context, chainID string) (*domain.Session, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE chain_id = $1`, chainID)
	return scanSession(row)
}

// AdvanceSequence performs the atomic compare-and-advance. The conditional
// UPDATE is the serialization point for concurrent refreshes on one chain:
// the row predicate guarantees at most one caller sees an affected row.
func (l *PostgresLedger) AdvanceSequence(ctx context.Context, chainID string, presented uint64, extendTo time.Time) error {
	res, err := l.db.ExecContext(ctx, `
		UPDATE sessions
		SET sequence = sequence + 1, status = $3, expires_at = GREATEST(expires_at, $5)
		WHERE chain_id = $1 AND sequence = $2 AND status <> $4`,
		chainID, presented, string(domain.StatusRotated), string(domain.StatusRevoked), extendTo,
	)
	if err != nil {
		return fmt.Errorf("advance sequence: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("advance sequence: %w", err)
	} else if n > 0 {
		return nil
	}

	// The update matched nothing; read the row to say why.
	var current uint64
	var status string
	err = l.db.QueryRowContext(ctx,
		`SELECT sequence, status FROM sessions WHERE chain_id = $1`, chainID,
	).Scan(&current, &status)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrChainNotFound
	case err != nil:
		return fmt.Errorf("advance sequence: %w", err)
	case status == string(domain.StatusRevoked):
		return ErrChainRevoked
	case presented < current:
		return ErrReuseDetected
	default:
		return fmt.Errorf("advance sequence: presented %d ahead of ledger %d", presented, current)
	}
}

// Revoke marks the session revoked. No transition leaves revoked, so an
// already-revoked row is left untouched.
func (l *PostgresLedger) Revoke(ctx context.Context, id string, at time.Time) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE sessions SET status = $2, revoked_at = $3
		WHERE id = $1 AND status <> $2`,
		id, string(domain.StatusRevoked), at,
	)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RevokeChain marks the chain's session revoked.
func (l *PostgresLedger) RevokeChain(ctx context.Context, chainID string, at time.Time) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE sessions SET status = $2, revoked_at = $3
		WHERE chain_id = $1 AND status <> $2`,
		chainID, string(domain.StatusRevoked), at,
	)
	if err != nil {
		return fmt.Errorf("revoke chain: %w", err)
	}
	return nil
}

// ListActiveByIdentity returns the identity's live sessions.
func (l *PostgresLedger) ListActiveByIdentity(ctx context.Context, identity string) ([]*domain.Session, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE identity = $1 AND status <> $2 AND expires_at > now()`,
		identity, string(domain.StatusRevoked),
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSessionRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row *sql.Row) (*domain.Session, error) {
	s, err := scanSessionRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func scanSessionRow(row rowScanner) (*domain.Session, error) {
	var s domain.Session
	var status string
	var revokedAt sql.NullTime
	err := row.Scan(&s.ID, &s.Identity, &s.ChainID, &s.Sequence, &status, &s.IssuedAt, &s.ExpiresAt, &revokedAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.Status = domain.Status(status)
	if revokedAt.Valid {
		s.RevokedAt = &revokedAt.Time
	}
	return &s, nil
}
