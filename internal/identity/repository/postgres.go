package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Jeffr-K/metagate/internal/identity/domain"
)

// PostgresRepository is a Repository backed by the credentials table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a credential repository using the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByIdentity returns the credential record for identity, or nil if not
// found. It returns an error only for database failures, not missing rows.
func (r *PostgresRepository) GetByIdentity(ctx context.Context, identity string) (*domain.Credential, error) {
	var c domain.Credential
	err := r.db.QueryRowContext(ctx,
		`SELECT identity, secret_hash, updated_at FROM credentials WHERE identity = $1`,
		identity,
	).Scan(&c.Identity, &c.SecretHash, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return &c, nil
}

// Upsert inserts or replaces the credential record for c.Identity.
func (r *PostgresRepository) Upsert(ctx context.Context, c *domain.Credential) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credentials (identity, secret_hash, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity) DO UPDATE SET secret_hash = $2, updated_at = $3`,
		c.Identity, c.SecretHash, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}
