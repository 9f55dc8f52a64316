package repository

import (
	"context"

	"github.com/Jeffr-K/metagate/internal/identity/domain"
)

// Repository is read-mostly access to credential records. GetByIdentity is
// the only call the session engine makes; Upsert exists for the dev seeder.
type Repository interface {
	// GetByIdentity returns the credential record for identity, or nil when
	// no record exists. A nil record and a wrong secret must be handled
	// identically by callers.
	GetByIdentity(ctx context.Context, identity string) (*domain.Credential, error)
	// Upsert inserts or replaces a credential record.
	Upsert(ctx context.Context, c *domain.Credential) error
}
