package shop

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists shops. Implementations map storage errors onto the
// shared sentinels (shared.ErrNotFound for unknown shops).
type Repository interface {
	// FindByID returns a shop by its internal identifier
	FindByID(ctx context.Context, id uuid.UUID) (*Shop, error)

	// FindByDomain returns a shop by its normalized myshopify domain
	FindByDomain(ctx context.Context, domain string) (*Shop, error)

	// Create inserts a new shop record
	Create(ctx context.Context, s *Shop) error

	// Update persists changes to an existing shop
	Update(ctx context.Context, s *Shop) error
}
