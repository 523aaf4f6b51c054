package subscription

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("subscription not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	// GetActiveByTenantID returns the single non-terminal subscription of the
	// tenant, or ErrNotFound.
	GetActiveByTenantID(ctx context.Context, tenantID uuid.UUID) (*Subscription, error)
	GetAllByTenantID(ctx context.Context, tenantID uuid.UUID) ([]*Subscription, error)
	Create(ctx context.Context, s *Subscription) (*Subscription, error)
	Update(ctx context.Context, s *Subscription) (*Subscription, error)
	// Supersede persists the replacement and the cancelled predecessor in a
	// single transaction.
	Supersede(ctx context.Context, old, replacement *Subscription) (*Subscription, error)
	// HasNonTerminal reports whether the tenant still owns billing state that
	// blocks deletion.
	HasNonTerminal(ctx context.Context, tenantID uuid.UUID) (bool, error)
}
