package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("tenant not found")
	// ErrGone marks a tenant that existed but was deleted. Callers use the
	// distinction to stop retrying instead of treating it as a typo.
	ErrGone = errors.New("tenant gone")
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetByCode(ctx context.Context, code string) (*Tenant, error)
	GetByDomain(ctx context.Context, domain string) (*Tenant, error)
	GetByAPIKeyHash(ctx context.Context, hash string) (*Tenant, error)
	GetAll(ctx context.Context) ([]*Tenant, error)
	Create(ctx context.Context, t *Tenant) (*Tenant, error)
	Update(ctx context.Context, t *Tenant) (*Tenant, error)
	// ScrubSecrets overwrites the stored credential columns with NULL. Called
	// after MarkDeleted so the plaintext is unreachable even through backups
	// of the row's current state.
	ScrubSecrets(ctx context.Context, id uuid.UUID) error
}
