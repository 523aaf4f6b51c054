package addon

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*AddOn, error)
	GetByCode(ctx context.Context, code string) (*AddOn, error)
	GetByCodes(ctx context.Context, codes []string) ([]*AddOn, error)
	GetAll(ctx context.Context) ([]*AddOn, error)
	Create(ctx context.Context, a *AddOn) (*AddOn, error)
	Update(ctx context.Context, a *AddOn) (*AddOn, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
