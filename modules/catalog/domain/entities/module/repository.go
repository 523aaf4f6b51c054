package module

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Module, error)
	GetByCode(ctx context.Context, code string) (*Module, error)
	GetAll(ctx context.Context) ([]*Module, error)
	Create(ctx context.Context, m *Module) (*Module, error)
	Update(ctx context.Context, m *Module) (*Module, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
