package tier

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrUserTierNotFound    = errors.New("user tier not found")
	ErrStoragePlanNotFound = errors.New("storage plan not found")
)

type Repository interface {
	UserTiers(ctx context.Context) ([]*UserTier, error)
	// UserTierForCount returns the band containing the given seat count.
	UserTierForCount(ctx context.Context, users int64) (*UserTier, error)
	StoragePlans(ctx context.Context) ([]*StoragePlan, error)
	StoragePlanByID(ctx context.Context, id uuid.UUID) (*StoragePlan, error)
}
