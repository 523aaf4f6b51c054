package tier

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UserTier is a banded pricing curve: tenants whose seat count falls inside
// [MinUsers, MaxUsers] pay PricePerUser. The band also acts as a seat
// allowance when resolving entitlements.
type UserTier struct {
	id           uuid.UUID
	minUsers     int64
	maxUsers     int64
	pricePerUser decimal.Decimal
}

func NewUserTier(minUsers, maxUsers int64, pricePerUser decimal.Decimal) *UserTier {
	return &UserTier{
		id:           uuid.New(),
		minUsers:     minUsers,
		maxUsers:     maxUsers,
		pricePerUser: pricePerUser,
	}
}

// RehydrateUserTier reconstructs a stored tier row.
func RehydrateUserTier(id uuid.UUID, minUsers, maxUsers int64, pricePerUser decimal.Decimal) *UserTier {
	return &UserTier{
		id:           id,
		minUsers:     minUsers,
		maxUsers:     maxUsers,
		pricePerUser: pricePerUser,
	}
}

func (t *UserTier) ID() uuid.UUID {
	return t.id
}

func (t *UserTier) MinUsers() int64 {
	return t.minUsers
}

func (t *UserTier) MaxUsers() int64 {
	return t.maxUsers
}

func (t *UserTier) PricePerUser() decimal.Decimal {
	return t.pricePerUser
}

func (t *UserTier) Contains(users int64) bool {
	return users >= t.minUsers && users <= t.maxUsers
}

// StoragePlan is a flat storage allowance with its own price, independent of
// the base plan quota.
type StoragePlan struct {
	id        uuid.UUID
	storageGB int64
	price     decimal.Decimal
}

func NewStoragePlan(storageGB int64, price decimal.Decimal) *StoragePlan {
	return &StoragePlan{
		id:        uuid.New(),
		storageGB: storageGB,
		price:     price,
	}
}

// RehydrateStoragePlan reconstructs a stored storage plan row.
func RehydrateStoragePlan(id uuid.UUID, storageGB int64, price decimal.Decimal) *StoragePlan {
	return &StoragePlan{
		id:        id,
		storageGB: storageGB,
		price:     price,
	}
}

func (p *StoragePlan) ID() uuid.UUID {
	return p.id
}

func (p *StoragePlan) StorageGB() int64 {
	return p.storageGB
}

func (p *StoragePlan) Price() decimal.Decimal {
	return p.price
}
