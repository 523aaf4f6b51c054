package addon

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindFeature  Kind = "feature"
	KindQuantity Kind = "quantity"
)

// Units for quantity add-ons. The unit decides which quota the quantity sums into.
const (
	UnitGB       = "gb"
	UnitUsers    = "users"
	UnitAPICalls = "api_calls"
)

// AddOn is an optional purchase extending quota or unlocking a feature
// independent of the base plan. RequiresModule, when set, names a module code
// that must be present in the resolved entitlement set.
type AddOn struct {
	id             uuid.UUID
	code           string
	name           string
	kind           Kind
	unit           string
	quantity       int64
	requiresModule string
	monthlyPrice   decimal.Decimal
	yearlyPrice    decimal.Decimal
	isActive       bool
	createdAt      time.Time
	updatedAt      time.Time
}

type Option func(*AddOn)

func WithID(id uuid.UUID) Option {
	return func(a *AddOn) {
		a.id = id
	}
}

func WithQuantity(unit string, quantity int64) Option {
	return func(a *AddOn) {
		a.unit = unit
		a.quantity = quantity
	}
}

func WithRequiresModule(code string) Option {
	return func(a *AddOn) {
		a.requiresModule = code
	}
}

func WithPricing(monthly, yearly decimal.Decimal) Option {
	return func(a *AddOn) {
		a.monthlyPrice = monthly
		a.yearlyPrice = yearly
	}
}

func WithIsActive(isActive bool) Option {
	return func(a *AddOn) {
		a.isActive = isActive
	}
}

func WithCreatedAt(createdAt time.Time) Option {
	return func(a *AddOn) {
		a.createdAt = createdAt
	}
}

func WithUpdatedAt(updatedAt time.Time) Option {
	return func(a *AddOn) {
		a.updatedAt = updatedAt
	}
}

func New(code, name string, kind Kind, opts ...Option) *AddOn {
	a := &AddOn{
		id:        uuid.New(),
		code:      code,
		name:      name,
		kind:      kind,
		isActive:  true,
		createdAt: time.Now(),
		updatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *AddOn) ID() uuid.UUID {
	return a.id
}

func (a *AddOn) Code() string {
	return a.code
}

func (a *AddOn) Name() string {
	return a.name
}

func (a *AddOn) Kind() Kind {
	return a.kind
}

func (a *AddOn) Unit() string {
	return a.unit
}

func (a *AddOn) Quantity() int64 {
	return a.quantity
}

func (a *AddOn) RequiresModule() string {
	return a.requiresModule
}

func (a *AddOn) MonthlyPrice() decimal.Decimal {
	return a.monthlyPrice
}

func (a *AddOn) YearlyPrice() decimal.Decimal {
	return a.yearlyPrice
}

func (a *AddOn) IsActive() bool {
	return a.isActive
}

func (a *AddOn) CreatedAt() time.Time {
	return a.createdAt
}

func (a *AddOn) UpdatedAt() time.Time {
	return a.updatedAt
}
