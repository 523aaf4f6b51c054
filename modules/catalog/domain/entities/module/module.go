package module

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Module is a purchasable capability unit identified by a stable Code.
// Dependencies reference other module codes, never object graphs; the
// adjacency is validated cycle-free at write time.
type Module struct {
	id           uuid.UUID
	code         string
	name         string
	isCore       bool
	monthlyPrice decimal.Decimal
	yearlyPrice  decimal.Decimal
	dependsOn    []string
	createdAt    time.Time
	updatedAt    time.Time
}

type Option func(*Module)

func WithID(id uuid.UUID) Option {
	return func(m *Module) {
		m.id = id
	}
}

func WithIsCore(isCore bool) Option {
	return func(m *Module) {
		m.isCore = isCore
	}
}

func WithPricing(monthly, yearly decimal.Decimal) Option {
	return func(m *Module) {
		m.monthlyPrice = monthly
		m.yearlyPrice = yearly
	}
}

func WithDependsOn(codes ...string) Option {
	return func(m *Module) {
		m.dependsOn = codes
	}
}

func WithCreatedAt(createdAt time.Time) Option {
	return func(m *Module) {
		m.createdAt = createdAt
	}
}

func WithUpdatedAt(updatedAt time.Time) Option {
	return func(m *Module) {
		m.updatedAt = updatedAt
	}
}

func New(code, name string, opts ...Option) *Module {
	m := &Module{
		id:        uuid.New(),
		code:      code,
		name:      name,
		createdAt: time.Now(),
		updatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) ID() uuid.UUID {
	return m.id
}

func (m *Module) Code() string {
	return m.code
}

func (m *Module) Name() string {
	return m.name
}

func (m *Module) IsCore() bool {
	return m.isCore
}

func (m *Module) MonthlyPrice() decimal.Decimal {
	return m.monthlyPrice
}

func (m *Module) YearlyPrice() decimal.Decimal {
	return m.yearlyPrice
}

func (m *Module) DependsOn() []string {
	out := make([]string, len(m.dependsOn))
	copy(out, m.dependsOn)
	return out
}

func (m *Module) CreatedAt() time.Time {
	return m.createdAt
}

func (m *Module) UpdatedAt() time.Time {
	return m.updatedAt
}
