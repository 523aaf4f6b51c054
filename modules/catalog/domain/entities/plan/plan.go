package plan

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Plan is a priced bundle of modules and quotas offered at subscription time.
// Existing subscriptions keep their own module snapshot; mutating a plan never
// rewrites subscriptions already bound to it.
type Plan struct {
	id               uuid.UUID
	code             string
	name             string
	description      string
	monthlyPrice     decimal.Decimal
	yearlyPrice      decimal.Decimal
	moduleCodes      []string
	maxUsers         int64
	maxStorageGB     int64
	maxProjects      int64
	maxAPICallsMonth int64
	trialDays        int
	isActive         bool
	createdAt        time.Time
	updatedAt        time.Time
}

type Option func(*Plan)

func WithID(id uuid.UUID) Option {
	return func(p *Plan) {
		p.id = id
	}
}

func WithDescription(description string) Option {
	return func(p *Plan) {
		p.description = description
	}
}

func WithPricing(monthly, yearly decimal.Decimal) Option {
	return func(p *Plan) {
		p.monthlyPrice = monthly
		p.yearlyPrice = yearly
	}
}

func WithModuleCodes(codes ...string) Option {
	return func(p *Plan) {
		p.moduleCodes = codes
	}
}

func WithQuotas(maxUsers, maxStorageGB, maxProjects, maxAPICallsMonth int64) Option {
	return func(p *Plan) {
		p.maxUsers = maxUsers
		p.maxStorageGB = maxStorageGB
		p.maxProjects = maxProjects
		p.maxAPICallsMonth = maxAPICallsMonth
	}
}

func WithTrialDays(days int) Option {
	return func(p *Plan) {
		p.trialDays = days
	}
}

func WithIsActive(isActive bool) Option {
	return func(p *Plan) {
		p.isActive = isActive
	}
}

func WithCreatedAt(createdAt time.Time) Option {
	return func(p *Plan) {
		p.createdAt = createdAt
	}
}

func WithUpdatedAt(updatedAt time.Time) Option {
	return func(p *Plan) {
		p.updatedAt = updatedAt
	}
}

func New(code, name string, opts ...Option) *Plan {
	p := &Plan{
		id:        uuid.New(),
		code:      code,
		name:      name,
		isActive:  true,
		createdAt: time.Now(),
		updatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Plan) ID() uuid.UUID {
	return p.id
}

func (p *Plan) Code() string {
	return p.code
}

func (p *Plan) Name() string {
	return p.name
}

func (p *Plan) Description() string {
	return p.description
}

func (p *Plan) MonthlyPrice() decimal.Decimal {
	return p.monthlyPrice
}

func (p *Plan) YearlyPrice() decimal.Decimal {
	return p.yearlyPrice
}

// ModuleCodes returns the module set included by default at subscription time.
func (p *Plan) ModuleCodes() []string {
	out := make([]string, len(p.moduleCodes))
	copy(out, p.moduleCodes)
	return out
}

func (p *Plan) IncludesModule(code string) bool {
	for _, c := range p.moduleCodes {
		if c == code {
			return true
		}
	}
	return false
}

func (p *Plan) MaxUsers() int64 {
	return p.maxUsers
}

func (p *Plan) MaxStorageGB() int64 {
	return p.maxStorageGB
}

func (p *Plan) MaxProjects() int64 {
	return p.maxProjects
}

func (p *Plan) MaxAPICallsPerMonth() int64 {
	return p.maxAPICallsMonth
}

func (p *Plan) TrialDays() int {
	return p.trialDays
}

func (p *Plan) IsActive() bool {
	return p.isActive
}

func (p *Plan) CreatedAt() time.Time {
	return p.createdAt
}

func (p *Plan) UpdatedAt() time.Time {
	return p.updatedAt
}
