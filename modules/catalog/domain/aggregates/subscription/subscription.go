package subscription

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusTrial     Status = "trial"
	StatusActive    Status = "active"
	StatusPastDue   Status = "past_due"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Terminal reports whether the status ends the subscription's life. A tenant
// may hold at most one non-terminal subscription at a time.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusExpired
}

type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

// ModuleItem is a point-in-time module line of a subscription. A line with
// Removed set is an explicit tombstone: the plan included the module but it
// was revoked for this subscription. Absence of a line means the plan default
// applies untouched.
type ModuleItem struct {
	ModuleCode  string
	MaxEntities *int64
	Removed     bool
	ActivatedAt time.Time
	ExpiresAt   *time.Time
}

// ActiveAt reports whether the line is in force at the given instant.
func (i ModuleItem) ActiveAt(asOf time.Time) bool {
	if asOf.Before(i.ActivatedAt) {
		return false
	}
	return i.ExpiresAt == nil || !i.ExpiresAt.Before(asOf)
}

// AddOnItem is a purchased add-on line. It expires independently of the
// subscription period.
type AddOnItem struct {
	AddOnCode   string
	Quantity    int64
	ActivatedAt time.Time
	ExpiresAt   *time.Time
}

func (i AddOnItem) ActiveAt(asOf time.Time) bool {
	if asOf.Before(i.ActivatedAt) {
		return false
	}
	return i.ExpiresAt == nil || !i.ExpiresAt.Before(asOf)
}

// Subscription binds a tenant to a plan with its own pricing and module
// snapshot. Plan changes supersede (new subscription, old one cancelled)
// rather than mutate, so historical entitlement snapshots stay reproducible.
type Subscription struct {
	id                 uuid.UUID
	tenantID           uuid.UUID
	planID             uuid.UUID
	planCode           string
	status             Status
	billingCycle       BillingCycle
	price              decimal.Decimal
	currentPeriodStart time.Time
	currentPeriodEnd   time.Time
	trialEndsAt        *time.Time
	moduleItems        []ModuleItem
	addOnItems         []AddOnItem
	supersededByID     *uuid.UUID
	createdAt          time.Time
	updatedAt          time.Time
}

type Option func(*Subscription)

func WithID(id uuid.UUID) Option {
	return func(s *Subscription) {
		s.id = id
	}
}

func WithStatus(status Status) Option {
	return func(s *Subscription) {
		s.status = status
	}
}

func WithBillingCycle(cycle BillingCycle) Option {
	return func(s *Subscription) {
		s.billingCycle = cycle
	}
}

func WithPrice(price decimal.Decimal) Option {
	return func(s *Subscription) {
		s.price = price
	}
}

func WithPeriod(start, end time.Time) Option {
	return func(s *Subscription) {
		s.currentPeriodStart = start
		s.currentPeriodEnd = end
	}
}

func WithTrialEndsAt(t *time.Time) Option {
	return func(s *Subscription) {
		s.trialEndsAt = t
	}
}

func WithModuleItems(items ...ModuleItem) Option {
	return func(s *Subscription) {
		s.moduleItems = items
	}
}

func WithAddOnItems(items ...AddOnItem) Option {
	return func(s *Subscription) {
		s.addOnItems = items
	}
}

func WithSupersededByID(id *uuid.UUID) Option {
	return func(s *Subscription) {
		s.supersededByID = id
	}
}

func WithCreatedAt(createdAt time.Time) Option {
	return func(s *Subscription) {
		s.createdAt = createdAt
	}
}

func WithUpdatedAt(updatedAt time.Time) Option {
	return func(s *Subscription) {
		s.updatedAt = updatedAt
	}
}

func New(tenantID, planID uuid.UUID, planCode string, opts ...Option) *Subscription {
	s := &Subscription{
		id:           uuid.New(),
		tenantID:     tenantID,
		planID:       planID,
		planCode:     planCode,
		status:       StatusActive,
		billingCycle: CycleMonthly,
		createdAt:    time.Now(),
		updatedAt:    time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Subscription) ID() uuid.UUID {
	return s.id
}

func (s *Subscription) TenantID() uuid.UUID {
	return s.tenantID
}

func (s *Subscription) PlanID() uuid.UUID {
	return s.planID
}

func (s *Subscription) PlanCode() string {
	return s.planCode
}

func (s *Subscription) Status() Status {
	return s.status
}

func (s *Subscription) BillingCycle() BillingCycle {
	return s.billingCycle
}

func (s *Subscription) Price() decimal.Decimal {
	return s.price
}

func (s *Subscription) CurrentPeriodStart() time.Time {
	return s.currentPeriodStart
}

func (s *Subscription) CurrentPeriodEnd() time.Time {
	return s.currentPeriodEnd
}

func (s *Subscription) TrialEndsAt() *time.Time {
	return s.trialEndsAt
}

func (s *Subscription) ModuleItems() []ModuleItem {
	out := make([]ModuleItem, len(s.moduleItems))
	copy(out, s.moduleItems)
	return out
}

func (s *Subscription) AddOnItems() []AddOnItem {
	out := make([]AddOnItem, len(s.addOnItems))
	copy(out, s.addOnItems)
	return out
}

func (s *Subscription) SupersededByID() *uuid.UUID {
	return s.supersededByID
}

func (s *Subscription) CreatedAt() time.Time {
	return s.createdAt
}

func (s *Subscription) UpdatedAt() time.Time {
	return s.updatedAt
}

// Renew rolls the billing period forward in place, keeping the module and
// add-on snapshot untouched.
func (s *Subscription) Renew(now time.Time) {
	length := s.periodLength()
	s.currentPeriodStart = now
	s.currentPeriodEnd = now.Add(length)
	if s.status == StatusPastDue || s.status == StatusTrial {
		s.status = StatusActive
	}
	s.updatedAt = now
}

func (s *Subscription) periodLength() time.Duration {
	if s.billingCycle == CycleYearly {
		return 365 * 24 * time.Hour
	}
	return 30 * 24 * time.Hour
}

func (s *Subscription) SetStatus(status Status) {
	s.status = status
	s.updatedAt = time.Now()
}

// MarkSuperseded closes this subscription in favor of its replacement.
func (s *Subscription) MarkSuperseded(byID uuid.UUID) {
	s.status = StatusCancelled
	s.supersededByID = &byID
	s.updatedAt = time.Now()
}

func (s *Subscription) AddModuleItem(item ModuleItem) {
	s.moduleItems = append(s.moduleItems, item)
	s.updatedAt = time.Now()
}

func (s *Subscription) AddAddOnItem(item AddOnItem) {
	s.addOnItems = append(s.addOnItems, item)
	s.updatedAt = time.Now()
}
