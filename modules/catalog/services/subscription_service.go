package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/omnierp/controlplane/modules/catalog/domain/aggregates/subscription"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/plan"
	"github.com/omnierp/controlplane/pkg/eventbus"
)

var (
	ErrActiveSubscriptionExists = errors.New("tenant already has a live subscription")
	ErrTerminalStatus           = errors.New("subscription status is terminal")
)

// SubscriptionService enforces the one-live-subscription-per-tenant invariant.
// Plan changes never mutate the existing aggregate: the old subscription is
// cancelled and a replacement is written in the same transaction.
type SubscriptionService struct {
	repo      subscription.Repository
	plans     plan.Repository
	publisher eventbus.EventBus
}

func NewSubscriptionService(repo subscription.Repository, plans plan.Repository, publisher eventbus.EventBus) *SubscriptionService {
	return &SubscriptionService{
		repo:      repo,
		plans:     plans,
		publisher: publisher,
	}
}

func (s *SubscriptionService) GetByID(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *SubscriptionService) GetActiveForTenant(ctx context.Context, tenantID uuid.UUID) (*subscription.Subscription, error) {
	return s.repo.GetActiveByTenantID(ctx, tenantID)
}

func (s *SubscriptionService) GetAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]*subscription.Subscription, error) {
	return s.repo.GetAllByTenantID(ctx, tenantID)
}

func (s *SubscriptionService) Create(ctx context.Context, sub *subscription.Subscription) (*subscription.Subscription, error) {
	if _, err := s.repo.GetActiveByTenantID(ctx, sub.TenantID()); err == nil {
		return nil, ErrActiveSubscriptionExists
	} else if !errors.Is(err, subscription.ErrNotFound) {
		return nil, err
	}
	if _, err := s.plans.GetByID(ctx, sub.PlanID()); err != nil {
		return nil, errors.Wrap(err, "subscription references unknown plan")
	}
	created, err := s.repo.Create(ctx, sub)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(subscription.NewCreatedEvent(created))
	return created, nil
}

func (s *SubscriptionService) Renew(ctx context.Context, id uuid.UUID, now time.Time) (*subscription.Subscription, error) {
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status().Terminal() {
		return nil, ErrTerminalStatus
	}
	sub.Renew(now)
	renewed, err := s.repo.Update(ctx, sub)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(subscription.NewRenewedEvent(renewed))
	return renewed, nil
}

// ChangePlan supersedes the tenant's live subscription with a fresh one on the
// target plan. Active add-on lines carry over; module overrides do not, since
// they were negotiated against the old plan's defaults.
func (s *SubscriptionService) ChangePlan(ctx context.Context, tenantID uuid.UUID, newPlan *plan.Plan, cycle subscription.BillingCycle, now time.Time) (*subscription.Subscription, error) {
	old, err := s.repo.GetActiveByTenantID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	price := newPlan.MonthlyPrice()
	periodEnd := now.Add(30 * 24 * time.Hour)
	if cycle == subscription.CycleYearly {
		price = newPlan.YearlyPrice()
		periodEnd = now.Add(365 * 24 * time.Hour)
	}

	var carried []subscription.AddOnItem
	for _, item := range old.AddOnItems() {
		if item.ActiveAt(now) {
			carried = append(carried, item)
		}
	}

	replacement := subscription.New(tenantID, newPlan.ID(), newPlan.Code(),
		subscription.WithStatus(subscription.StatusActive),
		subscription.WithBillingCycle(cycle),
		subscription.WithPrice(price),
		subscription.WithPeriod(now, periodEnd),
		subscription.WithAddOnItems(carried...),
	)
	old.MarkSuperseded(replacement.ID())

	created, err := s.repo.Supersede(ctx, old, replacement)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(subscription.NewPlanChangedEvent(tenantID, old.ID(), created))
	return created, nil
}

func (s *SubscriptionService) MarkPastDue(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	return s.setStatus(ctx, id, subscription.StatusPastDue)
}

func (s *SubscriptionService) Reactivate(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	return s.setStatus(ctx, id, subscription.StatusActive)
}

func (s *SubscriptionService) Cancel(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	return s.setStatus(ctx, id, subscription.StatusCancelled)
}

func (s *SubscriptionService) Expire(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	return s.setStatus(ctx, id, subscription.StatusExpired)
}

func (s *SubscriptionService) setStatus(ctx context.Context, id uuid.UUID, to subscription.Status) (*subscription.Subscription, error) {
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := sub.Status()
	if from.Terminal() {
		return nil, ErrTerminalStatus
	}
	if from == to {
		return sub, nil
	}
	sub.SetStatus(to)
	updated, err := s.repo.Update(ctx, sub)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(subscription.NewStatusChangedEvent(updated, from, to))
	return updated, nil
}
