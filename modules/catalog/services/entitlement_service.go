package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"github.com/omnierp/controlplane/modules/catalog/domain/aggregates/subscription"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/addon"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/module"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/plan"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/tier"
	"github.com/omnierp/controlplane/modules/catalog/domain/entitlement"
)

// EntitlementQuery pins the resolution inputs that live outside the catalog.
// SeatCount selects the user tier band; zero means no band applies.
// StoragePlanID attaches a purchased storage plan when the tenant has one.
type EntitlementQuery struct {
	TenantID      uuid.UUID
	AsOf          time.Time
	SeatCount     int64
	StoragePlanID *uuid.UUID
}

// EntitlementService loads the resolution inputs and delegates to the pure
// resolver. It never caches: callers that need snapshots persist the returned
// value themselves, keyed by (tenant, asOf).
type EntitlementService struct {
	subscriptions subscription.Repository
	plans         plan.Repository
	modules       module.Repository
	addOns        addon.Repository
	tiers         tier.Repository
}

func NewEntitlementService(
	subscriptions subscription.Repository,
	plans plan.Repository,
	modules module.Repository,
	addOns addon.Repository,
	tiers tier.Repository,
) *EntitlementService {
	return &EntitlementService{
		subscriptions: subscriptions,
		plans:         plans,
		modules:       modules,
		addOns:        addOns,
		tiers:         tiers,
	}
}

// ResolveForTenant computes effective entitlements from the tenant's live
// subscription alone, without tier or storage plan inputs.
func (s *EntitlementService) ResolveForTenant(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (*entitlement.Entitlements, error) {
	return s.Resolve(ctx, EntitlementQuery{TenantID: tenantID, AsOf: asOf})
}

func (s *EntitlementService) Resolve(ctx context.Context, q EntitlementQuery) (*entitlement.Entitlements, error) {
	var out *entitlement.Entitlements
	err := withRetry(ctx, func() error {
		sub, err := s.subscriptions.GetActiveByTenantID(ctx, q.TenantID)
		if err != nil {
			return err
		}
		out, err = s.resolveSubscription(ctx, sub, q)
		return err
	})
	return out, err
}

// ResolveForSubscription resolves a specific subscription, including
// superseded or terminal ones, for historical snapshots.
func (s *EntitlementService) ResolveForSubscription(ctx context.Context, subscriptionID uuid.UUID, q EntitlementQuery) (*entitlement.Entitlements, error) {
	var out *entitlement.Entitlements
	err := withRetry(ctx, func() error {
		sub, err := s.subscriptions.GetByID(ctx, subscriptionID)
		if err != nil {
			return err
		}
		out, err = s.resolveSubscription(ctx, sub, q)
		return err
	})
	return out, err
}

// resolveRetries bounds reruns of a read-only resolution after a transient
// pool failure.
const resolveRetries = 2

func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= resolveRetries; attempt++ {
		if err = fn(); err == nil || !isTransient(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}

// isTransient reports whether the failure came from the connection layer
// rather than the data. Domain errors are never retried.
func isTransient(err error) bool {
	var connectErr *pgconn.ConnectError
	return pgconn.SafeToRetry(err) || errors.As(err, &connectErr)
}

func (s *EntitlementService) resolveSubscription(ctx context.Context, sub *subscription.Subscription, q EntitlementQuery) (*entitlement.Entitlements, error) {
	p, err := s.plans.GetByID(ctx, sub.PlanID())
	if err != nil {
		return nil, errors.Wrap(err, "load plan")
	}
	defs, err := s.modules.GetAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load module catalog")
	}

	codes := make([]string, 0, len(sub.AddOnItems()))
	for _, item := range sub.AddOnItems() {
		codes = append(codes, item.AddOnCode)
	}
	addOns, err := s.addOns.GetByCodes(ctx, codes)
	if err != nil {
		return nil, errors.Wrap(err, "load add-on catalog")
	}

	in := entitlement.ResolveInput{
		Subscription: sub,
		Plan:         p,
		Definitions:  defs,
		AddOns:       addOns,
		AsOf:         q.AsOf,
	}
	if q.SeatCount > 0 {
		t, err := s.tiers.UserTierForCount(ctx, q.SeatCount)
		switch {
		case err == nil:
			in.Tier = t
		case errors.Is(err, tier.ErrUserTierNotFound):
			// No band covers the seat count, plan quotas stand alone.
		default:
			return nil, errors.Wrap(err, "load user tier")
		}
	}
	if q.StoragePlanID != nil {
		sp, err := s.tiers.StoragePlanByID(ctx, *q.StoragePlanID)
		if err != nil {
			return nil, errors.Wrap(err, "load storage plan")
		}
		in.StoragePlan = sp
	}

	return entitlement.Resolve(in)
}
