package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnierp/controlplane/modules/catalog/domain/aggregates/subscription"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/plan"
	"github.com/omnierp/controlplane/modules/catalog/infrastructure/persistence"
	"github.com/omnierp/controlplane/modules/catalog/services"
	"github.com/omnierp/controlplane/pkg/eventbus"
)

func newTestBus() eventbus.EventBus {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return eventbus.NewEventPublisher(log)
}

func setupSubscriptionTest(t *testing.T) (*services.SubscriptionService, *persistence.InmemSubscriptionRepository, *persistence.InmemPlanRepository) {
	t.Helper()
	subRepo := persistence.NewInmemSubscriptionRepository()
	planRepo := persistence.NewInmemPlanRepository()
	return services.NewSubscriptionService(subRepo, planRepo, newTestBus()), subRepo, planRepo
}

func newTestPlan(t *testing.T, planRepo *persistence.InmemPlanRepository, code string) *plan.Plan {
	t.Helper()
	p := plan.New(code, "Plan "+code,
		plan.WithPricing(decimal.NewFromInt(49), decimal.NewFromInt(490)),
		plan.WithModuleCodes("crm"),
		plan.WithQuotas(10, 50, 5, 10000),
	)
	created, err := planRepo.Create(context.Background(), p)
	require.NoError(t, err)
	return created
}

func newTestSubscription(tenantID uuid.UUID, p *plan.Plan, now time.Time, opts ...subscription.Option) *subscription.Subscription {
	base := []subscription.Option{
		subscription.WithStatus(subscription.StatusActive),
		subscription.WithPeriod(now, now.Add(30*24*time.Hour)),
		subscription.WithPrice(p.MonthlyPrice()),
	}
	return subscription.New(tenantID, p.ID(), p.Code(), append(base, opts...)...)
}

func TestSubscriptionService_Create_RejectsSecondLiveSubscription(t *testing.T) {
	t.Parallel()
	sut, _, planRepo := setupSubscriptionTest(t)
	ctx := context.Background()
	now := time.Now()

	p := newTestPlan(t, planRepo, "starter")
	tenantID := uuid.New()

	_, err := sut.Create(ctx, newTestSubscription(tenantID, p, now))
	require.NoError(t, err)

	_, err = sut.Create(ctx, newTestSubscription(tenantID, p, now))
	require.ErrorIs(t, err, services.ErrActiveSubscriptionExists)
}

func TestSubscriptionService_Create_AllowedAfterCancellation(t *testing.T) {
	t.Parallel()
	sut, _, planRepo := setupSubscriptionTest(t)
	ctx := context.Background()
	now := time.Now()

	p := newTestPlan(t, planRepo, "starter")
	tenantID := uuid.New()

	first, err := sut.Create(ctx, newTestSubscription(tenantID, p, now))
	require.NoError(t, err)

	_, err = sut.Cancel(ctx, first.ID())
	require.NoError(t, err)

	_, err = sut.Create(ctx, newTestSubscription(tenantID, p, now))
	require.NoError(t, err)
}

func TestSubscriptionService_Create_RejectsUnknownPlan(t *testing.T) {
	t.Parallel()
	sut, _, _ := setupSubscriptionTest(t)
	ctx := context.Background()
	now := time.Now()

	ghost := plan.New("ghost", "Ghost")
	sub := newTestSubscription(uuid.New(), ghost, now)

	_, err := sut.Create(ctx, sub)
	require.Error(t, err)
}

func TestSubscriptionService_ChangePlan_SupersedesOldSubscription(t *testing.T) {
	t.Parallel()
	sut, subRepo, planRepo := setupSubscriptionTest(t)
	ctx := context.Background()
	now := time.Now()

	oldPlan := newTestPlan(t, planRepo, "starter")
	newPlan := newTestPlan(t, planRepo, "business")
	tenantID := uuid.New()

	addOnItem := subscription.AddOnItem{
		AddOnCode:   "extra_storage_100",
		Quantity:    1,
		ActivatedAt: now.Add(-time.Hour),
	}
	moduleOverride := subscription.ModuleItem{
		ModuleCode:  "warehouse",
		ActivatedAt: now.Add(-time.Hour),
	}
	old, err := sut.Create(ctx, newTestSubscription(tenantID, oldPlan, now,
		subscription.WithAddOnItems(addOnItem),
		subscription.WithModuleItems(moduleOverride),
	))
	require.NoError(t, err)

	replacement, err := sut.ChangePlan(ctx, tenantID, newPlan, subscription.CycleYearly, now)
	require.NoError(t, err)

	assert.Equal(t, newPlan.Code(), replacement.PlanCode())
	assert.Equal(t, subscription.CycleYearly, replacement.BillingCycle())
	assert.True(t, replacement.Price().Equal(newPlan.YearlyPrice()))

	// Add-on lines carry over, module overrides do not.
	require.Len(t, replacement.AddOnItems(), 1)
	assert.Equal(t, "extra_storage_100", replacement.AddOnItems()[0].AddOnCode)
	assert.Empty(t, replacement.ModuleItems())

	superseded, err := subRepo.GetByID(ctx, old.ID())
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusCancelled, superseded.Status())
	require.NotNil(t, superseded.SupersededByID())
	assert.Equal(t, replacement.ID(), *superseded.SupersededByID())

	live, err := subRepo.GetActiveByTenantID(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, replacement.ID(), live.ID())
}

func TestSubscriptionService_Renew_RollsPeriodForward(t *testing.T) {
	t.Parallel()
	sut, _, planRepo := setupSubscriptionTest(t)
	ctx := context.Background()
	now := time.Now()

	p := newTestPlan(t, planRepo, "starter")
	sub, err := sut.Create(ctx, newTestSubscription(uuid.New(), p, now.Add(-40*24*time.Hour),
		subscription.WithStatus(subscription.StatusPastDue),
	))
	require.NoError(t, err)

	renewed, err := sut.Renew(ctx, sub.ID(), now)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, renewed.Status())
	assert.WithinDuration(t, now, renewed.CurrentPeriodStart(), time.Second)
	assert.WithinDuration(t, now.Add(30*24*time.Hour), renewed.CurrentPeriodEnd(), time.Second)
}

func TestSubscriptionService_StatusChange_RejectsTerminal(t *testing.T) {
	t.Parallel()
	sut, _, planRepo := setupSubscriptionTest(t)
	ctx := context.Background()
	now := time.Now()

	p := newTestPlan(t, planRepo, "starter")
	sub, err := sut.Create(ctx, newTestSubscription(uuid.New(), p, now))
	require.NoError(t, err)

	_, err = sut.Cancel(ctx, sub.ID())
	require.NoError(t, err)

	_, err = sut.Reactivate(ctx, sub.ID())
	require.ErrorIs(t, err, services.ErrTerminalStatus)

	_, err = sut.Renew(ctx, sub.ID(), now)
	require.ErrorIs(t, err, services.ErrTerminalStatus)
}
