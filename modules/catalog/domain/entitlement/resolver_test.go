package entitlement_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnierp/controlplane/modules/catalog/domain/aggregates/subscription"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/addon"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/module"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/plan"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/tier"
	"github.com/omnierp/controlplane/modules/catalog/domain/entitlement"
)

var (
	periodStart = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	asOf        = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
)

func starterCatalog() []*module.Module {
	return []*module.Module{
		module.New("crm", "CRM", module.WithIsCore(true)),
		module.New("inventory", "Inventory"),
		module.New("hr", "HR"),
		module.New("payroll", "Payroll", module.WithDependsOn("hr")),
	}
}

func starterPlan(codes ...string) *plan.Plan {
	return plan.New("starter", "Starter",
		plan.WithModuleCodes(codes...),
		plan.WithQuotas(10, 50, 5, 10000),
	)
}

func newSubscription(tenantID uuid.UUID, p *plan.Plan, opts ...subscription.Option) *subscription.Subscription {
	base := []subscription.Option{
		subscription.WithPeriod(periodStart, periodEnd),
	}
	return subscription.New(tenantID, p.ID(), p.Code(), append(base, opts...)...)
}

func TestResolve_PlanDefaults(t *testing.T) {
	p := starterPlan("crm", "inventory")
	sub := newSubscription(uuid.New(), p)

	got, err := entitlement.Resolve(entitlement.ResolveInput{
		Subscription: sub,
		Plan:         p,
		Definitions:  starterCatalog(),
		AsOf:         asOf,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"crm", "inventory"}, got.ModuleCodes())
	assert.Equal(t, entitlement.ProvenancePlan, got.Modules["crm"].Source)
	assert.Equal(t, int64(10), got.Users.Value)
	assert.Equal(t, int64(50), got.StorageGB.Value)
}

func TestResolve_TombstoneRemovesPlanModule(t *testing.T) {
	p := starterPlan("crm", "inventory")
	sub := newSubscription(uuid.New(), p, subscription.WithModuleItems(
		subscription.ModuleItem{ModuleCode: "inventory", Removed: true, ActivatedAt: periodStart},
	))

	got, err := entitlement.Resolve(entitlement.ResolveInput{
		Subscription: sub,
		Plan:         p,
		Definitions:  starterCatalog(),
		AsOf:         asOf,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"crm"}, got.ModuleCodes())
	assert.False(t, got.HasModule("inventory"))
}

func TestResolve_OverrideSetsMaxEntities(t *testing.T) {
	p := starterPlan("crm")
	max := int64(500)
	sub := newSubscription(uuid.New(), p, subscription.WithModuleItems(
		subscription.ModuleItem{ModuleCode: "crm", MaxEntities: &max, ActivatedAt: periodStart},
	))

	got, err := entitlement.Resolve(entitlement.ResolveInput{
		Subscription: sub,
		Plan:         p,
		Definitions:  starterCatalog(),
		AsOf:         asOf,
	})
	require.NoError(t, err)
	grant := got.Modules["crm"]
	require.NotNil(t, grant.MaxEntities)
	assert.Equal(t, int64(500), *grant.MaxEntities)
	assert.Equal(t, entitlement.ProvenanceOverride, grant.Source)
}

func TestResolve_ExpiredModuleItemIgnored(t *testing.T) {
	p := starterPlan("crm", "inventory")
	expired := periodStart.Add(24 * time.Hour)
	sub := newSubscription(uuid.New(), p, subscription.WithModuleItems(
		subscription.ModuleItem{ModuleCode: "inventory", Removed: true, ActivatedAt: periodStart, ExpiresAt: &expired},
	))

	got, err := entitlement.Resolve(entitlement.ResolveInput{
		Subscription: sub,
		Plan:         p,
		Definitions:  starterCatalog(),
		AsOf:         asOf,
	})
	require.NoError(t, err)
	// The tombstone expired before asOf, so the plan default is back in force.
	assert.True(t, got.HasModule("inventory"))
}

func TestResolve_MissingDependency(t *testing.T) {
	p := starterPlan("crm")
	sub := newSubscription(uuid.New(), p, subscription.WithModuleItems(
		subscription.ModuleItem{ModuleCode: "payroll", ActivatedAt: periodStart},
	))

	_, err := entitlement.Resolve(entitlement.ResolveInput{
		Subscription: sub,
		Plan:         p,
		Definitions:  starterCatalog(),
		AsOf:         asOf,
	})
	var depErr *entitlement.MissingDependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, "payroll", depErr.Module)
	assert.Equal(t, "hr", depErr.Requires)
}

func TestResolve_DependencySatisfiedByOverride(t *testing.T) {
	p := starterPlan("crm")
	sub := newSubscription(uuid.New(), p, subscription.WithModuleItems(
		subscription.ModuleItem{ModuleCode: "payroll", ActivatedAt: periodStart},
		subscription.ModuleItem{ModuleCode: "hr", ActivatedAt: periodStart},
	))

	got, err := entitlement.Resolve(entitlement.ResolveInput{
		Subscription: sub,
		Plan:         p,
		Definitions:  starterCatalog(),
		AsOf:         asOf,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"crm", "hr", "payroll"}, got.ModuleCodes())
}

func TestResolve_ConflictingOverride(t *testing.T) {
	p := starterPlan("crm")
	max := int64(100)
	sub := newSubscription(uuid.New(), p, subscription.WithModuleItems(
		subscription.ModuleItem{ModuleCode: "crm", MaxEntities: &max, ActivatedAt: periodStart},
		subscription.ModuleItem{ModuleCode: "crm", Removed: true, ActivatedAt: periodStart},
	))

	_, err := entitlement.Resolve(entitlement.ResolveInput{
		Subscription: sub,
		Plan:         p,
		Definitions:  starterCatalog(),
		AsOf:         asOf,
	})
	var confErr *entitlement.ConflictingOverrideError
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, "crm", confErr.ModuleCode)
}

func TestResolve_QuantityAddOnSumsIntoStorage(t *testing.T) {
	p := starterPlan("crm")
	sub := newSubscription(uuid.New(), p, subscription.WithAddOnItems(
		subscription.AddOnItem{AddOnCode: "extra-storage", Quantity: 1, ActivatedAt: periodStart},
	))
	extraStorage := addon.New("extra-storage", "Extra Storage", addon.KindQuantity,
		addon.WithQuantity(addon.UnitGB, 50),
	)
	storagePlan := tier.NewStoragePlan(100, decimal.Zero)

	got, err := entitlement.Resolve(entitlement.ResolveInput{
		Subscription: sub,
		Plan:         p,
		Definitions:  starterCatalog(),
		AddOns:       []*addon.AddOn{extraStorage},
		StoragePlan:  storagePlan,
		AsOf:         asOf,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(150), got.StorageGB.Value)
	assert.Equal(t, entitlement.ProvenanceStoragePlan, got.StorageGB.Source)
	assert.Equal(t, int64(50), got.StorageGB.FromAddOns)
}

func TestResolve_ExpiredAddOnExcluded(t *testing.T) {
	p := starterPlan("crm")
	expired := periodStart.Add(24 * time.Hour)
	sub := newSubscription(uuid.New(), p, subscription.WithAddOnItems(
		subscription.AddOnItem{AddOnCode: "extra-storage", Quantity: 1, ActivatedAt: periodStart, ExpiresAt: &expired},
	))
	extraStorage := addon.New("extra-storage", "Extra Storage", addon.KindQuantity,
		addon.WithQuantity(addon.UnitGB, 50),
	)

	got, err := entitlement.Resolve(entitlement.ResolveInput{
		Subscription: sub,
		Plan:         p,
		Definitions:  starterCatalog(),
		AddOns:       []*addon.AddOn{extraStorage},
		AsOf:         asOf,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(50), got.StorageGB.Value)
	assert.Zero(t, got.StorageGB.FromAddOns)
}

func TestResolve_FeatureAddOnGrantsFlag(t *testing.T) {
	p := starterPlan("crm")
	sub := newSubscription(uuid.New(), p, subscription.WithAddOnItems(
		subscription.AddOnItem{AddOnCode: "advanced-reports", ActivatedAt: periodStart},
	))
	reports := addon.New("advanced-reports", "Advanced Reports", addon.KindFeature,
		addon.WithRequiresModule("crm"),
	)

	got, err := entitlement.Resolve(entitlement.ResolveInput{
		Subscription: sub,
		Plan:         p,
		Definitions:  starterCatalog(),
		AddOns:       []*addon.AddOn{reports},
		AsOf:         asOf,
	})
	require.NoError(t, err)
	assert.True(t, got.HasFeature("advanced-reports"))
	assert.Equal(t, entitlement.ProvenanceAddOn, got.Features["advanced-reports"].Source)
}

func TestResolve_FeatureAddOnRequirementUnmet(t *testing.T) {
	p := starterPlan("crm")
	sub := newSubscription(uuid.New(), p, subscription.WithAddOnItems(
		subscription.AddOnItem{AddOnCode: "payroll-export", ActivatedAt: periodStart},
	))
	export := addon.New("payroll-export", "Payroll Export", addon.KindFeature,
		addon.WithRequiresModule("payroll"),
	)

	_, err := entitlement.Resolve(entitlement.ResolveInput{
		Subscription: sub,
		Plan:         p,
		Definitions:  starterCatalog(),
		AddOns:       []*addon.AddOn{export},
		AsOf:         asOf,
	})
	var reqErr *entitlement.AddOnRequirementError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "payroll-export", reqErr.AddOnCode)
	assert.Equal(t, "payroll", reqErr.Requires)
}

func TestResolve_TierRaisesUserCeiling(t *testing.T) {
	p := starterPlan("crm")
	sub := newSubscription(uuid.New(), p)
	band := tier.NewUserTier(11, 25, decimal.Zero)

	got, err := entitlement.Resolve(entitlement.ResolveInput{
		Subscription: sub,
		Plan:         p,
		Definitions:  starterCatalog(),
		Tier:         band,
		AsOf:         asOf,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(25), got.Users.Value)
	assert.Equal(t, entitlement.ProvenanceTier, got.Users.Source)
}

func TestResolve_TiePrefersPlanBase(t *testing.T) {
	p := starterPlan("crm")
	sub := newSubscription(uuid.New(), p)
	band := tier.NewUserTier(1, 10, decimal.Zero)

	got, err := entitlement.Resolve(entitlement.ResolveInput{
		Subscription: sub,
		Plan:         p,
		Definitions:  starterCatalog(),
		Tier:         band,
		AsOf:         asOf,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Users.Value)
	assert.Equal(t, entitlement.ProvenancePlan, got.Users.Source)
}

func TestResolve_AsOfBeforePeriodStart(t *testing.T) {
	p := starterPlan("crm")
	sub := newSubscription(uuid.New(), p)

	_, err := entitlement.Resolve(entitlement.ResolveInput{
		Subscription: sub,
		Plan:         p,
		Definitions:  starterCatalog(),
		AsOf:         periodStart.Add(-time.Hour),
	})
	require.ErrorIs(t, err, entitlement.ErrAsOfBeforePeriodStart)
}

func TestResolve_ExpiredSubscription(t *testing.T) {
	p := starterPlan("crm")
	sub := newSubscription(uuid.New(), p, subscription.WithStatus(subscription.StatusCancelled))

	_, err := entitlement.Resolve(entitlement.ResolveInput{
		Subscription: sub,
		Plan:         p,
		Definitions:  starterCatalog(),
		AsOf:         periodEnd.Add(time.Hour),
	})
	require.ErrorIs(t, err, entitlement.ErrExpiredSubscription)
}

func TestResolve_TerminalWithinPeriodStillResolves(t *testing.T) {
	p := starterPlan("crm")
	sub := newSubscription(uuid.New(), p, subscription.WithStatus(subscription.StatusCancelled))

	got, err := entitlement.Resolve(entitlement.ResolveInput{
		Subscription: sub,
		Plan:         p,
		Definitions:  starterCatalog(),
		AsOf:         asOf,
	})
	require.NoError(t, err)
	assert.True(t, got.HasModule("crm"))
}

func TestResolve_Deterministic(t *testing.T) {
	p := starterPlan("crm", "inventory")
	max := int64(250)
	sub := newSubscription(uuid.New(), p,
		subscription.WithModuleItems(
			subscription.ModuleItem{ModuleCode: "hr", ActivatedAt: periodStart},
			subscription.ModuleItem{ModuleCode: "crm", MaxEntities: &max, ActivatedAt: periodStart},
		),
		subscription.WithAddOnItems(
			subscription.AddOnItem{AddOnCode: "extra-storage", Quantity: 2, ActivatedAt: periodStart},
		),
	)
	extraStorage := addon.New("extra-storage", "Extra Storage", addon.KindQuantity,
		addon.WithQuantity(addon.UnitGB, 25),
	)
	in := entitlement.ResolveInput{
		Subscription: sub,
		Plan:         p,
		Definitions:  starterCatalog(),
		AddOns:       []*addon.AddOn{extraStorage},
		Tier:         tier.NewUserTier(11, 50, decimal.Zero),
		AsOf:         asOf,
	}

	first, err := entitlement.Resolve(in)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := entitlement.Resolve(in)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, int64(100), first.StorageGB.Value) // 50 base + 2x25
}

// Dependency closure: whatever resolves, no module may be present without its
// declared dependencies.
func TestResolve_DependencyClosureProperty(t *testing.T) {
	defs := []*module.Module{
		module.New("a", "A"),
		module.New("b", "B", module.WithDependsOn("a")),
		module.New("c", "C", module.WithDependsOn("b")),
		module.New("d", "D", module.WithDependsOn("a", "c")),
	}
	depsByCode := map[string][]string{}
	for _, d := range defs {
		depsByCode[d.Code()] = d.DependsOn()
	}

	combos := [][]string{
		{"a"}, {"a", "b"}, {"a", "b", "c"}, {"a", "b", "c", "d"},
		{"b"}, {"c", "d"}, {"a", "c"}, {"d"},
	}
	for _, codes := range combos {
		p := starterPlan(codes...)
		sub := newSubscription(uuid.New(), p)
		got, err := entitlement.Resolve(entitlement.ResolveInput{
			Subscription: sub,
			Plan:         p,
			Definitions:  defs,
			AsOf:         asOf,
		})
		if err != nil {
			var depErr *entitlement.MissingDependencyError
			require.ErrorAs(t, err, &depErr, "combo %v", codes)
			continue
		}
		for _, code := range got.ModuleCodes() {
			for _, dep := range depsByCode[code] {
				assert.True(t, got.HasModule(dep), "combo %v: %s present without %s", codes, code, dep)
			}
		}
	}
}
