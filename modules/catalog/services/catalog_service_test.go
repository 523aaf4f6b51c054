package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnierp/controlplane/modules/catalog/domain/entities/addon"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/module"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/plan"
	"github.com/omnierp/controlplane/modules/catalog/infrastructure/persistence"
	"github.com/omnierp/controlplane/modules/catalog/services"
)

func setupCatalogTest(t *testing.T) (*services.CatalogService, *persistence.InmemModuleRepository) {
	t.Helper()
	moduleRepo := persistence.NewInmemModuleRepository()
	sut := services.NewCatalogService(
		persistence.NewInmemPlanRepository(),
		moduleRepo,
		persistence.NewInmemAddOnRepository(),
		persistence.NewInmemTierRepository(),
		newTestBus(),
	)
	return sut, moduleRepo
}

func TestCatalogService_CreateModule_RejectsCycle(t *testing.T) {
	t.Parallel()
	sut, _ := setupCatalogTest(t)
	ctx := context.Background()

	_, err := sut.CreateModule(ctx, module.New("crm", "CRM"))
	require.NoError(t, err)
	_, err = sut.CreateModule(ctx, module.New("sales", "Sales", module.WithDependsOn("crm")))
	require.NoError(t, err)

	// Re-pointing crm at sales closes the loop.
	_, err = sut.UpdateModule(ctx, module.New("crm", "CRM", module.WithDependsOn("sales")))
	var cycleErr *module.CycleError
	require.ErrorAs(t, err, &cycleErr)
}

func TestCatalogService_CreateModule_RejectsUnknownDependency(t *testing.T) {
	t.Parallel()
	sut, _ := setupCatalogTest(t)
	ctx := context.Background()

	_, err := sut.CreateModule(ctx, module.New("payroll", "Payroll", module.WithDependsOn("hr")))
	var unknownErr *module.UnknownDependencyError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "hr", unknownErr.Requires)
}

func TestCatalogService_CreatePlan_RejectsUnknownModuleCode(t *testing.T) {
	t.Parallel()
	sut, _ := setupCatalogTest(t)
	ctx := context.Background()

	_, err := sut.CreateModule(ctx, module.New("crm", "CRM"))
	require.NoError(t, err)

	_, err = sut.CreatePlan(ctx, plan.New("starter", "Starter", plan.WithModuleCodes("crm", "warehouse")))
	require.Error(t, err)

	created, err := sut.CreatePlan(ctx, plan.New("starter", "Starter", plan.WithModuleCodes("crm")))
	require.NoError(t, err)
	assert.True(t, created.IncludesModule("crm"))
}

func TestCatalogService_CreateAddOn_RejectsUnknownRequiredModule(t *testing.T) {
	t.Parallel()
	sut, _ := setupCatalogTest(t)
	ctx := context.Background()

	_, err := sut.CreateAddOn(ctx, addon.New("api_access", "API Access", addon.KindFeature,
		addon.WithRequiresModule("integrations"),
	))
	require.Error(t, err)

	_, err = sut.CreateModule(ctx, module.New("integrations", "Integrations"))
	require.NoError(t, err)

	_, err = sut.CreateAddOn(ctx, addon.New("api_access", "API Access", addon.KindFeature,
		addon.WithRequiresModule("integrations"),
	))
	require.NoError(t, err)
}
