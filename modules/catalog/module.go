package catalog

import (
	"github.com/omnierp/controlplane/modules/catalog/infrastructure/persistence"
	"github.com/omnierp/controlplane/modules/catalog/presentation/controllers"
	"github.com/omnierp/controlplane/modules/catalog/services"
	"github.com/omnierp/controlplane/pkg/application"
)

func NewModule() application.Module {
	return &Module{}
}

type Module struct{}

func (m *Module) Register(app application.Application) error {
	plans := persistence.NewPlanRepository()
	modules := persistence.NewModuleRepository()
	addOns := persistence.NewAddOnRepository()
	tiers := persistence.NewTierRepository()
	subscriptions := persistence.NewSubscriptionRepository()

	app.RegisterServices(
		services.NewCatalogService(plans, modules, addOns, tiers, app.EventPublisher()),
		services.NewSubscriptionService(subscriptions, plans, app.EventPublisher()),
		services.NewEntitlementService(subscriptions, plans, modules, addOns, tiers),
	)

	app.RegisterControllers(
		controllers.NewCatalogAPIController(app),
		controllers.NewSubscriptionAPIController(app),
	)

	return nil
}

func (m *Module) Name() string {
	return "catalog"
}
