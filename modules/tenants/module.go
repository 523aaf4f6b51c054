package tenants

import (
	"github.com/redis/go-redis/v9"

	catalogpersistence "github.com/omnierp/controlplane/modules/catalog/infrastructure/persistence"
	"github.com/omnierp/controlplane/modules/tenants/infrastructure/dbrouter"
	"github.com/omnierp/controlplane/modules/tenants/infrastructure/directory"
	"github.com/omnierp/controlplane/modules/tenants/infrastructure/persistence"
	"github.com/omnierp/controlplane/modules/tenants/infrastructure/provision"
	"github.com/omnierp/controlplane/modules/tenants/presentation/controllers"
	"github.com/omnierp/controlplane/modules/tenants/services"
	"github.com/omnierp/controlplane/pkg/application"
	"github.com/omnierp/controlplane/pkg/configuration"
	"github.com/omnierp/controlplane/pkg/kms"
)

func NewModule() application.Module {
	return &Module{}
}

type Module struct{}

func (m *Module) Register(app application.Application) error {
	conf := configuration.Use()

	km, err := kms.NewFromRef(conf.KMS.MasterKeyRef)
	if err != nil {
		return err
	}

	repo := persistence.NewTenantRepository()

	var cache directory.Cache = directory.NewInmemCache()
	if conf.Redis.Enabled {
		client := redis.NewClient(&redis.Options{Addr: conf.Redis.URL})
		cache = directory.NewRedisCache(client, app.Logger())
	}
	dir := services.NewDirectoryService(repo, cache, conf.Directory.CacheTTL, conf.Directory.NegativeCacheTTL)

	router := dbrouter.New(
		services.NewTenantCredentialSource(repo, km),
		dbrouter.NewPgxDialer(),
		dbrouter.Options{
			MaxConnsPerTenant: conf.Router.MaxConnsPerTenant,
			AcquireTimeout:    conf.Router.AcquireTimeout,
			RotationRetries:   conf.Router.RotationRetries,
			RotationTimeout:   conf.Router.RotationTimeout,
		},
		app.Logger(),
	)

	lifecycle := services.NewLifecycleService(
		repo,
		provision.NewPgxProvisioner(conf.Database.Opts, conf.Database.Host, app.Logger()),
		catalogpersistence.NewSubscriptionRepository(),
		km,
		router,
		dir,
		app.EventPublisher(),
		conf.Router.RotationWindow,
	)
	router.SetRotator(dbrouter.RotatorFunc(lifecycle.ReissueCredential))

	app.RegisterServices(
		dir,
		lifecycle,
		router,
	)

	app.RegisterControllers(
		controllers.NewTenantAPIController(app),
		controllers.NewDirectoryAPIController(app),
	)

	return nil
}

func (m *Module) Name() string {
	return "tenants"
}
