package application

import (
	"fmt"
	"reflect"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/omnierp/controlplane/pkg/eventbus"
)

// Controller registers HTTP routes on the shared router.
type Controller interface {
	Key() string
	Register(r *mux.Router)
}

// Module wires its repositories, services and controllers into the application.
type Module interface {
	Name() string
	Register(app Application) error
}

type Application interface {
	DB() *pgxpool.Pool
	EventPublisher() eventbus.EventBus
	Logger() *logrus.Logger

	RegisterServices(services ...interface{})
	Service(service interface{}) interface{}
	Services() map[reflect.Type]interface{}

	RegisterControllers(controllers ...Controller)
	Controllers() []Controller

	RegisterMiddleware(middleware ...mux.MiddlewareFunc)
	Middleware() []mux.MiddlewareFunc
}

type ApplicationOptions struct {
	Pool     *pgxpool.Pool
	EventBus eventbus.EventBus
	Logger   *logrus.Logger
}

func New(opts *ApplicationOptions) Application {
	return &application{
		pool:     opts.Pool,
		eventBus: opts.EventBus,
		logger:   opts.Logger,
		services: make(map[reflect.Type]interface{}),
	}
}

type application struct {
	pool        *pgxpool.Pool
	eventBus    eventbus.EventBus
	logger      *logrus.Logger
	services    map[reflect.Type]interface{}
	controllers map[string]Controller
	middleware  []mux.MiddlewareFunc
}

func (app *application) DB() *pgxpool.Pool {
	return app.pool
}

func (app *application) EventPublisher() eventbus.EventBus {
	return app.eventBus
}

func (app *application) Logger() *logrus.Logger {
	return app.logger
}

func (app *application) RegisterServices(services ...interface{}) {
	for _, service := range services {
		serviceType := reflect.TypeOf(service).Elem()
		app.services[serviceType] = service
	}
}

func (app *application) Service(service interface{}) interface{} {
	serviceType := reflect.TypeOf(service)
	svc, ok := app.services[serviceType]
	if !ok {
		panic(fmt.Sprintf("service %s not found", serviceType.Name()))
	}
	return svc
}

func (app *application) Services() map[reflect.Type]interface{} {
	return app.services
}

func (app *application) RegisterControllers(controllers ...Controller) {
	if app.controllers == nil {
		app.controllers = make(map[string]Controller)
	}
	for _, c := range controllers {
		app.controllers[c.Key()] = c
	}
}

func (app *application) Controllers() []Controller {
	out := make([]Controller, 0, len(app.controllers))
	for _, c := range app.controllers {
		out = append(out, c)
	}
	return out
}

func (app *application) RegisterMiddleware(middleware ...mux.MiddlewareFunc) {
	app.middleware = append(app.middleware, middleware...)
}

func (app *application) Middleware() []mux.MiddlewareFunc {
	return app.middleware
}
