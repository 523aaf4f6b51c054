package server

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/omnierp/controlplane/pkg/application"
	"github.com/omnierp/controlplane/pkg/configuration"
	"github.com/omnierp/controlplane/pkg/httpapi"
	"github.com/omnierp/controlplane/pkg/middleware"
	"github.com/omnierp/controlplane/pkg/server"
)

type DefaultOptions struct {
	Logger        *logrus.Logger
	Configuration *configuration.Configuration
	Application   application.Application
	Pool          *pgxpool.Pool
}

func Default(options *DefaultOptions) (*server.HTTPServer, error) {
	app := options.Application

	app.RegisterMiddleware(
		middleware.WithLogger(options.Logger, middleware.LoggerOptions{}),
		middleware.WithPool(options.Pool),
	)

	serverInstance := server.NewHTTPServer(
		app,
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httpapi.WriteError(w, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)
		}),
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httpapi.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
		}),
	)
	return serverInstance, nil
}
