package metrics

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/omnierp/controlplane/pkg/application"
)

// PrometheusController serves the default registry, which carries the router
// and directory metrics. The path is configurable so deployments can hide it
// behind ingress rules.
type PrometheusController struct {
	log  *logrus.Logger
	path string
}

func NewPrometheusController(log *logrus.Logger, path string) application.Controller {
	if path == "" {
		path = "/debug/prometheus"
	}
	return &PrometheusController{log: log, path: path}
}

func (c *PrometheusController) Key() string {
	return c.path
}

func (c *PrometheusController) Register(r *mux.Router) {
	handler := promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		ErrorLog: c.log,
	})
	r.Handle(c.path, handler).Methods(http.MethodGet)
}
