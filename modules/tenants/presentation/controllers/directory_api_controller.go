package controllers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/omnierp/controlplane/modules/tenants/domain/aggregates/tenant"
	"github.com/omnierp/controlplane/modules/tenants/infrastructure/directory"
	"github.com/omnierp/controlplane/modules/tenants/presentation/mappers"
	"github.com/omnierp/controlplane/modules/tenants/services"
	"github.com/omnierp/controlplane/pkg/application"
)

// DirectoryAPIController answers tenant resolution queries for edge proxies
// and machine clients.
type DirectoryAPIController struct {
	app       application.Application
	directory *services.DirectoryService
	basePath  string
}

func NewDirectoryAPIController(app application.Application) application.Controller {
	return &DirectoryAPIController{
		app:       app,
		directory: app.Service(services.DirectoryService{}).(*services.DirectoryService),
		basePath:  "/directory/api",
	}
}

func (c *DirectoryAPIController) Key() string {
	return c.basePath
}

func (c *DirectoryAPIController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("/resolve", c.Resolve).Methods(http.MethodGet)
}

// Resolve looks up a tenant by exactly one of: ?code=, ?domain=, or the
// X-API-Key header. Deleted tenants answer 410 so callers stop retrying.
func (c *DirectoryAPIController) Resolve(w http.ResponseWriter, r *http.Request) {
	var (
		desc *directory.Descriptor
		err  error
	)
	code := r.URL.Query().Get("code")
	domain := r.URL.Query().Get("domain")
	apiKey := r.Header.Get("X-API-Key")

	switch {
	case code != "":
		desc, err = c.directory.LookupByCode(r.Context(), code)
	case domain != "":
		desc, err = c.directory.LookupByDomain(r.Context(), domain)
	case apiKey != "":
		desc, err = c.directory.LookupByAPIKey(r.Context(), apiKey)
	default:
		writeJSONError(w, http.StatusBadRequest, "DIRECTORY_MISSING_SELECTOR", "provide code, domain or X-API-Key")
		return
	}

	switch {
	case errors.Is(err, tenant.ErrGone):
		writeJSONError(w, http.StatusGone, "TENANT_GONE", "tenant has been deleted")
	case errors.Is(err, tenant.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "TENANT_NOT_FOUND", "tenant not found")
	case err != nil:
		writeJSONError(w, http.StatusInternalServerError, "DIRECTORY_INTERNAL", "internal error")
	default:
		writeJSON(w, http.StatusOK, mappers.DescriptorToViewModel(desc))
	}
}
