package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/omnierp/controlplane/modules/tenants/domain/aggregates/tenant"
	"github.com/omnierp/controlplane/modules/tenants/presentation/mappers"
	"github.com/omnierp/controlplane/modules/tenants/presentation/viewmodels"
	"github.com/omnierp/controlplane/modules/tenants/services"
	"github.com/omnierp/controlplane/pkg/application"
)

// TenantAPIController drives the tenant lifecycle: register, provision, retry,
// suspend, reactivate, delete and credential rotation.
type TenantAPIController struct {
	app       application.Application
	lifecycle *services.LifecycleService
	basePath  string
}

func NewTenantAPIController(app application.Application) application.Controller {
	return &TenantAPIController{
		app:       app,
		lifecycle: app.Service(services.LifecycleService{}).(*services.LifecycleService),
		basePath:  "/tenants/api",
	}
}

func (c *TenantAPIController) Key() string {
	return c.basePath
}

func (c *TenantAPIController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("/tenants", c.List).Methods(http.MethodGet)
	router.HandleFunc("/tenants", c.Create).Methods(http.MethodPost)
	router.HandleFunc("/tenants/{id}", c.Get).Methods(http.MethodGet)
	router.HandleFunc("/tenants/{id}", c.Delete).Methods(http.MethodDelete)
	router.HandleFunc("/tenants/{id}/provision", c.Provision).Methods(http.MethodPost)
	router.HandleFunc("/tenants/{id}/retry", c.Retry).Methods(http.MethodPost)
	router.HandleFunc("/tenants/{id}/suspend", c.Suspend).Methods(http.MethodPost)
	router.HandleFunc("/tenants/{id}/reactivate", c.Reactivate).Methods(http.MethodPost)
	router.HandleFunc("/tenants/{id}/rotate-credentials", c.RotateCredentials).Methods(http.MethodPost)
}

func (c *TenantAPIController) List(w http.ResponseWriter, r *http.Request) {
	tenants, err := c.lifecycle.GetAll(r.Context())
	if err != nil {
		writeTenantError(w, err)
		return
	}
	out := make([]*viewmodels.Tenant, 0, len(tenants))
	for _, t := range tenants {
		out = append(out, mappers.TenantToViewModel(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (c *TenantAPIController) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := tenantID(w, r)
	if !ok {
		return
	}
	t, err := c.lifecycle.GetByID(r.Context(), id)
	if err != nil {
		writeTenantError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.TenantToViewModel(t))
}

func (c *TenantAPIController) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code   string `json:"code"`
		Name   string `json:"name"`
		Domain string `json:"domain"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "TENANT_INVALID_JSON", "invalid json")
		return
	}
	if strings.TrimSpace(body.Code) == "" || strings.TrimSpace(body.Name) == "" {
		writeJSONError(w, http.StatusUnprocessableEntity, "TENANT_VALIDATION_FAILED", "code and name are required")
		return
	}

	created, apiKey, err := c.lifecycle.Register(r.Context(), services.RegisterParams{
		Code:   strings.TrimSpace(body.Code),
		Name:   strings.TrimSpace(body.Name),
		Domain: strings.TrimSpace(body.Domain),
	})
	if err != nil {
		writeTenantError(w, err)
		return
	}

	// The raw API key appears in this response and nowhere else.
	writeJSON(w, http.StatusCreated, map[string]any{
		"tenant":  mappers.TenantToViewModel(created),
		"api_key": apiKey,
	})
}

func (c *TenantAPIController) Provision(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.lifecycle.Provision)
}

func (c *TenantAPIController) Retry(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.lifecycle.Retry)
}

func (c *TenantAPIController) Suspend(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.lifecycle.Suspend)
}

func (c *TenantAPIController) Reactivate(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.lifecycle.Reactivate)
}

func (c *TenantAPIController) Delete(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.lifecycle.Delete)
}

func (c *TenantAPIController) RotateCredentials(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.lifecycle.RotateCredentials)
}

func (c *TenantAPIController) transition(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error),
) {
	id, ok := tenantID(w, r)
	if !ok {
		return
	}
	t, err := apply(r.Context(), id)
	if err != nil {
		// A failed provisioning run still lands the tenant in a reportable
		// state.
		if t != nil && t.Status() == tenant.StatusFailed {
			writeJSON(w, http.StatusConflict, map[string]any{
				"tenant": mappers.TenantToViewModel(t),
				"error":  t.FailureReason(),
			})
			return
		}
		writeTenantError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.TenantToViewModel(t))
}

func tenantID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "TENANT_INVALID_ID", "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func writeTenantError(w http.ResponseWriter, err error) {
	var transitionErr *tenant.TransitionError
	switch {
	case errors.Is(err, tenant.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "TENANT_NOT_FOUND", "tenant not found")
	case errors.Is(err, tenant.ErrGone):
		writeJSONError(w, http.StatusGone, "TENANT_GONE", "tenant has been deleted")
	case errors.Is(err, services.ErrCodeTaken):
		writeJSONError(w, http.StatusConflict, "TENANT_CODE_TAKEN", "tenant code is already in use")
	case errors.Is(err, services.ErrOpenSubscriptions):
		writeJSONError(w, http.StatusConflict, "TENANT_OPEN_SUBSCRIPTIONS", "tenant has non-terminal subscriptions")
	case errors.As(err, &transitionErr):
		writeJSONError(w, http.StatusConflict, "TENANT_INVALID_TRANSITION", transitionErr.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, "TENANT_INTERNAL", "internal error")
	}
}
