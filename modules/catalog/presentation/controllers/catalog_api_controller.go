package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/omnierp/controlplane/modules/catalog/domain/entities/module"
	"github.com/omnierp/controlplane/modules/catalog/infrastructure/persistence"
	"github.com/omnierp/controlplane/modules/catalog/presentation/controllers/dtos"
	"github.com/omnierp/controlplane/modules/catalog/presentation/mappers"
	"github.com/omnierp/controlplane/modules/catalog/presentation/viewmodels"
	"github.com/omnierp/controlplane/modules/catalog/services"
	"github.com/omnierp/controlplane/pkg/application"
	"github.com/omnierp/controlplane/pkg/middleware"
)

// CatalogAPIController exposes the master catalog: plans, modules, add-ons and
// pricing tiers.
type CatalogAPIController struct {
	app      application.Application
	catalog  *services.CatalogService
	basePath string
}

func NewCatalogAPIController(app application.Application) application.Controller {
	return &CatalogAPIController{
		app:      app,
		catalog:  app.Service(services.CatalogService{}).(*services.CatalogService),
		basePath: "/catalog/api",
	}
}

func (c *CatalogAPIController) Key() string {
	return c.basePath
}

func (c *CatalogAPIController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("/plans", c.ListPlans).Methods(http.MethodGet)
	router.HandleFunc("/plans/{code}", c.GetPlan).Methods(http.MethodGet)
	router.HandleFunc("/modules", c.ListModules).Methods(http.MethodGet)
	router.HandleFunc("/addons", c.ListAddOns).Methods(http.MethodGet)
	router.HandleFunc("/user-tiers", c.ListUserTiers).Methods(http.MethodGet)
	router.HandleFunc("/storage-plans", c.ListStoragePlans).Methods(http.MethodGet)

	writeRouter := r.PathPrefix(c.basePath).Subrouter()
	writeRouter.Use(middleware.WithTransaction())
	writeRouter.HandleFunc("/plans", c.CreatePlan).Methods(http.MethodPost)
	writeRouter.HandleFunc("/plans/{code}", c.UpdatePlan).Methods(http.MethodPut)
	writeRouter.HandleFunc("/modules", c.CreateModule).Methods(http.MethodPost)
	writeRouter.HandleFunc("/modules/{code}", c.UpdateModule).Methods(http.MethodPut)
	writeRouter.HandleFunc("/addons", c.CreateAddOn).Methods(http.MethodPost)
}

func (c *CatalogAPIController) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := c.catalog.GetPlans(r.Context())
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	out := make([]*viewmodels.Plan, 0, len(plans))
	for _, p := range plans {
		out = append(out, mappers.PlanToViewModel(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (c *CatalogAPIController) GetPlan(w http.ResponseWriter, r *http.Request) {
	p, err := c.catalog.GetPlanByCode(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.PlanToViewModel(p))
}

func (c *CatalogAPIController) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var dto dtos.SavePlanDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeJSONError(w, http.StatusBadRequest, "CATALOG_INVALID_JSON", "invalid json")
		return
	}
	if errs, ok := dto.Ok(); !ok {
		writeJSONError(w, http.StatusUnprocessableEntity, "CATALOG_VALIDATION_FAILED", validationMessage(errs))
		return
	}
	created, err := c.catalog.CreatePlan(r.Context(), dto.ToEntity(uuid.Nil))
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mappers.PlanToViewModel(created))
}

func (c *CatalogAPIController) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	existing, err := c.catalog.GetPlanByCode(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	var dto dtos.SavePlanDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeJSONError(w, http.StatusBadRequest, "CATALOG_INVALID_JSON", "invalid json")
		return
	}
	dto.Code = existing.Code()
	if errs, ok := dto.Ok(); !ok {
		writeJSONError(w, http.StatusUnprocessableEntity, "CATALOG_VALIDATION_FAILED", validationMessage(errs))
		return
	}
	updated, err := c.catalog.UpdatePlan(r.Context(), dto.ToEntity(existing.ID()))
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.PlanToViewModel(updated))
}

func (c *CatalogAPIController) ListModules(w http.ResponseWriter, r *http.Request) {
	mods, err := c.catalog.GetModules(r.Context())
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	out := make([]*viewmodels.Module, 0, len(mods))
	for _, m := range mods {
		out = append(out, mappers.ModuleToViewModel(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (c *CatalogAPIController) CreateModule(w http.ResponseWriter, r *http.Request) {
	var dto dtos.SaveModuleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeJSONError(w, http.StatusBadRequest, "CATALOG_INVALID_JSON", "invalid json")
		return
	}
	if errs, ok := dto.Ok(); !ok {
		writeJSONError(w, http.StatusUnprocessableEntity, "CATALOG_VALIDATION_FAILED", validationMessage(errs))
		return
	}
	created, err := c.catalog.CreateModule(r.Context(), dto.ToEntity(uuid.Nil))
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mappers.ModuleToViewModel(created))
}

func (c *CatalogAPIController) UpdateModule(w http.ResponseWriter, r *http.Request) {
	existing, err := c.catalog.GetModuleByCode(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	var dto dtos.SaveModuleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeJSONError(w, http.StatusBadRequest, "CATALOG_INVALID_JSON", "invalid json")
		return
	}
	dto.Code = existing.Code()
	if errs, ok := dto.Ok(); !ok {
		writeJSONError(w, http.StatusUnprocessableEntity, "CATALOG_VALIDATION_FAILED", validationMessage(errs))
		return
	}
	updated, err := c.catalog.UpdateModule(r.Context(), dto.ToEntity(existing.ID()))
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.ModuleToViewModel(updated))
}

func (c *CatalogAPIController) ListAddOns(w http.ResponseWriter, r *http.Request) {
	addons, err := c.catalog.GetAddOns(r.Context())
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	out := make([]*viewmodels.AddOn, 0, len(addons))
	for _, a := range addons {
		out = append(out, mappers.AddOnToViewModel(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (c *CatalogAPIController) CreateAddOn(w http.ResponseWriter, r *http.Request) {
	var dto dtos.SaveAddOnDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeJSONError(w, http.StatusBadRequest, "CATALOG_INVALID_JSON", "invalid json")
		return
	}
	if errs, ok := dto.Ok(); !ok {
		writeJSONError(w, http.StatusUnprocessableEntity, "CATALOG_VALIDATION_FAILED", validationMessage(errs))
		return
	}
	created, err := c.catalog.CreateAddOn(r.Context(), dto.ToEntity())
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mappers.AddOnToViewModel(created))
}

func (c *CatalogAPIController) ListUserTiers(w http.ResponseWriter, r *http.Request) {
	tiers, err := c.catalog.UserTiers(r.Context())
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	out := make([]*viewmodels.UserTier, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, mappers.UserTierToViewModel(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (c *CatalogAPIController) ListStoragePlans(w http.ResponseWriter, r *http.Request) {
	plans, err := c.catalog.StoragePlans(r.Context())
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	out := make([]*viewmodels.StoragePlan, 0, len(plans))
	for _, p := range plans {
		out = append(out, mappers.StoragePlanToViewModel(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func writeCatalogError(w http.ResponseWriter, err error) {
	var cycleErr *module.CycleError
	var unknownErr *module.UnknownDependencyError
	switch {
	case errors.Is(err, persistence.ErrPlanNotFound):
		writeJSONError(w, http.StatusNotFound, "PLAN_NOT_FOUND", "plan not found")
	case errors.Is(err, persistence.ErrModuleNotFound):
		writeJSONError(w, http.StatusNotFound, "MODULE_NOT_FOUND", "module not found")
	case errors.Is(err, persistence.ErrAddOnNotFound):
		writeJSONError(w, http.StatusNotFound, "ADDON_NOT_FOUND", "add-on not found")
	case errors.As(err, &cycleErr):
		writeJSONError(w, http.StatusUnprocessableEntity, "MODULE_DEPENDENCY_CYCLE", cycleErr.Error())
	case errors.As(err, &unknownErr):
		writeJSONError(w, http.StatusUnprocessableEntity, "MODULE_UNKNOWN_DEPENDENCY", unknownErr.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, "CATALOG_INTERNAL", "internal error")
	}
}
