package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/omnierp/controlplane/modules/catalog/domain/aggregates/subscription"
	"github.com/omnierp/controlplane/modules/catalog/infrastructure/persistence"
	"github.com/omnierp/controlplane/modules/catalog/presentation/controllers/dtos"
	"github.com/omnierp/controlplane/modules/catalog/presentation/mappers"
	"github.com/omnierp/controlplane/modules/catalog/presentation/viewmodels"
	"github.com/omnierp/controlplane/modules/catalog/services"
	"github.com/omnierp/controlplane/pkg/application"
	"github.com/omnierp/controlplane/pkg/middleware"
)

// SubscriptionAPIController exposes subscription lifecycle and entitlement
// resolution.
type SubscriptionAPIController struct {
	app           application.Application
	subscriptions *services.SubscriptionService
	catalog       *services.CatalogService
	entitlements  *services.EntitlementService
	basePath      string
}

func NewSubscriptionAPIController(app application.Application) application.Controller {
	return &SubscriptionAPIController{
		app:           app,
		subscriptions: app.Service(services.SubscriptionService{}).(*services.SubscriptionService),
		catalog:       app.Service(services.CatalogService{}).(*services.CatalogService),
		entitlements:  app.Service(services.EntitlementService{}).(*services.EntitlementService),
		basePath:      "/billing/api",
	}
}

func (c *SubscriptionAPIController) Key() string {
	return c.basePath
}

func (c *SubscriptionAPIController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("/subscriptions/{id}", c.Get).Methods(http.MethodGet)
	router.HandleFunc("/subscriptions/{id}/entitlements", c.SubscriptionEntitlements).Methods(http.MethodGet)
	router.HandleFunc("/tenants/{tenantID}/subscriptions", c.ListForTenant).Methods(http.MethodGet)
	router.HandleFunc("/tenants/{tenantID}/subscriptions/active", c.ActiveForTenant).Methods(http.MethodGet)
	router.HandleFunc("/tenants/{tenantID}/entitlements", c.TenantEntitlements).Methods(http.MethodGet)

	// Supersession writes the replacement and the cancelled predecessor in
	// one transaction.
	writeRouter := r.PathPrefix(c.basePath).Subrouter()
	writeRouter.Use(middleware.WithTransaction())
	writeRouter.HandleFunc("/subscriptions", c.Create).Methods(http.MethodPost)
	writeRouter.HandleFunc("/subscriptions/{id}/renew", c.Renew).Methods(http.MethodPost)
	writeRouter.HandleFunc("/subscriptions/{id}/cancel", c.Cancel).Methods(http.MethodPost)
	writeRouter.HandleFunc("/subscriptions/{id}/expire", c.Expire).Methods(http.MethodPost)
	writeRouter.HandleFunc("/subscriptions/{id}/past-due", c.MarkPastDue).Methods(http.MethodPost)
	writeRouter.HandleFunc("/subscriptions/{id}/reactivate", c.Reactivate).Methods(http.MethodPost)
	writeRouter.HandleFunc("/tenants/{tenantID}/change-plan", c.ChangePlan).Methods(http.MethodPost)
}

func (c *SubscriptionAPIController) Create(w http.ResponseWriter, r *http.Request) {
	var dto dtos.CreateSubscriptionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeJSONError(w, http.StatusBadRequest, "BILLING_INVALID_JSON", "invalid json")
		return
	}
	if errs, ok := dto.Ok(); !ok {
		writeJSONError(w, http.StatusUnprocessableEntity, "BILLING_VALIDATION_FAILED", validationMessage(errs))
		return
	}

	p, err := c.catalog.GetPlanByCode(r.Context(), dto.PlanCode)
	if err != nil {
		writeSubscriptionError(w, err)
		return
	}

	now := time.Now()
	price := p.MonthlyPrice()
	periodEnd := now.Add(30 * 24 * time.Hour)
	if subscription.BillingCycle(dto.BillingCycle) == subscription.CycleYearly {
		price = p.YearlyPrice()
		periodEnd = now.Add(365 * 24 * time.Hour)
	}

	created, err := c.subscriptions.Create(r.Context(), dto.ToAggregate(p, price, now, periodEnd))
	if err != nil {
		writeSubscriptionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mappers.SubscriptionToViewModel(created))
}

func (c *SubscriptionAPIController) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	sub, err := c.subscriptions.GetByID(r.Context(), id)
	if err != nil {
		writeSubscriptionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.SubscriptionToViewModel(sub))
}

func (c *SubscriptionAPIController) Renew(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	renewed, err := c.subscriptions.Renew(r.Context(), id, time.Now())
	if err != nil {
		writeSubscriptionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.SubscriptionToViewModel(renewed))
}

func (c *SubscriptionAPIController) Cancel(w http.ResponseWriter, r *http.Request) {
	c.setStatus(w, r, c.subscriptions.Cancel)
}

func (c *SubscriptionAPIController) Expire(w http.ResponseWriter, r *http.Request) {
	c.setStatus(w, r, c.subscriptions.Expire)
}

func (c *SubscriptionAPIController) MarkPastDue(w http.ResponseWriter, r *http.Request) {
	c.setStatus(w, r, c.subscriptions.MarkPastDue)
}

func (c *SubscriptionAPIController) Reactivate(w http.ResponseWriter, r *http.Request) {
	c.setStatus(w, r, c.subscriptions.Reactivate)
}

func (c *SubscriptionAPIController) ListForTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathUUID(w, r, "tenantID")
	if !ok {
		return
	}
	subs, err := c.subscriptions.GetAllForTenant(r.Context(), tenantID)
	if err != nil {
		writeSubscriptionError(w, err)
		return
	}
	out := make([]*viewmodels.Subscription, 0, len(subs))
	for _, sub := range subs {
		out = append(out, mappers.SubscriptionToViewModel(sub))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (c *SubscriptionAPIController) ActiveForTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathUUID(w, r, "tenantID")
	if !ok {
		return
	}
	sub, err := c.subscriptions.GetActiveForTenant(r.Context(), tenantID)
	if err != nil {
		writeSubscriptionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.SubscriptionToViewModel(sub))
}

func (c *SubscriptionAPIController) ChangePlan(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathUUID(w, r, "tenantID")
	if !ok {
		return
	}
	var body struct {
		PlanCode     string `json:"plan_code"`
		BillingCycle string `json:"billing_cycle"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "BILLING_INVALID_JSON", "invalid json")
		return
	}
	cycle := subscription.BillingCycle(body.BillingCycle)
	if cycle != subscription.CycleMonthly && cycle != subscription.CycleYearly {
		writeJSONError(w, http.StatusUnprocessableEntity, "BILLING_VALIDATION_FAILED", "billing_cycle must be monthly or yearly")
		return
	}

	p, err := c.catalog.GetPlanByCode(r.Context(), body.PlanCode)
	if err != nil {
		writeSubscriptionError(w, err)
		return
	}
	replacement, err := c.subscriptions.ChangePlan(r.Context(), tenantID, p, cycle, time.Now())
	if err != nil {
		writeSubscriptionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.SubscriptionToViewModel(replacement))
}

// TenantEntitlements resolves the tenant's effective entitlements. Optional
// query parameters: as_of (RFC 3339), seat_count, storage_plan_id.
func (c *SubscriptionAPIController) TenantEntitlements(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathUUID(w, r, "tenantID")
	if !ok {
		return
	}
	q, ok := entitlementQuery(w, r, tenantID)
	if !ok {
		return
	}
	resolved, err := c.entitlements.Resolve(r.Context(), q)
	if err != nil {
		writeSubscriptionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.EntitlementsToViewModel(resolved))
}

// SubscriptionEntitlements resolves against a specific subscription, including
// superseded ones, for historical billing audit.
func (c *SubscriptionAPIController) SubscriptionEntitlements(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	q, ok := entitlementQuery(w, r, uuid.Nil)
	if !ok {
		return
	}
	resolved, err := c.entitlements.ResolveForSubscription(r.Context(), id, q)
	if err != nil {
		writeSubscriptionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.EntitlementsToViewModel(resolved))
}

func (c *SubscriptionAPIController) setStatus(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error),
) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	updated, err := apply(r.Context(), id)
	if err != nil {
		writeSubscriptionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.SubscriptionToViewModel(updated))
}

func entitlementQuery(w http.ResponseWriter, r *http.Request, tenantID uuid.UUID) (services.EntitlementQuery, bool) {
	q := services.EntitlementQuery{TenantID: tenantID, AsOf: time.Now()}

	if raw := r.URL.Query().Get("as_of"); raw != "" {
		asOf, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "BILLING_INVALID_AS_OF", "as_of must be RFC 3339")
			return q, false
		}
		q.AsOf = asOf
	}
	if raw := r.URL.Query().Get("seat_count"); raw != "" {
		seats, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || seats < 0 {
			writeJSONError(w, http.StatusBadRequest, "BILLING_INVALID_SEAT_COUNT", "seat_count must be a non-negative integer")
			return q, false
		}
		q.SeatCount = seats
	}
	if raw := r.URL.Query().Get("storage_plan_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "BILLING_INVALID_STORAGE_PLAN", "storage_plan_id must be a UUID")
			return q, false
		}
		q.StoragePlanID = &id
	}
	return q, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "BILLING_INVALID_ID", name+" must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func writeSubscriptionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, subscription.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "SUBSCRIPTION_NOT_FOUND", "subscription not found")
	case errors.Is(err, persistence.ErrPlanNotFound):
		writeJSONError(w, http.StatusNotFound, "PLAN_NOT_FOUND", "plan not found")
	case errors.Is(err, services.ErrActiveSubscriptionExists):
		writeJSONError(w, http.StatusConflict, "SUBSCRIPTION_EXISTS", "tenant already has a live subscription")
	case errors.Is(err, services.ErrTerminalStatus):
		writeJSONError(w, http.StatusConflict, "SUBSCRIPTION_TERMINAL", "subscription status is terminal")
	default:
		writeJSONError(w, http.StatusInternalServerError, "BILLING_INTERNAL", "internal error")
	}
}
