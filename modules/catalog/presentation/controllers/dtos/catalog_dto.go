package dtos

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/omnierp/controlplane/modules/catalog/domain/aggregates/subscription"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/addon"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/module"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/plan"
)

// APIError is the JSON error payload for catalog API namespaces.
type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Meta    map[string]string `json:"meta,omitempty"`
}

type SavePlanDTO struct {
	Code             string   `json:"code"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	MonthlyPrice     string   `json:"monthly_price"`
	YearlyPrice      string   `json:"yearly_price"`
	ModuleCodes      []string `json:"module_codes"`
	MaxUsers         int64    `json:"max_users"`
	MaxStorageGB     int64    `json:"max_storage_gb"`
	MaxProjects      int64    `json:"max_projects"`
	MaxAPICallsMonth int64    `json:"max_api_calls_month"`
	TrialDays        int      `json:"trial_days"`
	IsActive         *bool    `json:"is_active"`
}

func (d *SavePlanDTO) Ok() (map[string]string, bool) {
	errs := map[string]string{}
	if strings.TrimSpace(d.Code) == "" {
		errs["Code"] = "code is required"
	}
	if strings.TrimSpace(d.Name) == "" {
		errs["Name"] = "name is required"
	}
	if _, _, err := d.prices(); err != nil {
		errs["Price"] = "prices must be decimal strings"
	}
	return errs, len(errs) == 0
}

func (d *SavePlanDTO) prices() (decimal.Decimal, decimal.Decimal, error) {
	monthly, err := parsePrice(d.MonthlyPrice)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	yearly, err := parsePrice(d.YearlyPrice)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return monthly, yearly, nil
}

func (d *SavePlanDTO) ToEntity(id uuid.UUID) *plan.Plan {
	monthly, yearly, _ := d.prices()
	opts := []plan.Option{
		plan.WithDescription(d.Description),
		plan.WithPricing(monthly, yearly),
		plan.WithModuleCodes(d.ModuleCodes...),
		plan.WithQuotas(d.MaxUsers, d.MaxStorageGB, d.MaxProjects, d.MaxAPICallsMonth),
		plan.WithTrialDays(d.TrialDays),
	}
	if id != uuid.Nil {
		opts = append(opts, plan.WithID(id))
	}
	if d.IsActive != nil {
		opts = append(opts, plan.WithIsActive(*d.IsActive))
	}
	return plan.New(strings.TrimSpace(d.Code), strings.TrimSpace(d.Name), opts...)
}

type SaveModuleDTO struct {
	Code         string   `json:"code"`
	Name         string   `json:"name"`
	IsCore       bool     `json:"is_core"`
	MonthlyPrice string   `json:"monthly_price"`
	YearlyPrice  string   `json:"yearly_price"`
	DependsOn    []string `json:"depends_on"`
}

func (d *SaveModuleDTO) Ok() (map[string]string, bool) {
	errs := map[string]string{}
	if strings.TrimSpace(d.Code) == "" {
		errs["Code"] = "code is required"
	}
	if strings.TrimSpace(d.Name) == "" {
		errs["Name"] = "name is required"
	}
	if _, err := parsePrice(d.MonthlyPrice); err != nil {
		errs["Price"] = "prices must be decimal strings"
	} else if _, err := parsePrice(d.YearlyPrice); err != nil {
		errs["Price"] = "prices must be decimal strings"
	}
	return errs, len(errs) == 0
}

func (d *SaveModuleDTO) ToEntity(id uuid.UUID) *module.Module {
	monthly, _ := parsePrice(d.MonthlyPrice)
	yearly, _ := parsePrice(d.YearlyPrice)
	opts := []module.Option{
		module.WithIsCore(d.IsCore),
		module.WithPricing(monthly, yearly),
		module.WithDependsOn(d.DependsOn...),
	}
	if id != uuid.Nil {
		opts = append(opts, module.WithID(id))
	}
	return module.New(strings.TrimSpace(d.Code), strings.TrimSpace(d.Name), opts...)
}

type SaveAddOnDTO struct {
	Code           string `json:"code"`
	Name           string `json:"name"`
	Kind           string `json:"kind"`
	Unit           string `json:"unit"`
	Quantity       int64  `json:"quantity"`
	RequiresModule string `json:"requires_module"`
	MonthlyPrice   string `json:"monthly_price"`
	YearlyPrice    string `json:"yearly_price"`
}

func (d *SaveAddOnDTO) Ok() (map[string]string, bool) {
	errs := map[string]string{}
	if strings.TrimSpace(d.Code) == "" {
		errs["Code"] = "code is required"
	}
	if strings.TrimSpace(d.Name) == "" {
		errs["Name"] = "name is required"
	}
	switch addon.Kind(d.Kind) {
	case addon.KindFeature, addon.KindQuantity:
	default:
		errs["Kind"] = "kind must be feature or quantity"
	}
	if addon.Kind(d.Kind) == addon.KindQuantity && d.Quantity <= 0 {
		errs["Quantity"] = "quantity add-ons need a positive quantity"
	}
	return errs, len(errs) == 0
}

func (d *SaveAddOnDTO) ToEntity() *addon.AddOn {
	monthly, _ := parsePrice(d.MonthlyPrice)
	yearly, _ := parsePrice(d.YearlyPrice)
	opts := []addon.Option{
		addon.WithPricing(monthly, yearly),
	}
	if addon.Kind(d.Kind) == addon.KindQuantity {
		opts = append(opts, addon.WithQuantity(d.Unit, d.Quantity))
	}
	if d.RequiresModule != "" {
		opts = append(opts, addon.WithRequiresModule(d.RequiresModule))
	}
	return addon.New(strings.TrimSpace(d.Code), strings.TrimSpace(d.Name), addon.Kind(d.Kind), opts...)
}

type CreateSubscriptionDTO struct {
	TenantID     string                 `json:"tenant_id"`
	PlanCode     string                 `json:"plan_code"`
	BillingCycle string                 `json:"billing_cycle"`
	TrialEndsAt  *time.Time             `json:"trial_ends_at"`
	ModuleItems  []SubscriptionItemDTO  `json:"module_items"`
	AddOnItems   []SubscriptionAddOnDTO `json:"addon_items"`
}

type SubscriptionItemDTO struct {
	ModuleCode  string     `json:"module_code"`
	MaxEntities *int64     `json:"max_entities"`
	Removed     bool       `json:"removed"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

type SubscriptionAddOnDTO struct {
	AddOnCode string     `json:"addon_code"`
	Quantity  int64      `json:"quantity"`
	ExpiresAt *time.Time `json:"expires_at"`
}

func (d *CreateSubscriptionDTO) Ok() (map[string]string, bool) {
	errs := map[string]string{}
	if _, err := uuid.Parse(d.TenantID); err != nil {
		errs["TenantID"] = "tenant_id must be a UUID"
	}
	if strings.TrimSpace(d.PlanCode) == "" {
		errs["PlanCode"] = "plan_code is required"
	}
	switch subscription.BillingCycle(d.BillingCycle) {
	case subscription.CycleMonthly, subscription.CycleYearly:
	default:
		errs["BillingCycle"] = "billing_cycle must be monthly or yearly"
	}
	return errs, len(errs) == 0
}

// ToAggregate builds the subscription against the resolved plan. The caller
// supplies pricing and period; line items come from the request.
func (d *CreateSubscriptionDTO) ToAggregate(p *plan.Plan, price decimal.Decimal, start, end time.Time) *subscription.Subscription {
	tenantID, _ := uuid.Parse(d.TenantID)
	now := time.Now()

	moduleItems := make([]subscription.ModuleItem, 0, len(d.ModuleItems))
	for _, item := range d.ModuleItems {
		moduleItems = append(moduleItems, subscription.ModuleItem{
			ModuleCode:  item.ModuleCode,
			MaxEntities: item.MaxEntities,
			Removed:     item.Removed,
			ActivatedAt: now,
			ExpiresAt:   item.ExpiresAt,
		})
	}
	addOnItems := make([]subscription.AddOnItem, 0, len(d.AddOnItems))
	for _, item := range d.AddOnItems {
		addOnItems = append(addOnItems, subscription.AddOnItem{
			AddOnCode:   item.AddOnCode,
			Quantity:    item.Quantity,
			ActivatedAt: now,
			ExpiresAt:   item.ExpiresAt,
		})
	}

	return subscription.New(tenantID, p.ID(), p.Code(),
		subscription.WithBillingCycle(subscription.BillingCycle(d.BillingCycle)),
		subscription.WithPrice(price),
		subscription.WithPeriod(start, end),
		subscription.WithTrialEndsAt(d.TrialEndsAt),
		subscription.WithModuleItems(moduleItems...),
		subscription.WithAddOnItems(addOnItems...),
	)
}

func parsePrice(raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}
