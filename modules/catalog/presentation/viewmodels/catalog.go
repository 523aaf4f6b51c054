package viewmodels

import "time"

type Plan struct {
	ID               string   `json:"id"`
	Code             string   `json:"code"`
	Name             string   `json:"name"`
	Description      string   `json:"description,omitempty"`
	MonthlyPrice     string   `json:"monthly_price"`
	YearlyPrice      string   `json:"yearly_price"`
	ModuleCodes      []string `json:"module_codes"`
	MaxUsers         int64    `json:"max_users"`
	MaxStorageGB     int64    `json:"max_storage_gb"`
	MaxProjects      int64    `json:"max_projects"`
	MaxAPICallsMonth int64    `json:"max_api_calls_month"`
	TrialDays        int      `json:"trial_days"`
	IsActive         bool     `json:"is_active"`
}

type Module struct {
	ID           string   `json:"id"`
	Code         string   `json:"code"`
	Name         string   `json:"name"`
	IsCore       bool     `json:"is_core"`
	MonthlyPrice string   `json:"monthly_price"`
	YearlyPrice  string   `json:"yearly_price"`
	DependsOn    []string `json:"depends_on"`
}

type AddOn struct {
	ID             string `json:"id"`
	Code           string `json:"code"`
	Name           string `json:"name"`
	Kind           string `json:"kind"`
	Unit           string `json:"unit,omitempty"`
	Quantity       int64  `json:"quantity,omitempty"`
	RequiresModule string `json:"requires_module,omitempty"`
	MonthlyPrice   string `json:"monthly_price"`
	YearlyPrice    string `json:"yearly_price"`
	IsActive       bool   `json:"is_active"`
}

type UserTier struct {
	ID           string `json:"id"`
	MinUsers     int64  `json:"min_users"`
	MaxUsers     int64  `json:"max_users"`
	PricePerUser string `json:"price_per_user"`
}

type StoragePlan struct {
	ID        string `json:"id"`
	StorageGB int64  `json:"storage_gb"`
	Price     string `json:"price"`
}

type SubscriptionModuleItem struct {
	ModuleCode  string     `json:"module_code"`
	MaxEntities *int64     `json:"max_entities,omitempty"`
	Removed     bool       `json:"removed,omitempty"`
	ActivatedAt time.Time  `json:"activated_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type SubscriptionAddOnItem struct {
	AddOnCode   string     `json:"addon_code"`
	Quantity    int64      `json:"quantity"`
	ActivatedAt time.Time  `json:"activated_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type Subscription struct {
	ID                 string                   `json:"id"`
	TenantID           string                   `json:"tenant_id"`
	PlanID             string                   `json:"plan_id"`
	PlanCode           string                   `json:"plan_code"`
	Status             string                   `json:"status"`
	BillingCycle       string                   `json:"billing_cycle"`
	Price              string                   `json:"price"`
	CurrentPeriodStart time.Time                `json:"current_period_start"`
	CurrentPeriodEnd   time.Time                `json:"current_period_end"`
	TrialEndsAt        *time.Time               `json:"trial_ends_at,omitempty"`
	ModuleItems        []SubscriptionModuleItem `json:"module_items"`
	AddOnItems         []SubscriptionAddOnItem  `json:"addon_items"`
	SupersededByID     *string                  `json:"superseded_by_id,omitempty"`
}

type ModuleGrant struct {
	Code        string `json:"code"`
	MaxEntities *int64 `json:"max_entities,omitempty"`
	Source      string `json:"source"`
}

type FeatureGrant struct {
	Code   string `json:"code"`
	Source string `json:"source"`
}

type Quota struct {
	Value      int64  `json:"value"`
	Source     string `json:"source"`
	FromAddOns int64  `json:"from_addons,omitempty"`
}

type Entitlements struct {
	TenantID         string         `json:"tenant_id"`
	SubscriptionID   string         `json:"subscription_id"`
	PlanCode         string         `json:"plan_code"`
	AsOf             time.Time      `json:"as_of"`
	Modules          []ModuleGrant  `json:"modules"`
	Features         []FeatureGrant `json:"features"`
	Users            Quota          `json:"users"`
	StorageGB        Quota          `json:"storage_gb"`
	APICallsPerMonth Quota          `json:"api_calls_per_month"`
}
