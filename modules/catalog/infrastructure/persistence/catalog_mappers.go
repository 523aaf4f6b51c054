package persistence

import (
	"database/sql"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/omnierp/controlplane/modules/catalog/domain/aggregates/subscription"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/addon"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/module"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/plan"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/tier"
	"github.com/omnierp/controlplane/modules/catalog/infrastructure/persistence/models"
	"github.com/omnierp/controlplane/pkg/mapping"
)

func parsePrice(v string) (decimal.Decimal, error) {
	if v == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "invalid price")
	}
	return d, nil
}

func ToDomainPlan(row *models.Plan) (*plan.Plan, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid plan id")
	}
	monthly, err := parsePrice(row.MonthlyPrice)
	if err != nil {
		return nil, err
	}
	yearly, err := parsePrice(row.YearlyPrice)
	if err != nil {
		return nil, err
	}
	return plan.New(row.Code, row.Name,
		plan.WithID(id),
		plan.WithDescription(row.Description.String),
		plan.WithPricing(monthly, yearly),
		plan.WithModuleCodes(row.ModuleCodes...),
		plan.WithQuotas(row.MaxUsers, row.MaxStorageGB, row.MaxProjects, row.MaxAPICallsMonth),
		plan.WithTrialDays(row.TrialDays),
		plan.WithIsActive(row.IsActive),
		plan.WithCreatedAt(row.CreatedAt),
		plan.WithUpdatedAt(row.UpdatedAt),
	), nil
}

func ToDBPlan(p *plan.Plan) *models.Plan {
	return &models.Plan{
		ID:               p.ID().String(),
		Code:             p.Code(),
		Name:             p.Name(),
		Description:      sql.NullString{String: p.Description(), Valid: p.Description() != ""},
		MonthlyPrice:     p.MonthlyPrice().String(),
		YearlyPrice:      p.YearlyPrice().String(),
		ModuleCodes:      p.ModuleCodes(),
		MaxUsers:         p.MaxUsers(),
		MaxStorageGB:     p.MaxStorageGB(),
		MaxProjects:      p.MaxProjects(),
		MaxAPICallsMonth: p.MaxAPICallsPerMonth(),
		TrialDays:        p.TrialDays(),
		IsActive:         p.IsActive(),
		CreatedAt:        p.CreatedAt(),
		UpdatedAt:        p.UpdatedAt(),
	}
}

func ToDomainModule(row *models.Module) (*module.Module, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid module id")
	}
	monthly, err := parsePrice(row.MonthlyPrice)
	if err != nil {
		return nil, err
	}
	yearly, err := parsePrice(row.YearlyPrice)
	if err != nil {
		return nil, err
	}
	return module.New(row.Code, row.Name,
		module.WithID(id),
		module.WithIsCore(row.IsCore),
		module.WithPricing(monthly, yearly),
		module.WithDependsOn(row.DependsOn...),
		module.WithCreatedAt(row.CreatedAt),
		module.WithUpdatedAt(row.UpdatedAt),
	), nil
}

func ToDBModule(m *module.Module) *models.Module {
	return &models.Module{
		ID:           m.ID().String(),
		Code:         m.Code(),
		Name:         m.Name(),
		IsCore:       m.IsCore(),
		MonthlyPrice: m.MonthlyPrice().String(),
		YearlyPrice:  m.YearlyPrice().String(),
		DependsOn:    m.DependsOn(),
		CreatedAt:    m.CreatedAt(),
		UpdatedAt:    m.UpdatedAt(),
	}
}

func ToDomainAddOn(row *models.AddOn) (*addon.AddOn, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid add-on id")
	}
	monthly, err := parsePrice(row.MonthlyPrice)
	if err != nil {
		return nil, err
	}
	yearly, err := parsePrice(row.YearlyPrice)
	if err != nil {
		return nil, err
	}
	opts := []addon.Option{
		addon.WithID(id),
		addon.WithPricing(monthly, yearly),
		addon.WithIsActive(row.IsActive),
		addon.WithCreatedAt(row.CreatedAt),
		addon.WithUpdatedAt(row.UpdatedAt),
	}
	if row.Unit.Valid {
		opts = append(opts, addon.WithQuantity(row.Unit.String, row.Quantity))
	}
	if row.RequiresModule.Valid {
		opts = append(opts, addon.WithRequiresModule(row.RequiresModule.String))
	}
	return addon.New(row.Code, row.Name, addon.Kind(row.Kind), opts...), nil
}

func ToDBAddOn(a *addon.AddOn) *models.AddOn {
	return &models.AddOn{
		ID:             a.ID().String(),
		Code:           a.Code(),
		Name:           a.Name(),
		Kind:           string(a.Kind()),
		Unit:           sql.NullString{String: a.Unit(), Valid: a.Unit() != ""},
		Quantity:       a.Quantity(),
		RequiresModule: sql.NullString{String: a.RequiresModule(), Valid: a.RequiresModule() != ""},
		MonthlyPrice:   a.MonthlyPrice().String(),
		YearlyPrice:    a.YearlyPrice().String(),
		IsActive:       a.IsActive(),
		CreatedAt:      a.CreatedAt(),
		UpdatedAt:      a.UpdatedAt(),
	}
}

func ToDomainUserTier(row *models.UserTier) (*tier.UserTier, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid user tier id")
	}
	price, err := parsePrice(row.PricePerUser)
	if err != nil {
		return nil, err
	}
	return tier.RehydrateUserTier(id, row.MinUsers, row.MaxUsers, price), nil
}

func ToDomainStoragePlan(row *models.StoragePlan) (*tier.StoragePlan, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid storage plan id")
	}
	price, err := parsePrice(row.Price)
	if err != nil {
		return nil, err
	}
	return tier.RehydrateStoragePlan(id, row.StorageGB, price), nil
}

func ToDomainSubscription(row *models.Subscription, moduleRows []*models.SubscriptionModule, addOnRows []*models.SubscriptionAddOn) (*subscription.Subscription, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid subscription id")
	}
	tenantID, err := uuid.Parse(row.TenantID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid tenant id")
	}
	planID, err := uuid.Parse(row.PlanID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid plan id")
	}
	price, err := parsePrice(row.Price)
	if err != nil {
		return nil, err
	}

	moduleItems := make([]subscription.ModuleItem, 0, len(moduleRows))
	for _, m := range moduleRows {
		moduleItems = append(moduleItems, subscription.ModuleItem{
			ModuleCode:  m.ModuleCode,
			MaxEntities: mapping.SQLNullInt64ToPointer(m.MaxEntities),
			Removed:     m.Removed,
			ActivatedAt: m.ActivatedAt,
			ExpiresAt:   mapping.SQLNullTimeToPointer(m.ExpiresAt),
		})
	}
	addOnItems := make([]subscription.AddOnItem, 0, len(addOnRows))
	for _, a := range addOnRows {
		addOnItems = append(addOnItems, subscription.AddOnItem{
			AddOnCode:   a.AddOnCode,
			Quantity:    a.Quantity,
			ActivatedAt: a.ActivatedAt,
			ExpiresAt:   mapping.SQLNullTimeToPointer(a.ExpiresAt),
		})
	}

	opts := []subscription.Option{
		subscription.WithID(id),
		subscription.WithStatus(subscription.Status(row.Status)),
		subscription.WithBillingCycle(subscription.BillingCycle(row.BillingCycle)),
		subscription.WithPrice(price),
		subscription.WithPeriod(row.CurrentPeriodStart, row.CurrentPeriodEnd),
		subscription.WithTrialEndsAt(mapping.SQLNullTimeToPointer(row.TrialEndsAt)),
		subscription.WithModuleItems(moduleItems...),
		subscription.WithAddOnItems(addOnItems...),
		subscription.WithCreatedAt(row.CreatedAt),
		subscription.WithUpdatedAt(row.UpdatedAt),
	}
	if row.SupersededByID.Valid {
		byID, err := uuid.Parse(row.SupersededByID.String)
		if err != nil {
			return nil, errors.Wrap(err, "invalid superseded_by id")
		}
		opts = append(opts, subscription.WithSupersededByID(&byID))
	}
	return subscription.New(tenantID, planID, row.PlanCode, opts...), nil
}

func ToDBSubscription(s *subscription.Subscription) (*models.Subscription, []*models.SubscriptionModule, []*models.SubscriptionAddOn) {
	row := &models.Subscription{
		ID:                 s.ID().String(),
		TenantID:           s.TenantID().String(),
		PlanID:             s.PlanID().String(),
		PlanCode:           s.PlanCode(),
		Status:             string(s.Status()),
		BillingCycle:       string(s.BillingCycle()),
		Price:              s.Price().String(),
		CurrentPeriodStart: s.CurrentPeriodStart(),
		CurrentPeriodEnd:   s.CurrentPeriodEnd(),
		TrialEndsAt:        mapping.PointerToSQLNullTime(s.TrialEndsAt()),
		CreatedAt:          s.CreatedAt(),
		UpdatedAt:          s.UpdatedAt(),
	}
	if byID := s.SupersededByID(); byID != nil {
		row.SupersededByID = sql.NullString{String: byID.String(), Valid: true}
	}

	moduleRows := make([]*models.SubscriptionModule, 0, len(s.ModuleItems()))
	for _, item := range s.ModuleItems() {
		moduleRows = append(moduleRows, &models.SubscriptionModule{
			SubscriptionID: row.ID,
			ModuleCode:     item.ModuleCode,
			MaxEntities:    mapping.PointerToSQLNullInt64(item.MaxEntities),
			Removed:        item.Removed,
			ActivatedAt:    item.ActivatedAt,
			ExpiresAt:      mapping.PointerToSQLNullTime(item.ExpiresAt),
		})
	}
	addOnRows := make([]*models.SubscriptionAddOn, 0, len(s.AddOnItems()))
	for _, item := range s.AddOnItems() {
		addOnRows = append(addOnRows, &models.SubscriptionAddOn{
			SubscriptionID: row.ID,
			AddOnCode:      item.AddOnCode,
			Quantity:       item.Quantity,
			ActivatedAt:    item.ActivatedAt,
			ExpiresAt:      mapping.PointerToSQLNullTime(item.ExpiresAt),
		})
	}
	return row, moduleRows, addOnRows
}
