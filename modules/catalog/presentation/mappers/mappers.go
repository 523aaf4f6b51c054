package mappers

import (
	"sort"

	"github.com/omnierp/controlplane/modules/catalog/domain/aggregates/subscription"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/addon"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/module"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/plan"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/tier"
	"github.com/omnierp/controlplane/modules/catalog/domain/entitlement"
	"github.com/omnierp/controlplane/modules/catalog/presentation/viewmodels"
)

func PlanToViewModel(p *plan.Plan) *viewmodels.Plan {
	return &viewmodels.Plan{
		ID:               p.ID().String(),
		Code:             p.Code(),
		Name:             p.Name(),
		Description:      p.Description(),
		MonthlyPrice:     p.MonthlyPrice().String(),
		YearlyPrice:      p.YearlyPrice().String(),
		ModuleCodes:      p.ModuleCodes(),
		MaxUsers:         p.MaxUsers(),
		MaxStorageGB:     p.MaxStorageGB(),
		MaxProjects:      p.MaxProjects(),
		MaxAPICallsMonth: p.MaxAPICallsPerMonth(),
		TrialDays:        p.TrialDays(),
		IsActive:         p.IsActive(),
	}
}

func ModuleToViewModel(m *module.Module) *viewmodels.Module {
	return &viewmodels.Module{
		ID:           m.ID().String(),
		Code:         m.Code(),
		Name:         m.Name(),
		IsCore:       m.IsCore(),
		MonthlyPrice: m.MonthlyPrice().String(),
		YearlyPrice:  m.YearlyPrice().String(),
		DependsOn:    m.DependsOn(),
	}
}

func AddOnToViewModel(a *addon.AddOn) *viewmodels.AddOn {
	return &viewmodels.AddOn{
		ID:             a.ID().String(),
		Code:           a.Code(),
		Name:           a.Name(),
		Kind:           string(a.Kind()),
		Unit:           a.Unit(),
		Quantity:       a.Quantity(),
		RequiresModule: a.RequiresModule(),
		MonthlyPrice:   a.MonthlyPrice().String(),
		YearlyPrice:    a.YearlyPrice().String(),
		IsActive:       a.IsActive(),
	}
}

func UserTierToViewModel(t *tier.UserTier) *viewmodels.UserTier {
	return &viewmodels.UserTier{
		ID:           t.ID().String(),
		MinUsers:     t.MinUsers(),
		MaxUsers:     t.MaxUsers(),
		PricePerUser: t.PricePerUser().String(),
	}
}

func StoragePlanToViewModel(s *tier.StoragePlan) *viewmodels.StoragePlan {
	return &viewmodels.StoragePlan{
		ID:        s.ID().String(),
		StorageGB: s.StorageGB(),
		Price:     s.Price().String(),
	}
}

func SubscriptionToViewModel(s *subscription.Subscription) *viewmodels.Subscription {
	moduleItems := make([]viewmodels.SubscriptionModuleItem, 0, len(s.ModuleItems()))
	for _, item := range s.ModuleItems() {
		moduleItems = append(moduleItems, viewmodels.SubscriptionModuleItem{
			ModuleCode:  item.ModuleCode,
			MaxEntities: item.MaxEntities,
			Removed:     item.Removed,
			ActivatedAt: item.ActivatedAt,
			ExpiresAt:   item.ExpiresAt,
		})
	}
	addOnItems := make([]viewmodels.SubscriptionAddOnItem, 0, len(s.AddOnItems()))
	for _, item := range s.AddOnItems() {
		addOnItems = append(addOnItems, viewmodels.SubscriptionAddOnItem{
			AddOnCode:   item.AddOnCode,
			Quantity:    item.Quantity,
			ActivatedAt: item.ActivatedAt,
			ExpiresAt:   item.ExpiresAt,
		})
	}

	vm := &viewmodels.Subscription{
		ID:                 s.ID().String(),
		TenantID:           s.TenantID().String(),
		PlanID:             s.PlanID().String(),
		PlanCode:           s.PlanCode(),
		Status:             string(s.Status()),
		BillingCycle:       string(s.BillingCycle()),
		Price:              s.Price().String(),
		CurrentPeriodStart: s.CurrentPeriodStart(),
		CurrentPeriodEnd:   s.CurrentPeriodEnd(),
		TrialEndsAt:        s.TrialEndsAt(),
		ModuleItems:        moduleItems,
		AddOnItems:         addOnItems,
	}
	if id := s.SupersededByID(); id != nil {
		v := id.String()
		vm.SupersededByID = &v
	}
	return vm
}

func EntitlementsToViewModel(e *entitlement.Entitlements) *viewmodels.Entitlements {
	grants := make([]viewmodels.ModuleGrant, 0, len(e.Modules))
	for _, code := range e.ModuleCodes() {
		grant := e.Modules[code]
		grants = append(grants, viewmodels.ModuleGrant{
			Code:        grant.Code,
			MaxEntities: grant.MaxEntities,
			Source:      string(grant.Source),
		})
	}
	featureCodes := make([]string, 0, len(e.Features))
	for code := range e.Features {
		featureCodes = append(featureCodes, code)
	}
	sort.Strings(featureCodes)
	features := make([]viewmodels.FeatureGrant, 0, len(featureCodes))
	for _, code := range featureCodes {
		features = append(features, viewmodels.FeatureGrant{
			Code:   e.Features[code].Code,
			Source: string(e.Features[code].Source),
		})
	}
	return &viewmodels.Entitlements{
		TenantID:         e.TenantID.String(),
		SubscriptionID:   e.SubscriptionID.String(),
		PlanCode:         e.PlanCode,
		AsOf:             e.AsOf,
		Modules:          grants,
		Features:         features,
		Users:            quotaToViewModel(e.Users),
		StorageGB:        quotaToViewModel(e.StorageGB),
		APICallsPerMonth: quotaToViewModel(e.APICallsPerMonth),
	}
}

func quotaToViewModel(q entitlement.Quota) viewmodels.Quota {
	return viewmodels.Quota{
		Value:      q.Value,
		Source:     string(q.Source),
		FromAddOns: q.FromAddOns,
	}
}
