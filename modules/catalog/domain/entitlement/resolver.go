package entitlement

import (
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/omnierp/controlplane/modules/catalog/domain/aggregates/subscription"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/addon"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/module"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/plan"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/tier"
)

// ResolveInput carries everything the resolver is allowed to look at. The
// resolver reads no clocks and touches no storage; AsOf is the only notion of
// "now".
type ResolveInput struct {
	Subscription *subscription.Subscription
	Plan         *plan.Plan
	// Definitions is the module catalog, used for the dependency adjacency.
	Definitions []*module.Module
	// AddOns is the add-on catalog for the codes purchased on the subscription.
	AddOns      []*addon.AddOn
	Tier        *tier.UserTier
	StoragePlan *tier.StoragePlan
	AsOf        time.Time
}

// Resolve computes the effective entitlements of a subscription at a point in
// time. Module set: plan defaults, overridden by active subscription lines
// (tombstones remove), merged with active add-ons. Ambiguity is always an
// error, never a default.
func Resolve(in ResolveInput) (*Entitlements, error) {
	if in.Subscription == nil {
		return nil, errors.New("subscription is required")
	}
	if in.Plan == nil {
		return nil, errors.New("plan is required")
	}
	sub := in.Subscription
	if in.AsOf.Before(sub.CurrentPeriodStart()) {
		return nil, ErrAsOfBeforePeriodStart
	}
	if sub.Status().Terminal() && in.AsOf.After(sub.CurrentPeriodEnd()) {
		return nil, ErrExpiredSubscription
	}

	defs := make(map[string]*module.Module, len(in.Definitions))
	for _, d := range in.Definitions {
		defs[d.Code()] = d
	}
	addOnDefs := make(map[string]*addon.AddOn, len(in.AddOns))
	for _, a := range in.AddOns {
		addOnDefs[a.Code()] = a
	}

	modules := make(map[string]ModuleGrant, len(in.Plan.ModuleCodes()))
	for _, code := range in.Plan.ModuleCodes() {
		modules[code] = ModuleGrant{Code: code, Source: ProvenancePlan}
	}

	// Subscription lines override plan defaults. Two live lines for one code
	// is corrupt catalog data, not something to pick a winner from.
	seen := make(map[string]bool)
	for _, item := range sortedModuleItems(sub.ModuleItems()) {
		if !item.ActiveAt(in.AsOf) {
			continue
		}
		if seen[item.ModuleCode] {
			return nil, &ConflictingOverrideError{ModuleCode: item.ModuleCode}
		}
		seen[item.ModuleCode] = true
		if item.Removed {
			delete(modules, item.ModuleCode)
			continue
		}
		modules[item.ModuleCode] = ModuleGrant{
			Code:        item.ModuleCode,
			MaxEntities: item.MaxEntities,
			Source:      ProvenanceOverride,
		}
	}

	features := make(map[string]FeatureGrant)
	var addOnUsers, addOnStorageGB, addOnAPICalls int64
	for _, item := range sortedAddOnItems(sub.AddOnItems()) {
		if !item.ActiveAt(in.AsOf) {
			continue
		}
		def, ok := addOnDefs[item.AddOnCode]
		if !ok {
			return nil, &UnknownAddOnError{Code: item.AddOnCode}
		}
		if req := def.RequiresModule(); req != "" {
			if _, ok := modules[req]; !ok {
				return nil, &AddOnRequirementError{AddOnCode: def.Code(), Requires: req}
			}
		}
		switch def.Kind() {
		case addon.KindFeature:
			// Feature add-ons are boolean OR: granting twice is a no-op.
			features[def.Code()] = FeatureGrant{Code: def.Code(), Source: ProvenanceAddOn}
		case addon.KindQuantity:
			lines := item.Quantity
			if lines <= 0 {
				lines = 1
			}
			amount := def.Quantity() * lines
			switch def.Unit() {
			case addon.UnitGB:
				addOnStorageGB += amount
			case addon.UnitUsers:
				addOnUsers += amount
			case addon.UnitAPICalls:
				addOnAPICalls += amount
			}
		}
	}

	// Dependency closure over the resolved set, in code order so the first
	// failure is deterministic.
	codes := make([]string, 0, len(modules))
	for code := range modules {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		def, ok := defs[code]
		if !ok {
			return nil, &UnknownModuleError{Code: code}
		}
		for _, dep := range def.DependsOn() {
			if _, ok := modules[dep]; !ok {
				return nil, &MissingDependencyError{Module: code, Requires: dep}
			}
		}
	}

	users := baseQuota(in.Plan.MaxUsers(), tierUsers(in.Tier), ProvenanceTier)
	users.Value += addOnUsers
	users.FromAddOns = addOnUsers

	storage := baseQuota(in.Plan.MaxStorageGB(), storagePlanGB(in.StoragePlan), ProvenanceStoragePlan)
	storage.Value += addOnStorageGB
	storage.FromAddOns = addOnStorageGB

	apiCalls := Quota{Value: in.Plan.MaxAPICallsPerMonth() + addOnAPICalls, Source: ProvenancePlan, FromAddOns: addOnAPICalls}

	return &Entitlements{
		TenantID:         sub.TenantID(),
		SubscriptionID:   sub.ID(),
		PlanCode:         in.Plan.Code(),
		AsOf:             in.AsOf,
		Modules:          modules,
		Features:         features,
		Users:            users,
		StorageGB:        storage,
		APICallsPerMonth: apiCalls,
	}, nil
}

// baseQuota takes the maximum of the plan base and the banded allowance. Ties
// prefer the plan base over the computed band.
func baseQuota(planBase, banded int64, bandedSource Provenance) Quota {
	if banded > planBase {
		return Quota{Value: banded, Source: bandedSource}
	}
	return Quota{Value: planBase, Source: ProvenancePlan}
}

func tierUsers(t *tier.UserTier) int64 {
	if t == nil {
		return 0
	}
	return t.MaxUsers()
}

func storagePlanGB(p *tier.StoragePlan) int64 {
	if p == nil {
		return 0
	}
	return p.StorageGB()
}

func sortedModuleItems(items []subscription.ModuleItem) []subscription.ModuleItem {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ModuleCode < items[j].ModuleCode
	})
	return items
}

func sortedAddOnItems(items []subscription.AddOnItem) []subscription.AddOnItem {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].AddOnCode < items[j].AddOnCode
	})
	return items
}
