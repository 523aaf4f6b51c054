package entitlement

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Provenance records where a grant or quota came from, for billing audit.
type Provenance string

const (
	ProvenancePlan        Provenance = "plan"
	ProvenanceOverride    Provenance = "override"
	ProvenanceAddOn       Provenance = "addon"
	ProvenanceTier        Provenance = "tier"
	ProvenanceStoragePlan Provenance = "storage_plan"
)

type ModuleGrant struct {
	Code        string
	MaxEntities *int64
	Source      Provenance
}

type FeatureGrant struct {
	Code   string
	Source Provenance
}

// Quota is a resolved numeric ceiling. Source names the winning base input;
// FromAddOns is the additive share contributed by quantity add-ons.
type Quota struct {
	Value      int64
	Source     Provenance
	FromAddOns int64
}

// Entitlements is the resolved, effective view of what a tenant may use at a
// point in time. It is derived, never persisted, and a pure function of its
// inputs: identical inputs always produce an identical value.
type Entitlements struct {
	TenantID       uuid.UUID
	SubscriptionID uuid.UUID
	PlanCode       string
	AsOf           time.Time

	Modules  map[string]ModuleGrant
	Features map[string]FeatureGrant

	Users            Quota
	StorageGB        Quota
	APICallsPerMonth Quota
}

func (e *Entitlements) HasModule(code string) bool {
	_, ok := e.Modules[code]
	return ok
}

func (e *Entitlements) HasFeature(code string) bool {
	_, ok := e.Features[code]
	return ok
}

// ModuleCodes returns the enabled module codes in sorted order.
func (e *Entitlements) ModuleCodes() []string {
	out := make([]string, 0, len(e.Modules))
	for code := range e.Modules {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
