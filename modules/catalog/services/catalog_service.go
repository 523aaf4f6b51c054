package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/omnierp/controlplane/modules/catalog/domain/entities/addon"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/module"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/plan"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/tier"
	"github.com/omnierp/controlplane/pkg/eventbus"
)

// CatalogService owns the master catalog: plans, modules, add-ons and pricing
// tiers. Dependency edges are validated at write time so the resolver can
// trust the stored graph to be an acyclic closure over known codes.
type CatalogService struct {
	plans     plan.Repository
	modules   module.Repository
	addOns    addon.Repository
	tiers     tier.Repository
	publisher eventbus.EventBus
}

func NewCatalogService(
	plans plan.Repository,
	modules module.Repository,
	addOns addon.Repository,
	tiers tier.Repository,
	publisher eventbus.EventBus,
) *CatalogService {
	return &CatalogService{
		plans:     plans,
		modules:   modules,
		addOns:    addOns,
		tiers:     tiers,
		publisher: publisher,
	}
}

func (s *CatalogService) GetPlan(ctx context.Context, id uuid.UUID) (*plan.Plan, error) {
	return s.plans.GetByID(ctx, id)
}

func (s *CatalogService) GetPlanByCode(ctx context.Context, code string) (*plan.Plan, error) {
	return s.plans.GetByCode(ctx, code)
}

func (s *CatalogService) GetPlans(ctx context.Context) ([]*plan.Plan, error) {
	return s.plans.GetAll(ctx)
}

func (s *CatalogService) CreatePlan(ctx context.Context, p *plan.Plan) (*plan.Plan, error) {
	if err := s.validatePlanModules(ctx, p); err != nil {
		return nil, err
	}
	created, err := s.plans.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish("plan.created", created)
	return created, nil
}

func (s *CatalogService) UpdatePlan(ctx context.Context, p *plan.Plan) (*plan.Plan, error) {
	if err := s.validatePlanModules(ctx, p); err != nil {
		return nil, err
	}
	updated, err := s.plans.Update(ctx, p)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish("plan.updated", updated)
	return updated, nil
}

func (s *CatalogService) GetModules(ctx context.Context) ([]*module.Module, error) {
	return s.modules.GetAll(ctx)
}

func (s *CatalogService) GetModuleByCode(ctx context.Context, code string) (*module.Module, error) {
	return s.modules.GetByCode(ctx, code)
}

// CreateModule rejects writes that would leave the catalog with a dependency
// cycle or an edge to a code that does not exist.
func (s *CatalogService) CreateModule(ctx context.Context, m *module.Module) (*module.Module, error) {
	if err := s.validateGraphWith(ctx, m); err != nil {
		return nil, err
	}
	created, err := s.modules.Create(ctx, m)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish("module.created", created)
	return created, nil
}

func (s *CatalogService) UpdateModule(ctx context.Context, m *module.Module) (*module.Module, error) {
	if err := s.validateGraphWith(ctx, m); err != nil {
		return nil, err
	}
	updated, err := s.modules.Update(ctx, m)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish("module.updated", updated)
	return updated, nil
}

func (s *CatalogService) GetAddOns(ctx context.Context) ([]*addon.AddOn, error) {
	return s.addOns.GetAll(ctx)
}

func (s *CatalogService) GetAddOnByCode(ctx context.Context, code string) (*addon.AddOn, error) {
	return s.addOns.GetByCode(ctx, code)
}

func (s *CatalogService) CreateAddOn(ctx context.Context, a *addon.AddOn) (*addon.AddOn, error) {
	if req := a.RequiresModule(); req != "" {
		if _, err := s.modules.GetByCode(ctx, req); err != nil {
			return nil, errors.Wrapf(err, "add-on %s requires unknown module %s", a.Code(), req)
		}
	}
	created, err := s.addOns.Create(ctx, a)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish("addon.created", created)
	return created, nil
}

func (s *CatalogService) UserTiers(ctx context.Context) ([]*tier.UserTier, error) {
	return s.tiers.UserTiers(ctx)
}

func (s *CatalogService) StoragePlans(ctx context.Context) ([]*tier.StoragePlan, error) {
	return s.tiers.StoragePlans(ctx)
}

func (s *CatalogService) validatePlanModules(ctx context.Context, p *plan.Plan) error {
	for _, code := range p.ModuleCodes() {
		if _, err := s.modules.GetByCode(ctx, code); err != nil {
			return errors.Wrapf(err, "plan %s references unknown module %s", p.Code(), code)
		}
	}
	return nil
}

func (s *CatalogService) validateGraphWith(ctx context.Context, candidate *module.Module) error {
	existing, err := s.modules.GetAll(ctx)
	if err != nil {
		return err
	}
	mods := make([]*module.Module, 0, len(existing)+1)
	for _, m := range existing {
		if m.Code() == candidate.Code() {
			continue
		}
		mods = append(mods, m)
	}
	mods = append(mods, candidate)
	return module.ValidateGraph(mods)
}
