package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/exp/maps"

	"github.com/omnierp/controlplane/modules/catalog/domain/aggregates/subscription"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/addon"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/module"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/plan"
	"github.com/omnierp/controlplane/modules/catalog/domain/entities/tier"
)

type SafeMap[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

func NewSafeMap[K comparable, V any]() *SafeMap[K, V] {
	return &SafeMap[K, V]{
		m: make(map[K]V),
	}
}

func (s *SafeMap[K, V]) Set(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
}

func (s *SafeMap[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, found := s.m[key]
	return val, found
}

func (s *SafeMap[K, V]) Delete(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

func (s *SafeMap[K, V]) Values() []V {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Values(s.m)
}

type InmemPlanRepository struct {
	storage *SafeMap[uuid.UUID, *plan.Plan]
}

func NewInmemPlanRepository() *InmemPlanRepository {
	return &InmemPlanRepository{storage: NewSafeMap[uuid.UUID, *plan.Plan]()}
}

func (r *InmemPlanRepository) GetByID(_ context.Context, id uuid.UUID) (*plan.Plan, error) {
	p, ok := r.storage.Get(id)
	if !ok {
		return nil, ErrPlanNotFound
	}
	return p, nil
}

func (r *InmemPlanRepository) GetByCode(_ context.Context, code string) (*plan.Plan, error) {
	for _, p := range r.storage.Values() {
		if p.Code() == code {
			return p, nil
		}
	}
	return nil, ErrPlanNotFound
}

func (r *InmemPlanRepository) GetAll(_ context.Context) ([]*plan.Plan, error) {
	plans := r.storage.Values()
	sort.Slice(plans, func(i, j int) bool { return plans[i].Code() < plans[j].Code() })
	return plans, nil
}

func (r *InmemPlanRepository) Create(_ context.Context, p *plan.Plan) (*plan.Plan, error) {
	r.storage.Set(p.ID(), p)
	return p, nil
}

func (r *InmemPlanRepository) Update(_ context.Context, p *plan.Plan) (*plan.Plan, error) {
	if _, ok := r.storage.Get(p.ID()); !ok {
		return nil, ErrPlanNotFound
	}
	r.storage.Set(p.ID(), p)
	return p, nil
}

func (r *InmemPlanRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.storage.Delete(id)
	return nil
}

type InmemModuleRepository struct {
	storage *SafeMap[uuid.UUID, *module.Module]
}

func NewInmemModuleRepository() *InmemModuleRepository {
	return &InmemModuleRepository{storage: NewSafeMap[uuid.UUID, *module.Module]()}
}

func (r *InmemModuleRepository) GetByID(_ context.Context, id uuid.UUID) (*module.Module, error) {
	m, ok := r.storage.Get(id)
	if !ok {
		return nil, ErrModuleNotFound
	}
	return m, nil
}

func (r *InmemModuleRepository) GetByCode(_ context.Context, code string) (*module.Module, error) {
	for _, m := range r.storage.Values() {
		if m.Code() == code {
			return m, nil
		}
	}
	return nil, ErrModuleNotFound
}

func (r *InmemModuleRepository) GetAll(_ context.Context) ([]*module.Module, error) {
	mods := r.storage.Values()
	sort.Slice(mods, func(i, j int) bool { return mods[i].Code() < mods[j].Code() })
	return mods, nil
}

func (r *InmemModuleRepository) Create(_ context.Context, m *module.Module) (*module.Module, error) {
	r.storage.Set(m.ID(), m)
	return m, nil
}

func (r *InmemModuleRepository) Update(_ context.Context, m *module.Module) (*module.Module, error) {
	if _, ok := r.storage.Get(m.ID()); !ok {
		return nil, ErrModuleNotFound
	}
	r.storage.Set(m.ID(), m)
	return m, nil
}

func (r *InmemModuleRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.storage.Delete(id)
	return nil
}

type InmemAddOnRepository struct {
	storage *SafeMap[uuid.UUID, *addon.AddOn]
}

func NewInmemAddOnRepository() *InmemAddOnRepository {
	return &InmemAddOnRepository{storage: NewSafeMap[uuid.UUID, *addon.AddOn]()}
}

func (r *InmemAddOnRepository) GetByID(_ context.Context, id uuid.UUID) (*addon.AddOn, error) {
	a, ok := r.storage.Get(id)
	if !ok {
		return nil, ErrAddOnNotFound
	}
	return a, nil
}

func (r *InmemAddOnRepository) GetByCode(_ context.Context, code string) (*addon.AddOn, error) {
	for _, a := range r.storage.Values() {
		if a.Code() == code {
			return a, nil
		}
	}
	return nil, ErrAddOnNotFound
}

func (r *InmemAddOnRepository) GetByCodes(_ context.Context, codes []string) ([]*addon.AddOn, error) {
	wanted := make(map[string]bool, len(codes))
	for _, code := range codes {
		wanted[code] = true
	}
	var addOns []*addon.AddOn
	for _, a := range r.storage.Values() {
		if wanted[a.Code()] {
			addOns = append(addOns, a)
		}
	}
	sort.Slice(addOns, func(i, j int) bool { return addOns[i].Code() < addOns[j].Code() })
	return addOns, nil
}

func (r *InmemAddOnRepository) GetAll(_ context.Context) ([]*addon.AddOn, error) {
	addOns := r.storage.Values()
	sort.Slice(addOns, func(i, j int) bool { return addOns[i].Code() < addOns[j].Code() })
	return addOns, nil
}

func (r *InmemAddOnRepository) Create(_ context.Context, a *addon.AddOn) (*addon.AddOn, error) {
	r.storage.Set(a.ID(), a)
	return a, nil
}

func (r *InmemAddOnRepository) Update(_ context.Context, a *addon.AddOn) (*addon.AddOn, error) {
	if _, ok := r.storage.Get(a.ID()); !ok {
		return nil, ErrAddOnNotFound
	}
	r.storage.Set(a.ID(), a)
	return a, nil
}

func (r *InmemAddOnRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.storage.Delete(id)
	return nil
}

type InmemTierRepository struct {
	userTiers    *SafeMap[uuid.UUID, *tier.UserTier]
	storagePlans *SafeMap[uuid.UUID, *tier.StoragePlan]
}

func NewInmemTierRepository() *InmemTierRepository {
	return &InmemTierRepository{
		userTiers:    NewSafeMap[uuid.UUID, *tier.UserTier](),
		storagePlans: NewSafeMap[uuid.UUID, *tier.StoragePlan](),
	}
}

func (r *InmemTierRepository) AddUserTier(t *tier.UserTier) {
	r.userTiers.Set(t.ID(), t)
}

func (r *InmemTierRepository) AddStoragePlan(p *tier.StoragePlan) {
	r.storagePlans.Set(p.ID(), p)
}

func (r *InmemTierRepository) UserTiers(_ context.Context) ([]*tier.UserTier, error) {
	tiers := r.userTiers.Values()
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MinUsers() < tiers[j].MinUsers() })
	return tiers, nil
}

func (r *InmemTierRepository) UserTierForCount(_ context.Context, users int64) (*tier.UserTier, error) {
	for _, t := range r.userTiers.Values() {
		if t.Contains(users) {
			return t, nil
		}
	}
	return nil, tier.ErrUserTierNotFound
}

func (r *InmemTierRepository) StoragePlans(_ context.Context) ([]*tier.StoragePlan, error) {
	plans := r.storagePlans.Values()
	sort.Slice(plans, func(i, j int) bool { return plans[i].StorageGB() < plans[j].StorageGB() })
	return plans, nil
}

func (r *InmemTierRepository) StoragePlanByID(_ context.Context, id uuid.UUID) (*tier.StoragePlan, error) {
	p, ok := r.storagePlans.Get(id)
	if !ok {
		return nil, tier.ErrStoragePlanNotFound
	}
	return p, nil
}

type InmemSubscriptionRepository struct {
	storage *SafeMap[uuid.UUID, *subscription.Subscription]
}

func NewInmemSubscriptionRepository() *InmemSubscriptionRepository {
	return &InmemSubscriptionRepository{storage: NewSafeMap[uuid.UUID, *subscription.Subscription]()}
}

func (r *InmemSubscriptionRepository) GetByID(_ context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	s, ok := r.storage.Get(id)
	if !ok {
		return nil, subscription.ErrNotFound
	}
	return s, nil
}

func (r *InmemSubscriptionRepository) GetActiveByTenantID(_ context.Context, tenantID uuid.UUID) (*subscription.Subscription, error) {
	var latest *subscription.Subscription
	for _, s := range r.storage.Values() {
		if s.TenantID() != tenantID || s.Status().Terminal() || s.SupersededByID() != nil {
			continue
		}
		if latest == nil || s.CreatedAt().After(latest.CreatedAt()) {
			latest = s
		}
	}
	if latest == nil {
		return nil, subscription.ErrNotFound
	}
	return latest, nil
}

func (r *InmemSubscriptionRepository) GetAllByTenantID(_ context.Context, tenantID uuid.UUID) ([]*subscription.Subscription, error) {
	var subs []*subscription.Subscription
	for _, s := range r.storage.Values() {
		if s.TenantID() == tenantID {
			subs = append(subs, s)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].CreatedAt().After(subs[j].CreatedAt()) })
	return subs, nil
}

func (r *InmemSubscriptionRepository) Create(_ context.Context, s *subscription.Subscription) (*subscription.Subscription, error) {
	r.storage.Set(s.ID(), s)
	return s, nil
}

func (r *InmemSubscriptionRepository) Update(_ context.Context, s *subscription.Subscription) (*subscription.Subscription, error) {
	if _, ok := r.storage.Get(s.ID()); !ok {
		return nil, subscription.ErrNotFound
	}
	r.storage.Set(s.ID(), s)
	return s, nil
}

func (r *InmemSubscriptionRepository) Supersede(ctx context.Context, old, replacement *subscription.Subscription) (*subscription.Subscription, error) {
	created, err := r.Create(ctx, replacement)
	if err != nil {
		return nil, err
	}
	if _, err := r.Update(ctx, old); err != nil {
		return nil, err
	}
	return created, nil
}

func (r *InmemSubscriptionRepository) HasNonTerminal(_ context.Context, tenantID uuid.UUID) (bool, error) {
	for _, s := range r.storage.Values() {
		if s.TenantID() == tenantID && !s.Status().Terminal() {
			return true, nil
		}
	}
	return false, nil
}
