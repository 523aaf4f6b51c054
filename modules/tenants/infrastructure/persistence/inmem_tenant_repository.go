package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/maps"

	"github.com/omnierp/controlplane/modules/tenants/domain/aggregates/tenant"
	"github.com/omnierp/controlplane/modules/tenants/domain/value_objects/secretref"
)

type safeMap[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

func newSafeMap[K comparable, V any]() *safeMap[K, V] {
	return &safeMap[K, V]{m: make(map[K]V)}
}

func (s *safeMap[K, V]) set(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
}

func (s *safeMap[K, V]) get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, found := s.m[key]
	return val, found
}

func (s *safeMap[K, V]) values() []V {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Values(s.m)
}

type InmemTenantRepository struct {
	storage *safeMap[uuid.UUID, *tenant.Tenant]
}

func NewInmemTenantRepository() *InmemTenantRepository {
	return &InmemTenantRepository{storage: newSafeMap[uuid.UUID, *tenant.Tenant]()}
}

func (r *InmemTenantRepository) GetByID(_ context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	t, ok := r.storage.get(id)
	if !ok {
		return nil, tenant.ErrNotFound
	}
	return t, nil
}

func (r *InmemTenantRepository) GetByCode(_ context.Context, code string) (*tenant.Tenant, error) {
	for _, t := range r.storage.values() {
		if t.Code() == code {
			return t, nil
		}
	}
	return nil, tenant.ErrNotFound
}

func (r *InmemTenantRepository) GetByDomain(_ context.Context, domain string) (*tenant.Tenant, error) {
	for _, t := range r.storage.values() {
		if t.Domain() == domain {
			return t, nil
		}
	}
	return nil, tenant.ErrNotFound
}

func (r *InmemTenantRepository) GetByAPIKeyHash(_ context.Context, hash string) (*tenant.Tenant, error) {
	if hash == "" {
		return nil, tenant.ErrNotFound
	}
	for _, t := range r.storage.values() {
		if t.APIKeyHash() == hash {
			return t, nil
		}
	}
	return nil, tenant.ErrNotFound
}

func (r *InmemTenantRepository) GetAll(_ context.Context) ([]*tenant.Tenant, error) {
	tenants := r.storage.values()
	sort.Slice(tenants, func(i, j int) bool { return tenants[i].Code() < tenants[j].Code() })
	return tenants, nil
}

func (r *InmemTenantRepository) Create(_ context.Context, t *tenant.Tenant) (*tenant.Tenant, error) {
	r.storage.set(t.ID(), t)
	return t, nil
}

func (r *InmemTenantRepository) Update(_ context.Context, t *tenant.Tenant) (*tenant.Tenant, error) {
	if _, ok := r.storage.get(t.ID()); !ok {
		return nil, tenant.ErrNotFound
	}
	r.storage.set(t.ID(), t)
	return t, nil
}

func (r *InmemTenantRepository) ScrubSecrets(_ context.Context, id uuid.UUID) error {
	t, ok := r.storage.get(id)
	if !ok {
		return tenant.ErrNotFound
	}
	t.RotateConnString(secretref.SecretRef{}, time.Time{})
	return nil
}
