package directory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/omnierp/controlplane/modules/tenants/domain/aggregates/tenant"
)

// Descriptor is the cacheable projection of a tenant. It deliberately carries
// no credentials: connection strings never enter the cache tier.
type Descriptor struct {
	ID           uuid.UUID     `json:"id"`
	Code         string        `json:"code"`
	Name         string        `json:"name"`
	Domain       string        `json:"domain,omitempty"`
	Status       tenant.Status `json:"status"`
	DatabaseName string        `json:"database_name,omitempty"`
	DatabaseHost string        `json:"database_host,omitempty"`
}

func DescriptorOf(t *tenant.Tenant) *Descriptor {
	return &Descriptor{
		ID:           t.ID(),
		Code:         t.Code(),
		Name:         t.Name(),
		Domain:       t.Domain(),
		Status:       t.Status(),
		DatabaseName: t.DatabaseName(),
		DatabaseHost: t.DatabaseHost(),
	}
}

// Entry is a cached lookup result. Missing entries are negative cache hits:
// the lookup ran recently and found nothing.
type Entry struct {
	Descriptor *Descriptor `json:"descriptor,omitempty"`
	Missing    bool        `json:"missing,omitempty"`
}

type Cache interface {
	Get(ctx context.Context, key string) (*Entry, bool)
	Set(ctx context.Context, key string, entry *Entry, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
}

type inmemEntry struct {
	entry     *Entry
	expiresAt time.Time
}

type InmemCache struct {
	mu sync.RWMutex
	m  map[string]inmemEntry
}

func NewInmemCache() *InmemCache {
	return &InmemCache{m: make(map[string]inmemEntry)}
}

func (c *InmemCache) Get(_ context.Context, key string) (*Entry, bool) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		cacheMisses.WithLabelValues("memory").Inc()
		return nil, false
	}
	cacheHits.WithLabelValues("memory").Inc()
	return e.entry, true
}

func (c *InmemCache) Set(_ context.Context, key string, entry *Entry, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = inmemEntry{entry: entry, expiresAt: time.Now().Add(ttl)}
}

func (c *InmemCache) Delete(_ context.Context, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.m, key)
	}
}
