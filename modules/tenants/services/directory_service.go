package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"

	"github.com/omnierp/controlplane/modules/tenants/domain/aggregates/tenant"
	"github.com/omnierp/controlplane/modules/tenants/infrastructure/directory"
)

// DirectoryService answers "which tenant is this" for every request edge:
// tenant code on API calls, host domain on web traffic, API key on
// machine-to-machine calls. Results are cached with negative caching, and
// lifecycle writes invalidate through InvalidateTenant so a suspended or
// deleted tenant stops resolving within one cache round-trip.
type DirectoryService struct {
	repo        tenant.Repository
	cache       directory.Cache
	ttl         time.Duration
	negativeTTL time.Duration
}

func NewDirectoryService(repo tenant.Repository, cache directory.Cache, ttl, negativeTTL time.Duration) *DirectoryService {
	return &DirectoryService{
		repo:        repo,
		cache:       cache,
		ttl:         ttl,
		negativeTTL: negativeTTL,
	}
}

// HashAPIKey is the storage form of an API key. Raw keys exist only in flight.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (s *DirectoryService) LookupByCode(ctx context.Context, code string) (*directory.Descriptor, error) {
	return s.lookup(ctx, "code:"+code, func(ctx context.Context) (*tenant.Tenant, error) {
		return s.repo.GetByCode(ctx, code)
	})
}

func (s *DirectoryService) LookupByDomain(ctx context.Context, domain string) (*directory.Descriptor, error) {
	return s.lookup(ctx, "domain:"+domain, func(ctx context.Context) (*tenant.Tenant, error) {
		return s.repo.GetByDomain(ctx, domain)
	})
}

// LookupByAPIKey resolves a raw API key. Only the hash is used for the cache
// key and the store query.
func (s *DirectoryService) LookupByAPIKey(ctx context.Context, rawKey string) (*directory.Descriptor, error) {
	hash := HashAPIKey(rawKey)
	return s.lookup(ctx, "apikey:"+hash, func(ctx context.Context) (*tenant.Tenant, error) {
		return s.repo.GetByAPIKeyHash(ctx, hash)
	})
}

// InvalidateTenant drops every cache key that can resolve to the tenant.
// Lifecycle writes call this after commit, making the cache write-through.
func (s *DirectoryService) InvalidateTenant(ctx context.Context, t *tenant.Tenant) {
	keys := []string{"code:" + t.Code()}
	if t.Domain() != "" {
		keys = append(keys, "domain:"+t.Domain())
	}
	if t.APIKeyHash() != "" {
		keys = append(keys, "apikey:"+t.APIKeyHash())
	}
	s.cache.Delete(ctx, keys...)
}

func (s *DirectoryService) lookup(ctx context.Context, key string, load func(context.Context) (*tenant.Tenant, error)) (*directory.Descriptor, error) {
	if entry, ok := s.cache.Get(ctx, key); ok {
		return s.fromEntry(entry)
	}

	t, err := load(ctx)
	if errors.Is(err, tenant.ErrNotFound) {
		s.cache.Set(ctx, key, &directory.Entry{Missing: true}, s.negativeTTL)
		directory.CountLookupError("not_found")
		return nil, tenant.ErrNotFound
	}
	if err != nil {
		directory.CountLookupError("internal")
		return nil, err
	}

	entry := &directory.Entry{Descriptor: directory.DescriptorOf(t)}
	// Deleted tenants cache at the full TTL: gone is a permanent answer.
	s.cache.Set(ctx, key, entry, s.ttl)
	return s.fromEntry(entry)
}

func (s *DirectoryService) fromEntry(entry *directory.Entry) (*directory.Descriptor, error) {
	if entry.Missing || entry.Descriptor == nil {
		directory.CountLookupError("not_found")
		return nil, tenant.ErrNotFound
	}
	if entry.Descriptor.Status == tenant.StatusDeleted {
		directory.CountLookupError("gone")
		return nil, tenant.ErrGone
	}
	return entry.Descriptor, nil
}
