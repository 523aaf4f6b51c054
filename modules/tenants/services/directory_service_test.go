package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnierp/controlplane/modules/tenants/domain/aggregates/tenant"
	"github.com/omnierp/controlplane/modules/tenants/infrastructure/directory"
	"github.com/omnierp/controlplane/modules/tenants/infrastructure/persistence"
	"github.com/omnierp/controlplane/modules/tenants/services"
)

func setupDirectoryTest(t *testing.T) (*services.DirectoryService, *persistence.InmemTenantRepository) {
	t.Helper()
	repo := persistence.NewInmemTenantRepository()
	sut := services.NewDirectoryService(repo, directory.NewInmemCache(), time.Minute, 10*time.Second)
	return sut, repo
}

func registerTenant(t *testing.T, repo *persistence.InmemTenantRepository, opts ...tenant.Option) *tenant.Tenant {
	t.Helper()
	base := []tenant.Option{
		tenant.WithDomain("acme.example.com"),
		tenant.WithStatus(tenant.StatusActive),
		tenant.WithDatabase("acme_db", "db-01"),
	}
	created, err := repo.Create(context.Background(), tenant.New("acme", "Acme Corp", append(base, opts...)...))
	require.NoError(t, err)
	return created
}

func TestDirectoryService_LookupByCode(t *testing.T) {
	t.Parallel()
	sut, repo := setupDirectoryTest(t)
	created := registerTenant(t, repo)

	desc, err := sut.LookupByCode(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, created.ID(), desc.ID)
	assert.Equal(t, "acme_db", desc.DatabaseName)
	assert.Equal(t, "db-01", desc.DatabaseHost)
}

func TestDirectoryService_LookupByDomain(t *testing.T) {
	t.Parallel()
	sut, repo := setupDirectoryTest(t)
	created := registerTenant(t, repo)

	desc, err := sut.LookupByDomain(context.Background(), "acme.example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID(), desc.ID)
}

func TestDirectoryService_LookupByAPIKey(t *testing.T) {
	t.Parallel()
	sut, repo := setupDirectoryTest(t)
	rawKey := "cp_live_s3cr3t"
	created := registerTenant(t, repo, tenant.WithAPIKeyHash(services.HashAPIKey(rawKey)))

	desc, err := sut.LookupByAPIKey(context.Background(), rawKey)
	require.NoError(t, err)
	assert.Equal(t, created.ID(), desc.ID)

	_, err = sut.LookupByAPIKey(context.Background(), "wrong-key")
	require.ErrorIs(t, err, tenant.ErrNotFound)
}

func TestDirectoryService_NotFoundVersusGone(t *testing.T) {
	t.Parallel()
	sut, repo := setupDirectoryTest(t)

	_, err := sut.LookupByCode(context.Background(), "nobody")
	require.ErrorIs(t, err, tenant.ErrNotFound)

	created := registerTenant(t, repo)
	require.NoError(t, created.Suspend())
	require.NoError(t, created.MarkDeleted())
	_, err = repo.Update(context.Background(), created)
	require.NoError(t, err)

	_, err = sut.LookupByCode(context.Background(), "acme")
	require.ErrorIs(t, err, tenant.ErrGone)
}

func TestDirectoryService_CacheServesStaleUntilInvalidated(t *testing.T) {
	t.Parallel()
	sut, repo := setupDirectoryTest(t)
	created := registerTenant(t, repo)

	// Prime the cache.
	_, err := sut.LookupByCode(context.Background(), "acme")
	require.NoError(t, err)

	require.NoError(t, created.Suspend())
	_, err = repo.Update(context.Background(), created)
	require.NoError(t, err)

	// Still the cached active descriptor.
	desc, err := sut.LookupByCode(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, tenant.StatusActive, desc.Status)

	sut.InvalidateTenant(context.Background(), created)

	desc, err = sut.LookupByCode(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, tenant.StatusSuspended, desc.Status)
}

func TestDirectoryService_NegativeCache(t *testing.T) {
	t.Parallel()
	sut, repo := setupDirectoryTest(t)

	_, err := sut.LookupByCode(context.Background(), "acme")
	require.ErrorIs(t, err, tenant.ErrNotFound)

	// The tenant now exists, but the negative entry still answers until it
	// expires or is invalidated.
	created := registerTenant(t, repo)
	_, err = sut.LookupByCode(context.Background(), "acme")
	require.ErrorIs(t, err, tenant.ErrNotFound)

	sut.InvalidateTenant(context.Background(), created)
	desc, err := sut.LookupByCode(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, created.ID(), desc.ID)
}
