package tenant_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnierp/controlplane/modules/tenants/domain/aggregates/tenant"
	"github.com/omnierp/controlplane/modules/tenants/domain/value_objects/secretref"
	"github.com/omnierp/controlplane/pkg/kms"
)

func TestTenant_ProvisioningLifecycle(t *testing.T) {
	t.Parallel()
	sut := tenant.New("acme", "Acme Corp")
	assert.Equal(t, tenant.StatusRegistered, sut.Status())

	require.NoError(t, sut.BeginProvisioning())
	assert.Equal(t, tenant.StatusProvisioning, sut.Status())

	deadline := time.Now().Add(time.Hour)
	require.NoError(t, sut.CompleteProvisioning("acme_db", "db-01", secretref.SecretRef{}, deadline))
	assert.Equal(t, tenant.StatusActive, sut.Status())
	assert.Equal(t, "acme_db", sut.DatabaseName())
	assert.Equal(t, "db-01", sut.DatabaseHost())
	assert.Equal(t, deadline, sut.RotateAfter())
}

func TestTenant_FailedProvisioningRetries(t *testing.T) {
	t.Parallel()
	sut := tenant.New("acme", "Acme Corp")
	require.NoError(t, sut.BeginProvisioning())
	require.NoError(t, sut.MarkFailed("disk full on db-01"))
	assert.Equal(t, tenant.StatusFailed, sut.Status())
	assert.Equal(t, "disk full on db-01", sut.FailureReason())

	// A failed tenant never becomes active directly.
	err := sut.Reactivate()
	var transitionErr *tenant.TransitionError
	require.ErrorAs(t, err, &transitionErr)

	require.NoError(t, sut.Retry())
	assert.Equal(t, tenant.StatusRegistered, sut.Status())
	assert.Empty(t, sut.FailureReason())

	require.NoError(t, sut.BeginProvisioning())
	require.NoError(t, sut.CompleteProvisioning("acme_db", "db-02", secretref.SecretRef{}, time.Time{}))
	assert.Equal(t, tenant.StatusActive, sut.Status())
}

func TestTenant_SuspendReactivate(t *testing.T) {
	t.Parallel()
	sut := tenant.New("acme", "Acme Corp", tenant.WithStatus(tenant.StatusActive))

	require.NoError(t, sut.Suspend())
	assert.Equal(t, tenant.StatusSuspended, sut.Status())

	require.NoError(t, sut.Reactivate())
	assert.Equal(t, tenant.StatusActive, sut.Status())
}

func TestTenant_DeletedIsAbsorbing(t *testing.T) {
	t.Parallel()
	for _, from := range []tenant.Status{
		tenant.StatusRegistered,
		tenant.StatusActive,
		tenant.StatusSuspended,
		tenant.StatusFailed,
	} {
		sut := tenant.New("acme", "Acme Corp", tenant.WithStatus(from))
		require.NoError(t, sut.MarkDeleted(), "delete from %s", from)
		assert.Equal(t, tenant.StatusDeleted, sut.Status())

		var transitionErr *tenant.TransitionError
		require.ErrorAs(t, sut.BeginProvisioning(), &transitionErr)
		require.ErrorAs(t, sut.Retry(), &transitionErr)
	}

	sut := tenant.New("acme", "Acme Corp", tenant.WithStatus(tenant.StatusProvisioning))
	var transitionErr *tenant.TransitionError
	require.ErrorAs(t, sut.MarkDeleted(), &transitionErr)
}

func TestTenant_DeleteScrubsSecrets(t *testing.T) {
	t.Parallel()
	km, err := kms.NewWithKey(bytes.Repeat([]byte{0x33}, 32))
	require.NoError(t, err)
	ref, err := secretref.Seal(km, "postgres://u:p@db/acme")
	require.NoError(t, err)

	sut := tenant.New("acme", "Acme Corp",
		tenant.WithStatus(tenant.StatusActive),
		tenant.WithConnString(ref),
		tenant.WithAPIKeyHash("abc123"),
	)

	require.NoError(t, sut.MarkDeleted())
	assert.True(t, sut.ConnString().Empty())
	assert.Empty(t, sut.APIKeyHash())
	assert.True(t, sut.RotateAfter().IsZero())
}

func TestTenant_RotateConnStringAdvancesDeadline(t *testing.T) {
	t.Parallel()
	km, err := kms.NewWithKey(bytes.Repeat([]byte{0x33}, 32))
	require.NoError(t, err)
	oldRef, err := secretref.Seal(km, "postgres://u:old@db/acme")
	require.NoError(t, err)
	newRef, err := secretref.Seal(km, "postgres://u:new@db/acme")
	require.NoError(t, err)

	sut := tenant.New("acme", "Acme Corp",
		tenant.WithStatus(tenant.StatusActive),
		tenant.WithConnString(oldRef),
		tenant.WithRotateAfter(time.Now().Add(-time.Minute)),
	)

	deadline := time.Now().Add(time.Hour)
	sut.RotateConnString(newRef, deadline)

	plaintext, err := sut.ConnString().Reveal(km)
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:new@db/acme", plaintext)
	assert.Equal(t, deadline, sut.RotateAfter())
}

func TestCanTransition_Table(t *testing.T) {
	t.Parallel()
	assert.True(t, tenant.CanTransition(tenant.StatusRegistered, tenant.StatusProvisioning))
	assert.True(t, tenant.CanTransition(tenant.StatusProvisioning, tenant.StatusActive))
	assert.True(t, tenant.CanTransition(tenant.StatusProvisioning, tenant.StatusFailed))
	assert.True(t, tenant.CanTransition(tenant.StatusFailed, tenant.StatusRegistered))
	assert.True(t, tenant.CanTransition(tenant.StatusActive, tenant.StatusSuspended))
	assert.True(t, tenant.CanTransition(tenant.StatusSuspended, tenant.StatusActive))

	assert.False(t, tenant.CanTransition(tenant.StatusRegistered, tenant.StatusActive))
	assert.False(t, tenant.CanTransition(tenant.StatusFailed, tenant.StatusActive))
	assert.False(t, tenant.CanTransition(tenant.StatusProvisioning, tenant.StatusDeleted))
	assert.False(t, tenant.CanTransition(tenant.StatusDeleted, tenant.StatusRegistered))
}
