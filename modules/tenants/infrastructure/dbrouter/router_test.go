package dbrouter_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnierp/controlplane/modules/tenants/domain/aggregates/tenant"
	"github.com/omnierp/controlplane/modules/tenants/infrastructure/dbrouter"
)

type fakeConn struct {
	pool *fakePool
	once sync.Once
}

func (c *fakeConn) Release() {
	c.once.Do(func() {
		<-c.pool.sem
	})
}

type fakePool struct {
	connString string
	sem        chan struct{}
	closed     atomic.Bool
}

func (p *fakePool) Acquire(ctx context.Context) (dbrouter.Conn, error) {
	select {
	case p.sem <- struct{}{}:
		return &fakeConn{pool: p}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *fakePool) Close() {
	p.closed.Store(true)
}

type fakeDialer struct {
	mu    sync.Mutex
	dials []string
	pools []*fakePool
	delay time.Duration
	fail  atomic.Bool
	cap   int
}

func (d *fakeDialer) Dial(_ context.Context, connString string, _ int32) (dbrouter.Pool, error) {
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	if d.fail.Load() {
		return nil, errDialRefused
	}
	capacity := d.cap
	if capacity == 0 {
		capacity = 4
	}
	pool := &fakePool{connString: connString, sem: make(chan struct{}, capacity)}
	d.mu.Lock()
	d.dials = append(d.dials, connString)
	d.pools = append(d.pools, pool)
	d.mu.Unlock()
	return pool, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dials)
}

var errDialRefused = errors.New("dial refused")

type fakeSource struct {
	mu    sync.Mutex
	creds map[uuid.UUID]dbrouter.Credentials
	err   error
}

func (s *fakeSource) Credentials(_ context.Context, tenantID uuid.UUID) (dbrouter.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return dbrouter.Credentials{}, s.err
	}
	creds, ok := s.creds[tenantID]
	if !ok {
		return dbrouter.Credentials{}, dbrouter.ErrTenantNotFound
	}
	return creds, nil
}

func (s *fakeSource) set(creds dbrouter.Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[creds.TenantID] = creds
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func defaultOptions() dbrouter.Options {
	return dbrouter.Options{
		MaxConnsPerTenant: 2,
		AcquireTimeout:    100 * time.Millisecond,
		RotationRetries:   2,
		RotationTimeout:   time.Second,
	}
}

func activeCreds(tenantID uuid.UUID, connString string) dbrouter.Credentials {
	return dbrouter.Credentials{
		TenantID:     tenantID,
		Status:       tenant.StatusActive,
		DatabaseName: "tenant_db",
		ConnString:   connString,
	}
}

func setupRouter(t *testing.T) (*dbrouter.Router, *fakeSource, *fakeDialer) {
	t.Helper()
	source := &fakeSource{creds: make(map[uuid.UUID]dbrouter.Credentials)}
	dialer := &fakeDialer{}
	return dbrouter.New(source, dialer, defaultOptions(), quietLogger()), source, dialer
}

func TestRouter_AcquireTagsHandleWithTenant(t *testing.T) {
	t.Parallel()
	router, source, _ := setupRouter(t)
	tenantID := uuid.New()
	source.set(activeCreds(tenantID, "postgres://a@db-01/acme"))

	handle, err := router.Acquire(context.Background(), tenantID)
	require.NoError(t, err)
	defer handle.Release()

	assert.Equal(t, tenantID, handle.TenantID())
	assert.Equal(t, "tenant_db", handle.DatabaseName())
}

func TestRouter_StrictIsolationBetweenTenants(t *testing.T) {
	t.Parallel()
	router, source, dialer := setupRouter(t)
	tenantA, tenantB := uuid.New(), uuid.New()
	source.set(activeCreds(tenantA, "postgres://a@db-01/acme"))
	source.set(activeCreds(tenantB, "postgres://b@db-02/globex"))

	ha, err := router.Acquire(context.Background(), tenantA)
	require.NoError(t, err)
	defer ha.Release()
	hb, err := router.Acquire(context.Background(), tenantB)
	require.NoError(t, err)
	defer hb.Release()

	require.Equal(t, 2, dialer.dialCount())
	connA := ha.Conn().(*fakeConn).pool.connString
	connB := hb.Conn().(*fakeConn).pool.connString
	assert.NotEqual(t, connA, connB)
	assert.Contains(t, connA, "acme")
	assert.Contains(t, connB, "globex")
}

func TestRouter_ConcurrentAcquiresStayIsolated(t *testing.T) {
	t.Parallel()
	router, source, _ := setupRouter(t)

	tenants := make(map[uuid.UUID]string, 4)
	for _, name := range []string{"acme", "globex", "initech", "umbrella"} {
		tenantID := uuid.New()
		creds := activeCreds(tenantID, "postgres://"+name+"@db/"+name)
		creds.DatabaseName = "tenant_" + name
		source.set(creds)
		tenants[tenantID] = name
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	failures := make([]string, 0)
	for tenantID, name := range tenants {
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(tenantID uuid.UUID, name string) {
				defer wg.Done()
				handle, err := router.Acquire(context.Background(), tenantID)
				if err != nil {
					mu.Lock()
					failures = append(failures, err.Error())
					mu.Unlock()
					return
				}
				defer handle.Release()
				conn := handle.Conn().(*fakeConn).pool.connString
				if handle.TenantID() != tenantID ||
					handle.DatabaseName() != "tenant_"+name ||
					!strings.Contains(conn, name) {
					mu.Lock()
					failures = append(failures, "handle for "+name+" bound to "+conn)
					mu.Unlock()
				}
			}(tenantID, name)
		}
	}
	wg.Wait()

	assert.Empty(t, failures)
}

func TestRouter_RefusesNonActiveTenants(t *testing.T) {
	t.Parallel()
	router, source, _ := setupRouter(t)
	ctx := context.Background()

	cases := []struct {
		status  tenant.Status
		wantErr error
	}{
		{tenant.StatusSuspended, dbrouter.ErrTenantSuspended},
		{tenant.StatusDeleted, dbrouter.ErrTenantGone},
		{tenant.StatusRegistered, dbrouter.ErrTenantNotReady},
		{tenant.StatusProvisioning, dbrouter.ErrTenantNotReady},
		{tenant.StatusFailed, dbrouter.ErrTenantNotReady},
	}
	for _, tc := range cases {
		tenantID := uuid.New()
		creds := activeCreds(tenantID, "postgres://x@db/x")
		creds.Status = tc.status
		source.set(creds)

		_, err := router.Acquire(ctx, tenantID)
		require.ErrorIs(t, err, tc.wantErr, "status %s", tc.status)
	}
}

func TestRouter_UnknownTenant(t *testing.T) {
	t.Parallel()
	router, _, _ := setupRouter(t)

	_, err := router.Acquire(context.Background(), uuid.New())
	require.ErrorIs(t, err, dbrouter.ErrTenantNotFound)
}

func TestRouter_PoolExhaustionIsBounded(t *testing.T) {
	t.Parallel()
	source := &fakeSource{creds: make(map[uuid.UUID]dbrouter.Credentials)}
	dialer := &fakeDialer{cap: 1}
	router := dbrouter.New(source, dialer, defaultOptions(), quietLogger())

	tenantID := uuid.New()
	source.set(activeCreds(tenantID, "postgres://a@db/acme"))

	first, err := router.Acquire(context.Background(), tenantID)
	require.NoError(t, err)

	start := time.Now()
	_, err = router.Acquire(context.Background(), tenantID)
	require.ErrorIs(t, err, dbrouter.ErrPoolExhausted)
	assert.Less(t, time.Since(start), time.Second)

	// Releasing frees capacity again.
	first.Release()
	second, err := router.Acquire(context.Background(), tenantID)
	require.NoError(t, err)
	second.Release()
}

func TestRouter_AcquireHonorsCancellation(t *testing.T) {
	t.Parallel()
	source := &fakeSource{creds: make(map[uuid.UUID]dbrouter.Credentials)}
	dialer := &fakeDialer{cap: 1}
	opts := defaultOptions()
	opts.AcquireTimeout = 5 * time.Second
	router := dbrouter.New(source, dialer, opts, quietLogger())

	tenantID := uuid.New()
	source.set(activeCreds(tenantID, "postgres://a@db/acme"))

	holder, err := router.Acquire(context.Background(), tenantID)
	require.NoError(t, err)
	defer holder.Release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err = router.Acquire(ctx, tenantID)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRouter_ConcurrentAcquiresDialOnce(t *testing.T) {
	t.Parallel()
	source := &fakeSource{creds: make(map[uuid.UUID]dbrouter.Credentials)}
	dialer := &fakeDialer{delay: 30 * time.Millisecond}
	router := dbrouter.New(source, dialer, defaultOptions(), quietLogger())

	tenantID := uuid.New()
	source.set(activeCreds(tenantID, "postgres://a@db/acme"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handle, err := router.Acquire(context.Background(), tenantID)
			if err == nil {
				handle.Release()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, dialer.dialCount())
}

func TestRouter_RotateSwapsPoolAndRetiresOld(t *testing.T) {
	t.Parallel()
	router, source, dialer := setupRouter(t)
	tenantID := uuid.New()
	source.set(activeCreds(tenantID, "postgres://old@db/acme"))

	handle, err := router.Acquire(context.Background(), tenantID)
	require.NoError(t, err)
	handle.Release()

	source.set(activeCreds(tenantID, "postgres://new@db/acme"))
	require.NoError(t, router.Rotate(context.Background(), tenantID))

	require.Equal(t, 2, dialer.dialCount())
	assert.True(t, dialer.pools[0].closed.Load(), "old pool should be closed")
	assert.False(t, dialer.pools[1].closed.Load())

	handle, err = router.Acquire(context.Background(), tenantID)
	require.NoError(t, err)
	defer handle.Release()
	assert.Equal(t, "postgres://new@db/acme", handle.Conn().(*fakeConn).pool.connString)
}

func TestRouter_StaleFingerprintRedialsOnAcquire(t *testing.T) {
	t.Parallel()
	router, source, dialer := setupRouter(t)
	tenantID := uuid.New()
	source.set(activeCreds(tenantID, "postgres://old@db/acme"))

	handle, err := router.Acquire(context.Background(), tenantID)
	require.NoError(t, err)
	handle.Release()

	// Credentials changed out of band; the next acquire notices.
	source.set(activeCreds(tenantID, "postgres://new@db/acme"))
	handle, err = router.Acquire(context.Background(), tenantID)
	require.NoError(t, err)
	defer handle.Release()

	assert.Equal(t, 2, dialer.dialCount())
	assert.Equal(t, "postgres://new@db/acme", handle.Conn().(*fakeConn).pool.connString)
	assert.True(t, dialer.pools[0].closed.Load())
}

func TestRouter_ExpiredCredentialRotatesOnAcquire(t *testing.T) {
	t.Parallel()
	router, source, dialer := setupRouter(t)
	tenantID := uuid.New()

	expired := activeCreds(tenantID, "postgres://old@db/acme")
	expired.RotateAfter = time.Now().Add(-time.Minute)
	source.set(expired)

	var rotations atomic.Int32
	router.SetRotator(dbrouter.RotatorFunc(func(context.Context, uuid.UUID) error {
		rotations.Add(1)
		fresh := activeCreds(tenantID, "postgres://new@db/acme")
		fresh.RotateAfter = time.Now().Add(time.Hour)
		source.set(fresh)
		return nil
	}))

	handle, err := router.Acquire(context.Background(), tenantID)
	require.NoError(t, err)
	defer handle.Release()

	assert.Equal(t, int32(1), rotations.Load())
	assert.Equal(t, 1, dialer.dialCount())
	assert.Equal(t, "postgres://new@db/acme", handle.Conn().(*fakeConn).pool.connString)
}

func TestRouter_ExpiredCredentialWithoutRotatorStillServes(t *testing.T) {
	t.Parallel()
	router, source, _ := setupRouter(t)
	tenantID := uuid.New()

	expired := activeCreds(tenantID, "postgres://old@db/acme")
	expired.RotateAfter = time.Now().Add(-time.Minute)
	source.set(expired)

	handle, err := router.Acquire(context.Background(), tenantID)
	require.NoError(t, err)
	handle.Release()
}

func TestRouter_RotationOnAcquireIsBounded(t *testing.T) {
	t.Parallel()
	router, source, _ := setupRouter(t)
	tenantID := uuid.New()

	expired := activeCreds(tenantID, "postgres://old@db/acme")
	expired.RotateAfter = time.Now().Add(-time.Minute)
	source.set(expired)

	// The rotator reports success but never advances the deadline.
	var rotations atomic.Int32
	router.SetRotator(dbrouter.RotatorFunc(func(context.Context, uuid.UUID) error {
		rotations.Add(1)
		return nil
	}))

	_, err := router.Acquire(context.Background(), tenantID)
	require.ErrorIs(t, err, dbrouter.ErrRotationTimeout)
	assert.GreaterOrEqual(t, rotations.Load(), int32(1))
}

func TestRouter_RotatorFailureSurfacesOnAcquire(t *testing.T) {
	t.Parallel()
	router, source, _ := setupRouter(t)
	tenantID := uuid.New()

	expired := activeCreds(tenantID, "postgres://old@db/acme")
	expired.RotateAfter = time.Now().Add(-time.Minute)
	source.set(expired)

	rotatorErr := errors.New("provisioner unavailable")
	router.SetRotator(dbrouter.RotatorFunc(func(context.Context, uuid.UUID) error {
		return rotatorErr
	}))

	_, err := router.Acquire(context.Background(), tenantID)
	require.ErrorIs(t, err, rotatorErr)
}

func TestRouter_SingleRotationInFlight(t *testing.T) {
	t.Parallel()
	source := &fakeSource{creds: make(map[uuid.UUID]dbrouter.Credentials)}
	dialer := &fakeDialer{delay: 50 * time.Millisecond}
	router := dbrouter.New(source, dialer, defaultOptions(), quietLogger())

	tenantID := uuid.New()
	source.set(activeCreds(tenantID, "postgres://new@db/acme"))

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = router.Rotate(context.Background(), tenantID)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "rotation %d", i)
	}
	assert.Equal(t, 1, dialer.dialCount())
}

func TestRouter_RotateWaiterSeesOwnerFailure(t *testing.T) {
	t.Parallel()
	source := &fakeSource{creds: make(map[uuid.UUID]dbrouter.Credentials)}
	dialer := &fakeDialer{delay: 30 * time.Millisecond}
	dialer.fail.Store(true)
	router := dbrouter.New(source, dialer, defaultOptions(), quietLogger())

	tenantID := uuid.New()
	source.set(activeCreds(tenantID, "postgres://new@db/acme"))

	// Whoever loses the single-flight race must still observe the owner's
	// failed outcome, not a blank success.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = router.Rotate(context.Background(), tenantID)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.ErrorIs(t, err, errDialRefused, "rotation %d", i)
	}
}

func TestRouter_RotationRetriesThenFails(t *testing.T) {
	t.Parallel()
	source := &fakeSource{creds: make(map[uuid.UUID]dbrouter.Credentials)}
	dialer := &fakeDialer{}
	dialer.fail.Store(true)
	router := dbrouter.New(source, dialer, defaultOptions(), quietLogger())

	tenantID := uuid.New()
	source.set(activeCreds(tenantID, "postgres://new@db/acme"))

	err := router.Rotate(context.Background(), tenantID)
	require.ErrorIs(t, err, errDialRefused)
}

func TestRouter_RotationTimeoutWhileWaiting(t *testing.T) {
	t.Parallel()
	source := &fakeSource{creds: make(map[uuid.UUID]dbrouter.Credentials)}
	dialer := &fakeDialer{delay: 300 * time.Millisecond}
	opts := defaultOptions()
	opts.RotationTimeout = 50 * time.Millisecond
	router := dbrouter.New(source, dialer, opts, quietLogger())

	tenantID := uuid.New()
	source.set(activeCreds(tenantID, "postgres://new@db/acme"))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = router.Rotate(context.Background(), tenantID)
	}()
	time.Sleep(10 * time.Millisecond)

	err := router.Rotate(context.Background(), tenantID)
	require.ErrorIs(t, err, dbrouter.ErrRotationTimeout)
	wg.Wait()
}

func TestRouter_EvictClosesPool(t *testing.T) {
	t.Parallel()
	router, source, dialer := setupRouter(t)
	tenantID := uuid.New()
	source.set(activeCreds(tenantID, "postgres://a@db/acme"))

	handle, err := router.Acquire(context.Background(), tenantID)
	require.NoError(t, err)
	handle.Release()

	router.Evict(tenantID)
	require.True(t, dialer.pools[0].closed.Load())

	// Next acquire re-dials.
	handle, err = router.Acquire(context.Background(), tenantID)
	require.NoError(t, err)
	handle.Release()
	assert.Equal(t, 2, dialer.dialCount())
}

func TestRouter_ReleaseIsIdempotent(t *testing.T) {
	t.Parallel()
	router, source, _ := setupRouter(t)
	tenantID := uuid.New()
	source.set(activeCreds(tenantID, "postgres://a@db/acme"))

	handle, err := router.Acquire(context.Background(), tenantID)
	require.NoError(t, err)
	handle.Release()
	handle.Release()

	// Capacity was returned exactly once; both slots remain usable.
	h1, err := router.Acquire(context.Background(), tenantID)
	require.NoError(t, err)
	h2, err := router.Acquire(context.Background(), tenantID)
	require.NoError(t, err)
	h1.Release()
	h2.Release()
}
