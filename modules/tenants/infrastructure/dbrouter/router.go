package dbrouter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/omnierp/controlplane/modules/tenants/domain/aggregates/tenant"
	"github.com/omnierp/controlplane/pkg/serrors"
)

var (
	ErrTenantNotFound  = serrors.NewError("TENANT_NOT_FOUND", "tenant is not known to the control plane", "")
	ErrTenantGone      = serrors.NewError("TENANT_GONE", "tenant has been deleted", "")
	ErrTenantSuspended = serrors.NewError("TENANT_SUSPENDED", "tenant is suspended and cannot receive connections", "")
	ErrTenantNotReady  = serrors.NewError("TENANT_NOT_READY", "tenant database is not provisioned yet", "")
	ErrPoolExhausted   = serrors.NewError("POOL_EXHAUSTED", "tenant connection pool is exhausted", "")
	ErrRotationTimeout = serrors.NewError("ROTATION_TIMEOUT", "credential rotation did not complete in time", "")
)

// Credentials is what the router needs to dial a tenant database. ConnString
// is plaintext only for the duration of the dial.
type Credentials struct {
	TenantID     uuid.UUID
	Status       tenant.Status
	DatabaseName string
	ConnString   string
	// RotateAfter is the deadline past which this credential generation must
	// not back new connections. Zero means no deadline.
	RotateAfter time.Time
}

// Fingerprint identifies a credential generation without retaining the
// plaintext. Pools remember the fingerprint they were dialed with; a changed
// fingerprint retires the pool.
func (c Credentials) Fingerprint() string {
	sum := sha256.Sum256([]byte(c.ConnString))
	return hex.EncodeToString(sum[:8])
}

// CredentialSource loads current credentials for a tenant. Implementations
// unseal the stored connection string on every call so the router never holds
// plaintext at rest.
type CredentialSource interface {
	Credentials(ctx context.Context, tenantID uuid.UUID) (Credentials, error)
}

// Conn is a checked-out tenant database connection.
type Conn interface {
	Release()
}

// Pool is a dialed per-tenant connection pool.
type Pool interface {
	Acquire(ctx context.Context) (Conn, error)
	Close()
}

// Dialer opens a pool against a tenant database.
type Dialer interface {
	Dial(ctx context.Context, connString string, maxConns int32) (Pool, error)
}

// Rotator mints and persists a new credential generation for a tenant. The
// router decides when a rotation is due; the rotator owns how credentials are
// issued and stored.
type Rotator interface {
	Rotate(ctx context.Context, tenantID uuid.UUID) error
}

// RotatorFunc adapts a function to the Rotator interface.
type RotatorFunc func(ctx context.Context, tenantID uuid.UUID) error

func (f RotatorFunc) Rotate(ctx context.Context, tenantID uuid.UUID) error {
	return f(ctx, tenantID)
}

type Options struct {
	MaxConnsPerTenant int32
	AcquireTimeout    time.Duration
	RotationRetries   int
	RotationTimeout   time.Duration
}

// Handle is the only thing callers ever see. It is bound to one tenant; using
// it cannot reach any other tenant's database.
type Handle struct {
	conn         Conn
	tenantID     uuid.UUID
	databaseName string
	release      sync.Once
	onRelease    func()
}

func (h *Handle) TenantID() uuid.UUID {
	return h.tenantID
}

func (h *Handle) DatabaseName() string {
	return h.databaseName
}

func (h *Handle) Conn() Conn {
	return h.conn
}

// Release returns the connection to its pool. Safe to call twice.
func (h *Handle) Release() {
	h.release.Do(func() {
		h.conn.Release()
		if h.onRelease != nil {
			h.onRelease()
		}
	})
}

type poolEntry struct {
	pool        Pool
	fingerprint string
	database    string
}

// Router hands out per-tenant database connections with strict isolation. One
// pool per tenant, dialed lazily, swapped atomically on credential rotation.
// inflightOp tracks a single-flight dial or rotation. err holds the owner's
// outcome and is written before done is closed, so waiters read it safely
// after waking.
type inflightOp struct {
	done chan struct{}
	err  error
}

type Router struct {
	mu       sync.Mutex
	pools    map[uuid.UUID]*poolEntry
	inflight map[uuid.UUID]*inflightOp

	source  CredentialSource
	dialer  Dialer
	rotator Rotator
	opts    Options
	log     *logrus.Logger
}

func New(source CredentialSource, dialer Dialer, opts Options, log *logrus.Logger) *Router {
	return &Router{
		pools:    make(map[uuid.UUID]*poolEntry),
		inflight: make(map[uuid.UUID]*inflightOp),
		source:   source,
		dialer:   dialer,
		opts:     opts,
		log:      log,
	}
}

// SetRotator installs the credential rotator. Without one, expired credentials
// are served as-is and rotation only happens through explicit Rotate calls.
func (r *Router) SetRotator(rot Rotator) {
	r.rotator = rot
}

// Acquire checks out a connection to the tenant's database. It refuses
// non-active tenants, waits out an in-flight rotation, and bounds the wait on
// an exhausted pool by AcquireTimeout.
func (r *Router) Acquire(ctx context.Context, tenantID uuid.UUID) (*Handle, error) {
	entry, err := r.entryFor(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	acquireCtx := ctx
	if r.opts.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, r.opts.AcquireTimeout)
		defer cancel()
	}

	conn, err := entry.pool.Acquire(acquireCtx)
	if err != nil {
		// The caller's own deadline or cancellation wins over the exhaustion
		// classification.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if acquireCtx.Err() != nil {
			countAcquire(tenantID, "exhausted")
			return nil, ErrPoolExhausted.WithDetails(tenantID.String())
		}
		countAcquire(tenantID, "error")
		return nil, err
	}

	countAcquire(tenantID, "ok")
	activeHandles.WithLabelValues(tenantID.String()).Inc()
	return &Handle{
		conn:         conn,
		tenantID:     tenantID,
		databaseName: entry.database,
		onRelease: func() {
			activeHandles.WithLabelValues(tenantID.String()).Dec()
		},
	}, nil
}

// Rotate re-dials the tenant's pool with freshly loaded credentials. At most
// one rotation per tenant is in flight; concurrent callers wait for the owner
// and share its outcome, failing with ROTATION_TIMEOUT if it does not finish
// in time.
func (r *Router) Rotate(ctx context.Context, tenantID uuid.UUID) error {
	deadline := time.Now().Add(r.opts.RotationTimeout)

	op, owner := r.begin(tenantID)
	if !owner {
		return r.await(ctx, op, deadline)
	}
	err := r.redial(ctx, tenantID, deadline)
	r.end(tenantID, err)
	return err
}

func (r *Router) redial(ctx context.Context, tenantID uuid.UUID, deadline time.Time) error {
	var lastErr error
	for attempt := 0; attempt <= r.opts.RotationRetries; attempt++ {
		if time.Now().After(deadline) {
			rotations.WithLabelValues("timeout").Inc()
			return ErrRotationTimeout.WithDetails(tenantID.String())
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		creds, err := r.loadCredentials(ctx, tenantID)
		if err != nil {
			return err
		}
		pool, err := r.dialer.Dial(ctx, creds.ConnString, r.opts.MaxConnsPerTenant)
		if err != nil {
			lastErr = err
			r.log.WithError(err).WithField("tenant_id", tenantID).Warn("dbrouter: rotation dial failed")
			continue
		}

		r.swap(tenantID, &poolEntry{
			pool:        pool,
			fingerprint: creds.Fingerprint(),
			database:    creds.DatabaseName,
		})
		rotations.WithLabelValues("ok").Inc()
		return nil
	}

	rotations.WithLabelValues("failed").Inc()
	if lastErr != nil {
		return lastErr
	}
	return ErrRotationTimeout.WithDetails(tenantID.String())
}

// Evict closes and forgets the tenant's pool. Called on suspension and
// deletion so a revoked tenant cannot ride an existing pool.
func (r *Router) Evict(tenantID uuid.UUID) {
	r.mu.Lock()
	entry := r.pools[tenantID]
	delete(r.pools, tenantID)
	r.mu.Unlock()

	if entry != nil {
		entry.pool.Close()
	}
}

// Close shuts down every pool. Used on server shutdown.
func (r *Router) Close() {
	r.mu.Lock()
	entries := make([]*poolEntry, 0, len(r.pools))
	for _, e := range r.pools {
		entries = append(entries, e)
	}
	r.pools = make(map[uuid.UUID]*poolEntry)
	r.mu.Unlock()

	for _, e := range entries {
		e.pool.Close()
	}
}

func (r *Router) loadCredentials(ctx context.Context, tenantID uuid.UUID) (Credentials, error) {
	creds, err := r.source.Credentials(ctx, tenantID)
	if err != nil {
		return Credentials{}, err
	}
	switch creds.Status {
	case tenant.StatusActive:
		return creds, nil
	case tenant.StatusSuspended:
		countAcquire(tenantID, "suspended")
		return Credentials{}, ErrTenantSuspended.WithDetails(tenantID.String())
	case tenant.StatusDeleted:
		countAcquire(tenantID, "gone")
		return Credentials{}, ErrTenantGone.WithDetails(tenantID.String())
	default:
		countAcquire(tenantID, "not_ready")
		return Credentials{}, ErrTenantNotReady.WithDetails(tenantID.String())
	}
}

// entryFor returns the tenant's pool, dialing it if absent or stale. Dials are
// single-flight per tenant: concurrent acquirers wait for the dialer instead
// of stampeding the database. Credentials reload on every pass so a wait on an
// in-flight rotation never resurrects the pre-rotation generation.
func (r *Router) entryFor(ctx context.Context, tenantID uuid.UUID) (*poolEntry, error) {
	rotationAttempts := 0
	for {
		creds, err := r.loadCredentials(ctx, tenantID)
		if err != nil {
			return nil, err
		}

		// An expired credential must not back a new handle. Rotate first,
		// then come back around with the fresh generation.
		if r.rotationDue(creds) {
			if rotationAttempts > r.opts.RotationRetries {
				rotations.WithLabelValues("timeout").Inc()
				return nil, ErrRotationTimeout.WithDetails(tenantID.String())
			}
			rotationAttempts++
			if err := r.rotateExpired(ctx, tenantID); err != nil {
				return nil, err
			}
			continue
		}

		r.mu.Lock()
		if entry, ok := r.pools[tenantID]; ok && entry.fingerprint == creds.Fingerprint() {
			r.mu.Unlock()
			return entry, nil
		}
		if op, busy := r.inflight[tenantID]; busy {
			r.mu.Unlock()
			select {
			case <-op.done:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		op := &inflightOp{done: make(chan struct{})}
		r.inflight[tenantID] = op
		stale := r.pools[tenantID]
		r.mu.Unlock()

		pool, err := r.dialer.Dial(ctx, creds.ConnString, r.opts.MaxConnsPerTenant)

		r.mu.Lock()
		delete(r.inflight, tenantID)
		op.err = err
		close(op.done)
		if err != nil {
			r.mu.Unlock()
			return nil, err
		}
		entry := &poolEntry{
			pool:        pool,
			fingerprint: creds.Fingerprint(),
			database:    creds.DatabaseName,
		}
		r.pools[tenantID] = entry
		r.mu.Unlock()

		if stale != nil {
			stale.pool.Close()
		}
		return entry, nil
	}
}

func (r *Router) rotationDue(creds Credentials) bool {
	return r.rotator != nil && !creds.RotateAfter.IsZero() && !creds.RotateAfter.After(time.Now())
}

// rotateExpired runs the rotator single-flight per tenant. Losers wait for the
// owner's outcome and then reload credentials.
func (r *Router) rotateExpired(ctx context.Context, tenantID uuid.UUID) error {
	deadline := time.Now().Add(r.opts.RotationTimeout)

	op, owner := r.begin(tenantID)
	if !owner {
		return r.await(ctx, op, deadline)
	}

	err := r.rotator.Rotate(ctx, tenantID)
	if err != nil {
		rotations.WithLabelValues("failed").Inc()
		r.log.WithError(err).WithField("tenant_id", tenantID).Warn("dbrouter: expired credential rotation failed")
	} else {
		rotations.WithLabelValues("ok").Inc()
	}
	r.end(tenantID, err)
	return err
}

func (r *Router) begin(tenantID uuid.UUID) (*inflightOp, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if op, busy := r.inflight[tenantID]; busy {
		return op, false
	}
	op := &inflightOp{done: make(chan struct{})}
	r.inflight[tenantID] = op
	return op, true
}

func (r *Router) end(tenantID uuid.UUID, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if op, ok := r.inflight[tenantID]; ok {
		op.err = err
		delete(r.inflight, tenantID)
		close(op.done)
	}
}

// await blocks until the in-flight owner finishes and returns the owner's
// outcome, so a waiter never reports success for a rotation that failed.
func (r *Router) await(ctx context.Context, op *inflightOp, deadline time.Time) error {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	select {
	case <-op.done:
		return op.err
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		rotations.WithLabelValues("timeout").Inc()
		return ErrRotationTimeout
	}
}

func (r *Router) swap(tenantID uuid.UUID, entry *poolEntry) {
	r.mu.Lock()
	old := r.pools[tenantID]
	r.pools[tenantID] = entry
	r.mu.Unlock()

	if old != nil {
		old.pool.Close()
	}
}
