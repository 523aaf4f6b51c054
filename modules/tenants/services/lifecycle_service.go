package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/omnierp/controlplane/modules/tenants/domain/aggregates/tenant"
	"github.com/omnierp/controlplane/modules/tenants/domain/value_objects/secretref"
	"github.com/omnierp/controlplane/pkg/eventbus"
	"github.com/omnierp/controlplane/pkg/kms"
)

var (
	ErrOpenSubscriptions = errors.New("tenant has non-terminal subscriptions")
	ErrCodeTaken         = errors.New("tenant code is already in use")
)

// provisionPollInterval is the wait between polls while a provisioning ticket
// is still pending.
const provisionPollInterval = 2 * time.Second

// ProvisionedDatabase is what a provisioner hands back after creating the
// tenant's database. ConnString is plaintext and is sealed before it touches
// the tenant record.
type ProvisionedDatabase struct {
	DatabaseName string
	DatabaseHost string
	ConnString   string
}

// ProvisioningTicket identifies an in-flight database creation request.
type ProvisioningTicket string

type ProvisioningState string

const (
	ProvisioningPending   ProvisioningState = "pending"
	ProvisioningSucceeded ProvisioningState = "succeeded"
	ProvisioningFailed    ProvisioningState = "failed"
)

// ProvisioningStatus is the polled outcome of a ticket. Database is set once
// the state is Succeeded; Reason once it is Failed.
type ProvisioningStatus struct {
	State    ProvisioningState
	Reason   string
	Database *ProvisionedDatabase
}

// Provisioner is the out-of-process collaborator that creates tenant databases
// and issues their credentials.
type Provisioner interface {
	RequestDatabaseCreation(ctx context.Context, t *tenant.Tenant) (ProvisioningTicket, error)
	PollProvisioningStatus(ctx context.Context, ticket ProvisioningTicket) (ProvisioningStatus, error)
	// RotateCredentials issues a fresh credential for an already provisioned
	// database without touching its data.
	RotateCredentials(ctx context.Context, t *tenant.Tenant) (*ProvisionedDatabase, error)
}

// SubscriptionGuard answers whether a tenant still owns billing state.
// Satisfied by the catalog subscription repository.
type SubscriptionGuard interface {
	HasNonTerminal(ctx context.Context, tenantID uuid.UUID) (bool, error)
}

// PoolRouter is the slice of the connection router the lifecycle needs:
// dropping pools when a tenant loses the right to traffic, and re-dialing
// after a credential rotation.
type PoolRouter interface {
	Evict(tenantID uuid.UUID)
	Rotate(ctx context.Context, tenantID uuid.UUID) error
}

type RegisterParams struct {
	Code   string
	Name   string
	Domain string
}

// LifecycleService drives tenants through registered, provisioning, active,
// suspended, failed and deleted. All mutations for one tenant serialize on a
// per-tenant lock so a retry cannot race a delete.
type LifecycleService struct {
	repo           tenant.Repository
	provisioner    Provisioner
	subscriptions  SubscriptionGuard
	km             kms.KeyManager
	router         PoolRouter
	directory      *DirectoryService
	publisher      eventbus.EventBus
	rotationWindow time.Duration

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewLifecycleService(
	repo tenant.Repository,
	provisioner Provisioner,
	subscriptions SubscriptionGuard,
	km kms.KeyManager,
	router PoolRouter,
	directory *DirectoryService,
	publisher eventbus.EventBus,
	rotationWindow time.Duration,
) *LifecycleService {
	return &LifecycleService{
		repo:           repo,
		provisioner:    provisioner,
		subscriptions:  subscriptions,
		km:             km,
		router:         router,
		directory:      directory,
		publisher:      publisher,
		rotationWindow: rotationWindow,
		locks:          make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *LifecycleService) lockFor(tenantID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[tenantID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[tenantID] = l
	}
	return l
}

func (s *LifecycleService) GetByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *LifecycleService) GetAll(ctx context.Context) ([]*tenant.Tenant, error) {
	return s.repo.GetAll(ctx)
}

// Register creates the tenant record in Registered and mints its API key. The
// raw key is returned exactly once; only its hash is stored.
func (s *LifecycleService) Register(ctx context.Context, params RegisterParams) (*tenant.Tenant, string, error) {
	if _, err := s.repo.GetByCode(ctx, params.Code); err == nil {
		return nil, "", ErrCodeTaken
	} else if !errors.Is(err, tenant.ErrNotFound) {
		return nil, "", errors.Wrap(err, "check tenant code")
	}

	rawKey, err := newAPIKey()
	if err != nil {
		return nil, "", err
	}

	t := tenant.New(params.Code, params.Name,
		tenant.WithDomain(params.Domain),
		tenant.WithAPIKeyHash(HashAPIKey(rawKey)),
	)
	created, err := s.repo.Create(ctx, t)
	if err != nil {
		return nil, "", errors.Wrap(err, "create tenant")
	}

	s.publisher.Publish(tenant.NewRegisteredEvent(created))
	return created, rawKey, nil
}

// Provision takes a registered tenant through provisioning: request the
// database, poll the ticket to a terminal state, seal the credential. A failed
// run lands in Failed with the reason recorded, never in Active.
func (s *LifecycleService) Provision(ctx context.Context, tenantID uuid.UUID) (*tenant.Tenant, error) {
	lock := s.lockFor(tenantID)
	lock.Lock()
	defer lock.Unlock()

	t, err := s.repo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	from := t.Status()
	if err := t.BeginProvisioning(); err != nil {
		return nil, err
	}
	if t, err = s.repo.Update(ctx, t); err != nil {
		return nil, errors.Wrap(err, "mark tenant provisioning")
	}
	s.publisher.Publish(tenant.NewStatusChangedEvent(t, from, t.Status()))

	var db *ProvisionedDatabase
	ticket, provErr := s.provisioner.RequestDatabaseCreation(ctx, t)
	if provErr == nil {
		db, provErr = s.awaitProvisioning(ctx, ticket)
	}
	if provErr == nil {
		var ref secretref.SecretRef
		if ref, err = secretref.Seal(s.km, db.ConnString); err != nil {
			provErr = err
		} else if err = t.CompleteProvisioning(db.DatabaseName, db.DatabaseHost, ref, s.nextRotateDeadline()); err != nil {
			provErr = err
		}
	}
	if provErr != nil {
		if err := t.MarkFailed(provErr.Error()); err != nil {
			return nil, err
		}
		if t, err = s.repo.Update(ctx, t); err != nil {
			return nil, errors.Wrap(err, "record provisioning failure")
		}
		s.publisher.Publish(tenant.NewProvisioningFailedEvent(t, t.FailureReason()))
		return t, errors.Wrap(provErr, "provision tenant")
	}

	if t, err = s.repo.Update(ctx, t); err != nil {
		return nil, errors.Wrap(err, "activate tenant")
	}
	s.directory.InvalidateTenant(ctx, t)
	s.publisher.Publish(tenant.NewStatusChangedEvent(t, tenant.StatusProvisioning, t.Status()))
	return t, nil
}

// awaitProvisioning polls the ticket until the collaborator reports a terminal
// state.
func (s *LifecycleService) awaitProvisioning(ctx context.Context, ticket ProvisioningTicket) (*ProvisionedDatabase, error) {
	ticker := time.NewTicker(provisionPollInterval)
	defer ticker.Stop()

	for {
		status, err := s.provisioner.PollProvisioningStatus(ctx, ticket)
		if err != nil {
			return nil, err
		}
		switch status.State {
		case ProvisioningSucceeded:
			return status.Database, nil
		case ProvisioningFailed:
			return nil, errors.New(status.Reason)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Retry resets a failed tenant to Registered for another provisioning run.
func (s *LifecycleService) Retry(ctx context.Context, tenantID uuid.UUID) (*tenant.Tenant, error) {
	return s.transition(ctx, tenantID, func(t *tenant.Tenant) error {
		return t.Retry()
	})
}

// Suspend stops routing for the tenant and drops its pool.
func (s *LifecycleService) Suspend(ctx context.Context, tenantID uuid.UUID) (*tenant.Tenant, error) {
	t, err := s.transition(ctx, tenantID, func(t *tenant.Tenant) error {
		return t.Suspend()
	})
	if err != nil {
		return nil, err
	}
	s.router.Evict(tenantID)
	return t, nil
}

func (s *LifecycleService) Reactivate(ctx context.Context, tenantID uuid.UUID) (*tenant.Tenant, error) {
	return s.transition(ctx, tenantID, func(t *tenant.Tenant) error {
		return t.Reactivate()
	})
}

// Delete tombstones the tenant. It is refused while any non-terminal
// subscription remains. On success the stored credential is scrubbed, the
// pool is dropped and every directory entry pointing at the tenant is
// invalidated.
func (s *LifecycleService) Delete(ctx context.Context, tenantID uuid.UUID) (*tenant.Tenant, error) {
	lock := s.lockFor(tenantID)
	lock.Lock()
	defer lock.Unlock()

	open, err := s.subscriptions.HasNonTerminal(ctx, tenantID)
	if err != nil {
		return nil, errors.Wrap(err, "check open subscriptions")
	}
	if open {
		return nil, ErrOpenSubscriptions
	}

	t, err := s.repo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	// Keys are needed for invalidation, captured before MarkDeleted clears
	// them.
	stale := tenant.New(t.Code(), t.Name(),
		tenant.WithID(t.ID()),
		tenant.WithDomain(t.Domain()),
		tenant.WithAPIKeyHash(t.APIKeyHash()),
	)
	if err := t.MarkDeleted(); err != nil {
		return nil, err
	}
	if t, err = s.repo.Update(ctx, t); err != nil {
		return nil, errors.Wrap(err, "mark tenant deleted")
	}
	if err := s.repo.ScrubSecrets(ctx, tenantID); err != nil {
		return nil, errors.Wrap(err, "scrub tenant secrets")
	}

	s.router.Evict(tenantID)
	s.directory.InvalidateTenant(ctx, stale)
	s.publisher.Publish(tenant.NewDeletedEvent(t))
	return t, nil
}

// ReissueCredential mints a fresh database credential through the provisioner,
// seals and persists it, and advances the rotation deadline. The router calls
// this when a credential's deadline lapses; the pool itself re-dials on the
// changed fingerprint.
func (s *LifecycleService) ReissueCredential(ctx context.Context, tenantID uuid.UUID) error {
	lock := s.lockFor(tenantID)
	lock.Lock()
	defer lock.Unlock()

	t, err := s.repo.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}
	if t.Status() == tenant.StatusDeleted {
		return tenant.ErrGone
	}

	db, err := s.provisioner.RotateCredentials(ctx, t)
	if err != nil {
		return errors.Wrap(err, "issue rotated credential")
	}
	ref, err := secretref.Seal(s.km, db.ConnString)
	if err != nil {
		return err
	}
	t.RotateConnString(ref, s.nextRotateDeadline())
	if t, err = s.repo.Update(ctx, t); err != nil {
		return errors.Wrap(err, "persist rotated credential")
	}
	s.directory.InvalidateTenant(ctx, t)
	s.publisher.Publish(tenant.NewCredentialsRotatedEvent(t))
	return nil
}

// RotateCredentials is the operator-triggered rotation: reissue the credential
// and re-dial the tenant's pool so the old generation retires immediately.
func (s *LifecycleService) RotateCredentials(ctx context.Context, tenantID uuid.UUID) (*tenant.Tenant, error) {
	if err := s.ReissueCredential(ctx, tenantID); err != nil {
		return nil, err
	}
	if err := s.router.Rotate(ctx, tenantID); err != nil {
		return nil, errors.Wrap(err, "rotate tenant pool")
	}
	return s.repo.GetByID(ctx, tenantID)
}

func (s *LifecycleService) nextRotateDeadline() time.Time {
	if s.rotationWindow <= 0 {
		return time.Time{}
	}
	return time.Now().Add(s.rotationWindow)
}

func (s *LifecycleService) transition(ctx context.Context, tenantID uuid.UUID, apply func(*tenant.Tenant) error) (*tenant.Tenant, error) {
	lock := s.lockFor(tenantID)
	lock.Lock()
	defer lock.Unlock()

	t, err := s.repo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	from := t.Status()
	if err := apply(t); err != nil {
		return nil, err
	}
	if t, err = s.repo.Update(ctx, t); err != nil {
		return nil, errors.Wrap(err, "persist tenant transition")
	}
	s.directory.InvalidateTenant(ctx, t)
	s.publisher.Publish(tenant.NewStatusChangedEvent(t, from, t.Status()))
	return t, nil
}

func newAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "generate api key")
	}
	return hex.EncodeToString(buf), nil
}
