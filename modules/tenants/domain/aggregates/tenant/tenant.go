package tenant

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/omnierp/controlplane/modules/tenants/domain/value_objects/secretref"
)

type Status string

const (
	StatusRegistered   Status = "registered"
	StatusProvisioning Status = "provisioning"
	StatusActive       Status = "active"
	StatusSuspended    Status = "suspended"
	StatusFailed       Status = "failed"
	StatusDeleted      Status = "deleted"
)

// transitions is the full lifecycle edge set. A failed provisioning run goes
// back through Registered for a clean retry; Deleted is absorbing.
var transitions = map[Status][]Status{
	StatusRegistered:   {StatusProvisioning, StatusDeleted},
	StatusProvisioning: {StatusActive, StatusFailed},
	StatusActive:       {StatusSuspended, StatusDeleted},
	StatusSuspended:    {StatusActive, StatusDeleted},
	StatusFailed:       {StatusRegistered, StatusDeleted},
	StatusDeleted:      {},
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Routable reports whether the tenant may receive traffic.
func (s Status) Routable() bool {
	return s == StatusActive
}

type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid tenant transition %s -> %s", e.From, e.To)
}

// Tenant is the control-plane record of a customer organization. Its business
// data lives in a dedicated database reachable only through the sealed
// connection string held here.
type Tenant struct {
	id            uuid.UUID
	code          string
	name          string
	domain        string
	status        Status
	failureReason string
	databaseName  string
	databaseHost  string
	connString    secretref.SecretRef
	rotateAfter   time.Time
	apiKeyHash    string
	createdAt     time.Time
	updatedAt     time.Time
}

type Option func(*Tenant)

func WithID(id uuid.UUID) Option {
	return func(t *Tenant) {
		t.id = id
	}
}

func WithDomain(domain string) Option {
	return func(t *Tenant) {
		t.domain = domain
	}
}

func WithStatus(status Status) Option {
	return func(t *Tenant) {
		t.status = status
	}
}

func WithFailureReason(reason string) Option {
	return func(t *Tenant) {
		t.failureReason = reason
	}
}

func WithDatabase(name, host string) Option {
	return func(t *Tenant) {
		t.databaseName = name
		t.databaseHost = host
	}
}

func WithConnString(ref secretref.SecretRef) Option {
	return func(t *Tenant) {
		t.connString = ref
	}
}

// WithRotateAfter sets the deadline after which the stored credential must be
// rotated before it can back new connections.
func WithRotateAfter(deadline time.Time) Option {
	return func(t *Tenant) {
		t.rotateAfter = deadline
	}
}

func WithAPIKeyHash(hash string) Option {
	return func(t *Tenant) {
		t.apiKeyHash = hash
	}
}

func WithCreatedAt(createdAt time.Time) Option {
	return func(t *Tenant) {
		t.createdAt = createdAt
	}
}

func WithUpdatedAt(updatedAt time.Time) Option {
	return func(t *Tenant) {
		t.updatedAt = updatedAt
	}
}

func New(code, name string, opts ...Option) *Tenant {
	t := &Tenant{
		id:        uuid.New(),
		code:      code,
		name:      name,
		status:    StatusRegistered,
		createdAt: time.Now(),
		updatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tenant) ID() uuid.UUID {
	return t.id
}

func (t *Tenant) Code() string {
	return t.code
}

func (t *Tenant) Name() string {
	return t.name
}

func (t *Tenant) Domain() string {
	return t.domain
}

func (t *Tenant) Status() Status {
	return t.status
}

func (t *Tenant) FailureReason() string {
	return t.failureReason
}

func (t *Tenant) DatabaseName() string {
	return t.databaseName
}

func (t *Tenant) DatabaseHost() string {
	return t.databaseHost
}

func (t *Tenant) ConnString() secretref.SecretRef {
	return t.connString
}

func (t *Tenant) RotateAfter() time.Time {
	return t.rotateAfter
}

func (t *Tenant) APIKeyHash() string {
	return t.apiKeyHash
}

func (t *Tenant) CreatedAt() time.Time {
	return t.createdAt
}

func (t *Tenant) UpdatedAt() time.Time {
	return t.updatedAt
}

func (t *Tenant) transition(to Status) error {
	if !CanTransition(t.status, to) {
		return &TransitionError{From: t.status, To: to}
	}
	t.status = to
	t.updatedAt = time.Now()
	return nil
}

func (t *Tenant) BeginProvisioning() error {
	return t.transition(StatusProvisioning)
}

// CompleteProvisioning records the database placement produced by the
// provisioner and activates the tenant.
func (t *Tenant) CompleteProvisioning(databaseName, databaseHost string, connString secretref.SecretRef, rotateAfter time.Time) error {
	if err := t.transition(StatusActive); err != nil {
		return err
	}
	t.databaseName = databaseName
	t.databaseHost = databaseHost
	t.connString = connString
	t.rotateAfter = rotateAfter
	t.failureReason = ""
	return nil
}

func (t *Tenant) MarkFailed(reason string) error {
	if err := t.transition(StatusFailed); err != nil {
		return err
	}
	t.failureReason = reason
	return nil
}

// Retry resets a failed tenant for another provisioning attempt.
func (t *Tenant) Retry() error {
	if err := t.transition(StatusRegistered); err != nil {
		return err
	}
	t.failureReason = ""
	return nil
}

func (t *Tenant) Suspend() error {
	return t.transition(StatusSuspended)
}

func (t *Tenant) Reactivate() error {
	return t.transition(StatusActive)
}

// MarkDeleted tombstones the tenant and scrubs its credential so the secret is
// irrecoverable from this point on.
func (t *Tenant) MarkDeleted() error {
	if err := t.transition(StatusDeleted); err != nil {
		return err
	}
	t.connString.Scrub()
	t.connString = secretref.SecretRef{}
	t.rotateAfter = time.Time{}
	t.apiKeyHash = ""
	return nil
}

// RotateConnString swaps in a freshly sealed credential and advances the
// rotation deadline.
func (t *Tenant) RotateConnString(ref secretref.SecretRef, rotateAfter time.Time) {
	t.connString = ref
	t.rotateAfter = rotateAfter
	t.updatedAt = time.Now()
}
