package provision

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/omnierp/controlplane/modules/tenants/domain/aggregates/tenant"
	"github.com/omnierp/controlplane/modules/tenants/services"
)

const (
	duplicateObject   = "42710"
	duplicateDatabase = "42P04"
)

// PgxProvisioner creates tenant databases on a shared Postgres host: one
// database and one login role per tenant, owned by that role. Creation runs
// synchronously, so a ticket reaches a terminal state by the first poll.
// Reruns are idempotent so a failed tenant can be retried without manual
// cleanup.
type PgxProvisioner struct {
	adminConnString string
	tenantHost      string
	log             *logrus.Logger

	mu      sync.Mutex
	tickets map[services.ProvisioningTicket]services.ProvisioningStatus
}

func NewPgxProvisioner(adminConnString, tenantHost string, log *logrus.Logger) *PgxProvisioner {
	return &PgxProvisioner{
		adminConnString: adminConnString,
		tenantHost:      tenantHost,
		log:             log,
		tickets:         make(map[services.ProvisioningTicket]services.ProvisioningStatus),
	}
}

// RequestDatabaseCreation creates the role and database and records the
// outcome under a fresh ticket. Failures are delivered through the ticket, not
// the return value, so the lifecycle always polls its way to a terminal state.
func (p *PgxProvisioner) RequestDatabaseCreation(ctx context.Context, t *tenant.Tenant) (services.ProvisioningTicket, error) {
	ticket := services.ProvisioningTicket(uuid.New().String())

	db, err := p.createDatabase(ctx, t)
	status := services.ProvisioningStatus{State: services.ProvisioningSucceeded, Database: db}
	if err != nil {
		status = services.ProvisioningStatus{State: services.ProvisioningFailed, Reason: err.Error()}
	}

	p.mu.Lock()
	p.tickets[ticket] = status
	p.mu.Unlock()
	return ticket, nil
}

func (p *PgxProvisioner) PollProvisioningStatus(_ context.Context, ticket services.ProvisioningTicket) (services.ProvisioningStatus, error) {
	p.mu.Lock()
	status, ok := p.tickets[ticket]
	p.mu.Unlock()
	if !ok {
		return services.ProvisioningStatus{}, errors.Errorf("unknown provisioning ticket %s", ticket)
	}
	return status, nil
}

// RotateCredentials resets the tenant role's password and returns the new
// connection string. The database and its data are untouched.
func (p *PgxProvisioner) RotateCredentials(ctx context.Context, t *tenant.Tenant) (*services.ProvisionedDatabase, error) {
	role := "tenant_" + identFor(t.Code())
	dbName := t.DatabaseName()
	if dbName == "" {
		dbName = "tenant_" + identFor(t.Code())
	}

	password, err := newPassword()
	if err != nil {
		return nil, err
	}

	conn, err := pgx.Connect(ctx, p.adminConnString)
	if err != nil {
		return nil, errors.Wrap(err, "connect provisioning host")
	}
	defer func() {
		_ = conn.Close(ctx)
	}()

	alterRole := fmt.Sprintf(
		"ALTER ROLE %s LOGIN PASSWORD '%s'",
		pgx.Identifier{role}.Sanitize(), password,
	)
	if _, err := conn.Exec(ctx, alterRole); err != nil {
		return nil, errors.Wrap(err, "rotate tenant role password")
	}

	p.log.WithFields(logrus.Fields{
		"tenant_id": t.ID(),
		"database":  dbName,
	}).Info("rotated tenant database credential")

	return &services.ProvisionedDatabase{
		DatabaseName: dbName,
		DatabaseHost: p.tenantHost,
		ConnString:   p.connString(role, password, dbName),
	}, nil
}

func (p *PgxProvisioner) createDatabase(ctx context.Context, t *tenant.Tenant) (*services.ProvisionedDatabase, error) {
	ident := identFor(t.Code())
	dbName := "tenant_" + ident
	role := "tenant_" + ident

	password, err := newPassword()
	if err != nil {
		return nil, err
	}

	conn, err := pgx.Connect(ctx, p.adminConnString)
	if err != nil {
		return nil, errors.Wrap(err, "connect provisioning host")
	}
	defer func() {
		_ = conn.Close(ctx)
	}()

	// Password is hex, safe inside a literal. Role may survive a failed
	// earlier run; reset its password instead of failing.
	createRole := fmt.Sprintf(
		"CREATE ROLE %s LOGIN PASSWORD '%s'",
		pgx.Identifier{role}.Sanitize(), password,
	)
	if _, err := conn.Exec(ctx, createRole); err != nil {
		if !isPgCode(err, duplicateObject) {
			return nil, errors.Wrap(err, "create tenant role")
		}
		alterRole := fmt.Sprintf(
			"ALTER ROLE %s LOGIN PASSWORD '%s'",
			pgx.Identifier{role}.Sanitize(), password,
		)
		if _, err := conn.Exec(ctx, alterRole); err != nil {
			return nil, errors.Wrap(err, "reset tenant role")
		}
	}

	createDB := fmt.Sprintf(
		"CREATE DATABASE %s OWNER %s",
		pgx.Identifier{dbName}.Sanitize(), pgx.Identifier{role}.Sanitize(),
	)
	if _, err := conn.Exec(ctx, createDB); err != nil && !isPgCode(err, duplicateDatabase) {
		return nil, errors.Wrap(err, "create tenant database")
	}

	p.log.WithFields(logrus.Fields{
		"tenant_id": t.ID(),
		"database":  dbName,
		"host":      p.tenantHost,
	}).Info("provisioned tenant database")

	return &services.ProvisionedDatabase{
		DatabaseName: dbName,
		DatabaseHost: p.tenantHost,
		ConnString:   p.connString(role, password, dbName),
	}, nil
}

func (p *PgxProvisioner) connString(role, password, dbName string) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=disable",
		role, password, p.tenantHost, dbName,
	)
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// identFor turns a tenant code into a safe lowercase identifier fragment.
func identFor(code string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(code) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func newPassword() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "generate tenant password")
	}
	return hex.EncodeToString(buf), nil
}
