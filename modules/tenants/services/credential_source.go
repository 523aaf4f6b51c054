package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/omnierp/controlplane/modules/tenants/domain/aggregates/tenant"
	"github.com/omnierp/controlplane/modules/tenants/infrastructure/dbrouter"
	"github.com/omnierp/controlplane/pkg/kms"
)

// TenantCredentialSource feeds the connection router. The stored credential is
// unsealed on every call and only for active tenants, so plaintext exists for
// the duration of a dial and nowhere else.
type TenantCredentialSource struct {
	repo tenant.Repository
	km   kms.KeyManager
}

func NewTenantCredentialSource(repo tenant.Repository, km kms.KeyManager) *TenantCredentialSource {
	return &TenantCredentialSource{repo: repo, km: km}
}

func (s *TenantCredentialSource) Credentials(ctx context.Context, tenantID uuid.UUID) (dbrouter.Credentials, error) {
	t, err := s.repo.GetByID(ctx, tenantID)
	if errors.Is(err, tenant.ErrNotFound) {
		return dbrouter.Credentials{}, dbrouter.ErrTenantNotFound.WithDetails(tenantID.String())
	}
	if errors.Is(err, tenant.ErrGone) {
		return dbrouter.Credentials{}, dbrouter.ErrTenantGone.WithDetails(tenantID.String())
	}
	if err != nil {
		return dbrouter.Credentials{}, errors.Wrap(err, "load tenant credentials")
	}

	creds := dbrouter.Credentials{
		TenantID:     t.ID(),
		Status:       t.Status(),
		DatabaseName: t.DatabaseName(),
		RotateAfter:  t.RotateAfter(),
	}
	if !t.Status().Routable() {
		// The router refuses these; no reason to unseal anything.
		return creds, nil
	}

	connString, err := t.ConnString().Reveal(s.km)
	if err != nil {
		return dbrouter.Credentials{}, errors.Wrap(err, "unseal tenant credentials")
	}
	creds.ConnString = connString
	return creds, nil
}
