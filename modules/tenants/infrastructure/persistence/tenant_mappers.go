package persistence

import (
	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/omnierp/controlplane/modules/tenants/domain/aggregates/tenant"
	"github.com/omnierp/controlplane/modules/tenants/domain/value_objects/secretref"
	"github.com/omnierp/controlplane/modules/tenants/infrastructure/persistence/models"
	"github.com/omnierp/controlplane/pkg/mapping"
)

func ToDomainTenant(row *models.Tenant) (*tenant.Tenant, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid tenant id")
	}
	return tenant.New(row.Code, row.Name,
		tenant.WithID(id),
		tenant.WithDomain(row.Domain.String),
		tenant.WithStatus(tenant.Status(row.Status)),
		tenant.WithFailureReason(row.FailureReason.String),
		tenant.WithDatabase(row.DatabaseName.String, row.DatabaseHost.String),
		tenant.WithConnString(secretref.FromStored(row.ConnStringEncrypted, row.ConnString.String)),
		tenant.WithRotateAfter(row.ConnRotateAfter.Time),
		tenant.WithAPIKeyHash(row.APIKeyHash.String),
		tenant.WithCreatedAt(row.CreatedAt),
		tenant.WithUpdatedAt(row.UpdatedAt),
	), nil
}

func ToDBTenant(t *tenant.Tenant) *models.Tenant {
	return &models.Tenant{
		ID:                  t.ID().String(),
		Code:                t.Code(),
		Name:                t.Name(),
		Domain:              mapping.ValueToSQLNullString(t.Domain()),
		Status:              string(t.Status()),
		FailureReason:       mapping.ValueToSQLNullString(t.FailureReason()),
		DatabaseName:        mapping.ValueToSQLNullString(t.DatabaseName()),
		DatabaseHost:        mapping.ValueToSQLNullString(t.DatabaseHost()),
		// Sealed credentials persist only in the encrypted column; the legacy
		// plaintext column empties on the first sealed write.
		ConnStringEncrypted: t.ConnString().Ciphertext(),
		ConnString:          mapping.ValueToSQLNullString(t.ConnString().StoredLegacy()),
		ConnRotateAfter:     mapping.ValueToSQLNullTime(t.RotateAfter()),
		APIKeyHash:          mapping.ValueToSQLNullString(t.APIKeyHash()),
		CreatedAt:           t.CreatedAt(),
		UpdatedAt:           t.UpdatedAt(),
	}
}
