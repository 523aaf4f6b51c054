package mappers

import (
	"github.com/omnierp/controlplane/modules/tenants/domain/aggregates/tenant"
	"github.com/omnierp/controlplane/modules/tenants/infrastructure/directory"
	"github.com/omnierp/controlplane/modules/tenants/presentation/viewmodels"
)

func TenantToViewModel(t *tenant.Tenant) *viewmodels.Tenant {
	vm := &viewmodels.Tenant{
		ID:            t.ID().String(),
		Code:          t.Code(),
		Name:          t.Name(),
		Domain:        t.Domain(),
		Status:        string(t.Status()),
		FailureReason: t.FailureReason(),
		DatabaseName:  t.DatabaseName(),
		DatabaseHost:  t.DatabaseHost(),
		CreatedAt:     t.CreatedAt(),
		UpdatedAt:     t.UpdatedAt(),
	}
	if deadline := t.RotateAfter(); !deadline.IsZero() {
		vm.RotateAfter = &deadline
	}
	return vm
}

func DescriptorToViewModel(d *directory.Descriptor) *viewmodels.Descriptor {
	return &viewmodels.Descriptor{
		ID:           d.ID.String(),
		Code:         d.Code,
		Name:         d.Name,
		Domain:       d.Domain,
		Status:       string(d.Status),
		DatabaseName: d.DatabaseName,
		DatabaseHost: d.DatabaseHost,
	}
}
