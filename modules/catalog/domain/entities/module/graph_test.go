package module_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnierp/controlplane/modules/catalog/domain/entities/module"
)

func TestValidateGraph_AcceptsAcyclicCatalog(t *testing.T) {
	t.Parallel()
	mods := []*module.Module{
		module.New("crm", "CRM"),
		module.New("hr", "HR"),
		module.New("payroll", "Payroll", module.WithDependsOn("hr")),
		module.New("analytics", "Analytics", module.WithDependsOn("crm", "hr")),
	}
	require.NoError(t, module.ValidateGraph(mods))
}

func TestValidateGraph_RejectsCycle(t *testing.T) {
	t.Parallel()
	mods := []*module.Module{
		module.New("a", "A", module.WithDependsOn("b")),
		module.New("b", "B", module.WithDependsOn("c")),
		module.New("c", "C", module.WithDependsOn("a")),
	}
	err := module.ValidateGraph(mods)
	var cycleErr *module.CycleError
	require.ErrorAs(t, err, &cycleErr)
}

func TestValidateGraph_RejectsSelfDependency(t *testing.T) {
	t.Parallel()
	mods := []*module.Module{
		module.New("a", "A", module.WithDependsOn("a")),
	}
	err := module.ValidateGraph(mods)
	var cycleErr *module.CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, "a", cycleErr.Code)
}

func TestValidateGraph_RejectsUnknownDependency(t *testing.T) {
	t.Parallel()
	mods := []*module.Module{
		module.New("payroll", "Payroll", module.WithDependsOn("hr")),
	}
	err := module.ValidateGraph(mods)
	var unknownErr *module.UnknownDependencyError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "payroll", unknownErr.Module)
	assert.Equal(t, "hr", unknownErr.Requires)
}

func TestValidateGraph_EmptyCatalog(t *testing.T) {
	t.Parallel()
	require.NoError(t, module.ValidateGraph(nil))
}
