package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/auditcore/auditcore/pkg/adapter"
	"github.com/auditcore/auditcore/pkg/finding"
)

func TestRegisterAndGet(t *testing.T) {
	r := New()
	r.Register("slither", func() adapter.Adapter { return adapter.NewSlither() })

	require.True(t, r.Has("slither"))
	require.False(t, r.Has("mythril"))

	a := r.Get("slither")
	require.NotNil(t, a)
	require.Equal(t, "slither", a.Metadata().Name)
}

func TestGetUnknownReturnsNil(t *testing.T) {
	r := New()
	require.Nil(t, r.Get("nonexistent"))
}

func TestListPreservesRegistrationOrder(t *testing.T) {
	r := New()
	r.Register("c", func() adapter.Adapter { return adapter.NewSolhint() })
	r.Register("a", func() adapter.Adapter { return adapter.NewSlither() })
	r.Register("b", func() adapter.Adapter { return adapter.NewMythril() })

	names := make([]string, 0)
	for _, a := range r.List() {
		names = append(names, a.Metadata().Name)
	}
	require.Equal(t, []string{"solhint", "slither", "mythril"}, names)
}

func TestReRegisterOverridesInPlace(t *testing.T) {
	r := New()
	r.Register("x", func() adapter.Adapter { return adapter.NewSlither() })
	r.Register("y", func() adapter.Adapter { return adapter.NewMythril() })
	r.Register("x", func() adapter.Adapter { return adapter.NewEchidna() })

	names := make([]string, 0)
	for _, a := range r.List() {
		names = append(names, a.Metadata().Name)
	}
	require.Equal(t, []string{"echidna", "mythril"}, names)
}

func TestSelectByCategory(t *testing.T) {
	r := Default(nil)
	statics := r.ByCategory(finding.CategoryStatic)
	require.Len(t, statics, 1)
	require.Equal(t, "slither", statics[0].Metadata().Name)
}

func TestSelectByCapability(t *testing.T) {
	r := Default(nil)
	reentrancy := r.Select(func(m finding.ToolMetadata) bool { return m.HasCapability("detects-reentrancy") })
	names := make(map[string]bool)
	for _, a := range reentrancy {
		names[a.Metadata().Name] = true
	}
	require.True(t, names["slither"])
	require.True(t, names["mythril"])
	require.False(t, names["solhint"])
}

func TestByNamesSkipsUnknown(t *testing.T) {
	r := Default(nil)
	selected := r.ByNames([]string{"slither", "nonexistent", "mythril"})
	require.Len(t, selected, 2)
}

func TestDefaultRegistryAuditGPTUninstalledWithNilClient(t *testing.T) {
	r := Default(nil)
	a := r.Get("auditgpt")
	require.Equal(t, finding.StatusNotInstalled, a.ProbeAvailability(context.Background()))
}
