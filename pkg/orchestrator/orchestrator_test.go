package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/auditcore/auditcore/pkg/adapter"
	"github.com/auditcore/auditcore/pkg/auditerr"
	"github.com/auditcore/auditcore/pkg/finding"
	"github.com/auditcore/auditcore/pkg/registry"
)

// TestMain verifies that errgroup-based adapter execution leaves no
// goroutines running past test completion.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeAdapter is a minimal Adapter used to exercise plan construction and
// execution without shelling out to a real analyzer binary.
type fakeAdapter struct {
	meta      finding.ToolMetadata
	status    finding.ToolStatus
	sleepFor  time.Duration
	resultErr error
}

func (f *fakeAdapter) Metadata() finding.ToolMetadata { return f.meta }

func (f *fakeAdapter) ProbeAvailability(ctx context.Context) finding.ToolStatus { return f.status }

func (f *fakeAdapter) Analyze(ctx context.Context, input finding.ContractInput, opts adapter.Options, deadline time.Time) finding.RawFindingEnvelope {
	select {
	case <-time.After(f.sleepFor):
	case <-ctx.Done():
		return finding.RawFindingEnvelope{Tool: f.meta.Name, Status: finding.EnvelopeTimeout, Err: ctx.Err()}
	}
	if time.Now().After(deadline) {
		return finding.RawFindingEnvelope{Tool: f.meta.Name, Status: finding.EnvelopeTimeout}
	}
	if f.resultErr != nil {
		return finding.RawFindingEnvelope{Tool: f.meta.Name, Status: finding.EnvelopeCrash, Err: f.resultErr}
	}
	return finding.RawFindingEnvelope{
		Tool:   f.meta.Name,
		Status: finding.EnvelopeSuccess,
		Records: []finding.RawRecord{
			{NativeRuleID: "fake-rule", Message: "fake finding"},
		},
	}
}

func (f *fakeAdapter) Parse(raw []byte) ([]finding.RawRecord, error) { return nil, nil }

func newFakeAdapter(name string, category finding.ToolCategory, optional bool) *fakeAdapter {
	return &fakeAdapter{
		meta:   finding.ToolMetadata{Name: name, Category: category, Optional: optional},
		status: finding.StatusAvailable,
	}
}

func TestRunAuditQuickModeOnlyStatic(t *testing.T) {
	reg := registry.New()
	reg.Register("static-one", func() adapter.Adapter { return newFakeAdapter("static-one", finding.CategoryStatic, true) })
	reg.Register("linter-one", func() adapter.Adapter { return newFakeAdapter("linter-one", finding.CategoryLinter, true) })

	o := New(reg, 2)
	res, err := o.RunAudit(context.Background(), finding.ContractInput{Path: "x.sol"}, ModeQuick, RunOptions{})
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	require.Equal(t, "static-one", res.Outcomes[0].Tool)
}

func TestRunAuditStandardModeStaticAndLinter(t *testing.T) {
	reg := registry.New()
	reg.Register("static-one", func() adapter.Adapter { return newFakeAdapter("static-one", finding.CategoryStatic, true) })
	reg.Register("linter-one", func() adapter.Adapter { return newFakeAdapter("linter-one", finding.CategoryLinter, true) })
	reg.Register("symbolic-one", func() adapter.Adapter { return newFakeAdapter("symbolic-one", finding.CategorySymbolic, true) })

	o := New(reg, 2)
	res, err := o.RunAudit(context.Background(), finding.ContractInput{Path: "x.sol"}, ModeStandard, RunOptions{})
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 2)
}

func TestRunAuditNonOptionalUnavailableFailsFast(t *testing.T) {
	a := newFakeAdapter("must-have", finding.CategoryStatic, false)
	a.status = finding.StatusNotInstalled

	reg := registry.New()
	reg.Register("must-have", func() adapter.Adapter { return a })

	o := New(reg, 2)
	_, err := o.RunAudit(context.Background(), finding.ContractInput{Path: "x.sol"}, ModeQuick, RunOptions{})
	require.Error(t, err)
	kind, ok := auditerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, auditerr.KindAvailability, kind)
}

func TestRunAuditOptionalUnavailableDroppedNotFatal(t *testing.T) {
	a := newFakeAdapter("nice-to-have", finding.CategoryStatic, true)
	a.status = finding.StatusNotInstalled

	reg := registry.New()
	reg.Register("nice-to-have", func() adapter.Adapter { return a })

	o := New(reg, 2)
	_, err := o.RunAudit(context.Background(), finding.ContractInput{Path: "x.sol"}, ModeQuick, RunOptions{})
	require.Error(t, err) // zero adapters selected after drop
	kind, ok := auditerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, auditerr.KindInput, kind, "dropping an optional adapter must not be an availability failure")
}

func TestRunAuditZeroAdaptersIsInputError(t *testing.T) {
	reg := registry.New()
	o := New(reg, 2)
	_, err := o.RunAudit(context.Background(), finding.ContractInput{Path: "x.sol"}, ModeQuick, RunOptions{})
	require.Error(t, err)
}

func TestRunAuditCustomModeSelectsByName(t *testing.T) {
	reg := registry.New()
	reg.Register("a", func() adapter.Adapter { return newFakeAdapter("a", finding.CategoryStatic, true) })
	reg.Register("b", func() adapter.Adapter { return newFakeAdapter("b", finding.CategoryStatic, true) })

	o := New(reg, 2)
	res, err := o.RunAudit(context.Background(), finding.ContractInput{Path: "x.sol"}, ModeCustom, RunOptions{CustomNames: []string{"b"}})
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	require.Equal(t, "b", res.Outcomes[0].Tool)
}

func TestRunAuditPartialFailureStillCompletes(t *testing.T) {
	reg := registry.New()
	reg.Register("ok", func() adapter.Adapter { return newFakeAdapter("ok", finding.CategoryStatic, true) })
	reg.Register("crashy", func() adapter.Adapter {
		a := newFakeAdapter("crashy", finding.CategoryStatic, true)
		a.resultErr = context.Canceled
		return a
	})

	o := New(reg, 2)
	res, err := o.RunAudit(context.Background(), finding.ContractInput{Path: "x.sol"}, ModeQuick, RunOptions{})
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 2)
}

func TestRunAuditCancelMidFlightStopsRunningAdapter(t *testing.T) {
	reg := registry.New()
	reg.Register("slow", func() adapter.Adapter {
		a := newFakeAdapter("slow", finding.CategoryStatic, true)
		a.sleepFor = 10 * time.Second
		return a
	})

	cancel := make(chan struct{})
	go func() {
		time.Sleep(50 * time.Millisecond)
		close(cancel)
	}()

	o := New(reg, 2)
	start := time.Now()
	res, err := o.RunAudit(context.Background(), finding.ContractInput{Path: "x.sol"}, ModeQuick, RunOptions{Cancel: cancel})
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.True(t, res.Cancelled)
	require.Less(t, elapsed, 2*time.Second,
		"cancellation must tear down an already-dispatched adapter instead of waiting out its full deadline")
	require.Len(t, res.Outcomes, 1)
	require.Equal(t, finding.EnvelopeTimeout, res.Outcomes[0].Status)
}

func TestRunAuditAlreadyCancelledReturnsCancelledResult(t *testing.T) {
	reg := registry.New()
	reg.Register("a", func() adapter.Adapter { return newFakeAdapter("a", finding.CategoryStatic, true) })

	cancel := make(chan struct{})
	close(cancel)

	o := New(reg, 2)
	res, err := o.RunAudit(context.Background(), finding.ContractInput{Path: "x.sol"}, ModeQuick, RunOptions{Cancel: cancel})
	require.NoError(t, err)
	require.True(t, res.Cancelled)
}
