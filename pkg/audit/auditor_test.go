package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/auditcore/auditcore/internal/config"
	"github.com/auditcore/auditcore/pkg/adapter"
	"github.com/auditcore/auditcore/pkg/correlation/llmcollab"
	"github.com/auditcore/auditcore/pkg/finding"
	"github.com/auditcore/auditcore/pkg/registry"
	"github.com/auditcore/auditcore/pkg/taxonomy"
)

type stubAdapter struct {
	meta    finding.ToolMetadata
	records []finding.RawRecord
}

func (s *stubAdapter) Metadata() finding.ToolMetadata { return s.meta }
func (s *stubAdapter) ProbeAvailability(ctx context.Context) finding.ToolStatus {
	return finding.StatusAvailable
}
func (s *stubAdapter) Analyze(ctx context.Context, input finding.ContractInput, opts adapter.Options, deadline time.Time) finding.RawFindingEnvelope {
	return finding.RawFindingEnvelope{Tool: s.meta.Name, Status: finding.EnvelopeSuccess, Records: s.records}
}
func (s *stubAdapter) Parse(raw []byte) ([]finding.RawRecord, error) { return s.records, nil }

func line(n int) *int { return &n }

func testRegistry() *registry.Registry {
	r := registry.New()
	r.Register("slither", func() adapter.Adapter {
		return &stubAdapter{
			meta: finding.ToolMetadata{Name: "slither", Category: finding.CategoryStatic, Optional: true},
			records: []finding.RawRecord{
				{NativeRuleID: "reentrancy-eth", Message: "external call before state write", File: "Vault.sol", Line: line(42), Function: "withdraw", Severity: "High"},
			},
		}
	})
	r.Register("mythril", func() adapter.Adapter {
		return &stubAdapter{
			meta: finding.ToolMetadata{Name: "mythril", Category: finding.CategoryStatic, Optional: true},
			records: []finding.RawRecord{
				{NativeRuleID: "SWC-107", Message: "reentrancy", File: "Vault.sol", Line: line(44), Function: "withdraw", Severity: "High"},
			},
		}
	})
	return r
}

func testAuditor(t *testing.T, reg *registry.Registry, collab llmcollab.Collaborator, opts *config.Options) *Auditor {
	t.Helper()
	tables, err := taxonomy.Default()
	require.NoError(t, err)
	return New(reg, tables, collab, opts)
}

func TestListToolsReturnsAllRegistered(t *testing.T) {
	a := testAuditor(t, testRegistry(), nil, nil)
	tools := a.ListTools()
	require.Len(t, tools, 2)
}

func TestProbeToolUnknownNameErrors(t *testing.T) {
	a := testAuditor(t, testRegistry(), nil, nil)
	_, err := a.ProbeTool(context.Background(), "nonexistent")
	require.Error(t, err)
}

func TestProbeToolKnownName(t *testing.T) {
	a := testAuditor(t, testRegistry(), nil, nil)
	status, err := a.ProbeTool(context.Background(), "slither")
	require.NoError(t, err)
	require.Equal(t, finding.StatusAvailable, status)
}

func TestRunAuditEndToEndCorrelatesAcrossTools(t *testing.T) {
	a := testAuditor(t, testRegistry(), nil, nil)

	result, err := a.RunAudit(context.Background(), finding.ContractInput{Path: "Vault.sol"}, ModeFull, RunOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, result.AuditID)
	require.Len(t, result.PerTool, 2)
	require.Len(t, result.Findings, 1) // slither + mythril reports correlated into one

	f := result.Findings[0]
	require.Equal(t, finding.WeaknessReentrancy, f.Weakness)
	require.Len(t, f.DetectedBy, 2)
	require.Equal(t, 1, result.Summary.Total)
}

func TestRunAuditWithLLMCollaboratorSuppressesFalsePositive(t *testing.T) {
	collab := stubCollaborator{verdict: llmcollab.Verdict{IsTruePositive: false, Confidence: 0.95, Reasoning: "guarded"}}
	enabled := true
	a := testAuditor(t, testRegistry(), collab, nil)

	result, err := a.RunAudit(context.Background(), finding.ContractInput{Path: "Vault.sol"}, ModeFull, RunOptions{LLMEnabled: &enabled})
	require.NoError(t, err)
	require.Empty(t, result.Findings)
}

func TestRunAuditLLMDisabledByDefault(t *testing.T) {
	collab := stubCollaborator{verdict: llmcollab.Verdict{IsTruePositive: false, Confidence: 0.95}}
	a := testAuditor(t, testRegistry(), collab, nil)

	result, err := a.RunAudit(context.Background(), finding.ContractInput{Path: "Vault.sol"}, ModeFull, RunOptions{})
	require.NoError(t, err)
	require.Len(t, result.Findings, 1) // LLM pass never ran, nothing suppressed
}

type stubCollaborator struct {
	verdict llmcollab.Verdict
	err     error
}

func (s stubCollaborator) Assess(ctx context.Context, req llmcollab.Request) (llmcollab.Verdict, error) {
	return s.verdict, s.err
}
