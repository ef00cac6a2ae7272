package normalizer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/auditcore/auditcore/pkg/finding"
	"github.com/auditcore/auditcore/pkg/taxonomy"
)

func mustTables(t *testing.T) *taxonomy.Tables {
	t.Helper()
	tables, err := taxonomy.Default()
	require.NoError(t, err)
	return tables
}

func intp(v int) *int { return &v }

func TestNormalizeMappedRule(t *testing.T) {
	n := New(mustTables(t))

	env := finding.RawFindingEnvelope{
		Tool:   "slither",
		Status: finding.EnvelopeSuccess,
		Records: []finding.RawRecord{
			{
				NativeRuleID: "reentrancy-eth",
				Message:      "external call before state update",
				File:         "Vault.sol",
				Line:         intp(42),
				Function:     "withdraw ",
				Severity:     "High",
			},
		},
	}

	out, stats := n.Normalize([]finding.RawFindingEnvelope{env}, "")
	require.Equal(t, 1, stats.Normalized)
	require.Equal(t, 0, stats.UnmappedRule)
	require.Len(t, out, 1)

	f := out[0]
	require.Equal(t, finding.WeaknessReentrancy, f.Weakness)
	require.Equal(t, finding.SeverityHigh, f.Severity)
	require.Equal(t, "withdraw", f.Location.Function)
	require.Equal(t, "SWC-107", f.ExternalIDs.SWC)
	require.Len(t, f.DetectedBy, 1)
	require.Equal(t, "slither", f.DetectedBy[0].Tool)
}

func TestNormalizeUnmappedRuleFallsBackToOther(t *testing.T) {
	n := New(mustTables(t))

	env := finding.RawFindingEnvelope{
		Tool:   "slither",
		Status: finding.EnvelopeSuccess,
		Records: []finding.RawRecord{
			{NativeRuleID: "totally-unknown-check", Message: "something", File: "X.sol"},
		},
	}

	out, stats := n.Normalize([]finding.RawFindingEnvelope{env}, "")
	require.Equal(t, 1, stats.UnmappedRule)
	require.Len(t, out, 1)
	require.Equal(t, finding.WeaknessOther, out[0].Weakness)
}

func TestNormalizeSkipsNonSuccessEnvelopes(t *testing.T) {
	n := New(mustTables(t))

	env := finding.RawFindingEnvelope{Tool: "mythril", Status: finding.EnvelopeTimeout}
	out, stats := n.Normalize([]finding.RawFindingEnvelope{env}, "")
	require.Empty(t, out)
	require.Equal(t, 0, stats.Normalized)
}

func TestNormalizeDropsRecordWithEmptyRuleID(t *testing.T) {
	n := New(mustTables(t))

	env := finding.RawFindingEnvelope{
		Tool:   "slither",
		Status: finding.EnvelopeSuccess,
		Records: []finding.RawRecord{
			{NativeRuleID: "", Message: "no rule id"},
		},
	}

	out, stats := n.Normalize([]finding.RawFindingEnvelope{env}, "")
	require.Empty(t, out)
	require.Equal(t, 1, stats.Dropped)
}

func TestNormalizeSeverityScoreConsistency(t *testing.T) {
	n := New(mustTables(t))

	env := finding.RawFindingEnvelope{
		Tool:   "solhint",
		Status: finding.EnvelopeSuccess,
		Records: []finding.RawRecord{
			{NativeRuleID: "avoid-tx-origin", Message: "x", File: "A.sol"},
		},
	}
	out, _ := n.Normalize([]finding.RawFindingEnvelope{env}, "")
	require.Len(t, out, 1)

	tables := mustTables(t)
	require.Equal(t, tables.SeverityForScore(out[0].Score), out[0].Severity)
}

func TestNormalizeIsIdempotentOnInputs(t *testing.T) {
	n := New(mustTables(t))

	env := finding.RawFindingEnvelope{
		Tool:   "mythril",
		Status: finding.EnvelopeSuccess,
		Records: []finding.RawRecord{
			{NativeRuleID: "SWC-107", Message: "reentrancy", File: "V.sol", Line: intp(10), Function: "withdraw"},
		},
	}

	out1, _ := n.Normalize([]finding.RawFindingEnvelope{env}, "")
	out2, _ := n.Normalize([]finding.RawFindingEnvelope{env}, "")
	require.Equal(t, out1, out2)
}

func TestCanonicalizeLocationRelativizesPath(t *testing.T) {
	rec := finding.RawRecord{File: "/project/contracts/Vault.sol", Function: " withdraw "}
	loc := canonicalizeLocation(rec, "/project")
	require.Equal(t, "contracts/Vault.sol", loc.File)
	require.Equal(t, "withdraw", loc.Function)
}
