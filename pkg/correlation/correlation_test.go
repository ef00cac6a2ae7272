package correlation

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/auditcore/auditcore/pkg/finding"
)

func intp(v int) *int { return &v }

func mkFinding(id string, weakness finding.Weakness, sev finding.Severity, score, confidence float64, file, function string, line int, tool, rule string) finding.NormalizedFinding {
	return finding.NormalizedFinding{
		ID:         id,
		Weakness:   weakness,
		Severity:   sev,
		Score:      score,
		Confidence: confidence,
		Location:   finding.Location{File: file, Function: function, Line: intp(line)},
		Title:      "title-" + id,
		DetectedBy: []finding.DetectionSource{{Tool: tool, Rule: rule}},
	}
}

func TestCorrelateMergesSameWeaknessAndFunction(t *testing.T) {
	a := mkFinding("b-id", finding.WeaknessReentrancy, finding.SeverityHigh, 8.2, 0.6, "Vault.sol", "withdraw", 42, "slither", "reentrancy-eth")
	b := mkFinding("a-id", finding.WeaknessReentrancy, finding.SeverityHigh, 8.0, 0.7, "Vault.sol", "withdraw", 44, "mythril", "SWC-107")

	e := New()
	out := e.Correlate([]finding.NormalizedFinding{a, b})
	require.Len(t, out, 1)
	require.Len(t, out[0].DetectedBy, 2)
	require.Equal(t, "a-id", out[0].ID) // minimum lexicographic id
	require.InDelta(t, 1-(1-0.6)*(1-0.7), out[0].Confidence, 1e-9)
	require.Equal(t, finding.SeverityHigh, out[0].Severity)
	require.Equal(t, 8.2, out[0].Score)
}

func TestCorrelateKeepsDistinctWeaknessesSeparate(t *testing.T) {
	a := mkFinding("a-id", finding.WeaknessReentrancy, finding.SeverityHigh, 8.0, 0.8, "Vault.sol", "withdraw", 42, "slither", "r")
	b := mkFinding("b-id", finding.WeaknessAccessControl, finding.SeverityCritical, 9.1, 0.9, "Vault.sol", "withdraw", 42, "certora", "c")

	e := New()
	out := e.Correlate([]finding.NormalizedFinding{a, b})
	require.Len(t, out, 2)
}

func TestCorrelateRequiresLineProximity(t *testing.T) {
	a := mkFinding("a-id", finding.WeaknessReentrancy, finding.SeverityHigh, 8.0, 0.8, "Vault.sol", "withdraw", 10, "slither", "r")
	b := mkFinding("b-id", finding.WeaknessReentrancy, finding.SeverityHigh, 8.0, 0.8, "Vault.sol", "withdraw", 100, "mythril", "m")

	e := New()
	out := e.Correlate([]finding.NormalizedFinding{a, b})
	require.Len(t, out, 2)
}

func TestCorrelateDifferentFilesNotMerged(t *testing.T) {
	a := mkFinding("a-id", finding.WeaknessReentrancy, finding.SeverityHigh, 8.0, 0.8, "Vault.sol", "withdraw", 10, "slither", "r")
	b := mkFinding("b-id", finding.WeaknessReentrancy, finding.SeverityHigh, 8.0, 0.8, "Other.sol", "withdraw", 11, "mythril", "m")

	e := New()
	out := e.Correlate([]finding.NormalizedFinding{a, b})
	require.Len(t, out, 2)
}

func TestCorrelateGroupIDStableAcrossReruns(t *testing.T) {
	a := mkFinding("z-id", finding.WeaknessReentrancy, finding.SeverityHigh, 8.0, 0.8, "Vault.sol", "withdraw", 10, "slither", "r")
	b := mkFinding("a-id", finding.WeaknessReentrancy, finding.SeverityHigh, 8.0, 0.8, "Vault.sol", "withdraw", 11, "mythril", "m")

	e := New()
	out1 := e.Correlate([]finding.NormalizedFinding{a, b})
	out2 := e.Correlate([]finding.NormalizedFinding{b, a})
	if diff := cmp.Diff(out1, out2); diff != "" {
		t.Fatalf("correlation result depends on input order (-first +reordered):\n%s", diff)
	}
}

func TestCorrelateByteSpanContainment(t *testing.T) {
	a := finding.NormalizedFinding{
		ID: "a-id", Weakness: finding.WeaknessReentrancy, Severity: finding.SeverityHigh, Score: 8, Confidence: 0.5,
		Location: finding.Location{File: "V.sol", ByteSpan: &finding.ByteSpan{Start: 0, End: 1000}},
		DetectedBy: []finding.DetectionSource{{Tool: "slither", Rule: "r"}},
	}
	b := finding.NormalizedFinding{
		ID: "b-id", Weakness: finding.WeaknessReentrancy, Severity: finding.SeverityHigh, Score: 8, Confidence: 0.5,
		Location: finding.Location{File: "V.sol", ByteSpan: &finding.ByteSpan{Start: 100, End: 200}},
		DetectedBy: []finding.DetectionSource{{Tool: "mythril", Rule: "m"}},
	}

	e := New()
	out := e.Correlate([]finding.NormalizedFinding{a, b})
	require.Len(t, out, 1)
}

func TestCorrelateSingletonPassesThrough(t *testing.T) {
	a := mkFinding("a-id", finding.WeaknessReentrancy, finding.SeverityHigh, 8.0, 0.8, "Vault.sol", "withdraw", 10, "slither", "r")

	e := New()
	out := e.Correlate([]finding.NormalizedFinding{a})
	require.Len(t, out, 1)
	require.Equal(t, "a-id", out[0].CorrelationGroup)
}

func TestCorrelateTransitiveChain(t *testing.T) {
	a := mkFinding("a-id", finding.WeaknessReentrancy, finding.SeverityHigh, 8.0, 0.5, "V.sol", "withdraw", 10, "slither", "r")
	b := mkFinding("b-id", finding.WeaknessReentrancy, finding.SeverityHigh, 8.0, 0.5, "V.sol", "withdraw", 14, "mythril", "m")
	c := mkFinding("c-id", finding.WeaknessReentrancy, finding.SeverityHigh, 8.0, 0.5, "V.sol", "withdraw", 18, "echidna", "e")

	e := New()
	out := e.Correlate([]finding.NormalizedFinding{a, b, c})
	require.Len(t, out, 1)
	require.Len(t, out[0].DetectedBy, 3)
}
