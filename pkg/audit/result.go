// Package audit implements the Audit Report Assembler (spec.md §4.8) and
// the core in-process API surface (spec.md §6): list_tools, probe_tool,
// run_audit, and audit_result_to_json. Everything outside this API —
// the CLI, report rendering, contract fetching — is a collaborator the core
// does not depend on.
package audit

import (
	"time"

	"github.com/auditcore/auditcore/pkg/finding"
)

// Mode mirrors orchestrator.Mode at the API boundary so callers of this
// package need not import the orchestrator package directly.
type Mode string

const (
	ModeQuick    Mode = "QUICK"
	ModeStandard Mode = "STANDARD"
	ModeFull     Mode = "FULL"
	ModeCustom   Mode = "CUSTOM"
)

// ToolOutcome is one adapter's line in the per-tool summary (spec.md §3
// "Audit Result": "ordered list of per-adapter outcomes").
type ToolOutcome struct {
	Tool     string
	Status   finding.EnvelopeStatus
	Duration time.Duration
	RawCount int
	Error    string
}

// Summary holds the counters the Assembler computes in a single pass over
// the final finding list (spec.md §4.8).
type Summary struct {
	BySeverity map[finding.Severity]int
	ByWeakness map[finding.Weakness]int
	Total      int
}

// Result is the Audit Result value of spec.md §3, the opaque output of one
// run_audit call.
type Result struct {
	AuditID   string
	Timestamp time.Time
	Input     finding.ContractInput
	Mode      Mode
	Duration  time.Duration
	PerTool   []ToolOutcome
	Findings  []finding.NormalizedFinding
	Summary   Summary
	Cancelled bool
}

// Assemble packages orchestrator outcomes and the correlated finding list
// into a Result (spec.md §4.8: "No further I/O").
func Assemble(auditID string, input finding.ContractInput, mode Mode, start time.Time, perTool []ToolOutcome, findings []finding.NormalizedFinding, cancelled bool) Result {
	return Result{
		AuditID:   auditID,
		Timestamp: start,
		Input:     input,
		Mode:      mode,
		Duration:  time.Since(start),
		PerTool:   perTool,
		Findings:  findings,
		Summary:   summarize(findings),
		Cancelled: cancelled,
	}
}

func summarize(findings []finding.NormalizedFinding) Summary {
	s := Summary{
		BySeverity: make(map[finding.Severity]int),
		ByWeakness: make(map[finding.Weakness]int),
		Total:      len(findings),
	}
	for _, f := range findings {
		s.BySeverity[f.Severity]++
		s.ByWeakness[f.Weakness]++
	}
	return s
}
