package adapter

import (
	"fmt"

	"github.com/auditcore/auditcore/pkg/finding"
)

// mythrilOutput models Mythril's -o json report: a flat list of issues, each
// naming an SWC id, a description, a severity string, and a single location.
type mythrilOutput struct {
	Issues []mythrilIssue `json:"issues"`
}

type mythrilIssue struct {
	SWCID       string `json:"swc-id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Filename    string `json:"filename"`
	Function    string `json:"function"`
	LineNo      int    `json:"lineno"`
}

// NewMythril returns the symbolic-execution adapter. Symbolic execution is
// typically the slowest category in a plan; its longer default timeout comes
// from the orchestrator's per-category defaults, not from this adapter's
// arguments.
func NewMythril() Adapter {
	return &processAdapter{
		metadata: finding.ToolMetadata{
			Name:         "mythril",
			Version:      "0.24.x",
			Category:     finding.CategorySymbolic,
			Capabilities: []string{"detects-reentrancy", "produces-counterexample", "detects-overflow"},
			Optional:     true,
		},
		binary:      "myth",
		defaultArgs: []string{"analyze", "-o", "json"},
		buildArgv: func(input finding.ContractInput, opts Options) []string {
			args := []string{input.Path}
			if t, ok := opts.Flags["max-depth"]; ok {
				args = append(args, "--max-depth", t)
			}
			return args
		},
		parseFn: parseMythrilOutput,
	}
}

func parseMythrilOutput(raw []byte) ([]finding.RawRecord, error) {
	out, err := decodeJSON[mythrilOutput](raw)
	if err != nil {
		return nil, fmt.Errorf("mythril: %w", err)
	}

	records := make([]finding.RawRecord, 0, len(out.Issues))
	for _, i := range out.Issues {
		rec := finding.RawRecord{
			NativeRuleID: i.SWCID,
			Message:      i.Title + ": " + i.Description,
			Severity:     i.Severity,
			File:         i.Filename,
			Function:     i.Function,
		}
		if i.LineNo > 0 {
			rec.Line = intPtr(i.LineNo)
		}
		records = append(records, rec)
	}
	return records, nil
}
