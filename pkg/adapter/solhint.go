package adapter

import (
	"fmt"

	"github.com/auditcore/auditcore/pkg/finding"
)

// solhintOutput models solhint's -f json output: one entry per source file,
// each with a list of rule violations.
type solhintOutput []solhintFileResult

type solhintFileResult struct {
	FilePath string            `json:"filePath"`
	Messages []solhintMessage  `json:"messages"`
}

type solhintMessage struct {
	RuleID   string `json:"ruleId"`
	Message  string `json:"message"`
	Severity int    `json:"severity"` // 1 = warning, 2 = error
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

// NewSolhint returns the linter adapter. Linters are cheap and run early in
// the plan alongside static analysis (spec.md §4.3 step 2).
func NewSolhint() Adapter {
	return &processAdapter{
		metadata: finding.ToolMetadata{
			Name:         "solhint",
			Version:      "5.x",
			Category:     finding.CategoryLinter,
			Capabilities: []string{"detects-tx-origin", "detects-timestamp-dep"},
			Optional:     true,
		},
		binary:      "solhint",
		defaultArgs: []string{"-f", "json"},
		buildArgv: func(input finding.ContractInput, opts Options) []string {
			return []string{input.Path}
		},
		parseFn: parseSolhintOutput,
	}
}

func parseSolhintOutput(raw []byte) ([]finding.RawRecord, error) {
	out, err := decodeJSON[solhintOutput](raw)
	if err != nil {
		return nil, fmt.Errorf("solhint: %w", err)
	}

	records := make([]finding.RawRecord, 0)
	for _, file := range out {
		for _, m := range file.Messages {
			sev := "warning"
			if m.Severity >= 2 {
				sev = "error"
			}
			rec := finding.RawRecord{
				NativeRuleID: m.RuleID,
				Message:      m.Message,
				Severity:     sev,
				File:         file.FilePath,
			}
			if m.Line > 0 {
				rec.Line = intPtr(m.Line)
			}
			if m.Column > 0 {
				rec.Column = intPtr(m.Column)
			}
			records = append(records, rec)
		}
	}
	return records, nil
}
