package adapter

import (
	"fmt"

	"github.com/auditcore/auditcore/pkg/finding"
)

// echidnaOutput models Echidna's --format json report: one entry per
// property/invariant, with a status and, on failure, a counterexample
// description and the source location of the violated assertion.
type echidnaOutput struct {
	Tests []echidnaTest `json:"tests"`
}

type echidnaTest struct {
	Name     string `json:"name"`
	Status   string `json:"status"` // "passed" | "failed" | "error"
	Error    string `json:"error"`
	Filename string `json:"filename"`
	Function string `json:"function"`
	Line     int    `json:"line"`
}

// NewEchidna returns the property-based fuzzing adapter.
func NewEchidna() Adapter {
	return &processAdapter{
		metadata: finding.ToolMetadata{
			Name:         "echidna",
			Version:      "2.2.x",
			Category:     finding.CategoryDynamic,
			Capabilities: []string{"produces-counterexample", "detects-dos"},
			Optional:     true,
		},
		binary:      "echidna-test",
		defaultArgs: []string{"--format", "json"},
		buildArgv: func(input finding.ContractInput, opts Options) []string {
			args := []string{input.Path}
			if n, ok := opts.Flags["test-limit"]; ok {
				args = append(args, "--test-limit", n)
			}
			return args
		},
		parseFn: parseEchidnaOutput,
	}
}

func parseEchidnaOutput(raw []byte) ([]finding.RawRecord, error) {
	out, err := decodeJSON[echidnaOutput](raw)
	if err != nil {
		return nil, fmt.Errorf("echidna: %w", err)
	}

	records := make([]finding.RawRecord, 0)
	for _, test := range out.Tests {
		if test.Status != "failed" && test.Status != "error" {
			continue
		}
		rec := finding.RawRecord{
			NativeRuleID: "invariant-violation",
			Message:      fmt.Sprintf("%s: %s", test.Name, test.Error),
			Severity:     test.Status,
			File:         test.Filename,
			Function:     test.Function,
		}
		if test.Line > 0 {
			rec.Line = intPtr(test.Line)
		}
		records = append(records, rec)
	}
	return records, nil
}
