package adapter

import (
	"fmt"

	"github.com/auditcore/auditcore/pkg/finding"
)

// certoraOutput models the Certora Prover's summary JSON: a list of
// specification rules and, for each violated rule, the contract/function it
// targets.
type certoraOutput struct {
	Rules []certoraRule `json:"rules"`
}

type certoraRule struct {
	Name     string `json:"ruleName"`
	Status   string `json:"status"` // "VERIFIED" | "VIOLATED" | "TIMEOUT"
	Message  string `json:"message"`
	Contract string `json:"contract"`
	Function string `json:"method"`
	File     string `json:"file"`
}

// NewCertora returns the formal-verification adapter.
func NewCertora() Adapter {
	return &processAdapter{
		metadata: finding.ToolMetadata{
			Name:         "certora",
			Version:      "7.x",
			Category:     finding.CategoryFormal,
			Capabilities: []string{"produces-counterexample", "detects-access-control"},
			Optional:     true,
		},
		binary:      "certoraRun",
		defaultArgs: []string{"--build_only=false", "--output_format", "json"},
		buildArgv: func(input finding.ContractInput, opts Options) []string {
			args := []string{input.Path}
			if spec, ok := opts.Flags["spec"]; ok {
				args = append(args, "--verify", spec)
			}
			return args
		},
		parseFn: parseCertoraOutput,
	}
}

func parseCertoraOutput(raw []byte) ([]finding.RawRecord, error) {
	out, err := decodeJSON[certoraOutput](raw)
	if err != nil {
		return nil, fmt.Errorf("certora: %w", err)
	}

	records := make([]finding.RawRecord, 0)
	for _, r := range out.Rules {
		if r.Status != "VIOLATED" {
			continue
		}
		records = append(records, finding.RawRecord{
			NativeRuleID: "rule-violated-" + r.Name,
			Message:      r.Message,
			Severity:     "HIGH",
			File:         r.File,
			Function:     r.Function,
			Extra:        map[string]string{"contract": r.Contract},
		})
	}
	return records, nil
}
