package adapter

import (
	"fmt"

	"github.com/auditcore/auditcore/pkg/finding"
)

// slitherOutput models the subset of Slither's --json output this adapter
// consumes: a flat list of detector results, each naming a check id, a
// human message, a severity-ish "impact" string, and one or more source
// mapping elements.
type slitherOutput struct {
	Results struct {
		Detectors []slitherDetector `json:"detectors"`
	} `json:"results"`
}

type slitherDetector struct {
	Check       string             `json:"check"`
	Impact      string             `json:"impact"`
	Description string             `json:"description"`
	Elements    []slitherElement   `json:"elements"`
}

type slitherElement struct {
	Name          string `json:"name"`
	SourceMapping struct {
		FilenameRelative string `json:"filename_relative"`
		Lines            []int  `json:"lines"`
	} `json:"source_mapping"`
}

// NewSlither returns the static-analysis adapter.
func NewSlither() Adapter {
	return &processAdapter{
		metadata: finding.ToolMetadata{
			Name:         "slither",
			Version:      "0.10.x",
			Category:     finding.CategoryStatic,
			Capabilities: []string{"detects-reentrancy", "detects-access-control", "detects-unchecked-call"},
			Optional:     true,
		},
		binary:      "slither",
		defaultArgs: []string{"--json", "-"},
		buildArgv: func(input finding.ContractInput, opts Options) []string {
			args := []string{input.Path}
			if v, ok := opts.Flags["detect"]; ok {
				args = append(args, "--detect", v)
			}
			return args
		},
		parseFn: parseSlitherOutput,
	}
}

func parseSlitherOutput(raw []byte) ([]finding.RawRecord, error) {
	out, err := decodeJSON[slitherOutput](raw)
	if err != nil {
		return nil, fmt.Errorf("slither: %w", err)
	}

	records := make([]finding.RawRecord, 0, len(out.Results.Detectors))
	for _, d := range out.Results.Detectors {
		rec := finding.RawRecord{
			NativeRuleID: d.Check,
			Message:      d.Description,
			Severity:     d.Impact,
		}
		if len(d.Elements) > 0 {
			el := d.Elements[0]
			rec.File = el.SourceMapping.FilenameRelative
			rec.Function = el.Name
			if len(el.SourceMapping.Lines) > 0 {
				rec.Line = intPtr(el.SourceMapping.Lines[0])
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
