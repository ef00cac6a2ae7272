// Package taxonomy holds the static, versioned data set described in
// spec.md §4.5: tool-native rule id to canonical weakness class mappings,
// external framework identifiers, and the severity/score bucketing used by
// the Normalizer. The tables are loaded once and treated as read-only; the
// only permitted "mutation" is an atomic swap to a newer version (see
// watch.go), never an in-place edit.
package taxonomy

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/auditcore/auditcore/pkg/finding"
)

// RuleKey identifies one (tool, native rule id) pair.
type RuleKey struct {
	Tool string `yaml:"tool"`
	Rule string `yaml:"rule"`
}

// RuleEntry is what a known (tool, rule) pair maps to.
type RuleEntry struct {
	Weakness               finding.Weakness `yaml:"weakness"`
	DefaultSeverity        finding.Severity `yaml:"default_severity"`
	WeaknessEnum           string           `yaml:"weakness_enum"`
	SWC                    string           `yaml:"swc"`
	Frameworks             []string         `yaml:"frameworks"`
	RemediationTemplateKey string           `yaml:"remediation_template_key"`
}

// WeaknessDefault is the per-weakness-class fallback used when a tool's
// native rule is unmapped, or when the tool supplies no categorical severity.
type WeaknessDefault struct {
	DefaultSeverity      finding.Severity `yaml:"default_severity"`
	BaseScore            float64          `yaml:"base_score"`
	TitleTemplate        string           `yaml:"title_template"`
	RemediationTemplate  string           `yaml:"remediation_template"`
	WeaknessEnum         string           `yaml:"weakness_enum"`
	SWC                  string           `yaml:"swc"`
	Frameworks           []string         `yaml:"frameworks"`
}

// SeverityBucketEntry is one row of the score-range to severity table (spec.md §4.7).
type SeverityBucketEntry struct {
	MinScore float64          `yaml:"min_score"`
	MaxScore float64          `yaml:"max_score"`
	Severity finding.Severity `yaml:"severity"`
}

// tablesDoc is the YAML document shape. rule_mapping is a flat list there,
// because (tool, rule) is not a valid map key in YAML/JSON.
type tablesDoc struct {
	Version         string                        `yaml:"version"`
	RuleMapping     []ruleMappingDoc              `yaml:"rule_mapping"`
	WeaknessDefault map[finding.Weakness]WeaknessDefault `yaml:"weakness_defaults"`
	SeverityBucket  []SeverityBucketEntry          `yaml:"severity_bucket"`
}

type ruleMappingDoc struct {
	RuleKey   `yaml:",inline"`
	RuleEntry `yaml:",inline"`
}

// Tables is one immutable, versioned taxonomy snapshot.
type Tables struct {
	Version         string
	RuleMapping     map[RuleKey]RuleEntry
	WeaknessDefault map[finding.Weakness]WeaknessDefault
	SeverityBucket  []SeverityBucketEntry
}

//go:embed default_tables.yaml
var defaultTablesYAML []byte

// Default returns the taxonomy tables shipped with the core.
func Default() (*Tables, error) {
	return parse(defaultTablesYAML)
}

// LoadFile parses the bytes of a taxonomy table document the caller has
// already read from disk.
func LoadFile(data []byte) (*Tables, error) {
	return parse(data)
}

func parse(data []byte) (*Tables, error) {
	var doc tablesDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("taxonomy: parse: %w", err)
	}

	t := &Tables{
		Version:         doc.Version,
		RuleMapping:     make(map[RuleKey]RuleEntry, len(doc.RuleMapping)),
		WeaknessDefault: doc.WeaknessDefault,
		SeverityBucket:  doc.SeverityBucket,
	}
	for _, m := range doc.RuleMapping {
		t.RuleMapping[m.RuleKey] = m.RuleEntry
	}
	if t.WeaknessDefault == nil {
		t.WeaknessDefault = map[finding.Weakness]WeaknessDefault{}
	}
	return t, nil
}

// Lookup resolves a (tool, native rule) pair. ok is false on a miss, in which
// case callers should assign finding.WeaknessOther and log the unmapped pair
// (spec.md §4.4 step 2, §4.5).
func (t *Tables) Lookup(tool, nativeRuleID string) (RuleEntry, bool) {
	e, ok := t.RuleMapping[RuleKey{Tool: tool, Rule: nativeRuleID}]
	return e, ok
}

// DefaultsFor returns the weakness-class defaults, falling back to OTHER's
// entry (which must always exist) when the class itself has no entry.
func (t *Tables) DefaultsFor(w finding.Weakness) WeaknessDefault {
	if d, ok := t.WeaknessDefault[w]; ok {
		return d
	}
	return t.WeaknessDefault[finding.WeaknessOther]
}

// SeverityForScore buckets a score per spec.md §4.7.
func (t *Tables) SeverityForScore(score float64) finding.Severity {
	for _, b := range t.SeverityBucket {
		if score >= b.MinScore && score <= b.MaxScore {
			return b.Severity
		}
	}
	// Degrade gracefully rather than panicking on a malformed custom table.
	if score <= 0 {
		return finding.SeverityInformational
	}
	return finding.SeverityLow
}
