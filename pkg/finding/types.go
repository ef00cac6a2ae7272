// Package finding defines the canonical schema shared by every stage of the
// pipeline: the contract input a caller submits, the raw envelope an adapter
// returns, and the normalized finding the Correlation Engine produces.
// See spec.md §3 for the authoritative data model.
package finding

import "time"

// ContractInput describes the program under audit. It is immutable for the
// lifetime of a run; no component in the pipeline mutates it.
type ContractInput struct {
	// Path is the absolute path to the contract source file.
	Path string
	// ProjectRoot is the optional root directory for a multi-file project.
	// Locations are reported relative to this when set.
	ProjectRoot string
	// LanguageVersion is the detected source language version string, when
	// detectable (see pkg/contractsource). Empty when unknown.
	LanguageVersion string
}

// ToolCategory classifies an adapter by analysis technique (spec.md §3).
type ToolCategory string

const (
	CategoryStatic   ToolCategory = "static"
	CategoryDynamic  ToolCategory = "dynamic"
	CategorySymbolic ToolCategory = "symbolic"
	CategoryFormal   ToolCategory = "formal"
	CategoryAI       ToolCategory = "ai"
	CategoryML       ToolCategory = "ml"
	CategoryLinter   ToolCategory = "linter"
)

// ToolMetadata is the static description an adapter exposes for itself.
type ToolMetadata struct {
	Name         string
	Version      string
	Category     ToolCategory
	Capabilities []string
	// Optional is true when a missing/unavailable tool must never fail the audit.
	Optional bool
	// RemoteService is true for adapters that are inherently network-bound
	// (e.g. an LLM collaborator), per spec.md §4.1's execution invariants.
	RemoteService bool
}

// HasCapability reports whether the tool declares the named capability.
func (m ToolMetadata) HasCapability(capability string) bool {
	for _, c := range m.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// ToolStatus is the outcome of an adapter's availability probe.
type ToolStatus string

const (
	StatusAvailable       ToolStatus = "AVAILABLE"
	StatusNotInstalled    ToolStatus = "NOT_INSTALLED"
	StatusVersionMismatch ToolStatus = "VERSION_MISMATCH"
	StatusUnavailable     ToolStatus = "UNAVAILABLE"
)

// EnvelopeStatus is the outcome of one adapter run (spec.md §3).
type EnvelopeStatus string

const (
	EnvelopeSuccess       EnvelopeStatus = "SUCCESS"
	EnvelopeTimeout       EnvelopeStatus = "TIMEOUT"
	EnvelopeCrash         EnvelopeStatus = "CRASH"
	EnvelopeUnavailable   EnvelopeStatus = "UNAVAILABLE"
	EnvelopeInvalidOutput EnvelopeStatus = "INVALID_OUTPUT"
)

// RawRecord is one untyped finding exactly as a tool emitted it, before
// taxonomy lookup or canonicalization.
type RawRecord struct {
	NativeRuleID string
	Message      string
	File         string
	Line         *int
	Column       *int
	Function     string
	Severity     string // tool-native severity string, e.g. "High", "2", "warning"
	Extra        map[string]string
}

// RawFindingEnvelope is one adapter's complete output for one run.
type RawFindingEnvelope struct {
	Tool          string
	Status        EnvelopeStatus
	Duration      time.Duration
	ExitCode      int
	Records       []RawRecord
	StderrExcerpt string
	Err           error // set for CRASH/TIMEOUT/INVALID_OUTPUT; never for SUCCESS
}

// Weakness is the canonical, tool-independent vulnerability class assigned
// by the Normalizer (spec.md §3).
type Weakness string

const (
	WeaknessReentrancy          Weakness = "REENTRANCY"
	WeaknessIntegerOverflow     Weakness = "INTEGER_OVERFLOW"
	WeaknessAccessControl       Weakness = "ACCESS_CONTROL"
	WeaknessTxOrigin            Weakness = "TX_ORIGIN"
	WeaknessUncheckedCall       Weakness = "UNCHECKED_CALL"
	WeaknessTimestampDependence Weakness = "TIMESTAMP_DEP"
	WeaknessUntrustedDelegate   Weakness = "DELEGATECALL_UNTRUSTED"
	WeaknessDoSLock             Weakness = "DOS_LOCK"
	WeaknessWeakPRNG            Weakness = "WEAK_PRNG"
	WeaknessOther               Weakness = "OTHER"
)

// Severity is the five-point severity scale (spec.md §3, bucketed per §4.7).
type Severity string

const (
	SeverityCritical      Severity = "CRITICAL"
	SeverityHigh          Severity = "HIGH"
	SeverityMedium        Severity = "MEDIUM"
	SeverityLow           Severity = "LOW"
	SeverityInformational Severity = "INFORMATIONAL"
)

// severityRank gives a total order for max()-style comparisons during correlation.
var severityRank = map[Severity]int{
	SeverityInformational: 0,
	SeverityLow:           1,
	SeverityMedium:        2,
	SeverityHigh:          3,
	SeverityCritical:      4,
}

// MaxSeverity returns whichever of a, b ranks higher.
func MaxSeverity(a, b Severity) Severity {
	if severityRank[b] > severityRank[a] {
		return b
	}
	return a
}

// Rank returns the total order position of a severity (higher is worse).
func (s Severity) Rank() int { return severityRank[s] }

// Location is a canonicalized source location (spec.md §3).
type Location struct {
	File     string
	Line     *int
	Column   *int
	Function string
	Contract string
	ByteSpan *ByteSpan
}

// ByteSpan is a half-open [Start, End) byte range within a file.
type ByteSpan struct {
	Start int
	End   int
}

// Contains reports whether s fully contains o.
func (s ByteSpan) Contains(o ByteSpan) bool {
	return s.Start <= o.Start && o.End <= s.End
}

// specificity counts how many optional fields are populated, used by the
// Correlation Engine to pick the "most specific" representative location.
func (l Location) specificity() int {
	n := 0
	if l.Line != nil {
		n++
	}
	if l.Column != nil {
		n++
	}
	if l.Function != "" {
		n++
	}
	if l.Contract != "" {
		n++
	}
	if l.ByteSpan != nil {
		n++
	}
	return n
}

// MoreSpecificThan reports whether l has strictly more populated fields than
// o, with ties broken by the lower line number (spec.md §4.6).
func (l Location) MoreSpecificThan(o Location) bool {
	ls, os := l.specificity(), o.specificity()
	if ls != os {
		return ls > os
	}
	switch {
	case l.Line == nil && o.Line == nil:
		return false
	case l.Line == nil:
		return false
	case o.Line == nil:
		return true
	default:
		return *l.Line < *o.Line
	}
}

// DetectionSource names the (tool, native rule) pair that detected a finding.
type DetectionSource struct {
	Tool string
	Rule string
}

// ExternalIDs are the identifiers mapped in from the Taxonomy (spec.md §4.5).
type ExternalIDs struct {
	WeaknessEnum string   // e.g. a CWE-style weakness enumeration id
	SWC          string   // e.g. a standard-weakness-classification id
	Frameworks   []string // external framework control ids
}

// LLMAssessment is the optional verdict attached by the Correlation Engine's
// LLM collaborator call (spec.md §4.6).
type LLMAssessment struct {
	IsTruePositive    bool
	Confidence        float64
	Reasoning         string
	SuggestedPriority int
}

// NormalizedFinding is the canonical finding record (spec.md §3).
type NormalizedFinding struct {
	ID               string
	DetectedBy       []DetectionSource
	Weakness         Weakness
	Severity         Severity
	Confidence       float64
	Score            float64
	Location         Location
	Title            string
	Description      string
	Remediation      string
	ExternalIDs      ExternalIDs
	CorrelationGroup string
	LLM              *LLMAssessment

	// AlsoReportedBy carries description/remediation text from other members
	// of the correlation group that were not chosen as the representative.
	AlsoReportedBy []string
}

// HasUniqueDetectionSources reports whether DetectedBy contains no duplicate
// (tool, rule) pairs, one of the invariants in spec.md §3.
func (f NormalizedFinding) HasUniqueDetectionSources() bool {
	seen := make(map[DetectionSource]struct{}, len(f.DetectedBy))
	for _, d := range f.DetectedBy {
		if _, ok := seen[d]; ok {
			return false
		}
		seen[d] = struct{}{}
	}
	return true
}
