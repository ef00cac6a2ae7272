// Package normalizer implements the Normalizer (spec.md §4.4): converting
// Raw Finding Envelopes into canonical Normalized Findings using the
// Taxonomy Tables for weakness classification, scoring, and external-ID
// mapping. The Normalizer is pure and restartable: given the same envelopes
// it yields identical normalized findings (spec.md §4.4, §8 "Idempotence").
package normalizer

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/auditcore/auditcore/internal/logging"
	"github.com/auditcore/auditcore/pkg/finding"
	"github.com/auditcore/auditcore/pkg/taxonomy"
)

// Normalizer converts raw envelopes into normalized findings against one
// taxonomy snapshot. Stateless aside from the taxonomy reference: safe to
// share across concurrent audits.
type Normalizer struct {
	tables *taxonomy.Tables
}

// New returns a Normalizer bound to tables.
func New(tables *taxonomy.Tables) *Normalizer {
	return &Normalizer{tables: tables}
}

// Stats counts observability-relevant outcomes of one Normalize call
// (spec.md §4.5: "unknown rule yields OTHER plus a log entry"; §7:
// "a single record that cannot be normalized is dropped with an
// observability counter").
type Stats struct {
	Normalized   int
	UnmappedRule int
	Dropped      int
}

// Normalize converts every record in envelopes into a NormalizedFinding.
// projectRoot, when non-empty, is used to relativize file paths (spec.md
// §4.4 step 1). A record that cannot be normalized (e.g. an empty native
// rule id) is dropped and counted rather than aborting the batch.
func (n *Normalizer) Normalize(envelopes []finding.RawFindingEnvelope, projectRoot string) ([]finding.NormalizedFinding, Stats) {
	log := logging.For(logging.CategoryNormalizer)
	var stats Stats
	out := make([]finding.NormalizedFinding, 0)

	for _, env := range envelopes {
		if env.Status != finding.EnvelopeSuccess {
			continue
		}
		for _, rec := range env.Records {
			nf, unmapped, err := n.normalizeRecord(env.Tool, rec, projectRoot)
			if err != nil {
				stats.Dropped++
				log.Warn("dropped unnormalizable record",
					zap.String("tool", env.Tool), zap.Error(err))
				continue
			}
			if unmapped {
				stats.UnmappedRule++
				log.Info("unmapped native rule, classified as OTHER",
					zap.String("tool", env.Tool), zap.String("rule", rec.NativeRuleID))
			}
			stats.Normalized++
			out = append(out, nf)
		}
	}

	return out, stats
}

func (n *Normalizer) normalizeRecord(tool string, rec finding.RawRecord, projectRoot string) (finding.NormalizedFinding, bool, error) {
	if rec.NativeRuleID == "" {
		return finding.NormalizedFinding{}, false, fmt.Errorf("empty native rule id")
	}

	loc := canonicalizeLocation(rec, projectRoot)

	entry, mapped := n.tables.Lookup(tool, rec.NativeRuleID)
	weakness := finding.WeaknessOther
	var weaknessEnum, swc string
	var frameworks []string

	if mapped {
		weakness = entry.Weakness
		weaknessEnum = entry.WeaknessEnum
		swc = entry.SWC
		frameworks = entry.Frameworks
	}

	defaults := n.tables.DefaultsFor(weakness)
	if !mapped {
		weaknessEnum = defaults.WeaknessEnum
		swc = defaults.SWC
		frameworks = defaults.Frameworks
	}

	severity, score := n.deriveSeverityAndScore(rec.Severity, mapped, entry.DefaultSeverity, defaults)

	id := finding.StableID(tool, rec.NativeRuleID, loc)

	title := defaults.TitleTemplate
	if strings.Contains(title, "%s") {
		subject := loc.Function
		if subject == "" {
			subject = loc.File
		}
		if subject == "" {
			subject = "contract"
		}
		title = fmt.Sprintf(title, subject)
	}

	description := rec.Message
	if description == "" {
		description = title
	}

	remediation := defaults.RemediationTemplate

	nf := finding.NormalizedFinding{
		ID:          id,
		DetectedBy:  []finding.DetectionSource{{Tool: tool, Rule: rec.NativeRuleID}},
		Weakness:    weakness,
		Severity:    severity,
		Confidence:  1.0,
		Score:       score,
		Location:    loc,
		Title:       title,
		Description: description,
		Remediation: remediation,
		ExternalIDs: finding.ExternalIDs{
			WeaknessEnum: weaknessEnum,
			SWC:          swc,
			Frameworks:   frameworks,
		},
	}
	nf.CorrelationGroup = nf.ID

	return nf, !mapped, nil
}

// deriveSeverityAndScore implements spec.md §4.4 step 3. The starting
// severity is the mapped rule's Taxonomy default when there is one, else the
// tool's native severity when it parses, else the weakness-class default.
// The score always comes from the
// weakness-class base score (the source spec leaves per-tool adjustment
// granularity to the Taxonomy data, not a second axis computed here), and
// severity is re-bucketed against that score so the two never disagree
// (spec.md §4.7).
func (n *Normalizer) deriveSeverityAndScore(nativeSeverity string, mapped bool, mappedDefault finding.Severity, defaults taxonomy.WeaknessDefault) (finding.Severity, float64) {
	score := defaults.BaseScore

	var severity finding.Severity
	if mapped && mappedDefault != "" {
		severity = mappedDefault
	} else if parsed, ok := parseSeverityString(nativeSeverity); ok {
		severity = parsed
	} else {
		severity = defaults.DefaultSeverity
	}

	// Severity must agree with score after bucketing (spec.md §4.7): the
	// base score is the source of truth, so re-bucket rather than trust a
	// tool-reported severity the score doesn't support.
	bucketed := n.tables.SeverityForScore(score)
	if bucketed != severity {
		severity = bucketed
	}

	return severity, score
}

// parseSeverityString accepts both a CVSS-scale numeric string and a handful
// of common categorical spellings tools use, since "severity" is emitted
// inconsistently across the corpus of analyzers (spec.md §3: "severity
// string").
func parseSeverityString(raw string) (finding.Severity, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	switch s {
	case "CRITICAL":
		return finding.SeverityCritical, true
	case "HIGH", "ERROR":
		return finding.SeverityHigh, true
	case "MEDIUM", "WARNING", "WARN":
		return finding.SeverityMedium, true
	case "LOW":
		return finding.SeverityLow, true
	case "INFORMATIONAL", "INFO", "NOTE":
		return finding.SeverityInformational, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		switch {
		case f >= 9.0:
			return finding.SeverityCritical, true
		case f >= 7.0:
			return finding.SeverityHigh, true
		case f >= 4.0:
			return finding.SeverityMedium, true
		case f > 0:
			return finding.SeverityLow, true
		default:
			return finding.SeverityInformational, true
		}
	}
	return "", false
}

// canonicalizeLocation implements spec.md §4.4 step 1: resolve the file path
// to project-relative form when the project root is known, retain nulls for
// missing fields, and trim whitespace noise from function identifiers some
// analyzers emit around names.
func canonicalizeLocation(rec finding.RawRecord, projectRoot string) finding.Location {
	file := rec.File
	if projectRoot != "" && file != "" {
		if rel, err := filepath.Rel(projectRoot, file); err == nil && !strings.HasPrefix(rel, "..") {
			file = rel
		}
	}

	return finding.Location{
		File:     file,
		Line:     rec.Line,
		Column:   rec.Column,
		Function: strings.TrimSpace(rec.Function),
		Contract: rec.Extra["contract"],
	}
}
