// Package correlation implements the Correlation Engine (spec.md §4.6):
// deduplicating and grouping Normalized Findings that different tools
// reported for the same underlying vulnerability, via union-find over the
// similarity relation, followed by an optional LLM-based confidence pass.
package correlation

import (
	"math"
	"sort"

	"github.com/auditcore/auditcore/pkg/finding"
)

// Engine groups normalized findings. It holds no state between calls; every
// Correlate call is a pure function of its inputs when the LLM collaborator
// is nil (spec.md §4.6 "Determinism note").
type Engine struct{}

// New returns a correlation Engine.
func New() *Engine {
	return &Engine{}
}

// similar implements the similarity rule of spec.md §4.6: two findings are
// "the same" when they share a weakness class, refer to the same contract
// (or file, unless both carry a contract id), share a normalized
// function identifier when both have one, and are within 5 lines of each
// other or one's byte span contains the other's.
func similar(a, b finding.NormalizedFinding) bool {
	if a.Weakness != b.Weakness {
		return false
	}

	if !sameContractOrFile(a.Location, b.Location) {
		return false
	}

	if a.Location.Function != "" && b.Location.Function != "" && a.Location.Function != b.Location.Function {
		return false
	}

	return withinLineTolerance(a.Location, b.Location) || byteSpanOverlaps(a.Location, b.Location)
}

func sameContractOrFile(a, b finding.Location) bool {
	if a.Contract != "" && b.Contract != "" {
		return a.Contract == b.Contract
	}
	return a.File == b.File
}

const lineTolerance = 5

func withinLineTolerance(a, b finding.Location) bool {
	if a.Line == nil || b.Line == nil {
		return false
	}
	d := *a.Line - *b.Line
	if d < 0 {
		d = -d
	}
	return d <= lineTolerance
}

func byteSpanOverlaps(a, b finding.Location) bool {
	if a.ByteSpan == nil || b.ByteSpan == nil {
		return false
	}
	return a.ByteSpan.Contains(*b.ByteSpan) || b.ByteSpan.Contains(*a.ByteSpan)
}

// unionFind is a minimal disjoint-set structure over slice indices, the
// grouping mechanism spec.md §4.6 and §9 mandate in place of a rule engine.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra != rb {
		uf.parent[ra] = rb
	}
}

// Correlate groups findings under the similarity relation and returns one
// representative finding per group, built per the rules in spec.md §4.6.
// Singleton groups pass through with their own id as CorrelationGroup.
func (e *Engine) Correlate(findings []finding.NormalizedFinding) []finding.NormalizedFinding {
	n := len(findings)
	if n == 0 {
		return nil
	}

	uf := newUnionFind(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if similar(findings[i], findings[j]) {
				uf.union(i, j)
			}
		}
	}

	groups := make(map[int][]int)
	for i := 0; i < n; i++ {
		root := uf.find(i)
		groups[root] = append(groups[root], i)
	}

	out := make([]finding.NormalizedFinding, 0, len(groups))
	for _, members := range groups {
		out = append(out, representative(findings, members))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// representative builds the one finding a correlation group reports, per
// spec.md §4.6's per-field construction rules.
func representative(findings []finding.NormalizedFinding, members []int) finding.NormalizedFinding {
	group := make([]finding.NormalizedFinding, len(members))
	for i, idx := range members {
		group[i] = findings[idx]
	}
	// Order members by ID so ties below resolve the same way whatever the
	// input order was.
	sort.SliceStable(group, func(i, j int) bool { return group[i].ID < group[j].ID })

	minID := group[0].ID
	for _, f := range group[1:] {
		if f.ID < minID {
			minID = f.ID
		}
	}

	sources := mergeDetectionSources(group)

	maxSeverity := group[0].Severity
	maxScore := group[0].Score
	for _, f := range group[1:] {
		maxSeverity = finding.MaxSeverity(maxSeverity, f.Severity)
		if f.Score > maxScore {
			maxScore = f.Score
		}
	}

	confidence := combineConfidence(group)

	bestLoc := group[0]
	for _, f := range group[1:] {
		if f.Location.MoreSpecificThan(bestLoc.Location) {
			bestLoc = f
		}
	}

	primary := highestSeverityMember(group)
	alsoReportedBy := otherDescriptions(group, primary)

	rep := finding.NormalizedFinding{
		ID:               minID,
		DetectedBy:       sources,
		Weakness:         primary.Weakness,
		Severity:         maxSeverity,
		Confidence:       confidence,
		Score:            maxScore,
		Location:         bestLoc.Location,
		Title:            primary.Title,
		Description:      primary.Description,
		Remediation:      primary.Remediation,
		ExternalIDs:      primary.ExternalIDs,
		CorrelationGroup: minID,
		AlsoReportedBy:   alsoReportedBy,
	}
	return rep
}

func mergeDetectionSources(group []finding.NormalizedFinding) []finding.DetectionSource {
	seen := make(map[finding.DetectionSource]struct{})
	sources := make([]finding.DetectionSource, 0)
	for _, f := range group {
		for _, s := range f.DetectedBy {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			sources = append(sources, s)
		}
	}
	sort.Slice(sources, func(i, j int) bool {
		if sources[i].Tool != sources[j].Tool {
			return sources[i].Tool < sources[j].Tool
		}
		return sources[i].Rule < sources[j].Rule
	})
	return sources
}

// combineConfidence implements the independent-evidence combination rule
// of spec.md §4.6: 1 - prod(1 - c_i), capped at 1.0.
func combineConfidence(group []finding.NormalizedFinding) float64 {
	product := 1.0
	for _, f := range group {
		product *= 1 - f.Confidence
	}
	combined := 1 - product
	return math.Min(combined, 1.0)
}

func highestSeverityMember(group []finding.NormalizedFinding) finding.NormalizedFinding {
	best := group[0]
	for _, f := range group[1:] {
		if f.Severity.Rank() > best.Severity.Rank() {
			best = f
		}
	}
	return best
}

func otherDescriptions(group []finding.NormalizedFinding, primary finding.NormalizedFinding) []string {
	out := make([]string, 0)
	for _, f := range group {
		if f.ID == primary.ID {
			continue
		}
		out = append(out, f.Description)
	}
	sort.Strings(out)
	return out
}
