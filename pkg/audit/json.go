package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/auditcore/auditcore/pkg/finding"
)

// jsonResult mirrors the stable, field-ordered schema of spec.md §6 exactly.
// Field order in a Go struct is the order encoding/json marshals them in, so
// this type — not Result itself — is the wire contract; Result stays free to
// evolve internally as long as ToJSON keeps producing this shape.
type jsonResult struct {
	AuditID   string          `json:"audit_id"`
	Timestamp string          `json:"timestamp"`
	Input     jsonInput       `json:"input"`
	Mode      Mode            `json:"mode"`
	DurationMs int64          `json:"duration_ms"`
	PerTool   []jsonToolEntry `json:"per_tool"`
	Findings  []jsonFinding   `json:"findings"`
	Summary   jsonSummary     `json:"summary"`
}

type jsonInput struct {
	Path        string  `json:"path"`
	ProjectRoot *string `json:"project_root"`
}

type jsonToolEntry struct {
	Tool       string  `json:"tool"`
	Status     string  `json:"status"`
	DurationMs int64   `json:"duration_ms"`
	RawCount   int     `json:"raw_count"`
	Error      *string `json:"error"`
}

type jsonLocation struct {
	File     string  `json:"file"`
	Line     *int    `json:"line"`
	Column   *int    `json:"column"`
	Function *string `json:"function"`
	Contract *string `json:"contract"`
}

type jsonExternalIDs struct {
	WeaknessEnum string   `json:"weakness_enum"`
	SWC          string   `json:"swc"`
	Frameworks   []string `json:"frameworks"`
}

type jsonDetectionSource struct {
	Tool string `json:"tool"`
	Rule string `json:"rule"`
}

type jsonLLMAssessment struct {
	IsTruePositive    bool    `json:"is_true_positive"`
	Confidence        float64 `json:"confidence"`
	Reasoning         string  `json:"reasoning"`
	SuggestedPriority int     `json:"suggested_priority"`
}

type jsonFinding struct {
	ID          string                `json:"id"`
	Weakness    string                `json:"weakness"`
	Severity    string                `json:"severity"`
	Confidence  float64               `json:"confidence"`
	Score       float64               `json:"score"`
	Location    jsonLocation          `json:"location"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Remediation string                `json:"remediation"`
	ExternalIDs jsonExternalIDs       `json:"external_ids"`
	DetectedBy  []jsonDetectionSource `json:"detected_by"`
	LLM         *jsonLLMAssessment    `json:"llm_assessment"`
}

type jsonSummary struct {
	BySeverity map[string]int `json:"by_severity"`
	ByWeakness map[string]int `json:"by_weakness"`
	Total      int            `json:"total"`
}

// ToJSON implements spec.md §6's audit_result_to_json(Audit Result) → bytes.
func ToJSON(r Result) ([]byte, error) {
	return json.Marshal(toJSONResult(r))
}

// FromJSON parses bytes produced by ToJSON back into a Result. It exists so
// the round-trip property of spec.md §8 ("audit_result_to_json → parse →
// audit_result_to_json yields byte-identical output") is something that can
// actually be exercised: callers that persist a Result (pkg/auditstore) or
// feed one back through another pipeline stage need the inverse of ToJSON,
// not just its shape.
func FromJSON(data []byte) (Result, error) {
	var jr jsonResult
	if err := json.Unmarshal(data, &jr); err != nil {
		return Result{}, err
	}
	return fromJSONResult(jr)
}

func fromJSONResult(jr jsonResult) (Result, error) {
	ts, err := time.Parse("2006-01-02T15:04:05.000Z", jr.Timestamp)
	if err != nil {
		return Result{}, fmt.Errorf("audit: parse timestamp %q: %w", jr.Timestamp, err)
	}

	var projectRoot string
	if jr.Input.ProjectRoot != nil {
		projectRoot = *jr.Input.ProjectRoot
	}

	perTool := make([]ToolOutcome, 0, len(jr.PerTool))
	for _, t := range jr.PerTool {
		var errStr string
		if t.Error != nil {
			errStr = *t.Error
		}
		perTool = append(perTool, ToolOutcome{
			Tool: t.Tool, Status: finding.EnvelopeStatus(t.Status),
			Duration: time.Duration(t.DurationMs) * time.Millisecond,
			RawCount: t.RawCount, Error: errStr,
		})
	}

	findings := make([]finding.NormalizedFinding, 0, len(jr.Findings))
	for _, f := range jr.Findings {
		findings = append(findings, fromJSONFinding(f))
	}

	bySeverity := make(map[finding.Severity]int, len(jr.Summary.BySeverity))
	for k, v := range jr.Summary.BySeverity {
		bySeverity[finding.Severity(k)] = v
	}
	byWeakness := make(map[finding.Weakness]int, len(jr.Summary.ByWeakness))
	for k, v := range jr.Summary.ByWeakness {
		byWeakness[finding.Weakness(k)] = v
	}

	return Result{
		AuditID:   jr.AuditID,
		Timestamp: ts,
		Input:     finding.ContractInput{Path: jr.Input.Path, ProjectRoot: projectRoot},
		Mode:      jr.Mode,
		Duration:  time.Duration(jr.DurationMs) * time.Millisecond,
		PerTool:   perTool,
		Findings:  findings,
		Summary: Summary{
			BySeverity: bySeverity,
			ByWeakness: byWeakness,
			Total:      jr.Summary.Total,
		},
	}, nil
}

func fromJSONFinding(f jsonFinding) finding.NormalizedFinding {
	loc := finding.Location{File: f.Location.File, Line: f.Location.Line, Column: f.Location.Column}
	if f.Location.Function != nil {
		loc.Function = *f.Location.Function
	}
	if f.Location.Contract != nil {
		loc.Contract = *f.Location.Contract
	}

	detectedBy := make([]finding.DetectionSource, 0, len(f.DetectedBy))
	for _, d := range f.DetectedBy {
		detectedBy = append(detectedBy, finding.DetectionSource{Tool: d.Tool, Rule: d.Rule})
	}

	var llm *finding.LLMAssessment
	if f.LLM != nil {
		llm = &finding.LLMAssessment{
			IsTruePositive:    f.LLM.IsTruePositive,
			Confidence:        f.LLM.Confidence,
			Reasoning:         f.LLM.Reasoning,
			SuggestedPriority: f.LLM.SuggestedPriority,
		}
	}

	return finding.NormalizedFinding{
		ID:          f.ID,
		Weakness:    finding.Weakness(f.Weakness),
		Severity:    finding.Severity(f.Severity),
		Confidence:  f.Confidence,
		Score:       f.Score,
		Location:    loc,
		Title:       f.Title,
		Description: f.Description,
		Remediation: f.Remediation,
		ExternalIDs: finding.ExternalIDs{
			WeaknessEnum: f.ExternalIDs.WeaknessEnum,
			SWC:          f.ExternalIDs.SWC,
			Frameworks:   f.ExternalIDs.Frameworks,
		},
		CorrelationGroup: f.ID,
		DetectedBy:       detectedBy,
		LLM:              llm,
	}
}

func toJSONResult(r Result) jsonResult {
	var projectRoot *string
	if r.Input.ProjectRoot != "" {
		projectRoot = &r.Input.ProjectRoot
	}

	perTool := make([]jsonToolEntry, 0, len(r.PerTool))
	for _, t := range r.PerTool {
		var errPtr *string
		if t.Error != "" {
			errPtr = &t.Error
		}
		perTool = append(perTool, jsonToolEntry{
			Tool: t.Tool, Status: string(t.Status),
			DurationMs: t.Duration.Milliseconds(), RawCount: t.RawCount, Error: errPtr,
		})
	}

	findings := make([]jsonFinding, 0, len(r.Findings))
	for _, f := range r.Findings {
		findings = append(findings, toJSONFinding(f))
	}

	bySeverity := make(map[string]int, len(r.Summary.BySeverity))
	for k, v := range r.Summary.BySeverity {
		bySeverity[string(k)] = v
	}
	byWeakness := make(map[string]int, len(r.Summary.ByWeakness))
	for k, v := range r.Summary.ByWeakness {
		byWeakness[string(k)] = v
	}

	return jsonResult{
		AuditID:    r.AuditID,
		Timestamp:  r.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
		Input:      jsonInput{Path: r.Input.Path, ProjectRoot: projectRoot},
		Mode:       r.Mode,
		DurationMs: r.Duration.Milliseconds(),
		PerTool:    perTool,
		Findings:   findings,
		Summary: jsonSummary{
			BySeverity: bySeverity,
			ByWeakness: byWeakness,
			Total:      r.Summary.Total,
		},
	}
}

func toJSONFinding(f finding.NormalizedFinding) jsonFinding {
	loc := jsonLocation{File: f.Location.File, Line: f.Location.Line, Column: f.Location.Column}
	if f.Location.Function != "" {
		loc.Function = &f.Location.Function
	}
	if f.Location.Contract != "" {
		loc.Contract = &f.Location.Contract
	}

	detectedBy := make([]jsonDetectionSource, 0, len(f.DetectedBy))
	for _, d := range f.DetectedBy {
		detectedBy = append(detectedBy, jsonDetectionSource{Tool: d.Tool, Rule: d.Rule})
	}

	var llm *jsonLLMAssessment
	if f.LLM != nil {
		llm = &jsonLLMAssessment{
			IsTruePositive:    f.LLM.IsTruePositive,
			Confidence:        f.LLM.Confidence,
			Reasoning:         f.LLM.Reasoning,
			SuggestedPriority: f.LLM.SuggestedPriority,
		}
	}

	frameworks := f.ExternalIDs.Frameworks
	if frameworks == nil {
		frameworks = []string{}
	}

	return jsonFinding{
		ID:         f.ID,
		Weakness:   string(f.Weakness),
		Severity:   string(f.Severity),
		Confidence: f.Confidence,
		Score:      f.Score,
		Location:   loc,
		Title:      f.Title,
		Description: f.Description,
		Remediation: f.Remediation,
		ExternalIDs: jsonExternalIDs{
			WeaknessEnum: f.ExternalIDs.WeaknessEnum,
			SWC:          f.ExternalIDs.SWC,
			Frameworks:   frameworks,
		},
		DetectedBy: detectedBy,
		LLM:        llm,
	}
}
