package entities

import (
	"encoding/json"
	"fmt"
)

// OverviewModuleName names the synthetic module built from flat recommendations.
const OverviewModuleName = "Overview"

// ReportModule is one detection module of the engine report.
type ReportModule struct {
	Name            string            `json:"name"`
	Status          string            `json:"status,omitempty"`
	Recommendations []json.RawMessage `json:"recommendations,omitempty"`
}

// Report is the structured view of a finished detection result.
type Report struct {
	Chain           string                       `json:"chain,omitempty"`
	Groups          map[string][]json.RawMessage `json:"grouped_recommendations,omitempty"`
	Modules         []ReportModule               `json:"modules,omitempty"`
	Recommendations []json.RawMessage            `json:"recommendations,omitempty"`
}

// ParseReport decodes a result payload and fills the fallbacks the engine
// omits on older report versions: flat recommendations are shown under
// contract_structure and as a single overview module.
func ParseReport(raw json.RawMessage) (*Report, error) {
	report := &Report{}
	if len(raw) == 0 || string(raw) == "null" {
		return report, nil
	}

	if err := json.Unmarshal(raw, report); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}

	if report.Groups == nil {
		report.Groups = make(map[string][]json.RawMessage)
	}
	if len(report.Groups["contract_structure"]) == 0 && len(report.Recommendations) > 0 {
		report.Groups["contract_structure"] = report.Recommendations
	}

	if len(report.Modules) == 0 && report.Recommendations != nil {
		report.Modules = []ReportModule{{
			Name:            OverviewModuleName,
			Status:          "FULL",
			Recommendations: report.Recommendations,
		}}
	}

	return report, nil
}
