package analysis

import (
	"encoding/json"
	"regexp"
	"strings"
)

// InsightSections is the parsed form of the analysis response. Derived once
// per job; immutable afterwards.
type InsightSections struct {
	ClinicalAnalysis             string      `json:"clinical_analysis"`
	VisualizationRecommendations string      `json:"visualization_recommendations"`
	Hints                        []ChartHint `json:"chart_hints,omitempty"`
}

// ChartHint is one entry of the machine-readable block the analysis service
// appends after its prose. Best-effort only: an absent or malformed block
// yields no hints, never an error.
type ChartHint struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	DataSource string `json:"data_source"`
}

var (
	clinicalHeading = regexp.MustCompile(`(?im)^#{0,6}\s*(?:\d+\.\s*)?\**\s*clinical analysis\s*\**:?\s*$`)
	vizHeading      = regexp.MustCompile(`(?im)^#{0,6}\s*(?:\d+\.\s*)?\**\s*visualization recommendations\s*\**:?\s*$`)
	fencedJSON      = regexp.MustCompile("(?s)```json\\s*(.*?)```\\s*$")
)

// ParseInsights splits raw analysis text into named sections using the two
// known heading markers, case-insensitively. Text between the clinical
// analysis heading and the next heading becomes ClinicalAnalysis; text from
// the visualization heading to end-of-text, minus any trailing fenced JSON
// block, becomes VisualizationRecommendations. When no headings are found the
// whole text degrades into ClinicalAnalysis — parsing never fails outright.
func ParseInsights(raw string) InsightSections {
	body := strings.TrimSpace(raw)
	if body == "" {
		return InsightSections{}
	}
	// The machine-readable block belongs to neither prose section.
	prose := strings.TrimSpace(fencedJSON.ReplaceAllString(body, ""))

	clinLoc := clinicalHeading.FindStringIndex(prose)
	vizLoc := vizHeading.FindStringIndex(prose)

	if clinLoc == nil && vizLoc == nil {
		return InsightSections{ClinicalAnalysis: prose}
	}

	var sections InsightSections
	if clinLoc != nil {
		end := len(prose)
		if vizLoc != nil && vizLoc[0] > clinLoc[1] {
			end = vizLoc[0]
		}
		sections.ClinicalAnalysis = strings.TrimSpace(prose[clinLoc[1]:end])
	} else if vizLoc != nil {
		// Everything before the visualization heading is analysis prose.
		sections.ClinicalAnalysis = strings.TrimSpace(prose[:vizLoc[0]])
	}
	if vizLoc != nil {
		sections.VisualizationRecommendations = strings.TrimSpace(prose[vizLoc[1]:])
	}
	return sections
}

// ExtractChartHints parses the trailing fenced JSON block of the raw analysis
// response.
func ExtractChartHints(raw string) []ChartHint {
	m := fencedJSON.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return nil
	}
	var payload struct {
		Visualizations []ChartHint `json:"visualizations"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &payload); err != nil {
		return nil
	}
	return payload.Visualizations
}
