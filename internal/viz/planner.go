// Package viz maps a canonical record plus free-text recommendations to a
// finite set of chart specifications, and renders them through a pluggable
// backend. Visualization is best-effort: a chart whose source data cannot be
// parsed is skipped with a warning, never an error.
package viz

import (
	"fmt"
	"strings"

	"github.com/joelkehle/clinical-copilot/internal/analysis"
	"github.com/joelkehle/clinical-copilot/internal/trial"
)

// Skip records one baseline chart that could not be planned from the record.
type Skip struct {
	Kind   trial.ChartKind
	Source string
	Reason string
}

func (s Skip) String() string {
	return fmt.Sprintf("chart %s skipped: %s (%s)", s.Kind, s.Reason, s.Source)
}

// Plan builds the baseline chart set from the record, then adds charts
// suggested by the analysis recommendations. Baseline charts whose numeric or
// categorical tokens cannot be parsed are skipped and reported; unrecognized
// recommendation text is ignored outright.
func Plan(record trial.CanonicalRecord, recommendations string, hints []analysis.ChartHint) ([]trial.ChartSpec, []Skip) {
	var specs []trial.ChartSpec
	var skips []Skip

	if spec, ok := efficacyChart(record); ok {
		specs = append(specs, spec)
	} else {
		skips = append(skips, Skip{Kind: trial.ChartBar, Source: trial.FieldResultsSummary, Reason: "no numeric efficacy tokens"})
	}
	if spec, ok := safetyChart(record); ok {
		specs = append(specs, spec)
	} else {
		skips = append(skips, Skip{Kind: trial.ChartPie, Source: trial.FieldAdverseEvents, Reason: "no adverse-event categories"})
	}
	if spec, ok := timelineChart(record); ok {
		specs = append(specs, spec)
	} else {
		skips = append(skips, Skip{Kind: trial.ChartTimeline, Source: trial.FieldMethodology, Reason: "no duration or phase tokens"})
	}

	specs = append(specs, recommendedCharts(record, recommendations, hints, specs)...)

	// The dashboard is a composite of whatever resolved; with nothing
	// resolved there is nothing to compose.
	if len(specs) > 0 {
		specs = append(specs, dashboardChart(record, specs))
	} else {
		skips = append(skips, Skip{Kind: trial.ChartDashboard, Source: "composite", Reason: "no resolvable charts"})
	}
	return specs, skips
}

func efficacyChart(record trial.CanonicalRecord) (trial.ChartSpec, bool) {
	numbers := ExtractNumbers(record.ResultsSummary.Display())
	if len(numbers) < 2 {
		numbers = ExtractNumbers(record.Endpoints.Display())
	}
	if len(numbers) < 2 {
		return trial.ChartSpec{}, false
	}
	series := []trial.SeriesPoint{
		{Label: "Control Group", Value: numbers[0]},
		{Label: "Treatment Group", Value: numbers[1]},
	}
	if len(numbers) >= 3 {
		series = append(series, trial.SeriesPoint{Label: "Difference", Value: numbers[2]})
	} else {
		diff := numbers[1] - numbers[0]
		if diff < 0 {
			diff = -diff
		}
		series = append(series, trial.SeriesPoint{Label: "Difference", Value: diff})
	}
	return trial.ChartSpec{Kind: trial.ChartBar, Title: "Clinical Trial Efficacy Results", Series: series}, true
}

func safetyChart(record trial.CanonicalRecord) (trial.ChartSpec, bool) {
	if !record.AdverseEvents.Resolved() {
		return trial.ChartSpec{}, false
	}
	counts := severityCounts(record.AdverseEvents.Display())
	if len(counts) < 2 {
		return trial.ChartSpec{}, false
	}
	series := make([]trial.SeriesPoint, 0, len(counts))
	for _, c := range counts {
		series = append(series, trial.SeriesPoint{Label: c.label, Value: c.value})
	}
	return trial.ChartSpec{Kind: trial.ChartPie, Title: "Adverse Events Distribution", Series: series}, true
}

func timelineChart(record trial.CanonicalRecord) (trial.ChartSpec, bool) {
	if !record.Methodology.Resolved() {
		return trial.ChartSpec{}, false
	}
	spans := durations(record.Methodology.Display())
	if len(spans) == 0 {
		return trial.ChartSpec{}, false
	}
	series := make([]trial.SeriesPoint, 0, len(spans)+1)
	elapsed := 0.0
	series = append(series, trial.SeriesPoint{Label: "Start", Value: 0})
	for _, s := range spans {
		elapsed += s.value
		series = append(series, trial.SeriesPoint{Label: s.label, Value: elapsed})
	}
	return trial.ChartSpec{Kind: trial.ChartTimeline, Title: "Study Timeline and Methodology", Series: series}, true
}

func dashboardChart(record trial.CanonicalRecord, included []trial.ChartSpec) trial.ChartSpec {
	title := "Clinical Trial Dashboard"
	if record.Title.Resolved() {
		title = fmt.Sprintf("Clinical Trial Dashboard: %s", record.Title.Display())
	}
	series := make([]trial.SeriesPoint, 0, len(included))
	for _, spec := range included {
		series = append(series, trial.SeriesPoint{Label: spec.Title, Value: float64(len(spec.Series))})
	}
	return trial.ChartSpec{Kind: trial.ChartDashboard, Title: title, Series: series}
}

var keywordKinds = []struct {
	keyword string
	kind    trial.ChartKind
}{
	{"pie", trial.ChartPie},
	{"line", trial.ChartLine},
	{"bar", trial.ChartBar},
}

// recommendedCharts maps chart hints and recommendation keywords to
// additional chart kinds not already covered by the baseline. Sources that do
// not yield numeric series are ignored.
func recommendedCharts(record trial.CanonicalRecord, recommendations string, hints []analysis.ChartHint, existing []trial.ChartSpec) []trial.ChartSpec {
	have := map[trial.ChartKind]bool{}
	for _, s := range existing {
		have[s.Kind] = true
	}

	var out []trial.ChartSpec
	add := func(kind trial.ChartKind, title, source string) {
		if have[kind] {
			return
		}
		field := record.Field(source)
		if field == nil {
			field = &record.ResultsSummary
		}
		numbers := ExtractNumbers(field.Display())
		if len(numbers) < 2 {
			return
		}
		if len(numbers) > 5 {
			numbers = numbers[:5]
		}
		series := make([]trial.SeriesPoint, 0, len(numbers))
		for i, v := range numbers {
			series = append(series, trial.SeriesPoint{Label: fmt.Sprintf("Group %d", i+1), Value: v})
		}
		if title == "" {
			title = fmt.Sprintf("Recommended %s chart", kind)
		}
		have[kind] = true
		out = append(out, trial.ChartSpec{Kind: kind, Title: title, Series: series})
	}

	for _, h := range hints {
		for _, kk := range keywordKinds {
			if strings.Contains(strings.ToLower(h.Type), kk.keyword) {
				add(kk.kind, h.Title, h.DataSource)
				break
			}
		}
	}
	lower := strings.ToLower(recommendations)
	for _, kk := range keywordKinds {
		if strings.Contains(lower, kk.keyword) {
			add(kk.kind, "", trial.FieldResultsSummary)
		}
	}
	return out
}
