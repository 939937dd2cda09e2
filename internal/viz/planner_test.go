package viz

import (
	"strings"
	"testing"

	"github.com/joelkehle/clinical-copilot/internal/analysis"
	"github.com/joelkehle/clinical-copilot/internal/trial"
)

func sampleRecord() trial.CanonicalRecord {
	var r trial.CanonicalRecord
	r.Title.Text = "Trial of Agent X"
	r.ResultsSummary.Text = "Treatment group showed 65% response rate vs 35% in control (p<0.001)"
	r.AdverseEvents.Text = "Mild fatigue (45%), moderate diarrhea (15%), severe neutropenia (5%)"
	r.Methodology.Text = "Randomized double-blind trial: 6 month treatment period, 12 month follow-up"
	return r
}

func findChart(specs []trial.ChartSpec, kind trial.ChartKind) *trial.ChartSpec {
	for i := range specs {
		if specs[i].Kind == kind {
			return &specs[i]
		}
	}
	return nil
}

func TestPlanBaselineCharts(t *testing.T) {
	specs, skips := Plan(sampleRecord(), "", nil)
	if len(skips) != 0 {
		t.Fatalf("unexpected skips: %v", skips)
	}
	bar := findChart(specs, trial.ChartBar)
	if bar == nil {
		t.Fatal("missing efficacy bar chart")
	}
	if bar.Series[0].Value != 65 || bar.Series[1].Value != 35 {
		t.Fatalf("efficacy series: %+v", bar.Series)
	}
	pie := findChart(specs, trial.ChartPie)
	if pie == nil || len(pie.Series) != 3 {
		t.Fatalf("safety chart: %+v", pie)
	}
	if pie.Series[0].Label != "Mild" || pie.Series[0].Value != 45 {
		t.Fatalf("safety series: %+v", pie.Series)
	}
	if findChart(specs, trial.ChartTimeline) == nil {
		t.Fatal("missing timeline chart")
	}
	dash := findChart(specs, trial.ChartDashboard)
	if dash == nil {
		t.Fatal("missing dashboard composite")
	}
	if len(dash.Series) != 3 {
		t.Fatalf("dashboard should compose 3 charts, got %d", len(dash.Series))
	}
	if !strings.Contains(dash.Title, "Trial of Agent X") {
		t.Fatalf("dashboard title: %q", dash.Title)
	}
}

func TestPlanSkipsSafetyChartWhenUnresolved(t *testing.T) {
	rec := sampleRecord()
	rec.AdverseEvents = trial.FieldValue{}
	specs, skips := Plan(rec, "", nil)
	if findChart(specs, trial.ChartPie) != nil {
		t.Fatal("safety chart must be skipped")
	}
	var found bool
	for _, s := range skips {
		if s.Kind == trial.ChartPie {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a skip for the safety chart, got %v", skips)
	}
	// The dashboard composite still includes the charts that succeeded.
	dash := findChart(specs, trial.ChartDashboard)
	if dash == nil || len(dash.Series) != 2 {
		t.Fatalf("dashboard must keep surviving charts: %+v", dash)
	}
}

func TestPlanNothingResolvable(t *testing.T) {
	specs, skips := Plan(trial.CanonicalRecord{}, "", nil)
	if len(specs) != 0 {
		t.Fatalf("expected no charts, got %+v", specs)
	}
	if len(skips) != 4 {
		t.Fatalf("expected 4 skips (3 baseline + dashboard), got %v", skips)
	}
}

func TestPlanAddsRecommendedLineChart(t *testing.T) {
	specs, _ := Plan(sampleRecord(), "A line chart of response over time would help.", nil)
	if findChart(specs, trial.ChartLine) == nil {
		t.Fatalf("line keyword should add a line chart: %+v", specs)
	}
}

func TestPlanUsesChartHints(t *testing.T) {
	hints := []analysis.ChartHint{{Type: "line_chart", Title: "Response Over Time", DataSource: trial.FieldResultsSummary}}
	specs, _ := Plan(sampleRecord(), "", hints)
	line := findChart(specs, trial.ChartLine)
	if line == nil || line.Title != "Response Over Time" {
		t.Fatalf("hint not honored: %+v", line)
	}
}

func TestPlanIgnoresUnrecognizedRecommendations(t *testing.T) {
	before, _ := Plan(sampleRecord(), "", nil)
	after, _ := Plan(sampleRecord(), "Maybe a holographic projection?", nil)
	if len(after) != len(before) {
		t.Fatalf("unrecognized text must be ignored: %d vs %d charts", len(after), len(before))
	}
}

func TestExtractNumbers(t *testing.T) {
	got := ExtractNumbers("ORR 40.5% vs 22% (p=0.001)")
	if len(got) != 3 || got[0] != 40.5 || got[1] != 22 || got[2] != 0.001 {
		t.Fatalf("unexpected: %v", got)
	}
	if got := ExtractNumbers("no numbers here"); len(got) != 0 {
		t.Fatalf("expected none, got %v", got)
	}
}

func TestBuildSVGContainsSeries(t *testing.T) {
	svg := BuildSVG(trial.ChartSpec{
		Kind:  trial.ChartBar,
		Title: "Efficacy",
		Series: []trial.SeriesPoint{
			{Label: "Control", Value: 35},
			{Label: "Treatment", Value: 65},
		},
	})
	if !strings.HasPrefix(svg, "<svg") || !strings.HasSuffix(svg, "</svg>") {
		t.Fatalf("not an svg document: %.60s", svg)
	}
	for _, want := range []string{"Efficacy", "Control", "Treatment", "65.0"} {
		if !strings.Contains(svg, want) {
			t.Fatalf("svg missing %q", want)
		}
	}
}
