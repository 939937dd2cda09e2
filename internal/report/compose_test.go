package report

import (
	"strings"
	"testing"
	"time"

	"github.com/joelkehle/clinical-copilot/internal/analysis"
	"github.com/joelkehle/clinical-copilot/internal/trial"
)

func sampleRecord() trial.CanonicalRecord {
	var r trial.CanonicalRecord
	r.Title.Text = "Trial of Agent X"
	r.StudyType.Text = "Phase II randomized controlled trial"
	r.Participants.Text = "248 adults"
	r.Endpoints.Text = "Overall response rate"
	r.ResultsSummary.Text = "ORR 65% vs 35% (p<0.001)."
	return r
}

var fixedTime = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func TestComposeFullReport(t *testing.T) {
	sections := analysis.InsightSections{
		ClinicalAnalysis:             "Well-powered design. The effect is clinically meaningful. Toxicity was manageable. Longer follow-up is needed.",
		VisualizationRecommendations: "Bar chart of response rates.",
	}
	got := composeAt(sampleRecord(), sections, fixedTime)

	if !strings.Contains(got.FullReport, "CLINICAL TRIAL ANALYSIS REPORT") {
		t.Fatalf("missing header:\n%s", got.FullReport)
	}
	if !strings.Contains(got.FullReport, "Results Summary: ORR 65% vs 35%") {
		t.Fatalf("missing record field:\n%s", got.FullReport)
	}
	if !strings.Contains(got.FullReport, "Well-powered design.") {
		t.Fatal("missing clinical analysis section")
	}
	if !strings.Contains(got.FullReport, "Bar chart of response rates.") {
		t.Fatal("missing visualization recommendations section")
	}
	// Unresolved fields surface as the explicit token, not silence.
	if !strings.Contains(got.FullReport, "Adverse Events: "+trial.NotAvailable) {
		t.Fatalf("unresolved field must be acknowledged:\n%s", got.FullReport)
	}
}

func TestComposeExecutiveSummary(t *testing.T) {
	sections := analysis.InsightSections{ClinicalAnalysis: "One. Two. Three. Four. Five."}
	got := composeAt(sampleRecord(), sections, fixedTime)

	if !strings.Contains(got.ExecutiveSummary, "Study: Trial of Agent X") {
		t.Fatalf("summary:\n%s", got.ExecutiveSummary)
	}
	if !strings.Contains(got.ExecutiveSummary, "One. Two. Three.") || strings.Contains(got.ExecutiveSummary, "Four.") {
		t.Fatalf("assessment should carry only the leading sentences:\n%s", got.ExecutiveSummary)
	}
	if !strings.Contains(got.ExecutiveSummary, "2026-03-14") {
		t.Fatal("missing preparation date")
	}
}

func TestComposeDegradedRun(t *testing.T) {
	got := composeAt(sampleRecord(), analysis.InsightSections{}, fixedTime)
	if !strings.Contains(got.FullReport, "extraction results only") {
		t.Fatalf("degraded note missing:\n%s", got.FullReport)
	}
	if strings.Contains(got.FullReport, "## Visualization Recommendations") {
		t.Fatal("empty recommendations must not emit a section")
	}
}

func TestComposeFollowUpReflectsGaps(t *testing.T) {
	rec := sampleRecord()
	got := composeAt(rec, analysis.InsightSections{}, fixedTime)
	if !strings.Contains(got.FollowUp, "Dedicated safety study") {
		t.Fatalf("missing safety gap suggestion:\n%s", got.FollowUp)
	}
	rec.AdverseEvents.Text = "mild nausea"
	got = composeAt(rec, analysis.InsightSections{}, fixedTime)
	if strings.Contains(got.FollowUp, "Dedicated safety study") {
		t.Fatal("safety suggestion should disappear once data exists")
	}
}

func TestRenderHTML(t *testing.T) {
	doc, err := RenderHTML("Report", "## Heading\n\nSome *emphasis*.")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"<!DOCTYPE html>", "<title>Report</title>", "<h2", "<em>emphasis</em>"} {
		if !strings.Contains(doc, want) {
			t.Fatalf("html missing %q:\n%s", want, doc)
		}
	}
}
