// Package report renders textual reports from an already-resolved canonical
// record plus parsed insight sections. Pure formatting: no external calls and
// no runtime failure modes.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/joelkehle/clinical-copilot/internal/analysis"
	"github.com/joelkehle/clinical-copilot/internal/trial"
)

type Reports struct {
	FullReport       string
	ExecutiveSummary string
	FollowUp         string
}

// Compose builds the full analysis report, the executive summary, and the
// follow-up suggestions. The clock is injectable so output is reproducible in
// tests.
func Compose(record trial.CanonicalRecord, sections analysis.InsightSections) Reports {
	return composeAt(record, sections, time.Now())
}

func composeAt(record trial.CanonicalRecord, sections analysis.InsightSections, now time.Time) Reports {
	return Reports{
		FullReport:       fullReport(record, sections, now),
		ExecutiveSummary: executiveSummary(record, sections, now),
		FollowUp:         followUp(record),
	}
}

func fullReport(record trial.CanonicalRecord, sections analysis.InsightSections, now time.Time) string {
	var b strings.Builder
	b.WriteString("CLINICAL TRIAL ANALYSIS REPORT\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	fmt.Fprintf(&b, "Generated on: %s\n\n", now.Format("2006-01-02 15:04:05"))

	b.WriteString("## Study Record\n\n")
	for _, name := range trial.FieldNames {
		fmt.Fprintf(&b, "- %s: %s\n", fieldLabel(name), record.Field(name).Display())
	}
	b.WriteString("\n")

	b.WriteString("## Clinical Analysis\n\n")
	if sections.ClinicalAnalysis != "" {
		b.WriteString(sections.ClinicalAnalysis + "\n\n")
	} else {
		b.WriteString("AI analysis was unavailable for this run; the report contains extraction results only.\n\n")
	}

	if sections.VisualizationRecommendations != "" {
		b.WriteString("## Visualization Recommendations\n\n")
		b.WriteString(sections.VisualizationRecommendations + "\n")
	}
	return b.String()
}

func executiveSummary(record trial.CanonicalRecord, sections analysis.InsightSections, now time.Time) string {
	var b strings.Builder
	b.WriteString("EXECUTIVE SUMMARY\n")
	b.WriteString(strings.Repeat("=", 30) + "\n\n")
	fmt.Fprintf(&b, "Study: %s\n", record.Title.Display())
	fmt.Fprintf(&b, "Type: %s\n", record.StudyType.Display())
	fmt.Fprintf(&b, "Participants: %s\n", record.Participants.Display())
	fmt.Fprintf(&b, "Primary Endpoints: %s\n\n", record.Endpoints.Display())

	fmt.Fprintf(&b, "Key Results: %s\n\n", record.ResultsSummary.Display())

	if lead := firstSentences(sections.ClinicalAnalysis, 3); lead != "" {
		b.WriteString("Assessment:\n")
		b.WriteString(lead + "\n\n")
	}
	fmt.Fprintf(&b, "Prepared %s.\n", now.Format("2006-01-02"))
	return b.String()
}

// followUp derives study suggestions from gaps in the record itself: every
// unresolved field is a concrete avenue for a follow-up investigation.
func followUp(record trial.CanonicalRecord) string {
	var b strings.Builder
	b.WriteString("FOLLOW-UP STUDY RECOMMENDATIONS\n")
	b.WriteString(strings.Repeat("=", 40) + "\n\n")

	suggestions := []string{
		"Confirmatory trial with a larger cohort to validate the reported effect size.",
		"Long-term extension study tracking durability of response and late-onset adverse events.",
	}
	if !record.AdverseEvents.Resolved() {
		suggestions = append(suggestions, "Dedicated safety study: the source document reported no analyzable adverse-event data.")
	}
	if !record.StatisticalAnalysis.Resolved() {
		suggestions = append(suggestions, "Independent statistical re-analysis: methods were not recoverable from the source document.")
	}
	if record.StudyType.Resolved() && !strings.Contains(strings.ToLower(record.StudyType.Display()), "randomized") {
		suggestions = append(suggestions, "Randomized controlled design to address selection bias in the current study type.")
	}
	for i, s := range suggestions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	return b.String()
}

func fieldLabel(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func firstSentences(text string, n int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	var out strings.Builder
	count := 0
	for i := 0; i < len(text); i++ {
		out.WriteByte(text[i])
		if text[i] == '.' || text[i] == '!' || text[i] == '?' {
			count++
			if count == n {
				break
			}
		}
	}
	return strings.TrimSpace(out.String())
}
