package extraction

import (
	"regexp"
	"strings"

	"github.com/joelkehle/clinical-copilot/internal/trial"
)

// Pattern-based fallback extraction, used when the extraction service answers
// but not with the requested JSON. Only fields that actually match are set;
// everything else stays absent so the merge can fill it from other chunks.

var titlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^study title[:\s]+([^\n]+)`),
	regexp.MustCompile(`(?im)^title[:\s]+([^\n]+)`),
	regexp.MustCompile(`(?im)^clinical trial[:\s]+([^\n]+)`),
}

var participantPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d{1,3}(?:,\d{3})*)\s*(?:participants?|patients?|subjects?)`),
	regexp.MustCompile(`(?i)(?:participants?|patients?|subjects?)[:\s]+(\d{1,3}(?:,\d{3})*)`),
	regexp.MustCompile(`(?i)n\s*=\s*(\d{1,3}(?:,\d{3})*)`),
	regexp.MustCompile(`(?i)sample size[:\s]+(\d{1,3}(?:,\d{3})*)`),
}

var studyTypePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(phase\s+[IVX]+[^.\n]*)`),
	regexp.MustCompile(`(?i)(randomized[^.\n]*)`),
	regexp.MustCompile(`(?i)(double-blind[^.\n]*)`),
	regexp.MustCompile(`(?i)(placebo-controlled[^.\n]*)`),
	regexp.MustCompile(`(?i)(open-label[^.\n]*)`),
}

var endpointPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)primary (?:endpoint|outcome)[:\s]+([^.\n]+)`),
	regexp.MustCompile(`(?i)secondary (?:endpoint|outcome)[:\s]+([^.\n]+)`),
}

func heuristicExtract(text string) trial.PartialRecord {
	var rec trial.PartialRecord

	if m := firstMatch(titlePatterns, text); m != "" {
		rec.Title.Text = m
	}
	if m := firstMatch(participantPatterns, text); m != "" {
		rec.Participants.Text = m + " participants"
	}
	if m := firstMatch(studyTypePatterns, text); m != "" {
		rec.StudyType.Text = m
	}

	var endpoints []string
	for _, re := range endpointPatterns {
		for _, m := range re.FindAllStringSubmatch(text, 2) {
			endpoints = append(endpoints, strings.TrimSpace(m[1]))
		}
	}
	if len(endpoints) > 0 {
		if len(endpoints) > 3 {
			endpoints = endpoints[:3]
		}
		rec.Endpoints.Text = strings.Join(endpoints, "; ")
	}
	return rec
}

func firstMatch(patterns []*regexp.Regexp, text string) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}
