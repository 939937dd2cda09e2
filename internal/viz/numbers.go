package viz

import (
	"regexp"
	"strconv"
	"strings"
)

var numberToken = regexp.MustCompile(`-?\d+(?:\.\d+)?(?:[eE][+-]?\d+)?%?`)

// ExtractNumbers pulls numeric tokens (including percentages) out of
// narrative text, in order of appearance.
func ExtractNumbers(text string) []float64 {
	matches := numberToken.FindAllString(text, 24)
	out := make([]float64, 0, len(matches))
	for _, m := range matches {
		v, err := strconv.ParseFloat(strings.TrimSuffix(m, "%"), 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

var severityToken = regexp.MustCompile(`(?i)(mild|moderate|severe|serious|grade\s*[1-5])[^0-9%\n]{0,40}?(\d+(?:\.\d+)?)\s*%?`)

// severityCounts parses adverse-event text of the form "mild fatigue (45%),
// moderate diarrhea (15%)" into labelled counts, keeping first occurrence per
// label.
func severityCounts(text string) []labelled {
	var out []labelled
	seen := map[string]bool{}
	for _, m := range severityToken.FindAllStringSubmatch(text, 12) {
		label := titleWord(m[1])
		if seen[label] {
			continue
		}
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		seen[label] = true
		out = append(out, labelled{label: label, value: v})
	}
	return out
}

var durationToken = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)[\s-]*(day|week|month|year)s?`)

// durations extracts study-period tokens from methodology text, normalized to
// months.
func durations(text string) []labelled {
	var out []labelled
	for _, m := range durationToken.FindAllStringSubmatch(text, 8) {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		unit := strings.ToLower(m[2])
		months := v
		switch unit {
		case "day":
			months = v / 30
		case "week":
			months = v / 4.33
		case "year":
			months = v * 12
		}
		out = append(out, labelled{label: m[0], value: months})
	}
	return out
}

type labelled struct {
	label string
	value float64
}

func titleWord(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
