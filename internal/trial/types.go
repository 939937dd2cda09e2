package trial

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Field names of the fixed extraction schema, in canonical order.
const (
	FieldTitle               = "title"
	FieldParticipants        = "participants"
	FieldStudyType           = "study_type"
	FieldEndpoints           = "endpoints"
	FieldMethodology         = "methodology"
	FieldResultsSummary      = "results_summary"
	FieldAdverseEvents       = "adverse_events"
	FieldStatisticalAnalysis = "statistical_analysis"
)

var FieldNames = []string{
	FieldTitle,
	FieldParticipants,
	FieldStudyType,
	FieldEndpoints,
	FieldMethodology,
	FieldResultsSummary,
	FieldAdverseEvents,
	FieldStatisticalAnalysis,
}

// NotAvailable is the token rendered for unresolved fields wherever the record
// is serialized for a downstream consumer, so missing data is acknowledged
// instead of silently omitted.
const NotAvailable = "Not available"

// FieldValue is one slot of the extraction schema. The extraction service may
// return either a plain string or a small nested object for the same field, so
// both shapes share this type. The zero value means the field is absent
// (a PartialRecord) or unresolved (a CanonicalRecord).
type FieldValue struct {
	Text string
	Sub  map[string]string
}

func (v FieldValue) Resolved() bool {
	return strings.TrimSpace(v.Text) != "" || len(v.Sub) > 0
}

func (v FieldValue) Structured() bool { return len(v.Sub) > 0 }

// Display renders the value as a single readable line. Structured subvalues
// come out as "Key: value; Key2: value2" with deterministic key order.
func (v FieldValue) Display() string {
	if v.Structured() {
		keys := make([]string, 0, len(v.Sub))
		for k := range v.Sub {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %s", titleCase(k), v.Sub[k]))
		}
		return strings.Join(parts, "; ")
	}
	if !v.Resolved() {
		return NotAvailable
	}
	return v.Text
}

func titleCase(k string) string {
	words := strings.Split(strings.ReplaceAll(k, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func (v FieldValue) MarshalJSON() ([]byte, error) {
	if v.Structured() {
		return json.Marshal(v.Sub)
	}
	if !v.Resolved() {
		return json.Marshal(NotAvailable)
	}
	return json.Marshal(v.Text)
}

// UnmarshalJSON accepts the shapes the extraction service actually produces:
// a string, a flat object, an array of strings, a bare number, or null.
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	*v = FieldValue{}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		return nil
	}
	switch trimmed[0] {
	case '"':
		return json.Unmarshal(data, &v.Text)
	case '{':
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		sub := make(map[string]string, len(raw))
		for k, rv := range raw {
			sub[k] = scalarString(rv)
		}
		v.Sub = sub
		return nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		parts := make([]string, 0, len(items))
		for _, it := range items {
			if s := scalarString(it); s != "" {
				parts = append(parts, s)
			}
		}
		v.Text = strings.Join(parts, "; ")
		return nil
	default:
		v.Text = trimmed
		return nil
	}
}

func scalarString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// Record holds one document's clinical-trial facts over the fixed field set.
// A PartialRecord is the output of one chunk's extraction and may have absent
// fields; a CanonicalRecord is the merged result where an absent field means
// no chunk ever produced a value.
type Record struct {
	Title               FieldValue `json:"title"`
	Participants        FieldValue `json:"participants"`
	StudyType           FieldValue `json:"study_type"`
	Endpoints           FieldValue `json:"endpoints"`
	Methodology         FieldValue `json:"methodology"`
	ResultsSummary      FieldValue `json:"results_summary"`
	AdverseEvents       FieldValue `json:"adverse_events"`
	StatisticalAnalysis FieldValue `json:"statistical_analysis"`
}

type (
	PartialRecord   = Record
	CanonicalRecord = Record
)

// Field returns the slot for a schema field name, or nil for unknown names.
func (r *Record) Field(name string) *FieldValue {
	switch name {
	case FieldTitle:
		return &r.Title
	case FieldParticipants:
		return &r.Participants
	case FieldStudyType:
		return &r.StudyType
	case FieldEndpoints:
		return &r.Endpoints
	case FieldMethodology:
		return &r.Methodology
	case FieldResultsSummary:
		return &r.ResultsSummary
	case FieldAdverseEvents:
		return &r.AdverseEvents
	case FieldStatisticalAnalysis:
		return &r.StatisticalAnalysis
	default:
		return nil
	}
}

// Empty reports whether no field holds a value.
func (r *Record) Empty() bool {
	for _, name := range FieldNames {
		if r.Field(name).Resolved() {
			return false
		}
	}
	return true
}

// TextChunk is a bounded slice of the normalized source text. Start/End index
// the normalized text as [Start,End); consecutive chunks overlap by at most
// the configured overlap window.
type TextChunk struct {
	Index int
	Text  string
	Start int
	End   int
}

type ChartKind string

const (
	ChartBar       ChartKind = "bar"
	ChartPie       ChartKind = "pie"
	ChartLine      ChartKind = "line"
	ChartTimeline  ChartKind = "timeline"
	ChartDashboard ChartKind = "dashboard"
)

type SeriesPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ChartSpec describes one visualization independent of the rendering backend.
type ChartSpec struct {
	Kind   ChartKind     `json:"kind"`
	Title  string        `json:"title"`
	Series []SeriesPoint `json:"series"`
}
