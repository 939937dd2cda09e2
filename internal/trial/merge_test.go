package trial

import (
	"reflect"
	"testing"
)

func textOnly(field, value string) PartialRecord {
	var r PartialRecord
	r.Field(field).Text = value
	return r
}

func TestMergeAllUnresolved(t *testing.T) {
	got := Merge([]PartialRecord{{}, {}, {}})
	for _, name := range FieldNames {
		if got.Field(name).Resolved() {
			t.Fatalf("field %s should stay unresolved", name)
		}
	}
}

func TestMergeSingleValueWins(t *testing.T) {
	parts := []PartialRecord{{}, textOnly(FieldTitle, "A Phase II Study"), {}}
	got := Merge(parts)
	if got.Title.Text != "A Phase II Study" {
		t.Fatalf("unexpected title: %q", got.Title.Text)
	}
}

func TestMergeStructuredBeatsPlainString(t *testing.T) {
	// participants seen as a string in chunk 0, absent in chunk 1, structured
	// in chunk 2: the structured subvalue must win.
	structured := PartialRecord{}
	structured.Participants.Sub = map[string]string{"number": "120", "demographics": "adults"}
	parts := []PartialRecord{
		textOnly(FieldParticipants, "120 patients"),
		{},
		structured,
	}
	got := Merge(parts)
	if !got.Participants.Structured() {
		t.Fatalf("expected structured participants, got %+v", got.Participants)
	}
	if got.Participants.Sub["number"] != "120" {
		t.Fatalf("structured subvalue lost: %+v", got.Participants.Sub)
	}
}

func TestMergeLongestNarrativeWins(t *testing.T) {
	parts := []PartialRecord{
		textOnly(FieldResultsSummary, "Response rate 65%."),
		textOnly(FieldResultsSummary, "Response rate 65% in treatment vs 35% in control (p<0.001)."),
	}
	got := Merge(parts)
	if got.ResultsSummary.Text != parts[1].ResultsSummary.Text {
		t.Fatalf("expected longest summary, got %q", got.ResultsSummary.Text)
	}
}

func TestMergeTieBrokenByEarliestChunk(t *testing.T) {
	parts := []PartialRecord{
		textOnly(FieldMethodology, "double-blind design A"),
		textOnly(FieldMethodology, "double-blind design B"),
	}
	got := Merge(parts)
	if got.Methodology.Text != "double-blind design A" {
		t.Fatalf("tie must go to earliest chunk, got %q", got.Methodology.Text)
	}
}

func TestMergeParticipantsPrefersNumericToken(t *testing.T) {
	parts := []PartialRecord{
		textOnly(FieldParticipants, "adult patients with advanced disease enrolled across sites"),
		textOnly(FieldParticipants, "n=248"),
	}
	got := Merge(parts)
	if got.Participants.Text != "n=248" {
		t.Fatalf("numeric participants value must win, got %q", got.Participants.Text)
	}
}

func TestMergeDeterministic(t *testing.T) {
	parts := []PartialRecord{
		textOnly(FieldTitle, "Trial of Agent X"),
		textOnly(FieldResultsSummary, "ORR 40% vs 22%"),
		textOnly(FieldAdverseEvents, "nausea 30%, fatigue 45%"),
	}
	first := Merge(parts)
	for i := 0; i < 10; i++ {
		if got := Merge(parts); !reflect.DeepEqual(got, first) {
			t.Fatalf("merge not deterministic on run %d", i)
		}
	}
}

func TestMergeMonotonicity(t *testing.T) {
	// Adding one more non-empty partial value never makes a field unresolved.
	parts := []PartialRecord{textOnly(FieldEndpoints, "overall survival")}
	before := Merge(parts)
	if !before.Endpoints.Resolved() {
		t.Fatal("endpoint should be resolved")
	}
	parts = append(parts, textOnly(FieldEndpoints, "progression-free survival at 12 months"))
	after := Merge(parts)
	if !after.Endpoints.Resolved() {
		t.Fatal("adding a value must never unresolve a field")
	}
}
