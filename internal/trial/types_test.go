package trial

import (
	"encoding/json"
	"testing"
)

func TestFieldValueUnmarshalString(t *testing.T) {
	var v FieldValue
	if err := json.Unmarshal([]byte(`"200 patients"`), &v); err != nil {
		t.Fatal(err)
	}
	if v.Text != "200 patients" || v.Structured() {
		t.Fatalf("unexpected: %+v", v)
	}
}

func TestFieldValueUnmarshalObject(t *testing.T) {
	var v FieldValue
	if err := json.Unmarshal([]byte(`{"number": 120, "demographics": "adults"}`), &v); err != nil {
		t.Fatal(err)
	}
	if !v.Structured() {
		t.Fatalf("expected structured value, got %+v", v)
	}
	if v.Sub["number"] != "120" || v.Sub["demographics"] != "adults" {
		t.Fatalf("unexpected subvalues: %+v", v.Sub)
	}
}

func TestFieldValueUnmarshalArrayAndNull(t *testing.T) {
	var v FieldValue
	if err := json.Unmarshal([]byte(`["ORR", "PFS"]`), &v); err != nil {
		t.Fatal(err)
	}
	if v.Text != "ORR; PFS" {
		t.Fatalf("unexpected: %q", v.Text)
	}
	if err := json.Unmarshal([]byte(`null`), &v); err != nil {
		t.Fatal(err)
	}
	if v.Resolved() {
		t.Fatalf("null must be absent, got %+v", v)
	}
}

func TestFieldValueDisplay(t *testing.T) {
	v := FieldValue{Sub: map[string]string{"study_design": "cross-sectional", "arms": "2"}}
	if got := v.Display(); got != "Arms: 2; Study Design: cross-sectional" {
		t.Fatalf("unexpected display: %q", got)
	}
	if got := (FieldValue{}).Display(); got != NotAvailable {
		t.Fatalf("unresolved display: %q", got)
	}
}

func TestRecordMarshalUnresolvedAsNotAvailable(t *testing.T) {
	var r CanonicalRecord
	r.Title.Text = "Trial"
	blob, err := json.Marshal(&r)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(blob, &m); err != nil {
		t.Fatal(err)
	}
	if m["participants"] != NotAvailable {
		t.Fatalf("unresolved field should serialize as %q, got %v", NotAvailable, m["participants"])
	}
}
