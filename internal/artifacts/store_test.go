package artifacts

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joelkehle/clinical-copilot/internal/trial"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "out"), filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	s.now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }
	return s
}

func TestWriteJSONRoundTrip(t *testing.T) {
	s := newTestStore(t)

	var record trial.CanonicalRecord
	record.Title.Text = "Trial of Agent X"
	a, err := s.WriteJSON("job-1", KindRecordJSON, record)
	if err != nil {
		t.Fatal(err)
	}
	if a.Filename != "clinical_data_20260314_093000.json" {
		t.Fatalf("filename: %s", a.Filename)
	}
	if a.ContentType != "application/json" {
		t.Fatalf("content type: %s", a.ContentType)
	}

	data, err := os.ReadFile(a.Path)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got["title"] != "Trial of Agent X" {
		t.Fatalf("round trip: %v", got)
	}
}

func TestWriteRecordCSV(t *testing.T) {
	s := newTestStore(t)

	var record trial.CanonicalRecord
	record.Participants.Text = "248 adults"
	a, err := s.WriteRecordCSV("job-1", record)
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(a.Path)
	if err != nil {
		t.Fatal(err)
	}
	body := string(data)
	if !strings.HasPrefix(body, "Field,Value\n") {
		t.Fatalf("missing header:\n%s", body)
	}
	if !strings.Contains(body, "participants,248 adults") {
		t.Fatalf("missing row:\n%s", body)
	}
	if !strings.Contains(body, "title,Not available") {
		t.Fatalf("unresolved field must still be exported:\n%s", body)
	}
}

func TestListAndGet(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.WriteText("job-1", KindReportText, "report"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.WriteImage("job-1", KindChartEfficacy, []byte{0x89, 'P', 'N', 'G'}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.WriteText("job-2", KindReportText, "other job"); err != nil {
		t.Fatal(err)
	}

	list, err := s.List("job-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("want 2 artifacts, got %d", len(list))
	}

	a, err := s.Get("job-1", KindChartEfficacy)
	if err != nil {
		t.Fatal(err)
	}
	if a.ContentType != "image/png" || a.SizeBytes != 4 {
		t.Fatalf("unexpected artifact: %+v", a)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get("nope", KindReportText)
	var nfe *NotFoundError
	if !errors.As(err, &nfe) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestRewriteReplacesCatalogRow(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.WriteText("job-1", KindReportText, "v1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.WriteText("job-1", KindReportText, "v2 longer"); err != nil {
		t.Fatal(err)
	}
	list, err := s.List("job-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("slot must hold one row, got %d", len(list))
	}
	if list[0].SizeBytes != int64(len("v2 longer")) {
		t.Fatalf("row not replaced: %+v", list[0])
	}
}

func TestParseKind(t *testing.T) {
	if k, ok := ParseKind("efficacy_chart"); !ok || k != KindChartEfficacy {
		t.Fatalf("parse: %v %v", k, ok)
	}
	if _, ok := ParseKind("bogus"); ok {
		t.Fatal("bogus kind must not parse")
	}
}
