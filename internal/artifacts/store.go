// Package artifacts owns everything the pipeline writes to disk: job-scoped
// output directories, timestamped filenames, and a SQLite catalog so the HTTP
// layer can list and serve a job's files without globbing the filesystem.
package artifacts

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/joelkehle/clinical-copilot/internal/trial"
)

// Kind identifies one artifact slot per job. A rerun of the same job
// overwrites the catalog row for that slot.
type Kind string

const (
	KindRecordJSON       Kind = "record_json"
	KindRecordCSV        Kind = "record_csv"
	KindAnalysisJSON     Kind = "analysis_json"
	KindReportText       Kind = "report_text"
	KindReportHTML       Kind = "report_html"
	KindExecutiveSummary Kind = "executive_summary"
	KindFollowUp         Kind = "follow_up_studies"
	KindChartEfficacy    Kind = "efficacy_chart"
	KindChartSafety      Kind = "safety_profile"
	KindChartTimeline    Kind = "study_timeline"
	KindChartDashboard   Kind = "clinical_dashboard"
)

// ParseKind maps a URL path segment back to a Kind.
func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	if _, ok := kindStems[k]; !ok {
		return "", false
	}
	return k, true
}

// kindStems holds the filename stem and extension per slot. The stems mirror
// the names analysts already expect from earlier exports.
var kindStems = map[Kind]struct {
	stem        string
	ext         string
	contentType string
}{
	KindRecordJSON:       {"clinical_data", ".json", "application/json"},
	KindRecordCSV:        {"clinical_trial_data", ".csv", "text/csv"},
	KindAnalysisJSON:     {"analysis_summary", ".json", "application/json"},
	KindReportText:       {"clinical_analysis_report", ".txt", "text/plain; charset=utf-8"},
	KindReportHTML:       {"clinical_analysis_report", ".html", "text/html; charset=utf-8"},
	KindExecutiveSummary: {"executive_summary", ".txt", "text/plain; charset=utf-8"},
	KindFollowUp:         {"follow_up_studies", ".txt", "text/plain; charset=utf-8"},
	KindChartEfficacy:    {"efficacy_chart", ".png", "image/png"},
	KindChartSafety:      {"safety_profile", ".png", "image/png"},
	KindChartTimeline:    {"study_timeline", ".png", "image/png"},
	KindChartDashboard:   {"clinical_dashboard", ".png", "image/png"},
}

// Artifact is one catalog row.
type Artifact struct {
	JobID       string    `db:"job_id" json:"job_id"`
	Kind        Kind      `db:"kind" json:"kind"`
	Filename    string    `db:"filename" json:"filename"`
	Path        string    `db:"path" json:"-"`
	ContentType string    `db:"content_type" json:"content_type"`
	SizeBytes   int64     `db:"size_bytes" json:"size_bytes"`
	CreatedAt   time.Time `db:"-" json:"created_at"`
}

type NotFoundError struct {
	JobID string
	Kind  Kind
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("artifact %s not found for job %s", e.Kind, e.JobID)
}

const schema = `
CREATE TABLE IF NOT EXISTS artifacts (
	job_id       TEXT NOT NULL,
	kind         TEXT NOT NULL,
	filename     TEXT NOT NULL,
	path         TEXT NOT NULL,
	content_type TEXT NOT NULL,
	size_bytes   INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL,
	PRIMARY KEY (job_id, kind)
);
`

// Store persists artifact bytes under root/<jobID>/ and catalogs each write
// to SQLite with write-through semantics.
type Store struct {
	root string
	db   *sqlx.DB
	mu   sync.Mutex
	now  func() time.Time
}

func NewStore(root, dbPath string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact root: %w", err)
	}
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{root: root, db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// WriteJSON marshals v with indentation and stores it under the kind's slot.
func (s *Store) WriteJSON(jobID string, kind Kind, v any) (Artifact, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return Artifact{}, fmt.Errorf("marshal %s: %w", kind, err)
	}
	return s.write(jobID, kind, append(data, '\n'))
}

// WriteRecordCSV exports the record as Field,Value rows.
func (s *Store) WriteRecordCSV(jobID string, record trial.CanonicalRecord) (Artifact, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Field", "Value"}); err != nil {
		return Artifact{}, fmt.Errorf("write csv header: %w", err)
	}
	for _, name := range trial.FieldNames {
		if err := w.Write([]string{name, record.Field(name).Display()}); err != nil {
			return Artifact{}, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return Artifact{}, fmt.Errorf("flush csv: %w", err)
	}
	return s.write(jobID, KindRecordCSV, buf.Bytes())
}

func (s *Store) WriteText(jobID string, kind Kind, text string) (Artifact, error) {
	return s.write(jobID, kind, []byte(text))
}

func (s *Store) WriteImage(jobID string, kind Kind, png []byte) (Artifact, error) {
	return s.write(jobID, kind, png)
}

func (s *Store) write(jobID string, kind Kind, data []byte) (Artifact, error) {
	meta, ok := kindStems[kind]
	if !ok {
		return Artifact{}, fmt.Errorf("unknown artifact kind %q", kind)
	}
	now := s.now().UTC()
	filename := fmt.Sprintf("%s_%s%s", meta.stem, now.Format("20060102_150405"), meta.ext)

	dir := filepath.Join(s.root, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("create job dir: %w", err)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Artifact{}, fmt.Errorf("write %s: %w", filename, err)
	}

	a := Artifact{
		JobID:       jobID,
		Kind:        kind,
		Filename:    filename,
		Path:        path,
		ContentType: meta.contentType,
		SizeBytes:   int64(len(data)),
		CreatedAt:   now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT OR REPLACE INTO artifacts (job_id, kind, filename, path, content_type, size_bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.JobID, string(a.Kind), a.Filename, a.Path, a.ContentType, a.SizeBytes, now.Format(time.RFC3339Nano))
	if err != nil {
		return Artifact{}, fmt.Errorf("catalog artifact: %w", err)
	}
	return a, nil
}

// List returns the cataloged artifacts for one job, ordered by kind.
func (s *Store) List(jobID string) ([]Artifact, error) {
	rows, err := s.db.Query(`SELECT job_id, kind, filename, path, content_type, size_bytes, created_at
		FROM artifacts WHERE job_id = ? ORDER BY kind`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		var a Artifact
		var createdAt string
		if err := rows.Scan(&a.JobID, &a.Kind, &a.Filename, &a.Path, &a.ContentType, &a.SizeBytes, &createdAt); err != nil {
			return nil, err
		}
		a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// Get resolves one artifact row; the caller opens Path to stream the bytes.
func (s *Store) Get(jobID string, kind Kind) (Artifact, error) {
	row := s.db.QueryRow(`SELECT job_id, kind, filename, path, content_type, size_bytes, created_at
		FROM artifacts WHERE job_id = ? AND kind = ?`, jobID, string(kind))
	var a Artifact
	var createdAt string
	if err := row.Scan(&a.JobID, &a.Kind, &a.Filename, &a.Path, &a.ContentType, &a.SizeBytes, &createdAt); err != nil {
		return Artifact{}, &NotFoundError{JobID: jobID, Kind: kind}
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return a, nil
}
