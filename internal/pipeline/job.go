// Package pipeline runs a submitted document through extraction, merging,
// analysis, and rendering, tracking each run as a Job.
package pipeline

import (
	"time"

	"github.com/joelkehle/clinical-copilot/internal/analysis"
	"github.com/joelkehle/clinical-copilot/internal/artifacts"
	"github.com/joelkehle/clinical-copilot/internal/trial"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusExtracting Status = "extracting"
	StatusMerging    Status = "merging"
	StatusAnalyzing  Status = "analyzing"
	StatusRendering  Status = "rendering"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether a job can no longer change state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ErrorInfo records the stage a failed job died in.
type ErrorInfo struct {
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

type Job struct {
	ID          string    `json:"id"`
	Status      Status    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	ChunksTotal  int `json:"chunks_total"`
	ChunksFailed int `json:"chunks_failed"`

	// Progress is the fraction of the run completed, 0 through 1. It only
	// ever grows, and reaches 1 exactly when the job completes.
	Progress float64 `json:"progress"`

	// Warnings accumulate across stages on a degraded but successful run.
	Warnings []string   `json:"warnings,omitempty"`
	Error    *ErrorInfo `json:"error,omitempty"`

	Record    *trial.CanonicalRecord     `json:"record,omitempty"`
	Insights  *analysis.InsightSections  `json:"insights,omitempty"`
	Artifacts []artifacts.Artifact       `json:"artifacts,omitempty"`
}

func (j *Job) clone() *Job {
	cp := *j
	cp.Warnings = append([]string(nil), j.Warnings...)
	cp.Artifacts = append([]artifacts.Artifact(nil), j.Artifacts...)
	if j.Error != nil {
		e := *j.Error
		cp.Error = &e
	}
	if j.Record != nil {
		r := *j.Record
		cp.Record = &r
	}
	if j.Insights != nil {
		in := *j.Insights
		cp.Insights = &in
	}
	return &cp
}
