// Package httpapi exposes the document pipeline over HTTP: submit a
// document, poll job status, fetch results, download artifacts.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/joelkehle/clinical-copilot/internal/artifacts"
	"github.com/joelkehle/clinical-copilot/internal/doctext"
	"github.com/joelkehle/clinical-copilot/internal/pipeline"
	"github.com/joelkehle/clinical-copilot/internal/trial"
)

// MaxDocumentBytes bounds a single submission body.
const MaxDocumentBytes = 10 << 20

// Submitter is the pipeline entry point the server needs.
type Submitter interface {
	Submit(ctx context.Context, doc []byte) (string, error)
}

type Server struct {
	pipe      Submitter
	jobs      *pipeline.Store
	artifacts *artifacts.Store
}

func NewServer(pipe Submitter, jobs *pipeline.Store, art *artifacts.Store) http.Handler {
	s := &Server{pipe: pipe, jobs: jobs, artifacts: art}
	mux := http.NewServeMux()
	mux.HandleFunc("/submit", s.handleSubmit)
	mux.HandleFunc("/analyses", s.handleAnalyses)
	mux.HandleFunc("/status/", s.handleStatus)
	mux.HandleFunc("/results/", s.handleResults)
	mux.HandleFunc("/files/", s.handleFiles)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"ok":    false,
		"error": map[string]any{"message": message},
	})
}

// readDocument accepts either a multipart upload under the "file" field or
// raw document bytes as the request body.
func readDocument(r *http.Request) ([]byte, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(MaxDocumentBytes); err != nil {
			return nil, err
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("multipart field %q: %w", "file", err)
		}
		defer f.Close()
		return io.ReadAll(io.LimitReader(f, MaxDocumentBytes+1))
	}
	return io.ReadAll(io.LimitReader(r.Body, MaxDocumentBytes+1))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	doc, err := readDocument(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	if len(doc) > MaxDocumentBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("document exceeds %d bytes", MaxDocumentBytes))
		return
	}

	jobID, err := s.pipe.Submit(r.Context(), doc)
	if err != nil {
		var dfe *doctext.DocumentFormatError
		switch {
		case errors.As(err, &dfe), errors.Is(err, trial.ErrEmptyInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"ok":     true,
		"job_id": jobID,
		"status": string(pipeline.StatusPending),
	})
}

func (s *Server) handleAnalyses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	jobs := s.jobs.List()
	summaries := make([]map[string]any, 0, len(jobs))
	for _, job := range jobs {
		entry := map[string]any{
			"job_id":       job.ID,
			"status":       string(job.Status),
			"progress":     job.Progress,
			"submitted_at": job.SubmittedAt,
			"updated_at":   job.UpdatedAt,
		}
		if job.Error != nil {
			entry["error"] = job.Error
		}
		summaries = append(summaries, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "jobs": summaries})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	jobID := strings.TrimPrefix(r.URL.Path, "/status/")
	job, ok := s.jobs.Get(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown job")
		return
	}

	payload := map[string]any{
		"ok":            true,
		"job_id":        job.ID,
		"status":        string(job.Status),
		"progress":      job.Progress,
		"submitted_at":  job.SubmittedAt,
		"updated_at":    job.UpdatedAt,
		"chunks_total":  job.ChunksTotal,
		"chunks_failed": job.ChunksFailed,
		"warnings":      job.Warnings,
	}
	if job.Error != nil {
		payload["error"] = job.Error
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	jobID := strings.TrimPrefix(r.URL.Path, "/results/")
	job, ok := s.jobs.Get(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown job")
		return
	}
	if !job.Status.Terminal() {
		writeJSON(w, http.StatusConflict, map[string]any{
			"ok":     false,
			"job_id": job.ID,
			"status": string(job.Status),
			"error":  map[string]any{"message": "results not ready"},
		})
		return
	}
	if job.Status == pipeline.StatusFailed {
		writeJSON(w, http.StatusConflict, map[string]any{
			"ok":     false,
			"job_id": job.ID,
			"status": string(job.Status),
			"error":  job.Error,
		})
		return
	}

	cataloged, err := s.artifacts.List(job.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list artifacts: "+err.Error())
		return
	}
	files := make([]map[string]any, 0, len(cataloged))
	for _, a := range cataloged {
		files = append(files, map[string]any{
			"kind":         string(a.Kind),
			"filename":     a.Filename,
			"content_type": a.ContentType,
			"size_bytes":   a.SizeBytes,
			"url":          fmt.Sprintf("/files/%s/%s", job.ID, a.Kind),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"job_id":   job.ID,
		"status":   string(job.Status),
		"record":   job.Record,
		"insights": job.Insights,
		"warnings": job.Warnings,
		"files":    files,
	})
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/files/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		writeError(w, http.StatusBadRequest, "expected /files/{job_id}/{kind}")
		return
	}
	kind, ok := artifacts.ParseKind(parts[1])
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown artifact kind")
		return
	}
	a, err := s.artifacts.Get(parts[0], kind)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Filename))
	http.ServeFile(w, r, a.Path)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "service": "clinical-copilot"})
}
