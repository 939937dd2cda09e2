package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/joelkehle/clinical-copilot/internal/analysis"
	"github.com/joelkehle/clinical-copilot/internal/artifacts"
	"github.com/joelkehle/clinical-copilot/internal/doctext"
	"github.com/joelkehle/clinical-copilot/internal/report"
	"github.com/joelkehle/clinical-copilot/internal/trial"
	"github.com/joelkehle/clinical-copilot/internal/viz"
)

// ErrExtractionTotalFailure means no chunk produced a partial record, so
// there is nothing to merge or analyze.
var ErrExtractionTotalFailure = errors.New("extraction failed for every chunk")

type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Extractor turns one text chunk into a partial record.
type Extractor interface {
	Extract(ctx context.Context, chunk trial.TextChunk) (trial.PartialRecord, error)
}

// Analyzer produces the raw insight response for a merged record.
type Analyzer interface {
	Analyze(ctx context.Context, record trial.CanonicalRecord) (string, error)
}

const DefaultParallelism = 4

// stageProgress marks the fraction of the run completed when each stage
// begins. Extraction fills the span up to merging chunk by chunk; completion
// sets 1.
var stageProgress = map[Status]float64{
	StatusExtracting: 0.10,
	StatusMerging:    0.60,
	StatusAnalyzing:  0.70,
	StatusRendering:  0.85,
}

type Options struct {
	Docs        doctext.Extractor
	Extractor   Extractor
	Analyzer    Analyzer
	Renderer    viz.Renderer
	Store       *Store
	Artifacts   *artifacts.Store
	ChunkOpts   trial.ChunkOptions
	Parallelism int
	Logger      *log.Logger
}

type Orchestrator struct {
	docs        doctext.Extractor
	extractor   Extractor
	analyzer    Analyzer
	renderer    viz.Renderer
	store       *Store
	artifacts   *artifacts.Store
	chunkOpts   trial.ChunkOptions
	parallelism int
	logger      *log.Logger
	tracer      trace.Tracer
}

func New(opts Options) *Orchestrator {
	if opts.Docs == nil {
		opts.Docs = doctext.PlainText{}
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultParallelism
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Orchestrator{
		docs:        opts.Docs,
		extractor:   opts.Extractor,
		analyzer:    opts.Analyzer,
		renderer:    opts.Renderer,
		store:       opts.Store,
		artifacts:   opts.Artifacts,
		chunkOpts:   opts.ChunkOpts,
		parallelism: opts.Parallelism,
		logger:      opts.Logger,
		tracer:      otel.Tracer("clinical-copilot/pipeline"),
	}
}

// Submit validates the document synchronously, registers a job, and processes
// it in the background. Format errors are reported to the caller directly and
// never create a job.
func (o *Orchestrator) Submit(ctx context.Context, doc []byte) (string, error) {
	text, err := o.docs.ExtractText(doc)
	if err != nil {
		return "", err
	}
	text = trial.NormalizeText(text)
	if text == "" {
		return "", trial.ErrEmptyInput
	}

	job := o.store.Create()
	go func() {
		if err := o.Process(context.WithoutCancel(ctx), job.ID, text); err != nil {
			o.logger.Printf("job %s failed: %v", job.ID, err)
		}
	}()
	return job.ID, nil
}

// Process runs every stage for one job. The returned error mirrors the
// job's failure record; a degraded run returns nil.
func (o *Orchestrator) Process(ctx context.Context, jobID, text string) error {
	ctx, span := o.tracer.Start(ctx, "pipeline.process",
		trace.WithAttributes(attribute.String("job.id", jobID)))
	defer span.End()

	chunks, err := o.chunkStage(ctx, jobID, text)
	if err != nil {
		return o.fail(jobID, "chunking", err)
	}

	partials, failed, err := o.extractStage(ctx, jobID, chunks)
	if err != nil {
		return o.fail(jobID, "extraction", err)
	}

	record := o.mergeStage(ctx, jobID, partials)

	insights := o.analyzeStage(ctx, jobID, record)

	o.renderStage(ctx, jobID, record, insights)

	if err := o.store.Update(jobID, func(j *Job) {
		j.Status = StatusCompleted
		j.ChunksFailed = failed
		j.Progress = 1
	}); err != nil {
		return err
	}
	o.logger.Printf("job %s completed (%d/%d chunks, %d warnings)",
		jobID, len(chunks)-failed, len(chunks), len(o.warnings(jobID)))
	return nil
}

func (o *Orchestrator) chunkStage(ctx context.Context, jobID, text string) ([]trial.TextChunk, error) {
	_, span := o.tracer.Start(ctx, "pipeline.chunk")
	defer span.End()

	if err := o.setStatus(jobID, StatusExtracting); err != nil {
		return nil, err
	}
	chunks, err := trial.Chunk(text, o.chunkOpts)
	if err != nil {
		return nil, err
	}
	if err := o.store.Update(jobID, func(j *Job) { j.ChunksTotal = len(chunks) }); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("chunks", len(chunks)))
	return chunks, nil
}

// extractStage fans chunk extraction out over a bounded worker set. Results
// land in an index-keyed slice so merge order never depends on completion
// order. Individual chunk failures degrade the run; only a full wipeout is
// fatal.
func (o *Orchestrator) extractStage(ctx context.Context, jobID string, chunks []trial.TextChunk) ([]trial.PartialRecord, int, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.extract")
	defer span.End()

	results := make([]*trial.PartialRecord, len(chunks))
	errs := make([]error, len(chunks))

	sem := make(chan struct{}, o.parallelism)
	var wg sync.WaitGroup
	var done atomic.Int64
	for i, chunk := range chunks {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, chunk trial.TextChunk) {
			defer wg.Done()
			defer func() { <-sem }()
			partial, err := o.extractor.Extract(ctx, chunk)
			if err != nil {
				errs[i] = err
			} else {
				results[i] = &partial
			}
			o.advanceExtractionProgress(jobID, int(done.Add(1)), len(chunks))
		}(i, chunk)
	}
	wg.Wait()

	var partials []trial.PartialRecord
	failed := 0
	for i := range chunks {
		if errs[i] != nil {
			failed++
			o.warn(jobID, fmt.Sprintf("extraction: chunk %d failed: %v", i, errs[i]))
			continue
		}
		partials = append(partials, *results[i])
	}
	span.SetAttributes(attribute.Int("chunks.failed", failed))
	if len(partials) == 0 {
		return nil, failed, ErrExtractionTotalFailure
	}
	return partials, failed, nil
}

// advanceExtractionProgress fills the span between the extracting and merging
// marks as chunks finish. Progress never moves backwards.
func (o *Orchestrator) advanceExtractionProgress(jobID string, done, total int) {
	if total == 0 {
		return
	}
	span := stageProgress[StatusMerging] - stageProgress[StatusExtracting]
	p := stageProgress[StatusExtracting] + span*float64(done)/float64(total)
	_ = o.store.Update(jobID, func(j *Job) {
		if p > j.Progress {
			j.Progress = p
		}
	})
}

func (o *Orchestrator) mergeStage(ctx context.Context, jobID string, partials []trial.PartialRecord) trial.CanonicalRecord {
	_, span := o.tracer.Start(ctx, "pipeline.merge")
	defer span.End()

	o.setStatus(jobID, StatusMerging)
	record := trial.Merge(partials)
	_ = o.store.Update(jobID, func(j *Job) { j.Record = &record })
	return record
}

// analyzeStage degrades rather than fails: when the analysis call cannot be
// completed the run continues with empty insight sections.
func (o *Orchestrator) analyzeStage(ctx context.Context, jobID string, record trial.CanonicalRecord) analysis.InsightSections {
	ctx, span := o.tracer.Start(ctx, "pipeline.analyze")
	defer span.End()

	o.setStatus(jobID, StatusAnalyzing)
	raw, err := o.analyzer.Analyze(ctx, record)
	if err != nil {
		o.warn(jobID, fmt.Sprintf("analysis: unavailable, continuing with extraction results only: %v", err))
		return analysis.InsightSections{}
	}
	sections := analysis.ParseInsights(raw)
	sections.Hints = analysis.ExtractChartHints(raw)
	_ = o.store.Update(jobID, func(j *Job) { j.Insights = &sections })
	return sections
}

// renderStage writes every artifact the run can still produce. Failures here
// are always per-item warnings; the job completes regardless.
func (o *Orchestrator) renderStage(ctx context.Context, jobID string, record trial.CanonicalRecord, insights analysis.InsightSections) {
	ctx, span := o.tracer.Start(ctx, "pipeline.render")
	defer span.End()

	o.setStatus(jobID, StatusRendering)

	o.writeArtifact(jobID, func() (artifacts.Artifact, error) {
		return o.artifacts.WriteJSON(jobID, artifacts.KindRecordJSON, record)
	})
	o.writeArtifact(jobID, func() (artifacts.Artifact, error) {
		return o.artifacts.WriteRecordCSV(jobID, record)
	})
	o.writeArtifact(jobID, func() (artifacts.Artifact, error) {
		return o.artifacts.WriteJSON(jobID, artifacts.KindAnalysisJSON, insights)
	})

	reports := report.Compose(record, insights)
	o.writeArtifact(jobID, func() (artifacts.Artifact, error) {
		return o.artifacts.WriteText(jobID, artifacts.KindReportText, reports.FullReport)
	})
	if html, err := report.RenderHTML("Clinical Trial Analysis", reports.FullReport); err != nil {
		o.warn(jobID, fmt.Sprintf("rendering: html report skipped: %v", err))
	} else {
		o.writeArtifact(jobID, func() (artifacts.Artifact, error) {
			return o.artifacts.WriteText(jobID, artifacts.KindReportHTML, html)
		})
	}
	o.writeArtifact(jobID, func() (artifacts.Artifact, error) {
		return o.artifacts.WriteText(jobID, artifacts.KindExecutiveSummary, reports.ExecutiveSummary)
	})
	o.writeArtifact(jobID, func() (artifacts.Artifact, error) {
		return o.artifacts.WriteText(jobID, artifacts.KindFollowUp, reports.FollowUp)
	})

	specs, skips := viz.Plan(record, insights.VisualizationRecommendations, insights.Hints)
	for _, skip := range skips {
		o.warn(jobID, "rendering: "+skip.String())
	}
	o.renderCharts(ctx, jobID, specs)
}

// chartSlot assigns each planned chart to its output slot. Extra recommended
// charts beyond the fixed slots still contribute to the dashboard panels but
// are not persisted on their own.
func chartSlot(spec trial.ChartSpec, used map[artifacts.Kind]bool) (artifacts.Kind, bool) {
	var kind artifacts.Kind
	switch spec.Kind {
	case trial.ChartBar:
		kind = artifacts.KindChartEfficacy
	case trial.ChartPie:
		kind = artifacts.KindChartSafety
	case trial.ChartLine, trial.ChartTimeline:
		kind = artifacts.KindChartTimeline
	case trial.ChartDashboard:
		kind = artifacts.KindChartDashboard
	default:
		return "", false
	}
	if used[kind] {
		return "", false
	}
	return kind, true
}

func (o *Orchestrator) renderCharts(ctx context.Context, jobID string, specs []trial.ChartSpec) {
	if o.renderer == nil {
		if len(specs) > 0 {
			o.warn(jobID, "rendering: no chart renderer configured, charts skipped")
		}
		return
	}
	used := map[artifacts.Kind]bool{}
	for _, spec := range specs {
		slot, ok := chartSlot(spec, used)
		if !ok {
			o.logger.Printf("job %s: no output slot for %s chart %q", jobID, spec.Kind, spec.Title)
			continue
		}
		png, err := o.renderer.Render(ctx, spec)
		if err != nil {
			o.warn(jobID, fmt.Sprintf("rendering: %s skipped: %v", slot, err))
			continue
		}
		used[slot] = true
		o.writeArtifact(jobID, func() (artifacts.Artifact, error) {
			return o.artifacts.WriteImage(jobID, slot, png)
		})
	}
}

func (o *Orchestrator) writeArtifact(jobID string, write func() (artifacts.Artifact, error)) {
	a, err := write()
	if err != nil {
		o.warn(jobID, fmt.Sprintf("rendering: artifact write failed: %v", err))
		return
	}
	_ = o.store.Update(jobID, func(j *Job) { j.Artifacts = append(j.Artifacts, a) })
}

func (o *Orchestrator) setStatus(jobID string, status Status) error {
	return o.store.Update(jobID, func(j *Job) {
		j.Status = status
		if p, ok := stageProgress[status]; ok && p > j.Progress {
			j.Progress = p
		}
	})
}

func (o *Orchestrator) warn(jobID, message string) {
	o.logger.Printf("job %s: %s", jobID, message)
	_ = o.store.Update(jobID, func(j *Job) { j.Warnings = append(j.Warnings, message) })
}

func (o *Orchestrator) warnings(jobID string) []string {
	job, _ := o.store.Get(jobID)
	return job.Warnings
}

func (o *Orchestrator) fail(jobID, stage string, err error) error {
	serr := &StageError{Stage: stage, Err: err}
	_ = o.store.Update(jobID, func(j *Job) {
		j.Status = StatusFailed
		j.Error = &ErrorInfo{Stage: stage, Reason: err.Error()}
	})
	return serr
}
