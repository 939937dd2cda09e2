package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joelkehle/clinical-copilot/internal/analysis"
	"github.com/joelkehle/clinical-copilot/internal/artifacts"
	"github.com/joelkehle/clinical-copilot/internal/config"
	"github.com/joelkehle/clinical-copilot/internal/doctext"
	"github.com/joelkehle/clinical-copilot/internal/extraction"
	"github.com/joelkehle/clinical-copilot/internal/pipeline"
	"github.com/joelkehle/clinical-copilot/internal/retry"
	"github.com/joelkehle/clinical-copilot/internal/trial"
	"github.com/joelkehle/clinical-copilot/internal/viz"
)

// copilot processes a single document end to end and prints the artifact
// paths, without running the HTTP service.
func main() {
	in := flag.String("in", "", "path to the clinical trial document")
	out := flag.String("out", "output", "directory for generated artifacts")
	flag.Parse()

	if *in == "" {
		fmt.Fprintln(os.Stderr, "usage: copilot -in document.txt [-out dir]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	doc, err := os.ReadFile(*in)
	if err != nil {
		log.Fatalf("read document: %v", err)
	}
	text, err := doctext.PlainText{}.ExtractText(doc)
	if err != nil {
		log.Fatalf("document: %v", err)
	}
	text = trial.NormalizeText(text)

	art, err := artifacts.NewStore(*out, filepath.Join(*out, "catalog.db"))
	if err != nil {
		log.Fatalf("artifact store: %v", err)
	}
	defer art.Close()

	policy := retry.NewPolicy(cfg.Retry.MaxAttempts, time.Duration(cfg.Retry.BackoffBaseMS)*time.Millisecond)
	extractor, err := extraction.NewClient(extraction.Config{
		BaseURL: cfg.Extraction.BaseURL,
		APIKey:  cfg.Extraction.APIKey,
		Model:   cfg.Extraction.Model,
		Timeout: time.Duration(cfg.Extraction.TimeoutSeconds) * time.Second,
		Policy:  policy,
	})
	if err != nil {
		log.Fatalf("extraction client: %v (set EXTRACTION_API_KEY)", err)
	}
	caller, err := analysis.NewAnthropicCaller(cfg.Analysis.APIKey, cfg.Analysis.Model)
	if err != nil {
		log.Fatalf("analysis client: %v (set ANTHROPIC_API_KEY)", err)
	}

	jobs := pipeline.NewStore()
	orch := pipeline.New(pipeline.Options{
		Extractor: extractor,
		Analyzer:  analysis.NewClient(caller, policy),
		Renderer:  viz.NewChromiumRendererAt(cfg.Rendering.ChromePath),
		Store:     jobs,
		Artifacts: art,
		ChunkOpts: trial.ChunkOptions{
			MaxChars:      cfg.Chunking.MaxChars,
			OverlapChars:  cfg.Chunking.OverlapChars,
			MinChunkChars: cfg.Chunking.MinChunkChars,
		},
		Parallelism: cfg.Extraction.Parallelism,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	job := jobs.Create()
	log.Printf("processing %s (job %s)", *in, job.ID)
	if err := orch.Process(ctx, job.ID, text); err != nil {
		log.Fatalf("pipeline: %v", err)
	}

	result, _ := jobs.Get(job.ID)
	for _, w := range result.Warnings {
		log.Printf("warning: %s", w)
	}
	fmt.Printf("job %s %s\n", result.ID, result.Status)
	for _, a := range result.Artifacts {
		fmt.Printf("  %-20s %s\n", a.Kind, a.Path)
	}
}
