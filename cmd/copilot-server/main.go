package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joelkehle/clinical-copilot/internal/analysis"
	"github.com/joelkehle/clinical-copilot/internal/artifacts"
	"github.com/joelkehle/clinical-copilot/internal/config"
	"github.com/joelkehle/clinical-copilot/internal/extraction"
	"github.com/joelkehle/clinical-copilot/internal/httpapi"
	"github.com/joelkehle/clinical-copilot/internal/pipeline"
	"github.com/joelkehle/clinical-copilot/internal/retry"
	"github.com/joelkehle/clinical-copilot/internal/telemetry"
	"github.com/joelkehle/clinical-copilot/internal/trial"
	"github.com/joelkehle/clinical-copilot/internal/viz"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, "clinical-copilot", cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}

	art, err := artifacts.NewStore(cfg.Artifacts.Root, cfg.Artifacts.CatalogPath)
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

	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: httpapi.NewServer(orch, jobs, art),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("clinical-copilot listening on %s", cfg.Server.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server: %v", err)
	}

	if err := shutdownTracing(context.Background()); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
	log.Println("clinical-copilot stopped")
}
