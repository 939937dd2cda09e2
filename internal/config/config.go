// Package config loads service configuration from an optional YAML file and
// applies environment overrides on top.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv       = "CLINICAL_COPILOT_CONFIG"
	listenAddrEnv       = "LISTEN_ADDR"
	artifactRootEnv     = "ARTIFACT_ROOT"
	catalogPathEnv      = "CATALOG_PATH"
	extractionKeyEnv    = "EXTRACTION_API_KEY"
	extractionURLEnv    = "EXTRACTION_BASE_URL"
	extractionModelEnv  = "EXTRACTION_MODEL"
	anthropicKeyEnv     = "ANTHROPIC_API_KEY"
	analysisModelEnv    = "ANALYSIS_LLM_MODEL"
	otlpEndpointEnv     = "OTEL_EXPORTER_OTLP_ENDPOINT"
	chromePathEnv       = "CHROME_PATH"
	parallelismEnvName  = "EXTRACTION_PARALLELISM"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Artifacts  ArtifactsConfig  `yaml:"artifacts"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Retry      RetryConfig      `yaml:"retry"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Rendering  RenderingConfig  `yaml:"rendering"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listenAddr"`
}

type ArtifactsConfig struct {
	Root        string `yaml:"root"`
	CatalogPath string `yaml:"catalogPath"`
}

type ExtractionConfig struct {
	BaseURL        string `yaml:"baseUrl"`
	Model          string `yaml:"model"`
	APIKey         string `yaml:"apiKey"`
	Parallelism    int    `yaml:"parallelism"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

// RetryConfig applies to both LLM clients.
type RetryConfig struct {
	MaxAttempts   int `yaml:"maxAttempts"`
	BackoffBaseMS int `yaml:"backoffBaseMs"`
}

type AnalysisConfig struct {
	Model  string `yaml:"model"`
	APIKey string `yaml:"apiKey"`
}

type ChunkingConfig struct {
	MaxChars      int `yaml:"maxChars"`
	OverlapChars  int `yaml:"overlapChars"`
	MinChunkChars int `yaml:"minChunkChars"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlpEndpoint"`
}

type RenderingConfig struct {
	ChromePath string `yaml:"chromePath"`
}

// Load reads YAML configuration (if present) and applies environment
// overrides.
func Load() (Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	setString(&c.Server.ListenAddr, listenAddrEnv)
	setString(&c.Artifacts.Root, artifactRootEnv)
	setString(&c.Artifacts.CatalogPath, catalogPathEnv)
	setString(&c.Extraction.APIKey, extractionKeyEnv)
	setString(&c.Extraction.BaseURL, extractionURLEnv)
	setString(&c.Extraction.Model, extractionModelEnv)
	setString(&c.Analysis.APIKey, anthropicKeyEnv)
	setString(&c.Analysis.Model, analysisModelEnv)
	setString(&c.Telemetry.OTLPEndpoint, otlpEndpointEnv)
	setString(&c.Rendering.ChromePath, chromePathEnv)
	if v := os.Getenv(parallelismEnvName); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n > 0 {
			c.Extraction.Parallelism = n
		}
	}
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func defaultConfig() Config {
	return Config{
		Server:    ServerConfig{ListenAddr: ":8080"},
		Artifacts: ArtifactsConfig{Root: "output", CatalogPath: "output/catalog.db"},
		Extraction: ExtractionConfig{
			BaseURL:        "https://api.cerebras.ai/v1",
			Model:          "llama3.1-8b",
			Parallelism:    4,
			TimeoutSeconds: 30,
		},
		Analysis: AnalysisConfig{},
		Chunking: ChunkingConfig{MaxChars: 10000, OverlapChars: 500, MinChunkChars: 200},
		Retry:    RetryConfig{MaxAttempts: 3, BackoffBaseMS: 1000},
	}
}
