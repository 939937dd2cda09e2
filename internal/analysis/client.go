// Package analysis invokes the analysis service once per job with the merged
// canonical record and parses its free-text response into addressable
// sections.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joelkehle/clinical-copilot/internal/retry"
	"github.com/joelkehle/clinical-copilot/internal/trial"
)

const systemPrompt = "You are a clinical research expert analyzing structured clinical trial data. " +
	"You assess study design, statistical significance, clinical relevance, safety profile, and limitations. " +
	"You acknowledge missing data explicitly and never invent values."

const DefaultModel = string(anthropic.ModelClaudeSonnet4_20250514)

type LLMCaller interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type AnthropicCaller struct {
	messages AnthropicMessager
	model    string
}

type AnthropicClientCreator func(apiKey string) AnthropicMessager

func defaultAnthropicCreator(apiKey string) AnthropicMessager {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &c.Messages
}

var newAnthropicClient AnthropicClientCreator = defaultAnthropicCreator

func NewAnthropicCaller(apiKey, model string) (*AnthropicCaller, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("anthropic API key not configured")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	return &AnthropicCaller{messages: newAnthropicClient(apiKey), model: model}, nil
}

func NewAnthropicCallerFromEnv() (*AnthropicCaller, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("ANTHROPIC_API_KEY not configured")
	}
	return NewAnthropicCaller(apiKey, os.Getenv("ANALYSIS_LLM_MODEL"))
}

func (a *AnthropicCaller) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   4000,
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(0.3),
	})
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String(), nil
}

type Client struct {
	caller LLMCaller
	policy retry.Policy
}

func NewClient(caller LLMCaller, policy retry.Policy) *Client {
	if policy.MaxAttempts == 0 {
		policy = retry.NewPolicy(3, time.Second)
	}
	return &Client{caller: caller, policy: policy}
}

// Analyze serializes the canonical record into one prompt and returns the raw
// insight text. Unresolved fields are rendered as an explicit "Not available"
// token so the narrative can acknowledge missing data instead of
// hallucinating around it. Transient failures are retried under the same
// policy as extraction calls.
func (c *Client) Analyze(ctx context.Context, record trial.CanonicalRecord) (string, error) {
	prompt := buildAnalysisPrompt(record)
	var raw string
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		var callErr error
		raw, callErr = c.caller.GenerateText(ctx, prompt)
		if callErr != nil {
			return callErr
		}
		if strings.TrimSpace(raw) == "" {
			return retry.Permanent(errors.New("analysis service returned empty response"))
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return raw, nil
}

func buildAnalysisPrompt(record trial.CanonicalRecord) string {
	var b strings.Builder
	b.WriteString("Analyze the following clinical trial record. Provide:\n\n")
	b.WriteString("1. A comprehensive clinical analysis: study design assessment, statistical significance of results, clinical relevance, safety profile, limitations and potential biases, and recommendations for practice.\n")
	b.WriteString("2. Visualization recommendations: for each suggested chart give the chart type (bar, pie, line, timeline), the data to plot, and the insight it reveals.\n\n")
	b.WriteString("Clinical Trial Record:\n")
	for _, name := range trial.FieldNames {
		fmt.Fprintf(&b, "- %s: %s\n", name, record.Field(name).Display())
	}
	b.WriteString("\nStructure your response exactly as:\n")
	b.WriteString("## Clinical Analysis\n[your analysis]\n\n")
	b.WriteString("## Visualization Recommendations\n[your chart recommendations]\n\n")
	b.WriteString("At the end, append a fenced JSON block:\n")
	b.WriteString("```json\n{\"visualizations\": [{\"type\": \"bar\", \"title\": \"...\", \"data_source\": \"results_summary\"}]}\n```\n")
	return b.String()
}
