// Package extraction calls the structured-extraction service once per text
// chunk. The service speaks the OpenAI-compatible chat-completions protocol
// (the deployment this was built against runs on Cerebras), so the client is
// plain net/http rather than a vendor SDK.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joelkehle/clinical-copilot/internal/retry"
	"github.com/joelkehle/clinical-copilot/internal/trial"
)

const (
	defaultBaseURL = "https://api.cerebras.ai/v1"
	defaultModel   = "llama3.1-8b"
	defaultTimeout = 30 * time.Second
)

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	Policy  retry.Policy
}

type Client struct {
	hc     *http.Client
	url    string
	apiKey string
	model  string
	policy retry.Policy
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("extraction API key not configured")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy = retry.NewPolicy(3, time.Second)
	}
	return &Client{
		hc:     &http.Client{Timeout: cfg.Timeout},
		url:    strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		policy: cfg.Policy,
	}, nil
}

func NewClientFromEnv() (*Client, error) {
	return NewClient(Config{
		BaseURL: os.Getenv("EXTRACTION_BASE_URL"),
		APIKey:  os.Getenv("EXTRACTION_API_KEY"),
		Model:   os.Getenv("EXTRACTION_MODEL"),
	})
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Extract sends one chunk to the extraction service and parses the response
// into a partial record. Fields missing from the response stay absent; a
// response yielding zero resolvable fields is still a success, because the
// merge downstream must not lose other chunks' values. Only an exhausted
// retry budget or a permanently rejected request surfaces as an error.
func (c *Client) Extract(ctx context.Context, chunk trial.TextChunk) (trial.PartialRecord, error) {
	var content string
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		var callErr error
		content, callErr = c.complete(ctx, buildPrompt(chunk))
		return callErr
	})
	if err != nil {
		return trial.PartialRecord{}, err
	}
	return parsePartialRecord(content, chunk.Text), nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.1,
		MaxTokens:   2000,
	})
	if err != nil {
		return "", retry.Permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", retry.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	blob, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("extraction service status %d: %s", resp.StatusCode, firstLine(blob))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", err
		}
		return "", retry.Permanent(err)
	}
	var parsed chatResponse
	if err := json.Unmarshal(blob, &parsed); err != nil {
		return "", retry.Permanent(fmt.Errorf("malformed extraction service envelope: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return "", retry.Permanent(errors.New("extraction service returned no choices"))
	}
	return parsed.Choices[0].Message.Content, nil
}

// parsePartialRecord turns the model output into a partial record. When the
// output is not the requested JSON, the heuristic text extractor over the
// chunk itself is the fallback, so one chatty model response does not fail
// the whole chunk.
func parsePartialRecord(content, chunkText string) trial.PartialRecord {
	clean := stripCodeFences(content)
	if obj := embeddedObject(clean); obj != "" {
		var rec trial.PartialRecord
		if err := json.Unmarshal([]byte(obj), &rec); err == nil {
			return rec
		}
	}
	return heuristicExtract(chunkText)
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if parts := strings.SplitN(s, "\n", 2); len(parts) == 2 {
			s = parts[1]
		}
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

// embeddedObject extracts the outermost JSON object from text that may carry
// prose around it.
func embeddedObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func firstLine(blob []byte) string {
	line := strings.SplitN(strings.TrimSpace(string(blob)), "\n", 2)[0]
	if len(line) > 200 {
		line = line[:200]
	}
	return line
}
