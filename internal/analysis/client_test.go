package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/joelkehle/clinical-copilot/internal/retry"
	"github.com/joelkehle/clinical-copilot/internal/trial"
)

type scriptedCaller struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (s *scriptedCaller) GenerateText(_ context.Context, prompt string) (string, error) {
	i := s.calls
	s.calls++
	s.prompts = append(s.prompts, prompt)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	var resp string
	if i < len(s.responses) {
		resp = s.responses[i]
	}
	return resp, err
}

func fastPolicy(attempts int) retry.Policy {
	return retry.NewPolicy(attempts, time.Millisecond)
}

func TestAnalyzeRendersUnresolvedAsNotAvailable(t *testing.T) {
	var rec trial.CanonicalRecord
	rec.Title.Text = "Trial of Agent X"

	caller := &scriptedCaller{responses: []string{"## Clinical Analysis\nok"}}
	c := NewClient(caller, fastPolicy(1))
	if _, err := c.Analyze(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	prompt := caller.prompts[0]
	if !strings.Contains(prompt, "title: Trial of Agent X") {
		t.Fatalf("prompt missing title: %s", prompt)
	}
	if !strings.Contains(prompt, "adverse_events: "+trial.NotAvailable) {
		t.Fatalf("unresolved field must render as %q:\n%s", trial.NotAvailable, prompt)
	}
}

func TestAnalyzeRetriesTransientFailure(t *testing.T) {
	caller := &scriptedCaller{
		errs:      []error{errors.New("status 529 overloaded"), nil},
		responses: []string{"", "analysis text"},
	}
	c := NewClient(caller, fastPolicy(3))
	got, err := c.Analyze(context.Background(), trial.CanonicalRecord{})
	if err != nil {
		t.Fatal(err)
	}
	if got != "analysis text" || caller.calls != 2 {
		t.Fatalf("expected recovery on attempt 2, got %q after %d calls", got, caller.calls)
	}
}

func TestAnalyzeEmptyResponseIsPermanent(t *testing.T) {
	caller := &scriptedCaller{responses: []string{"", "", ""}}
	c := NewClient(caller, fastPolicy(3))
	if _, err := c.Analyze(context.Background(), trial.CanonicalRecord{}); err == nil {
		t.Fatal("expected error")
	}
	if caller.calls != 1 {
		t.Fatalf("empty response must not be retried, got %d calls", caller.calls)
	}
}

func TestAnalyzeExhaustsRetries(t *testing.T) {
	caller := &scriptedCaller{errs: []error{
		errors.New("timeout"), errors.New("timeout"), errors.New("timeout"),
	}}
	c := NewClient(caller, fastPolicy(3))
	if _, err := c.Analyze(context.Background(), trial.CanonicalRecord{}); err == nil {
		t.Fatal("expected exhausted retries")
	}
	if caller.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", caller.calls)
	}
}

func TestNewAnthropicCallerFromEnvRequiresKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	if _, err := NewAnthropicCallerFromEnv(); err == nil {
		t.Fatal("expected error without API key")
	}
}
