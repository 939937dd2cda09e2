package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func noSleepPolicy(maxAttempts int) (Policy, *[]time.Duration) {
	var slept []time.Duration
	p := NewPolicy(maxAttempts, 100*time.Millisecond)
	p.sleep = func(d time.Duration) { slept = append(slept, d) }
	return p, &slept
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	p, slept := noSleepPolicy(3)
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("status 503 server error")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if len(*slept) != 2 || (*slept)[0] != 100*time.Millisecond || (*slept)[1] != 200*time.Millisecond {
		t.Fatalf("expected doubling backoff, got %v", *slept)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	p, _ := noSleepPolicy(2)
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("connection reset")
	})
	if err == nil || calls != 2 {
		t.Fatalf("expected failure after 2 calls, got err=%v calls=%d", err, calls)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	p, _ := noSleepPolicy(5)
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(fmt.Errorf("malformed request"))
	})
	if err == nil || calls != 1 {
		t.Fatalf("permanent error must not be retried: err=%v calls=%d", err, calls)
	}
	var pe *PermanentError
	if !errors.As(err, &pe) {
		t.Fatalf("permanent marker lost: %v", err)
	}
}

func TestDoStopsOnClientStatus(t *testing.T) {
	p, _ := noSleepPolicy(5)
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("status code: 400 bad request")
	})
	if err == nil || calls != 1 {
		t.Fatalf("4xx must not be retried: err=%v calls=%d", err, calls)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	p, _ := noSleepPolicy(5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Do(ctx, func(context.Context) error { return errors.New("never runs") })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestClassifyTransport(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want Class
	}{
		{context.DeadlineExceeded, ClassTransient},
		{errors.New("429 too many requests"), ClassTransient},
		{errors.New("status 500 upstream error"), ClassTransient},
		{errors.New("status code: 404 not found"), ClassPermanent},
		{errors.New("dial tcp: connection refused"), ClassTransient},
	} {
		if got := ClassifyTransport(tc.err); got != tc.want {
			t.Fatalf("ClassifyTransport(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
