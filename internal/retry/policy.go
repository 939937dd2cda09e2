// Package retry holds the single retry/backoff policy applied to every
// external service call the pipeline makes. Both the extraction and analysis
// clients use it with the same transport classifier, so timeout and transient
// handling cannot drift between call sites.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

type Class int

const (
	// ClassTransient failures (timeouts, rate limits, 5xx) are retried up to
	// the policy bound.
	ClassTransient Class = iota
	// ClassPermanent failures (malformed requests, 4xx, unparseable service
	// envelopes) escalate immediately.
	ClassPermanent
)

// PermanentError marks an error as not worth retrying regardless of what the
// classifier would say about its text.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

type Classifier func(error) Class

// Policy bounds retries of one external call. The zero value is unusable;
// construct with NewPolicy.
type Policy struct {
	MaxAttempts int
	BackoffBase time.Duration
	Classify    Classifier

	// sleep is swapped in tests.
	sleep func(time.Duration)
}

func NewPolicy(maxAttempts int, backoffBase time.Duration) Policy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoffBase <= 0 {
		backoffBase = time.Second
	}
	return Policy{
		MaxAttempts: maxAttempts,
		BackoffBase: backoffBase,
		Classify:    ClassifyTransport,
		sleep:       time.Sleep,
	}
}

// Do runs op until it succeeds, fails permanently, or exhausts the attempt
// bound. Backoff doubles per attempt starting from BackoffBase.
func (p Policy) Do(ctx context.Context, op func(context.Context) error) error {
	classify := p.Classify
	if classify == nil {
		classify = ClassifyTransport
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = op(ctx)
		if err == nil {
			return nil
		}
		var pe *PermanentError
		if errors.As(err, &pe) || classify(err) == ClassPermanent {
			return err
		}
		if attempt < p.MaxAttempts {
			sleep(p.BackoffBase << (attempt - 1))
		}
	}
	return fmt.Errorf("exhausted %d attempts: %w", p.MaxAttempts, err)
}

// ClassifyTransport decides whether a transport error is worth retrying.
// Timeouts and rate limits are transient; explicit 4xx status text is not.
func ClassifyTransport(err error) Class {
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ClassTransient
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
		return ClassTransient
	case strings.Contains(msg, "status code: 5") || strings.Contains(msg, "status 5") || strings.Contains(msg, "server error"):
		return ClassTransient
	case strings.Contains(msg, "status code: 4") || strings.Contains(msg, "status 4"):
		return ClassPermanent
	default:
		return ClassTransient
	}
}
