package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/local/examparser/internal/errs"
)

// Client sends a single prompt to a language service and returns its text.
type Client interface {
	Name() string
	Invoke(ctx context.Context, prompt string) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, prompt string) (string, error)

func (f ClientFunc) Name() string { return "func" }

func (f ClientFunc) Invoke(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

var (
	ErrRateLimited = errors.New("rate_limited")
	ErrEmpty       = errors.New("empty response")
)

func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }

// Result labels a call outcome for metrics and logs.
func Result(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsRateLimited(err):
		return "rate_limited"
	case isTimeout(err):
		return "timeout"
	case isTransient(err):
		return "transient"
	default:
		return "error"
	}
}

// classify tags a provider failure. Everything short of caller cancellation
// is a transport failure and therefore retryable.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if isRateLimit(err) && !errors.Is(err, ErrRateLimited) {
		err = errors.Join(ErrRateLimited, err)
	}
	return errs.E(errs.Transport, op, err)
}

func isRateLimit(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "429") ||
		strings.Contains(s, "rate limit") ||
		strings.Contains(s, "resource_exhausted") ||
		strings.Contains(s, "resource exhausted") ||
		strings.Contains(s, "quota")
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "timeout") || strings.Contains(s, "deadline exceeded")
}

func isTransient(err error) bool {
	s := strings.ToLower(err.Error())
	for _, code := range []string{"500", "502", "503", "504", "unavailable", "overloaded"} {
		if strings.Contains(s, code) {
			return true
		}
	}
	return strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset") ||
		strings.Contains(s, "network") ||
		strings.Contains(s, "eof")
}
