// Package processor sends question chunks and diagnostic samples to the
// language service under a shared rate and concurrency discipline.
package processor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/examparser/internal/ai"
	"github.com/local/examparser/internal/errs"
	"github.com/local/examparser/internal/limiter"
	"github.com/local/examparser/internal/metrics"
)

// Options configures one Dispatcher.
type Options struct {
	Name        string
	RPM         int
	RatePeriod  time.Duration // window for RPM; one minute when zero
	Concurrency int
	MaxRetries  int
	BaseDelay   time.Duration
	Timeout     time.Duration
}

// Dispatcher admits calls through a rate gate and a concurrency gate and
// retries failures by kind.
type Dispatcher struct {
	name       string
	client     ai.Client
	rate       *limiter.RateGate
	gate       *limiter.Gate
	maxRetries int
	baseDelay  time.Duration
	timeout    time.Duration
}

// NewDispatcher builds a Dispatcher around client.
func NewDispatcher(client ai.Client, opts Options) *Dispatcher {
	period := opts.RatePeriod
	if period <= 0 {
		period = time.Minute
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	return &Dispatcher{
		name:       opts.Name,
		client:     client,
		rate:       limiter.NewRateGate(opts.RPM, period),
		gate:       limiter.NewGate(opts.Concurrency),
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.BaseDelay,
		timeout:    opts.Timeout,
	}
}

// Job is one unit of dispatched work.
type Job[T any] struct {
	Label  string
	Prompt string
	// Decode turns the raw response into a result. Untagged errors count
	// as Parse failures.
	Decode func(raw string) (T, error)
}

// Backoff is the sleep after the given failed attempt (1-based).
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base * time.Duration(1<<(attempt-1))
}

// Do runs job until it succeeds, fails with a non-retryable kind, or
// exhausts the attempt budget. The last error is returned.
func Do[T any](ctx context.Context, d *Dispatcher, job Job[T]) (T, error) {
	var zero T
	var lastErr error
	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		out, raw, err := attemptOnce(ctx, d, job)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		kind := errs.KindOf(err)
		if !errs.Retryable(kind) {
			return zero, err
		}
		if attempt == d.maxRetries {
			ev := log.Warn().
				Str("processor", d.name).
				Str("item", job.Label).
				Int("attempt", attempt).
				Int("max_attempts", d.maxRetries).
				Str("kind", kind.String()).
				Err(err)
			if raw != "" {
				ev = ev.Str("response", truncate(raw, 500))
			}
			ev.Msg("giving up")
			break
		}
		delay := Backoff(d.baseDelay, attempt)
		metrics.IncRetry(d.name, kind.String())
		log.Warn().
			Str("processor", d.name).
			Str("item", job.Label).
			Int("attempt", attempt).
			Int("max_attempts", d.maxRetries).
			Str("kind", kind.String()).
			Dur("retry_in", delay).
			Err(err).
			Msg("attempt failed")
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

func attemptOnce[T any](ctx context.Context, d *Dispatcher, job Job[T]) (T, string, error) {
	var zero T
	if err := d.rate.Wait(ctx); err != nil {
		return zero, "", err
	}
	release, err := d.gate.Acquire(ctx)
	if err != nil {
		return zero, "", err
	}
	defer release()

	callCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	raw, err := d.client.Invoke(callCtx, job.Prompt)
	if err != nil {
		if errs.KindOf(err) == errs.Unknown && ctx.Err() == nil {
			err = errs.E(errs.Transport, "invoke", err)
		}
		return zero, "", err
	}
	out, err := job.Decode(raw)
	if err != nil {
		if errs.KindOf(err) == errs.Unknown {
			err = errs.E(errs.Parse, "decode", err)
		}
		return zero, raw, err
	}
	return out, raw, nil
}

// Dispatch runs every job concurrently and returns the successful results
// in submission order. Failed jobs are dropped.
func Dispatch[T any](ctx context.Context, d *Dispatcher, jobs []Job[T]) []T {
	type slot struct {
		v  T
		ok bool
	}
	slots := make([]slot, len(jobs))
	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job Job[T]) {
			defer wg.Done()
			v, err := Do(ctx, d, job)
			if err != nil {
				metrics.IncProcessed(d.name, "dropped")
				return
			}
			metrics.IncProcessed(d.name, "success")
			slots[i] = slot{v: v, ok: true}
		}(i, job)
	}
	wg.Wait()

	out := make([]T, 0, len(jobs))
	for _, s := range slots {
		if s.ok {
			out = append(out, s.v)
		}
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
