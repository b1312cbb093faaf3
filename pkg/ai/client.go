package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	apperrors "github.com/ripixel/fitglue-vision/pkg/errors"
)

// ClientOptions configures concurrency, spacing and retry behaviour.
type ClientOptions struct {
	MaxConcurrent  int           // In-flight request ceiling, process wide
	RequestSpacing time.Duration // Minimum gap between dispatches; 0 disables
	MaxRetries     int           // Total attempts, including the first
	BaseBackoff    time.Duration // Delay after the first failed attempt
	Timeout        time.Duration // Per-attempt deadline
	Jitter         bool          // Add up to 50% random delay to each backoff
}

func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		MaxConcurrent:  5,
		RequestSpacing: time.Second,
		MaxRetries:     3,
		BaseBackoff:    time.Second,
		Timeout:        30 * time.Second,
		Jitter:         true,
	}
}

// AttemptObserver is notified after every attempt, possibly from many goroutines.
// It must not block.
type AttemptObserver func(backend string, attempt int, elapsed time.Duration, err error)

// Client adds bounded concurrency, dispatch spacing and retries to a Generator.
// One Client is shared by every extraction in the process.
type Client struct {
	gen     Generator
	opts    ClientOptions
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	logger  *slog.Logger

	observe AttemptObserver
	sleep   func(ctx context.Context, d time.Duration) error
	jitter  func(d time.Duration) time.Duration
}

func NewClient(gen Generator, opts ClientOptions, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultClientOptions()
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = def.MaxConcurrent
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = def.MaxRetries
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = def.BaseBackoff
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}

	limit := rate.Inf
	if opts.RequestSpacing > 0 {
		limit = rate.Every(opts.RequestSpacing)
	}

	return &Client{
		gen:     gen,
		opts:    opts,
		sem:     semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With("component", "ai-client", "backend", gen.Name()),
		sleep:   sleepCtx,
		jitter:  halfJitter,
	}
}

// OnAttempt registers an observer for per-attempt telemetry.
func (c *Client) OnAttempt(fn AttemptObserver) {
	c.observe = fn
}

// Backend returns the wrapped generator's name.
func (c *Client) Backend() string {
	return c.gen.Name()
}

// BackoffDelay returns base * 2^(attempt-1) for attempt >= 1.
func BackoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base * time.Duration(1<<uint(attempt-1))
}

// Generate sends parts to the backend, retrying classified transient failures.
// Non-retryable failures return immediately. Exhausting all attempts returns
// an ai_service error carrying the last underlying error.
func (c *Client) Generate(ctx context.Context, parts []Part, cfg SamplingConfig) (*Response, error) {
	var lastErr error

	for attempt := 1; attempt <= c.opts.MaxRetries; attempt++ {
		resp, err := c.attempt(ctx, attempt, parts, cfg)
		if err == nil {
			resp.Attempts = attempt
			if attempt > 1 {
				c.logger.Info("AI call succeeded after retry", "attempt", attempt)
			}
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, apperrors.Wrap(ctx.Err(), apperrors.KindAIService, "ai call cancelled").
				WithRetryCount(attempt)
		}

		class := Classify(err)
		if !class.Retryable() {
			c.logger.Warn("AI call failed with non-retryable error", "attempt", attempt, "class", class, "error", err)
			return nil, apperrors.ErrAIRejected.WithCause(err).
				WithRetryCount(attempt).
				WithMetadata("class", string(class))
		}

		if attempt == c.opts.MaxRetries {
			break
		}

		delay := BackoffDelay(c.opts.BaseBackoff, attempt)
		if c.opts.Jitter {
			delay += c.jitter(delay)
		}
		c.logger.Warn("AI call failed, backing off",
			"attempt", attempt,
			"max_attempts", c.opts.MaxRetries,
			"class", class,
			"delay_ms", delay.Milliseconds(),
			"error", err)

		if err := c.sleep(ctx, delay); err != nil {
			return nil, apperrors.Wrap(err, apperrors.KindAIService, "ai call cancelled during backoff").
				WithRetryCount(attempt)
		}
	}

	c.logger.Error("AI call retries exhausted", "attempts", c.opts.MaxRetries, "error", lastErr)
	return nil, apperrors.ErrAIRetriesExhausted.WithCause(lastErr).
		WithRetryCount(c.opts.MaxRetries).
		WithMetadata("class", string(Classify(lastErr)))
}

// attempt performs exactly one call while holding a concurrency slot.
// The slot is released on every exit path.
func (c *Client) attempt(ctx context.Context, n int, parts []Part, cfg SamplingConfig) (*Response, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.gen.Generate(callCtx, parts, cfg)
	if err == nil && resp == nil {
		err = EmptyResponse(c.gen.Name(), TerminationUnspecified, "backend returned nil response")
	}
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		err = &TransportError{
			Class:   ClassTimeout,
			Backend: c.gen.Name(),
			Message: fmt.Sprintf("no response within %s", c.opts.Timeout),
			Err:     err,
		}
	}

	if c.observe != nil {
		c.observe(c.gen.Name(), n, time.Since(start), err)
	}
	return resp, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func halfJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(d)/2 + 1))
}
