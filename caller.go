package remotecall

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

// Caller wraps a RemoteOperation with bounded retries and backoff.
// Authentication and invalid-response failures are retried up to
// MaxAttempts; everything else propagates on first occurrence.
type Caller[T any] struct {
	op         RemoteOperation[T]
	config     *Config
	logger     *slog.Logger
	classifier FailureClassifier
	sleep      SleepFunc
	stats      *callStats
}

// callStats tracks call statistics across invocations of a Caller.
type callStats struct {
	mu              sync.RWMutex
	totalAttempts   int64
	totalRetries    int64
	totalSuccesses  int64
	totalFailures   int64
	lastAttemptTime time.Time
	lastError       error
}

// NewCaller creates a resilient caller around a RemoteOperation.
// It applies the provided options to configure retry behavior.
//
// Example:
//
//	caller := remotecall.NewCaller(
//	    fetchOp,
//	    remotecall.WithMaxAttempts(3),
//	    remotecall.WithExponentialBackoff(time.Second, 30*time.Second),
//	)
func NewCaller[T any](op RemoteOperation[T], opts ...Option) *Caller[T] {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}

	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	if config.Classifier == nil {
		config.Classifier = DefaultClassifier()
	}

	if config.Sleep == nil {
		config.Sleep = sleepContext
	}

	return &Caller[T]{
		op:         op,
		config:     config,
		logger:     config.Logger,
		classifier: config.Classifier,
		sleep:      config.Sleep,
		stats:      &callStats{},
	}
}

// Call invokes the operation, retrying classified failures with backoff.
// On success the operation's value is returned unchanged. When a retryable
// failure survives every attempt, the result is an ExhaustedError carrying
// the failure kind, the attempt count, and the last cause. Unclassified
// failures are returned as-is after a single invocation.
//
// The wait between attempts is a suspension point: it honors ctx, so a
// caller that cancels the context during backoff gets the context error
// without waiting out the delay.
func (c *Caller[T]) Call(ctx context.Context) (T, error) {
	var zero T

	if c.config.MaxAttempts <= 0 {
		return zero, errors.New("max attempts must be positive")
	}

	// Check the context before the first invocation so an already-canceled
	// caller never reaches the remote endpoint.
	select {
	case <-ctx.Done():
		c.logger.Warn("context already done before call (expected condition)",
			"error", ctx.Err())
		return zero, ctx.Err()
	default:
	}

	backoff := c.backoffStrategy()

	for attempt := 1; ; attempt++ {
		c.stats.mu.Lock()
		c.stats.totalAttempts++
		if attempt > 1 {
			c.stats.totalRetries++
		}
		c.stats.lastAttemptTime = time.Now()
		c.stats.mu.Unlock()

		result, err := c.op.Call(ctx)
		if err == nil {
			if attempt > 1 {
				c.logger.Info("call succeeded after retry",
					"attempts", attempt)
			}
			c.recordSuccess()
			return result, nil
		}

		kind := c.classifier.Classify(err)
		if kind == KindUnclassified {
			c.logger.Debug("non-retryable failure, giving up",
				"error", err,
				"attempts", attempt)
			c.recordFailure(err)
			return zero, err
		}

		if attempt >= c.config.MaxAttempts {
			exhausted := &ExhaustedError{Kind: kind, Attempts: attempt, Err: err}
			c.logger.Warn("call failed after retries",
				"attempts", attempt,
				"kind", kind.String(),
				"error", err)
			c.recordFailure(exhausted)
			return zero, exhausted
		}

		delay, stop := backoff.Next()
		if stop {
			// The strategy refuses further delays; treat as exhaustion.
			exhausted := &ExhaustedError{Kind: kind, Attempts: attempt, Err: err}
			c.recordFailure(exhausted)
			return zero, exhausted
		}

		c.logger.Debug("retrying after failure",
			"attempt", attempt,
			"kind", kind.String(),
			"delay", delay)

		if serr := c.sleep(ctx, delay); serr != nil {
			c.logger.Warn("context done during backoff",
				"attempt", attempt,
				"error", serr)
			c.recordFailure(serr)
			return zero, serr
		}
	}
}

// recordSuccess updates statistics after a successful call.
func (c *Caller[T]) recordSuccess() {
	c.stats.mu.Lock()
	c.stats.totalSuccesses++
	c.stats.mu.Unlock()
}

// recordFailure updates statistics after a terminal failure.
func (c *Caller[T]) recordFailure(err error) {
	c.stats.mu.Lock()
	c.stats.totalFailures++
	c.stats.lastError = err
	c.stats.mu.Unlock()
}

// backoffStrategy builds the delay sequence for one Call invocation.
// Exponential doubles from BaseDelay (1, 2, 4, ...), matching
// retry.NewExponential; the loop itself bounds the attempt count, so no
// retry.WithMaxRetries wrapper is needed here.
func (c *Caller[T]) backoffStrategy() retry.Backoff {
	var b retry.Backoff

	switch c.config.Strategy {
	case BackoffConstant:
		delay := c.config.BaseDelay
		b = retry.BackoffFunc(func() (time.Duration, bool) {
			return delay, false
		})
	case BackoffFibonacci:
		b = retry.NewFibonacci(c.config.BaseDelay)
	default:
		b = retry.NewExponential(c.config.BaseDelay)
	}

	if c.config.MaxDelay > 0 && c.config.Strategy != BackoffConstant {
		b = retry.WithCappedDuration(c.config.MaxDelay, b)
	}

	if c.config.Jitter > 0 {
		b = retry.WithJitter(c.config.Jitter, b)
	}

	return b
}

// sleepContext is the default SleepFunc: a blocking, context-aware wait.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CallStats holds statistics about a Caller's invocations.
type CallStats struct {
	// TotalAttempts is the total number of operation invocations made,
	// including initial attempts and retries.
	TotalAttempts int64

	// TotalRetries is the number of retry invocations (not including
	// initial attempts).
	TotalRetries int64

	// TotalSuccesses is the number of calls that returned a value.
	TotalSuccesses int64

	// TotalFailures is the number of calls that returned an error
	// (after exhaustion or immediate propagation).
	TotalFailures int64

	// LastAttemptTime is the time of the last invocation.
	LastAttemptTime time.Time

	// LastError is the last terminal error returned (if any).
	LastError error
}

// Stats returns a snapshot of the caller's statistics.
// This method is safe for concurrent use.
func (c *Caller[T]) Stats() CallStats {
	c.stats.mu.RLock()
	defer c.stats.mu.RUnlock()

	return CallStats{
		TotalAttempts:   c.stats.totalAttempts,
		TotalRetries:    c.stats.totalRetries,
		TotalSuccesses:  c.stats.totalSuccesses,
		TotalFailures:   c.stats.totalFailures,
		LastAttemptTime: c.stats.lastAttemptTime,
		LastError:       c.stats.lastError,
	}
}
