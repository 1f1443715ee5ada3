package remotecall

import (
	"context"
	"log/slog"
	"time"
)

// BackoffStrategy defines how retry delays grow between attempts.
type BackoffStrategy string

const (
	// BackoffExponential doubles the delay after each retry (1, 2, 4, ...).
	BackoffExponential BackoffStrategy = "exponential"

	// BackoffConstant uses the same delay between every retry.
	BackoffConstant BackoffStrategy = "constant"

	// BackoffFibonacci grows the delay along the fibonacci sequence.
	BackoffFibonacci BackoffStrategy = "fibonacci"
)

// SleepFunc waits for the given duration or until the context is done,
// returning the context error in the latter case. Tests substitute a
// recording implementation to verify delay sequences without waiting.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config holds caller configuration options.
type Config struct {
	// Classifier decides which failures are retried.
	// Default: StatusClassifier with standard mappings
	Classifier FailureClassifier

	// Logger for retry diagnostics.
	// Default: slog.Default()
	Logger *slog.Logger

	// Sleep performs the wait between attempts.
	// Default: a context-aware timer
	Sleep SleepFunc

	// Strategy selects the backoff curve.
	// Default: BackoffExponential
	Strategy BackoffStrategy

	// BaseDelay is the delay before the first retry.
	// Default: 1 second
	BaseDelay time.Duration

	// MaxDelay caps the delay between retries (exponential/fibonacci).
	// Default: 30 seconds
	MaxDelay time.Duration

	// Jitter, when positive, randomizes each delay by up to +/- Jitter.
	// Default: 0 (deterministic delays)
	Jitter time.Duration

	// MaxAttempts is the maximum number of invocations, including the
	// first. 1 means no retries.
	// Default: 3
	MaxAttempts int
}

// Option is a functional option for configuring a Caller.
type Option func(*Config)

// WithMaxAttempts sets the maximum number of invocations, including the
// initial one. An operation that keeps failing with a retryable kind is
// invoked exactly this many times.
//
// Example:
//
//	remotecall.WithMaxAttempts(5) // up to 4 retries
func WithMaxAttempts(attempts int) Option {
	return func(c *Config) {
		c.MaxAttempts = attempts
	}
}

// WithExponentialBackoff configures doubling delays capped at maxDelay.
//
// Example:
//
//	remotecall.WithExponentialBackoff(time.Second, 30*time.Second)
//	// Delays: 1s, 2s, 4s, 8s, 16s, 30s (capped)
func WithExponentialBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Config) {
		c.Strategy = BackoffExponential
		c.BaseDelay = baseDelay
		c.MaxDelay = maxDelay
	}
}

// WithConstantBackoff configures the same delay between every retry.
//
// Example:
//
//	remotecall.WithConstantBackoff(2 * time.Second)
//	// Delays: 2s, 2s, 2s, ...
func WithConstantBackoff(delay time.Duration) Option {
	return func(c *Config) {
		c.Strategy = BackoffConstant
		c.BaseDelay = delay
		c.MaxDelay = delay
	}
}

// WithFibonacciBackoff configures fibonacci delays capped at maxDelay.
//
// Example:
//
//	remotecall.WithFibonacciBackoff(time.Second, 30*time.Second)
//	// Delays: 1s, 2s, 3s, 5s, 8s, 13s, 21s, 30s (capped)
func WithFibonacciBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Config) {
		c.Strategy = BackoffFibonacci
		c.BaseDelay = baseDelay
		c.MaxDelay = maxDelay
	}
}

// WithJitter randomizes each delay by up to +/- jitter to avoid synchronized
// retries across callers. Off by default so the delay sequence stays
// deterministic.
//
// Example:
//
//	remotecall.WithJitter(100 * time.Millisecond)
func WithJitter(jitter time.Duration) Option {
	return func(c *Config) {
		c.Jitter = jitter
	}
}

// WithClassifier sets a custom failure classifier for retry decisions.
//
// Example:
//
//	remotecall.WithClassifier(&polygonClassifier{})
func WithClassifier(classifier FailureClassifier) Option {
	return func(c *Config) {
		c.Classifier = classifier
	}
}

// WithLogger sets a custom logger for retry diagnostics.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
//	remotecall.WithLogger(logger)
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithSleep replaces the wait between attempts. Intended for tests that
// assert on the delay sequence with a fake timer.
//
// Example:
//
//	var delays []time.Duration
//	remotecall.WithSleep(func(ctx context.Context, d time.Duration) error {
//	    delays = append(delays, d)
//	    return nil
//	})
func WithSleep(sleep SleepFunc) Option {
	return func(c *Config) {
		c.Sleep = sleep
	}
}

// DefaultConfig returns caller configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Strategy:    BackoffExponential,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Classifier:  DefaultClassifier(),
		Logger:      slog.Default(),
	}
}

// BreakerConfig holds circuit breaker configuration options.
type BreakerConfig struct {
	// ReadyToTrip is called with a copy of counts whenever a call fails in
	// the closed state. If it returns true, the breaker opens.
	// Default: trips after 3 calls with 60% failure rate
	ReadyToTrip func(counts BreakerCounts) bool

	// Classifier determines which errors count against the circuit.
	// Default: StatusClassifier (authentication failures trip)
	Classifier TripClassifier

	// OnStateChange is called whenever the breaker changes state.
	OnStateChange func(name string, from, to BreakerState)

	// Logger for breaker state changes and rejections.
	// Default: slog.Default()
	Logger *slog.Logger

	// Interval is the cyclic period of the closed state after which the
	// internal counts are cleared. 0 means never clear.
	// Default: 10 seconds
	Interval time.Duration

	// Timeout is the period of the open state, after which the breaker
	// becomes half-open.
	// Default: 30 seconds
	Timeout time.Duration

	// MaxRequests is the number of calls allowed through while half-open.
	// Default: 3
	MaxRequests uint32
}

// BreakerOption is a functional option for configuring a Breaker.
type BreakerOption func(*BreakerConfig)

// BreakerCounts holds the internal counts of the circuit breaker.
type BreakerCounts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// BreakerState represents the state of the circuit breaker.
type BreakerState int

const (
	// StateClosed means the circuit is closed and calls flow normally.
	StateClosed BreakerState = iota

	// StateHalfOpen means the circuit is testing whether the remote
	// endpoint has recovered.
	StateHalfOpen

	// StateOpen means the circuit is open and calls are rejected
	// immediately.
	StateOpen
)

// String returns the string representation of the breaker state.
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// WithMaxRequests sets the number of calls allowed through while half-open.
//
// Example:
//
//	remotecall.WithMaxRequests(5)
func WithMaxRequests(maxRequests uint32) BreakerOption {
	return func(c *BreakerConfig) {
		c.MaxRequests = maxRequests
	}
}

// WithInterval sets the interval for clearing counts in the closed state.
//
// Example:
//
//	remotecall.WithInterval(10 * time.Second)
func WithInterval(interval time.Duration) BreakerOption {
	return func(c *BreakerConfig) {
		c.Interval = interval
	}
}

// WithTimeout sets how long the breaker stays open before probing.
//
// Example:
//
//	remotecall.WithTimeout(60 * time.Second)
func WithTimeout(timeout time.Duration) BreakerOption {
	return func(c *BreakerConfig) {
		c.Timeout = timeout
	}
}

// WithReadyToTrip sets a custom function to decide when the circuit opens.
//
// Example:
//
//	remotecall.WithReadyToTrip(func(counts remotecall.BreakerCounts) bool {
//	    return counts.ConsecutiveFailures >= 5
//	})
func WithReadyToTrip(fn func(counts BreakerCounts) bool) BreakerOption {
	return func(c *BreakerConfig) {
		c.ReadyToTrip = fn
	}
}

// WithTripClassifier sets a custom classifier for circuit breaker decisions.
//
// Example:
//
//	remotecall.WithTripClassifier(&polygonClassifier{})
func WithTripClassifier(classifier TripClassifier) BreakerOption {
	return func(c *BreakerConfig) {
		c.Classifier = classifier
	}
}

// WithStateChangeHandler sets a callback for breaker state changes.
//
// Example:
//
//	remotecall.WithStateChangeHandler(func(name string, from, to remotecall.BreakerState) {
//	    log.Printf("breaker %s: %s -> %s", name, from, to)
//	})
func WithStateChangeHandler(fn func(name string, from, to BreakerState)) BreakerOption {
	return func(c *BreakerConfig) {
		c.OnStateChange = fn
	}
}

// WithBreakerLogger sets a custom logger for circuit breaker operations.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
//	remotecall.WithBreakerLogger(logger)
func WithBreakerLogger(logger *slog.Logger) BreakerOption {
	return func(c *BreakerConfig) {
		c.Logger = logger
	}
}

// DefaultBreakerConfig returns circuit breaker configuration with sensible defaults.
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts BreakerCounts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		Classifier: DefaultTripClassifier(),
		Logger:     slog.Default(),
	}
}
