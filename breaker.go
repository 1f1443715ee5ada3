package remotecall

import (
	"context"
	"errors"
	"log/slog"

	jperrors "github.com/JohnPlummer/jp-go-errors"
	"github.com/sony/gobreaker/v2"
)

// Breaker wraps a RemoteOperation with circuit breaker functionality.
// It tracks failures and opens the circuit when too many occur, keeping
// calls away from a remote endpoint that is rejecting credentials or
// otherwise failing hard.
type Breaker[T any] struct {
	op         RemoteOperation[T]
	cb         *gobreaker.CircuitBreaker[T]
	logger     *slog.Logger
	classifier TripClassifier
}

// NewBreaker creates a circuit breaker around a RemoteOperation.
// It applies the provided options to configure breaker behavior.
//
// Example:
//
//	breaker := remotecall.NewBreaker(
//	    fetchOp,
//	    remotecall.WithMaxRequests(5),
//	    remotecall.WithTimeout(60*time.Second),
//	)
func NewBreaker[T any](op RemoteOperation[T], opts ...BreakerOption) *Breaker[T] {
	config := DefaultBreakerConfig()
	for _, opt := range opts {
		opt(config)
	}

	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	if config.Classifier == nil {
		config.Classifier = DefaultTripClassifier()
	}

	classifier := config.Classifier

	settings := gobreaker.Settings{
		Name:        "remote-call",
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return config.ReadyToTrip(BreakerCounts{
				Requests:             counts.Requests,
				TotalSuccesses:       counts.TotalSuccesses,
				TotalFailures:        counts.TotalFailures,
				ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
				ConsecutiveFailures:  counts.ConsecutiveFailures,
			})
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			config.Logger.Warn("circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String())

			if config.OnStateChange != nil {
				config.OnStateChange(name, convertBreakerState(from), convertBreakerState(to))
			}
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}

			// Failures that shouldn't open the circuit don't count against it.
			return !classifier.ShouldTrip(err)
		},
	}

	return &Breaker[T]{
		op:         op,
		cb:         gobreaker.NewCircuitBreaker[T](settings),
		logger:     config.Logger,
		classifier: classifier,
	}
}

// Call executes the operation through the circuit breaker.
// While the circuit is open, calls are rejected without reaching the remote
// endpoint. Breaker rejections are wrapped with jperrors types so callers
// can handle them uniformly:
//   - gobreaker.ErrOpenState becomes a circuit breaker error in the open state
//   - gobreaker.ErrTooManyRequests becomes a circuit breaker error in the half-open state
func (b *Breaker[T]) Call(ctx context.Context) (T, error) {
	var zero T

	result, err := b.cb.Execute(func() (T, error) {
		return b.op.Call(ctx)
	})
	if err != nil {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState):
			counts := b.cb.Counts()
			b.logger.Warn("circuit breaker is open, call rejected",
				"error", err,
				"state", b.cb.State(),
				"counts", counts)
			return zero, jperrors.NewCircuitBreakerError(
				"call rejected",
				"call",
				"open",
				jperrors.WithCause(err),
				jperrors.WithCounts(jperrors.CircuitCounts{
					Requests:             counts.Requests,
					TotalSuccesses:       counts.TotalSuccesses,
					TotalFailures:        counts.TotalFailures,
					ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
					ConsecutiveFailures:  counts.ConsecutiveFailures,
				}),
			)
		case errors.Is(err, gobreaker.ErrTooManyRequests):
			counts := b.cb.Counts()
			b.logger.Debug("circuit breaker in half-open state, too many calls",
				"error", err)
			return zero, jperrors.NewCircuitBreakerError(
				"too many calls in half-open state",
				"call",
				"half-open",
				jperrors.WithCause(err),
				jperrors.WithCounts(jperrors.CircuitCounts{
					Requests:             counts.Requests,
					TotalSuccesses:       counts.TotalSuccesses,
					TotalFailures:        counts.TotalFailures,
					ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
					ConsecutiveFailures:  counts.ConsecutiveFailures,
				}),
			)
		default:
			b.logger.Debug("call failed through circuit breaker",
				"error", err,
				"should_trip", b.classifier.ShouldTrip(err))
		}
		return zero, err
	}

	return result, nil
}

// State returns the current state of the circuit breaker.
func (b *Breaker[T]) State() BreakerState {
	return convertBreakerState(b.cb.State())
}

// Counts returns the current counts of the circuit breaker.
func (b *Breaker[T]) Counts() BreakerCounts {
	counts := b.cb.Counts()
	return BreakerCounts{
		Requests:             counts.Requests,
		TotalSuccesses:       counts.TotalSuccesses,
		TotalFailures:        counts.TotalFailures,
		ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
		ConsecutiveFailures:  counts.ConsecutiveFailures,
	}
}

// Health returns the health status of the circuit breaker.
func (b *Breaker[T]) Health() HealthStatus {
	state := b.State()
	counts := b.Counts()

	var healthy bool

	switch state {
	case StateClosed:
		healthy = true
	case StateHalfOpen:
		healthy = true // degraded but operational
	case StateOpen:
		healthy = false
	}

	return HealthStatus{
		Healthy:              healthy,
		State:                state.String(),
		Requests:             counts.Requests,
		TotalSuccesses:       counts.TotalSuccesses,
		TotalFailures:        counts.TotalFailures,
		ConsecutiveFailures:  counts.ConsecutiveFailures,
		ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
	}
}

// convertBreakerState converts gobreaker.State to our BreakerState.
func convertBreakerState(state gobreaker.State) BreakerState {
	switch state {
	case gobreaker.StateClosed:
		return StateClosed
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}

// CombineCallerAndBreaker layers both resilience patterns around op.
// The circuit breaker is the inner layer, so every retry attempt counts
// against the circuit and an open circuit is observed immediately; the
// retry caller is the outer layer handling transient failures.
func CombineCallerAndBreaker[T any](
	op RemoteOperation[T],
	callerConfig *Config,
	breakerConfig *BreakerConfig,
	logger *slog.Logger,
) RemoteOperation[T] {
	if logger != nil {
		if callerConfig != nil {
			callerConfig.Logger = logger
		}
		if breakerConfig != nil {
			breakerConfig.Logger = logger
		}
	}

	withBreaker := NewBreaker(op, func(c *BreakerConfig) {
		if breakerConfig != nil {
			*c = *breakerConfig
		}
	})

	withRetry := NewCaller[T](withBreaker, func(c *Config) {
		if callerConfig != nil {
			*c = *callerConfig
		}
	})

	return withRetry
}
