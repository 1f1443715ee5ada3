// Package remotecall wraps unreliable remote operations with bounded retries,
// exponential backoff, failure-kind classification, and an optional circuit
// breaker. It is aimed at clients of flaky upstream APIs (market-data feeds,
// third-party REST services) where authentication hiccups and malformed
// responses are transient often enough to be worth a few more attempts.
package remotecall

import (
	"context"
)

// RemoteOperation is a zero-argument remote call producing a value of type T.
// The operation is opaque to the wrappers in this package; its transport
// (HTTP, gRPC, whatever) is entirely the caller's concern. Implementations
// should honor the context for timeouts and cancellation.
//
// Example:
//
//	type lastTradeFetch struct {
//	    client *polygonClient
//	    symbol string
//	}
//
//	func (f *lastTradeFetch) Call(ctx context.Context) (Trade, error) {
//	    return f.client.LastTrade(ctx, f.symbol)
//	}
//
//	caller := remotecall.NewCaller[Trade](
//	    &lastTradeFetch{client: client, symbol: "AAPL"},
//	    remotecall.WithMaxAttempts(3),
//	)
type RemoteOperation[T any] interface {
	// Call performs the remote operation once and returns its value or error.
	Call(ctx context.Context) (T, error)
}

// OperationFunc adapts an ordinary function to the RemoteOperation interface.
//
// Example:
//
//	op := remotecall.OperationFunc[[]byte](func(ctx context.Context) ([]byte, error) {
//	    return fetchQuote(ctx, "AAPL")
//	})
type OperationFunc[T any] func(ctx context.Context) (T, error)

// Call invokes the wrapped function.
func (f OperationFunc[T]) Call(ctx context.Context) (T, error) {
	return f(ctx)
}
