package remotecall_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	remotecall "github.com/marketfetch/go-remotecall"
)

// mockOperation implements RemoteOperation for testing.
type mockOperation struct {
	callFunc  func(ctx context.Context) (string, error)
	callCount atomic.Int32
}

func (m *mockOperation) Call(ctx context.Context) (string, error) {
	m.callCount.Add(1)
	return m.callFunc(ctx)
}

func (m *mockOperation) getCallCount() int {
	return int(m.callCount.Load())
}

func (m *mockOperation) resetCallCount() {
	m.callCount.Store(0)
}

// recordingSleeper captures requested backoff delays without waiting,
// standing in for a fake clock.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func (r *recordingSleeper) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, len(r.delays))
	copy(out, r.delays)
	return out
}

// mockClassifier for testing custom classification.
type mockClassifier struct {
	classifyFunc func(err error) remotecall.FailureKind
}

func (m *mockClassifier) Classify(err error) remotecall.FailureKind {
	return m.classifyFunc(err)
}
