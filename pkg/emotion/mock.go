package emotion

import (
	"context"
	"sync"
	"time"
)

// Mock implements Classifier for testing.
type Mock struct {
	// ClassifyFunc is called when Classify is invoked.
	ClassifyFunc func(ctx context.Context, jpeg []byte) (*Analysis, error)

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	// NameOverride replaces the default "mock" name.
	NameOverride string

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation.
type MockCall struct {
	Method string
	Bytes  int
	Time   time.Time
}

// NewMock creates a mock that reports every face as happy.
func NewMock() *Mock {
	return WithScores(Scores{Happy: 90, Neutral: 8, Sad: 2})
}

// WithScores returns a mock that always returns the given scores.
func WithScores(scores Scores) *Mock {
	return &Mock{
		ClassifyFunc: func(ctx context.Context, jpeg []byte) (*Analysis, error) {
			out := make(Scores, len(scores))
			for l, s := range scores {
				out[l] = s
			}
			return &Analysis{Scores: out, Provider: "mock"}, nil
		},
	}
}

// WithError returns a mock that always returns the given error.
func WithError(err error) *Mock {
	return &Mock{
		ClassifyFunc: func(ctx context.Context, jpeg []byte) (*Analysis, error) {
			return nil, err
		},
	}
}

// Name returns NameOverride or "mock".
func (m *Mock) Name() string {
	if m.NameOverride != "" {
		return m.NameOverride
	}
	return "mock"
}

// Classify calls ClassifyFunc and records the call.
func (m *Mock) Classify(ctx context.Context, jpeg []byte) (*Analysis, error) {
	m.record("Classify", len(jpeg))
	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, jpeg)
	}
	return nil, WrapError("mock", ErrClassifierUnavailable)
}

// Close calls CloseFunc and records the call.
func (m *Mock) Close() error {
	m.record("Close", 0)
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *Mock) record(method string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Bytes: n, Time: time.Now()})
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Verify Mock implements Classifier at compile time.
var _ Classifier = (*Mock)(nil)
