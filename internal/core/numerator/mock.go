package numerator

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// MockGenerator is a Generator double. Without NextFunc it returns
// DOCTYPE-MOCK-0001, DOCTYPE-MOCK-0002, ...
type MockGenerator struct {
	NextFunc func(ctx context.Context, docType string, refDate time.Time) (string, error)

	calls atomic.Int64
}

// Next implements Generator.
func (m *MockGenerator) Next(ctx context.Context, docType string, refDate time.Time) (string, error) {
	if m.NextFunc != nil {
		return m.NextFunc(ctx, docType, refDate)
	}
	n := m.calls.Add(1)
	return fmt.Sprintf("%s-MOCK-%04d", docType, n), nil
}

// Ensure compile-time interface compliance.
var _ Generator = (*MockGenerator)(nil)
