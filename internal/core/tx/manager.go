// Package tx provides transaction management abstractions.
// Domain services depend on Manager, implementations live in
// infrastructure/storage.
package tx

import (
	"context"
	"time"
)

// Manager runs a unit of work atomically.
type Manager interface {
	// RunInTransaction executes fn within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ActiveChecker is implemented by managers that can report whether ctx
// carries an open transaction. Numbering refuses to run outside one.
type ActiveChecker interface {
	InTransaction(ctx context.Context) bool
}

// RunDetached runs fn in a transaction on a context that ignores caller
// cancellation, bounded by timeout when positive.
func RunDetached(ctx context.Context, m Manager, timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx = context.WithoutCancel(ctx)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return m.RunInTransaction(ctx, fn)
}
