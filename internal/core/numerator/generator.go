package numerator

import (
	"context"
	"time"
)

// Generator allocates document numbers.
// Implementations live in the infrastructure layer.
type Generator interface {
	// Next returns the next number for docType on refDate.
	// It must be called inside the transaction that inserts the document
	// so the lock and the insert share one serialization boundary.
	Next(ctx context.Context, docType string, refDate time.Time) (string, error)
}

// Store is the persistence side of numbering.
type Store interface {
	// Lock serializes allocations for key until the surrounding transaction ends.
	// Returns an error when ctx carries no transaction.
	Lock(ctx context.Context, key string) error

	// LatestNumber returns the highest number of docType starting with prefix
	// and ending with suffix, soft-deleted documents included.
	// Returns "" when none exists.
	LatestNumber(ctx context.Context, docType, prefix, suffix string) (string, error)
}

// PatternSource returns the configured pattern for a document type.
// found is false when no override exists.
type PatternSource interface {
	Pattern(ctx context.Context, docType string) (p Pattern, found bool, err error)
}
