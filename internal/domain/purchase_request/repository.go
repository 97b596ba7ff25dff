package purchase_request

import (
	"context"

	"procurement/internal/core/id"
)

// Repository reads approved request lines and closes consumed requests.
type Repository interface {
	// FindApprovedDetails returns the lines among detailIDs whose request is
	// approved and not deleted. Unknown IDs are ignored. Results are ordered
	// as detailIDs.
	FindApprovedDetails(ctx context.Context, detailIDs []id.ID) ([]Detail, error)

	// LockApprovedDetails is FindApprovedDetails that also locks the owning
	// request headers until the transaction ends. Requires a transaction.
	LockApprovedDetails(ctx context.Context, detailIDs []id.ID) ([]Detail, error)

	// MarkCompleted moves approved requests to completed and returns how
	// many rows changed.
	MarkCompleted(ctx context.Context, requestIDs []id.ID, userID string) (int, error)
}
