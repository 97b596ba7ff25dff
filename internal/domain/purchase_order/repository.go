package purchase_order

import (
	"context"

	"procurement/internal/core/id"
)

// Repository persists orders. Writes that take an expected version fail with
// an apperror CONFLICT when the stored version differs and bump the version
// on success.
type Repository interface {
	Create(ctx context.Context, order *PurchaseOrder) error
	CreateDetail(ctx context.Context, detail *Detail) error
	CreateLink(ctx context.Context, link *PrDetailLink) error

	// Get returns a non-deleted order without details.
	Get(ctx context.Context, orderID id.ID) (*PurchaseOrder, error)

	// ListDetails returns active details with their links, by sequence number.
	ListDetails(ctx context.Context, orderID id.ID) ([]Detail, error)

	// GetDetail returns one active detail of orderID.
	GetDetail(ctx context.Context, orderID, detailID id.ID) (*Detail, error)

	// UpdateHeader writes header columns, history excluded.
	UpdateHeader(ctx context.Context, order *PurchaseOrder, expectedVersion int) error

	// AppendHistory appends entries to the workflow history.
	AppendHistory(ctx context.Context, orderID id.ID, entries ...HistoryEntry) error

	UpdateDetail(ctx context.Context, detail *Detail, expectedVersion int) error
	SoftDeleteDetail(ctx context.Context, detail *Detail, expectedVersion int) error
	SoftDelete(ctx context.Context, order *PurchaseOrder, expectedVersion int) error

	// SumActiveDetails aggregates the totals of non-deleted details.
	SumActiveDetails(ctx context.Context, orderID id.ID) (Totals, error)

	// NextSequenceNo returns one past the highest sequence number, deleted details included.
	NextSequenceNo(ctx context.Context, orderID id.ID) (int, error)
}
