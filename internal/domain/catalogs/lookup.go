package catalogs

import (
	"context"

	"procurement/internal/core/apperror"
	"procurement/internal/core/id"
)

// Lookup reads reference data. Every method returns an apperror NOT_FOUND
// when the record is absent or soft-deleted.
type Lookup interface {
	Vendor(ctx context.Context, vendorID id.ID) (*Vendor, error)
	Currency(ctx context.Context, currencyID id.ID) (*Currency, error)
	CreditTerm(ctx context.Context, creditTermID id.ID) (*CreditTerm, error)
	Unit(ctx context.Context, unitID id.ID) (*Unit, error)
	TaxProfile(ctx context.Context, taxProfileID id.ID) (*TaxProfile, error)
}

// Optional turns a NOT_FOUND result into (nil, nil) so callers can fall back.
func Optional[T any](v *T, err error) (*T, error) {
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}
