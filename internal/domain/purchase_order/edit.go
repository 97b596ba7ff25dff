package purchase_order

import (
	"context"

	"github.com/shopspring/decimal"

	"procurement/internal/core/apperror"
	"procurement/internal/core/id"
	"procurement/internal/domain/catalogs"
)

var hundred = decimal.NewFromInt(100)

// LineEdit is a partial update of one order line. Nil fields are unchanged.
// Unit and tax-profile names are taken from the catalog, the supplied text is
// used only when the catalog has no record for the supplied ID.
type LineEdit struct {
	DetailID       id.ID            `json:"detailId"`
	DocVersion     *int             `json:"docVersion,omitempty"`
	OrderQty       *decimal.Decimal `json:"orderQty,omitempty"`
	FocQty         *decimal.Decimal `json:"focQty,omitempty"`
	Price          *decimal.Decimal `json:"price,omitempty"`
	DiscountRate   *decimal.Decimal `json:"discountRate,omitempty"`
	OrderUnitID    *id.ID           `json:"orderUnitId,omitempty"`
	OrderUnitName  *string          `json:"orderUnitName,omitempty"`
	TaxProfileID   *id.ID           `json:"taxProfileId,omitempty"`
	TaxProfileName *string          `json:"taxProfileName,omitempty"`
	Note           *string          `json:"note,omitempty"`
}

// Validate checks value ranges.
func (e LineEdit) Validate() error {
	if id.IsNil(e.DetailID) {
		return apperror.NewInvalidArgument("detailId is required").WithDetail("field", "detailId")
	}
	if err := nonNegative("orderQty", e.OrderQty); err != nil {
		return err
	}
	if err := nonNegative("focQty", e.FocQty); err != nil {
		return err
	}
	if err := nonNegative("price", e.Price); err != nil {
		return err
	}
	return validRate("discountRate", e.DiscountRate)
}

// Apply validates the edit, copies it onto d, resolves denormalized names
// and recalculates line amounts.
func (e LineEdit) Apply(ctx context.Context, d *Detail, lookup catalogs.Lookup) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.OrderQty != nil {
		d.OrderQty = *e.OrderQty
	}
	if e.FocQty != nil {
		d.FocQty = *e.FocQty
	}
	if e.Price != nil {
		d.Price = *e.Price
	}
	if e.DiscountRate != nil {
		d.DiscountRate = *e.DiscountRate
	}
	if e.Note != nil {
		d.Note = *e.Note
	}
	if e.OrderUnitID != nil {
		if err := resolveUnit(ctx, d, *e.OrderUnitID, e.OrderUnitName, lookup); err != nil {
			return err
		}
	}
	if e.TaxProfileID != nil {
		if err := resolveTaxProfile(ctx, d, *e.TaxProfileID, e.TaxProfileName, lookup); err != nil {
			return err
		}
	}
	d.Recalculate()
	return nil
}

// DetailInput is a new manually added line.
type DetailInput struct {
	ProductID      id.ID           `json:"productId"`
	ProductCode    string          `json:"productCode"`
	ProductName    string          `json:"productName"`
	OrderQty       decimal.Decimal `json:"orderQty"`
	FocQty         decimal.Decimal `json:"focQty"`
	Price          decimal.Decimal `json:"price"`
	DiscountRate   decimal.Decimal `json:"discountRate"`
	OrderUnitID    *id.ID          `json:"orderUnitId,omitempty"`
	OrderUnitName  *string         `json:"orderUnitName,omitempty"`
	TaxProfileID   *id.ID          `json:"taxProfileId,omitempty"`
	TaxProfileName *string         `json:"taxProfileName,omitempty"`
	Note           string          `json:"note"`
}

// Build validates the input and returns a detail with amounts calculated.
func (in DetailInput) Build(ctx context.Context, lookup catalogs.Lookup) (*Detail, error) {
	if id.IsNil(in.ProductID) {
		return nil, apperror.NewInvalidArgument("productId is required").WithDetail("field", "productId")
	}
	if !in.OrderQty.IsPositive() {
		return nil, apperror.NewInvalidArgument("orderQty must be positive").WithDetail("field", "orderQty")
	}
	if err := nonNegative("focQty", &in.FocQty); err != nil {
		return nil, err
	}
	if err := nonNegative("price", &in.Price); err != nil {
		return nil, err
	}
	if err := validRate("discountRate", &in.DiscountRate); err != nil {
		return nil, err
	}

	d := &Detail{
		ID:           id.New(),
		ProductID:    in.ProductID,
		ProductCode:  in.ProductCode,
		ProductName:  in.ProductName,
		OrderQty:     in.OrderQty,
		FocQty:       in.FocQty,
		Price:        in.Price,
		DiscountRate: in.DiscountRate,
		TaxRate:      decimal.Zero,
		Note:         in.Note,
		DocVersion:   1,
	}
	if in.OrderUnitID != nil {
		if err := resolveUnit(ctx, d, *in.OrderUnitID, in.OrderUnitName, lookup); err != nil {
			return nil, err
		}
	}
	if in.TaxProfileID != nil {
		if err := resolveTaxProfile(ctx, d, *in.TaxProfileID, in.TaxProfileName, lookup); err != nil {
			return nil, err
		}
	}
	d.Recalculate()
	return d, nil
}

func resolveUnit(ctx context.Context, d *Detail, unitID id.ID, fallback *string, lookup catalogs.Lookup) error {
	unit, err := catalogs.Optional(lookup.Unit(ctx, unitID))
	if err != nil {
		return err
	}
	d.OrderUnitID = &unitID
	switch {
	case unit != nil:
		d.OrderUnitName = unit.Name
	case fallback != nil:
		d.OrderUnitName = *fallback
	default:
		d.OrderUnitName = ""
	}
	return nil
}

func resolveTaxProfile(ctx context.Context, d *Detail, profileID id.ID, fallback *string, lookup catalogs.Lookup) error {
	profile, err := catalogs.Optional(lookup.TaxProfile(ctx, profileID))
	if err != nil {
		return err
	}
	d.TaxProfileID = &profileID
	switch {
	case profile != nil:
		d.TaxProfileName = profile.Name
		d.TaxRate = profile.Rate
	case fallback != nil:
		d.TaxProfileName = *fallback
	default:
		d.TaxProfileName = ""
	}
	return nil
}

func nonNegative(field string, v *decimal.Decimal) error {
	if v != nil && v.IsNegative() {
		return apperror.NewInvalidArgument(field + " must not be negative").WithDetail("field", field)
	}
	return nil
}

func validRate(field string, v *decimal.Decimal) error {
	if v == nil {
		return nil
	}
	if v.IsNegative() || v.GreaterThan(hundred) {
		return apperror.NewInvalidArgument(field + " must be between 0 and 100").WithDetail("field", field)
	}
	return nil
}
