package purchase_order

import (
	"github.com/shopspring/decimal"

	"procurement/internal/core/types"
)

// Recalculate derives line amounts from quantity, price, discount rate and
// tax rate. Amounts are rounded to two decimals.
func (d *Detail) Recalculate() {
	d.SubTotalPrice = types.Round2(d.OrderQty.Mul(d.Price))
	d.DiscountAmount = types.Round2(types.Percent(d.SubTotalPrice, d.DiscountRate))
	d.NetAmount = d.SubTotalPrice.Sub(d.DiscountAmount)
	d.TaxAmount = types.Round2(types.Percent(d.NetAmount, d.TaxRate))
	d.TotalAmount = d.NetAmount.Add(d.TaxAmount)
}

// SumDetails aggregates totals over details that are not soft-deleted.
// FOC quantities are not part of any total.
func SumDetails(details []Detail) Totals {
	t := Totals{
		TotalQty:    decimal.Zero,
		TotalPrice:  decimal.Zero,
		TotalTax:    decimal.Zero,
		TotalAmount: decimal.Zero,
	}
	for i := range details {
		d := &details[i]
		if d.IsDeleted() {
			continue
		}
		t.TotalQty = t.TotalQty.Add(d.OrderQty)
		t.TotalPrice = t.TotalPrice.Add(d.NetAmount)
		t.TotalTax = t.TotalTax.Add(d.TaxAmount)
		t.TotalAmount = t.TotalAmount.Add(d.TotalAmount)
	}
	return t
}
