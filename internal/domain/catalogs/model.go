// Package catalogs exposes the reference data consolidation and approval read:
// vendors, currencies, credit terms, units and tax profiles. The catalogs are
// maintained by other services, this engine only looks them up.
package catalogs

import (
	"github.com/shopspring/decimal"

	"procurement/internal/core/id"
)

// Vendor is a supplier a purchase order is issued to.
type Vendor struct {
	ID           id.ID  `db:"id" json:"id"`
	Code         string `db:"code" json:"code"`
	Name         string `db:"name" json:"name"`
	CreditTermID *id.ID `db:"credit_term_id" json:"creditTermId,omitempty"`
}

// Currency is a monetary unit with its current exchange rate.
type Currency struct {
	ID           id.ID           `db:"id" json:"id"`
	Code         string          `db:"code" json:"code"`
	Name         string          `db:"name" json:"name"`
	ExchangeRate decimal.Decimal `db:"exchange_rate" json:"exchangeRate"`
}

// CreditTerm is a payment term snapshot copied onto orders.
type CreditTerm struct {
	ID   id.ID  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Days int    `db:"days" json:"days"`
}

// Unit is a unit of measure.
type Unit struct {
	ID   id.ID  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// TaxProfile carries the tax rate applied to a line, in percent.
type TaxProfile struct {
	ID   id.ID           `db:"id" json:"id"`
	Name string          `db:"name" json:"name"`
	Rate decimal.Decimal `db:"rate" json:"rate"`
}
