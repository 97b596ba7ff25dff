// Package purchase_request models the approved purchase requests that feed
// consolidation. Requests are authored elsewhere; this engine reads their
// approved lines and marks them completed once ordered.
package purchase_request

import (
	"time"

	"github.com/shopspring/decimal"

	"procurement/internal/core/id"
)

// Status of a purchase request.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusInProgress Status = "in_progress"
	StatusApproved   Status = "approved"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
)

// Request is the header of a purchase request.
type Request struct {
	ID            id.ID      `db:"id" json:"id"`
	RequestNo     string     `db:"pr_no" json:"prNo"`
	Status        Status     `db:"status" json:"status"`
	RequestorID   string     `db:"requestor_id" json:"requestorId"`
	RequestorName string     `db:"requestor_name" json:"requestorName"`
	Department    string     `db:"department" json:"department"`
	RequestDate   time.Time  `db:"pr_date" json:"prDate"`
	DeletedAt     *time.Time `db:"deleted_at" json:"-"`
}

// Detail is one approved request line, joined with its header.
type Detail struct {
	ID          id.ID  `db:"id" json:"id"`
	RequestID   id.ID  `db:"purchase_request_id" json:"purchaseRequestId"`
	RequestNo   string `db:"pr_no" json:"prNo"`
	RequestorID string `db:"requestor_id" json:"requestorId"`

	ProductID   id.ID  `db:"product_id" json:"productId"`
	ProductCode string `db:"product_code" json:"productCode"`
	ProductName string `db:"product_name" json:"productName"`

	VendorID     *id.ID          `db:"vendor_id" json:"vendorId"`
	VendorName   string          `db:"vendor_name" json:"vendorName"`
	CurrencyID   *id.ID          `db:"currency_id" json:"currencyId"`
	CurrencyName string          `db:"currency_name" json:"currencyName"`
	ExchangeRate decimal.Decimal `db:"exchange_rate" json:"exchangeRate"`
	DeliveryDate *time.Time      `db:"delivery_date" json:"deliveryDate"`

	ApprovedQty   decimal.Decimal `db:"approved_qty" json:"approvedQty"`
	FocQty        decimal.Decimal `db:"foc_qty" json:"focQty"`
	OrderUnitID   *id.ID          `db:"order_unit_id" json:"orderUnitId"`
	OrderUnitName string          `db:"order_unit_name" json:"orderUnitName"`

	Price          decimal.Decimal `db:"price" json:"price"`
	SubTotalPrice  decimal.Decimal `db:"sub_total_price" json:"subTotalPrice"`
	DiscountRate   decimal.Decimal `db:"discount_rate" json:"discountRate"`
	DiscountAmount decimal.Decimal `db:"discount_amount" json:"discountAmount"`
	NetAmount      decimal.Decimal `db:"net_amount" json:"netAmount"`
	TaxProfileID   *id.ID          `db:"tax_profile_id" json:"taxProfileId"`
	TaxProfileName string          `db:"tax_profile_name" json:"taxProfileName"`
	TaxRate        decimal.Decimal `db:"tax_rate" json:"taxRate"`
	TaxAmount      decimal.Decimal `db:"tax_amount" json:"taxAmount"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"totalAmount"`

	Note string `db:"note" json:"note"`
}

// Orderable reports whether the line has the keys an order needs.
func (d *Detail) Orderable() bool {
	return d.VendorID != nil && !id.IsNil(*d.VendorID) &&
		d.CurrencyID != nil && !id.IsNil(*d.CurrencyID)
}

// DocType is the notification tag of purchase requests.
const DocType = "PR"
