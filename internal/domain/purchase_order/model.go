// Package purchase_order provides the PurchaseOrder document, its lines and
// the links back to the purchase-request lines they were sourced from.
package purchase_order

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"procurement/internal/core/entity"
	"procurement/internal/core/id"
)

// DocType is the numbering and notification tag of purchase orders.
const DocType = "PO"

// NoStage marks an absent workflow pointer.
const NoStage = "-"

// Status is the lifecycle status of an order.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusPartial    Status = "partial"
	StatusClosed     Status = "closed"
)

// HistoryAction names a workflow history entry.
type HistoryAction string

const (
	ActionCreated   HistoryAction = "created"
	ActionApproved  HistoryAction = "approved"
	ActionCancelled HistoryAction = "cancelled"
	ActionClosed    HistoryAction = "closed"
)

// HistoryEntry records one stage transition.
type HistoryEntry struct {
	Action    HistoryAction `json:"action"`
	At        time.Time     `json:"at"`
	UserID    string        `json:"userId"`
	UserName  string        `json:"userName"`
	FromStage string        `json:"fromStage"`
	ToStage   string        `json:"toStage"`
	Note      string        `json:"note,omitempty"`
}

// History is the append-only workflow log. Repositories only append to it.
type History []HistoryEntry

// Assignees is the set of users who may act on the current stage.
type Assignees []string

// NewAssignees deduplicates ids keeping first-seen order and dropping blanks.
func NewAssignees(ids ...string) Assignees {
	out := make(Assignees, 0, len(ids))
	for _, v := range ids {
		if v == "" || slices.Contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Contains reports whether userID is assigned.
func (a Assignees) Contains(userID string) bool {
	return slices.Contains(a, userID)
}

// Totals are the aggregates kept on the header.
type Totals struct {
	TotalQty    decimal.Decimal `db:"total_qty" json:"totalQty"`
	TotalPrice  decimal.Decimal `db:"total_price" json:"totalPrice"`
	TotalTax    decimal.Decimal `db:"total_tax" json:"totalTax"`
	TotalAmount decimal.Decimal `db:"total_amount" json:"totalAmount"`
}

// Equal compares totals numerically.
func (t Totals) Equal(o Totals) bool {
	return t.TotalQty.Equal(o.TotalQty) &&
		t.TotalPrice.Equal(o.TotalPrice) &&
		t.TotalTax.Equal(o.TotalTax) &&
		t.TotalAmount.Equal(o.TotalAmount)
}

// PurchaseOrder is the order issued to a vendor.
type PurchaseOrder struct {
	ID     id.ID  `db:"id" json:"id"`
	PoNo   string `db:"po_no" json:"poNo"`
	Status Status `db:"status" json:"status"`

	VendorID     id.ID           `db:"vendor_id" json:"vendorId"`
	VendorName   string          `db:"vendor_name" json:"vendorName"`
	CurrencyID   id.ID           `db:"currency_id" json:"currencyId"`
	CurrencyName string          `db:"currency_name" json:"currencyName"`
	ExchangeRate decimal.Decimal `db:"exchange_rate" json:"exchangeRate"`

	OrderDate    time.Time  `db:"order_date" json:"orderDate"`
	DeliveryDate *time.Time `db:"delivery_date" json:"deliveryDate"`
	ApprovalDate *time.Time `db:"approval_date" json:"approvalDate"`

	BuyerID   string `db:"buyer_id" json:"buyerId"`
	BuyerName string `db:"buyer_name" json:"buyerName"`

	CreditTermID   *id.ID `db:"credit_term_id" json:"creditTermId"`
	CreditTermName string `db:"credit_term_name" json:"creditTermName"`
	CreditTermDays int    `db:"credit_term_days" json:"creditTermDays"`

	WorkflowID    string    `db:"workflow_id" json:"workflowId"`
	WorkflowName  string    `db:"workflow_name" json:"workflowName"`
	CurrentStage  string    `db:"workflow_current_stage" json:"workflowCurrentStage"`
	PreviousStage string    `db:"workflow_previous_stage" json:"workflowPreviousStage"`
	NextStage     string    `db:"workflow_next_stage" json:"workflowNextStage"`
	History       History   `db:"workflow_history" json:"workflowHistory"`
	Assignees     Assignees `db:"user_action" json:"userAction"`

	Totals

	Note       string `db:"note" json:"note"`
	DocVersion int    `db:"doc_version" json:"docVersion"`

	entity.AuditFields
	entity.SoftDelete

	Details []Detail `db:"-" json:"details,omitempty"`
}

// Editable reports whether lines may be added, changed or removed.
func (o *PurchaseOrder) Editable() bool {
	return o.Status == StatusDraft
}

// Approvable reports whether the order can still advance through its workflow.
func (o *PurchaseOrder) Approvable() bool {
	return o.Status == StatusDraft || o.Status == StatusInProgress
}

// Detail is one order line.
type Detail struct {
	ID              id.ID `db:"id" json:"id"`
	PurchaseOrderID id.ID `db:"purchase_order_id" json:"purchaseOrderId"`
	SequenceNo      int   `db:"sequence_no" json:"sequenceNo"`

	ProductID   id.ID  `db:"product_id" json:"productId"`
	ProductCode string `db:"product_code" json:"productCode"`
	ProductName string `db:"product_name" json:"productName"`

	OrderQty      decimal.Decimal `db:"order_qty" json:"orderQty"`
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

	Note       string `db:"note" json:"note"`
	DocVersion int    `db:"doc_version" json:"docVersion"`

	entity.AuditFields
	entity.SoftDelete

	Links []PrDetailLink `db:"-" json:"links,omitempty"`
}

// PrDetailLink records that an order line was sourced from a request line.
type PrDetailLink struct {
	ID            id.ID           `db:"id" json:"id"`
	PoDetailID    id.ID           `db:"po_detail_id" json:"poDetailId"`
	PrDetailID    id.ID           `db:"pr_detail_id" json:"prDetailId"`
	RequestID     id.ID           `db:"purchase_request_id" json:"purchaseRequestId"`
	RequestNo     string          `db:"pr_no" json:"prNo"`
	OrderQty      decimal.Decimal `db:"order_qty" json:"orderQty"`
	FocQty        decimal.Decimal `db:"foc_qty" json:"focQty"`
	OrderUnitID   id.ID           `db:"order_unit_id" json:"orderUnitId"`
	OrderUnitName string          `db:"order_unit_name" json:"orderUnitName"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
}
