package dto

import (
	"github.com/shopspring/decimal"

	"procurement/internal/core/id"
	"procurement/internal/domain/consolidation"
	po "procurement/internal/domain/purchase_order"
	"procurement/internal/domain/workflow"
)

// PrDetailsRequest selects approved purchase-request lines.
type PrDetailsRequest struct {
	PrDetailIDs []string `json:"prDetailIds" binding:"required,min=1"`
}

// IDs parses the selected line ids.
func (r PrDetailsRequest) IDs() ([]id.ID, error) {
	return id.ParseList(r.PrDetailIDs)
}

// GroupPreviewResponse lists the orders a confirmation would create.
type GroupPreviewResponse struct {
	Groups []consolidation.Group `json:"groups"`
}

// ConfirmResponse is the outcome of a confirmation.
type ConfirmResponse struct {
	Orders  []*po.PurchaseOrder   `json:"orders"`
	Summary consolidation.Summary `json:"summary"`
}

// FromResult creates ConfirmResponse.
func FromResult(r *consolidation.Result) ConfirmResponse {
	return ConfirmResponse{Orders: r.Orders, Summary: r.Summary}
}

// DetailEditRequest changes one line. Nil fields are unchanged.
type DetailEditRequest struct {
	DocVersion     *int             `json:"docVersion" binding:"required"`
	OrderQty       *decimal.Decimal `json:"orderQty"`
	FocQty         *decimal.Decimal `json:"focQty"`
	Price          *decimal.Decimal `json:"price"`
	DiscountRate   *decimal.Decimal `json:"discountRate"`
	OrderUnitID    *id.ID           `json:"orderUnitId"`
	OrderUnitName  *string          `json:"orderUnitName"`
	TaxProfileID   *id.ID           `json:"taxProfileId"`
	TaxProfileName *string          `json:"taxProfileName"`
	Note           *string          `json:"note"`
}

// ToDomain converts the request to a line edit of detailID.
func (r DetailEditRequest) ToDomain(detailID id.ID) po.LineEdit {
	return po.LineEdit{
		DetailID:       detailID,
		DocVersion:     r.DocVersion,
		OrderQty:       r.OrderQty,
		FocQty:         r.FocQty,
		Price:          r.Price,
		DiscountRate:   r.DiscountRate,
		OrderUnitID:    r.OrderUnitID,
		OrderUnitName:  r.OrderUnitName,
		TaxProfileID:   r.TaxProfileID,
		TaxProfileName: r.TaxProfileName,
		Note:           r.Note,
	}
}

// AddDetailRequest appends a manual line to a draft order.
type AddDetailRequest struct {
	DocVersion int `json:"docVersion" binding:"required,min=1"`
	po.DetailInput
}

// ApproveRequest approves the current stage.
type ApproveRequest struct {
	Role       string        `json:"role" binding:"required"`
	Details    []po.LineEdit `json:"details"`
	DocVersion *int          `json:"docVersion"`
}

// ToDomain converts the request.
func (r ApproveRequest) ToDomain() workflow.ApproveRequest {
	return workflow.ApproveRequest{
		DeclaredRole:       r.Role,
		LineEdits:          r.Details,
		ExpectedDocVersion: r.DocVersion,
	}
}
