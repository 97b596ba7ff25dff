package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"procurement/internal/core/apperror"
	"procurement/internal/core/id"
	"procurement/internal/domain/consolidation"
	po "procurement/internal/domain/purchase_order"
	"procurement/internal/domain/workflow"
	"procurement/internal/infrastructure/http/v1/dto"
)

// Consolidator groups and confirms purchase-request lines.
type Consolidator interface {
	GroupPrForPo(ctx context.Context, detailIDs []id.ID) ([]consolidation.Group, error)
	ConfirmPrToPo(ctx context.Context, detailIDs []id.ID) (*consolidation.Result, error)
}

// Approver advances orders through their workflow.
type Approver interface {
	Approve(ctx context.Context, orderID id.ID, req workflow.ApproveRequest) (*po.PurchaseOrder, error)
}

// OrderService maintains individual orders.
type OrderService interface {
	Get(ctx context.Context, orderID id.ID) (*po.PurchaseOrder, error)
	UpdateHeader(ctx context.Context, orderID id.ID, in po.HeaderUpdate) (*po.PurchaseOrder, error)
	AddDetail(ctx context.Context, orderID id.ID, docVersion int, in po.DetailInput) (*po.PurchaseOrder, error)
	UpdateDetail(ctx context.Context, orderID id.ID, edit po.LineEdit) (*po.PurchaseOrder, error)
	DeleteDetail(ctx context.Context, orderID, detailID id.ID, docVersion int) (*po.PurchaseOrder, error)
	Cancel(ctx context.Context, orderID id.ID, docVersion int, note string) (*po.PurchaseOrder, error)
	Close(ctx context.Context, orderID id.ID, docVersion int, note string) (*po.PurchaseOrder, error)
	Delete(ctx context.Context, orderID id.ID, docVersion int) error
}

// PurchaseOrderHandler handles purchase order endpoints.
type PurchaseOrderHandler struct {
	*BaseHandler
	consolidator Consolidator
	approver     Approver
	orders       OrderService
}

// NewPurchaseOrderHandler creates a new purchase order handler.
func NewPurchaseOrderHandler(base *BaseHandler, consolidator Consolidator, approver Approver, orders OrderService) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{
		BaseHandler:  base,
		consolidator: consolidator,
		approver:     approver,
		orders:       orders,
	}
}

// GroupPr previews the orders a set of request lines would produce.
// POST /purchase-orders/group-pr
func (h *PurchaseOrderHandler) GroupPr(c *gin.Context) {
	ids, ok := h.bindDetailIDs(c)
	if !ok {
		return
	}
	groups, err := h.consolidator.GroupPrForPo(c.Request.Context(), ids)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.GroupPreviewResponse{Groups: groups})
}

// ConfirmPr creates orders from a set of request lines.
// POST /purchase-orders/confirm-pr
func (h *PurchaseOrderHandler) ConfirmPr(c *gin.Context) {
	ids, ok := h.bindDetailIDs(c)
	if !ok {
		return
	}
	result, err := h.consolidator.ConfirmPrToPo(c.Request.Context(), ids)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromResult(result))
}

// Approve approves the current workflow stage.
// POST /purchase-orders/:id/approve
func (h *PurchaseOrderHandler) Approve(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.ApproveRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.respond(c)(h.approver.Approve(c.Request.Context(), orderID, req.ToDomain()))
}

// Get returns an order with its active details.
// GET /purchase-orders/:id
func (h *PurchaseOrderHandler) Get(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	h.respond(c)(h.orders.Get(c.Request.Context(), orderID))
}

// Update changes header fields.
// PUT /purchase-orders/:id
func (h *PurchaseOrderHandler) Update(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req po.HeaderUpdate
	if !h.BindJSON(c, &req) {
		return
	}
	if req.DocVersion < 1 {
		h.Error(c, apperror.NewInvalidArgument("docVersion is required").WithDetail("field", "docVersion"))
		return
	}
	h.respond(c)(h.orders.UpdateHeader(c.Request.Context(), orderID, req))
}

// AddDetail appends a line.
// POST /purchase-orders/:id/details
func (h *PurchaseOrderHandler) AddDetail(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.AddDetailRequest
	if !h.BindJSON(c, &req) {
		return
	}
	order, err := h.orders.AddDetail(c.Request.Context(), orderID, req.DocVersion, req.DetailInput)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, order)
}

// UpdateDetail changes a line.
// PUT /purchase-orders/:id/details/:detailId
func (h *PurchaseOrderHandler) UpdateDetail(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	detailID, ok := h.ParamID(c, "detailId")
	if !ok {
		return
	}
	var req dto.DetailEditRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.respond(c)(h.orders.UpdateDetail(c.Request.Context(), orderID, req.ToDomain(detailID)))
}

// DeleteDetail removes a line.
// DELETE /purchase-orders/:id/details/:detailId?doc_version=N
func (h *PurchaseOrderHandler) DeleteDetail(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	detailID, ok := h.ParamID(c, "detailId")
	if !ok {
		return
	}
	var q dto.VersionQuery
	if !h.BindQuery(c, &q) {
		return
	}
	h.respond(c)(h.orders.DeleteDetail(c.Request.Context(), orderID, detailID, q.DocVersion))
}

// Cancel closes an order that has not been sent.
// POST /purchase-orders/:id/cancel
func (h *PurchaseOrderHandler) Cancel(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.VersionedRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.respond(c)(h.orders.Cancel(c.Request.Context(), orderID, req.DocVersion, req.Note))
}

// Close closes a sent order.
// POST /purchase-orders/:id/close
func (h *PurchaseOrderHandler) Close(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.VersionedRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.respond(c)(h.orders.Close(c.Request.Context(), orderID, req.DocVersion, req.Note))
}

// Delete soft-deletes a draft order.
// DELETE /purchase-orders/:id?doc_version=N
func (h *PurchaseOrderHandler) Delete(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var q dto.VersionQuery
	if !h.BindQuery(c, &q) {
		return
	}
	if err := h.orders.Delete(c.Request.Context(), orderID, q.DocVersion); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

func (h *PurchaseOrderHandler) bindDetailIDs(c *gin.Context) ([]id.ID, bool) {
	var req dto.PrDetailsRequest
	if !h.BindJSON(c, &req) {
		return nil, false
	}
	ids, err := req.IDs()
	if err != nil {
		h.Error(c, apperror.NewInvalidArgument("invalid pr_detail_ids").WithDetail("error", err.Error()))
		return nil, false
	}
	return ids, true
}

func (h *PurchaseOrderHandler) respond(c *gin.Context) func(*po.PurchaseOrder, error) {
	return func(order *po.PurchaseOrder, err error) {
		if err != nil {
			h.Error(c, err)
			return
		}
		h.OK(c, order)
	}
}
