package v1

import (
	"github.com/gin-gonic/gin"
)

// PurchaseOrderRouteHandler defines the endpoints of the purchase order resource.
type PurchaseOrderRouteHandler interface {
	GroupPr(c *gin.Context)
	ConfirmPr(c *gin.Context)
	Approve(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
	AddDetail(c *gin.Context)
	UpdateDetail(c *gin.Context)
	DeleteDetail(c *gin.Context)
	Cancel(c *gin.Context)
	Close(c *gin.Context)
}

// RegisterPurchaseOrderRoutes registers the purchase order routes on group.
//
// Usage:
//
//	handler := handlers.NewPurchaseOrderHandler(base, consolidation, approval, orders)
//	RegisterPurchaseOrderRoutes(api.Group("/purchase-orders"), handler)
func RegisterPurchaseOrderRoutes(group *gin.RouterGroup, handler PurchaseOrderRouteHandler) {
	group.POST("/group-pr", handler.GroupPr)
	group.POST("/confirm-pr", handler.ConfirmPr)

	group.GET("/:id", handler.Get)
	group.PUT("/:id", handler.Update)
	group.DELETE("/:id", handler.Delete)
	group.POST("/:id/approve", handler.Approve)
	group.POST("/:id/cancel", handler.Cancel)
	group.POST("/:id/close", handler.Close)

	details := group.Group("/:id/details")
	details.POST("", handler.AddDetail)
	details.PUT("/:detailId", handler.UpdateDetail)
	details.DELETE("/:detailId", handler.DeleteDetail)
}
