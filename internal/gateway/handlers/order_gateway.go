package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-system/internal/database/models"
	"storefront-system/internal/domain"
	ordersvc "storefront-system/internal/services/orders/handler"
)

type OrderService interface {
	ListOrders(ctx context.Context, actor domain.Actor, filter ordersvc.OrderFilter) (*ordersvc.OrderPage, error)
	ListAllOrders(ctx context.Context, actor domain.Actor, filter ordersvc.OrderFilter) (*ordersvc.OrderPage, error)
	GetOrder(ctx context.Context, actor domain.Actor, id int64) (*models.Order, error)
	UpdateOrder(ctx context.Context, actor domain.Actor, id int64, patch ordersvc.OrderPatch) (*models.Order, error)
	UpdateStatus(ctx context.Context, actor domain.Actor, id int64, status, reason string) (*models.Order, error)
}

type OrderHTTPHandler struct {
	orders OrderService
}

func NewOrderHTTPHandler(orders OrderService) *OrderHTTPHandler {
	return &OrderHTTPHandler{orders: orders}
}

type ListOrdersQuery struct {
	Page     int    `form:"page,default=1" binding:"gte=1"`
	PageSize int    `form:"page_size,default=10" binding:"gte=1,lte=100"`
	Status   string `form:"status" binding:"omitempty,oneof=pending confirmed processing shipped delivered cancelled refunded"`
	UserID   *int64 `form:"user_id"`
}

type UpdateOrderRequest struct {
	ShippingAddress *string `json:"shipping_address"`
	BillingAddress  *string `json:"billing_address"`
	Notes           *string `json:"notes"`
	Status          *string `json:"status"`
	Reason          string  `json:"reason" binding:"max=500"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason" binding:"max=500"`
}

func (h *OrderHTTPHandler) list(c *gin.Context, all bool) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var q ListOrdersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		handleBindError(c, err)
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	filter := ordersvc.OrderFilter{
		Status:   domain.OrderStatus(q.Status),
		Page:     q.Page,
		PageSize: q.PageSize,
	}

	var page *ordersvc.OrderPage
	var err error
	if all {
		filter.UserID = q.UserID
		page, err = h.orders.ListAllOrders(ctx, actor, filter)
	} else {
		page, err = h.orders.ListOrders(ctx, actor, filter)
	}
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, successWithMetaResponse("Orders retrieved successfully",
		orderViews(page.Orders),
		newPageMeta(page.Page, page.PageSize, page.Total)))
}

func (h *OrderHTTPHandler) ListOrders(c *gin.Context) {
	h.list(c, false)
}

func (h *OrderHTTPHandler) ListAllOrders(c *gin.Context) {
	h.list(c, true)
}

func (h *OrderHTTPHandler) GetOrder(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	order, err := h.orders.GetOrder(ctx, actor, id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Order retrieved successfully", orderView(*order)))
}

func (h *OrderHTTPHandler) UpdateOrder(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	order, err := h.orders.UpdateOrder(ctx, actor, id, ordersvc.OrderPatch{
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		Notes:           req.Notes,
		Status:          req.Status,
		Reason:          req.Reason,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Order updated successfully", orderView(*order)))
}

func (h *OrderHTTPHandler) UpdateStatus(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	order, err := h.orders.UpdateStatus(ctx, actor, id, req.Status, req.Reason)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Order status updated successfully", orderView(*order)))
}
