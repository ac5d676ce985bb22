package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-system/internal/database/models"
	"storefront-system/internal/domain"
	cartsvc "storefront-system/internal/services/cart/handler"
)

type CartService interface {
	GetOrCreateActiveCart(ctx context.Context, actor domain.Actor) (*models.Cart, error)
	GetActiveCart(ctx context.Context, actor domain.Actor) (*models.Cart, error)
	CreateCart(ctx context.Context, actor domain.Actor) (*models.Cart, error)
	GetCart(ctx context.Context, actor domain.Actor, cartID int64) (*models.Cart, error)
	ListCarts(ctx context.Context, actor domain.Actor) ([]models.Cart, error)
	DeleteCart(ctx context.Context, actor domain.Actor, cartID int64) error
	AddItem(ctx context.Context, actor domain.Actor, cartID, catalogItemID int64, quantity int32) (*models.CartItem, bool, error)
	SetItemQuantity(ctx context.Context, actor domain.Actor, cartID, cartItemID int64, quantity int32) (*models.CartItem, error)
	RemoveItem(ctx context.Context, actor domain.Actor, cartID, cartItemID int64) error
	ClearCart(ctx context.Context, actor domain.Actor, cartID int64) (*models.Cart, error)
	Checkout(ctx context.Context, actor domain.Actor, cartID int64, req cartsvc.CheckoutRequest) (*cartsvc.CheckoutResult, error)
}

type CartHTTPHandler struct {
	carts CartService
}

func NewCartHTTPHandler(carts CartService) *CartHTTPHandler {
	return &CartHTTPHandler{carts: carts}
}

type AddCartItemRequest struct {
	ItemID   int64 `json:"item_id" binding:"required,gt=0"`
	Quantity int32 `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Quantity *int32 `json:"quantity" binding:"required"`
}

type CheckoutRequest struct {
	ShippingAddress  string  `json:"shipping_address"`
	BillingAddress   *string `json:"billing_address"`
	Notes            *string `json:"notes"`
	PaymentMethod    string  `json:"payment_method" binding:"omitempty,oneof=credit_card debit_card paypal bank_transfer cash_on_delivery digital_wallet"`
	PaymentGateway   string  `json:"payment_gateway" binding:"omitempty,oneof=stripe paypal razorpay square manual"`
	Currency         string  `json:"currency" binding:"omitempty,currency"`
	PaymentReference *string `json:"payment_reference"`
}

func cartViews(carts []models.Cart) []CartView {
	out := make([]CartView, 0, len(carts))
	for _, cart := range carts {
		out = append(out, cartView(cart))
	}
	return out
}

// --- Carts ---

func (h *CartHTTPHandler) ListCarts(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	carts, err := h.carts.ListCarts(ctx, actor)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Carts retrieved successfully", cartViews(carts)))
}

func (h *CartHTTPHandler) CreateCart(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	cart, err := h.carts.CreateCart(ctx, actor)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse("Cart created successfully", cartView(*cart)))
}

func (h *CartHTTPHandler) GetActiveCart(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	cart, err := h.carts.GetActiveCart(ctx, actor)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Active cart retrieved successfully", cartView(*cart)))
}

// AddToActiveCart adds an item to the caller's active cart, creating the cart when needed.
func (h *CartHTTPHandler) AddToActiveCart(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	cart, err := h.carts.GetOrCreateActiveCart(ctx, actor)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	h.addItem(c, ctx, actor, cart.ID, req)
}

func (h *CartHTTPHandler) GetCart(c *gin.Context) {
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

	cart, err := h.carts.GetCart(ctx, actor, id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Cart retrieved successfully", cartView(*cart)))
}

func (h *CartHTTPHandler) DeleteCart(c *gin.Context) {
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

	if err := h.carts.DeleteCart(ctx, actor, id); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Cart deleted successfully", nil))
}

// --- Cart Items ---

func (h *CartHTTPHandler) AddItem(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	h.addItem(c, ctx, actor, id, req)
}

func (h *CartHTTPHandler) addItem(c *gin.Context, ctx context.Context, actor domain.Actor, cartID int64, req AddCartItemRequest) {
	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}

	line, created, err := h.carts.AddItem(ctx, actor, cartID, req.ItemID, quantity)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	if created {
		c.JSON(http.StatusCreated, successResponse("Item added to cart successfully", cartItemView(*line)))
		return
	}
	c.JSON(http.StatusOK, successResponse("Cart item quantity updated", cartItemView(*line)))
}

func (h *CartHTTPHandler) UpdateItem(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	cartID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := parseIDParam(c, "item_id")
	if !ok {
		return
	}
	var req UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	line, err := h.carts.SetItemQuantity(ctx, actor, cartID, itemID, *req.Quantity)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if line == nil {
		c.JSON(http.StatusOK, successResponse("Item removed from cart", nil))
		return
	}
	c.JSON(http.StatusOK, successResponse("Cart item updated successfully", cartItemView(*line)))
}

func (h *CartHTTPHandler) RemoveItem(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	cartID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := parseIDParam(c, "item_id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.carts.RemoveItem(ctx, actor, cartID, itemID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Item removed from cart", nil))
}

func (h *CartHTTPHandler) ClearCart(c *gin.Context) {
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

	cart, err := h.carts.ClearCart(ctx, actor, id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Cart cleared successfully", cartView(*cart)))
}

// --- Checkout ---

func (h *CartHTTPHandler) Checkout(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	// An empty body is an empty request; the service reports what is missing.
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		handleBindError(c, err)
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	result, err := h.carts.Checkout(ctx, actor, id, cartsvc.CheckoutRequest{
		ShippingAddress:  req.ShippingAddress,
		BillingAddress:   req.BillingAddress,
		Notes:            req.Notes,
		PaymentMethod:    req.PaymentMethod,
		PaymentGateway:   req.PaymentGateway,
		Currency:         req.Currency,
		PaymentReference: req.PaymentReference,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	data := gin.H{"order": orderView(*result.Order)}
	if result.Transaction != nil {
		data["transaction_id"] = result.Transaction.TransactionID
		data["transaction_status"] = result.Transaction.Status
	}
	c.JSON(http.StatusCreated, successResponse("Order created successfully", data))
}
