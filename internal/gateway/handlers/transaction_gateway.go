package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"storefront-system/internal/database/models"
	"storefront-system/internal/domain"
	txnsvc "storefront-system/internal/services/transactions/handler"
)

const dateLayout = "2006-01-02"

type TransactionService interface {
	ListTransactions(ctx context.Context, actor domain.Actor, filter txnsvc.TransactionFilter) (*txnsvc.TransactionPage, error)
	ListAllTransactions(ctx context.Context, actor domain.Actor, filter txnsvc.TransactionFilter) (*txnsvc.TransactionPage, error)
	Search(ctx context.Context, actor domain.Actor, filter txnsvc.TransactionFilter) ([]models.Transaction, error)
	GetByTransactionID(ctx context.Context, actor domain.Actor, transactionID string) (*models.Transaction, error)
	CreateTransaction(ctx context.Context, actor domain.Actor, req txnsvc.CreateTransactionRequest) (*models.Transaction, error)
	UpdateStatus(ctx context.Context, actor domain.Actor, transactionID, status, reason string) (*models.Transaction, error)
	ProcessPayment(ctx context.Context, actor domain.Actor, transactionID string, data txnsvc.PaymentData) (*models.Transaction, error)
	Stats(ctx context.Context, actor domain.Actor) (*txnsvc.Stats, error)
	AdminStats(ctx context.Context, actor domain.Actor) (*txnsvc.AdminStats, error)
}

type TransactionHTTPHandler struct {
	transactions TransactionService
}

func NewTransactionHTTPHandler(transactions TransactionService) *TransactionHTTPHandler {
	return &TransactionHTTPHandler{transactions: transactions}
}

type ListTransactionsQuery struct {
	Page          int    `form:"page,default=1" binding:"gte=1"`
	PageSize      int    `form:"page_size,default=10" binding:"gte=1,lte=100"`
	Status        string `form:"status" binding:"omitempty,oneof=pending completed failed cancelled refunded"`
	PaymentMethod string `form:"payment_method" binding:"omitempty,oneof=credit_card debit_card paypal bank_transfer cash_on_delivery digital_wallet"`
	DateFrom      string `form:"date_from" binding:"omitempty,datetime=2006-01-02"`
	DateTo        string `form:"date_to" binding:"omitempty,datetime=2006-01-02"`
	AmountMin     string `form:"amount_min" binding:"omitempty,numeric"`
	AmountMax     string `form:"amount_max" binding:"omitempty,numeric"`
}

// filter converts the query into a service filter. date_to covers the whole day.
func (q ListTransactionsQuery) filter() txnsvc.TransactionFilter {
	f := txnsvc.TransactionFilter{
		Status:        domain.TransactionStatus(q.Status),
		PaymentMethod: domain.PaymentMethod(q.PaymentMethod),
		Page:          q.Page,
		PageSize:      q.PageSize,
	}
	if t, err := time.Parse(dateLayout, q.DateFrom); err == nil {
		f.DateFrom = &t
	}
	if t, err := time.Parse(dateLayout, q.DateTo); err == nil {
		end := t.Add(24*time.Hour - time.Nanosecond)
		f.DateTo = &end
	}
	if d, err := decimal.NewFromString(q.AmountMin); err == nil {
		f.AmountMin = &d
	}
	if d, err := decimal.NewFromString(q.AmountMax); err == nil {
		f.AmountMax = &d
	}
	return f
}

type CreateTransactionRequest struct {
	OrderID          *int64           `json:"order" binding:"omitempty,gt=0"`
	Amount           *decimal.Decimal `json:"amount" binding:"required"`
	Currency         string           `json:"currency" binding:"omitempty,currency"`
	PaymentMethod    string           `json:"payment_method" binding:"required,oneof=credit_card debit_card paypal bank_transfer cash_on_delivery digital_wallet"`
	PaymentGateway   string           `json:"payment_gateway" binding:"omitempty,oneof=stripe paypal razorpay square manual"`
	PaymentReference *string          `json:"payment_reference"`
	Description      *string          `json:"description"`
	Notes            *string          `json:"notes"`
}

type UpdateTransactionStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason" binding:"max=500"`
}

type ProcessPaymentRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
	PaymentData   struct {
		Reference string `json:"reference"`
	} `json:"payment_data"`
}

func (h *TransactionHTTPHandler) list(c *gin.Context, all bool) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var q ListTransactionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		handleBindError(c, err)
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	var page *txnsvc.TransactionPage
	var err error
	if all {
		page, err = h.transactions.ListAllTransactions(ctx, actor, q.filter())
	} else {
		page, err = h.transactions.ListTransactions(ctx, actor, q.filter())
	}
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, successWithMetaResponse("Transactions retrieved successfully",
		transactionListViews(page.Transactions),
		newPageMeta(page.Page, page.PageSize, page.Total)))
}

func (h *TransactionHTTPHandler) ListTransactions(c *gin.Context) {
	h.list(c, false)
}

func (h *TransactionHTTPHandler) ListAllTransactions(c *gin.Context) {
	h.list(c, true)
}

func (h *TransactionHTTPHandler) Search(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var q ListTransactionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		handleBindError(c, err)
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	txns, err := h.transactions.Search(ctx, actor, q.filter())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Transactions retrieved successfully", transactionListViews(txns)))
}

func (h *TransactionHTTPHandler) GetTransaction(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	txn, err := h.transactions.GetByTransactionID(ctx, actor, c.Param("transaction_id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Transaction retrieved successfully", transactionView(*txn)))
}

func (h *TransactionHTTPHandler) CreateTransaction(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	txn, err := h.transactions.CreateTransaction(ctx, actor, txnsvc.CreateTransactionRequest{
		OrderID:          req.OrderID,
		Amount:           *req.Amount,
		Currency:         req.Currency,
		PaymentMethod:    req.PaymentMethod,
		PaymentGateway:   req.PaymentGateway,
		PaymentReference: req.PaymentReference,
		Description:      req.Description,
		Notes:            req.Notes,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse("Transaction created successfully", transactionView(*txn)))
}

func (h *TransactionHTTPHandler) UpdateStatus(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req UpdateTransactionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	txn, err := h.transactions.UpdateStatus(ctx, actor, c.Param("transaction_id"), req.Status, req.Reason)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Transaction status updated successfully", transactionView(*txn)))
}

func (h *TransactionHTTPHandler) ProcessPayment(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	txn, err := h.transactions.ProcessPayment(ctx, actor, req.TransactionID, txnsvc.PaymentData{
		Reference: req.PaymentData.Reference,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Payment processed successfully", transactionView(*txn)))
}

// --- Stats ---

func (h *TransactionHTTPHandler) Stats(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	stats, err := h.transactions.Stats(ctx, actor)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Transaction statistics retrieved successfully", stats))
}

func (h *TransactionHTTPHandler) AdminStats(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	stats, err := h.transactions.AdminStats(ctx, actor)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Transaction statistics retrieved successfully", stats))
}
