package handler

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"storefront-system/internal/database/models"
	"storefront-system/internal/domain"
	"storefront-system/internal/events"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type TransactionFilter struct {
	Status        domain.TransactionStatus
	PaymentMethod domain.PaymentMethod
	DateFrom      *time.Time
	DateTo        *time.Time
	AmountMin     *decimal.Decimal
	AmountMax     *decimal.Decimal
	Page          int
	PageSize      int
}

func (f *TransactionFilter) normalize() {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
}

func (f TransactionFilter) apply(query *gorm.DB) *gorm.DB {
	if f.Status != "" {
		query = query.Where("transactions.status = ?", f.Status)
	}
	if f.PaymentMethod != "" {
		query = query.Where("transactions.payment_method = ?", f.PaymentMethod)
	}
	if f.DateFrom != nil {
		query = query.Where("transactions.created_at >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		query = query.Where("transactions.created_at <= ?", *f.DateTo)
	}
	if f.AmountMin != nil {
		query = query.Where("transactions.amount >= ?", *f.AmountMin)
	}
	if f.AmountMax != nil {
		query = query.Where("transactions.amount <= ?", *f.AmountMax)
	}
	return query
}

type TransactionPage struct {
	Transactions []models.Transaction
	Total        int64
	Page         int
	PageSize     int
}

type CreateTransactionRequest struct {
	OrderID          *int64
	Amount           decimal.Decimal
	Currency         string
	PaymentMethod    string
	PaymentGateway   string
	PaymentReference *string
	Description      *string
	Notes            *string
}

// -- Handler --
type TransactionHandler struct {
	db        *gorm.DB
	publisher events.Publisher
	logger    *zap.Logger
	gateway   PaymentGateway
	now       func() time.Time
}

func NewTransactionHandler(db *gorm.DB, publisher events.Publisher, logger *zap.Logger, gateway PaymentGateway) *TransactionHandler {
	if publisher == nil {
		publisher = events.NewNopPublisher()
	}
	h := &TransactionHandler{
		db:        db,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
	if gateway == nil {
		gateway = NewMockGateway(h.clock)
	}
	h.gateway = gateway
	return h
}

func (s *TransactionHandler) clock() time.Time {
	return s.now()
}

func (s *TransactionHandler) list(ctx context.Context, userID *int64, filter TransactionFilter) (*TransactionPage, error) {
	filter.normalize()

	query := s.db.WithContext(ctx).Model(&models.Transaction{})
	if userID != nil {
		query = query.Where("transactions.user_id = ?", *userID)
	}
	query = filter.apply(query)

	page := TransactionPage{Page: filter.Page, PageSize: filter.PageSize}
	if err := query.Count(&page.Total).Error; err != nil {
		return nil, errors.Wrap(err, "count transactions")
	}

	offset := (filter.Page - 1) * filter.PageSize
	if err := query.Order("transactions.created_at DESC, transactions.id DESC").
		Offset(offset).Limit(filter.PageSize).
		Find(&page.Transactions).Error; err != nil {
		return nil, errors.Wrap(err, "list transactions")
	}
	return &page, nil
}

func (s *TransactionHandler) ListTransactions(ctx context.Context, actor domain.Actor, filter TransactionFilter) (*TransactionPage, error) {
	return s.list(ctx, &actor.UserID, filter)
}

func (s *TransactionHandler) ListAllTransactions(ctx context.Context, actor domain.Actor, filter TransactionFilter) (*TransactionPage, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	return s.list(ctx, nil, filter)
}

// Search returns every transaction of the actor matching filter, newest first.
func (s *TransactionHandler) Search(ctx context.Context, actor domain.Actor, filter TransactionFilter) ([]models.Transaction, error) {
	var transactions []models.Transaction
	query := filter.apply(s.db.WithContext(ctx).Where("transactions.user_id = ?", actor.UserID))
	if err := query.Order("transactions.created_at DESC, transactions.id DESC").Find(&transactions).Error; err != nil {
		return nil, errors.Wrap(err, "search transactions")
	}
	return transactions, nil
}

// GetByTransactionID is visible to the owner and to admins.
func (s *TransactionHandler) GetByTransactionID(ctx context.Context, actor domain.Actor, transactionID string) (*models.Transaction, error) {
	var txn models.Transaction
	query := s.db.WithContext(ctx).Where("transaction_id = ?", transactionID)
	if !actor.IsAdmin() {
		query = query.Where("user_id = ?", actor.UserID)
	}
	if err := query.First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFound(domain.MsgTransactionNotFound)
		}
		return nil, errors.Wrap(err, "get transaction")
	}
	return &txn, nil
}

func (s *TransactionHandler) CreateTransaction(ctx context.Context, actor domain.Actor, req CreateTransactionRequest) (*models.Transaction, error) {
	if !req.Amount.IsPositive() {
		return nil, domain.NewValidation(domain.MsgAmountPositive).
			WithField("amount", []string{domain.MsgAmountPositive})
	}
	method, err := domain.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}
	gateway, err := domain.ParsePaymentGateway(req.PaymentGateway)
	if err != nil {
		return nil, err
	}
	currency, err := domain.NormalizeCurrency(req.Currency)
	if err != nil {
		return nil, err
	}

	if req.OrderID != nil {
		query := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", *req.OrderID)
		if !actor.IsAdmin() {
			query = query.Where("user_id = ?", actor.UserID)
		}
		var count int64
		if err := query.Count(&count).Error; err != nil {
			return nil, errors.Wrap(err, "check order")
		}
		if count == 0 {
			return nil, domain.NewNotFound(domain.MsgOrderNotFound)
		}
	}

	txn := models.Transaction{
		UserID:           actor.UserID,
		OrderID:          req.OrderID,
		Amount:           req.Amount.Round(2),
		Currency:         currency,
		Status:           domain.TransactionPending,
		PaymentMethod:    method,
		PaymentGateway:   gateway,
		PaymentReference: req.PaymentReference,
		Description:      req.Description,
		Notes:            req.Notes,
	}
	if err := s.db.WithContext(ctx).Create(&txn).Error; err != nil {
		return nil, errors.Wrap(err, "create transaction")
	}

	s.logger.Info("transaction created",
		zap.String("transaction_id", txn.TransactionID),
		zap.Int64("user_id", txn.UserID),
		zap.String("amount", txn.Amount.StringFixed(2)))
	return &txn, nil
}

// UpdateStatus applies a status change requested by the owner or an admin.
func (s *TransactionHandler) UpdateStatus(ctx context.Context, actor domain.Actor, transactionID, status, reason string) (*models.Transaction, error) {
	next, err := domain.ParseTransactionStatus(status)
	if err != nil {
		return nil, err
	}
	txn, err := s.GetByTransactionID(ctx, actor, transactionID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, txn, next, reason, nil)
}

// transition moves txn to next with a compare-and-set on its current status.
// extra carries additional columns written in the same update.
func (s *TransactionHandler) transition(ctx context.Context, txn *models.Transaction, next domain.TransactionStatus, reason string, extra map[string]interface{}) (*models.Transaction, error) {
	prev := txn.Status
	if err := prev.Transition(next).Err(); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"status": next,
		"notes":  domain.AppendNote(txn.Notes, next.Note(strings.TrimSpace(reason))),
	}
	if next == domain.TransactionCompleted {
		updates["completed_at"] = s.now()
	}
	for k, v := range extra {
		updates[k] = v
	}

	res := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", txn.ID, prev).
		Updates(updates)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "update transaction status")
	}
	if res.RowsAffected == 0 {
		return nil, domain.NewConflict(domain.MsgStatusChanged)
	}

	var updated models.Transaction
	if err := s.db.WithContext(ctx).First(&updated, txn.ID).Error; err != nil {
		return nil, errors.Wrap(err, "reload transaction")
	}

	s.publish(ctx, events.EventTransactionStatusChanged, &updated, prev)
	s.logger.Info("transaction status changed",
		zap.String("transaction_id", updated.TransactionID),
		zap.String("from", string(prev)),
		zap.String("to", string(next)))
	return &updated, nil
}

func (s *TransactionHandler) publish(ctx context.Context, eventType string, txn *models.Transaction, prev domain.TransactionStatus) {
	event := events.Event{
		EventType:     eventType,
		UserID:        txn.UserID,
		TransactionID: txn.TransactionID,
		Status:        string(txn.Status),
		PrevStatus:    string(prev),
		Amount:        txn.Amount.StringFixed(2),
		Timestamp:     s.now(),
	}
	if txn.OrderID != nil {
		event.OrderID = *txn.OrderID
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish transaction event",
			zap.String("transaction_id", txn.TransactionID),
			zap.Error(err))
	}
}
