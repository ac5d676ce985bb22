package handler

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
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

type OrderFilter struct {
	UserID   *int64
	Status   domain.OrderStatus
	Page     int
	PageSize int
}

type OrderPage struct {
	Orders   []models.Order
	Total    int64
	Page     int
	PageSize int
}

// OrderPatch carries the editable order fields. A non-nil Status turns the
// update into a status change.
type OrderPatch struct {
	ShippingAddress *string
	BillingAddress  *string
	Notes           *string
	Status          *string
	Reason          string
}

func (p OrderPatch) hasFieldChanges() bool {
	return p.ShippingAddress != nil || p.BillingAddress != nil || p.Notes != nil
}

// -- Handler --
type OrderHandler struct {
	db          *gorm.DB
	publisher   events.Publisher
	logger      *zap.Logger
	transitions domain.OrderTransitions
}

func NewOrderHandler(db *gorm.DB, publisher events.Publisher, logger *zap.Logger, transitions domain.OrderTransitions) *OrderHandler {
	if publisher == nil {
		publisher = events.NewNopPublisher()
	}
	if transitions == nil {
		transitions = domain.DefaultOrderTransitions()
	}
	return &OrderHandler{
		db:          db,
		publisher:   publisher,
		logger:      logger,
		transitions: transitions,
	}
}

func (s *OrderHandler) Transitions() domain.OrderTransitions {
	return s.transitions
}

func preloadOrder(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("order_items.id ASC") }).
		Preload("Items.CatalogItem").
		Preload("Transactions", func(db *gorm.DB) *gorm.DB { return db.Order("transactions.id ASC") })
}

func (s *OrderHandler) list(ctx context.Context, filter OrderFilter) (*OrderPage, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = DefaultPageSize
	}
	if filter.PageSize > MaxPageSize {
		filter.PageSize = MaxPageSize
	}

	query := s.db.WithContext(ctx).Model(&models.Order{})
	if filter.UserID != nil {
		query = query.Where("orders.user_id = ?", *filter.UserID)
	}
	if filter.Status != "" {
		if !filter.Status.IsValid() {
			return nil, domain.NewValidationf("\"%s\" is not a valid choice.", filter.Status)
		}
		query = query.Where("orders.status = ?", filter.Status)
	}

	page := OrderPage{Page: filter.Page, PageSize: filter.PageSize}
	if err := query.Count(&page.Total).Error; err != nil {
		return nil, errors.Wrap(err, "count orders")
	}

	offset := (filter.Page - 1) * filter.PageSize
	if err := preloadOrder(query).
		Order("orders.created_at DESC, orders.id DESC").
		Offset(offset).Limit(filter.PageSize).
		Find(&page.Orders).Error; err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return &page, nil
}

// ListOrders returns the actor's own orders, newest first.
func (s *OrderHandler) ListOrders(ctx context.Context, actor domain.Actor, filter OrderFilter) (*OrderPage, error) {
	filter.UserID = &actor.UserID
	return s.list(ctx, filter)
}

func (s *OrderHandler) ListAllOrders(ctx context.Context, actor domain.Actor, filter OrderFilter) (*OrderPage, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	return s.list(ctx, filter)
}

// GetOrder is visible to the order owner and to admins.
func (s *OrderHandler) GetOrder(ctx context.Context, actor domain.Actor, id int64) (*models.Order, error) {
	var order models.Order
	query := preloadOrder(s.db.WithContext(ctx)).Where("orders.id = ?", id)
	if !actor.IsAdmin() {
		query = query.Where("orders.user_id = ?", actor.UserID)
	}
	if err := query.First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFound(domain.MsgOrderNotFound)
		}
		return nil, errors.Wrap(err, "get order")
	}
	return &order, nil
}

// UpdateOrder edits addresses and notes of a pending order. A status in the
// patch is only accepted from admins and is checked against the transition
// table before anything is written, so the patch lands whole or not at all.
func (s *OrderHandler) UpdateOrder(ctx context.Context, actor domain.Actor, id int64, patch OrderPatch) (*models.Order, error) {
	if patch.Status != nil && !actor.IsAdmin() {
		return nil, domain.NewPermission(domain.MsgOrderStatusAdminOnly)
	}

	order, err := s.GetOrder(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if patch.hasFieldChanges() {
		if order.Status != domain.OrderPending {
			return nil, domain.NewValidation(domain.MsgOrderNotEditable)
		}
		if patch.ShippingAddress != nil {
			shipping := strings.TrimSpace(*patch.ShippingAddress)
			if shipping == "" {
				return nil, domain.NewValidation(domain.MsgShippingAddressRequired).
					WithField("shipping_address", []string{"This field may not be blank."})
			}
			updates["shipping_address"] = shipping
		}
		if patch.BillingAddress != nil {
			updates["billing_address"] = *patch.BillingAddress
		}
		if patch.Notes != nil {
			updates["notes"] = *patch.Notes
		}
	}

	prev := order.Status
	var next domain.OrderStatus
	if patch.Status != nil {
		if next, err = s.checkTransition(prev, *patch.Status); err != nil {
			return nil, err
		}
		notes := order.Notes
		if patch.Notes != nil {
			notes = patch.Notes
		}
		updates["status"] = next
		updates["notes"] = domain.AppendNote(notes, patch.Reason)
	}

	if len(updates) == 0 {
		return order, nil
	}
	if err := s.save(ctx, order.ID, prev, updates); err != nil {
		return nil, err
	}

	updated, err := s.GetOrder(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if patch.Status != nil {
		s.statusChanged(ctx, updated, prev, next)
	}
	return updated, nil
}

// UpdateStatus moves an order along the transition table. The write only
// succeeds if the order still has the status that was validated.
func (s *OrderHandler) UpdateStatus(ctx context.Context, actor domain.Actor, id int64, status, reason string) (*models.Order, error) {
	if !actor.IsAdmin() {
		return nil, domain.NewPermission(domain.MsgOrderStatusAdminOnly)
	}
	order, err := s.GetOrder(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	prev := order.Status
	next, err := s.checkTransition(prev, status)
	if err != nil {
		return nil, err
	}

	if err := s.save(ctx, order.ID, prev, map[string]interface{}{
		"status": next,
		"notes":  domain.AppendNote(order.Notes, reason),
	}); err != nil {
		return nil, err
	}

	updated, err := s.GetOrder(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	s.statusChanged(ctx, updated, prev, next)
	return updated, nil
}

func (s *OrderHandler) checkTransition(prev domain.OrderStatus, status string) (domain.OrderStatus, error) {
	next, err := domain.ParseOrderStatus(status)
	if err != nil {
		return "", err
	}
	if err := s.transitions.Transition(prev, next).Err(); err != nil {
		return "", err
	}
	return next, nil
}

// save writes updates conditionally on the order still being in prev.
func (s *OrderHandler) save(ctx context.Context, id int64, prev domain.OrderStatus, updates map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, prev).
		Updates(updates)
	if res.Error != nil {
		return errors.Wrap(res.Error, "update order")
	}
	if res.RowsAffected == 0 {
		return domain.NewConflict(domain.MsgStatusChanged)
	}
	return nil
}

func (s *OrderHandler) statusChanged(ctx context.Context, order *models.Order, prev, next domain.OrderStatus) {
	if err := s.publisher.Publish(ctx, events.Event{
		EventType:  events.EventOrderStatusChanged,
		UserID:     order.UserID,
		OrderID:    order.ID,
		Status:     string(next),
		PrevStatus: string(prev),
		Amount:     order.TotalAmount.StringFixed(2),
		Timestamp:  time.Now(),
	}); err != nil {
		s.logger.Warn("publish order event", zap.Int64("order_id", order.ID), zap.Error(err))
	}

	s.logger.Info("order status changed",
		zap.Int64("order_id", order.ID),
		zap.String("from", string(prev)),
		zap.String("to", string(next)))
}
