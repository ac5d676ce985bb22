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

const CheckoutTransactionDescription = "Auto-created at checkout"

type CheckoutRequest struct {
	ShippingAddress  string
	BillingAddress   *string
	Notes            *string
	PaymentMethod    string
	PaymentGateway   string
	Currency         string
	PaymentReference *string
}

type CheckoutResult struct {
	Order       *models.Order
	Transaction *models.Transaction
}

type paymentTerms struct {
	method   domain.PaymentMethod
	gateway  domain.PaymentGateway
	currency string
}

func (r CheckoutRequest) paymentTerms() (*paymentTerms, error) {
	if strings.TrimSpace(r.PaymentMethod) == "" {
		return nil, nil
	}
	method, err := domain.ParsePaymentMethod(r.PaymentMethod)
	if err != nil {
		return nil, err
	}
	gateway, err := domain.ParsePaymentGateway(r.PaymentGateway)
	if err != nil {
		return nil, err
	}
	currency, err := domain.NormalizeCurrency(r.Currency)
	if err != nil {
		return nil, err
	}
	return &paymentTerms{method: method, gateway: gateway, currency: currency}, nil
}

// Checkout turns the actor's active cart into a pending order, optionally with
// a pending transaction for its total. Every write happens in one database
// transaction; the cart flips to checked_out only if it was still active.
func (s *CartHandler) Checkout(ctx context.Context, actor domain.Actor, cartID int64, req CheckoutRequest) (*CheckoutResult, error) {
	var order models.Order
	var txn *models.Transaction

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cart models.Cart
		if err := preloadCart(tx).Where("id = ? AND user_id = ?", cartID, actor.UserID).First(&cart).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewNotFound(domain.MsgCartNotFound)
			}
			return errors.Wrap(err, "get cart")
		}

		if cart.Status == domain.CartCheckedOut {
			return domain.NewConflict(domain.MsgCartCheckedOut)
		}
		shipping := strings.TrimSpace(req.ShippingAddress)
		if shipping == "" {
			return domain.NewValidation(domain.MsgShippingAddressRequired).
				WithField("shipping_address", []string{"This field is required."})
		}
		if len(cart.Items) == 0 {
			return domain.NewValidation(domain.MsgCartEmpty)
		}

		terms, err := req.paymentTerms()
		if err != nil {
			return err
		}

		items := make([]models.OrderItem, 0, len(cart.Items))
		total := decimal.Zero
		for _, line := range cart.Items {
			unit := domain.Freeze(line.LivePrice())
			items = append(items, models.OrderItem{
				CatalogItemID: line.CatalogItemID,
				Quantity:      line.Quantity,
				UnitPrice:     unit,
			})
			total = total.Add(unit.Total(line.Quantity))
		}

		order = models.Order{
			UserID:          actor.UserID,
			Status:          domain.OrderPending,
			TotalAmount:     total,
			ShippingAddress: shipping,
			BillingAddress:  req.BillingAddress,
			Notes:           req.Notes,
		}
		if err := tx.Create(&order).Error; err != nil {
			return errors.Wrap(err, "create order")
		}

		for i := range items {
			items[i].OrderID = order.ID
			if err := tx.Create(&items[i]).Error; err != nil {
				return errors.Wrap(err, "create order item")
			}
		}

		if terms != nil {
			description := CheckoutTransactionDescription
			txn = &models.Transaction{
				UserID:           actor.UserID,
				OrderID:          &order.ID,
				Amount:           total,
				Currency:         terms.currency,
				Status:           domain.TransactionPending,
				PaymentMethod:    terms.method,
				PaymentGateway:   terms.gateway,
				PaymentReference: req.PaymentReference,
				Description:      &description,
			}
			if err := tx.Create(txn).Error; err != nil {
				return errors.Wrap(err, "create transaction")
			}
		}

		res := tx.Model(&models.Cart{}).
			Where("id = ? AND status = ?", cart.ID, domain.CartActive).
			Update("status", domain.CartCheckedOut)
		if res.Error != nil {
			return errors.Wrap(res.Error, "update cart status")
		}
		if res.RowsAffected == 0 {
			return domain.NewConflict(domain.MsgCartCheckedOut)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("order_items.id ASC") }).
		Preload("Items.CatalogItem").
		First(&order, order.ID).Error; err != nil {
		return nil, errors.Wrap(err, "reload order")
	}

	event := events.Event{
		EventType: events.EventOrderCreated,
		UserID:    order.UserID,
		OrderID:   order.ID,
		Status:    string(order.Status),
		Amount:    order.TotalAmount.StringFixed(2),
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"cart_id":    cartID,
			"item_count": len(order.Items),
		},
	}
	if txn != nil {
		event.TransactionID = txn.TransactionID
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish order event", zap.Int64("order_id", order.ID), zap.Error(err))
	}

	s.logger.Info("checkout completed",
		zap.Int64("cart_id", cartID),
		zap.Int64("order_id", order.ID),
		zap.String("total", order.TotalAmount.StringFixed(2)))

	return &CheckoutResult{Order: &order, Transaction: txn}, nil
}
