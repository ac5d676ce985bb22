package handler_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"storefront-system/internal/database/models"
	"storefront-system/internal/domain"
	"storefront-system/internal/events"
	"storefront-system/internal/services/cart/handler"
)

func (f *fixture) fillCart(t *testing.T) *models.Cart {
	t.Helper()
	ctx := context.Background()
	cart := f.activeCart(t)
	_, _, err := f.carts.AddItem(ctx, f.owner, cart.ID, f.pads.ID, 2)
	require.NoError(t, err)
	_, _, err = f.carts.AddItem(ctx, f.owner, cart.ID, f.oil.ID, 1)
	require.NoError(t, err)
	return cart
}

func TestCheckoutCreatesOrderAndTransaction(t *testing.T) {
	f := newFixture(t)
	cart := f.fillCart(t)

	result, err := f.carts.Checkout(context.Background(), f.owner, cart.ID, handler.CheckoutRequest{
		ShippingAddress: "  12 Nguyen Hue, District 1  ",
		PaymentMethod:   "credit_card",
		Currency:        "vnd",
	})
	require.NoError(t, err)

	order := result.Order
	assert.Equal(t, domain.OrderPending, order.Status)
	assert.Equal(t, "12 Nguyen Hue, District 1", order.ShippingAddress)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(250)), "total %s", order.TotalAmount)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "90.00", order.Items[0].UnitPrice.String())
	assert.True(t, order.Items[0].Total.Equal(decimal.NewFromInt(180)))
	assert.Equal(t, "70.00", order.Items[1].UnitPrice.String())

	txn := result.Transaction
	require.NotNil(t, txn)
	assert.Equal(t, domain.TransactionPending, txn.Status)
	assert.Equal(t, "VND", txn.Currency)
	assert.Equal(t, domain.GatewayManual, txn.PaymentGateway)
	assert.True(t, txn.Amount.Equal(order.TotalAmount))
	require.NotNil(t, txn.OrderID)
	assert.Equal(t, order.ID, *txn.OrderID)
	require.NotNil(t, txn.Description)
	assert.Equal(t, handler.CheckoutTransactionDescription, *txn.Description)

	var stored models.Cart
	require.NoError(t, f.db.Preload("Items").First(&stored, cart.ID).Error)
	assert.Equal(t, domain.CartCheckedOut, stored.Status)
	assert.Len(t, stored.Items, 2, "lines stay on the checked out cart")

	evts := f.publisher.Events()
	require.Len(t, evts, 1)
	assert.Equal(t, events.EventOrderCreated, evts[0].EventType)
	assert.Equal(t, order.ID, evts[0].OrderID)
	assert.Equal(t, "250.00", evts[0].Amount)
	assert.Equal(t, txn.TransactionID, evts[0].TransactionID)
}

func TestCheckoutWithoutPaymentMethodSkipsTransaction(t *testing.T) {
	f := newFixture(t)
	cart := f.fillCart(t)

	result, err := f.carts.Checkout(context.Background(), f.owner, cart.ID, handler.CheckoutRequest{
		ShippingAddress: "1 Main St",
	})
	require.NoError(t, err)
	assert.Nil(t, result.Transaction)

	var count int64
	require.NoError(t, f.db.Model(&models.Transaction{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCheckoutFailures(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, f *fixture) int64
		actor   func(f *fixture) domain.Actor
		req     handler.CheckoutRequest
		kind    domain.Kind
		message string
	}{
		{
			name:    "missing shipping address",
			prepare: func(t *testing.T, f *fixture) int64 { return f.fillCart(t).ID },
			req:     handler.CheckoutRequest{ShippingAddress: "   "},
			kind:    domain.KindValidation,
			message: domain.MsgShippingAddressRequired,
		},
		{
			name:    "empty cart",
			prepare: func(t *testing.T, f *fixture) int64 { return f.activeCart(t).ID },
			req:     handler.CheckoutRequest{ShippingAddress: "1 Main St"},
			kind:    domain.KindValidation,
			message: domain.MsgCartEmpty,
		},
		{
			name:    "unknown cart",
			prepare: func(t *testing.T, f *fixture) int64 { return 4242 },
			req:     handler.CheckoutRequest{ShippingAddress: "1 Main St"},
			kind:    domain.KindNotFound,
			message: domain.MsgCartNotFound,
		},
		{
			name:    "cart of another user",
			prepare: func(t *testing.T, f *fixture) int64 { return f.fillCart(t).ID },
			actor:   func(f *fixture) domain.Actor { return f.other },
			req:     handler.CheckoutRequest{ShippingAddress: "1 Main St"},
			kind:    domain.KindNotFound,
			message: domain.MsgCartNotFound,
		},
		{
			name:    "invalid payment method",
			prepare: func(t *testing.T, f *fixture) int64 { return f.fillCart(t).ID },
			req:     handler.CheckoutRequest{ShippingAddress: "1 Main St", PaymentMethod: "cheque"},
			kind:    domain.KindValidation,
			message: `"cheque" is not a valid choice.`,
		},
		{
			name:    "invalid currency",
			prepare: func(t *testing.T, f *fixture) int64 { return f.fillCart(t).ID },
			req:     handler.CheckoutRequest{ShippingAddress: "1 Main St", PaymentMethod: "paypal", Currency: "EURO"},
			kind:    domain.KindValidation,
			message: "Currency must be a 3-letter code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			cartID := tt.prepare(t, f)
			actor := f.owner
			if tt.actor != nil {
				actor = tt.actor(f)
			}

			_, err := f.carts.Checkout(context.Background(), actor, cartID, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, domain.KindOf(err))
			assert.Equal(t, tt.message, err.Error())

			var orders int64
			require.NoError(t, f.db.Model(&models.Order{}).Count(&orders).Error)
			assert.Zero(t, orders, "a failed checkout must not leave an order behind")
			assert.Empty(t, f.publisher.Events())
		})
	}
}

func (f *fixture) assertNothingCheckedOut(t *testing.T, cartID int64) {
	t.Helper()
	var orders, lines, txns int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&orders).Error)
	require.NoError(t, f.db.Model(&models.OrderItem{}).Count(&lines).Error)
	require.NoError(t, f.db.Model(&models.Transaction{}).Count(&txns).Error)
	assert.Zero(t, orders)
	assert.Zero(t, lines)
	assert.Zero(t, txns)

	var cart models.Cart
	require.NoError(t, f.db.First(&cart, cartID).Error)
	assert.Equal(t, domain.CartActive, cart.Status)
	assert.Empty(t, f.publisher.Events())
}

func TestCheckoutRollsBackWhenTransactionInsertFails(t *testing.T) {
	f := newFixture(t)
	cart := f.fillCart(t)

	errDiskFull := errors.New("disk full")
	require.NoError(t, f.db.Callback().Create().Before("gorm:create").
		Register("test:fail_transactions", func(db *gorm.DB) {
			if db.Statement.Table == "transactions" {
				db.AddError(errDiskFull)
			}
		}))

	_, err := f.carts.Checkout(context.Background(), f.owner, cart.ID, handler.CheckoutRequest{
		ShippingAddress: "1 Main St",
		PaymentMethod:   "paypal",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))

	f.assertNothingCheckedOut(t, cart.ID)
}

func TestCheckoutLosesRaceToConcurrentCheckout(t *testing.T) {
	f := newFixture(t)
	cart := f.fillCart(t)

	// Flip the cart inside the checkout transaction just before the
	// conditional update; the rollback undoes the flip as well.
	require.NoError(t, f.db.Callback().Update().Before("gorm:update").
		Register("test:concurrent_checkout", func(db *gorm.DB) {
			if db.Statement.Table != "carts" {
				return
			}
			db.AddError(db.Session(&gorm.Session{NewDB: true}).
				Exec("UPDATE carts SET status = ? WHERE id = ?", string(domain.CartCheckedOut), cart.ID).Error)
		}))

	_, err := f.carts.Checkout(context.Background(), f.owner, cart.ID, handler.CheckoutRequest{
		ShippingAddress: "1 Main St",
		PaymentMethod:   "paypal",
	})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindConflict))
	assert.Equal(t, domain.MsgCartCheckedOut, err.Error())

	f.assertNothingCheckedOut(t, cart.ID)
}

func TestCheckoutTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cart := f.fillCart(t)
	req := handler.CheckoutRequest{ShippingAddress: "1 Main St"}

	_, err := f.carts.Checkout(ctx, f.owner, cart.ID, req)
	require.NoError(t, err)

	_, err = f.carts.Checkout(ctx, f.owner, cart.ID, req)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindConflict))
	assert.Equal(t, domain.MsgCartCheckedOut, err.Error())

	var orders int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&orders).Error)
	assert.Equal(t, int64(1), orders)

	_, _, err = f.carts.AddItem(ctx, f.owner, cart.ID, f.pads.ID, 1)
	assert.True(t, domain.IsKind(err, domain.KindConflict))
}

func TestOrderSnapshotIgnoresLaterPriceChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cart := f.fillCart(t)

	result, err := f.carts.Checkout(ctx, f.owner, cart.ID, handler.CheckoutRequest{ShippingAddress: "1 Main St"})
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&models.CatalogItem{}).Where("id = ?", f.pads.ID).
		Updates(map[string]interface{}{"price": decimal.NewFromInt(500), "discount": decimal.Zero}).Error)

	var order models.Order
	require.NoError(t, f.db.Preload("Items").First(&order, result.Order.ID).Error)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(250)))
	for _, item := range order.Items {
		if item.CatalogItemID == f.pads.ID {
			assert.Equal(t, "90.00", item.UnitPrice.String())
		}
	}

	next := f.activeCart(t)
	assert.NotEqual(t, cart.ID, next.ID, "a new active cart is created after checkout")
	line, _, err := f.carts.AddItem(ctx, f.owner, next.ID, f.pads.ID, 1)
	require.NoError(t, err)
	assert.True(t, line.LivePrice().Unit.Equal(decimal.NewFromInt(500)))
}

func TestCheckoutPublishFailureIsNotReturned(t *testing.T) {
	f := newFixture(t)
	f.publisher.Err = errors.New("broker down")
	cart := f.fillCart(t)

	result, err := f.carts.Checkout(context.Background(), f.owner, cart.ID, handler.CheckoutRequest{ShippingAddress: "1 Main St"})
	require.NoError(t, err)
	assert.NotZero(t, result.Order.ID)
}
