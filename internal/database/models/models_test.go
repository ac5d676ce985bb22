package models_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-system/internal/database/models"
	"storefront-system/internal/domain"
	"storefront-system/internal/testutil"
)

func TestTransactionDefaultsOnCreate(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "buyer@example.com", domain.RoleUser)

	txn := models.Transaction{
		UserID:        user.ID,
		Amount:        decimal.RequireFromString("12.50"),
		PaymentMethod: domain.PaymentCreditCard,
	}
	require.NoError(t, db.Create(&txn).Error)

	assert.Len(t, txn.TransactionID, 36)
	assert.Equal(t, "USD", txn.Currency)
	assert.Equal(t, domain.GatewayManual, txn.PaymentGateway)
	assert.Equal(t, domain.TransactionPending, txn.Status)
	assert.True(t, txn.IsPending())

	other := models.Transaction{UserID: user.ID, Amount: decimal.NewFromInt(1), PaymentMethod: domain.PaymentPayPal}
	require.NoError(t, db.Create(&other).Error)
	assert.NotEqual(t, txn.TransactionID, other.TransactionID)
}

func TestGatewayResponseRoundTrip(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "buyer@example.com", domain.RoleUser)

	txn := models.Transaction{
		UserID:          user.ID,
		Amount:          decimal.NewFromInt(5),
		PaymentMethod:   domain.PaymentCreditCard,
		GatewayResponse: models.JSONMap{"status": "success", "gateway_transaction_id": "ext_1"},
	}
	require.NoError(t, db.Create(&txn).Error)

	var loaded models.Transaction
	require.NoError(t, db.First(&loaded, txn.ID).Error)
	assert.Equal(t, "success", loaded.GatewayResponse["status"])
	assert.Equal(t, "ext_1", loaded.GatewayResponse["gateway_transaction_id"])
}

func TestOrderItemTotalIsDerivedFromSnapshot(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "buyer@example.com", domain.RoleUser)
	category := testutil.CreateCategory(t, db, "brakes")
	item := testutil.CreateItem(t, db, category.ID, "pads", "100", "10", 5)

	order := models.Order{
		UserID:          user.ID,
		Status:          domain.OrderPending,
		TotalAmount:     decimal.NewFromInt(180),
		ShippingAddress: "1 Main St",
	}
	require.NoError(t, db.Create(&order).Error)

	line := models.OrderItem{
		OrderID:       order.ID,
		CatalogItemID: item.ID,
		Quantity:      2,
		UnitPrice:     domain.NewSnapshotPrice(item.DiscountedPrice()),
	}
	require.NoError(t, db.Create(&line).Error)
	assert.True(t, line.Total.Equal(decimal.NewFromInt(180)))

	bad := models.OrderItem{OrderID: order.ID, CatalogItemID: item.ID, Quantity: 0}
	err := db.Create(&bad).Error
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestCartLivePricing(t *testing.T) {
	pads := &models.CatalogItem{Price: decimal.NewFromInt(100), Discount: decimal.NewFromInt(10)}
	oil := &models.CatalogItem{Price: decimal.NewFromInt(50), Discount: decimal.Zero}

	cart := models.Cart{
		Status: domain.CartActive,
		Items: []models.CartItem{
			{Quantity: 2, CatalogItem: pads},
			{Quantity: 1, CatalogItem: oil},
		},
	}
	assert.True(t, cart.IsActive())
	assert.True(t, cart.Subtotal().Equal(decimal.NewFromInt(230)))
	assert.Equal(t, int32(3), cart.ItemCount())

	pads.Discount = decimal.Zero
	assert.True(t, cart.Subtotal().Equal(decimal.NewFromInt(250)))
}

func TestCatalogItemAvailability(t *testing.T) {
	item := models.CatalogItem{Status: domain.ItemActive, Stock: 1}
	assert.True(t, item.IsAvailable())

	item.Stock = 0
	assert.False(t, item.IsAvailable())

	item.Stock = 3
	item.Status = domain.ItemInactive
	assert.False(t, item.IsAvailable())
}
