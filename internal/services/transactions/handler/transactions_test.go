package handler_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"storefront-system/internal/database/models"
	"storefront-system/internal/domain"
	"storefront-system/internal/events"
	"storefront-system/internal/services/transactions/handler"
	"storefront-system/internal/testutil"
)

type fixture struct {
	db        *gorm.DB
	txns      *handler.TransactionHandler
	publisher *testutil.RecordingPublisher
	owner     domain.Actor
	other     domain.Actor
	admin     domain.Actor
}

func newFixture(t *testing.T, gateway handler.PaymentGateway) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	publisher := &testutil.RecordingPublisher{}
	owner := testutil.CreateUser(t, db, "owner@example.com", domain.RoleUser)
	other := testutil.CreateUser(t, db, "other@example.com", domain.RoleUser)
	admin := testutil.CreateUser(t, db, "admin@example.com", domain.RoleAdmin)

	return &fixture{
		db:        db,
		txns:      handler.NewTransactionHandler(db, publisher, zap.NewNop(), gateway),
		publisher: publisher,
		owner:     owner.Actor(),
		other:     other.Actor(),
		admin:     admin.Actor(),
	}
}

func (f *fixture) create(t *testing.T, actor domain.Actor, amount, method string) *models.Transaction {
	t.Helper()
	txn, err := f.txns.CreateTransaction(context.Background(), actor, handler.CreateTransactionRequest{
		Amount:        decimal.RequireFromString(amount),
		PaymentMethod: method,
	})
	require.NoError(t, err)
	return txn
}

type panicGateway struct{}

func (panicGateway) Charge(context.Context, models.Transaction, handler.PaymentData) (*handler.ChargeResult, error) {
	panic("card reader exploded")
}

func TestCreateTransactionDefaults(t *testing.T) {
	f := newFixture(t, nil)

	txn := f.create(t, f.owner, "49.999", "credit_card")
	assert.Equal(t, "50.00", txn.Amount.StringFixed(2))
	assert.Equal(t, domain.DefaultCurrency, txn.Currency)
	assert.Equal(t, domain.GatewayManual, txn.PaymentGateway)
	assert.Equal(t, domain.TransactionPending, txn.Status)
	assert.NotEmpty(t, txn.TransactionID)
	assert.Nil(t, txn.CompletedAt)
}

func TestCreateTransactionValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	order := models.Order{UserID: f.other.UserID, Status: domain.OrderPending, TotalAmount: decimal.NewFromInt(10), ShippingAddress: "x"}
	require.NoError(t, f.db.Create(&order).Error)

	tests := []struct {
		name string
		req  handler.CreateTransactionRequest
		kind domain.Kind
	}{
		{"zero amount", handler.CreateTransactionRequest{Amount: decimal.Zero, PaymentMethod: "paypal"}, domain.KindValidation},
		{"negative amount", handler.CreateTransactionRequest{Amount: decimal.NewFromInt(-3), PaymentMethod: "paypal"}, domain.KindValidation},
		{"unknown method", handler.CreateTransactionRequest{Amount: decimal.NewFromInt(3), PaymentMethod: "barter"}, domain.KindValidation},
		{"unknown gateway", handler.CreateTransactionRequest{Amount: decimal.NewFromInt(3), PaymentMethod: "paypal", PaymentGateway: "bitpay"}, domain.KindValidation},
		{"bad currency", handler.CreateTransactionRequest{Amount: decimal.NewFromInt(3), PaymentMethod: "paypal", Currency: "dollars"}, domain.KindValidation},
		{"order of another user", handler.CreateTransactionRequest{Amount: decimal.NewFromInt(3), PaymentMethod: "paypal", OrderID: &order.ID}, domain.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.txns.CreateTransaction(ctx, f.owner, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, domain.KindOf(err))
		})
	}

	_, err := f.txns.CreateTransaction(ctx, f.admin, handler.CreateTransactionRequest{
		Amount: decimal.NewFromInt(3), PaymentMethod: "paypal", OrderID: &order.ID,
	})
	assert.NoError(t, err, "admins may attach any order")
}

func TestUpdateStatusLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	txn := f.create(t, f.owner, "20", "paypal")

	failed, err := f.txns.UpdateStatus(ctx, f.owner, txn.TransactionID, "failed", "card declined")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionFailed, failed.Status)
	require.NotNil(t, failed.Notes)
	assert.Equal(t, "Failed: card declined", *failed.Notes)

	retried, err := f.txns.UpdateStatus(ctx, f.owner, txn.TransactionID, "pending", "")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionPending, retried.Status)

	completed, err := f.txns.UpdateStatus(ctx, f.admin, txn.TransactionID, "completed", "")
	require.NoError(t, err)
	require.NotNil(t, completed.CompletedAt)

	refunded, err := f.txns.UpdateStatus(ctx, f.admin, txn.TransactionID, "refunded", "damaged")
	require.NoError(t, err)
	assert.Equal(t, "Failed: card declined\nRefunded: damaged", *refunded.Notes)

	_, err = f.txns.UpdateStatus(ctx, f.admin, txn.TransactionID, "pending", "")
	require.Error(t, err)
	assert.Equal(t, "Cannot change status from refunded to pending", err.Error())

	assert.Equal(t, []string{
		events.EventTransactionStatusChanged,
		events.EventTransactionStatusChanged,
		events.EventTransactionStatusChanged,
		events.EventTransactionStatusChanged,
	}, f.publisher.Types())
}

func TestUpdateStatusVisibility(t *testing.T) {
	f := newFixture(t, nil)
	txn := f.create(t, f.owner, "20", "paypal")

	_, err := f.txns.UpdateStatus(context.Background(), f.other, txn.TransactionID, "cancelled", "")
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
	assert.Equal(t, domain.MsgTransactionNotFound, err.Error())
}

func TestProcessPaymentCompletes(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	txn := f.create(t, f.owner, "75.50", "credit_card")

	paid, err := f.txns.ProcessPayment(ctx, f.owner, txn.TransactionID, handler.PaymentData{Reference: "ref-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionCompleted, paid.Status)
	require.NotNil(t, paid.CompletedAt)
	require.NotNil(t, paid.ExternalTransactionID)
	assert.Equal(t, "ext_"+txn.TransactionID, *paid.ExternalTransactionID)
	require.NotNil(t, paid.PaymentReference)
	assert.Equal(t, "ref-1", *paid.PaymentReference)
	assert.Equal(t, "success", paid.GatewayResponse["status"])

	assert.Equal(t, []string{events.EventTransactionStatusChanged, events.EventPaymentProcessed}, f.publisher.Types())

	_, err = f.txns.ProcessPayment(ctx, f.owner, txn.TransactionID, handler.PaymentData{})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindValidation))
	assert.Equal(t, "Transaction is already completed", err.Error())
}

func TestProcessPaymentOnlyForOwner(t *testing.T) {
	f := newFixture(t, nil)
	txn := f.create(t, f.owner, "10", "credit_card")

	_, err := f.txns.ProcessPayment(context.Background(), f.admin, txn.TransactionID, handler.PaymentData{})
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestProcessPaymentGatewayPanicMarksFailed(t *testing.T) {
	f := newFixture(t, panicGateway{})
	ctx := context.Background()
	txn := f.create(t, f.owner, "10", "credit_card")

	_, err := f.txns.ProcessPayment(ctx, f.owner, txn.TransactionID, handler.PaymentData{})
	require.Error(t, err)
	de, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindValidation, de.Kind)
	assert.Equal(t, domain.MsgPaymentFailed, de.Message)
	assert.Equal(t, "card reader exploded", de.Fields["error"])

	stored, err := f.txns.GetByTransactionID(ctx, f.owner, txn.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionFailed, stored.Status)
	require.NotNil(t, stored.Notes)
	assert.Equal(t, "Failed: card reader exploded", *stored.Notes)
}

func TestListAndSearchFilters(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.create(t, f.owner, "10", "credit_card")
	f.create(t, f.owner, "120", "paypal")
	big := f.create(t, f.owner, "300", "paypal")
	f.create(t, f.other, "999", "paypal")
	_, err := f.txns.UpdateStatus(ctx, f.owner, big.TransactionID, "cancelled", "")
	require.NoError(t, err)

	page, err := f.txns.ListTransactions(ctx, f.owner, handler.TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, big.ID, page.Transactions[0].ID, "newest first")

	paypal, err := f.txns.ListTransactions(ctx, f.owner, handler.TransactionFilter{PaymentMethod: domain.PaymentPayPal})
	require.NoError(t, err)
	assert.Equal(t, int64(2), paypal.Total)

	lo := decimal.NewFromInt(100)
	hi := decimal.NewFromInt(200)
	ranged, err := f.txns.Search(ctx, f.owner, handler.TransactionFilter{AmountMin: &lo, AmountMax: &hi})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.True(t, ranged[0].Amount.Equal(decimal.NewFromInt(120)))

	cancelled, err := f.txns.Search(ctx, f.owner, handler.TransactionFilter{Status: domain.TransactionCancelled})
	require.NoError(t, err)
	require.Len(t, cancelled, 1)

	tomorrow := time.Now().Add(24 * time.Hour)
	future, err := f.txns.Search(ctx, f.owner, handler.TransactionFilter{DateFrom: &tomorrow})
	require.NoError(t, err)
	assert.Empty(t, future)

	_, err = f.txns.ListAllTransactions(ctx, f.owner, handler.TransactionFilter{})
	assert.True(t, domain.IsKind(err, domain.KindPermission))

	all, err := f.txns.ListAllTransactions(ctx, f.admin, handler.TransactionFilter{PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(4), all.Total)
	assert.Len(t, all.Transactions, 2)
}

func TestStats(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	a := f.create(t, f.owner, "10.25", "credit_card")
	b := f.create(t, f.owner, "20", "paypal")
	f.create(t, f.owner, "5", "paypal")
	c := f.create(t, f.other, "100", "bank_transfer")

	_, err := f.txns.ProcessPayment(ctx, f.owner, a.TransactionID, handler.PaymentData{})
	require.NoError(t, err)
	_, err = f.txns.ProcessPayment(ctx, f.owner, b.TransactionID, handler.PaymentData{})
	require.NoError(t, err)
	_, err = f.txns.UpdateStatus(ctx, f.other, c.TransactionID, "failed", "")
	require.NoError(t, err)

	stats, err := f.txns.Stats(ctx, f.owner)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalTransactions)
	assert.Equal(t, int64(2), stats.CompletedTransactions)
	assert.Equal(t, int64(1), stats.PendingTransactions)
	assert.Zero(t, stats.FailedTransactions)
	assert.True(t, stats.TotalAmount.Equal(decimal.RequireFromString("30.25")), "got %s", stats.TotalAmount)

	_, err = f.txns.AdminStats(ctx, f.owner)
	assert.True(t, domain.IsKind(err, domain.KindPermission))

	admin, err := f.txns.AdminStats(ctx, f.admin)
	require.NoError(t, err)
	assert.Equal(t, int64(4), admin.TotalTransactions)
	assert.Equal(t, int64(1), admin.FailedTransactions)
	assert.Equal(t, int64(2), admin.ByPaymentMethod[domain.PaymentPayPal])
	assert.Equal(t, int64(1), admin.ByPaymentMethod[domain.PaymentBankTransfer])
	assert.Equal(t, int64(4), admin.ByGateway[domain.GatewayManual])
	assert.Contains(t, admin.ByGateway, domain.GatewayStripe)
}
