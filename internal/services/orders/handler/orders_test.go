package handler_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"storefront-system/internal/database/models"
	"storefront-system/internal/domain"
	"storefront-system/internal/events"
	"storefront-system/internal/services/orders/handler"
	"storefront-system/internal/testutil"
)

type fixture struct {
	db        *gorm.DB
	orders    *handler.OrderHandler
	publisher *testutil.RecordingPublisher
	owner     domain.Actor
	other     domain.Actor
	admin     domain.Actor
	item      models.CatalogItem
}

func newFixture(t *testing.T, transitions domain.OrderTransitions) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	publisher := &testutil.RecordingPublisher{}
	owner := testutil.CreateUser(t, db, "owner@example.com", domain.RoleUser)
	other := testutil.CreateUser(t, db, "other@example.com", domain.RoleUser)
	admin := testutil.CreateUser(t, db, "admin@example.com", domain.RoleAdmin)
	category := testutil.CreateCategory(t, db, "books")

	return &fixture{
		db:        db,
		orders:    handler.NewOrderHandler(db, publisher, zap.NewNop(), transitions),
		publisher: publisher,
		owner:     owner.Actor(),
		other:     other.Actor(),
		admin:     admin.Actor(),
		item:      testutil.CreateItem(t, db, category.ID, "dune", "20", "0", 5),
	}
}

func (f *fixture) createOrder(t *testing.T, userID int64, status domain.OrderStatus) models.Order {
	t.Helper()
	order := models.Order{
		UserID:          userID,
		Status:          status,
		TotalAmount:     decimal.NewFromInt(40),
		ShippingAddress: "1 Main St",
	}
	require.NoError(t, f.db.Create(&order).Error)
	line := models.OrderItem{
		OrderID:       order.ID,
		CatalogItemID: f.item.ID,
		Quantity:      2,
		UnitPrice:     domain.NewSnapshotPrice(decimal.NewFromInt(20)),
	}
	require.NoError(t, f.db.Create(&line).Error)
	return order
}

func TestListOrdersScopesToOwner(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.createOrder(t, f.owner.UserID, domain.OrderPending)
	f.createOrder(t, f.owner.UserID, domain.OrderShipped)
	f.createOrder(t, f.other.UserID, domain.OrderPending)

	page, err := f.orders.ListOrders(ctx, f.owner, handler.OrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Len(t, page.Orders, 2)
	assert.Equal(t, handler.DefaultPageSize, page.PageSize)
	for _, o := range page.Orders {
		assert.Equal(t, f.owner.UserID, o.UserID)
		require.Len(t, o.Items, 1)
		require.NotNil(t, o.Items[0].CatalogItem)
	}

	shipped, err := f.orders.ListOrders(ctx, f.owner, handler.OrderFilter{Status: domain.OrderShipped})
	require.NoError(t, err)
	assert.Equal(t, int64(1), shipped.Total)

	paged, err := f.orders.ListOrders(ctx, f.owner, handler.OrderFilter{Page: 2, PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), paged.Total)
	assert.Len(t, paged.Orders, 1)
}

func TestListAllOrdersRequiresAdmin(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.createOrder(t, f.owner.UserID, domain.OrderPending)
	f.createOrder(t, f.other.UserID, domain.OrderPending)

	_, err := f.orders.ListAllOrders(ctx, f.owner, handler.OrderFilter{})
	assert.True(t, domain.IsKind(err, domain.KindPermission))

	page, err := f.orders.ListAllOrders(ctx, f.admin, handler.OrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	byUser, err := f.orders.ListAllOrders(ctx, f.admin, handler.OrderFilter{UserID: &f.other.UserID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), byUser.Total)
}

func TestGetOrderVisibility(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	order := f.createOrder(t, f.owner.UserID, domain.OrderPending)

	_, err := f.orders.GetOrder(ctx, f.other, order.ID)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
	assert.Equal(t, domain.MsgOrderNotFound, err.Error())

	got, err := f.orders.GetOrder(ctx, f.admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
}

func TestUpdateOrderFields(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	order := f.createOrder(t, f.owner.UserID, domain.OrderPending)

	shipping := "99 New Road"
	notes := "leave at the door"
	updated, err := f.orders.UpdateOrder(ctx, f.owner, order.ID, handler.OrderPatch{
		ShippingAddress: &shipping,
		Notes:           &notes,
	})
	require.NoError(t, err)
	assert.Equal(t, shipping, updated.ShippingAddress)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, notes, *updated.Notes)

	blank := "  "
	_, err = f.orders.UpdateOrder(ctx, f.owner, order.ID, handler.OrderPatch{ShippingAddress: &blank})
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestUpdateOrderFieldsOnlyWhilePending(t *testing.T) {
	f := newFixture(t, nil)
	order := f.createOrder(t, f.owner.UserID, domain.OrderConfirmed)

	shipping := "99 New Road"
	_, err := f.orders.UpdateOrder(context.Background(), f.owner, order.ID, handler.OrderPatch{ShippingAddress: &shipping})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindValidation))
	assert.Equal(t, domain.MsgOrderNotEditable, err.Error())
}

func TestUpdateOrderStatusFromUserIsForbidden(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	order := f.createOrder(t, f.owner.UserID, domain.OrderPending)

	status := "confirmed"
	_, err := f.orders.UpdateOrder(ctx, f.owner, order.ID, handler.OrderPatch{Status: &status})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindPermission))
	assert.Equal(t, domain.MsgOrderStatusAdminOnly, err.Error())

	_, err = f.orders.UpdateStatus(ctx, f.owner, order.ID, "confirmed", "")
	assert.True(t, domain.IsKind(err, domain.KindPermission))

	stored, err := f.orders.GetOrder(ctx, f.owner, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPending, stored.Status)
}

func TestUpdateStatusFollowsTable(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	order := f.createOrder(t, f.owner.UserID, domain.OrderPending)

	for _, next := range []string{"confirmed", "processing", "shipped", "delivered"} {
		updated, err := f.orders.UpdateStatus(ctx, f.admin, order.ID, next, "")
		require.NoError(t, err, next)
		assert.Equal(t, domain.OrderStatus(next), updated.Status)
	}

	_, err := f.orders.UpdateStatus(ctx, f.admin, order.ID, "refunded", "")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindValidation))
	assert.Equal(t, "Cannot change status from delivered to refunded", err.Error())

	_, err = f.orders.UpdateStatus(ctx, f.admin, order.ID, "lost", "")
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	evts := f.publisher.Events()
	require.Len(t, evts, 4)
	assert.Equal(t, events.EventOrderStatusChanged, evts[0].EventType)
	assert.Equal(t, "pending", evts[0].PrevStatus)
	assert.Equal(t, "confirmed", evts[0].Status)
}

func TestUpdateStatusAppendsReason(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	order := f.createOrder(t, f.owner.UserID, domain.OrderPending)

	notes := "gift wrap"
	_, err := f.orders.UpdateOrder(ctx, f.owner, order.ID, handler.OrderPatch{Notes: &notes})
	require.NoError(t, err)

	status := "cancelled"
	updated, err := f.orders.UpdateOrder(ctx, f.admin, order.ID, handler.OrderPatch{Status: &status, Reason: "customer request"})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, updated.Status)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, "gift wrap\ncustomer request", *updated.Notes)

	_, err = f.orders.UpdateStatus(ctx, f.admin, order.ID, "pending", "")
	assert.True(t, domain.IsKind(err, domain.KindValidation), "cancelled is terminal")
}

func TestUpdateOrderWithRejectedStatusWritesNothing(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	order := f.createOrder(t, f.owner.UserID, domain.OrderPending)

	notes := "edited"
	status := "delivered"
	_, err := f.orders.UpdateOrder(ctx, f.admin, order.ID, handler.OrderPatch{Notes: &notes, Status: &status})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindValidation))
	assert.Equal(t, "Cannot change status from pending to delivered", err.Error())

	stored, err := f.orders.GetOrder(ctx, f.admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPending, stored.Status)
	assert.Nil(t, stored.Notes)
	assert.Empty(t, f.publisher.Events())
}

func TestUpdateOrderFieldsAndStatusTogether(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	order := f.createOrder(t, f.owner.UserID, domain.OrderPending)

	shipping := "99 New Road"
	notes := "call first"
	status := "confirmed"
	updated, err := f.orders.UpdateOrder(ctx, f.admin, order.ID, handler.OrderPatch{
		ShippingAddress: &shipping,
		Notes:           &notes,
		Status:          &status,
		Reason:          "paid by phone",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderConfirmed, updated.Status)
	assert.Equal(t, shipping, updated.ShippingAddress)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, "call first\npaid by phone", *updated.Notes)
	assert.Equal(t, []string{events.EventOrderStatusChanged}, f.publisher.Types())
}

func TestRefundsCanBeEnabled(t *testing.T) {
	f := newFixture(t, domain.DefaultOrderTransitions().WithRefunds())
	order := f.createOrder(t, f.owner.UserID, domain.OrderDelivered)

	updated, err := f.orders.UpdateStatus(context.Background(), f.admin, order.ID, "refunded", "damaged")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderRefunded, updated.Status)
	assert.True(t, f.orders.Transitions().IsTerminal(domain.OrderRefunded))
}
