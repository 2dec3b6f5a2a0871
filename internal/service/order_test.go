package service

import (
	"context"
	"testing"
	"time"

	"github.com/duocun/marketplace/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderService_PlaceOrders_CashSettlesImmediately(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	saved, err := env.orders.PlaceOrders(ctx, []*models.Order{testOrder("p1", 2, models.PaymentMethodCash)})
	require.NoError(t, err)
	require.Len(t, saved, 1)

	order := saved[0]
	assert.Equal(t, models.OrderStatusNew, order.Status)
	assert.Equal(t, models.PaymentStatusUnpaid, order.PaymentStatus)
	assert.NotEmpty(t, order.PaymentID)
	assert.Equal(t, "000001", order.Code)

	// ledger pair recorded at placement
	trs, err := env.ledger.ListOrderEntries(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, trs, 2)
	assert.Equal(t, 6.0, accountBalance(t, env.store, "merchant1"))
	assert.Equal(t, -10.0, accountBalance(t, env.store, "client1"))
	assert.Equal(t, 4.0, accountBalance(t, env.store, testSystem.CashID))

	// cash never touches stock
	assert.Equal(t, 10, stockQuantity(t, env.store, "p1"))
}

func TestOrderService_PlaceOrders_DeferredStaysTemp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	saved, err := env.orders.PlaceOrders(ctx, []*models.Order{testOrder("p1", 2, models.PaymentMethodWechat)})
	require.NoError(t, err)
	require.Len(t, saved, 1)

	order := saved[0]
	assert.Equal(t, models.OrderStatusTemp, order.Status)
	assert.Equal(t, models.PaymentStatusUnpaid, order.PaymentStatus)

	// no ledger movement and no stock movement before the gateway confirms
	trs, err := env.ledger.ListOrderEntries(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, trs)
	assert.Equal(t, 10, stockQuantity(t, env.store, "p1"))
	assert.Equal(t, 0.0, accountBalance(t, env.store, "client1"))
}

func TestOrderService_PlaceOrders_SharesPaymentID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	o1 := testOrder("p1", 1, models.PaymentMethodWechat)
	o2 := testOrder("p3", 1, models.PaymentMethodWechat)

	saved, err := env.orders.PlaceOrders(ctx, []*models.Order{o1, o2})
	require.NoError(t, err)
	require.Len(t, saved, 2)

	assert.Equal(t, saved[0].PaymentID, saved[1].PaymentID)
	assert.NotEqual(t, saved[0].Code, saved[1].Code)
}

func TestOrderService_PlaceOrders_DedupesDoubleSubmit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	o1 := testOrder("p1", 2, models.PaymentMethodWechat)
	o2 := testOrder("p1", 2, models.PaymentMethodWechat)

	saved, err := env.orders.PlaceOrders(ctx, []*models.Order{o1, o2})
	require.NoError(t, err)
	assert.Len(t, saved, 1)
}

func TestOrderService_PlaceOrders_ValidationPersistsNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(o *models.Order)
	}{
		{
			name:   "expired_delivery_date",
			mutate: func(o *models.Order) { o.DeliverDate = "2020-01-01" },
		},
		{
			name:   "empty_items",
			mutate: func(o *models.Order) { o.Items = nil },
		},
		{
			name: "unknown_product",
			mutate: func(o *models.Order) {
				o.Items = []models.OrderItem{{ProductID: "nope", Quantity: 1}}
			},
		},
		{
			name: "out_of_stock",
			mutate: func(o *models.Order) {
				o.Items = []models.OrderItem{{ProductID: "p1", Quantity: 999}}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			good := testOrder("p1", 1, models.PaymentMethodCash)
			bad := testOrder("p3", 1, models.PaymentMethodCash)
			tt.mutate(bad)

			_, err := env.orders.PlaceOrders(ctx, []*models.Order{good, bad})
			require.Error(t, err)

			// the valid order in the batch must not land either
			assert.Equal(t, 10, stockQuantity(t, env.store, "p1"))
			assert.Equal(t, 0.0, accountBalance(t, env.store, "client1"))
		})
	}
}

func TestOrderService_PlaceOrders_ReportsOffendingOrderIndex(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	good := testOrder("p1", 1, models.PaymentMethodCash)
	bad := testOrder("p3", 1, models.PaymentMethodCash)
	bad.Items = []models.OrderItem{{ProductID: "nope", Quantity: 1}}

	_, err := env.orders.PlaceOrders(ctx, []*models.Order{good, bad})

	var notFound *models.ProductNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, 1, notFound.OrderIdx)
	assert.Equal(t, "nope", notFound.ProductID)
}

func TestOrderService_Cancel_NetsToZero(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	saved, err := env.orders.PlaceOrders(ctx, []*models.Order{testOrder("p1", 2, models.PaymentMethodCash)})
	require.NoError(t, err)
	orderID := saved[0].ID

	cancelled, err := env.orders.Cancel(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDeleted, cancelled.Status)

	// cached balances are back where they started
	assert.Equal(t, 0.0, accountBalance(t, env.store, "client1"))
	assert.Equal(t, 0.0, accountBalance(t, env.store, "merchant1"))
	assert.Equal(t, 0.0, accountBalance(t, env.store, testSystem.CashID))

	// all four entries are preserved but voided
	trs, err := env.ledger.ListOrderEntries(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, trs, 4)
	for _, tr := range trs {
		assert.Equal(t, models.TransactionStatusVoid, tr.Status)
	}

	// replay after cancellation agrees with the cache
	require.NoError(t, env.ledger.RebuildBalance(ctx, "client1"))
	assert.Equal(t, 0.0, accountBalance(t, env.store, "client1"))
}

func TestOrderService_Cancel_RejectsWrongState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	saved, err := env.orders.PlaceOrders(ctx, []*models.Order{testOrder("p1", 1, models.PaymentMethodWechat)})
	require.NoError(t, err)

	// TEMP order has no ledger effect yet, cancellation is refused
	_, err = env.orders.Cancel(ctx, saved[0].ID)
	var stateErr *models.CancelStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, models.OrderStatusTemp, stateErr.Status)
}

func TestOrderService_Cancel_UnknownOrder(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.orders.Cancel(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrDataNotFound)
}

func TestOrderService_Advance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	saved, err := env.orders.PlaceOrders(ctx, []*models.Order{testOrder("p1", 1, models.PaymentMethodCash)})
	require.NoError(t, err)
	orderID := saved[0].ID

	// NEW -> MERCHANT_CHECKED -> LOADED -> DONE is the normal flow
	for _, status := range []string{models.OrderStatusMerchantChecked, models.OrderStatusLoaded, models.OrderStatusDone} {
		order, err := env.orders.Advance(ctx, orderID, status)
		require.NoError(t, err)
		assert.Equal(t, status, order.Status)
	}

	// DONE is terminal
	_, err = env.orders.Advance(ctx, orderID, models.OrderStatusLoaded)
	var transErr *models.StatusTransitionError
	require.ErrorAs(t, err, &transErr)
	assert.Equal(t, models.OrderStatusDone, transErr.From)

	// deletion goes through Cancel, never Advance
	_, err = env.orders.Advance(ctx, orderID, models.OrderStatusDeleted)
	require.ErrorAs(t, err, &transErr)
}

func TestOrderService_ExpireTempOrders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	saved, err := env.orders.PlaceOrders(ctx, []*models.Order{testOrder("p1", 1, models.PaymentMethodWechat)})
	require.NoError(t, err)

	// negative ttl puts the cutoff in the future, every TEMP order is stale
	n, err := env.orders.ExpireTempOrders(ctx, -time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	order, err := env.store.GetOrder(ctx, saved[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDeleted, order.Status)
}
