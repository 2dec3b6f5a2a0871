package service

import (
	"context"
	"testing"

	"github.com/duocun/marketplace/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func placeWechatOrder(t *testing.T, env *testEnv, qty int) *models.Order {
	t.Helper()
	saved, err := env.orders.PlaceOrders(context.Background(), []*models.Order{testOrder("p1", qty, models.PaymentMethodWechat)})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	return saved[0]
}

func TestSettlementService_ProcessAfterPay_OrderBatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := placeWechatOrder(t, env, 2)

	err := env.settlement.ProcessAfterPay(ctx, order.PaymentID, models.ActionPayByWechat.Code, order.Total, "ch_1")
	require.NoError(t, err)

	// order flipped NEW/PAID
	settled, err := env.store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusNew, settled.Status)
	assert.Equal(t, models.PaymentStatusPaid, settled.PaymentStatus)

	// stock decremented on confirmation
	assert.Equal(t, 8, stockQuantity(t, env.store, "p1"))

	// debit pair plus the gateway credit: client owes the total and has paid it
	assert.Equal(t, 0.0, accountBalance(t, env.store, "client1"))
	assert.Equal(t, 6.0, accountBalance(t, env.store, "merchant1"))
	assert.Equal(t, -10.0, accountBalance(t, env.store, testSystem.WechatBankID))
	assert.Equal(t, 4.0, accountBalance(t, env.store, testSystem.CashID))
}

func TestSettlementService_ProcessAfterPay_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := placeWechatOrder(t, env, 2)

	require.NoError(t, env.settlement.ProcessAfterPay(ctx, order.PaymentID, models.ActionPayByWechat.Code, order.Total, "ch_1"))

	clientAfter := accountBalance(t, env.store, "client1")
	stockAfter := stockQuantity(t, env.store, "p1")

	// redelivered notification changes nothing, no double decrement
	require.NoError(t, env.settlement.ProcessAfterPay(ctx, order.PaymentID, models.ActionPayByWechat.Code, order.Total, "ch_1"))

	assert.Equal(t, clientAfter, accountBalance(t, env.store, "client1"))
	assert.Equal(t, stockAfter, stockQuantity(t, env.store, "p1"))

	trs, err := env.ledger.ListOrderEntries(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, trs, 2)
}

func TestSettlementService_ProcessAfterPay_ForcesStockNegative(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// stock is fine at placement time
	order := placeWechatOrder(t, env, 8)

	// another sale drains the shelf before the gateway confirms
	require.NoError(t, env.inventory.Reserve(ctx, []models.OrderItem{{ProductID: "p1", Quantity: 5}}, false))

	// payment moved, the deficit is recorded rather than rejected
	require.NoError(t, env.settlement.ProcessAfterPay(ctx, order.PaymentID, models.ActionPayByWechat.Code, order.Total, "ch_1"))

	assert.Equal(t, -3, stockQuantity(t, env.store, "p1"))

	settled, err := env.store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, settled.PaymentStatus)
}

func TestSettlementService_ProcessAfterPay_CreditTopUp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	credit, err := env.settlement.RequestCredit(ctx, &models.ClientCredit{
		AccountID:     "client1",
		AccountName:   "Client One",
		Amount:        50,
		PaymentMethod: models.PaymentMethodCreditCard,
		PaymentID:     "pay-credit-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusUnpaid, credit.Status)

	err = env.settlement.ProcessAfterPay(ctx, "pay-credit-1", models.ActionAddCreditByCard.Code, 50, "ch_2")
	require.NoError(t, err)

	// client balance goes up, card bank holds the counterweight
	assert.Equal(t, 50.0, accountBalance(t, env.store, "client1"))
	assert.Equal(t, -50.0, accountBalance(t, env.store, testSystem.CardBankID))

	paid, err := env.store.GetByPaymentID(ctx, "pay-credit-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, paid.Status)

	// redelivery is a no-op once the credit is PAID
	require.NoError(t, env.settlement.ProcessAfterPay(ctx, "pay-credit-1", models.ActionAddCreditByCard.Code, 50, "ch_2"))
	assert.Equal(t, 50.0, accountBalance(t, env.store, "client1"))
}

func TestSettlementService_ProcessAfterPay_UnknownPaymentIsDropped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// neither orders nor credit: logged and swallowed
	err := env.settlement.ProcessAfterPay(ctx, "stale-pay", models.ActionPayByCard.Code, 10, "ch_3")
	require.NoError(t, err)

	assert.Equal(t, 0.0, accountBalance(t, env.store, "client1"))
}

func TestSettlementService_ProcessAfterPay_PartialAmount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := placeWechatOrder(t, env, 2)

	// gateway reports less than the order total; the ledger records what
	// actually moved and the client keeps owing the difference
	require.NoError(t, env.settlement.ProcessAfterPay(ctx, order.PaymentID, models.ActionPayByWechat.Code, 7.5, "ch_4"))

	assert.Equal(t, -2.5, accountBalance(t, env.store, "client1"))
	assert.Equal(t, -7.5, accountBalance(t, env.store, testSystem.WechatBankID))
}
