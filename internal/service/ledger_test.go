package service

import (
	"context"
	"testing"

	"github.com/duocun/marketplace/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerService_InsertMovesBothBalances(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tr, err := env.ledger.Insert(ctx, &models.Transaction{
		FromID:     "merchant1",
		ToID:       testSystem.CashID,
		Amount:     30,
		ActionCode: models.ActionOrderFromMerchant.Code,
	})
	require.NoError(t, err)

	// from gains, to gives: the platform owes the merchant what it collected
	assert.Equal(t, 30.0, accountBalance(t, env.store, "merchant1"))
	assert.Equal(t, -30.0, accountBalance(t, env.store, testSystem.CashID))
	assert.Equal(t, 30.0, tr.FromBalance)
	assert.Equal(t, -30.0, tr.ToBalance)
}

func TestLedgerService_InsertMissingAccountIsSkipped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.ledger.Insert(ctx, &models.Transaction{
		FromID:     "ghost",
		ToID:       testSystem.CashID,
		Amount:     10,
		ActionCode: models.ActionOrderFromMerchant.Code,
	})
	require.ErrorIs(t, err, models.ErrDataNotFound)

	// nothing moved on the side that does exist
	assert.Equal(t, 0.0, accountBalance(t, env.store, testSystem.CashID))
}

func TestLedgerService_PlaceOrderEntriesAreZeroSum(t *testing.T) {
	env := newTestEnv(t)

	order := testOrder("p1", 2, models.PaymentMethodWechat)
	order.ID = "o1"

	entries := env.ledger.PlaceOrderEntries(order)
	require.Len(t, entries, 2)

	assert.Equal(t, "merchant1", entries[0].FromID)
	assert.Equal(t, testSystem.CashID, entries[0].ToID)
	assert.Equal(t, order.Cost, entries[0].Amount)
	assert.Equal(t, models.ActionOrderFromMerchant.Code, entries[0].ActionCode)

	assert.Equal(t, testSystem.CashID, entries[1].FromID)
	assert.Equal(t, "client1", entries[1].ToID)
	assert.Equal(t, order.Total, entries[1].Amount)
	assert.Equal(t, models.ActionOrderFromDuocun.Code, entries[1].ActionCode)
}

func TestLedgerService_RemoveOrderEntriesMirrorPlacement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := testOrder("p1", 2, models.PaymentMethodCash)
	order.ID = "o1"

	require.NoError(t, env.ledger.SaveTransactionsForPlaceOrder(ctx, order))
	require.NoError(t, env.ledger.SaveTransactionsForRemoveOrder(ctx, order))

	// placement and reversal cancel out on every account
	assert.Equal(t, 0.0, accountBalance(t, env.store, "client1"))
	assert.Equal(t, 0.0, accountBalance(t, env.store, "merchant1"))
	assert.Equal(t, 0.0, accountBalance(t, env.store, testSystem.CashID))

	// reversal merchant entry carries the item snapshot
	trs, err := env.ledger.ListOrderEntries(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, trs, 4)
}

func TestLedgerService_VoidExcludesFromReplay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := testOrder("p1", 2, models.PaymentMethodCash)
	order.ID = "o1"

	require.NoError(t, env.ledger.SaveTransactionsForPlaceOrder(ctx, order))
	require.NoError(t, env.ledger.VoidOrderEntries(ctx, "o1"))

	// cached balance still shows the movement until rebuilt
	assert.Equal(t, -10.0, accountBalance(t, env.store, "client1"))

	require.NoError(t, env.ledger.RebuildBalance(ctx, "client1"))
	assert.Equal(t, 0.0, accountBalance(t, env.store, "client1"))
}

func TestLedgerService_RebuildBalanceRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	amounts := []float64{10.10, 4.35, 7.77}
	for _, a := range amounts {
		_, err := env.ledger.Insert(ctx, &models.Transaction{
			FromID:     testSystem.CashID,
			ToID:       "client1",
			Amount:     a,
			ActionCode: models.ActionOrderFromDuocun.Code,
		})
		require.NoError(t, err)
	}

	before, err := env.ledger.Balance(ctx, "client1")
	require.NoError(t, err)

	// rebuilding a healthy ledger must be a no-op
	require.NoError(t, env.ledger.RebuildBalance(ctx, "client1"))

	after, err := env.ledger.Balance(ctx, "client1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, -22.22, after)
}

func TestLedgerService_TopUpEntryRouting(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		method     string
		wantBank   string
		wantAction string
	}{
		{"card_goes_to_card_bank", models.PaymentMethodCreditCard, testSystem.CardBankID, models.ActionAddCreditByCard.Code},
		{"wechat_goes_to_wechat_bank", models.PaymentMethodWechat, testSystem.WechatBankID, models.ActionAddCreditByWechat.Code},
		{"cash_goes_to_cash_bank", models.PaymentMethodCash, testSystem.CashID, models.ActionAddCreditByCash.Code},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			credit := &models.ClientCredit{
				AccountID:     "client1",
				AccountName:   "Client One",
				PaymentMethod: tt.method,
				PaymentID:     "pay1",
			}
			tr := env.ledger.TopUpEntry(credit, 25)

			assert.Equal(t, "client1", tr.FromID)
			assert.Equal(t, tt.wantBank, tr.ToID)
			assert.Equal(t, tt.wantAction, tr.ActionCode)
			assert.Equal(t, 25.0, tr.Amount)
		})
	}
}
