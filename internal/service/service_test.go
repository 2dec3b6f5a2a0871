package service

import (
	"context"
	"testing"

	"github.com/duocun/marketplace/config"
	"github.com/duocun/marketplace/internal/models"
	"github.com/duocun/marketplace/internal/repository/memory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testSystem = config.SystemAccounts{
	CashID:         "cash-bank",
	CashName:       "Cash Bank",
	CardBankID:     "card-bank",
	CardBankName:   "Card Bank",
	WechatBankID:   "wechat-bank",
	WechatBankName: "Wechat Bank",
}

type testEnv struct {
	store      *memory.Store
	inventory  *InventoryService
	ledger     *LedgerService
	orders     *OrderService
	settlement *SettlementService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	logger := zap.NewNop()

	inventory := NewInventoryService(store)
	ledger := NewLedgerService(store, store, testSystem, logger)
	orders := NewOrderService(store, inventory, ledger, nil, logger)
	settlement := NewSettlementService(store, store, ledger, store, nil, nil, logger)

	ctx := context.Background()
	for _, acc := range []models.Account{
		{ID: testSystem.CashID, Name: testSystem.CashName, Type: models.AccountTypeSystem},
		{ID: testSystem.CardBankID, Name: testSystem.CardBankName, Type: models.AccountTypeSystem},
		{ID: testSystem.WechatBankID, Name: testSystem.WechatBankName, Type: models.AccountTypeSystem},
		{ID: "client1", Name: "Client One", Type: models.AccountTypeClient},
		{ID: "merchant1", Name: "Merchant One", Type: models.AccountTypeMerchant},
	} {
		a := acc
		require.NoError(t, store.EnsureAccount(ctx, &a))
	}

	for _, p := range []models.Product{
		{ID: "p1", MerchantID: "merchant1", Name: "Tofu", Price: 5, Cost: 3, Status: models.ProductStatusActive,
			Stock: &models.Stock{Enabled: true, Quantity: 10}},
		{ID: "p2", MerchantID: "merchant1", Name: "Rice", Price: 8, Cost: 6, Status: models.ProductStatusActive,
			Stock: &models.Stock{Enabled: false}},
		{ID: "p3", MerchantID: "merchant1", Name: "Noodles", Price: 4, Cost: 2, Status: models.ProductStatusActive,
			Stock: &models.Stock{Enabled: true, Quantity: 1, AllowNegative: true}},
	} {
		pr := p
		require.NoError(t, store.CreateProduct(ctx, &pr))
	}

	return &testEnv{
		store:      store,
		inventory:  inventory,
		ledger:     ledger,
		orders:     orders,
		settlement: settlement,
	}
}

// testOrder builds a one-item order for the shared client and merchant.
func testOrder(productID string, qty int, method string) *models.Order {
	price := 5.0
	cost := 3.0
	total := price * float64(qty)

	return &models.Order{
		ClientID:     "client1",
		ClientName:   "Client One",
		MerchantID:   "merchant1",
		MerchantName: "Merchant One",
		Items: []models.OrderItem{
			{ProductID: productID, ProductName: "Tofu", Quantity: qty, Price: price, Cost: cost},
		},
		DeliverDate:   "2030-01-02",
		DeliverTime:   "14:00",
		Cost:          cost * float64(qty),
		Price:         price * float64(qty),
		Total:         total,
		PaymentMethod: method,
	}
}

func stockQuantity(t *testing.T, store *memory.Store, productID string) int {
	t.Helper()
	p, err := store.GetActiveProduct(context.Background(), productID)
	require.NoError(t, err)
	require.NotNil(t, p.Stock)
	return p.Stock.Quantity
}

func accountBalance(t *testing.T, store *memory.Store, accountID string) float64 {
	t.Helper()
	acc, err := store.GetAccount(context.Background(), accountID)
	require.NoError(t, err)
	return acc.Balance
}
