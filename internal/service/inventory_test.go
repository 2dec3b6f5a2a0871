package service

import (
	"context"
	"testing"

	"github.com/duocun/marketplace/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventoryService_Validate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		items   []models.OrderItem
		wantErr error
	}{
		{
			name:    "empty_items_rejected",
			items:   nil,
			wantErr: &models.ItemsEmptyError{},
		},
		{
			name:    "unknown_product_rejected",
			items:   []models.OrderItem{{ProductID: "nope", Quantity: 1}},
			wantErr: &models.ProductNotFoundError{ProductID: "nope"},
		},
		{
			name:    "enough_stock_passes",
			items:   []models.OrderItem{{ProductID: "p1", Quantity: 10}},
			wantErr: nil,
		},
		{
			name:    "over_stock_rejected",
			items:   []models.OrderItem{{ProductID: "p1", Quantity: 11}},
			wantErr: &models.OutOfStockError{ProductID: "p1", ProductName: "Tofu", Quantity: 10},
		},
		{
			name:    "disabled_stock_is_unlimited",
			items:   []models.OrderItem{{ProductID: "p2", Quantity: 1000}},
			wantErr: nil,
		},
		{
			name:    "allow_negative_passes_below_zero",
			items:   []models.OrderItem{{ProductID: "p3", Quantity: 5}},
			wantErr: nil,
		},
		{
			name:    "zero_quantity_counts_as_one",
			items:   []models.OrderItem{{ProductID: "p1", Quantity: 0}},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.inventory.Validate(ctx, tt.items)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr.Error())
		})
	}

	// validation never persists
	assert.Equal(t, 10, stockQuantity(t, env.store, "p1"))
}

func TestInventoryService_Reserve_AllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	items := []models.OrderItem{
		{ProductID: "p1", Quantity: 4},
		{ProductID: "p1", Quantity: 20}, // over stock, whole batch must fail
	}

	err := env.inventory.Reserve(ctx, items, false)
	var outErr *models.OutOfStockError
	require.ErrorAs(t, err, &outErr)

	// first delta rolled back with the second
	assert.Equal(t, 10, stockQuantity(t, env.store, "p1"))
}

func TestInventoryService_Reserve_ForceGoesNegative(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.inventory.Reserve(ctx, []models.OrderItem{{ProductID: "p1", Quantity: 12}}, true)
	require.NoError(t, err)

	assert.Equal(t, -2, stockQuantity(t, env.store, "p1"))
}

func TestInventoryService_ReleaseRestoresStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	items := []models.OrderItem{{ProductID: "p1", Quantity: 4}}

	require.NoError(t, env.inventory.Reserve(ctx, items, false))
	assert.Equal(t, 6, stockQuantity(t, env.store, "p1"))

	require.NoError(t, env.inventory.Release(ctx, items))
	assert.Equal(t, 10, stockQuantity(t, env.store, "p1"))
}
