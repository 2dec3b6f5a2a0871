package service

import (
	"context"
	"errors"

	"github.com/duocun/marketplace/internal/models"
)

// ProductRepository is interface for interacting with product-related data
type ProductRepository interface {
	// GetActiveProduct returns an active product by id
	GetActiveProduct(ctx context.Context, id string) (*models.Product, error)
	// AdjustStock decrements tracked stock for all deltas or none
	AdjustStock(ctx context.Context, deltas []models.StockDelta, force bool) ([]models.StockReject, error)
	// ReleaseStock returns quantities to tracked stock
	ReleaseStock(ctx context.Context, deltas []models.StockDelta) error
}

// InventoryService enforces stock-quantity invariants during order placement
// and settlement.
type InventoryService struct {
	repo ProductRepository
}

// NewInventoryService creates new InventoryService instance
func NewInventoryService(repo ProductRepository) *InventoryService {
	return &InventoryService{repo: repo}
}

// Validate runs the reservation arithmetic without persisting anything.
// Used as a pre-check before placement.
func (is *InventoryService) Validate(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return &models.ItemsEmptyError{}
	}

	for _, item := range items {
		product, err := is.repo.GetActiveProduct(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, models.ErrDataNotFound) {
				return &models.ProductNotFoundError{ProductID: item.ProductID}
			}
			return err
		}

		// stock tracking disabled means unlimited
		if product.Stock == nil || !product.Stock.Enabled {
			continue
		}

		newQty := product.Stock.Quantity - abs(itemQty(item))
		if newQty < 0 && !product.Stock.AllowNegative {
			return &models.OutOfStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Quantity:    product.Stock.Quantity,
			}
		}
	}

	return nil
}

// Reserve persists the stock decrement for all items or none. With force set
// (used only on confirmed payment) the decrement proceeds even below zero,
// recording the deficit rather than aborting.
func (is *InventoryService) Reserve(ctx context.Context, items []models.OrderItem, force bool) error {
	rejects, err := is.repo.AdjustStock(ctx, stockDeltas(items), force)
	if err != nil {
		return err
	}
	if len(rejects) > 0 {
		r := rejects[0]
		return &models.OutOfStockError{ProductID: r.ProductID, ProductName: r.ProductName, Quantity: r.Quantity}
	}
	return nil
}

// Release returns reserved quantities to stock, the compensating counterpart
// of Reserve used by cancellation.
func (is *InventoryService) Release(ctx context.Context, items []models.OrderItem) error {
	return is.repo.ReleaseStock(ctx, stockDeltas(items))
}

func stockDeltas(items []models.OrderItem) []models.StockDelta {
	deltas := make([]models.StockDelta, 0, len(items))
	for _, item := range items {
		deltas = append(deltas, models.StockDelta{ProductID: item.ProductID, Quantity: abs(itemQty(item))})
	}
	return deltas
}

func itemQty(item models.OrderItem) int {
	if item.Quantity == 0 {
		return 1
	}
	return item.Quantity
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
