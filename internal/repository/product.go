package repository

import (
	"context"
	"errors"

	"github.com/duocun/marketplace/internal/models"
	"github.com/duocun/marketplace/internal/repository/postgres"
	"github.com/jackc/pgx/v5"
)

const (
	selectActiveProductQuery = `
						SELECT id, merchant_id, name, name_en, price, cost, status,
						       stock_enabled, stock_quantity, stock_allow_negative, created, modified
						FROM products
						WHERE id = $1 AND status = 'A'
`
	insertProductQuery = `
						INSERT INTO products (id, merchant_id, name, name_en, price, cost, status,
						                      stock_enabled, stock_quantity, stock_allow_negative)
						VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`
	lockStockQuery = `
						SELECT name, stock_enabled, stock_quantity, stock_allow_negative
						FROM products
						WHERE id = $1 AND status = 'A'
						FOR UPDATE
`
	decStockQuery = `UPDATE products SET stock_quantity = stock_quantity - $2, modified = now() WHERE id = $1`
	incStockQuery = `UPDATE products SET stock_quantity = stock_quantity + $2, modified = now() WHERE id = $1 AND stock_enabled`
)

// ProductRepository implements product data access
type ProductRepository struct {
	db *postgres.DB
}

// NewProductRepository creates new ProductRepository instance
func NewProductRepository(db *postgres.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// GetActiveProduct returns an active product by id
func (pr *ProductRepository) GetActiveProduct(ctx context.Context, id string) (*models.Product, error) {
	p := models.Product{}
	stock := models.Stock{}
	err := pr.db.QueryRow(ctx, selectActiveProductQuery, id).Scan(&p.ID, &p.MerchantID, &p.Name, &p.NameEN, &p.Price, &p.Cost, &p.Status,
		&stock.Enabled, &stock.Quantity, &stock.AllowNegative, &p.Created, &p.Modified)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}
	p.Stock = &stock

	return &p, nil
}

// CreateProduct inserts new product
func (pr *ProductRepository) CreateProduct(ctx context.Context, p *models.Product) error {
	stock := p.Stock
	if stock == nil {
		stock = &models.Stock{}
	}
	_, err := pr.db.Exec(ctx, insertProductQuery, p.ID, p.MerchantID, p.Name, p.NameEN, p.Price, p.Cost, p.Status,
		stock.Enabled, stock.Quantity, stock.AllowNegative)
	if err != nil {
		if errCode := pr.db.ErrorCode(err); errCode == pgErrUniqueViolationCode {
			return models.ErrConflictData
		}
		return err
	}
	return nil
}

// AdjustStock decrements tracked stock for all deltas or none. Each product
// row is locked for the duration. With force set the decrement proceeds even
// below zero, recording the deficit instead of rejecting.
func (pr *ProductRepository) AdjustStock(ctx context.Context, deltas []models.StockDelta, force bool) ([]models.StockReject, error) {
	var rejects []models.StockReject
	err := pr.db.WithinTx(ctx, func(tx pgx.Tx) error {
		rs, err := adjustStock(ctx, tx, deltas, force)
		if err != nil {
			return err
		}
		if len(rs) > 0 {
			rejects = rs
			return errStockRejected // rollback
		}
		return nil
	})
	if errors.Is(err, errStockRejected) {
		return rejects, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, nil
}

// ReleaseStock returns quantities to tracked stock. Disabled stock rows are
// untouched.
func (pr *ProductRepository) ReleaseStock(ctx context.Context, deltas []models.StockDelta) error {
	return pr.db.WithinTx(ctx, func(tx pgx.Tx) error {
		for _, d := range deltas {
			if _, err := tx.Exec(ctx, incStockQuery, d.ProductID, d.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
}

var errStockRejected = errors.New("stock rejected")

// adjustStock runs the guarded decrement within q. Returns rejects instead of
// an error so the caller decides whether the enclosing transaction survives.
func adjustStock(ctx context.Context, q postgres.Querier, deltas []models.StockDelta, force bool) ([]models.StockReject, error) {
	var rejects []models.StockReject

	for _, d := range deltas {
		var (
			name          string
			enabled       bool
			quantity      int
			allowNegative bool
		)
		err := q.QueryRow(ctx, lockStockQuery, d.ProductID).Scan(&name, &enabled, &quantity, &allowNegative)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, &models.ProductNotFoundError{ProductID: d.ProductID}
			}
			return nil, err
		}
		if !enabled {
			continue
		}

		newQty := quantity - abs(d.Quantity)
		if newQty < 0 && !allowNegative && !force {
			rejects = append(rejects, models.StockReject{ProductID: d.ProductID, ProductName: name, Quantity: quantity})
			continue
		}

		if _, err := q.Exec(ctx, decStockQuery, d.ProductID, abs(d.Quantity)); err != nil {
			return nil, err
		}
	}

	return rejects, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
