package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/duocun/marketplace/internal/models"
	"github.com/duocun/marketplace/internal/repository/postgres"
	"github.com/jackc/pgx/v5"
)

const (
	orderColumns = `id, code, type, client_id, client_name, merchant_id, merchant_name,
	                driver_id, driver_name, items, deliver_date, deliver_time, note, address,
	                cost, price, tax, tips, delivery_cost, delivery_discount, group_discount, over_range_charge, total,
	                payment_method, payment_id, status, payment_status, delivered, created, modified`

	insertOrderQuery = `
						INSERT INTO orders (id, code, type, client_id, client_name, merchant_id, merchant_name,
						                    driver_id, driver_name, items, deliver_date, deliver_time, note, address,
						                    cost, price, tax, tips, delivery_cost, delivery_discount, group_discount, over_range_charge, total,
						                    payment_method, payment_id, status, payment_status, delivered)
						VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
						        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)
						RETURNING created, modified
`
	selectOrderQuery = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	existsPaymentIDQuery = `SELECT EXISTS (SELECT 1 FROM orders WHERE payment_id = $1)`

	selectUnpaidByPaymentQuery = `
						SELECT ` + orderColumns + ` FROM orders
						WHERE payment_id = $1 AND status NOT IN ('B', 'D') AND payment_status <> 'P'
						ORDER BY created ASC
`
	selectByPaymentQuery = `
						SELECT ` + orderColumns + ` FROM orders
						WHERE payment_id = $1
						ORDER BY created ASC
`
	updateOrderStatusQuery = `
						UPDATE orders SET status = $2, modified = now()
						WHERE id = $1
`
	markOrdersPaidQuery = `
						UPDATE orders SET status = 'N', payment_status = 'P', modified = now()
						WHERE id = ANY($1)
`
	expireTempOrdersQuery = `
						UPDATE orders SET status = 'D', modified = now()
						WHERE status = 'T' AND created < $1
`
	nextOrderCodeQuery = `SELECT nextval('order_code_seq')`

	pgErrUniqueViolationCode = "23505"
)

// OrderRepository implements order data access
type OrderRepository struct {
	db *postgres.DB
}

// NewOrderRepository creates new OrderRepository instance
func NewOrderRepository(db *postgres.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// NextCode reserves the next human-readable order code.
func (or *OrderRepository) NextCode(ctx context.Context) (string, error) {
	var seq int64
	if err := or.db.QueryRow(ctx, nextOrderCodeQuery).Scan(&seq); err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", seq), nil
}

// CreateOrder inserts new order
func (or *OrderRepository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	items, err := json.Marshal(itemsOrEmpty(order.Items))
	if err != nil {
		return nil, err
	}

	err = or.db.QueryRow(ctx, insertOrderQuery,
		order.ID, order.Code, order.Type, order.ClientID, order.ClientName, order.MerchantID, order.MerchantName,
		order.DriverID, order.DriverName, items, order.DeliverDate, order.DeliverTime, order.Note, order.Address,
		order.Cost, order.Price, order.Tax, order.Tips, order.DeliveryCost, order.DeliveryDiscount, order.GroupDiscount, order.OverRangeCharge, order.Total,
		order.PaymentMethod, order.PaymentID, order.Status, order.PaymentStatus, nullTime(order.Delivered),
	).Scan(&order.Created, &order.Modified)
	if err != nil {
		if errCode := or.db.ErrorCode(err); errCode == pgErrUniqueViolationCode {
			return nil, models.ErrConflictData
		}
		return nil, err
	}

	return order, nil
}

// GetOrder returns order by id
func (or *OrderRepository) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	row := or.db.QueryRow(ctx, selectOrderQuery, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}
	return order, nil
}

// ExistsPaymentID reports whether any order already carries the payment id.
// Used for collision checking freshly allocated batch keys.
func (or *OrderRepository) ExistsPaymentID(ctx context.Context, paymentID string) (bool, error) {
	var exists bool
	err := or.db.QueryRow(ctx, existsPaymentIDQuery, paymentID).Scan(&exists)
	return exists, err
}

// ListUnpaidByPaymentID returns the batch's orders still awaiting payment,
// excluding reversed and cancelled ones.
func (or *OrderRepository) ListUnpaidByPaymentID(ctx context.Context, paymentID string) ([]models.Order, error) {
	rows, err := or.db.Query(ctx, selectUnpaidByPaymentQuery, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanOrders(rows)
}

// ListByPaymentID returns every order of the batch.
func (or *OrderRepository) ListByPaymentID(ctx context.Context, paymentID string) ([]models.Order, error) {
	rows, err := or.db.Query(ctx, selectByPaymentQuery, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanOrders(rows)
}

// UpdateStatus sets the order status
func (or *OrderRepository) UpdateStatus(ctx context.Context, id string, status string) error {
	cmd, err := or.db.Exec(ctx, updateOrderStatusQuery, id, status)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return models.ErrDataNotFound
	}

	return nil
}

// ExpireTempOrders soft-deletes TEMP orders created before the cutoff whose
// gateway payment never arrived.
func (or *OrderRepository) ExpireTempOrders(ctx context.Context, cutoff time.Time) (int64, error) {
	cmd, err := or.db.Exec(ctx, expireTempOrdersQuery, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// markOrdersPaid flips the whole batch to NEW/PAID within q.
func markOrdersPaid(ctx context.Context, q postgres.Querier, ids []string) error {
	_, err := q.Exec(ctx, markOrdersPaidQuery, ids)
	return err
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	order := models.Order{}
	var items []byte
	var delivered *time.Time
	err := row.Scan(&order.ID, &order.Code, &order.Type, &order.ClientID, &order.ClientName, &order.MerchantID, &order.MerchantName,
		&order.DriverID, &order.DriverName, &items, &order.DeliverDate, &order.DeliverTime, &order.Note, &order.Address,
		&order.Cost, &order.Price, &order.Tax, &order.Tips, &order.DeliveryCost, &order.DeliveryDiscount, &order.GroupDiscount, &order.OverRangeCharge, &order.Total,
		&order.PaymentMethod, &order.PaymentID, &order.Status, &order.PaymentStatus, &delivered, &order.Created, &order.Modified)
	if err != nil {
		return nil, err
	}
	if delivered != nil {
		order.Delivered = *delivered
	}
	_ = json.Unmarshal(items, &order.Items)
	return &order, nil
}

func scanOrders(rows pgx.Rows) ([]models.Order, error) {
	orders := []models.Order{}

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}
