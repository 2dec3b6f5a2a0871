package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/duocun/marketplace/internal/events"
	"github.com/duocun/marketplace/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderRepository is interface for interacting with order-related data
type OrderRepository interface {
	// NextCode reserves the next human-readable order code
	NextCode(ctx context.Context) (string, error)
	// CreateOrder inserts new order
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	// GetOrder returns order by id
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	// ExistsPaymentID reports whether any order already carries the payment id
	ExistsPaymentID(ctx context.Context, paymentID string) (bool, error)
	// ListUnpaidByPaymentID returns the batch's orders still awaiting payment
	ListUnpaidByPaymentID(ctx context.Context, paymentID string) ([]models.Order, error)
	// ListByPaymentID returns every order of the batch
	ListByPaymentID(ctx context.Context, paymentID string) ([]models.Order, error)
	// UpdateStatus sets the order status
	UpdateStatus(ctx context.Context, id string, status string) error
	// ExpireTempOrders soft-deletes TEMP orders created before the cutoff
	ExpireTempOrders(ctx context.Context, cutoff time.Time) (int64, error)
}

// OrderService owns the order state machine and the placement protocol.
type OrderService struct {
	repo      OrderRepository
	inventory *InventoryService
	ledger    *LedgerService
	events    *events.Publisher
	logger    *zap.Logger
}

// NewOrderService creates new OrderService instance
func NewOrderService(repo OrderRepository, inventory *InventoryService, ledger *LedgerService, publisher *events.Publisher, logger *zap.Logger) *OrderService {
	return &OrderService{
		repo:      repo,
		inventory: inventory,
		ledger:    ledger,
		events:    publisher,
		logger:    logger,
	}
}

// PlaceOrders validates and persists a checkout batch under one fresh
// paymentId. For CASH and PREPAY the ledger is debited immediately; gateway
// methods stay TEMP until the settlement engine confirms payment. Validation
// failure aborts the whole batch with nothing persisted.
func (os *OrderService) PlaceOrders(ctx context.Context, orders []*models.Order) ([]*models.Order, error) {
	orders = dedupeOrders(orders)

	if err := os.validateOrders(ctx, orders); err != nil {
		return nil, err
	}

	paymentID, err := os.newPaymentID(ctx)
	if err != nil {
		return nil, err
	}
	os.logger.Info("placing order batch", zap.String("paymentId", paymentID), zap.Int("orders", len(orders)))

	saved := make([]*models.Order, 0, len(orders))
	for _, order := range orders {
		order.ID = uuid.NewString()
		order.PaymentID = paymentID
		if order.Type == "" {
			order.Type = models.OrderTypeGrocery
		}
		if order.Code == "" {
			code, err := os.repo.NextCode(ctx)
			if err != nil {
				return nil, err
			}
			order.Code = code
		}
		order.PaymentStatus = models.PaymentStatusUnpaid
		if models.IsDeferredPayment(order.PaymentMethod) {
			order.Status = models.OrderStatusTemp
		} else {
			order.Status = models.OrderStatusNew
		}
		order.Delivered = deliveredAt(order.DeliverDate)

		savedOrder, err := os.repo.CreateOrder(ctx, order)
		if err != nil {
			return nil, err
		}
		saved = append(saved, savedOrder)
	}

	// cash and prepay settle at placement, no gateway confirmation awaited
	if len(saved) > 0 && !models.IsDeferredPayment(saved[0].PaymentMethod) {
		for _, order := range saved {
			if err := os.ledger.SaveTransactionsForPlaceOrder(ctx, order); err != nil {
				return nil, err
			}
		}
	}

	os.publishPlaced(ctx, paymentID, saved)

	return saved, nil
}

// Cancel reverses an order: soft delete, void the placement pair, record the
// compensating reversal pair. Only NEW and MERCHANT_CHECKED orders qualify.
func (os *OrderService) Cancel(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := os.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status != models.OrderStatusNew && order.Status != models.OrderStatusMerchantChecked {
		return nil, &models.CancelStateError{OrderID: orderID, Status: order.Status}
	}

	if err := os.repo.UpdateStatus(ctx, orderID, models.OrderStatusDeleted); err != nil {
		return nil, err
	}

	// reversal first, void second: the cached balances return to their
	// pre-order values through the reversal pair, then all four entries
	// drop out of replay together
	if err := os.ledger.SaveTransactionsForRemoveOrder(ctx, order); err != nil {
		return nil, err
	}

	if err := os.ledger.VoidOrderEntries(ctx, orderID); err != nil {
		return nil, err
	}

	// stock was only decremented once a gateway confirmed payment
	if models.IsDeferredPayment(order.PaymentMethod) && order.PaymentStatus == models.PaymentStatusPaid {
		if err := os.inventory.Release(ctx, order.Items); err != nil {
			return nil, err
		}
	}

	order.Status = models.OrderStatusDeleted

	if os.events != nil {
		os.events.Publish(ctx, events.TopicOrderCancelled, order.ID, events.EventOrderCancelled,
			events.OrderCancelledPayload{OrderID: order.ID, PaymentID: order.PaymentID})
	}

	return order, nil
}

// Advance moves an order through the normal delivery flow. Transitions not
// allowed by the state machine are rejected; cancellation has its own path
// because of its ledger effects.
func (os *OrderService) Advance(ctx context.Context, orderID string, status string) (*models.Order, error) {
	order, err := os.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if status == models.OrderStatusDeleted || !models.CanTransition(order.Status, status) {
		return nil, &models.StatusTransitionError{OrderID: orderID, From: order.Status, To: status}
	}

	if err := os.repo.UpdateStatus(ctx, orderID, status); err != nil {
		return nil, err
	}

	order.Status = status
	return order, nil
}

// ExpireTempOrders soft-deletes abandoned gateway checkouts older than ttl.
func (os *OrderService) ExpireTempOrders(ctx context.Context, ttl time.Duration) (int64, error) {
	return os.repo.ExpireTempOrders(ctx, time.Now().Add(-ttl))
}

// ListByPaymentID returns every order of a checkout batch.
func (os *OrderService) ListByPaymentID(ctx context.Context, paymentID string) ([]models.Order, error) {
	return os.repo.ListByPaymentID(ctx, paymentID)
}

func (os *OrderService) validateOrders(ctx context.Context, orders []*models.Order) error {
	now := time.Now().UTC()
	for i, order := range orders {
		if order.DeliverDate == "" {
			return &models.DeliveryExpiredError{OrderIdx: i, DeliverDate: order.DeliverDate}
		}
		if deliveredAt(order.DeliverDate).Before(now) {
			return &models.DeliveryExpiredError{OrderIdx: i, DeliverDate: order.DeliverDate}
		}

		if err := os.inventory.Validate(ctx, order.Items); err != nil {
			return withOrderIdx(err, i)
		}
	}
	return nil
}

// newPaymentID allocates a batch key, collision-checked against existing orders.
func (os *OrderService) newPaymentID(ctx context.Context) (string, error) {
	for {
		paymentID := uuid.NewString()
		exists, err := os.repo.ExistsPaymentID(ctx, paymentID)
		if err != nil {
			return "", err
		}
		if !exists {
			return paymentID, nil
		}
	}
}

func (os *OrderService) publishPlaced(ctx context.Context, paymentID string, orders []*models.Order) {
	if os.events == nil || len(orders) == 0 {
		return
	}
	payload := events.OrderPlacedPayload{
		PaymentID: paymentID,
		ClientID:  orders[0].ClientID,
	}
	for _, o := range orders {
		payload.OrderIDs = append(payload.OrderIDs, o.ID)
		payload.Total = models.RoundMoney(payload.Total + o.Total)
	}
	os.events.Publish(ctx, events.TopicOrderPlaced, paymentID, events.EventOrderPlaced, payload)
}

// dedupeOrders drops identical submissions within one call, guarding against
// client-side double-submit.
func dedupeOrders(orders []*models.Order) []*models.Order {
	seen := make(map[string]bool, len(orders))
	out := make([]*models.Order, 0, len(orders))
	for _, order := range orders {
		key := descriptionKey(order)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, order)
	}
	return out
}

// descriptionKey is deterministic over client, delivery slot and sorted items.
func descriptionKey(order *models.Order) string {
	parts := make([]string, 0, len(order.Items))
	for _, it := range order.Items {
		parts = append(parts, fmt.Sprintf("%s:%d:%.2f", it.ProductID, it.Quantity, it.Price))
	}
	sort.Strings(parts)

	sum := sha1.Sum([]byte(order.ClientID + "|" + order.DeliverDate + "|" + order.DeliverTime + "|" + strings.Join(parts, ",")))
	return hex.EncodeToString(sum[:])
}

// deliveredAt pins delivery to 15:00 UTC on the deliver date.
func deliveredAt(deliverDate string) time.Time {
	d, err := time.Parse("2006-01-02", deliverDate)
	if err != nil {
		return time.Time{}
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 15, 0, 0, 0, time.UTC)
}

func withOrderIdx(err error, idx int) error {
	switch e := err.(type) {
	case *models.ItemsEmptyError:
		e.OrderIdx = idx
	case *models.ProductNotFoundError:
		e.OrderIdx = idx
	case *models.OutOfStockError:
		e.OrderIdx = idx
	}
	return err
}
