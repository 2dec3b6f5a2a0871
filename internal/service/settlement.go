package service

import (
	"context"
	"errors"

	"github.com/duocun/marketplace/internal/events"
	"github.com/duocun/marketplace/internal/models"
	"github.com/duocun/marketplace/internal/redisx"
	"go.uber.org/zap"
)

// CreditRepository is interface for interacting with client credit data
type CreditRepository interface {
	// GetByPaymentID returns the credit request carrying the payment id
	GetByPaymentID(ctx context.Context, paymentID string) (*models.ClientCredit, error)
	// CreateCredit inserts new credit request
	CreateCredit(ctx context.Context, c *models.ClientCredit) (*models.ClientCredit, error)
}

// Settler applies a settlement batch in one atomic unit.
type Settler interface {
	Settle(ctx context.Context, batch *models.SettlementBatch) error
}

// SettlementService turns gateway payment confirmations into ledger entries,
// order status flips and stock decrements, exactly once per payment id.
type SettlementService struct {
	orders  OrderRepository
	credits CreditRepository
	ledger  *LedgerService
	settler Settler
	locker  *redisx.Locker
	events  *events.Publisher
	logger  *zap.Logger
}

// NewSettlementService creates new SettlementService instance
func NewSettlementService(orders OrderRepository, credits CreditRepository, ledger *LedgerService, settler Settler, locker *redisx.Locker, publisher *events.Publisher, logger *zap.Logger) *SettlementService {
	return &SettlementService{
		orders:  orders,
		credits: credits,
		ledger:  ledger,
		settler: settler,
		locker:  locker,
		events:  publisher,
		logger:  logger,
	}
}

// ProcessAfterPay settles a confirmed payment. The payment id resolves either
// to a batch of unpaid orders or to a stand-alone credit top-up. Redelivered
// notifications for an already-claimed payment id are absorbed silently.
func (ss *SettlementService) ProcessAfterPay(ctx context.Context, paymentID, actionCode string, amount float64, chargeRef string) error {
	release, err := ss.locker.Acquire(ctx, paymentID)
	if err != nil {
		// lock is an optimization only, the claim row is the real guard
		ss.logger.Warn("settlement lock unavailable", zap.String("paymentId", paymentID), zap.Error(err))
	} else if release == nil {
		ss.logger.Info("settlement already in flight", zap.String("paymentId", paymentID))
		return nil
	} else {
		defer release()
	}

	orders, err := ss.orders.ListUnpaidByPaymentID(ctx, paymentID)
	if err != nil {
		return err
	}

	var batch *models.SettlementBatch
	if len(orders) > 0 {
		batch = ss.orderBatch(paymentID, actionCode, amount, chargeRef, orders)
	} else {
		batch, err = ss.creditBatch(ctx, paymentID, actionCode, amount, chargeRef)
		if err != nil {
			return err
		}
		if batch == nil {
			return nil
		}
	}

	if err := ss.settler.Settle(ctx, batch); err != nil {
		if errors.Is(err, models.ErrAlreadySettled) {
			ss.logger.Info("payment already settled", zap.String("paymentId", paymentID))
			return nil
		}
		return err
	}

	ss.logger.Info("payment settled",
		zap.String("paymentId", paymentID),
		zap.String("actionCode", actionCode),
		zap.Float64("amount", batch.Amount),
		zap.Int("orders", len(batch.PaidOrderIDs)))

	if ss.events != nil {
		ss.events.Publish(ctx, events.TopicOrderSettled, paymentID, events.EventOrderSettled,
			events.OrderSettledPayload{
				PaymentID:  paymentID,
				ActionCode: actionCode,
				Amount:     models.RoundMoney(amount),
				OrderIDs:   batch.PaidOrderIDs,
				CreditID:   batch.CreditID,
			})
	}

	return nil
}

// orderBatch assembles the settlement for a checkout batch: the placement
// debit pairs, the single gateway credit for the paid amount, the status
// flips and the stock decrements for every order in the batch.
func (ss *SettlementService) orderBatch(paymentID, actionCode string, amount float64, chargeRef string, orders []models.Order) *models.SettlementBatch {
	batch := &models.SettlementBatch{
		PaymentID:  paymentID,
		ActionCode: actionCode,
		Amount:     models.RoundMoney(amount),
		ChargeRef:  chargeRef,
	}

	for i := range orders {
		order := &orders[i]
		batch.Entries = append(batch.Entries, ss.ledger.PlaceOrderEntries(order)...)
		batch.PaidOrderIDs = append(batch.PaidOrderIDs, order.ID)

		// cash-class orders in the batch already reserved nothing and owe nothing here
		if !models.IsDeferredPayment(order.PaymentMethod) {
			continue
		}
		for _, it := range order.Items {
			batch.StockDeltas = append(batch.StockDeltas, models.StockDelta{ProductID: it.ProductID, Quantity: abs(itemQty(it))})
		}
	}

	first := orders[0]
	batch.Entries = append(batch.Entries,
		ss.ledger.GatewayCreditEntry(paymentID, actionCode, first.ClientID, first.ClientName, amount, first.Delivered))

	return batch
}

// creditBatch assembles the settlement for a stand-alone top-up. A payment id
// matching neither orders nor a pending credit is logged and dropped: the
// gateway is ahead of us or the notification is stale.
func (ss *SettlementService) creditBatch(ctx context.Context, paymentID, actionCode string, amount float64, chargeRef string) (*models.SettlementBatch, error) {
	credit, err := ss.credits.GetByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, models.ErrDataNotFound) {
			ss.logger.Warn("payment matches no orders and no credit", zap.String("paymentId", paymentID))
			return nil, nil
		}
		return nil, err
	}
	if credit.Status == models.PaymentStatusPaid {
		ss.logger.Info("credit already paid", zap.String("paymentId", paymentID), zap.String("creditId", credit.ID))
		return nil, nil
	}

	return &models.SettlementBatch{
		PaymentID:  paymentID,
		ActionCode: actionCode,
		Amount:     models.RoundMoney(amount),
		ChargeRef:  chargeRef,
		CreditID:   credit.ID,
		Entries:    []*models.Transaction{ss.ledger.TopUpEntry(credit, amount)},
	}, nil
}

// RequestCredit records a pending top-up awaiting gateway confirmation.
func (ss *SettlementService) RequestCredit(ctx context.Context, credit *models.ClientCredit) (*models.ClientCredit, error) {
	return ss.credits.CreateCredit(ctx, credit)
}
