package service

import (
	"context"
	"errors"
	"time"

	"github.com/duocun/marketplace/config"
	"github.com/duocun/marketplace/internal/models"
	"go.uber.org/zap"
)

// TransactionRepository is interface for interacting with ledger data
type TransactionRepository interface {
	// Insert appends a transaction and updates both account balances atomically
	Insert(ctx context.Context, t *models.Transaction) (*models.Transaction, error)
	// ListByAccount returns non-void entries touching the account, created ascending
	ListByAccount(ctx context.Context, accountID string) ([]models.Transaction, error)
	// ListByOrder returns all entries recorded against the order
	ListByOrder(ctx context.Context, orderID string) ([]models.Transaction, error)
	// VoidByOrder marks the order's entries with the given action codes as logically deleted
	VoidByOrder(ctx context.Context, orderID string, actionCodes []string) error
	// ApplyReplay rewrites running balance snapshots and the cached account balance
	ApplyReplay(ctx context.Context, accountID string, snaps []models.BalanceSnapshot, balance float64) error
}

// AccountRepository is interface for interacting with account-related data
type AccountRepository interface {
	// GetAccount returns account by id
	GetAccount(ctx context.Context, id string) (*models.Account, error)
}

// LedgerService owns the append-only transaction log and the cached account
// balances derived from it.
type LedgerService struct {
	repo     TransactionRepository
	accounts AccountRepository
	system   config.SystemAccounts
	logger   *zap.Logger
}

// NewLedgerService creates new LedgerService instance
func NewLedgerService(repo TransactionRepository, accounts AccountRepository, system config.SystemAccounts, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		repo:     repo,
		accounts: accounts,
		system:   system,
		logger:   logger,
	}
}

// Insert appends one double-entry transaction. A missing account on either
// side skips the insert entirely and is reported as a data-integrity alert:
// it is a bug to fix, not a condition to retry.
func (ls *LedgerService) Insert(ctx context.Context, tr *models.Transaction) (*models.Transaction, error) {
	t, err := ls.repo.Insert(ctx, tr)
	if err != nil {
		if errors.Is(err, models.ErrDataNotFound) {
			ls.logger.Error("ledger entry skipped: account missing",
				zap.String("fromId", tr.FromID),
				zap.String("toId", tr.ToID),
				zap.String("actionCode", tr.ActionCode))
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}
	return t, nil
}

// PlaceOrderEntries builds the debit pair for one placed order: the platform
// fronts the merchant's cost and collects the client's total.
func (ls *LedgerService) PlaceOrderEntries(order *models.Order) []*models.Transaction {
	t1 := &models.Transaction{
		FromID:     order.MerchantID,
		FromName:   order.MerchantName,
		ToID:       ls.system.CashID,
		ToName:     ls.system.CashName,
		Amount:     models.RoundMoney(order.Cost),
		ActionCode: models.ActionOrderFromMerchant.Code,
		OrderID:    order.ID,
		OrderType:  order.Type,
		Delivered:  order.Delivered,
	}

	t2 := &models.Transaction{
		FromID:     ls.system.CashID,
		FromName:   ls.system.CashName,
		ToID:       order.ClientID,
		ToName:     order.ClientName,
		Amount:     models.RoundMoney(order.Total),
		ActionCode: models.ActionOrderFromDuocun.Code,
		OrderID:    order.ID,
		OrderType:  order.Type,
		Delivered:  order.Delivered,
	}

	return []*models.Transaction{t1, t2}
}

// RemoveOrderEntries builds the exact reversal pair for a cancelled order.
// The item snapshot travels on the merchant-side entry for audit.
func (ls *LedgerService) RemoveOrderEntries(order *models.Order) []*models.Transaction {
	t1 := &models.Transaction{
		FromID:     ls.system.CashID,
		FromName:   ls.system.CashName,
		ToID:       order.MerchantID,
		ToName:     order.MerchantName,
		Amount:     models.RoundMoney(order.Cost),
		ActionCode: models.ActionCancelOrderFromMerchant.Code,
		OrderID:    order.ID,
		Items:      order.Items,
		Delivered:  order.Delivered,
	}

	t2 := &models.Transaction{
		FromID:     order.ClientID,
		FromName:   order.ClientName,
		ToID:       ls.system.CashID,
		ToName:     ls.system.CashName,
		Amount:     models.RoundMoney(order.Total),
		ActionCode: models.ActionCancelOrderFromDuocun.Code,
		OrderID:    order.ID,
		Delivered:  order.Delivered,
	}

	return []*models.Transaction{t1, t2}
}

// SaveTransactionsForPlaceOrder records the debit pair for one order.
func (ls *LedgerService) SaveTransactionsForPlaceOrder(ctx context.Context, order *models.Order) error {
	for _, tr := range ls.PlaceOrderEntries(order) {
		if _, err := ls.Insert(ctx, tr); err != nil && !errors.Is(err, models.ErrDataNotFound) {
			return err
		}
	}
	return nil
}

// SaveTransactionsForRemoveOrder records the reversal pair for a cancelled order.
func (ls *LedgerService) SaveTransactionsForRemoveOrder(ctx context.Context, order *models.Order) error {
	for _, tr := range ls.RemoveOrderEntries(order) {
		if _, err := ls.Insert(ctx, tr); err != nil && !errors.Is(err, models.ErrDataNotFound) {
			return err
		}
	}
	return nil
}

// VoidOrderEntries marks a cancelled order's placement and reversal entries
// as logically deleted. Voiding both pairs keeps replay equal to the cached
// balances: the pairs cancel out in the cache, and replay skips all of them.
func (ls *LedgerService) VoidOrderEntries(ctx context.Context, orderID string) error {
	return ls.repo.VoidByOrder(ctx, orderID, []string{
		models.ActionOrderFromMerchant.Code,
		models.ActionOrderFromDuocun.Code,
		models.ActionCancelOrderFromMerchant.Code,
		models.ActionCancelOrderFromDuocun.Code,
	})
}

// GatewayCreditEntry builds the credit from the client to the gateway's bank
// account for the amount the gateway reports as paid.
func (ls *LedgerService) GatewayCreditEntry(paymentID, actionCode, clientID, clientName string, amount float64, delivered time.Time) *models.Transaction {
	bankID, bankName := ls.gatewayBank(actionCode)
	return &models.Transaction{
		FromID:     clientID,
		FromName:   clientName,
		ToID:       bankID,
		ToName:     bankName,
		Amount:     models.RoundMoney(amount),
		ActionCode: actionCode,
		PaymentID:  paymentID,
		Delivered:  delivered,
	}
}

// TopUpEntry builds the single credit transaction for a stand-alone balance
// top-up, routed to the bank account matching the payment method.
func (ls *LedgerService) TopUpEntry(credit *models.ClientCredit, amount float64) *models.Transaction {
	var bankID, bankName, actionCode string
	switch credit.PaymentMethod {
	case models.PaymentMethodCreditCard:
		bankID, bankName = ls.system.CardBankID, ls.system.CardBankName
		actionCode = models.ActionAddCreditByCard.Code
	case models.PaymentMethodWechat:
		bankID, bankName = ls.system.WechatBankID, ls.system.WechatBankName
		actionCode = models.ActionAddCreditByWechat.Code
	default: // cash, prepay
		bankID, bankName = ls.system.CashID, ls.system.CashName
		actionCode = models.ActionAddCreditByCash.Code
	}

	return &models.Transaction{
		FromID:     credit.AccountID,
		FromName:   credit.AccountName,
		ToID:       bankID,
		ToName:     bankName,
		Amount:     models.RoundMoney(amount),
		ActionCode: actionCode,
		PaymentID:  credit.PaymentID,
		Note:       credit.Note,
	}
}

// Balance returns the cached ledger balance for the account.
func (ls *LedgerService) Balance(ctx context.Context, accountID string) (float64, error) {
	acc, err := ls.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

// RebuildBalance replays all non-void transactions touching the account in
// created order, recomputing running balances from zero. Repair tool for
// detected drift.
func (ls *LedgerService) RebuildBalance(ctx context.Context, accountID string) error {
	trs, err := ls.repo.ListByAccount(ctx, accountID)
	if err != nil {
		return err
	}

	var balance float64
	snaps := make([]models.BalanceSnapshot, 0, len(trs))
	for _, t := range trs {
		if t.FromID == accountID {
			balance = models.RoundMoney(balance + t.Amount)
			snaps = append(snaps, models.BalanceSnapshot{TransactionID: t.ID, FromSide: true, Balance: balance})
		} else if t.ToID == accountID {
			balance = models.RoundMoney(balance - t.Amount)
			snaps = append(snaps, models.BalanceSnapshot{TransactionID: t.ID, FromSide: false, Balance: balance})
		}
	}

	return ls.repo.ApplyReplay(ctx, accountID, snaps, balance)
}

// ListOrderEntries exposes an order's ledger history, voided entries included.
func (ls *LedgerService) ListOrderEntries(ctx context.Context, orderID string) ([]models.Transaction, error) {
	return ls.repo.ListByOrder(ctx, orderID)
}

func (ls *LedgerService) gatewayBank(actionCode string) (string, string) {
	if actionCode == models.ActionPayByWechat.Code {
		return ls.system.WechatBankID, ls.system.WechatBankName
	}
	return ls.system.CardBankID, ls.system.CardBankName
}
