package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/duocun/marketplace/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type LedgerService interface {
	// Balance returns the cached ledger balance for the account
	Balance(ctx context.Context, accountID string) (float64, error)
	// RebuildBalance replays the account's transaction history from zero
	RebuildBalance(ctx context.Context, accountID string) error
	// ListOrderEntries returns an order's ledger history, voided entries included
	ListOrderEntries(ctx context.Context, orderID string) ([]models.Transaction, error)
}

// BalanceHandler represents HTTP handler for ledger balance requests
type BalanceHandler struct {
	svc    LedgerService
	logger *zap.Logger
}

// NewBalanceHandler creates new BalanceHandler instance
func NewBalanceHandler(svc LedgerService, logger *zap.Logger) *BalanceHandler {
	return &BalanceHandler{svc: svc, logger: logger}
}

type balanceResponse struct {
	AccountID string  `json:"accountId"`
	Balance   float64 `json:"balance"`
}

// GetBalance returns the cached balance of an account
// 200 — balance returned
// 404 — unknown account
// 500 — internal error
func (bh *BalanceHandler) GetBalance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := chi.URLParam(r, "id")

		balance, err := bh.svc.Balance(r.Context(), accountID)
		if err != nil {
			if errors.Is(err, models.ErrDataNotFound) {
				http.Error(w, "account not found", http.StatusNotFound)
				return
			}
			bh.logger.Error("get balance failed", zap.String("accountId", accountID), zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, balanceResponse{AccountID: accountID, Balance: balance})
	}
}

// RebuildBalance replays the account ledger from zero, repairing drift
// 200 — balance rebuilt
// 404 — unknown account
// 500 — internal error
func (bh *BalanceHandler) RebuildBalance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := chi.URLParam(r, "id")

		if err := bh.svc.RebuildBalance(r.Context(), accountID); err != nil {
			if errors.Is(err, models.ErrDataNotFound) {
				http.Error(w, "account not found", http.StatusNotFound)
				return
			}
			bh.logger.Error("rebuild balance failed", zap.String("accountId", accountID), zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		balance, err := bh.svc.Balance(r.Context(), accountID)
		if err != nil {
			bh.logger.Error("get balance failed", zap.String("accountId", accountID), zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, balanceResponse{AccountID: accountID, Balance: balance})
	}
}

type transactionResponse struct {
	ID          string  `json:"id"`
	FromID      string  `json:"fromId"`
	ToID        string  `json:"toId"`
	Amount      float64 `json:"amount"`
	FromBalance float64 `json:"fromBalance"`
	ToBalance   float64 `json:"toBalance"`
	ActionCode  string  `json:"actionCode"`
	Status      string  `json:"status,omitempty"`
}

// ListOrderTransactions exposes an order's ledger trail
// 200 — entries returned, possibly empty
// 500 — internal error
func (bh *BalanceHandler) ListOrderTransactions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "id")

		trs, err := bh.svc.ListOrderEntries(r.Context(), orderID)
		if err != nil {
			bh.logger.Error("list order transactions failed", zap.String("orderId", orderID), zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		resp := make([]transactionResponse, 0, len(trs))
		for _, t := range trs {
			resp = append(resp, transactionResponse{
				ID:          t.ID,
				FromID:      t.FromID,
				ToID:        t.ToID,
				Amount:      t.Amount,
				FromBalance: t.FromBalance,
				ToBalance:   t.ToBalance,
				ActionCode:  t.ActionCode,
				Status:      t.Status,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
