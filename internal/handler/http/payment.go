package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/duocun/marketplace/internal/models"
	"go.uber.org/zap"
)

type SettlementService interface {
	// ProcessAfterPay settles a confirmed payment exactly once
	ProcessAfterPay(ctx context.Context, paymentID, actionCode string, amount float64, chargeRef string) error
	// RequestCredit records a pending top-up awaiting gateway confirmation
	RequestCredit(ctx context.Context, credit *models.ClientCredit) (*models.ClientCredit, error)
}

// PaymentHandler represents HTTP handler for payment gateway callbacks
type PaymentHandler struct {
	svc    SettlementService
	logger *zap.Logger
}

// NewPaymentHandler creates new PaymentHandler instance
func NewPaymentHandler(svc SettlementService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{svc: svc, logger: logger}
}

type gatewayNotifyRequest struct {
	PaymentID  string  `json:"paymentId"`
	ActionCode string  `json:"actionCode"`
	AmountPaid float64 `json:"amountPaid"`
	ChargeID   string  `json:"chargeId"`
	Success    bool    `json:"success"`
}

// GatewayNotify receives the payment gateway webhook. The gateway retries on
// non-200, so every decoded notification is acknowledged; settlement failures
// are logged and the claim protocol absorbs the redelivery.
// 200 — notification accepted
// 400 — undecodable body
func (ph *PaymentHandler) GatewayNotify() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gatewayNotifyRequest

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		if req.PaymentID == "" {
			http.Error(w, "missing paymentId", http.StatusBadRequest)
			return
		}

		if !req.Success {
			ph.logger.Info("gateway reported failed payment", zap.String("paymentId", req.PaymentID))
			w.WriteHeader(http.StatusOK)
			return
		}

		if err := ph.svc.ProcessAfterPay(r.Context(), req.PaymentID, req.ActionCode, req.AmountPaid, req.ChargeID); err != nil {
			ph.logger.Error("settlement failed", zap.String("paymentId", req.PaymentID), zap.Error(err))
		}

		w.WriteHeader(http.StatusOK)
	}
}

type creditRequest struct {
	AccountID     string  `json:"accountId"`
	AccountName   string  `json:"accountName"`
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"paymentMethod"`
	PaymentID     string  `json:"paymentId"`
	Note          string  `json:"note"`
}

type creditResponse struct {
	ID        string  `json:"id"`
	PaymentID string  `json:"paymentId"`
	Amount    float64 `json:"amount"`
	Status    string  `json:"status"`
}

// RequestCredit registers a stand-alone balance top-up
// 200 — credit recorded, awaiting gateway confirmation
// 400 — malformed request body
// 500 — internal error
func (ph *PaymentHandler) RequestCredit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req creditRequest

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		if req.AccountID == "" || req.Amount <= 0 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		credit, err := ph.svc.RequestCredit(r.Context(), &models.ClientCredit{
			AccountID:     req.AccountID,
			AccountName:   req.AccountName,
			Amount:        req.Amount,
			PaymentMethod: req.PaymentMethod,
			PaymentID:     req.PaymentID,
			Note:          req.Note,
		})
		if err != nil {
			ph.logger.Error("request credit failed", zap.String("accountId", req.AccountID), zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, creditResponse{
			ID:        credit.ID,
			PaymentID: credit.PaymentID,
			Amount:    credit.Amount,
			Status:    credit.Status,
		})
	}
}
