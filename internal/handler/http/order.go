package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/duocun/marketplace/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type OrderService interface {
	// PlaceOrders persists a checkout batch under one fresh payment id
	PlaceOrders(ctx context.Context, orders []*models.Order) ([]*models.Order, error)
	// Cancel reverses an order and records the compensating ledger pair
	Cancel(ctx context.Context, orderID string) (*models.Order, error)
	// Advance moves an order through the normal delivery flow
	Advance(ctx context.Context, orderID string, status string) (*models.Order, error)
	// ListByPaymentID returns every order of a checkout batch
	ListByPaymentID(ctx context.Context, paymentID string) ([]models.Order, error)
}

// OrderHandler represents HTTP handler for order-related requests
type OrderHandler struct {
	svc    OrderService
	logger *zap.Logger
}

// NewOrderHandler creates new OrderHandler instance
func NewOrderHandler(svc OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, logger: logger}
}

type orderItemRequest struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	Cost        float64 `json:"cost"`
}

type orderRequest struct {
	Type             string             `json:"type"`
	ClientID         string             `json:"clientId"`
	ClientName       string             `json:"clientName"`
	MerchantID       string             `json:"merchantId"`
	MerchantName     string             `json:"merchantName"`
	Items            []orderItemRequest `json:"items"`
	DeliverDate      string             `json:"deliverDate"`
	DeliverTime      string             `json:"deliverTime"`
	Note             string             `json:"note"`
	Address          string             `json:"address"`
	Cost             float64            `json:"cost"`
	Price            float64            `json:"price"`
	Tax              float64            `json:"tax"`
	Tips             float64            `json:"tips"`
	DeliveryCost     float64            `json:"deliveryCost"`
	DeliveryDiscount float64            `json:"deliveryDiscount"`
	GroupDiscount    float64            `json:"groupDiscount"`
	OverRangeCharge  float64            `json:"overRangeCharge"`
	Total            float64            `json:"total"`
	PaymentMethod    string             `json:"paymentMethod"`
}

type orderResponse struct {
	ID            string    `json:"id"`
	Code          string    `json:"code"`
	PaymentID     string    `json:"paymentId"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"paymentStatus"`
	Total         float64   `json:"total"`
	Delivered     time.Time `json:"delivered"`
	Created       time.Time `json:"created"`
}

type placeOrdersResponse struct {
	PaymentID string          `json:"paymentId"`
	Orders    []orderResponse `json:"orders"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// PlaceOrders accepts a checkout batch
// 200 — batch placed
// 400 — malformed request body
// 422 — validation failed, nothing persisted
// 500 — internal error
func (oh *OrderHandler) PlaceOrders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var reqs []orderRequest

		if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		if len(reqs) == 0 {
			http.Error(w, "empty batch", http.StatusBadRequest)
			return
		}

		orders := make([]*models.Order, 0, len(reqs))
		for _, req := range reqs {
			orders = append(orders, toOrder(req))
		}

		saved, err := oh.svc.PlaceOrders(r.Context(), orders)
		if err != nil {
			if isValidationError(err) {
				writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
				return
			}
			oh.logger.Error("place orders failed", zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		resp := placeOrdersResponse{PaymentID: saved[0].PaymentID}
		for _, o := range saved {
			resp.Orders = append(resp.Orders, toOrderResponse(o))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// CancelOrder reverses an order
// 200 — order cancelled
// 404 — unknown order
// 409 — order is past the point of cancellation
// 500 — internal error
func (oh *OrderHandler) CancelOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "id")
		if orderID == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		order, err := oh.svc.Cancel(r.Context(), orderID)
		if err != nil {
			var stateErr *models.CancelStateError
			switch {
			case errors.Is(err, models.ErrDataNotFound):
				http.Error(w, "order not found", http.StatusNotFound)
			case errors.As(err, &stateErr):
				writeJSON(w, http.StatusConflict, errorResponse{Error: stateErr.Error()})
			default:
				oh.logger.Error("cancel order failed", zap.String("orderId", orderID), zap.Error(err))
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusOK, toOrderResponse(order))
	}
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateOrderStatus moves an order along the delivery flow
// 200 — status updated
// 400 — malformed request body
// 404 — unknown order
// 409 — transition not allowed
// 500 — internal error
func (oh *OrderHandler) UpdateOrderStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "id")

		var req statusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		order, err := oh.svc.Advance(r.Context(), orderID, req.Status)
		if err != nil {
			var transErr *models.StatusTransitionError
			switch {
			case errors.Is(err, models.ErrDataNotFound):
				http.Error(w, "order not found", http.StatusNotFound)
			case errors.As(err, &transErr):
				writeJSON(w, http.StatusConflict, errorResponse{Error: transErr.Error()})
			default:
				oh.logger.Error("update order status failed", zap.String("orderId", orderID), zap.Error(err))
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusOK, toOrderResponse(order))
	}
}

// ListBatchOrders returns every order placed under a payment id
// 200 — batch found
// 404 — no orders carry the payment id
// 500 — internal error
func (oh *OrderHandler) ListBatchOrders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		paymentID := chi.URLParam(r, "paymentId")

		orders, err := oh.svc.ListByPaymentID(r.Context(), paymentID)
		if err != nil {
			oh.logger.Error("list batch failed", zap.String("paymentId", paymentID), zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if len(orders) == 0 {
			http.Error(w, "batch not found", http.StatusNotFound)
			return
		}

		resp := make([]orderResponse, 0, len(orders))
		for i := range orders {
			resp = append(resp, toOrderResponse(&orders[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func toOrder(req orderRequest) *models.Order {
	items := make([]models.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, models.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       it.Price,
			Cost:        it.Cost,
		})
	}

	return &models.Order{
		Type:             req.Type,
		ClientID:         req.ClientID,
		ClientName:       req.ClientName,
		MerchantID:       req.MerchantID,
		MerchantName:     req.MerchantName,
		Items:            items,
		DeliverDate:      req.DeliverDate,
		DeliverTime:      req.DeliverTime,
		Note:             req.Note,
		Address:          req.Address,
		Cost:             req.Cost,
		Price:            req.Price,
		Tax:              req.Tax,
		Tips:             req.Tips,
		DeliveryCost:     req.DeliveryCost,
		DeliveryDiscount: req.DeliveryDiscount,
		GroupDiscount:    req.GroupDiscount,
		OverRangeCharge:  req.OverRangeCharge,
		Total:            req.Total,
		PaymentMethod:    req.PaymentMethod,
	}
}

func toOrderResponse(o *models.Order) orderResponse {
	return orderResponse{
		ID:            o.ID,
		Code:          o.Code,
		PaymentID:     o.PaymentID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Total:         o.Total,
		Delivered:     o.Delivered,
		Created:       o.Created,
	}
}

func isValidationError(err error) bool {
	var (
		expired  *models.DeliveryExpiredError
		empty    *models.ItemsEmptyError
		missing  *models.ProductNotFoundError
		outStock *models.OutOfStockError
	)
	return errors.As(err, &expired) || errors.As(err, &empty) ||
		errors.As(err, &missing) || errors.As(err, &outStock)
}
