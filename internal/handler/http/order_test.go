package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/duocun/marketplace/internal/handler/http/mocks"
	"github.com/duocun/marketplace/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOrderHandler_PlaceOrders(t *testing.T) {
	placedBody := `[{"clientId":"client1","merchantId":"merchant1","deliverDate":"2030-01-02","deliverTime":"14:00",` +
		`"items":[{"productId":"p1","quantity":2,"price":5,"cost":3}],"cost":6,"total":10,"paymentMethod":"W"}]`

	tests := []struct {
		name           string
		body           string
		setup          func(t *testing.T) *mocks.MockOrderService
		wantStatusCode int
		wantPaymentID  string
	}{
		{
			name: "valid_batch_return_200",
			body: placedBody,
			setup: func(t *testing.T) *mocks.MockOrderService {
				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockOrderService(ctrl)
				svcMock.EXPECT().PlaceOrders(gomock.Any(), gomock.Any()).Return([]*models.Order{
					{ID: "o1", Code: "000001", PaymentID: "pay1", Status: models.OrderStatusTemp, Total: 10},
				}, nil).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusOK,
			wantPaymentID:  "pay1",
		},
		{
			name: "malformed_body_return_400",
			body: `{not json`,
			setup: func(t *testing.T) *mocks.MockOrderService {
				ctrl := gomock.NewController(t)
				defer ctrl.Finish()
				return mocks.NewMockOrderService(ctrl)
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "empty_batch_return_400",
			body: `[]`,
			setup: func(t *testing.T) *mocks.MockOrderService {
				ctrl := gomock.NewController(t)
				defer ctrl.Finish()
				return mocks.NewMockOrderService(ctrl)
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "out_of_stock_return_422",
			body: placedBody,
			setup: func(t *testing.T) *mocks.MockOrderService {
				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockOrderService(ctrl)
				svcMock.EXPECT().PlaceOrders(gomock.Any(), gomock.Any()).Return(nil,
					&models.OutOfStockError{ProductID: "p1", ProductName: "Tofu", Quantity: 1}).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusUnprocessableEntity,
		},
		{
			name: "internal_error_return_500",
			body: placedBody,
			setup: func(t *testing.T) *mocks.MockOrderService {
				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockOrderService(ctrl)
				svcMock.EXPECT().PlaceOrders(gomock.Any(), gomock.Any()).Return(nil, models.ErrInternalError).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(tt.body))
			require.NoError(t, err)

			w := httptest.NewRecorder()

			oh := NewOrderHandler(tt.setup(t), zap.NewNop())
			oh.PlaceOrders().ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatusCode, w.Code)

			if tt.wantPaymentID != "" {
				var resp placeOrdersResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
				assert.Equal(t, tt.wantPaymentID, resp.PaymentID)
				require.Len(t, resp.Orders, 1)
				assert.Equal(t, "000001", resp.Orders[0].Code)
			}
		})
	}
}

func TestOrderHandler_CancelOrder(t *testing.T) {
	tests := []struct {
		name           string
		orderID        string
		setup          func(t *testing.T) *mocks.MockOrderService
		wantStatusCode int
	}{
		{
			name:    "cancelled_return_200",
			orderID: "o1",
			setup: func(t *testing.T) *mocks.MockOrderService {
				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockOrderService(ctrl)
				svcMock.EXPECT().Cancel(gomock.Any(), "o1").Return(&models.Order{
					ID: "o1", Status: models.OrderStatusDeleted,
				}, nil).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:    "unknown_order_return_404",
			orderID: "missing",
			setup: func(t *testing.T) *mocks.MockOrderService {
				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockOrderService(ctrl)
				svcMock.EXPECT().Cancel(gomock.Any(), "missing").Return(nil, models.ErrDataNotFound).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:    "wrong_state_return_409",
			orderID: "o2",
			setup: func(t *testing.T) *mocks.MockOrderService {
				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockOrderService(ctrl)
				svcMock.EXPECT().Cancel(gomock.Any(), "o2").Return(nil,
					&models.CancelStateError{OrderID: "o2", Status: models.OrderStatusDone}).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodDelete, "/api/orders/"+tt.orderID, nil)
			require.NoError(t, err)

			w := httptest.NewRecorder()

			oh := NewOrderHandler(tt.setup(t), zap.NewNop())

			router := chi.NewRouter()
			router.Delete("/api/orders/{id}", oh.CancelOrder())
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatusCode, w.Code)
		})
	}
}
