package models

import "time"

// Order status letters follow the production database encoding.
const (
	OrderStatusBad             = "B"  // externally reversed, compensated outside normal flow
	OrderStatusDeleted         = "D"  // cancelled, kept for audit
	OrderStatusTemp            = "T"  // placed, awaiting gateway payment
	OrderStatusNew             = "N"
	OrderStatusLoaded          = "L"  // driver picked up from merchant
	OrderStatusDone            = "F"  // delivered
	OrderStatusMerchantChecked = "MC" // viewed by merchant
)

// payment status
const (
	PaymentStatusUnpaid    = "U"
	PaymentStatusPaid      = "P"
	PaymentStatusReceiving = "RI"
)

// payment method
const (
	PaymentMethodCash       = "CA"
	PaymentMethodWechat     = "W"
	PaymentMethodAli        = "A"
	PaymentMethodUnion      = "U"
	PaymentMethodCreditCard = "CC"
	PaymentMethodPrepay     = "P"
)

// order type
const (
	OrderTypeFoodDelivery = "F"
	OrderTypeGrocery      = "G"
)

var validNext = map[string]map[string]bool{
	OrderStatusTemp:            {OrderStatusNew: true, OrderStatusDeleted: true},
	OrderStatusNew:             {OrderStatusMerchantChecked: true, OrderStatusDeleted: true},
	OrderStatusMerchantChecked: {OrderStatusLoaded: true, OrderStatusDone: true, OrderStatusDeleted: true},
	OrderStatusLoaded:          {OrderStatusDone: true},
	OrderStatusDone:            {},
	OrderStatusDeleted:         {},
	OrderStatusBad:             {},
}

// CanTransition reports whether an order may move between two statuses
// through the normal flow. BAD is reachable only by reconciliation tooling.
func CanTransition(from, to string) bool {
	return validNext[from][to]
}

// IsDeferredPayment reports whether the method settles through a gateway
// webhook instead of at placement time.
func IsDeferredPayment(method string) bool {
	switch method {
	case PaymentMethodCash, PaymentMethodPrepay:
		return false
	}
	return true
}

// OrderItem snapshots unit price and cost at the time of purchase.
// They must never be recomputed from the live product afterwards.
type OrderItem struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName,omitempty"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	Cost        float64 `json:"cost"`
}

// Order is one merchant-scoped purchase. Every order placed in the same
// checkout shares a PaymentID, the idempotency key for settlement.
type Order struct {
	ID           string
	Code         string
	Type         string
	ClientID     string
	ClientName   string
	MerchantID   string
	MerchantName string
	DriverID     string
	DriverName   string

	Items       []OrderItem
	DeliverDate string // e.g. 2020-11-01
	DeliverTime string // e.g. 14:00
	Note        string
	Address     string

	Cost             float64 // wholesale
	Price            float64 // retail before extras
	Tax              float64
	Tips             float64
	DeliveryCost     float64
	DeliveryDiscount float64
	GroupDiscount    float64
	OverRangeCharge  float64
	Total            float64

	PaymentMethod string
	PaymentID     string
	Status        string
	PaymentStatus string

	Delivered time.Time
	Created   time.Time
	Modified  time.Time
}
