package models

import "time"

// product status
const (
	ProductStatusActive   = "A"
	ProductStatusInactive = "I"
)

// Stock is an optional per-product counter used exclusively by the inventory
// guard. Quantity may go negative only when AllowNegative is set, or when a
// forced deduction runs after a confirmed payment.
type Stock struct {
	Enabled       bool
	Quantity      int
	AllowNegative bool
}

type Product struct {
	ID         string
	MerchantID string
	Name       string
	NameEN     string
	Price      float64
	Cost       float64
	Status     string
	Stock      *Stock
	Created    time.Time
	Modified   time.Time
}
