package models

import "time"

// ClientCredit is a stand-alone balance top-up awaiting gateway confirmation.
// It shares the paymentId namespace with order batches: when a settlement
// notification matches no orders, the engine looks for a pending credit.
type ClientCredit struct {
	ID            string
	AccountID     string
	AccountName   string
	Amount        float64
	PaymentMethod string
	PaymentID     string
	Note          string
	Status        string // PaymentStatusUnpaid / PaymentStatusPaid
	Created       time.Time
}
