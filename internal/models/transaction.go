package models

import "time"

// TransactionAction is an enumerated reason for a ledger entry.
type TransactionAction struct {
	Code string
	Name string
}

var (
	ActionPayDriverCash = TransactionAction{Code: "PDCH", Name: "client pay driver cash"}
	ActionPayByCard     = TransactionAction{Code: "PC", Name: "client pay by card"}
	ActionPayByWechat   = TransactionAction{Code: "PW", Name: "client pay by wechat"}
	ActionPayByAli      = TransactionAction{Code: "PA", Name: "client pay by ali"}
	ActionPayByUnionPay = TransactionAction{Code: "PU", Name: "client pay by unionpay"}

	ActionOrderFromMerchant       = TransactionAction{Code: "OFM", Name: "duocun order from merchant"}
	ActionOrderFromDuocun         = TransactionAction{Code: "OFD", Name: "client order from duocun"}
	ActionCancelOrderFromMerchant = TransactionAction{Code: "CFM", Name: "duocun cancel order from merchant"}
	ActionCancelOrderFromDuocun   = TransactionAction{Code: "CFD", Name: "client cancel order from duocun"}

	ActionRefundClient      = TransactionAction{Code: "RC", Name: "refund client"}
	ActionAddCreditByCard   = TransactionAction{Code: "ACC", Name: "client add credit by card"}
	ActionAddCreditByWechat = TransactionAction{Code: "ACW", Name: "client add credit by wechat"}
	ActionAddCreditByCash   = TransactionAction{Code: "ACCH", Name: "client add credit by cash"}
	ActionTransfer          = TransactionAction{Code: "T", Name: "transfer"}
)

// TransactionStatusVoid marks a ledger entry as logically deleted. Voided
// entries stay in the log but are excluded from balance replay.
const TransactionStatusVoid = "del"

// Transaction is an immutable directed ledger entry. It debits exactly one
// account and credits exactly one account by the same amount. FromBalance and
// ToBalance are running balance snapshots taken at insertion time.
type Transaction struct {
	ID       string
	FromID   string
	FromName string
	ToID     string
	ToName   string

	Amount     float64
	ActionCode string
	OrderID    string
	OrderType  string
	PaymentID  string
	Items      []OrderItem // snapshot carried on reversal entries for audit
	Note       string

	FromBalance float64
	ToBalance   float64
	Status      string // empty or TransactionStatusVoid

	Delivered time.Time
	Created   time.Time
	Modified  time.Time
}
