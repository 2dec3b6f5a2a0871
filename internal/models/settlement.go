package models

// StockDelta is a pending stock decrement for one product.
type StockDelta struct {
	ProductID string
	Quantity  int
}

// StockReject reports a product that blocked a reservation, carrying the
// quantity still in stock.
type StockReject struct {
	ProductID   string
	ProductName string
	Quantity    int
}

// BalanceSnapshot is one rewritten running-balance value produced by a
// ledger replay.
type BalanceSnapshot struct {
	TransactionID string
	FromSide      bool
	Balance       float64
}

// SettlementBatch is the full set of effects of one gateway confirmation.
// The batch is applied atomically under a settlement claim keyed by
// PaymentID, so a re-delivered notification applies nothing.
type SettlementBatch struct {
	PaymentID  string
	ActionCode string
	Amount     float64
	ChargeRef  string

	Entries      []*Transaction
	PaidOrderIDs []string
	CreditID     string
	StockDeltas  []StockDelta
}
