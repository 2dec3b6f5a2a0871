package models

import "time"

// account type
const (
	AccountTypeClient   = "client"
	AccountTypeMerchant = "merchant"
	AccountTypeDriver   = "driver"
	AccountTypeSystem   = "system"
)

// Account holds a balance that is a cache of the ledger sum for the account
// id. The ledger is the only writer; the cache is always re-derivable by
// replaying transactions in created order.
type Account struct {
	ID       string
	Name     string
	Type     string
	Balance  float64
	Created  time.Time
	Modified time.Time
}
