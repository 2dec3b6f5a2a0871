package models

import "math"

// RoundMoney rounds to 2-decimal currency units. All ledger amounts and
// balance snapshots pass through this before persisting.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
