package auction

import (
	"auctionhouse/internal/domain"
)

// FreeCharging levies no fees.
type FreeCharging struct{}

func (FreeCharging) ShoutCharge(*domain.Shout) float64             { return 0 }
func (FreeCharging) TransactionCharge(*domain.Transaction) float64 { return 0 }

// FixedCharging levies flat fees per placed shout and per executed
// transaction side.
type FixedCharging struct {
	ShoutFee       float64
	TransactionFee float64
}

func (p FixedCharging) ShoutCharge(*domain.Shout) float64 {
	return p.ShoutFee
}

func (p FixedCharging) TransactionCharge(*domain.Transaction) float64 {
	return p.TransactionFee
}

// FractionalCharging takes a fraction of each executed pair's surplus
// (the bid/ask price gap times quantity) from each counterparty.
type FractionalCharging struct {
	Fraction float64 // [0,1]
}

func (FractionalCharging) ShoutCharge(*domain.Shout) float64 { return 0 }

func (p FractionalCharging) TransactionCharge(tx *domain.Transaction) float64 {
	return p.Fraction * tx.Surplus() / 2
}
