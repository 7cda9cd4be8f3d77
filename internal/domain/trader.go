package domain

// TraderRole distinguishes buyers from sellers.
type TraderRole string

const (
	TraderRoleBuyer  TraderRole = "buyer"
	TraderRoleSeller TraderRole = "seller"
)

// Trader is a market participant with a private valuation for one unit of
// the good. Entitlement is the quantity the trader is endowed to trade and
// is used when computing theoretical surplus.
type Trader struct {
	TraderID    string
	Role        TraderRole
	Valuation   float64
	Entitlement int64
}

// IsBuyer reports whether the trader is on the buy side.
func (t *Trader) IsBuyer() bool {
	return t.Role == TraderRoleBuyer
}
