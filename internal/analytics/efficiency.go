package analytics

import (
	"math"

	"auctionhouse/internal/domain"
)

// EfficiencyReport compares the realized outcome of a market against the
// theoretical competitive outcome. Ratio metrics that would divide by zero
// are nil — explicitly undefined, never NaN or Inf.
type EfficiencyReport struct {
	TheoreticalBuyerSurplus  float64
	TheoreticalSellerSurplus float64
	ActualSurplus            float64

	// Efficiency is actual/theoretical surplus ×100; nil when the
	// theoretical surplus is zero.
	Efficiency *float64

	// PriceConvergence is the RMS deviation of executed transaction
	// prices around the equilibrium mid-price, as a percentage of that
	// price; nil without executed transactions or a usable mid-price.
	PriceConvergence *float64

	// ProfitDispersion is the RMS gap between each trader's theoretical
	// and actual profit.
	ProfitDispersion float64
}

// ComputeEfficiency evaluates the executed transactions against the
// equilibrium report and the traders' private valuations. Transactions
// that are not executed are ignored.
func ComputeEfficiency(eq Equilibrium, txs []*domain.Transaction, traders []*domain.Trader) EfficiencyReport {
	var rep EfficiencyReport

	theoretical := make(map[string]float64, len(traders))
	if eq.Found {
		for _, t := range traders {
			var profit float64
			if t.IsBuyer() {
				profit = (t.Valuation - eq.MidPrice) * float64(t.Entitlement)
			} else {
				profit = (eq.MidPrice - t.Valuation) * float64(t.Entitlement)
			}
			if profit <= 0 {
				// Extra-marginal traders sit out of the competitive
				// outcome.
				continue
			}
			theoretical[t.TraderID] = profit
			if t.IsBuyer() {
				rep.TheoreticalBuyerSurplus += profit
			} else {
				rep.TheoreticalSellerSurplus += profit
			}
		}
	}

	valuations := make(map[string]*domain.Trader, len(traders))
	for _, t := range traders {
		valuations[t.TraderID] = t
	}

	actual := make(map[string]float64)
	var executed []*domain.Transaction
	for _, tx := range txs {
		if tx.State != domain.TransactionStateExecuted {
			continue
		}
		executed = append(executed, tx)
		if buyer, ok := valuations[tx.Bid.TraderID]; ok {
			profit := (buyer.Valuation - tx.Price) * float64(tx.Quantity)
			actual[buyer.TraderID] += profit
			rep.ActualSurplus += profit
		}
		if seller, ok := valuations[tx.Ask.TraderID]; ok {
			profit := (tx.Price - seller.Valuation) * float64(tx.Quantity)
			actual[seller.TraderID] += profit
			rep.ActualSurplus += profit
		}
	}

	if total := rep.TheoreticalBuyerSurplus + rep.TheoreticalSellerSurplus; total > 0 {
		eff := rep.ActualSurplus / total * 100
		rep.Efficiency = &eff
	}

	if eq.Found && eq.MidPrice != 0 && len(executed) > 0 {
		var sq float64
		for _, tx := range executed {
			d := tx.Price - eq.MidPrice
			sq += d * d
		}
		alpha := 100 / eq.MidPrice * math.Sqrt(sq/float64(len(executed)))
		rep.PriceConvergence = &alpha
	}

	if len(traders) > 0 {
		var sq float64
		for _, t := range traders {
			d := theoretical[t.TraderID] - actual[t.TraderID]
			sq += d * d
		}
		rep.ProfitDispersion = math.Sqrt(sq / float64(len(traders)))
	}

	return rep
}
