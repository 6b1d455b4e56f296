package orb

import "github.com/shopspring/decimal"

// ShareSize converts a fixed-fraction risk budget into whole shares.
// The budget is riskPct percent of account value; dividing by the per-share
// distance between entry and stop gives the position size. Decimal math
// keeps the division exact before the final floor.
func ShareSize(accountValue, riskPct, entryPrice, stopPrice float64) int {
	perShare := decimal.NewFromFloat(entryPrice).Sub(decimal.NewFromFloat(stopPrice)).Abs()
	if perShare.IsZero() || accountValue <= 0 || riskPct <= 0 {
		return 0
	}
	budget := decimal.NewFromFloat(accountValue).
		Mul(decimal.NewFromFloat(riskPct)).
		Div(decimal.NewFromInt(100))
	shares := budget.Div(perShare).Floor()
	if !shares.IsPositive() {
		return 0
	}
	return int(shares.IntPart())
}
