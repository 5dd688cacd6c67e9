package risk

// PositionSize computes the entry quantity for a fixed-fraction risk
// model: qty = (equity * riskPct) / (entryPrice * slPct). ok is false,
// meaning do not trade, when any input or the result is not strictly
// positive.
func PositionSize(equity, riskPct, entryPrice, slPct float64) (float64, bool) {
	if equity <= 0 || riskPct <= 0 || entryPrice <= 0 || slPct <= 0 {
		return 0, false
	}
	qty := (equity * riskPct) / (entryPrice * slPct)
	if qty <= 0 {
		return 0, false
	}
	return qty, true
}
