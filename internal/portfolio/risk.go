package portfolio

// RiskMetrics summarise how much of the account is deployed and how
// concentrated it is.
type RiskMetrics struct {
	CashUtilizationPct   float64 `json:"cashUtilizationPct"`
	OpenPositions        int     `json:"openPositions"`
	LargestAllocation    string  `json:"largestAllocation,omitempty"`
	LargestAllocationPct float64 `json:"largestAllocationPct"`
}

// Risk derives RiskMetrics from a valuation.
func Risk(s Summary) RiskMetrics {
	rm := RiskMetrics{OpenPositions: s.OpenPositions}
	if s.Equity.IsPositive() {
		rm.CashUtilizationPct = s.MarketValue.Div(s.Equity).Mul(hundred).InexactFloat64()
	}
	for _, a := range s.Allocation {
		if a.Percent > rm.LargestAllocationPct {
			rm.LargestAllocationPct = a.Percent
			rm.LargestAllocation = a.Symbol
		}
	}
	return rm
}
