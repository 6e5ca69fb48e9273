// Package finance aggregates sales, repair, and swap economics into one
// internally consistent financial summary for a company and date range.
package finance

// Summary is the reconciled revenue/cost/profit statement. All monetary
// fields are rounded to 2 decimal places at the aggregator boundary, never
// before.
type Summary struct {
	SalesRevenue   float64 `json:"sales_revenue"`
	SalesCost      float64 `json:"sales_cost"`
	RepairRevenue  float64 `json:"repair_revenue"`
	RepairerCost   float64 `json:"repairer_cost"`
	RepairerProfit float64 `json:"repairer_profit"`
	SwapProfit     float64 `json:"swap_profit"`
	TotalRevenue   float64 `json:"total_revenue"`
	TotalCost      float64 `json:"total_cost"`
	TotalProfit    float64 `json:"total_profit"`
	ProfitMargin   float64 `json:"profit_margin"`
}

// Degradation records a sub-computation that fell back to zero. The report
// stays best-effort; the degraded terms are surfaced for observability
// instead of being silently swallowed.
type Degradation struct {
	Term   string `json:"term"`
	Reason string `json:"reason"`
}
