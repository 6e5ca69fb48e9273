// Package reports assembles the statistics report: the swap ledger and
// financial summary plus the simple sibling aggregates, one payload per
// company and date range.
package reports

import (
	"github.com/fixpoint-erp/fixpoint-erp/internal/finance"
	"github.com/fixpoint-erp/fixpoint-erp/internal/swaps"
)

// Params drives a report build. CompanyID is the only required input;
// missing dates default to the last 30 days through today.
type Params struct {
	CompanyID int64  `validate:"required,gt=0"`
	DateFrom  string `validate:"omitempty,datetime=2006-01-02"`
	DateTo    string `validate:"omitempty,datetime=2006-01-02"`
}

// SwapsSection is the swap ledger block of the report payload.
type SwapsSection struct {
	TotalSwaps      int     `json:"total_swaps"`
	Pending         int     `json:"pending"`
	Completed       int     `json:"completed"`
	Resold          int     `json:"resold"`
	TotalValue      float64 `json:"total_value"`
	TotalProfit     float64 `json:"total_profit"`
	TotalLoss       float64 `json:"total_loss"`
	EstimatedProfit float64 `json:"estimated_profit"`
	InStockItems    int     `json:"in_stock_items"`
	InStockValue    float64 `json:"in_stock_value"`
}

// swapsSectionFrom maps the ledger summary into the report block, applying
// the payload's 2-decimal rounding.
func swapsSectionFrom(s swaps.Summary) SwapsSection {
	return SwapsSection{
		TotalSwaps:      s.TotalSwaps,
		Pending:         s.Pending,
		Completed:       s.Completed,
		Resold:          s.Resold,
		TotalValue:      finance.Round2(s.TotalValue),
		TotalProfit:     finance.Round2(s.RealizedProfit),
		TotalLoss:       finance.Round2(s.RealizedLoss),
		EstimatedProfit: finance.Round2(s.EstimatedProfit),
		InStockItems:    s.InStockItems,
		InStockValue:    finance.Round2(s.InStockValue),
	}
}

// OverviewSection carries headline entity counts.
type OverviewSection struct {
	TotalSales    int `json:"total_sales"`
	TotalRepairs  int `json:"total_repairs"`
	TotalSwaps    int `json:"total_swaps"`
	TotalProducts int `json:"total_products"`
}

// RepairsSection summarises repair orders by workflow status.
type RepairsSection struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

// ProductStat is one row of the top-products block.
type ProductStat struct {
	Name      string  `json:"name"`
	UnitsSold float64 `json:"units_sold"`
	Revenue   float64 `json:"revenue"`
}

// StaffStat is one row of the staff performance block.
type StaffStat struct {
	UserID       int64   `json:"user_id"`
	Name         string  `json:"name"`
	SalesCount   int     `json:"sales_count"`
	SalesRevenue float64 `json:"sales_revenue"`
}

// DateRange echoes the report's resolved calendar bounds.
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Report is the full statistics payload. The swaps block and the financial
// block are computed from the same ledger summary so the two always agree.
type Report struct {
	Swaps         SwapsSection          `json:"swaps"`
	Financial     finance.Summary       `json:"financial"`
	Overview      OverviewSection       `json:"overview"`
	Repairs       RepairsSection        `json:"repairs"`
	TopProducts   []ProductStat         `json:"top_products"`
	Staff         []StaffStat           `json:"staff"`
	DateRange     DateRange             `json:"date_range"`
	DegradedTerms []finance.Degradation `json:"degraded_terms,omitempty"`
}
