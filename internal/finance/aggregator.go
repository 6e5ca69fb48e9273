package finance

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/fixpoint-erp/fixpoint-erp/internal/shared"
	"github.com/fixpoint-erp/fixpoint-erp/internal/swaps"
)

// assumedCostRatio estimates sales cost when no line-item cost data is
// resolvable: 80% of revenue, i.e. an assumed 20% margin. A documented
// approximation, surfaced through the degraded-terms list.
const assumedCostRatio = 0.80

// Repository is the data access the aggregator needs. Every method may fail
// on schema variability; failures degrade the term, never the summary.
type Repository interface {
	SalesRevenue(ctx context.Context, p shared.Period) (float64, error)
	SalesCost(ctx context.Context, p shared.Period) (cost float64, resolved bool, err error)
	RepairRevenue(ctx context.Context, p shared.Period) (float64, error)
	RepairEconomics(ctx context.Context, p shared.Period) (cost, profit float64, err error)
	SwapProfitFromLinks(ctx context.Context, p shared.Period) (float64, error)
}

// Aggregator reconciles sales, repair, and swap economics into one Summary.
// Both the manager dashboard and the admin analytics view call the same
// Compute, which is what guarantees they agree.
type Aggregator struct {
	repo   Repository
	logger *slog.Logger
}

// NewAggregator wires an Aggregator.
func NewAggregator(repo Repository, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{repo: repo, logger: logger}
}

// Compute produces the financial summary for the period. When the caller
// already holds a swap ledger summary it is passed in so every view reports
// the exact same swap profit; otherwise the persisted profit links serve as
// the fallback source. Sub-computation failures zero their term and are
// returned as degradations; the only error surfaced is context cancellation.
func (a *Aggregator) Compute(ctx context.Context, p shared.Period, ledger *swaps.Summary) (Summary, []Degradation, error) {
	var degraded []Degradation
	fail := func(term string, err error) bool {
		if ctx.Err() != nil {
			return true
		}
		a.logger.Warn("financial term degraded",
			slog.String("term", term),
			slog.Int64("company_id", p.CompanyID),
			slog.Any("error", err))
		degraded = append(degraded, Degradation{Term: term, Reason: err.Error()})
		return false
	}

	salesRevenue, err := a.repo.SalesRevenue(ctx, p)
	if err != nil {
		if fail("sales_revenue", err) {
			return Summary{}, nil, ctx.Err()
		}
		salesRevenue = 0
	}

	salesCost, resolved, err := a.repo.SalesCost(ctx, p)
	switch {
	case err != nil:
		if fail("sales_cost", err) {
			return Summary{}, nil, ctx.Err()
		}
		salesCost = 0
	case !resolved && salesRevenue > 0:
		salesCost = salesRevenue * assumedCostRatio
		degraded = append(degraded, Degradation{
			Term:   "sales_cost",
			Reason: "no cost data resolvable; estimated at assumed 20% margin",
		})
	}

	repairRevenue, err := a.repo.RepairRevenue(ctx, p)
	if err != nil {
		if fail("repair_revenue", err) {
			return Summary{}, nil, ctx.Err()
		}
		repairRevenue = 0
	}

	repairerCost, repairerProfit, err := a.repo.RepairEconomics(ctx, p)
	if err != nil {
		if fail("repairer_economics", err) {
			return Summary{}, nil, ctx.Err()
		}
		repairerCost, repairerProfit = 0, 0
	}

	var swapProfit float64
	if ledger != nil {
		swapProfit = ledger.RealizedProfit
	} else {
		swapProfit, err = a.repo.SwapProfitFromLinks(ctx, p)
		if err != nil {
			if fail("swap_profit", err) {
				return Summary{}, nil, ctx.Err()
			}
			swapProfit = 0
		}
	}

	// Terms are rounded before combining so the reported identities
	// (total_revenue = sales + repair, total_profit = revenue - cost)
	// hold exactly at 2 decimals.
	salesRevenue = Round2(salesRevenue)
	salesCost = Round2(salesCost)
	repairRevenue = Round2(repairRevenue)
	repairerCost = Round2(repairerCost)
	repairerProfit = Round2(repairerProfit)
	swapProfit = Round2(swapProfit)

	totalRevenue := Round2(salesRevenue + repairRevenue)
	totalCost := Round2(salesCost + repairerCost)
	if totalCost < 0 {
		a.logger.Warn("negative total cost clamped to zero",
			slog.Int64("company_id", p.CompanyID),
			slog.Float64("total_cost", totalCost))
		totalCost = 0
	}
	if totalCost > totalRevenue {
		a.logger.Warn("cost exceeds revenue for period",
			slog.Int64("company_id", p.CompanyID),
			slog.Float64("total_revenue", totalRevenue),
			slog.Float64("total_cost", totalCost))
	}

	// Swap and repairer profit ride alongside as informational figures;
	// total profit stays strictly revenue minus cost over sales and
	// repairs, since swap sales were already excluded from the sales
	// terms.
	totalProfit := Round2(totalRevenue - totalCost)
	var margin float64
	if totalRevenue != 0 {
		margin = totalProfit / totalRevenue * 100
	}

	summary := Summary{
		SalesRevenue:   salesRevenue,
		SalesCost:      salesCost,
		RepairRevenue:  repairRevenue,
		RepairerCost:   repairerCost,
		RepairerProfit: repairerProfit,
		SwapProfit:     swapProfit,
		TotalRevenue:   totalRevenue,
		TotalCost:      totalCost,
		TotalProfit:    totalProfit,
		ProfitMargin:   Round2(margin),
	}
	return summary, degraded, nil
}

// Round2 rounds a monetary value to 2 decimal places. Applied once, at the
// aggregator boundary.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
