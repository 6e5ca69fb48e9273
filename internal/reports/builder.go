package reports

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/fixpoint-erp/fixpoint-erp/internal/finance"
	"github.com/fixpoint-erp/fixpoint-erp/internal/shared"
	"github.com/fixpoint-erp/fixpoint-erp/internal/swaps"
)

// LedgerService summarises a company's swap ledger.
type LedgerService interface {
	Summarize(ctx context.Context, companyID int64) (swaps.Summary, error)
}

// FinanceService reconciles the financial summary, optionally reusing a
// precomputed ledger summary.
type FinanceService interface {
	Compute(ctx context.Context, p shared.Period, ledger *swaps.Summary) (finance.Summary, []finance.Degradation, error)
}

// SiblingsRepository serves the simple aggregates outside the hard core.
type SiblingsRepository interface {
	Overview(ctx context.Context, p shared.Period) (OverviewSection, error)
	RepairStats(ctx context.Context, p shared.Period) (RepairsSection, error)
	TopProducts(ctx context.Context, p shared.Period) ([]ProductStat, error)
	StaffPerformance(ctx context.Context, p shared.Period) ([]StaffStat, error)
}

// Builder orchestrates one report build. It threads the same ledger summary
// into both the swaps section and the financial aggregator so the two
// sections are numerically consistent, and it is shared by the manager
// dashboard, the admin analytics view, and export jobs so all of them see
// identical figures.
type Builder struct {
	ledger   LedgerService
	finance  FinanceService
	siblings SiblingsRepository
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewBuilder wires a Builder.
func NewBuilder(ledger LedgerService, financeSvc FinanceService, siblings SiblingsRepository, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		ledger:   ledger,
		finance:  financeSvc,
		siblings: siblings,
		logger:   logger,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Build assembles the full report. Missing company id is the only fatal
// input error; every internal failure degrades its section and the report
// is still returned.
func (b *Builder) Build(ctx context.Context, params Params) (Report, error) {
	if params.CompanyID <= 0 {
		return Report{}, shared.ErrCompanyRequired
	}
	if err := b.validate.Struct(params); err != nil {
		return Report{}, fmt.Errorf("reports: invalid params: %w", err)
	}
	period, err := shared.ResolvePeriod(params.CompanyID, params.DateFrom, params.DateTo, b.now())
	if err != nil {
		return Report{}, err
	}

	var (
		ledgerSummary swaps.Summary
		ledgerErr     error
		overview      OverviewSection
		overviewErr   error
		repairStats   RepairsSection
		repairErr     error
		topProducts   []ProductStat
		productsErr   error
		staff         []StaffStat
		staffErr      error
	)

	// Sub-fetches are independent of one another; only the financial
	// aggregation depends on the ledger, so it runs after the group.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ledgerSummary, ledgerErr = b.ledger.Summarize(gctx, period.CompanyID)
		return nil
	})
	g.Go(func() error {
		overview, overviewErr = b.siblings.Overview(gctx, period)
		return nil
	})
	g.Go(func() error {
		repairStats, repairErr = b.siblings.RepairStats(gctx, period)
		return nil
	})
	g.Go(func() error {
		topProducts, productsErr = b.siblings.TopProducts(gctx, period)
		return nil
	})
	g.Go(func() error {
		staff, staffErr = b.siblings.StaffPerformance(gctx, period)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	if ctx.Err() != nil {
		return Report{}, ctx.Err()
	}

	var degraded []finance.Degradation
	note := func(term string, err error) {
		b.logger.Warn("report section degraded",
			slog.String("term", term),
			slog.Int64("company_id", period.CompanyID),
			slog.Any("error", err))
		degraded = append(degraded, finance.Degradation{Term: term, Reason: err.Error()})
	}

	// When the ledger itself failed the aggregator gets nil and falls back
	// to the persisted profit links instead of a zeroed summary.
	ledgerForFinance := &ledgerSummary
	if ledgerErr != nil {
		note("swap_ledger", ledgerErr)
		ledgerSummary = swaps.Summary{}
		ledgerForFinance = nil
	}
	if overviewErr != nil {
		note("overview", overviewErr)
		overview = OverviewSection{}
	}
	if repairErr != nil {
		note("repair_stats", repairErr)
		repairStats = RepairsSection{ByStatus: map[string]int{}}
	}
	if productsErr != nil {
		note("top_products", productsErr)
		topProducts = nil
	}
	if staffErr != nil {
		note("staff_performance", staffErr)
		staff = nil
	}

	financial, financeDegraded, err := b.finance.Compute(ctx, period, ledgerForFinance)
	if err != nil {
		return Report{}, err
	}
	degraded = append(degraded, financeDegraded...)

	if repairStats.ByStatus == nil {
		repairStats.ByStatus = map[string]int{}
	}

	return Report{
		Swaps:         swapsSectionFrom(ledgerSummary),
		Financial:     financial,
		Overview:      overview,
		Repairs:       repairStats,
		TopProducts:   topProducts,
		Staff:         staff,
		DateRange:     DateRange{From: period.FromString(), To: period.ToString()},
		DegradedTerms: degraded,
	}, nil
}
