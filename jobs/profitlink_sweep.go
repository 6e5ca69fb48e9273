package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/fixpoint-erp/fixpoint-erp/internal/observability"
	"github.com/fixpoint-erp/fixpoint-erp/internal/reports"
	"github.com/fixpoint-erp/fixpoint-erp/internal/swaps"
)

// SweepRepository lists the swaps a sweep run has to look at.
type SweepRepository interface {
	PendingFinalization(ctx context.Context, companyID int64) ([]swaps.Record, error)
	CompanyIDs(ctx context.Context) ([]int64, error)
}

// ProfitResolver finalizes a swap's profit once both legs have sold.
type ProfitResolver interface {
	Resolve(ctx context.Context, rec swaps.Record) *float64
}

// ProfitLinkSweeper walks swaps whose both legs have sold and finalizes
// their profit links, so dashboards stop re-deriving the same figures.
type ProfitLinkSweeper struct {
	repo     SweepRepository
	resolver ProfitResolver
	cache    *reports.Cache
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewProfitLinkSweeper wires the sweeper.
func NewProfitLinkSweeper(repo SweepRepository, resolver ProfitResolver, cache *reports.Cache, metrics *observability.Metrics, logger *slog.Logger) *ProfitLinkSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfitLinkSweeper{repo: repo, resolver: resolver, cache: cache, metrics: metrics, logger: logger}
}

// Handle processes TaskTypeProfitLinkSweep tasks.
func (s *ProfitLinkSweeper) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ProfitLinkSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	err := s.Sweep(ctx, payload.CompanyID)
	s.metrics.ObserveJob(TaskTypeProfitLinkSweep, err)
	return err
}

// Sweep runs one pass. companyID zero sweeps every company with swaps.
func (s *ProfitLinkSweeper) Sweep(ctx context.Context, companyID int64) error {
	companies := []int64{companyID}
	if companyID == 0 {
		ids, err := s.repo.CompanyIDs(ctx)
		if err != nil {
			return err
		}
		companies = ids
	}

	var resolved int
	for _, id := range companies {
		pending, err := s.repo.PendingFinalization(ctx, id)
		if err != nil {
			return err
		}
		for _, rec := range pending {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if s.resolver.Resolve(ctx, rec) != nil {
				resolved++
			}
		}
	}

	if resolved > 0 {
		// Finalized links change report figures, so cached reports go stale.
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Warn("bump report cache", slog.Any("error", err))
		}
	}
	s.logger.Info("profit link sweep done",
		slog.Int("companies", len(companies)),
		slog.Int("resolved", resolved))
	return nil
}
