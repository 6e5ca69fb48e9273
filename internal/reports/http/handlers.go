// Package reportshttp exposes the statistics report over the JSON API.
package reportshttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fixpoint-erp/fixpoint-erp/internal/observability"
	"github.com/fixpoint-erp/fixpoint-erp/internal/platform/httpx"
	"github.com/fixpoint-erp/fixpoint-erp/internal/reports"
	"github.com/fixpoint-erp/fixpoint-erp/internal/reports/export"
	"github.com/fixpoint-erp/fixpoint-erp/internal/shared"
)

// Service exposes the report builder required by the handler.
type Service interface {
	Build(ctx context.Context, params reports.Params) (reports.Report, error)
}

// Queue hands report work to the background worker.
type Queue interface {
	EnqueueReportExport(ctx context.Context, companyID int64, dateFrom, dateTo, format string) (string, error)
	EnqueueProfitLinkSweep(ctx context.Context, companyID int64) (string, error)
}

// Handler serves manager and admin statistics endpoints. Both go through
// the same Service, which is what keeps their figures identical.
type Handler struct {
	logger  *slog.Logger
	service Service
	cache   *reports.Cache
	metrics *observability.Metrics
	queue   Queue
}

// NewHandler wires a report handler.
func NewHandler(logger *slog.Logger, service Service, cache *reports.Cache, metrics *observability.Metrics, queue Queue) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, cache: cache, metrics: metrics, queue: queue}
}

// MountRoutes attaches the manager-facing endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/statistics", h.handleStatistics)
	r.Get("/statistics/export", h.handleExport)
}

// MountAdminRoutes attaches the cross-company analytics endpoints.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/statistics", h.handleAdminStatistics)
	r.Post("/export", h.handleAdminExportAsync)
	r.Post("/recompute", h.handleAdminRecompute)
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	params := paramsFromQuery(r, identity.CompanyID)
	h.respondReport(w, r, params)
}

func (h *Handler) handleAdminStatistics(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	if !identity.IsAdmin() {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	companyID, _ := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("company_id")), 10, 64)
	params := paramsFromQuery(r, companyID)
	h.respondReport(w, r, params)
}

func (h *Handler) respondReport(w http.ResponseWriter, r *http.Request, params reports.Params) {
	report, err := h.buildCached(r.Context(), params)
	h.metrics.ObserveReportBuild(err, len(report.DegradedTerms))
	if err != nil {
		h.respondBuildError(w, err)
		return
	}
	httpx.OK(w, report)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	companyID := identity.CompanyID
	if identity.IsAdmin() {
		if v := strings.TrimSpace(r.URL.Query().Get("company_id")); v != "" {
			companyID, _ = strconv.ParseInt(v, 10, 64)
		}
	}
	params := paramsFromQuery(r, companyID)

	// Exports always recompute; a stale snapshot in a download is worse
	// than the extra query cost.
	report, err := h.service.Build(r.Context(), params)
	h.metrics.ObserveReportBuild(err, len(report.DegradedTerms))
	if err != nil {
		h.respondBuildError(w, err)
		return
	}

	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = "csv"
	}
	base := fmt.Sprintf("statistics_%d_%s_%s", params.CompanyID, report.DateRange.From, report.DateRange.To)
	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="`+base+`.csv"`)
		if err := export.WriteCSV(w, report); err != nil {
			h.logger.Error("write csv export", slog.Any("error", err))
		}
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="`+base+`.xlsx"`)
		if err := export.WriteXLSX(w, report); err != nil {
			h.logger.Error("write xlsx export", slog.Any("error", err))
		}
	default:
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unsupported format "+format)
	}
}

// handleAdminExportAsync queues an export instead of streaming it; large
// ranges take too long for a request-scoped download.
func (h *Handler) handleAdminExportAsync(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	if !identity.IsAdmin() {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	if h.queue == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "background queue is not configured")
		return
	}

	q := r.URL.Query()
	companyID, _ := strconv.ParseInt(strings.TrimSpace(q.Get("company_id")), 10, 64)
	if companyID <= 0 {
		httpx.Fail(w, http.StatusBadRequest, shared.ErrCompanyRequired.Error())
		return
	}
	format := strings.ToLower(strings.TrimSpace(q.Get("format")))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unsupported format "+format)
		return
	}

	taskID, err := h.queue.EnqueueReportExport(r.Context(), companyID,
		strings.TrimSpace(q.Get("date_from")), strings.TrimSpace(q.Get("date_to")), format)
	if err != nil {
		h.logger.Error("enqueue report export", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Queue Error", err.Error())
		return
	}
	httpx.JSON(w, http.StatusAccepted, httpx.Envelope{Success: true, Data: map[string]string{"task_id": taskID}})
}

// handleAdminRecompute queues a profit link sweep. company_id zero sweeps
// every company, same as the nightly run.
func (h *Handler) handleAdminRecompute(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	if !identity.IsAdmin() {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	if h.queue == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "background queue is not configured")
		return
	}

	companyID, _ := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("company_id")), 10, 64)
	taskID, err := h.queue.EnqueueProfitLinkSweep(r.Context(), companyID)
	if err != nil {
		h.logger.Error("enqueue profit link sweep", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Queue Error", err.Error())
		return
	}
	httpx.JSON(w, http.StatusAccepted, httpx.Envelope{Success: true, Data: map[string]string{"task_id": taskID}})
}

func (h *Handler) buildCached(ctx context.Context, params reports.Params) (reports.Report, error) {
	loader := func(ctx context.Context) (any, error) {
		return h.service.Build(ctx, params)
	}
	if h.cache == nil {
		value, err := loader(ctx)
		if err != nil {
			return reports.Report{}, err
		}
		return value.(reports.Report), nil
	}
	key, err := h.cache.BuildKey(ctx, reports.KeyStatistics(params.CompanyID, orDash(params.DateFrom), orDash(params.DateTo)))
	if err != nil {
		// Cache trouble never blocks the report.
		h.logger.Warn("report cache key", slog.Any("error", err))
		value, err := loader(ctx)
		if err != nil {
			return reports.Report{}, err
		}
		return value.(reports.Report), nil
	}
	var report reports.Report
	if err := h.cache.FetchJSON(ctx, key, &report, loader); err != nil {
		return reports.Report{}, err
	}
	return report, nil
}

func (h *Handler) respondBuildError(w http.ResponseWriter, err error) {
	if errors.Is(err, shared.ErrCompanyRequired) {
		httpx.Fail(w, http.StatusBadRequest, shared.ErrCompanyRequired.Error())
		return
	}
	h.logger.Error("build report", slog.Any("error", err))
	httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
}

func paramsFromQuery(r *http.Request, companyID int64) reports.Params {
	q := r.URL.Query()
	return reports.Params{
		CompanyID: companyID,
		DateFrom:  strings.TrimSpace(q.Get("date_from")),
		DateTo:    strings.TrimSpace(q.Get("date_to")),
	}
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
