package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/fixpoint-erp/fixpoint-erp/internal/observability"
	"github.com/fixpoint-erp/fixpoint-erp/internal/reports"
	"github.com/fixpoint-erp/fixpoint-erp/internal/reports/export"
)

// ReportBuilder builds the statistics report the export renders.
type ReportBuilder interface {
	Build(ctx context.Context, params reports.Params) (reports.Report, error)
}

// ReportExporter renders statistics reports to files under a spool
// directory, for scheduled snapshots and large ad hoc exports.
type ReportExporter struct {
	builder ReportBuilder
	dir     string
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewReportExporter wires the exporter.
func NewReportExporter(builder ReportBuilder, dir string, metrics *observability.Metrics, logger *slog.Logger) *ReportExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportExporter{builder: builder, dir: dir, metrics: metrics, logger: logger}
}

// Handle processes TaskTypeReportExport tasks.
func (e *ReportExporter) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ReportExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	path, err := e.Export(ctx, payload)
	e.metrics.ObserveJob(TaskTypeReportExport, err)
	if err != nil {
		return err
	}
	e.logger.Info("report exported",
		slog.Int64("company_id", payload.CompanyID),
		slog.String("path", path))
	return nil
}

// Export builds the report and writes it to the spool directory, returning
// the written file path.
func (e *ReportExporter) Export(ctx context.Context, payload ReportExportPayload) (string, error) {
	format := payload.Format
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		return "", fmt.Errorf("jobs: unsupported export format %q", format)
	}

	report, err := e.builder.Build(ctx, reports.Params{
		CompanyID: payload.CompanyID,
		DateFrom:  payload.DateFrom,
		DateTo:    payload.DateTo,
	})
	if err != nil {
		return "", fmt.Errorf("jobs: build report: %w", err)
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("jobs: create export dir: %w", err)
	}
	name := fmt.Sprintf("statistics_%d_%s_%s_%s.%s",
		payload.CompanyID, report.DateRange.From, report.DateRange.To, uuid.NewString(), format)
	path := filepath.Join(e.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("jobs: create export file: %w", err)
	}
	defer f.Close()

	switch format {
	case "csv":
		err = export.WriteCSV(f, report)
	case "xlsx":
		err = export.WriteXLSX(f, report)
	}
	if err != nil {
		return "", fmt.Errorf("jobs: render export: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}
