// Package jobs contains the background task definitions and the Asynq
// worker runtime.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeProfitLinkSweep finalizes profit links for swaps whose both
	// legs have sold since the last run.
	TaskTypeProfitLinkSweep = "swap:profitlink:sweep"
	// TaskTypeReportExport renders a statistics report to a file on disk.
	TaskTypeReportExport = "report:export"
)

// ProfitLinkSweepPayload scopes a sweep run. CompanyID zero means every
// company.
type ProfitLinkSweepPayload struct {
	CompanyID int64 `json:"company_id"`
}

// NewProfitLinkSweepTask constructs the sweep task.
func NewProfitLinkSweepTask(payload ProfitLinkSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeProfitLinkSweep, data), nil
}

// ReportExportPayload describes one report export request.
type ReportExportPayload struct {
	CompanyID int64  `json:"company_id"`
	DateFrom  string `json:"date_from,omitempty"`
	DateTo    string `json:"date_to,omitempty"`
	Format    string `json:"format"`
}

// NewReportExportTask constructs the export task.
func NewReportExportTask(payload ReportExportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeReportExport, data), nil
}
