package reportshttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/fixpoint-erp/fixpoint-erp/internal/finance"
	"github.com/fixpoint-erp/fixpoint-erp/internal/observability"
	"github.com/fixpoint-erp/fixpoint-erp/internal/reports"
	"github.com/fixpoint-erp/fixpoint-erp/internal/shared"
)

type mockService struct {
	report reports.Report
	err    error
	params reports.Params
	calls  int
}

func (m *mockService) Build(_ context.Context, params reports.Params) (reports.Report, error) {
	m.calls++
	m.params = params
	return m.report, m.err
}

type mockQueue struct {
	exportCalls int
	sweepCalls  int
	companyID   int64
	format      string
	err         error
}

func (m *mockQueue) EnqueueReportExport(_ context.Context, companyID int64, _, _, format string) (string, error) {
	m.exportCalls++
	m.companyID = companyID
	m.format = format
	return "task-export", m.err
}

func (m *mockQueue) EnqueueProfitLinkSweep(_ context.Context, companyID int64) (string, error) {
	m.sweepCalls++
	m.companyID = companyID
	return "task-sweep", m.err
}

func newTestRouter(service Service) *chi.Mux {
	return newTestRouterWith(service, nil, nil)
}

func newTestRouterWith(service Service, metrics *observability.Metrics, queue Queue) *chi.Mux {
	h := NewHandler(nil, service, nil, metrics, queue)
	r := chi.NewRouter()
	r.Route("/api/reports", h.MountRoutes)
	r.Route("/api/admin/reports", h.MountAdminRoutes)
	return r
}

func doRequest(t *testing.T, router http.Handler, target string, identity *shared.Identity) *httptest.ResponseRecorder {
	t.Helper()
	return doMethod(t, router, http.MethodGet, target, identity)
}

func doMethod(t *testing.T, router http.Handler, method, target string, identity *shared.Identity) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if identity != nil {
		req = req.WithContext(shared.ContextWithIdentity(req.Context(), *identity))
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestStatisticsScopesToCallerCompany(t *testing.T) {
	service := &mockService{report: reports.Report{DateRange: reports.DateRange{From: "2026-01-01", To: "2026-01-31"}}}
	router := newTestRouter(service)

	rr := doRequest(t, router, "/api/reports/statistics?date_from=2026-01-01&date_to=2026-01-31",
		&shared.Identity{UserID: 3, CompanyID: 7, Role: shared.RoleManager})

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if service.params.CompanyID != 7 {
		t.Fatalf("company must come from the identity, got %d", service.params.CompanyID)
	}
	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			DateRange reports.DateRange `json:"date_range"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !envelope.Success || envelope.Data.DateRange.From != "2026-01-01" {
		t.Fatalf("unexpected envelope: %s", rr.Body.String())
	}
}

func TestStatisticsRequiresIdentity(t *testing.T) {
	router := newTestRouter(&mockService{})

	rr := doRequest(t, router, "/api/reports/statistics", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestAdminStatisticsRejectsNonAdmin(t *testing.T) {
	service := &mockService{}
	router := newTestRouter(service)

	rr := doRequest(t, router, "/api/admin/reports/statistics?company_id=9",
		&shared.Identity{UserID: 3, CompanyID: 7, Role: shared.RoleManager})

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rr.Code)
	}
	if service.calls != 0 {
		t.Fatal("service must not run for forbidden callers")
	}
}

func TestAdminStatisticsCrossCompany(t *testing.T) {
	service := &mockService{}
	router := newTestRouter(service)

	rr := doRequest(t, router, "/api/admin/reports/statistics?company_id=9",
		&shared.Identity{UserID: 1, CompanyID: 1, Role: shared.RoleAdmin})

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if service.params.CompanyID != 9 {
		t.Fatalf("admin must query the requested company, got %d", service.params.CompanyID)
	}
}

func TestAdminStatisticsMissingCompanyFailsClosed(t *testing.T) {
	service := &mockService{err: shared.ErrCompanyRequired}
	router := newTestRouter(service)

	rr := doRequest(t, router, "/api/admin/reports/statistics",
		&shared.Identity{UserID: 1, CompanyID: 1, Role: shared.RoleAdmin})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	var envelope struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Success || envelope.Error == "" {
		t.Fatalf("expected failure envelope, got %s", rr.Body.String())
	}
}

func TestExportDefaultsToCSV(t *testing.T) {
	service := &mockService{report: reports.Report{DateRange: reports.DateRange{From: "2026-01-01", To: "2026-01-31"}}}
	router := newTestRouter(service)

	rr := doRequest(t, router, "/api/reports/statistics/export",
		&shared.Identity{UserID: 3, CompanyID: 7, Role: shared.RoleManager})

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("content type = %q", ct)
	}
	disposition := rr.Header().Get("Content-Disposition")
	if !strings.Contains(disposition, "statistics_7_2026-01-01_2026-01-31.csv") {
		t.Fatalf("disposition = %q", disposition)
	}
	if !strings.HasPrefix(rr.Body.String(), "Section,Metric,Value") {
		t.Fatalf("body does not look like the report csv: %q", rr.Body.String()[:40])
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	router := newTestRouter(&mockService{})

	rr := doRequest(t, router, "/api/reports/statistics/export?format=pdf",
		&shared.Identity{UserID: 3, CompanyID: 7, Role: shared.RoleManager})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestStatisticsRecordsBuildMetrics(t *testing.T) {
	metrics := observability.NewMetrics()
	service := &mockService{report: reports.Report{
		DegradedTerms: []finance.Degradation{
			{Term: "swap_profit", Reason: "cost estimated"},
			{Term: "labour_revenue", Reason: "defaulted"},
		},
	}}
	router := newTestRouterWith(service, metrics, nil)

	rr := doRequest(t, router, "/api/reports/statistics",
		&shared.Identity{UserID: 3, CompanyID: 7, Role: shared.RoleManager})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	scrape := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := scrape.Body.String()
	if !strings.Contains(body, `fixpoint_report_builds_total{outcome="ok"} 1`) {
		t.Fatalf("build counter missing:\n%s", body)
	}
	if !strings.Contains(body, "fixpoint_report_degraded_terms_total 2") {
		t.Fatalf("degraded terms counter missing:\n%s", body)
	}
}

func TestAdminAsyncExportEnqueues(t *testing.T) {
	queue := &mockQueue{}
	router := newTestRouterWith(&mockService{}, nil, queue)

	rr := doMethod(t, router, http.MethodPost, "/api/admin/reports/export?company_id=9&format=xlsx",
		&shared.Identity{UserID: 1, CompanyID: 1, Role: shared.RoleAdmin})

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if queue.exportCalls != 1 || queue.companyID != 9 || queue.format != "xlsx" {
		t.Fatalf("unexpected enqueue: %+v", queue)
	}
	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			TaskID string `json:"task_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !envelope.Success || envelope.Data.TaskID != "task-export" {
		t.Fatalf("unexpected envelope: %s", rr.Body.String())
	}
}

func TestAdminAsyncExportRejectsNonAdmin(t *testing.T) {
	queue := &mockQueue{}
	router := newTestRouterWith(&mockService{}, nil, queue)

	rr := doMethod(t, router, http.MethodPost, "/api/admin/reports/export?company_id=9",
		&shared.Identity{UserID: 3, CompanyID: 7, Role: shared.RoleManager})

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rr.Code)
	}
	if queue.exportCalls != 0 {
		t.Fatal("nothing may be enqueued for forbidden callers")
	}
}

func TestAdminAsyncExportRequiresCompany(t *testing.T) {
	queue := &mockQueue{}
	router := newTestRouterWith(&mockService{}, nil, queue)

	rr := doMethod(t, router, http.MethodPost, "/api/admin/reports/export",
		&shared.Identity{UserID: 1, CompanyID: 1, Role: shared.RoleAdmin})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if queue.exportCalls != 0 {
		t.Fatal("nothing may be enqueued without a company")
	}
}

func TestAdminAsyncExportRejectsUnknownFormat(t *testing.T) {
	queue := &mockQueue{}
	router := newTestRouterWith(&mockService{}, nil, queue)

	rr := doMethod(t, router, http.MethodPost, "/api/admin/reports/export?company_id=9&format=pdf",
		&shared.Identity{UserID: 1, CompanyID: 1, Role: shared.RoleAdmin})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if queue.exportCalls != 0 {
		t.Fatal("nothing may be enqueued for an unsupported format")
	}
}

func TestAdminAsyncExportUnavailableWithoutQueue(t *testing.T) {
	router := newTestRouterWith(&mockService{}, nil, nil)

	rr := doMethod(t, router, http.MethodPost, "/api/admin/reports/export?company_id=9",
		&shared.Identity{UserID: 1, CompanyID: 1, Role: shared.RoleAdmin})

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestAdminRecomputeEnqueuesSweep(t *testing.T) {
	queue := &mockQueue{}
	router := newTestRouterWith(&mockService{}, nil, queue)

	rr := doMethod(t, router, http.MethodPost, "/api/admin/reports/recompute?company_id=9",
		&shared.Identity{UserID: 1, CompanyID: 1, Role: shared.RoleAdmin})

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if queue.sweepCalls != 1 || queue.companyID != 9 {
		t.Fatalf("unexpected enqueue: %+v", queue)
	}
}
