package adminhandler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"hrms/internal/domain/audit"
	"hrms/internal/domain/auth"
	"hrms/internal/domain/leave"
	"hrms/internal/domain/reports"
	"hrms/internal/platform/jobs"
	"hrms/internal/platform/metrics"
	"hrms/internal/transport/http/api"
	"hrms/internal/transport/http/middleware"
	"hrms/internal/transport/http/shared"
)

// Handler exposes the operator surface: job run history, manual job
// triggers, and the in-process metrics snapshot.
type Handler struct {
	Reports        *reports.Service
	Leave          *leave.Service
	Jobs           *jobs.Service
	Audit          *audit.Service
	Metrics        *metrics.Collector
	Perms          middleware.PermissionStore
	MetricsEnabled bool
}

func NewHandler(reportsSvc *reports.Service, leaveSvc *leave.Service, jobsSvc *jobs.Service, auditSvc *audit.Service, collector *metrics.Collector, perms middleware.PermissionStore, metricsEnabled bool) *Handler {
	return &Handler{
		Reports:        reportsSvc,
		Leave:          leaveSvc,
		Jobs:           jobsSvc,
		Audit:          auditSvc,
		Metrics:        collector,
		Perms:          perms,
		MetricsEnabled: metricsEnabled,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/admin/jobs", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermSystemAdmin, h.Perms)).Get("/runs", h.handleListJobRuns)
		r.With(middleware.RequirePermission(auth.PermSystemAdmin, h.Perms)).Get("/runs/{runID}", h.handleGetJobRun)
		r.With(middleware.RequirePermission(auth.PermSystemAdmin, h.Perms)).Post("/{jobName}/run", h.handleTriggerJob)
	})
	r.With(middleware.RequirePermission(auth.PermSystemAdmin, h.Perms)).Get("/admin/metrics", h.handleMetrics)
}

func (h *Handler) handleListJobRuns(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	query := r.URL.Query()
	filter := reports.JobRunFilter{
		JobType: query.Get("jobType"),
		Status:  query.Get("status"),
	}
	if raw := query.Get("from"); raw != "" {
		from, err := shared.ParseDate(raw)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_request", "invalid from date", middleware.GetRequestID(r.Context()))
			return
		}
		filter.StartedFrom = &from
	}
	if raw := query.Get("to"); raw != "" {
		to, err := shared.ParseDate(raw)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_request", "invalid to date", middleware.GetRequestID(r.Context()))
			return
		}
		filter.StartedTo = &to
	}

	page := shared.ParsePagination(r, 50, 200)
	total, err := h.Reports.CountJobRuns(r.Context(), user.TenantID, filter)
	if err != nil {
		slog.Warn("job runs count failed", "err", err)
	}

	runs, err := h.Reports.JobRuns(r.Context(), user.TenantID, filter, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "job_runs_failed", "failed to list job runs", middleware.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, runs, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetJobRun(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	runID := chi.URLParam(r, "runID")
	run, err := h.Reports.JobRunByID(r.Context(), user.TenantID, runID)
	if err != nil {
		api.Fail(w, http.StatusNotFound, "not_found", "job run not found", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleTriggerJob(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	jobName := chi.URLParam(r, "jobName")
	if jobName != jobs.JobLeaveRecalc {
		api.Fail(w, http.StatusNotFound, "unknown_job", "unknown job name", middleware.GetRequestID(r.Context()))
		return
	}

	result, err := h.Jobs.RunNow(r.Context(), jobs.JobLeaveRecalc, user.TenantID, func(runCtx context.Context) (any, error) {
		return h.Leave.RecalculateAll(runCtx, user.TenantID)
	})
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "job_failed", "job execution failed", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, "admin.job.run", "job_run", jobName, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, result); err != nil {
		slog.Warn("audit admin.job.run failed", "err", err)
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if !h.MetricsEnabled || h.Metrics == nil {
		api.Fail(w, http.StatusNotFound, "metrics_disabled", "metrics collection is disabled", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, h.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
}
