package reportshandler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"hrms/internal/domain/auth"
	"hrms/internal/domain/reports"
	"hrms/internal/platform/jobs"
	"hrms/internal/transport/http/api"
	"hrms/internal/transport/http/middleware"
)

// Dashboards aggregate counters with per-stat soft failure: a broken
// query logs and reports zero rather than failing the whole page.
type Handler struct {
	Service *reports.Service
	Perms   middleware.PermissionStore
}

func NewHandler(service *reports.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/dashboard/employee", h.handleEmployeeDashboard)
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/dashboard/manager", h.handleManagerDashboard)
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/dashboard/hr", h.handleHRDashboard)
	})
}

func (h *Handler) handleEmployeeDashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	if user.RoleName != auth.RoleEmployee && user.RoleName != auth.RoleManager && user.RoleName != auth.RoleHR {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", middleware.GetRequestID(r.Context()))
		return
	}

	employeeID, err := h.Service.EmployeeIDByUserID(r.Context(), user.TenantID, user.UserID)
	if err != nil {
		slog.Warn("dashboard employee lookup failed", "userId", user.UserID, "err", err)
	}

	year := time.Now().UTC().Year()
	remaining, err := h.Service.RemainingDays(r.Context(), user.TenantID, employeeID, year)
	if err != nil {
		slog.Warn("dashboard remaining days failed", "err", err)
	}
	used, err := h.Service.UsedDays(r.Context(), user.TenantID, employeeID, year)
	if err != nil {
		slog.Warn("dashboard used days failed", "err", err)
	}
	pending, err := h.Service.PendingCount(r.Context(), user.TenantID, employeeID)
	if err != nil {
		slog.Warn("dashboard pending count failed", "err", err)
	}

	var nextLeave *string
	if start, err := h.Service.NextApprovedLeave(r.Context(), user.TenantID, employeeID); err == nil && start != nil {
		formatted := start.Format("2006-01-02")
		nextLeave = &formatted
	}

	api.Success(w, map[string]any{
		"year":                year,
		"remainingDays":       remaining,
		"usedDays":            used,
		"pendingApplications": pending,
		"nextApprovedLeave":   nextLeave,
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleManagerDashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	if user.RoleName != auth.RoleManager && user.RoleName != auth.RoleHR {
		api.Fail(w, http.StatusForbidden, "forbidden", "manager or hr required", middleware.GetRequestID(r.Context()))
		return
	}

	managerEmployeeID, err := h.Service.EmployeeIDByUserID(r.Context(), user.TenantID, user.UserID)
	if err != nil {
		slog.Warn("dashboard manager lookup failed", "userId", user.UserID, "err", err)
	}

	year := time.Now().UTC().Year()
	pending, err := h.Service.TeamPendingCount(r.Context(), user.TenantID, managerEmployeeID)
	if err != nil {
		slog.Warn("dashboard team pending count failed", "err", err)
	}
	onLeave, err := h.Service.TeamOnLeaveToday(r.Context(), user.TenantID, managerEmployeeID)
	if err != nil {
		slog.Warn("dashboard team on-leave count failed", "err", err)
	}
	sandwich, err := h.Service.TeamSandwichCount(r.Context(), user.TenantID, managerEmployeeID, year)
	if err != nil {
		slog.Warn("dashboard team sandwich count failed", "err", err)
	}

	api.Success(w, map[string]any{
		"year":                 year,
		"pendingApprovals":     pending,
		"teamOnLeaveToday":     onLeave,
		"teamSandwichApproved": sandwich,
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleHRDashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	if user.RoleName != auth.RoleHR {
		api.Fail(w, http.StatusForbidden, "forbidden", "hr role required", middleware.GetRequestID(r.Context()))
		return
	}

	year := time.Now().UTC().Year()
	pending, err := h.Service.PendingCount(r.Context(), user.TenantID, "")
	if err != nil {
		slog.Warn("dashboard pending count failed", "err", err)
	}
	onLeave, err := h.Service.OnLeaveToday(r.Context(), user.TenantID)
	if err != nil {
		slog.Warn("dashboard on-leave count failed", "err", err)
	}
	allocated, used, err := h.Service.AllocationTotals(r.Context(), user.TenantID, year)
	if err != nil {
		slog.Warn("dashboard allocation totals failed", "err", err)
	}
	overdrawn, err := h.Service.OverdrawnCount(r.Context(), user.TenantID, year)
	if err != nil {
		slog.Warn("dashboard overdrawn count failed", "err", err)
	}
	sandwich, err := h.Service.SandwichCount(r.Context(), user.TenantID, year)
	if err != nil {
		slog.Warn("dashboard sandwich count failed", "err", err)
	}
	holidays, err := h.Service.HolidayCount(r.Context(), user.TenantID, year)
	if err != nil {
		slog.Warn("dashboard holiday count failed", "err", err)
	}

	var lastRecalc map[string]any
	if run, err := h.Service.LastJobRun(r.Context(), user.TenantID, jobs.JobLeaveRecalc); err == nil {
		lastRecalc = run
	} else {
		slog.Warn("dashboard last recalc lookup failed", "err", err)
	}

	api.Success(w, map[string]any{
		"year":                 year,
		"pendingApplications":  pending,
		"onLeaveToday":         onLeave,
		"allocatedDays":        allocated,
		"usedDays":             used,
		"overdrawnBalances":    overdrawn,
		"sandwichApplications": sandwich,
		"holidays":             holidays,
		"lastRecalculation":    lastRecalc,
	}, middleware.GetRequestID(r.Context()))
}
