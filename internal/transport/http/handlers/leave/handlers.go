package leavehandler

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"hrms/internal/domain/audit"
	"hrms/internal/domain/auth"
	"hrms/internal/domain/leave"
	"hrms/internal/domain/notifications"
	"hrms/internal/platform/jobs"
	"hrms/internal/transport/http/api"
	"hrms/internal/transport/http/middleware"
	"hrms/internal/transport/http/shared"
)

type Handler struct {
	Service *leave.Service
	Perms   middleware.PermissionStore
	Notify  *notifications.Service
	Audit   *audit.Service
	Jobs    *jobs.Service
	Idem    *middleware.IdempotencyStore
}

func NewHandler(service *leave.Service, perms middleware.PermissionStore, notify *notifications.Service, auditSvc *audit.Service, jobsSvc *jobs.Service, idem *middleware.IdempotencyStore) *Handler {
	return &Handler{Service: service, Perms: perms, Notify: notify, Audit: auditSvc, Jobs: jobsSvc, Idem: idem}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/leave", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/types", h.handleListTypes)
		r.With(middleware.RequirePermission(auth.PermLeaveCalendar, h.Perms)).Post("/types", h.handleCreateType)
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/holidays", h.handleListHolidays)
		r.With(middleware.RequirePermission(auth.PermLeaveCalendar, h.Perms)).Post("/holidays", h.handleCreateHoliday)
		r.With(middleware.RequirePermission(auth.PermLeaveCalendar, h.Perms)).Delete("/holidays/{holidayID}", h.handleDeleteHoliday)
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/applications", h.handleListApplications)
		r.With(middleware.RequirePermission(auth.PermLeaveWrite, h.Perms)).Post("/applications", h.handleSubmitApplication)
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/applications/preview", h.handlePreviewDeduction)
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/applications/{applicationID}", h.handleGetApplication)
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/applications/{applicationID}/preview", h.handlePreviewApplication)
		r.With(middleware.RequirePermission(auth.PermLeaveApprove, h.Perms)).Post("/applications/{applicationID}/approve", h.handleApproveApplication)
		r.With(middleware.RequirePermission(auth.PermLeaveApprove, h.Perms)).Post("/applications/{applicationID}/reject", h.handleRejectApplication)
		r.With(middleware.RequirePermission(auth.PermLeaveWrite, h.Perms)).Post("/applications/{applicationID}/withdraw", h.handleWithdrawApplication)
		r.With(middleware.RequirePermission(auth.PermLeaveWrite, h.Perms)).Post("/applications/{applicationID}/cancel", h.handleCancelApplication)
		r.With(middleware.RequirePermission(auth.PermLeaveApprove, h.Perms)).Post("/applications/{applicationID}/status", h.handleChangeStatus)
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/balances", h.handleListOwnBalances)
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/balances/{employeeID}", h.handleListEmployeeBalances)
		r.With(middleware.RequirePermission(auth.PermLeaveAdjust, h.Perms)).Post("/balances/{employeeID}/adjust", h.handleCreateAdjustment)
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/balances/{employeeID}/adjustments", h.handleListAdjustments)
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/balances/{employeeID}/statement.pdf", h.handleBalanceStatement)
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/calendar", h.handleCalendar)
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/calendar/export", h.handleCalendarExport)
	})
	r.Route("/admin/leave", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermLeaveRecalc, h.Perms)).Post("/recalculate", h.handleRecalculate)
	})
}

// writeLeaveError maps service sentinels onto the response envelope.
// Anything unrecognized is reported as a generic server failure so
// internal error text never leaks.
func writeLeaveError(w http.ResponseWriter, err error, requestID string) {
	switch {
	case errors.Is(err, leave.ErrApplicationNotFound),
		errors.Is(err, leave.ErrEmployeeNotFound),
		errors.Is(err, leave.ErrTypeNotFound),
		errors.Is(err, leave.ErrBalanceNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), requestID)
	case errors.Is(err, leave.ErrEndBeforeStart),
		errors.Is(err, leave.ErrHalfDayRange),
		errors.Is(err, leave.ErrBeforeJoinDate):
		api.Fail(w, http.StatusBadRequest, "invalid_dates", err.Error(), requestID)
	case errors.Is(err, leave.ErrInvalidAmount),
		errors.Is(err, leave.ErrUnknownDirection),
		errors.Is(err, leave.ErrUnknownStatus):
		api.Fail(w, http.StatusBadRequest, "invalid_payload", err.Error(), requestID)
	case errors.Is(err, leave.ErrOverlappingLeave):
		api.Fail(w, http.StatusConflict, "overlapping_leave", err.Error(), requestID)
	case errors.Is(err, leave.ErrStatusConflict):
		api.Fail(w, http.StatusConflict, "status_conflict", err.Error(), requestID)
	case errors.Is(err, leave.ErrNegativeAllocation):
		api.Fail(w, http.StatusConflict, "negative_allocation", err.Error(), requestID)
	case errors.Is(err, leave.ErrInvalidState):
		api.Fail(w, http.StatusBadRequest, "invalid_state", err.Error(), requestID)
	case errors.Is(err, leave.ErrSelfApproval):
		api.Fail(w, http.StatusForbidden, "self_approval", err.Error(), requestID)
	case errors.Is(err, leave.ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", requestID)
	default:
		api.Fail(w, http.StatusInternalServerError, "leave_operation_failed", "leave operation failed", requestID)
	}
}

func (h *Handler) handleListTypes(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	types, err := h.Service.ListTypes(r.Context(), user.TenantID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "leave_types_failed", "failed to list leave types", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, types, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateType(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	if user.RoleName != auth.RoleHR {
		api.Fail(w, http.StatusForbidden, "forbidden", "hr role required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload leave.LeaveType
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "leave type name required", middleware.GetRequestID(r.Context()))
		return
	}

	id, err := h.Service.CreateType(r.Context(), user.TenantID, payload)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "leave_type_create_failed", "failed to create leave type", middleware.GetRequestID(r.Context()))
		return
	}
	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, "leave.type.create", "leave_type", id, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, payload); err != nil {
		slog.Warn("audit leave.type.create failed", "err", err)
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListHolidays(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	year := time.Now().UTC().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_request", "invalid year", middleware.GetRequestID(r.Context()))
			return
		}
		year = parsed
	}

	holidays, err := h.Service.ListHolidays(r.Context(), user.TenantID, year)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "leave_holidays_failed", "failed to list holidays", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, holidays, middleware.GetRequestID(r.Context()))
}

type holidayPayload struct {
	Date     string `json:"date"`
	Name     string `json:"name"`
	Region   string `json:"region"`
	Optional bool   `json:"optional"`
}

func (h *Handler) handleCreateHoliday(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	if user.RoleName != auth.RoleHR {
		api.Fail(w, http.StatusForbidden, "forbidden", "hr role required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload holidayPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	date, err := shared.ParseDate(payload.Date)
	if err != nil || date.IsZero() {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid holiday date", middleware.GetRequestID(r.Context()))
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "holiday name required", middleware.GetRequestID(r.Context()))
		return
	}

	id, err := h.Service.CreateHoliday(r.Context(), user.TenantID, date, payload.Name, payload.Region, payload.Optional)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "leave_holiday_create_failed", "failed to create holiday", middleware.GetRequestID(r.Context()))
		return
	}
	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, "leave.holiday.create", "holiday", id, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, payload); err != nil {
		slog.Warn("audit leave.holiday.create failed", "err", err)
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeleteHoliday(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	if user.RoleName != auth.RoleHR {
		api.Fail(w, http.StatusForbidden, "forbidden", "hr role required", middleware.GetRequestID(r.Context()))
		return
	}

	holidayID := chi.URLParam(r, "holidayID")
	if err := h.Service.DeleteHoliday(r.Context(), user.TenantID, holidayID); err != nil {
		api.Fail(w, http.StatusNotFound, "not_found", "holiday not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, "leave.holiday.delete", "holiday", holidayID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, nil); err != nil {
		slog.Warn("audit leave.holiday.delete failed", "err", err)
	}
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListApplications(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var selfEmployeeID string
	if user.RoleName == auth.RoleEmployee || user.RoleName == auth.RoleManager {
		if id, err := h.Service.EmployeeIDByUserID(r.Context(), user.TenantID, user.UserID); err == nil {
			selfEmployeeID = id
		} else {
			slog.Warn("leave applications self lookup failed", "err", err)
		}
	}

	status := r.URL.Query().Get("status")
	if status != "" && !leave.KnownStatus(status) {
		api.Fail(w, http.StatusBadRequest, "invalid_request", "unknown status filter", middleware.GetRequestID(r.Context()))
		return
	}

	page := shared.ParsePagination(r, 100, 500)
	result, err := h.Service.ListApplications(r.Context(), user.TenantID, user.RoleName, selfEmployeeID, status, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "leave_applications_failed", "failed to list applications", middleware.GetRequestID(r.Context()))
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(result.Total))
	api.Success(w, result.Applications, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	applicationID := chi.URLParam(r, "applicationID")
	app, err := h.Service.GetApplication(r.Context(), user.TenantID, applicationID)
	if err != nil {
		api.Fail(w, http.StatusNotFound, "not_found", "leave application not found", middleware.GetRequestID(r.Context()))
		return
	}

	allowed, err := h.canAccessEmployee(r.Context(), user, app.EmployeeID)
	if err != nil {
		slog.Warn("leave application access check failed", "applicationId", applicationID, "err", err)
	}
	if !allowed {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", middleware.GetRequestID(r.Context()))
		return
	}

	api.Success(w, app, middleware.GetRequestID(r.Context()))
}

type applicationPayload struct {
	EmployeeID  string `json:"employeeId"`
	LeaveTypeID string `json:"leaveTypeId"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	HalfDay     bool   `json:"halfDay"`
	Reason      string `json:"reason"`
}

func (h *Handler) handleSubmitApplication(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload applicationPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	if payload.LeaveTypeID == "" {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "leave type required", middleware.GetRequestID(r.Context()))
		return
	}

	if user.RoleName != auth.RoleHR {
		if id, err := h.Service.EmployeeIDByUserID(r.Context(), user.TenantID, user.UserID); err == nil {
			payload.EmployeeID = id
		} else {
			slog.Warn("leave application self lookup failed", "err", err)
		}
	}
	if strings.TrimSpace(payload.EmployeeID) == "" {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "employee id required", middleware.GetRequestID(r.Context()))
		return
	}

	startDate, err := shared.ParseDate(payload.StartDate)
	if err != nil || startDate.IsZero() {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid start date", middleware.GetRequestID(r.Context()))
		return
	}
	endDate, err := shared.ParseDate(payload.EndDate)
	if err != nil || endDate.IsZero() {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid end date", middleware.GetRequestID(r.Context()))
		return
	}

	result, err := h.Service.Submit(r.Context(), user.TenantID, leave.SubmitInput{
		EmployeeID:  payload.EmployeeID,
		LeaveTypeID: payload.LeaveTypeID,
		StartDate:   startDate,
		EndDate:     endDate,
		HalfDay:     payload.HalfDay,
		Reason:      payload.Reason,
	})
	if err != nil {
		writeLeaveError(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, "leave.application.submit", "leave_application", result.Application.ID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, map[string]any{
		"employeeId":  payload.EmployeeID,
		"leaveTypeId": payload.LeaveTypeID,
		"startDate":   payload.StartDate,
		"endDate":     payload.EndDate,
		"halfDay":     payload.HalfDay,
		"reason":      payload.Reason,
	}); err != nil {
		slog.Warn("audit leave.application.submit failed", "err", err)
	}
	if result.ManagerUserID != "" && h.Notify != nil {
		if err := h.Notify.Create(r.Context(), user.TenantID, result.ManagerUserID, notifications.TypeLeaveSubmitted, "Leave request submitted", "A leave request is awaiting approval."); err != nil {
			slog.Warn("leave submitted notification failed", "err", err)
		}
	}

	api.Created(w, map[string]any{
		"application": result.Application,
		"projected":   result.Deduction,
	}, middleware.GetRequestID(r.Context()))
}

// handlePreviewDeduction prices a hypothetical range without touching
// the ledger. The status parameter lets approvers see what approval
// would charge before they commit.
func (h *Handler) handlePreviewDeduction(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	query := r.URL.Query()
	employeeID, ok := h.scopeEmployee(w, r, user, query.Get("employeeId"))
	if !ok {
		return
	}

	startDate, err := shared.ParseDate(query.Get("startDate"))
	if err != nil || startDate.IsZero() {
		api.Fail(w, http.StatusBadRequest, "invalid_request", "invalid start date", middleware.GetRequestID(r.Context()))
		return
	}
	endDate, err := shared.ParseDate(query.Get("endDate"))
	if err != nil || endDate.IsZero() {
		api.Fail(w, http.StatusBadRequest, "invalid_request", "invalid end date", middleware.GetRequestID(r.Context()))
		return
	}
	halfDay := query.Get("halfDay") == "true"
	status := query.Get("status")
	if status == "" {
		status = leave.StatusApproved
	}

	preview, err := h.Service.PreviewDeduction(r.Context(), user.TenantID, leave.PreviewInput{
		EmployeeID: employeeID,
		StartDate:  startDate,
		EndDate:    endDate,
		HalfDay:    halfDay,
		Status:     status,
	})
	if err != nil {
		writeLeaveError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, preview, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePreviewApplication(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	applicationID := chi.URLParam(r, "applicationID")
	app, preview, err := h.Service.PreviewApplication(r.Context(), user.TenantID, applicationID)
	if err != nil {
		writeLeaveError(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	allowed, err := h.canAccessEmployee(r.Context(), user, app.EmployeeID)
	if err != nil {
		slog.Warn("leave preview access check failed", "applicationId", applicationID, "err", err)
	}
	if !allowed {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", middleware.GetRequestID(r.Context()))
		return
	}

	api.Success(w, map[string]any{
		"application": app,
		"preview":     preview,
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) canAccessEmployee(ctx context.Context, user auth.UserContext, employeeID string) (bool, error) {
	if user.RoleName == auth.RoleHR {
		return true, nil
	}

	selfEmployeeID, err := h.Service.EmployeeIDByUserID(ctx, user.TenantID, user.UserID)
	if err != nil {
		return false, err
	}
	if selfEmployeeID == "" {
		return false, nil
	}

	if user.RoleName == auth.RoleEmployee {
		return selfEmployeeID == employeeID, nil
	}
	if user.RoleName == auth.RoleManager {
		if selfEmployeeID == employeeID {
			return true, nil
		}
		allowed, err := h.Service.IsManagerOf(ctx, user.TenantID, selfEmployeeID, employeeID)
		if err != nil {
			return false, err
		}
		return allowed, nil
	}

	return false, nil
}

// scopeEmployee resolves which employee record the request may read:
// the caller's own when requested is empty, otherwise the requested one
// subject to role scoping.
func (h *Handler) scopeEmployee(w http.ResponseWriter, r *http.Request, user auth.UserContext, requested string) (string, bool) {
	if requested == "" {
		id, err := h.Service.EmployeeIDByUserID(r.Context(), user.TenantID, user.UserID)
		if err != nil {
			slog.Warn("leave self employee lookup failed", "err", err)
		}
		if id == "" {
			api.Fail(w, http.StatusBadRequest, "invalid_request", "no employee record for user", middleware.GetRequestID(r.Context()))
			return "", false
		}
		return id, true
	}

	allowed, err := h.canAccessEmployee(r.Context(), user, requested)
	if err != nil {
		slog.Warn("leave employee scope check failed", "err", err)
	}
	if !allowed {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", middleware.GetRequestID(r.Context()))
		return "", false
	}
	return requested, true
}

func (h *Handler) handleApproveApplication(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	if user.RoleName != auth.RoleManager && user.RoleName != auth.RoleHR {
		api.Fail(w, http.StatusForbidden, "forbidden", "manager or hr required", middleware.GetRequestID(r.Context()))
		return
	}

	applicationID := chi.URLParam(r, "applicationID")
	result, err := h.Service.Approve(r.Context(), user.TenantID, user, applicationID)
	if err != nil {
		writeLeaveError(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, "leave.application.approve", "leave_application", applicationID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, map[string]any{
		"employeeId":      result.Application.EmployeeID,
		"deductedDays":    result.Application.DeductedDays.String(),
		"isSandwich":      result.Application.IsSandwich,
		"deductionReason": result.Application.DeductionReason,
		"pairedSiblingId": result.PairedSiblingID,
	}); err != nil {
		slog.Warn("audit leave.application.approve failed", "err", err)
	}

	if result.EmployeeUserID != "" && h.Notify != nil {
		body := fmt.Sprintf("Your leave from %s to %s was approved. %s day(s) were deducted.",
			result.Application.StartDate.Format("2006-01-02"),
			result.Application.EndDate.Format("2006-01-02"),
			result.Application.DeductedDays.String())
		if err := h.Notify.Create(r.Context(), user.TenantID, result.EmployeeUserID, notifications.TypeLeaveApproved, "Leave approved", body); err != nil {
			slog.Warn("leave approved notification failed", "err", err)
		}
		if result.PairedSiblingID != "" {
			if err := h.Notify.Create(r.Context(), user.TenantID, result.EmployeeUserID, notifications.TypeLeaveRepriced, "Leave re-priced", "A linked single-day request was re-priced as a weekend pair."); err != nil {
				slog.Warn("leave repriced notification failed", "err", err)
			}
		}
	}

	api.Success(w, map[string]any{
		"application":     result.Application,
		"balanceDelta":    result.BalanceDelta,
		"pairedSiblingId": result.PairedSiblingID,
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRejectApplication(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	if user.RoleName != auth.RoleManager && user.RoleName != auth.RoleHR {
		api.Fail(w, http.StatusForbidden, "forbidden", "manager or hr required", middleware.GetRequestID(r.Context()))
		return
	}

	applicationID := chi.URLParam(r, "applicationID")
	result, err := h.Service.Reject(r.Context(), user.TenantID, user, applicationID)
	if err != nil {
		writeLeaveError(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, "leave.application.reject", "leave_application", applicationID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, map[string]any{
		"employeeId":   result.Application.EmployeeID,
		"balanceDelta": result.BalanceDelta.String(),
	}); err != nil {
		slog.Warn("audit leave.application.reject failed", "err", err)
	}
	if result.EmployeeUserID != "" && h.Notify != nil {
		if err := h.Notify.Create(r.Context(), user.TenantID, result.EmployeeUserID, notifications.TypeLeaveRejected, "Leave rejected", "Your leave request was rejected."); err != nil {
			slog.Warn("leave rejected notification failed", "err", err)
		}
	}

	api.Success(w, map[string]any{
		"application":  result.Application,
		"balanceDelta": result.BalanceDelta,
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleWithdrawApplication(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	applicationID := chi.URLParam(r, "applicationID")
	result, err := h.Service.Withdraw(r.Context(), user.TenantID, user, applicationID)
	if err != nil {
		writeLeaveError(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, "leave.application.withdraw", "leave_application", applicationID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, map[string]any{
		"employeeId":   result.Application.EmployeeID,
		"balanceDelta": result.BalanceDelta.String(),
	}); err != nil {
		slog.Warn("audit leave.application.withdraw failed", "err", err)
	}
	if result.ManagerUserID != "" && h.Notify != nil {
		if err := h.Notify.Create(r.Context(), user.TenantID, result.ManagerUserID, notifications.TypeLeaveWithdrawn, "Leave withdrawn", "A leave request was withdrawn."); err != nil {
			slog.Warn("leave withdrawn notification failed", "err", err)
		}
	}

	api.Success(w, map[string]any{
		"application":  result.Application,
		"balanceDelta": result.BalanceDelta,
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCancelApplication(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	applicationID := chi.URLParam(r, "applicationID")
	result, err := h.Service.Cancel(r.Context(), user.TenantID, user, applicationID)
	if err != nil {
		writeLeaveError(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, "leave.application.cancel", "leave_application", applicationID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, map[string]any{
		"employeeId": result.Application.EmployeeID,
	}); err != nil {
		slog.Warn("audit leave.application.cancel failed", "err", err)
	}
	if result.ManagerUserID != "" && h.Notify != nil {
		if err := h.Notify.Create(r.Context(), user.TenantID, result.ManagerUserID, notifications.TypeLeaveCancelled, "Leave cancelled", "A leave request was cancelled."); err != nil {
			slog.Warn("leave cancelled notification failed", "err", err)
		}
	}

	api.Success(w, map[string]string{"status": result.Application.Status}, middleware.GetRequestID(r.Context()))
}

type statusChangePayload struct {
	OldStatus string `json:"oldStatus"`
	NewStatus string `json:"newStatus"`
}

func (h *Handler) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	if user.RoleName != auth.RoleHR {
		api.Fail(w, http.StatusForbidden, "forbidden", "hr role required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload statusChangePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	if !leave.KnownStatus(payload.OldStatus) || !leave.KnownStatus(payload.NewStatus) {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "unknown status", middleware.GetRequestID(r.Context()))
		return
	}

	applicationID := chi.URLParam(r, "applicationID")
	result, err := h.Service.ChangeStatus(r.Context(), user.TenantID, user, applicationID, payload.OldStatus, payload.NewStatus)
	if err != nil {
		writeLeaveError(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, "leave.application.status", "leave_application", applicationID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), map[string]any{
		"status": payload.OldStatus,
	}, map[string]any{
		"status":       payload.NewStatus,
		"balanceDelta": result.BalanceDelta.String(),
	}); err != nil {
		slog.Warn("audit leave.application.status failed", "err", err)
	}

	if result.EmployeeUserID != "" && h.Notify != nil {
		ntype, title := "", ""
		switch result.Application.Status {
		case leave.StatusApproved:
			ntype, title = notifications.TypeLeaveApproved, "Leave approved"
		case leave.StatusRejected:
			ntype, title = notifications.TypeLeaveRejected, "Leave rejected"
		case leave.StatusWithdrawn:
			ntype, title = notifications.TypeLeaveWithdrawn, "Leave withdrawn"
		case leave.StatusCancelled:
			ntype, title = notifications.TypeLeaveCancelled, "Leave cancelled"
		}
		if ntype != "" {
			if err := h.Notify.Create(r.Context(), user.TenantID, result.EmployeeUserID, ntype, title, fmt.Sprintf("Your leave request status changed to %s.", result.Application.Status)); err != nil {
				slog.Warn("leave status notification failed", "err", err)
			}
		}
	}

	api.Success(w, map[string]any{
		"application":     result.Application,
		"balanceDelta":    result.BalanceDelta,
		"pairedSiblingId": result.PairedSiblingID,
	}, middleware.GetRequestID(r.Context()))
}

type balanceResponse struct {
	leave.LeaveBalance
	RemainingDays decimal.Decimal `json:"remainingDays"`
}

func (h *Handler) writeBalances(w http.ResponseWriter, r *http.Request, tenantID, employeeID string) {
	balances, err := h.Service.ListBalances(r.Context(), tenantID, employeeID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "leave_balances_failed", "failed to list balances", middleware.GetRequestID(r.Context()))
		return
	}

	out := make([]balanceResponse, 0, len(balances))
	for _, bal := range balances {
		out = append(out, balanceResponse{LeaveBalance: bal, RemainingDays: bal.RemainingDays()})
	}
	api.Success(w, out, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListOwnBalances(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	employeeID, ok := h.scopeEmployee(w, r, user, "")
	if !ok {
		return
	}
	h.writeBalances(w, r, user.TenantID, employeeID)
}

func (h *Handler) handleListEmployeeBalances(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	employeeID, ok := h.scopeEmployee(w, r, user, chi.URLParam(r, "employeeID"))
	if !ok {
		return
	}
	h.writeBalances(w, r, user.TenantID, employeeID)
}

func (h *Handler) handleListAdjustments(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	employeeID, ok := h.scopeEmployee(w, r, user, chi.URLParam(r, "employeeID"))
	if !ok {
		return
	}

	page := shared.ParsePagination(r, 100, 500)
	adjustments, total, err := h.Service.ListAdjustments(r.Context(), user.TenantID, employeeID, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "leave_adjustments_failed", "failed to list adjustments", middleware.GetRequestID(r.Context()))
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, adjustments, middleware.GetRequestID(r.Context()))
}

type adjustBalanceRequest struct {
	Year      int             `json:"year"`
	Direction string          `json:"direction"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
}

func (h *Handler) handleCreateAdjustment(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	if user.RoleName != auth.RoleHR {
		api.Fail(w, http.StatusForbidden, "forbidden", "hr role required", middleware.GetRequestID(r.Context()))
		return
	}

	employeeID := chi.URLParam(r, "employeeID")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	var payload adjustBalanceRequest
	if err := json.Unmarshal(body, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")
	requestHash := middleware.RequestHash(append([]byte(employeeID+"\n"), body...))
	if idempotencyKey != "" {
		stored, found, err := h.Idem.Check(r.Context(), user.TenantID, user.UserID, "leave.balance.adjust", idempotencyKey, requestHash)
		if errors.Is(err, middleware.ErrIdempotencyConflict) {
			api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key was used with a different payload", middleware.GetRequestID(r.Context()))
			return
		}
		if err != nil {
			slog.Warn("leave adjustment idempotency check failed", "err", err)
		}
		if found {
			api.Success(w, json.RawMessage(stored), middleware.GetRequestID(r.Context()))
			return
		}
	}

	adj, err := h.Service.AdjustBalance(r.Context(), user.TenantID, user.UserID, leave.AdjustmentInput{
		EmployeeID: employeeID,
		Year:       payload.Year,
		Direction:  payload.Direction,
		Amount:     payload.Amount,
		Reason:     payload.Reason,
	})
	if err != nil {
		writeLeaveError(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	if idempotencyKey != "" {
		encoded, err := json.Marshal(adj)
		if err != nil {
			slog.Warn("leave adjustment idempotency marshal failed", "err", err)
		} else if err := h.Idem.Save(r.Context(), user.TenantID, user.UserID, "leave.balance.adjust", idempotencyKey, requestHash, encoded); err != nil {
			slog.Warn("leave adjustment idempotency save failed", "err", err)
		}
	}

	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, "leave.balance.adjust", "leave_balance", adj.ID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), map[string]any{
		"allocatedDays": adj.AllocatedBefore.String(),
	}, map[string]any{
		"allocatedDays": adj.AllocatedAfter.String(),
		"direction":     adj.Direction,
		"amount":        adj.Amount.String(),
		"reason":        adj.Reason,
	}); err != nil {
		slog.Warn("audit leave.balance.adjust failed", "err", err)
	}

	if h.Notify != nil {
		if employeeUserID, err := h.Service.EmployeeUserID(r.Context(), user.TenantID, adj.EmployeeID); err == nil && employeeUserID != "" {
			body := fmt.Sprintf("Your %d leave allocation was adjusted by %s day(s).", adj.Year, adj.Amount.String())
			if err := h.Notify.Create(r.Context(), user.TenantID, employeeUserID, notifications.TypeBalanceAdjusted, "Leave balance adjusted", body); err != nil {
				slog.Warn("leave adjustment notification failed", "err", err)
			}
		}
	}

	api.Created(w, adj, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleBalanceStatement(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	employeeID, ok := h.scopeEmployee(w, r, user, chi.URLParam(r, "employeeID"))
	if !ok {
		return
	}

	year := time.Now().UTC().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_request", "invalid year", middleware.GetRequestID(r.Context()))
			return
		}
		year = parsed
	}

	data, err := h.Service.BalanceStatementPDF(r.Context(), user.TenantID, employeeID, year)
	if err != nil {
		writeLeaveError(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=leave-statement-%d.pdf", year))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Warn("leave statement write failed", "employeeId", employeeID, "err", err)
	}
}

func (h *Handler) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	if user.RoleName != auth.RoleHR {
		api.Fail(w, http.StatusForbidden, "forbidden", "hr role required", middleware.GetRequestID(r.Context()))
		return
	}

	summary := leave.RecalcSummary{}
	var err error
	if h.Jobs != nil {
		result, runErr := h.Jobs.RunNow(r.Context(), jobs.JobLeaveRecalc, user.TenantID, func(runCtx context.Context) (any, error) {
			return h.Service.RecalculateAll(runCtx, user.TenantID)
		})
		err = runErr
		if s, ok := result.(leave.RecalcSummary); ok {
			summary = s
		}
	} else {
		summary, err = h.Service.RecalculateAll(r.Context(), user.TenantID)
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "recalculation_failed", "failed to recalculate deductions", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, "leave.recalculate.run", "leave_application", "", middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, summary); err != nil {
		slog.Warn("audit leave.recalculate.run failed", "err", err)
	}
	api.Success(w, summary, middleware.GetRequestID(r.Context()))
}

func (h *Handler) calendarRows(r *http.Request, user auth.UserContext) ([]leave.CalendarExportRow, error) {
	statuses := []string{leave.StatusApproved, leave.StatusPending}
	if raw := r.URL.Query().Get("status"); raw != "" {
		if !leave.KnownStatus(raw) {
			return nil, leave.ErrUnknownStatus
		}
		statuses = []string{raw}
	}

	employeeID := ""
	if user.RoleName == auth.RoleEmployee {
		id, err := h.Service.EmployeeIDByUserID(r.Context(), user.TenantID, user.UserID)
		if err != nil {
			return nil, err
		}
		employeeID = id
	}
	return h.Service.CalendarExportRows(r.Context(), user.TenantID, statuses, employeeID)
}

func (h *Handler) handleCalendar(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	rows, err := h.calendarRows(r, user)
	if err != nil {
		if errors.Is(err, leave.ErrUnknownStatus) {
			api.Fail(w, http.StatusBadRequest, "invalid_request", "unknown status filter", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "calendar_failed", "failed to load calendar", middleware.GetRequestID(r.Context()))
		return
	}

	var events []map[string]any
	for _, row := range rows {
		events = append(events, map[string]any{
			"id":           row.ID,
			"employee":     row.EmployeeName,
			"leaveType":    row.LeaveType,
			"start":        row.StartDate.Format("2006-01-02"),
			"end":          row.EndDate.Format("2006-01-02"),
			"status":       row.Status,
			"deductedDays": row.DeductedDays,
			"isSandwich":   row.IsSandwich,
		})
	}
	api.Success(w, events, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCalendarExport(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "csv"
	}

	rows, err := h.calendarRows(r, user)
	if err != nil {
		if errors.Is(err, leave.ErrUnknownStatus) {
			api.Fail(w, http.StatusBadRequest, "invalid_request", "unknown status filter", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "calendar_failed", "failed to load calendar", middleware.GetRequestID(r.Context()))
		return
	}

	if format == "ics" {
		w.Header().Set("Content-Type", "text/calendar")
		w.Header().Set("Content-Disposition", "attachment; filename=leave-calendar.ics")
		var builder strings.Builder
		builder.WriteString("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//OrbitHR//Leave Calendar//EN\r\n")
		for _, row := range rows {
			builder.WriteString("BEGIN:VEVENT\r\n")
			builder.WriteString(fmt.Sprintf("UID:%s\r\n", row.ID))
			builder.WriteString(fmt.Sprintf("DTSTART:%s\r\n", row.StartDate.Format("20060102")))
			builder.WriteString(fmt.Sprintf("DTEND:%s\r\n", row.EndDate.AddDate(0, 0, 1).Format("20060102")))
			builder.WriteString(fmt.Sprintf("SUMMARY:%s - %s (%s)\r\n", row.EmployeeName, row.LeaveType, row.Status))
			builder.WriteString("END:VEVENT\r\n")
		}
		builder.WriteString("END:VCALENDAR\r\n")
		if _, err := w.Write([]byte(builder.String())); err != nil {
			slog.Warn("calendar export write failed", "err", err)
		}
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=leave-calendar.csv")
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"id", "employee", "leave_type", "start_date", "end_date", "status", "deducted_days", "sandwich"}); err != nil {
		slog.Warn("calendar export csv header write failed", "err", err)
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			row.ID,
			row.EmployeeName,
			row.LeaveType,
			row.StartDate.Format("2006-01-02"),
			row.EndDate.Format("2006-01-02"),
			row.Status,
			row.DeductedDays,
			strconv.FormatBool(row.IsSandwich),
		}); err != nil {
			slog.Warn("calendar export csv row write failed", "err", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		slog.Warn("calendar export csv flush failed", "err", err)
	}
}
