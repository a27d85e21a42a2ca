package leave

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"hrms/internal/domain/auth"
	"hrms/internal/domain/core"
)

// Service wraps the deduction engine with authorization, submission
// validation and the notification routing lookups handlers need. All
// balances live in the single consolidated bucket; ConsolidatedType is
// only a display label for that bucket.
type Service struct {
	Store            *Store
	Core             *core.Store
	ConsolidatedType string
}

func NewService(store *Store, coreStore *core.Store, consolidatedType string) *Service {
	return &Service{Store: store, Core: coreStore, ConsolidatedType: consolidatedType}
}

func (s *Service) ListTypes(ctx context.Context, tenantID string) ([]LeaveType, error) {
	return s.Store.ListTypes(ctx, tenantID)
}

func (s *Service) CreateType(ctx context.Context, tenantID string, payload LeaveType) (string, error) {
	return s.Store.CreateType(ctx, tenantID, payload)
}

func (s *Service) ListHolidays(ctx context.Context, tenantID string, year int) ([]Holiday, error) {
	return s.Store.ListHolidays(ctx, tenantID, year)
}

func (s *Service) CreateHoliday(ctx context.Context, tenantID string, date time.Time, name, region string, optional bool) (string, error) {
	return s.Store.CreateHoliday(ctx, tenantID, date, name, region, optional)
}

func (s *Service) DeleteHoliday(ctx context.Context, tenantID, holidayID string) error {
	return s.Store.DeleteHoliday(ctx, tenantID, holidayID)
}

func (s *Service) EmployeeIDByUserID(ctx context.Context, tenantID, userID string) (string, error) {
	if s.Core == nil {
		return "", nil
	}
	return s.Core.EmployeeIDByUserID(ctx, tenantID, userID)
}

func (s *Service) IsManagerOf(ctx context.Context, tenantID, managerEmployeeID, employeeID string) (bool, error) {
	if s.Core == nil {
		return false, nil
	}
	return s.Core.IsManagerOf(ctx, tenantID, managerEmployeeID, employeeID)
}

func (s *Service) EmployeeUserID(ctx context.Context, tenantID, employeeID string) (string, error) {
	return s.Store.EmployeeUserID(ctx, tenantID, employeeID)
}

type SubmitInput struct {
	EmployeeID  string
	LeaveTypeID string
	StartDate   time.Time
	EndDate     time.Time
	HalfDay     bool
	Reason      string
}

type SubmitResult struct {
	Application   LeaveApplication
	Deduction     Deduction
	ManagerUserID string
}

func (s *Service) Submit(ctx context.Context, tenantID string, in SubmitInput) (SubmitResult, error) {
	var result SubmitResult

	if in.EndDate.Before(in.StartDate) {
		return result, ErrEndBeforeStart
	}
	if in.HalfDay && !in.StartDate.Equal(in.EndDate) {
		return result, ErrHalfDayRange
	}
	if _, err := s.Store.TypeByID(ctx, tenantID, in.LeaveTypeID); err != nil {
		return result, err
	}
	joined, err := s.Store.EmployeeStartDate(ctx, tenantID, in.EmployeeID)
	if err != nil {
		return result, err
	}
	if joined != nil && in.StartDate.Before(*joined) {
		return result, ErrBeforeJoinDate
	}
	overlap, err := s.Store.HasOverlappingApplication(ctx, tenantID, in.EmployeeID, in.StartDate, in.EndDate)
	if err != nil {
		return result, err
	}
	if overlap {
		return result, ErrOverlappingLeave
	}

	id, err := s.Store.CreateApplication(ctx, tenantID, LeaveApplication{
		EmployeeID:  in.EmployeeID,
		LeaveTypeID: in.LeaveTypeID,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		HalfDay:     in.HalfDay,
		Reason:      in.Reason,
	})
	if err != nil {
		return result, err
	}
	app, err := s.Store.GetApplication(ctx, tenantID, id)
	if err != nil {
		return result, err
	}
	result.Application = app

	if ded, err := EvaluateDeduction(ctx, s.Store, deductionInput(app, tenantID, app.Status)); err == nil {
		result.Deduction = ded
	}
	if managerID, err := s.Store.ManagerUserIDForEmployee(ctx, tenantID, in.EmployeeID); err == nil {
		result.ManagerUserID = managerID
	}
	return result, nil
}

type PreviewInput struct {
	EmployeeID    string
	ApplicationID string
	StartDate     time.Time
	EndDate       time.Time
	HalfDay       bool
	Status        string
}

type PreviewResult struct {
	Deduction Deduction     `json:"deduction"`
	Balance   *LeaveBalance `json:"balance,omitempty"`
}

// PreviewDeduction prices a range without writing anything. The status
// matters: an unapproved single Friday or Monday previews at the
// deterrent price, and approval may re-price it.
func (s *Service) PreviewDeduction(ctx context.Context, tenantID string, in PreviewInput) (PreviewResult, error) {
	if !KnownStatus(in.Status) {
		return PreviewResult{}, ErrUnknownStatus
	}
	ded, err := EvaluateDeduction(ctx, s.Store, DeductionInput{
		TenantID:      tenantID,
		EmployeeID:    in.EmployeeID,
		ApplicationID: in.ApplicationID,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		HalfDay:       in.HalfDay,
		Status:        in.Status,
	})
	if err != nil {
		return PreviewResult{}, err
	}
	result := PreviewResult{Deduction: ded}
	if bal, found, err := s.Store.GetBalance(ctx, tenantID, in.EmployeeID, in.StartDate.Year()); err == nil && found {
		result.Balance = &bal
	}
	return result, nil
}

func (s *Service) PreviewApplication(ctx context.Context, tenantID, applicationID string) (LeaveApplication, PreviewResult, error) {
	app, err := s.Store.GetApplication(ctx, tenantID, applicationID)
	if err != nil {
		return LeaveApplication{}, PreviewResult{}, err
	}
	preview, err := s.PreviewDeduction(ctx, tenantID, PreviewInput{
		EmployeeID:    app.EmployeeID,
		ApplicationID: app.ID,
		StartDate:     app.StartDate,
		EndDate:       app.EndDate,
		HalfDay:       app.HalfDay,
		Status:        app.Status,
	})
	if err != nil {
		return LeaveApplication{}, PreviewResult{}, err
	}
	return app, preview, nil
}

type DecisionResult struct {
	Application     LeaveApplication
	BalanceDelta    decimal.Decimal
	PairedSiblingID string
	EmployeeUserID  string
	ManagerUserID   string
}

func (s *Service) Approve(ctx context.Context, tenantID string, user auth.UserContext, applicationID string) (DecisionResult, error) {
	app, err := s.Store.GetApplication(ctx, tenantID, applicationID)
	if err != nil {
		return DecisionResult{}, err
	}
	if err := s.authorizeDecision(ctx, tenantID, user, app); err != nil {
		return DecisionResult{}, err
	}
	switch app.Status {
	case StatusPending, StatusWithdrawn, StatusRejected:
	default:
		return DecisionResult{}, ErrInvalidState
	}
	return s.applyDecision(ctx, tenantID, user.UserID, app, StatusApproved)
}

func (s *Service) Reject(ctx context.Context, tenantID string, user auth.UserContext, applicationID string) (DecisionResult, error) {
	app, err := s.Store.GetApplication(ctx, tenantID, applicationID)
	if err != nil {
		return DecisionResult{}, err
	}
	if err := s.authorizeDecision(ctx, tenantID, user, app); err != nil {
		return DecisionResult{}, err
	}
	if app.Status != StatusPending && app.Status != StatusApproved {
		return DecisionResult{}, ErrInvalidState
	}
	return s.applyDecision(ctx, tenantID, user.UserID, app, StatusRejected)
}

func (s *Service) Withdraw(ctx context.Context, tenantID string, user auth.UserContext, applicationID string) (DecisionResult, error) {
	app, err := s.Store.GetApplication(ctx, tenantID, applicationID)
	if err != nil {
		return DecisionResult{}, err
	}
	if app.Status != StatusPending && app.Status != StatusApproved {
		return DecisionResult{}, ErrInvalidState
	}
	if user.RoleName != auth.RoleHR && user.RoleName != auth.RoleSystemAdmin {
		employeeID, err := s.EmployeeIDByUserID(ctx, tenantID, user.UserID)
		if err != nil || employeeID == "" || employeeID != app.EmployeeID {
			return DecisionResult{}, ErrForbidden
		}
	}
	return s.applyDecision(ctx, tenantID, user.UserID, app, StatusWithdrawn)
}

func (s *Service) Cancel(ctx context.Context, tenantID string, user auth.UserContext, applicationID string) (DecisionResult, error) {
	app, err := s.Store.GetApplication(ctx, tenantID, applicationID)
	if err != nil {
		return DecisionResult{}, err
	}
	employeeID, err := s.EmployeeIDByUserID(ctx, tenantID, user.UserID)
	if err != nil || employeeID == "" || employeeID != app.EmployeeID {
		return DecisionResult{}, ErrForbidden
	}
	if app.Status != StatusPending {
		return DecisionResult{}, ErrInvalidState
	}
	return s.applyDecision(ctx, tenantID, user.UserID, app, StatusCancelled)
}

// ChangeStatus is the raw compare-and-swap transition for HR repairs.
// It still settles balances like any other transition, and an approval
// through it keeps the self-approval guard.
func (s *Service) ChangeStatus(ctx context.Context, tenantID string, user auth.UserContext, applicationID, oldStatus, newStatus string) (DecisionResult, error) {
	if user.RoleName != auth.RoleHR && user.RoleName != auth.RoleSystemAdmin {
		return DecisionResult{}, ErrForbidden
	}
	app, err := s.Store.GetApplication(ctx, tenantID, applicationID)
	if err != nil {
		return DecisionResult{}, err
	}
	if newStatus == StatusApproved {
		if err := s.authorizeDecision(ctx, tenantID, user, app); err != nil {
			return DecisionResult{}, err
		}
	}
	settled, err := ApplyStatusChange(ctx, s.Store, SettlementInput{
		TenantID:      tenantID,
		ApplicationID: applicationID,
		OldStatus:     oldStatus,
		NewStatus:     newStatus,
		ActorUserID:   user.UserID,
	})
	if err != nil {
		return DecisionResult{}, err
	}
	return s.decisionResult(ctx, tenantID, settled), nil
}

func (s *Service) authorizeDecision(ctx context.Context, tenantID string, user auth.UserContext, app LeaveApplication) error {
	actorEmployeeID, err := s.EmployeeIDByUserID(ctx, tenantID, user.UserID)
	if err != nil {
		actorEmployeeID = ""
	}
	if actorEmployeeID != "" && actorEmployeeID == app.EmployeeID {
		return ErrSelfApproval
	}
	if user.RoleName == auth.RoleHR || user.RoleName == auth.RoleSystemAdmin {
		return nil
	}
	if user.RoleName == auth.RoleManager && actorEmployeeID != "" {
		isManager, err := s.IsManagerOf(ctx, tenantID, actorEmployeeID, app.EmployeeID)
		if err == nil && isManager {
			return nil
		}
	}
	return ErrForbidden
}

func (s *Service) applyDecision(ctx context.Context, tenantID, actorUserID string, app LeaveApplication, newStatus string) (DecisionResult, error) {
	settled, err := ApplyStatusChange(ctx, s.Store, SettlementInput{
		TenantID:      tenantID,
		ApplicationID: app.ID,
		OldStatus:     app.Status,
		NewStatus:     newStatus,
		ActorUserID:   actorUserID,
	})
	if err != nil {
		return DecisionResult{}, err
	}
	return s.decisionResult(ctx, tenantID, settled), nil
}

func (s *Service) decisionResult(ctx context.Context, tenantID string, settled SettlementResult) DecisionResult {
	result := DecisionResult{
		Application:     settled.Application,
		BalanceDelta:    settled.BalanceDelta,
		PairedSiblingID: settled.PairedSiblingID,
	}
	if userID, err := s.Store.EmployeeUserID(ctx, tenantID, settled.Application.EmployeeID); err == nil {
		result.EmployeeUserID = userID
	}
	if managerID, err := s.Store.ManagerUserIDForEmployee(ctx, tenantID, settled.Application.EmployeeID); err == nil {
		result.ManagerUserID = managerID
	}
	return result
}

func (s *Service) GetApplication(ctx context.Context, tenantID, applicationID string) (LeaveApplication, error) {
	return s.Store.GetApplication(ctx, tenantID, applicationID)
}

func (s *Service) ListApplications(ctx context.Context, tenantID, roleName, employeeID, status string, limit, offset int) (ApplicationListResult, error) {
	return s.Store.ListApplications(ctx, tenantID, roleName, employeeID, status, limit, offset)
}

func (s *Service) ListBalances(ctx context.Context, tenantID, employeeID string) ([]LeaveBalance, error) {
	return s.Store.ListBalances(ctx, tenantID, employeeID)
}

func (s *Service) ListAdjustments(ctx context.Context, tenantID, employeeID string, limit, offset int) ([]BalanceAdjustment, int, error) {
	return s.Store.ListAdjustments(ctx, tenantID, employeeID, limit, offset)
}

type AdjustmentInput struct {
	EmployeeID string
	Year       int
	Direction  string
	Amount     decimal.Decimal
	Reason     string
}

// AdjustBalance moves the allocated side of a balance and appends the
// movement to the adjustment log in the same transaction. The used side
// is owned by settlements and never changes here.
func (s *Service) AdjustBalance(ctx context.Context, tenantID, actorUserID string, in AdjustmentInput) (BalanceAdjustment, error) {
	if !in.Amount.IsPositive() {
		return BalanceAdjustment{}, ErrInvalidAmount
	}
	if in.Direction != DirectionAdd && in.Direction != DirectionSubtract {
		return BalanceAdjustment{}, ErrUnknownDirection
	}
	if in.Year == 0 {
		in.Year = time.Now().UTC().Year()
	}
	if _, err := s.Store.EmployeeStartDate(ctx, tenantID, in.EmployeeID); err != nil {
		return BalanceAdjustment{}, err
	}

	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		return BalanceAdjustment{}, err
	}

	bal, found, err := s.Store.BalanceForUpdateTx(ctx, tx, tenantID, in.EmployeeID, in.Year)
	if err == nil && !found {
		bal, err = s.Store.CreateZeroBalanceTx(ctx, tx, tenantID, in.EmployeeID, in.Year)
	}
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			slog.Warn("leave adjustment rollback failed", "err", rbErr)
		}
		return BalanceAdjustment{}, err
	}

	before := bal.AllocatedDays
	after := before.Add(in.Amount)
	if in.Direction == DirectionSubtract {
		after = before.Sub(in.Amount)
	}
	if after.IsNegative() {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			slog.Warn("leave adjustment rollback failed", "err", rbErr)
		}
		return BalanceAdjustment{}, ErrNegativeAllocation
	}
	if bal.UsedDays.GreaterThan(after) {
		slog.Warn("leave balance overdrawn",
			"employeeId", in.EmployeeID,
			"year", in.Year,
			"used", bal.UsedDays.String(),
			"allocated", after.String())
	}

	if err := s.Store.SetBalanceAllocatedTx(ctx, tx, tenantID, bal.ID, after); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			slog.Warn("leave adjustment rollback failed", "err", rbErr)
		}
		return BalanceAdjustment{}, err
	}
	adj := BalanceAdjustment{
		EmployeeID:      in.EmployeeID,
		Year:            in.Year,
		Direction:       in.Direction,
		Amount:          in.Amount,
		AllocatedBefore: before,
		AllocatedAfter:  after,
		Reason:          in.Reason,
		CreatedBy:       actorUserID,
	}
	adj.ID, adj.CreatedAt, err = s.Store.InsertAdjustmentTx(ctx, tx, tenantID, adj)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			slog.Warn("leave adjustment rollback failed", "err", rbErr)
		}
		return BalanceAdjustment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return BalanceAdjustment{}, err
	}
	return adj, nil
}

func (s *Service) RecalculateAll(ctx context.Context, tenantID string) (RecalcSummary, error) {
	return RecalculateDeductions(ctx, s.Store, tenantID)
}

func (s *Service) CalendarExportRows(ctx context.Context, tenantID string, statuses []string, employeeID string) ([]CalendarExportRow, error) {
	return s.Store.CalendarExportRows(ctx, tenantID, statuses, employeeID)
}
