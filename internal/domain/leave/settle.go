package leave

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type SettlementInput struct {
	TenantID      string
	ApplicationID string
	OldStatus     string
	NewStatus     string
	ActorUserID   string
}

type SettlementResult struct {
	Application     LeaveApplication
	BalanceDelta    decimal.Decimal
	PairedSiblingID string
}

// txStore adapts the transaction-bound store methods to DeductionStore
// so rule evaluation inside a settlement sees uncommitted rows from the
// same transaction.
type txStore struct {
	store SettlementStore
	tx    pgx.Tx
}

func (s txStore) NonOptionalHolidays(ctx context.Context, tenantID string, from, to time.Time) (HolidaySet, error) {
	return s.store.NonOptionalHolidaysTx(ctx, s.tx, tenantID, from, to)
}

func (s txStore) ApprovedSingleDaySibling(ctx context.Context, tenantID, employeeID string, onDate time.Time, excludeID string) (LeaveApplication, bool, error) {
	return s.store.ApprovedSingleDaySiblingTx(ctx, s.tx, tenantID, employeeID, onDate, excludeID)
}

func deductionInput(app LeaveApplication, tenantID, status string) DeductionInput {
	return DeductionInput{
		TenantID:      tenantID,
		EmployeeID:    app.EmployeeID,
		ApplicationID: app.ID,
		StartDate:     app.StartDate,
		EndDate:       app.EndDate,
		HalfDay:       app.HalfDay,
		Status:        status,
	}
}

// ApplyStatusChange moves one application between statuses and settles
// the balance consequences in a single transaction. The application row
// and every touched balance row stay locked until commit, and any error
// rolls back the status change together with the balance writes. The
// expected old status acts as a compare-and-swap guard against
// concurrent decisions on the same application.
func ApplyStatusChange(ctx context.Context, store SettlementStore, in SettlementInput) (SettlementResult, error) {
	var result SettlementResult

	if !KnownStatus(in.OldStatus) || !KnownStatus(in.NewStatus) {
		return result, ErrUnknownStatus
	}

	tx, err := store.BeginTx(ctx)
	if err != nil {
		return result, err
	}

	app, err := store.ApplicationForUpdateTx(ctx, tx, in.TenantID, in.ApplicationID)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			slog.Warn("leave settlement rollback failed", "err", rbErr)
		}
		return result, err
	}
	if app.Status != in.OldStatus {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			slog.Warn("leave settlement rollback failed", "err", rbErr)
		}
		return result, ErrStatusConflict
	}
	if in.OldStatus == in.NewStatus {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			slog.Warn("leave settlement rollback failed", "err", rbErr)
		}
		result.Application = app
		return result, nil
	}

	switch {
	case in.OldStatus == StatusApproved:
		err = releaseDeduction(ctx, store, tx, in, &app, &result)
	case in.NewStatus == StatusApproved:
		err = chargeDeduction(ctx, store, tx, in, &app, &result)
	default:
		err = store.UpdateApplicationStatusTx(ctx, tx, in.TenantID, app.ID, in.NewStatus, in.ActorUserID)
		if err == nil {
			app.Status = in.NewStatus
			app.DecidedBy = in.ActorUserID
		}
	}
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			slog.Warn("leave settlement rollback failed", "err", rbErr)
		}
		return SettlementResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return SettlementResult{}, err
	}
	result.Application = app
	return result, nil
}

// chargeDeduction settles an approval: it prices the application with
// the target status, charges the balance for the start-date year, and
// writes the settlement before resolving the weekend pair so the
// sibling query sees the freshly approved row.
func chargeDeduction(ctx context.Context, store SettlementStore, tx pgx.Tx, in SettlementInput, app *LeaveApplication, result *SettlementResult) error {
	ded, err := EvaluateDeduction(ctx, txStore{store: store, tx: tx}, deductionInput(*app, in.TenantID, StatusApproved))
	if err != nil {
		return err
	}

	bal, err := lockOrCreateBalance(ctx, store, tx, in.TenantID, app.EmployeeID, app.StartDate.Year())
	if err != nil {
		return err
	}
	used := bal.UsedDays.Add(ded.DeductedDays)
	if used.GreaterThan(bal.AllocatedDays) {
		slog.Warn("leave balance overdrawn",
			"employeeId", app.EmployeeID,
			"year", bal.Year,
			"used", used.String(),
			"allocated", bal.AllocatedDays.String())
	}
	if err := store.SetBalanceUsedTx(ctx, tx, in.TenantID, bal.ID, used); err != nil {
		return err
	}
	if err := store.SaveSettlementTx(ctx, tx, in.TenantID, app.ID, StatusApproved, in.ActorUserID, ded); err != nil {
		return err
	}

	app.Status = StatusApproved
	app.DeductedDays = ded.DeductedDays
	app.IsSandwich = ded.IsSandwich
	app.DeductionReason = ded.Reason
	app.DecidedBy = in.ActorUserID
	result.BalanceDelta = ded.DeductedDays

	if singleDayRule(ded.Reason) {
		return resolvePair(ctx, store, tx, in.TenantID, *app, result)
	}
	return nil
}

// releaseDeduction settles a move out of approved: it refunds the days
// that were charged when the application was approved, not a fresh
// evaluation, so the refund always mirrors the stored settlement.
func releaseDeduction(ctx context.Context, store SettlementStore, tx pgx.Tx, in SettlementInput, app *LeaveApplication, result *SettlementResult) error {
	bal, err := lockOrCreateBalance(ctx, store, tx, in.TenantID, app.EmployeeID, app.StartDate.Year())
	if err != nil {
		return err
	}
	used := bal.UsedDays.Sub(app.DeductedDays)
	if used.IsNegative() {
		slog.Warn("leave balance release clamped at zero",
			"employeeId", app.EmployeeID,
			"year", bal.Year,
			"used", bal.UsedDays.String(),
			"released", app.DeductedDays.String())
		used = decimal.Zero
	}
	if err := store.SetBalanceUsedTx(ctx, tx, in.TenantID, bal.ID, used); err != nil {
		return err
	}
	if err := store.ClearSettlementTx(ctx, tx, in.TenantID, app.ID, in.NewStatus, in.ActorUserID); err != nil {
		return err
	}

	result.BalanceDelta = app.DeductedDays.Neg()
	app.Status = in.NewStatus
	app.DeductedDays = decimal.Zero
	app.IsSandwich = false
	app.DeductionReason = ""
	app.DecidedBy = in.ActorUserID
	return nil
}

func lockOrCreateBalance(ctx context.Context, store SettlementStore, tx pgx.Tx, tenantID, employeeID string, year int) (LeaveBalance, error) {
	bal, found, err := store.BalanceForUpdateTx(ctx, tx, tenantID, employeeID, year)
	if err != nil {
		return LeaveBalance{}, err
	}
	if found {
		return bal, nil
	}
	bal, err = store.CreateZeroBalanceTx(ctx, tx, tenantID, employeeID, year)
	if err != nil {
		return LeaveBalance{}, err
	}
	slog.Warn("leave balance auto-created at zero allocation", "employeeId", employeeID, "year", year)
	return bal, nil
}

func singleDayRule(reason string) bool {
	switch reason {
	case ReasonPairedSingleDay, ReasonSingleDay, ReasonUnapprovedSingle:
		return true
	}
	return false
}
