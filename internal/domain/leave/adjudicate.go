package leave

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DeductionStore supplies the calendar and sibling lookups the rule
// engine needs. Settlement runs it against transaction-bound readers so
// a sibling approved earlier in the same transaction is visible.
type DeductionStore interface {
	NonOptionalHolidays(ctx context.Context, tenantID string, from, to time.Time) (HolidaySet, error)
	ApprovedSingleDaySibling(ctx context.Context, tenantID, employeeID string, onDate time.Time, excludeID string) (LeaveApplication, bool, error)
}

type DeductionInput struct {
	TenantID      string
	EmployeeID    string
	ApplicationID string
	StartDate     time.Time
	EndDate       time.Time
	HalfDay       bool
	Status        string
}

// Deduction is the outcome of evaluating one application: the working
// days actually requested, the days the ledger will charge, and the
// rule that decided the charge.
type Deduction struct {
	ActualDays   decimal.Decimal `json:"actualDays"`
	DeductedDays decimal.Decimal `json:"deductedDays"`
	IsSandwich   bool            `json:"isSandwich"`
	Reason       string          `json:"reason"`
}

// EvaluateDeduction runs the sandwich rules in order and stops at the
// first match. Range shapes are judged on calendar span and weekday
// alone; holidays and half-day markers change only the actual-day
// count, never which rule fires.
func EvaluateDeduction(ctx context.Context, store DeductionStore, in DeductionInput) (Deduction, error) {
	if in.EndDate.Before(in.StartDate) {
		return Deduction{}, ErrEndBeforeStart
	}
	holidays, err := store.NonOptionalHolidays(ctx, in.TenantID, in.StartDate, in.EndDate)
	if err != nil {
		return Deduction{}, err
	}
	working, err := CountWorkingDays(in.StartDate, in.EndDate, holidays)
	if err != nil {
		return Deduction{}, err
	}
	actual := decimal.NewFromInt(int64(working))
	if in.HalfDay {
		actual = decimal.NewFromFloat(0.5)
	}

	span := spanDays(in.StartDate, in.EndDate)
	switch {
	case span == 4 && IsFriday(in.StartDate) && IsMonday(in.EndDate):
		return Deduction{ActualDays: actual, DeductedDays: decimal.NewFromInt(4), IsSandwich: true, Reason: ReasonFridayToMonday}, nil
	case span == 3 && IsFriday(in.StartDate):
		return Deduction{ActualDays: actual, DeductedDays: decimal.NewFromInt(4), IsSandwich: true, Reason: ReasonFridayWeekend}, nil
	case span == 3 && IsMonday(in.EndDate):
		return Deduction{ActualDays: actual, DeductedDays: decimal.NewFromInt(4), IsSandwich: true, Reason: ReasonWeekendMonday}, nil
	case span == 1 && (IsFriday(in.StartDate) || IsMonday(in.StartDate)):
		return evaluateSingleDay(ctx, store, in, actual)
	}
	return Deduction{ActualDays: actual, DeductedDays: actual, Reason: ReasonWorkingDays}, nil
}

func evaluateSingleDay(ctx context.Context, store DeductionStore, in DeductionInput, actual decimal.Decimal) (Deduction, error) {
	if in.Status != StatusApproved {
		return Deduction{ActualDays: actual, DeductedDays: decimal.NewFromInt(3), IsSandwich: true, Reason: ReasonUnapprovedSingle}, nil
	}
	_, found, err := store.ApprovedSingleDaySibling(ctx, in.TenantID, in.EmployeeID, SiblingDate(in.StartDate), in.ApplicationID)
	if err != nil {
		return Deduction{}, err
	}
	if found {
		return Deduction{ActualDays: actual, DeductedDays: decimal.NewFromInt(2), IsSandwich: true, Reason: ReasonPairedSingleDay}, nil
	}
	return Deduction{ActualDays: actual, DeductedDays: decimal.NewFromInt(1), Reason: ReasonSingleDay}, nil
}

// SiblingDate returns the opposite end of the weekend bridge for a
// single-day application: the Monday after a Friday, or the Friday
// before a Monday.
func SiblingDate(d time.Time) time.Time {
	if IsFriday(d) {
		return d.AddDate(0, 0, 3)
	}
	return d.AddDate(0, 0, -3)
}

// matches reports whether the settlement stored on app already records
// this deduction.
func (d Deduction) matches(app LeaveApplication) bool {
	return d.DeductedDays.Equal(app.DeductedDays) &&
		d.IsSandwich == app.IsSandwich &&
		d.Reason == app.DeductionReason
}
