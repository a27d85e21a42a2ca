package leave

import (
	"context"
	"errors"
	"testing"
	"time"
)

// ruleStore is a canned DeductionStore for exercising the rule table
// without a database.
type ruleStore struct {
	holidays HolidaySet
	sibling  *LeaveApplication
}

func (s ruleStore) NonOptionalHolidays(ctx context.Context, tenantID string, from, to time.Time) (HolidaySet, error) {
	return s.holidays, nil
}

func (s ruleStore) ApprovedSingleDaySibling(ctx context.Context, tenantID, employeeID string, onDate time.Time, excludeID string) (LeaveApplication, bool, error) {
	if s.sibling == nil || !s.sibling.StartDate.Equal(onDate) || s.sibling.ID == excludeID {
		return LeaveApplication{}, false, nil
	}
	return *s.sibling, true, nil
}

func checkDeduction(t *testing.T, got Deduction, deducted string, sandwich bool, reason string) {
	t.Helper()
	if got.DeductedDays.String() != deducted {
		t.Fatalf("deducted days = %s, want %s", got.DeductedDays, deducted)
	}
	if got.IsSandwich != sandwich {
		t.Fatalf("isSandwich = %v, want %v", got.IsSandwich, sandwich)
	}
	if got.Reason != reason {
		t.Fatalf("reason = %q, want %q", got.Reason, reason)
	}
}

func TestFridayToMondayRange(t *testing.T) {
	got, err := EvaluateDeduction(context.Background(), ruleStore{}, DeductionInput{
		StartDate: date(2025, 3, 7),
		EndDate:   date(2025, 3, 10),
		Status:    StatusApproved,
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	checkDeduction(t, got, "4", true, ReasonFridayToMonday)
	if got.ActualDays.String() != "2" {
		t.Fatalf("actual days = %s, want 2", got.ActualDays)
	}
}

func TestFridayThroughSundayRange(t *testing.T) {
	got, err := EvaluateDeduction(context.Background(), ruleStore{}, DeductionInput{
		StartDate: date(2025, 3, 7),
		EndDate:   date(2025, 3, 9),
		Status:    StatusPending,
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	checkDeduction(t, got, "4", true, ReasonFridayWeekend)
	if got.ActualDays.String() != "1" {
		t.Fatalf("actual days = %s, want 1", got.ActualDays)
	}
}

func TestSaturdayThroughMondayRange(t *testing.T) {
	got, err := EvaluateDeduction(context.Background(), ruleStore{}, DeductionInput{
		StartDate: date(2025, 3, 8),
		EndDate:   date(2025, 3, 10),
		Status:    StatusApproved,
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	checkDeduction(t, got, "4", true, ReasonWeekendMonday)
}

func TestSingleFridayApprovedWithoutSibling(t *testing.T) {
	got, err := EvaluateDeduction(context.Background(), ruleStore{}, DeductionInput{
		StartDate: date(2025, 3, 7),
		EndDate:   date(2025, 3, 7),
		Status:    StatusApproved,
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	checkDeduction(t, got, "1", false, ReasonSingleDay)
}

func TestSingleMondayPending(t *testing.T) {
	got, err := EvaluateDeduction(context.Background(), ruleStore{}, DeductionInput{
		StartDate: date(2025, 3, 10),
		EndDate:   date(2025, 3, 10),
		Status:    StatusPending,
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	checkDeduction(t, got, "3", true, ReasonUnapprovedSingle)
}

func TestPairedSingleDays(t *testing.T) {
	store := ruleStore{sibling: &LeaveApplication{
		ID:        "sib-1",
		StartDate: date(2025, 3, 10),
		EndDate:   date(2025, 3, 10),
		Status:    StatusApproved,
	}}
	got, err := EvaluateDeduction(context.Background(), store, DeductionInput{
		ApplicationID: "app-1",
		StartDate:     date(2025, 3, 7),
		EndDate:       date(2025, 3, 7),
		Status:        StatusApproved,
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	checkDeduction(t, got, "2", true, ReasonPairedSingleDay)
}

func TestSiblingLookupExcludesSelf(t *testing.T) {
	store := ruleStore{sibling: &LeaveApplication{
		ID:        "app-1",
		StartDate: date(2025, 3, 10),
	}}
	got, err := EvaluateDeduction(context.Background(), store, DeductionInput{
		ApplicationID: "app-1",
		StartDate:     date(2025, 3, 7),
		EndDate:       date(2025, 3, 7),
		Status:        StatusApproved,
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	checkDeduction(t, got, "1", false, ReasonSingleDay)
}

func TestMidweekRangeWithHoliday(t *testing.T) {
	store := ruleStore{holidays: NewHolidaySet(date(2025, 1, 28))}
	got, err := EvaluateDeduction(context.Background(), store, DeductionInput{
		StartDate: date(2025, 1, 27),
		EndDate:   date(2025, 1, 29),
		Status:    StatusApproved,
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	checkDeduction(t, got, "2", false, ReasonWorkingDays)
}

func TestHalfDayMidweek(t *testing.T) {
	got, err := EvaluateDeduction(context.Background(), ruleStore{}, DeductionInput{
		StartDate: date(2025, 3, 12),
		EndDate:   date(2025, 3, 12),
		HalfDay:   true,
		Status:    StatusApproved,
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	checkDeduction(t, got, "0.5", false, ReasonWorkingDays)
}

func TestHalfDayFridayStillHitsSingleDayRule(t *testing.T) {
	got, err := EvaluateDeduction(context.Background(), ruleStore{}, DeductionInput{
		StartDate: date(2025, 3, 7),
		EndDate:   date(2025, 3, 7),
		HalfDay:   true,
		Status:    StatusPending,
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	checkDeduction(t, got, "3", true, ReasonUnapprovedSingle)
	if got.ActualDays.String() != "0.5" {
		t.Fatalf("actual days = %s, want 0.5", got.ActualDays)
	}
}

func TestSingleTuesdayUsesDefaultRule(t *testing.T) {
	got, err := EvaluateDeduction(context.Background(), ruleStore{}, DeductionInput{
		StartDate: date(2025, 3, 11),
		EndDate:   date(2025, 3, 11),
		Status:    StatusPending,
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	checkDeduction(t, got, "1", false, ReasonWorkingDays)
}

func TestEvaluateRejectsReversedRange(t *testing.T) {
	_, err := EvaluateDeduction(context.Background(), ruleStore{}, DeductionInput{
		StartDate: date(2025, 3, 10),
		EndDate:   date(2025, 3, 7),
	})
	if !errors.Is(err, ErrEndBeforeStart) {
		t.Fatalf("expected ErrEndBeforeStart, got %v", err)
	}
}

func TestSiblingDate(t *testing.T) {
	if got := SiblingDate(date(2025, 3, 7)); !got.Equal(date(2025, 3, 10)) {
		t.Fatalf("sibling of Friday = %s, want Monday", got.Format(dateLayout))
	}
	if got := SiblingDate(date(2025, 3, 10)); !got.Equal(date(2025, 3, 7)) {
		t.Fatalf("sibling of Monday = %s, want Friday", got.Format(dateLayout))
	}
}
