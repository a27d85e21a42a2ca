package handlers_test

import (
	"net/http"
	"testing"
)

// Weekday anchors used below: 2025-03-07 is a Friday, 2025-03-10 the
// Monday after it, and 2025-01-27 to 2025-01-29 run Monday to
// Wednesday.

func TestFridayToMondaySandwichChargesFourDays(t *testing.T) {
	env := newTestEnv(t)
	hr := env.login(t, testAdminEmail, testAdminPassword)
	typeID := env.consolidatedTypeID(t, hr)
	manager, report := env.newManagerAndReport(t, hr)
	env.allocate(t, hr, report.EmployeeID, 2025, 20)

	submitted := env.submitLeave(t, report.Token, map[string]any{
		"leaveTypeId": typeID,
		"startDate":   "2025-03-07",
		"endDate":     "2025-03-10",
	})
	equalDays(t, "projected deduction", submitted.Projected.DeductedDays, "4")
	equalDays(t, "projected actual days", submitted.Projected.ActualDays, "2")
	if !submitted.Projected.IsSandwich {
		t.Fatalf("Friday to Monday must project as sandwich")
	}
	if submitted.Projected.Reason != "sandwich_friday_to_monday" {
		t.Fatalf("projected reason = %q, want sandwich_friday_to_monday", submitted.Projected.Reason)
	}

	decision := env.decide(t, manager.Token, submitted.Application.ID, "approve")
	equalDays(t, "approval delta", decision.BalanceDelta, "4")
	equalDays(t, "deducted days", decision.Application.DeductedDays, "4")
	if !decision.Application.IsSandwich {
		t.Fatalf("approved Friday to Monday must be marked sandwich")
	}

	bal := env.balance(t, report.Token, report.EmployeeID, 2025)
	equalDays(t, "used", bal.UsedDays, "4")
	equalDays(t, "remaining", bal.RemainingDays, "16")
}

func TestWeekendTouchingRangesPreviewAtFourDays(t *testing.T) {
	env := newTestEnv(t)
	hr := env.login(t, testAdminEmail, testAdminPassword)
	_, report := env.newManagerAndReport(t, hr)

	cases := []struct {
		name   string
		start  string
		end    string
		reason string
	}{
		{"friday into weekend", "2025-03-07", "2025-03-09", "sandwich_friday_weekend"},
		{"weekend into monday", "2025-03-08", "2025-03-10", "sandwich_weekend_monday"},
	}
	for _, tc := range cases {
		envlp := env.invoke(t, http.MethodGet,
			"/leave/applications/preview?startDate="+tc.start+"&endDate="+tc.end,
			report.Token, nil, http.StatusOK)
		var preview struct {
			Deduction deductionView `json:"deduction"`
		}
		decodeInto(t, envlp, &preview)
		equalDays(t, tc.name+" deduction", preview.Deduction.DeductedDays, "4")
		if !preview.Deduction.IsSandwich {
			t.Fatalf("%s must preview as sandwich", tc.name)
		}
		if preview.Deduction.Reason != tc.reason {
			t.Fatalf("%s reason = %q, want %q", tc.name, preview.Deduction.Reason, tc.reason)
		}
	}
}

func TestApprovedSingleFridayChargesOneDay(t *testing.T) {
	env := newTestEnv(t)
	hr := env.login(t, testAdminEmail, testAdminPassword)
	typeID := env.consolidatedTypeID(t, hr)
	manager, report := env.newManagerAndReport(t, hr)
	env.allocate(t, hr, report.EmployeeID, 2025, 20)

	submitted := env.submitLeave(t, report.Token, map[string]any{
		"leaveTypeId": typeID,
		"startDate":   "2025-03-07",
		"endDate":     "2025-03-07",
	})
	// Pending single Fridays carry the deterrent price until approved.
	equalDays(t, "projected deduction", submitted.Projected.DeductedDays, "3")
	if !submitted.Projected.IsSandwich {
		t.Fatalf("pending single Friday must project as sandwich")
	}
	if submitted.Projected.Reason != "sandwich_single_day_unapproved" {
		t.Fatalf("projected reason = %q, want sandwich_single_day_unapproved", submitted.Projected.Reason)
	}

	decision := env.decide(t, manager.Token, submitted.Application.ID, "approve")
	equalDays(t, "approval delta", decision.BalanceDelta, "1")
	equalDays(t, "deducted days", decision.Application.DeductedDays, "1")
	if decision.Application.IsSandwich {
		t.Fatalf("approved lone Friday must not be marked sandwich")
	}
	if decision.Application.DeductionReason != "single_day_approved" {
		t.Fatalf("deduction reason = %q, want single_day_approved", decision.Application.DeductionReason)
	}
	if decision.PairedSiblingID != "" {
		t.Fatalf("lone Friday approval must not pair, got sibling %s", decision.PairedSiblingID)
	}

	bal := env.balance(t, report.Token, report.EmployeeID, 2025)
	equalDays(t, "used", bal.UsedDays, "1")
}

// TestPairedSingleDaysSettleAsWeekendBridge approves a single Friday
// and the matching single Monday. The second approval charges its own
// two days and corrects the sibling from one day to two in the same
// transaction, so the pair costs four days total.
func TestPairedSingleDaysSettleAsWeekendBridge(t *testing.T) {
	env := newTestEnv(t)
	hr := env.login(t, testAdminEmail, testAdminPassword)
	typeID := env.consolidatedTypeID(t, hr)
	manager, report := env.newManagerAndReport(t, hr)
	env.allocate(t, hr, report.EmployeeID, 2025, 20)

	friday := env.submitLeave(t, report.Token, map[string]any{
		"leaveTypeId": typeID,
		"startDate":   "2025-03-07",
		"endDate":     "2025-03-07",
	})
	monday := env.submitLeave(t, report.Token, map[string]any{
		"leaveTypeId": typeID,
		"startDate":   "2025-03-10",
		"endDate":     "2025-03-10",
	})

	first := env.decide(t, manager.Token, friday.Application.ID, "approve")
	equalDays(t, "first approval delta", first.BalanceDelta, "1")

	second := env.decide(t, manager.Token, monday.Application.ID, "approve")
	equalDays(t, "second approval deducted", second.Application.DeductedDays, "2")
	if second.Application.DeductionReason != "sandwich_paired_single_day" {
		t.Fatalf("second approval reason = %q, want sandwich_paired_single_day", second.Application.DeductionReason)
	}
	if second.PairedSiblingID != friday.Application.ID {
		t.Fatalf("paired sibling = %q, want %q", second.PairedSiblingID, friday.Application.ID)
	}
	// Own charge of 2 plus the sibling correction from 1 to 2.
	equalDays(t, "second approval delta", second.BalanceDelta, "3")

	repriced := env.getApplication(t, report.Token, friday.Application.ID)
	equalDays(t, "sibling deducted after reprice", repriced.DeductedDays, "2")
	if repriced.DeductionReason != "sandwich_paired_single_day" {
		t.Fatalf("sibling reason = %q, want sandwich_paired_single_day", repriced.DeductionReason)
	}
	if !repriced.IsSandwich {
		t.Fatalf("repriced sibling must be marked sandwich")
	}

	bal := env.balance(t, report.Token, report.EmployeeID, 2025)
	equalDays(t, "used for the pair", bal.UsedDays, "4")
	equalDays(t, "remaining", bal.RemainingDays, "16")
}

func TestPendingSingleMondayPricedAtDeterrent(t *testing.T) {
	env := newTestEnv(t)
	hr := env.login(t, testAdminEmail, testAdminPassword)
	typeID := env.consolidatedTypeID(t, hr)
	manager, report := env.newManagerAndReport(t, hr)
	env.allocate(t, hr, report.EmployeeID, 2025, 20)

	submitted := env.submitLeave(t, report.Token, map[string]any{
		"leaveTypeId": typeID,
		"startDate":   "2025-03-10",
		"endDate":     "2025-03-10",
	})
	equalDays(t, "projected deduction", submitted.Projected.DeductedDays, "3")
	if submitted.Projected.Reason != "sandwich_single_day_unapproved" {
		t.Fatalf("projected reason = %q, want sandwich_single_day_unapproved", submitted.Projected.Reason)
	}

	// Rejecting a pending application moves no days because none were
	// charged.
	decision := env.decide(t, manager.Token, submitted.Application.ID, "reject")
	if decision.Application.Status != "rejected" {
		t.Fatalf("status after reject = %q, want rejected", decision.Application.Status)
	}
	equalDays(t, "reject delta", decision.BalanceDelta, "0")

	bal := env.balance(t, report.Token, report.EmployeeID, 2025)
	equalDays(t, "used after reject", bal.UsedDays, "0")
}

func TestHolidayExcludedFromWorkingDayCharge(t *testing.T) {
	env := newTestEnv(t)
	hr := env.login(t, testAdminEmail, testAdminPassword)
	typeID := env.consolidatedTypeID(t, hr)
	manager, report := env.newManagerAndReport(t, hr)
	env.allocate(t, hr, report.EmployeeID, 2025, 20)

	env.invoke(t, http.MethodPost, "/leave/holidays", hr, map[string]any{
		"date": "2025-01-28",
		"name": "Founders Day",
	}, http.StatusCreated)

	submitted := env.submitLeave(t, report.Token, map[string]any{
		"leaveTypeId": typeID,
		"startDate":   "2025-01-27",
		"endDate":     "2025-01-29",
	})
	equalDays(t, "projected deduction", submitted.Projected.DeductedDays, "2")
	if submitted.Projected.Reason != "standard_working_days" {
		t.Fatalf("projected reason = %q, want standard_working_days", submitted.Projected.Reason)
	}

	decision := env.decide(t, manager.Token, submitted.Application.ID, "approve")
	equalDays(t, "approval delta", decision.BalanceDelta, "2")

	bal := env.balance(t, report.Token, report.EmployeeID, 2025)
	equalDays(t, "used", bal.UsedDays, "2")
}

func TestHalfDayChargesHalfDay(t *testing.T) {
	env := newTestEnv(t)
	hr := env.login(t, testAdminEmail, testAdminPassword)
	typeID := env.consolidatedTypeID(t, hr)
	manager, report := env.newManagerAndReport(t, hr)
	env.allocate(t, hr, report.EmployeeID, 2025, 20)

	// 2025-04-09 is a Wednesday, clear of the single-day weekend rules.
	submitted := env.submitLeave(t, report.Token, map[string]any{
		"leaveTypeId": typeID,
		"startDate":   "2025-04-09",
		"endDate":     "2025-04-09",
		"halfDay":     true,
	})
	equalDays(t, "projected deduction", submitted.Projected.DeductedDays, "0.5")

	decision := env.decide(t, manager.Token, submitted.Application.ID, "approve")
	equalDays(t, "approval delta", decision.BalanceDelta, "0.5")

	bal := env.balance(t, report.Token, report.EmployeeID, 2025)
	equalDays(t, "used", bal.UsedDays, "0.5")
	equalDays(t, "remaining", bal.RemainingDays, "19.5")

	// Half-day only applies to a single calendar day.
	envlp := env.invoke(t, http.MethodPost, "/leave/applications", report.Token, map[string]any{
		"leaveTypeId": typeID,
		"startDate":   "2025-04-14",
		"endDate":     "2025-04-15",
		"halfDay":     true,
	}, http.StatusBadRequest)
	assertErrorCode(t, envlp, "invalid_dates")
}
