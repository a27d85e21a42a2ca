package leave

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

func TestRecalcRepairsDriftAndIsIdempotent(t *testing.T) {
	s := newMemStore()
	s.addBalance("emp-1", 2025, 20)

	// A legacy row priced at its working days instead of the bridge.
	id := s.addApplication("emp-1", date(2025, 3, 7), date(2025, 3, 10), false, StatusApproved)
	app := s.apps[id]
	app.DeductedDays = decimal.NewFromInt(2)
	app.DeductionReason = ReasonWorkingDays
	s.apps[id] = app
	if err := s.SetBalanceUsedTx(context.Background(), nil, "t1", s.balance("emp-1", 2025).ID, decimal.NewFromInt(2)); err != nil {
		t.Fatalf("seed balance: %v", err)
	}

	summary, err := RecalculateDeductions(context.Background(), s, "t1")
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if summary.ApplicationsScanned != 1 || summary.ApplicationsUpdated != 1 || summary.BalancesUpdated != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	got := s.app(id)
	if got.DeductedDays.String() != "4" || !got.IsSandwich || got.DeductionReason != ReasonFridayToMonday {
		t.Fatalf("settlement = %s/%v/%s", got.DeductedDays, got.IsSandwich, got.DeductionReason)
	}
	if used := s.balance("emp-1", 2025).UsedDays; used.String() != "4" {
		t.Fatalf("used days = %s, want 4", used)
	}

	again, err := RecalculateDeductions(context.Background(), s, "t1")
	if err != nil {
		t.Fatalf("second recalculate: %v", err)
	}
	if again.ApplicationsUpdated != 0 || again.BalancesUpdated != 0 {
		t.Fatalf("second run summary = %+v", again)
	}
	if used := s.balance("emp-1", 2025).UsedDays; used.String() != "4" {
		t.Fatalf("used days after second run = %s, want 4", used)
	}
}

func TestRecalcRepairsOrphanedPairHalf(t *testing.T) {
	s := newMemStore()
	s.addBalance("emp-1", 2025, 20)
	fri := s.addApplication("emp-1", date(2025, 3, 7), date(2025, 3, 7), false, StatusPending)
	mon := s.addApplication("emp-1", date(2025, 3, 10), date(2025, 3, 10), false, StatusPending)

	mustApply(t, s, fri, StatusPending, StatusApproved)
	mustApply(t, s, mon, StatusPending, StatusApproved)
	mustApply(t, s, mon, StatusApproved, StatusWithdrawn)

	// The Friday half keeps its paired price until recalculation.
	if got := s.app(fri); got.DeductedDays.String() != "2" {
		t.Fatalf("friday before recalc = %s, want 2", got.DeductedDays)
	}

	summary, err := RecalculateDeductions(context.Background(), s, "t1")
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if summary.ApplicationsUpdated != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	got := s.app(fri)
	if got.DeductedDays.String() != "1" || got.IsSandwich || got.DeductionReason != ReasonSingleDay {
		t.Fatalf("friday after recalc = %s/%v/%s", got.DeductedDays, got.IsSandwich, got.DeductionReason)
	}
	if used := s.balance("emp-1", 2025).UsedDays; used.String() != "1" {
		t.Fatalf("used days = %s, want 1", used)
	}
}

func TestRecalcLeavesCleanLedgerAlone(t *testing.T) {
	s := newMemStore()
	s.addBalance("emp-1", 2025, 20)
	fri := s.addApplication("emp-1", date(2025, 3, 7), date(2025, 3, 7), false, StatusPending)
	mon := s.addApplication("emp-1", date(2025, 3, 10), date(2025, 3, 10), false, StatusPending)
	week := s.addApplication("emp-1", date(2025, 3, 18), date(2025, 3, 20), false, StatusPending)

	mustApply(t, s, fri, StatusPending, StatusApproved)
	mustApply(t, s, mon, StatusPending, StatusApproved)
	mustApply(t, s, week, StatusPending, StatusApproved)

	summary, err := RecalculateDeductions(context.Background(), s, "t1")
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if summary.ApplicationsScanned != 3 || summary.ApplicationsUpdated != 0 || summary.BalancesUpdated != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if used := s.balance("emp-1", 2025).UsedDays; used.String() != "7" {
		t.Fatalf("used days = %s, want 7", used)
	}
}
