package leave

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// resolvePair re-prices the approved single-day sibling across the
// weekend bridge after the current application's settlement is written.
// Approving the second half of a Friday/Monday pair turns the first
// half from a lone day into half of the shared bridge, and that
// correction must land in the same transaction as the approval that
// caused it.
func resolvePair(ctx context.Context, store SettlementStore, tx pgx.Tx, tenantID string, app LeaveApplication, result *SettlementResult) error {
	sibling, found, err := store.ApprovedSingleDaySiblingTx(ctx, tx, tenantID, app.EmployeeID, SiblingDate(app.StartDate), app.ID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	ded, err := EvaluateDeduction(ctx, txStore{store: store, tx: tx}, deductionInput(sibling, tenantID, StatusApproved))
	if err != nil {
		return err
	}
	if ded.matches(sibling) {
		return nil
	}

	delta := ded.DeductedDays.Sub(sibling.DeductedDays)
	bal, err := lockOrCreateBalance(ctx, store, tx, tenantID, sibling.EmployeeID, sibling.StartDate.Year())
	if err != nil {
		return err
	}
	used := bal.UsedDays.Add(delta)
	if used.IsNegative() {
		slog.Warn("leave pair correction clamped at zero",
			"employeeId", sibling.EmployeeID,
			"year", bal.Year,
			"used", bal.UsedDays.String(),
			"delta", delta.String())
		used = decimal.Zero
	}
	if err := store.SetBalanceUsedTx(ctx, tx, tenantID, bal.ID, used); err != nil {
		return err
	}
	if err := store.UpdateSettlementTx(ctx, tx, tenantID, sibling.ID, ded); err != nil {
		return err
	}

	result.PairedSiblingID = sibling.ID
	result.BalanceDelta = result.BalanceDelta.Add(delta)
	return nil
}
