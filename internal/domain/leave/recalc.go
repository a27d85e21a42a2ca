package leave

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"
)

type RecalcSummary struct {
	ApplicationsScanned int `json:"applicationsScanned"`
	ApplicationsUpdated int `json:"applicationsUpdated"`
	BalancesUpdated     int `json:"balancesUpdated"`
}

// RecalculateDeductions replays the deduction rules over every approved
// application in submission order and repairs drift between the stored
// settlements and what the rules produce today. Each application is
// settled in its own transaction, and a run over a clean ledger changes
// nothing, so the pass can be repeated safely.
func RecalculateDeductions(ctx context.Context, store RecalculationStore, tenantID string) (RecalcSummary, error) {
	var summary RecalcSummary

	apps, err := store.ListApprovedApplications(ctx, tenantID)
	if err != nil {
		return summary, err
	}

	touched := make(map[string]struct{})
	for _, candidate := range apps {
		summary.ApplicationsScanned++

		tx, err := store.BeginTx(ctx)
		if err != nil {
			return summary, err
		}

		app, err := store.ApplicationForUpdateTx(ctx, tx, tenantID, candidate.ID)
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				slog.Warn("leave recalculation rollback failed", "err", rbErr)
			}
			if errors.Is(err, ErrApplicationNotFound) {
				continue
			}
			return summary, err
		}
		if app.Status != StatusApproved {
			// Changed since the scan; the settlement engine owns it now.
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				slog.Warn("leave recalculation rollback failed", "err", rbErr)
			}
			continue
		}

		ded, err := EvaluateDeduction(ctx, txStore{store: store, tx: tx}, deductionInput(app, tenantID, StatusApproved))
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				slog.Warn("leave recalculation rollback failed", "err", rbErr)
			}
			return summary, err
		}
		if ded.matches(app) {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				slog.Warn("leave recalculation rollback failed", "err", rbErr)
			}
			continue
		}

		delta := ded.DeductedDays.Sub(app.DeductedDays)
		bal, err := lockOrCreateBalance(ctx, store, tx, tenantID, app.EmployeeID, app.StartDate.Year())
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				slog.Warn("leave recalculation rollback failed", "err", rbErr)
			}
			return summary, err
		}
		used := bal.UsedDays.Add(delta)
		if used.IsNegative() {
			slog.Warn("leave recalculation clamped balance at zero",
				"employeeId", app.EmployeeID,
				"year", bal.Year,
				"used", bal.UsedDays.String(),
				"delta", delta.String())
			used = decimal.Zero
		}
		if !used.Equal(bal.UsedDays) {
			if err := store.SetBalanceUsedTx(ctx, tx, tenantID, bal.ID, used); err != nil {
				if rbErr := tx.Rollback(ctx); rbErr != nil {
					slog.Warn("leave recalculation rollback failed", "err", rbErr)
				}
				return summary, err
			}
			touched[bal.ID] = struct{}{}
		}
		if err := store.UpdateSettlementTx(ctx, tx, tenantID, app.ID, ded); err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				slog.Warn("leave recalculation rollback failed", "err", rbErr)
			}
			return summary, err
		}

		if err := tx.Commit(ctx); err != nil {
			return summary, err
		}
		summary.ApplicationsUpdated++
	}

	summary.BalancesUpdated = len(touched)
	return summary, nil
}
