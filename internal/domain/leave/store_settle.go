package leave

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"hrms/internal/platform/querier"
)

func (s *Store) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return s.DB.Begin(ctx)
}

func (s *Store) ApplicationForUpdateTx(ctx context.Context, tx pgx.Tx, tenantID, applicationID string) (LeaveApplication, error) {
	var app LeaveApplication
	err := tx.QueryRow(ctx, `
    SELECT id, employee_id, leave_type_id, start_date, end_date, half_day,
           COALESCE(reason, ''), status, deducted_days, is_sandwich, deduction_reason,
           applied_at, COALESCE(decided_by::text, ''), decided_at, created_at
    FROM leave_applications
    WHERE tenant_id = $1 AND id = $2
    FOR UPDATE
  `, tenantID, applicationID).Scan(
		&app.ID, &app.EmployeeID, &app.LeaveTypeID, &app.StartDate, &app.EndDate, &app.HalfDay,
		&app.Reason, &app.Status, &app.DeductedDays, &app.IsSandwich, &app.DeductionReason,
		&app.AppliedAt, &app.DecidedBy, &app.DecidedAt, &app.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return LeaveApplication{}, ErrApplicationNotFound
	}
	if err != nil {
		return LeaveApplication{}, err
	}
	return app, nil
}

func (s *Store) NonOptionalHolidaysTx(ctx context.Context, tx pgx.Tx, tenantID string, from, to time.Time) (HolidaySet, error) {
	return s.nonOptionalHolidays(ctx, tx, tenantID, from, to)
}

func (s *Store) ApprovedSingleDaySiblingTx(ctx context.Context, tx pgx.Tx, tenantID, employeeID string, onDate time.Time, excludeID string) (LeaveApplication, bool, error) {
	return s.approvedSingleDaySibling(ctx, tx, tenantID, employeeID, onDate, excludeID)
}

func (s *Store) BalanceForUpdateTx(ctx context.Context, tx pgx.Tx, tenantID, employeeID string, year int) (LeaveBalance, bool, error) {
	var b LeaveBalance
	err := tx.QueryRow(ctx, `
    SELECT id, employee_id, year, allocated_days, used_days, updated_at
    FROM leave_balances
    WHERE tenant_id = $1 AND employee_id = $2 AND year = $3
    FOR UPDATE
  `, tenantID, employeeID, year).Scan(&b.ID, &b.EmployeeID, &b.Year, &b.AllocatedDays, &b.UsedDays, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return LeaveBalance{}, false, nil
	}
	if err != nil {
		return LeaveBalance{}, false, err
	}
	return b, true, nil
}

func (s *Store) CreateZeroBalanceTx(ctx context.Context, tx pgx.Tx, tenantID, employeeID string, year int) (LeaveBalance, error) {
	var b LeaveBalance
	err := tx.QueryRow(ctx, `
    INSERT INTO leave_balances (tenant_id, employee_id, year, allocated_days, used_days)
    VALUES ($1,$2,$3,0,0)
    RETURNING id, employee_id, year, allocated_days, used_days, updated_at
  `, tenantID, employeeID, year).Scan(&b.ID, &b.EmployeeID, &b.Year, &b.AllocatedDays, &b.UsedDays, &b.UpdatedAt)
	if err != nil {
		return LeaveBalance{}, err
	}
	return b, nil
}

func (s *Store) SetBalanceUsedTx(ctx context.Context, tx pgx.Tx, tenantID, balanceID string, used decimal.Decimal) error {
	_, err := tx.Exec(ctx, `
    UPDATE leave_balances
    SET used_days = $3, updated_at = now()
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, balanceID, used)
	return err
}

func (s *Store) SetBalanceAllocatedTx(ctx context.Context, tx pgx.Tx, tenantID, balanceID string, allocated decimal.Decimal) error {
	_, err := tx.Exec(ctx, `
    UPDATE leave_balances
    SET allocated_days = $3, updated_at = now()
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, balanceID, allocated)
	return err
}

func (s *Store) SaveSettlementTx(ctx context.Context, tx pgx.Tx, tenantID, applicationID, status, actorUserID string, d Deduction) error {
	_, err := tx.Exec(ctx, `
    UPDATE leave_applications
    SET status = $3, deducted_days = $4, is_sandwich = $5, deduction_reason = $6,
        decided_by = $7, decided_at = now()
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, applicationID, status, d.DeductedDays, d.IsSandwich, d.Reason, actorOrNil(actorUserID))
	return err
}

// UpdateSettlementTx rewrites the engine fields only. Pair corrections
// and recalculation go through here so they can never move an
// application between statuses.
func (s *Store) UpdateSettlementTx(ctx context.Context, tx pgx.Tx, tenantID, applicationID string, d Deduction) error {
	_, err := tx.Exec(ctx, `
    UPDATE leave_applications
    SET deducted_days = $3, is_sandwich = $4, deduction_reason = $5
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, applicationID, d.DeductedDays, d.IsSandwich, d.Reason)
	return err
}

func (s *Store) ClearSettlementTx(ctx context.Context, tx pgx.Tx, tenantID, applicationID, status, actorUserID string) error {
	_, err := tx.Exec(ctx, `
    UPDATE leave_applications
    SET status = $3, deducted_days = 0, is_sandwich = false, deduction_reason = '',
        decided_by = $4, decided_at = now()
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, applicationID, status, actorOrNil(actorUserID))
	return err
}

func (s *Store) UpdateApplicationStatusTx(ctx context.Context, tx pgx.Tx, tenantID, applicationID, status, actorUserID string) error {
	_, err := tx.Exec(ctx, `
    UPDATE leave_applications
    SET status = $3, decided_by = $4, decided_at = now()
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, applicationID, status, actorOrNil(actorUserID))
	return err
}

func (s *Store) InsertAdjustmentTx(ctx context.Context, tx pgx.Tx, tenantID string, adj BalanceAdjustment) (string, time.Time, error) {
	var id string
	var createdAt time.Time
	err := tx.QueryRow(ctx, `
    INSERT INTO leave_balance_adjustments (tenant_id, employee_id, year, direction, amount, allocated_before, allocated_after, reason, created_by)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    RETURNING id, created_at
  `, tenantID, adj.EmployeeID, adj.Year, adj.Direction, adj.Amount, adj.AllocatedBefore, adj.AllocatedAfter, adj.Reason, actorOrNil(adj.CreatedBy)).Scan(&id, &createdAt)
	if err != nil {
		return "", time.Time{}, err
	}
	return id, createdAt, nil
}

func (s *Store) nonOptionalHolidays(ctx context.Context, q querier.Querier, tenantID string, from, to time.Time) (HolidaySet, error) {
	rows, err := q.Query(ctx, `
    SELECT date
    FROM holidays
    WHERE tenant_id = $1 AND is_optional = false AND date BETWEEN $2 AND $3
  `, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := NewHolidaySet()
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		set.Add(d)
	}
	return set, nil
}

// The id exclusion compares as text so an empty exclude id never hits
// the uuid parser.
func (s *Store) approvedSingleDaySibling(ctx context.Context, q querier.Querier, tenantID, employeeID string, onDate time.Time, excludeID string) (LeaveApplication, bool, error) {
	var app LeaveApplication
	err := q.QueryRow(ctx, `
    SELECT id, employee_id, leave_type_id, start_date, end_date, half_day,
           COALESCE(reason, ''), status, deducted_days, is_sandwich, deduction_reason,
           applied_at, COALESCE(decided_by::text, ''), decided_at, created_at
    FROM leave_applications
    WHERE tenant_id = $1 AND employee_id = $2
      AND status = $3 AND start_date = end_date AND start_date = $4
      AND id::text <> $5
    ORDER BY applied_at, id
    LIMIT 1
  `, tenantID, employeeID, StatusApproved, onDate, excludeID).Scan(
		&app.ID, &app.EmployeeID, &app.LeaveTypeID, &app.StartDate, &app.EndDate, &app.HalfDay,
		&app.Reason, &app.Status, &app.DeductedDays, &app.IsSandwich, &app.DeductionReason,
		&app.AppliedAt, &app.DecidedBy, &app.DecidedAt, &app.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return LeaveApplication{}, false, nil
	}
	if err != nil {
		return LeaveApplication{}, false, err
	}
	return app, true, nil
}

func actorOrNil(userID string) any {
	if userID == "" {
		return nil
	}
	return userID
}
