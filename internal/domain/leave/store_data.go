package leave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"hrms/internal/domain/auth"
)

func (s *Store) ListTypes(ctx context.Context, tenantID string) ([]LeaveType, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, name, code, default_days, is_paid, created_at
    FROM leave_types
    WHERE tenant_id = $1
    ORDER BY name
  `, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []LeaveType
	for rows.Next() {
		var t LeaveType
		if err := rows.Scan(&t.ID, &t.Name, &t.Code, &t.DefaultDays, &t.IsPaid, &t.CreatedAt); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

func (s *Store) CreateType(ctx context.Context, tenantID string, payload LeaveType) (string, error) {
	var id string
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO leave_types (tenant_id, name, code, default_days, is_paid)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING id
  `, tenantID, payload.Name, payload.Code, payload.DefaultDays, payload.IsPaid).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) TypeByID(ctx context.Context, tenantID, leaveTypeID string) (LeaveType, error) {
	var t LeaveType
	err := s.DB.QueryRow(ctx, `
    SELECT id, name, code, default_days, is_paid, created_at
    FROM leave_types
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, leaveTypeID).Scan(&t.ID, &t.Name, &t.Code, &t.DefaultDays, &t.IsPaid, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return LeaveType{}, ErrTypeNotFound
	}
	if err != nil {
		return LeaveType{}, err
	}
	return t, nil
}

func (s *Store) ListHolidays(ctx context.Context, tenantID string, year int) ([]Holiday, error) {
	query := `
    SELECT id, date, name, COALESCE(region, ''), is_optional, created_at
    FROM holidays
    WHERE tenant_id = $1
  `
	args := []any{tenantID}
	if year > 0 {
		query += " AND date >= $2 AND date < $3"
		args = append(args,
			time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
			time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC))
	}
	query += " ORDER BY date"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holidays []Holiday
	for rows.Next() {
		var h Holiday
		if err := rows.Scan(&h.ID, &h.Date, &h.Name, &h.Region, &h.IsOptional, &h.CreatedAt); err != nil {
			return nil, err
		}
		holidays = append(holidays, h)
	}
	return holidays, nil
}

func (s *Store) CreateHoliday(ctx context.Context, tenantID string, date time.Time, name, region string, optional bool) (string, error) {
	var id string
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO holidays (tenant_id, date, name, region, is_optional)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING id
  `, tenantID, date, name, region, optional).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) DeleteHoliday(ctx context.Context, tenantID, holidayID string) error {
	_, err := s.DB.Exec(ctx, "DELETE FROM holidays WHERE tenant_id = $1 AND id = $2", tenantID, holidayID)
	return err
}

// NonOptionalHolidays loads the holidays that block working days in
// [from, to]. Optional holidays never reduce a deduction.
func (s *Store) NonOptionalHolidays(ctx context.Context, tenantID string, from, to time.Time) (HolidaySet, error) {
	return s.nonOptionalHolidays(ctx, s.DB, tenantID, from, to)
}

func (s *Store) ApprovedSingleDaySibling(ctx context.Context, tenantID, employeeID string, onDate time.Time, excludeID string) (LeaveApplication, bool, error) {
	return s.approvedSingleDaySibling(ctx, s.DB, tenantID, employeeID, onDate, excludeID)
}

func (s *Store) CreateApplication(ctx context.Context, tenantID string, app LeaveApplication) (string, error) {
	var id string
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO leave_applications (tenant_id, employee_id, leave_type_id, start_date, end_date, half_day, reason, status)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    RETURNING id
  `, tenantID, app.EmployeeID, app.LeaveTypeID, app.StartDate, app.EndDate, app.HalfDay, app.Reason, StatusPending).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) GetApplication(ctx context.Context, tenantID, applicationID string) (LeaveApplication, error) {
	var app LeaveApplication
	err := s.DB.QueryRow(ctx, `
    SELECT id, employee_id, leave_type_id, start_date, end_date, half_day,
           COALESCE(reason, ''), status, deducted_days, is_sandwich, deduction_reason,
           applied_at, COALESCE(decided_by::text, ''), decided_at, created_at
    FROM leave_applications
    WHERE tenant_id = $1 AND id = $2
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

func (s *Store) HasOverlappingApplication(ctx context.Context, tenantID, employeeID string, start, end time.Time) (bool, error) {
	var count int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM leave_applications
    WHERE tenant_id = $1 AND employee_id = $2
      AND status IN ('pending', 'approved')
      AND start_date <= $4 AND end_date >= $3
  `, tenantID, employeeID, start, end).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

type ApplicationListResult struct {
	Applications []LeaveApplication
	Total        int
}

func (s *Store) ListApplications(ctx context.Context, tenantID, roleName, employeeID, status string, limit, offset int) (ApplicationListResult, error) {
	query := `
    SELECT id, employee_id, leave_type_id, start_date, end_date, half_day,
           COALESCE(reason, ''), status, deducted_days, is_sandwich, deduction_reason,
           applied_at, COALESCE(decided_by::text, ''), decided_at, created_at
    FROM leave_applications
    WHERE tenant_id = $1
  `
	countQuery := `
    SELECT COUNT(1)
    FROM leave_applications
    WHERE tenant_id = $1
  `
	args := []any{tenantID}

	scope := ""
	if roleName == auth.RoleEmployee {
		scope = fmt.Sprintf(" AND employee_id = $%d", len(args)+1)
		args = append(args, employeeID)
	}
	if roleName == auth.RoleManager {
		scope = fmt.Sprintf(" AND (employee_id = $%d OR employee_id IN (SELECT id FROM employees WHERE tenant_id = $1 AND manager_id = $%d))", len(args)+1, len(args)+1)
		args = append(args, employeeID)
	}
	if status != "" {
		scope += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, status)
	}
	query += scope
	countQuery += scope

	var total int
	if err := s.DB.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		total = 0
	}

	query += " ORDER BY applied_at DESC, id DESC"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return ApplicationListResult{}, err
	}
	defer rows.Close()

	var apps []LeaveApplication
	for rows.Next() {
		var app LeaveApplication
		if err := rows.Scan(
			&app.ID, &app.EmployeeID, &app.LeaveTypeID, &app.StartDate, &app.EndDate, &app.HalfDay,
			&app.Reason, &app.Status, &app.DeductedDays, &app.IsSandwich, &app.DeductionReason,
			&app.AppliedAt, &app.DecidedBy, &app.DecidedAt, &app.CreatedAt,
		); err != nil {
			return ApplicationListResult{}, err
		}
		apps = append(apps, app)
	}
	return ApplicationListResult{Applications: apps, Total: total}, nil
}

// ListApprovedApplications returns approved applications in submission
// order, which is the order recalculation must replay them in.
func (s *Store) ListApprovedApplications(ctx context.Context, tenantID string) ([]LeaveApplication, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, employee_id, leave_type_id, start_date, end_date, half_day,
           COALESCE(reason, ''), status, deducted_days, is_sandwich, deduction_reason,
           applied_at, COALESCE(decided_by::text, ''), decided_at, created_at
    FROM leave_applications
    WHERE tenant_id = $1 AND status = $2
    ORDER BY applied_at, id
  `, tenantID, StatusApproved)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []LeaveApplication
	for rows.Next() {
		var app LeaveApplication
		if err := rows.Scan(
			&app.ID, &app.EmployeeID, &app.LeaveTypeID, &app.StartDate, &app.EndDate, &app.HalfDay,
			&app.Reason, &app.Status, &app.DeductedDays, &app.IsSandwich, &app.DeductionReason,
			&app.AppliedAt, &app.DecidedBy, &app.DecidedAt, &app.CreatedAt,
		); err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, nil
}

func (s *Store) ApprovedApplicationsForEmployeeYear(ctx context.Context, tenantID, employeeID string, year int) ([]LeaveApplication, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, employee_id, leave_type_id, start_date, end_date, half_day,
           COALESCE(reason, ''), status, deducted_days, is_sandwich, deduction_reason,
           applied_at, COALESCE(decided_by::text, ''), decided_at, created_at
    FROM leave_applications
    WHERE tenant_id = $1 AND employee_id = $2 AND status = $3
      AND start_date >= $4 AND start_date < $5
    ORDER BY start_date
  `, tenantID, employeeID, StatusApproved,
		time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []LeaveApplication
	for rows.Next() {
		var app LeaveApplication
		if err := rows.Scan(
			&app.ID, &app.EmployeeID, &app.LeaveTypeID, &app.StartDate, &app.EndDate, &app.HalfDay,
			&app.Reason, &app.Status, &app.DeductedDays, &app.IsSandwich, &app.DeductionReason,
			&app.AppliedAt, &app.DecidedBy, &app.DecidedAt, &app.CreatedAt,
		); err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, nil
}

func (s *Store) ListBalances(ctx context.Context, tenantID, employeeID string) ([]LeaveBalance, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, employee_id, year, allocated_days, used_days, updated_at
    FROM leave_balances
    WHERE tenant_id = $1 AND employee_id = $2
    ORDER BY year DESC
  `, tenantID, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []LeaveBalance
	for rows.Next() {
		var b LeaveBalance
		if err := rows.Scan(&b.ID, &b.EmployeeID, &b.Year, &b.AllocatedDays, &b.UsedDays, &b.UpdatedAt); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, nil
}

func (s *Store) GetBalance(ctx context.Context, tenantID, employeeID string, year int) (LeaveBalance, bool, error) {
	var b LeaveBalance
	err := s.DB.QueryRow(ctx, `
    SELECT id, employee_id, year, allocated_days, used_days, updated_at
    FROM leave_balances
    WHERE tenant_id = $1 AND employee_id = $2 AND year = $3
  `, tenantID, employeeID, year).Scan(&b.ID, &b.EmployeeID, &b.Year, &b.AllocatedDays, &b.UsedDays, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return LeaveBalance{}, false, nil
	}
	if err != nil {
		return LeaveBalance{}, false, err
	}
	return b, true, nil
}

func (s *Store) ListAdjustments(ctx context.Context, tenantID, employeeID string, limit, offset int) ([]BalanceAdjustment, int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM leave_balance_adjustments
    WHERE tenant_id = $1 AND employee_id = $2
  `, tenantID, employeeID).Scan(&total); err != nil {
		total = 0
	}

	rows, err := s.DB.Query(ctx, `
    SELECT id, employee_id, year, direction, amount, allocated_before, allocated_after,
           COALESCE(reason, ''), COALESCE(created_by::text, ''), created_at
    FROM leave_balance_adjustments
    WHERE tenant_id = $1 AND employee_id = $2
    ORDER BY created_at DESC, id DESC
    LIMIT $3 OFFSET $4
  `, tenantID, employeeID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var adjustments []BalanceAdjustment
	for rows.Next() {
		var a BalanceAdjustment
		if err := rows.Scan(&a.ID, &a.EmployeeID, &a.Year, &a.Direction, &a.Amount, &a.AllocatedBefore, &a.AllocatedAfter, &a.Reason, &a.CreatedBy, &a.CreatedAt); err != nil {
			return nil, 0, err
		}
		adjustments = append(adjustments, a)
	}
	return adjustments, total, nil
}

func (s *Store) EmployeeStartDate(ctx context.Context, tenantID, employeeID string) (*time.Time, error) {
	var start *time.Time
	err := s.DB.QueryRow(ctx, `
    SELECT start_date
    FROM employees
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, employeeID).Scan(&start)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEmployeeNotFound
	}
	if err != nil {
		return nil, err
	}
	return start, nil
}

func (s *Store) ManagerUserIDForEmployee(ctx context.Context, tenantID, employeeID string) (string, error) {
	var userID string
	err := s.DB.QueryRow(ctx, `
    SELECT COALESCE(m.user_id::text, '')
    FROM employees e
    JOIN employees m ON m.id = e.manager_id
    WHERE e.tenant_id = $1 AND e.id = $2
  `, tenantID, employeeID).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *Store) EmployeeUserID(ctx context.Context, tenantID, employeeID string) (string, error) {
	var userID string
	err := s.DB.QueryRow(ctx, `
    SELECT COALESCE(user_id::text, '')
    FROM employees
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, employeeID).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}

type CalendarExportRow struct {
	ID           string
	EmployeeName string
	LeaveType    string
	StartDate    time.Time
	EndDate      time.Time
	Status       string
	DeductedDays string
	IsSandwich   bool
}

func (s *Store) CalendarExportRows(ctx context.Context, tenantID string, statuses []string, employeeID string) ([]CalendarExportRow, error) {
	query := `
    SELECT a.id, e.first_name || ' ' || e.last_name, t.name, a.start_date, a.end_date, a.status, a.deducted_days::text, a.is_sandwich
    FROM leave_applications a
    JOIN employees e ON a.employee_id = e.id
    JOIN leave_types t ON a.leave_type_id = t.id
    WHERE a.tenant_id = $1 AND a.status = ANY($2)
  `
	args := []any{tenantID, statuses}
	if employeeID != "" {
		query += " AND a.employee_id = $3"
		args = append(args, employeeID)
	}
	query += " ORDER BY a.start_date"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CalendarExportRow
	for rows.Next() {
		var row CalendarExportRow
		if err := rows.Scan(&row.ID, &row.EmployeeName, &row.LeaveType, &row.StartDate, &row.EndDate, &row.Status, &row.DeductedDays, &row.IsSandwich); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}
