package reports

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hrms/internal/domain/leave"
	"hrms/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) EmployeeIDByUserID(ctx context.Context, tenantID, userID string) (string, error) {
	var employeeID string
	err := s.DB.QueryRow(ctx, "SELECT id FROM employees WHERE tenant_id = $1 AND user_id = $2", tenantID, userID).Scan(&employeeID)
	if err != nil {
		return "", err
	}
	return employeeID, nil
}

func (s *Store) RemainingDays(ctx context.Context, tenantID, employeeID string, year int) (decimal.Decimal, error) {
	var remaining decimal.Decimal
	if err := s.DB.QueryRow(ctx, `
    SELECT COALESCE(SUM(allocated_days - used_days), 0)
    FROM leave_balances
    WHERE tenant_id = $1 AND employee_id = $2 AND year = $3
  `, tenantID, employeeID, year).Scan(&remaining); err != nil {
		return decimal.Zero, err
	}
	return remaining, nil
}

func (s *Store) UsedDays(ctx context.Context, tenantID, employeeID string, year int) (decimal.Decimal, error) {
	var used decimal.Decimal
	if err := s.DB.QueryRow(ctx, `
    SELECT COALESCE(SUM(used_days), 0)
    FROM leave_balances
    WHERE tenant_id = $1 AND employee_id = $2 AND year = $3
  `, tenantID, employeeID, year).Scan(&used); err != nil {
		return decimal.Zero, err
	}
	return used, nil
}

func (s *Store) PendingCount(ctx context.Context, tenantID, employeeID string) (int, error) {
	query := "SELECT COUNT(1) FROM leave_applications WHERE tenant_id = $1 AND status = $2"
	args := []any{tenantID, leave.StatusPending}
	if employeeID != "" {
		query += " AND employee_id = $3"
		args = append(args, employeeID)
	}
	var pending int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&pending); err != nil {
		return 0, err
	}
	return pending, nil
}

func (s *Store) NextApprovedLeave(ctx context.Context, tenantID, employeeID string) (*time.Time, error) {
	var start time.Time
	err := s.DB.QueryRow(ctx, `
    SELECT start_date
    FROM leave_applications
    WHERE tenant_id = $1 AND employee_id = $2 AND status = $3 AND start_date >= CURRENT_DATE
    ORDER BY start_date
    LIMIT 1
  `, tenantID, employeeID, leave.StatusApproved).Scan(&start)
	if err != nil {
		return nil, err
	}
	return &start, nil
}

func (s *Store) TeamPendingCount(ctx context.Context, tenantID, managerEmployeeID string) (int, error) {
	var pending int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM leave_applications a
    JOIN employees e ON e.id = a.employee_id AND e.tenant_id = a.tenant_id
    WHERE a.tenant_id = $1 AND e.manager_id = $2 AND a.status = $3
  `, tenantID, managerEmployeeID, leave.StatusPending).Scan(&pending); err != nil {
		return 0, err
	}
	return pending, nil
}

func (s *Store) TeamOnLeaveToday(ctx context.Context, tenantID, managerEmployeeID string) (int, error) {
	var onLeave int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(DISTINCT a.employee_id)
    FROM leave_applications a
    JOIN employees e ON e.id = a.employee_id AND e.tenant_id = a.tenant_id
    WHERE a.tenant_id = $1 AND e.manager_id = $2 AND a.status = $3
      AND a.start_date <= CURRENT_DATE AND a.end_date >= CURRENT_DATE
  `, tenantID, managerEmployeeID, leave.StatusApproved).Scan(&onLeave); err != nil {
		return 0, err
	}
	return onLeave, nil
}

func (s *Store) TeamSandwichCount(ctx context.Context, tenantID, managerEmployeeID string, year int) (int, error) {
	var count int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM leave_applications a
    JOIN employees e ON e.id = a.employee_id AND e.tenant_id = a.tenant_id
    WHERE a.tenant_id = $1 AND e.manager_id = $2 AND a.status = $3
      AND a.is_sandwich AND EXTRACT(YEAR FROM a.start_date) = $4
  `, tenantID, managerEmployeeID, leave.StatusApproved, year).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) OnLeaveToday(ctx context.Context, tenantID string) (int, error) {
	var onLeave int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(DISTINCT employee_id)
    FROM leave_applications
    WHERE tenant_id = $1 AND status = $2
      AND start_date <= CURRENT_DATE AND end_date >= CURRENT_DATE
  `, tenantID, leave.StatusApproved).Scan(&onLeave); err != nil {
		return 0, err
	}
	return onLeave, nil
}

func (s *Store) AllocationTotals(ctx context.Context, tenantID string, year int) (decimal.Decimal, decimal.Decimal, error) {
	var allocated, used decimal.Decimal
	if err := s.DB.QueryRow(ctx, `
    SELECT COALESCE(SUM(allocated_days), 0), COALESCE(SUM(used_days), 0)
    FROM leave_balances
    WHERE tenant_id = $1 AND year = $2
  `, tenantID, year).Scan(&allocated, &used); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return allocated, used, nil
}

func (s *Store) OverdrawnCount(ctx context.Context, tenantID string, year int) (int, error) {
	var overdrawn int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM leave_balances
    WHERE tenant_id = $1 AND year = $2 AND used_days > allocated_days
  `, tenantID, year).Scan(&overdrawn); err != nil {
		return 0, err
	}
	return overdrawn, nil
}

func (s *Store) SandwichCount(ctx context.Context, tenantID string, year int) (int, error) {
	var count int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM leave_applications
    WHERE tenant_id = $1 AND status = $2 AND is_sandwich
      AND EXTRACT(YEAR FROM start_date) = $3
  `, tenantID, leave.StatusApproved, year).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) HolidayCount(ctx context.Context, tenantID string, year int) (int, error) {
	var count int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM holidays
    WHERE tenant_id = $1 AND EXTRACT(YEAR FROM date) = $2
  `, tenantID, year).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

type JobRunFilter struct {
	JobType     string
	Status      string
	StartedFrom *time.Time
	StartedTo   *time.Time
}

func (s *Store) ListJobRuns(ctx context.Context, tenantID string, filter JobRunFilter, limit, offset int) ([]map[string]any, error) {
	query, args := buildJobRunsBaseQuery(tenantID, filter)
	query += " ORDER BY started_at DESC LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []map[string]any
	for rows.Next() {
		var id, jobTypeVal, status string
		var detailsRaw []byte
		var startedAt time.Time
		var completedAt *time.Time
		if err := rows.Scan(&id, &jobTypeVal, &status, &detailsRaw, &startedAt, &completedAt); err != nil {
			return nil, err
		}
		details := decodeDetails(detailsRaw)
		runs = append(runs, map[string]any{
			"id":          id,
			"jobType":     jobTypeVal,
			"status":      status,
			"details":     details,
			"startedAt":   startedAt,
			"completedAt": completedAt,
		})
	}
	return runs, nil
}

func (s *Store) CountJobRuns(ctx context.Context, tenantID string, filter JobRunFilter) (int, error) {
	query, args := buildJobRunsBaseQuery(tenantID, filter)
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM ("+query+") job_runs", args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) JobRunByID(ctx context.Context, tenantID, runID string) (map[string]any, error) {
	var (
		id, jobTypeVal, status string
		detailsRaw             []byte
		startedAt              time.Time
		completedAt            *time.Time
	)
	if err := s.DB.QueryRow(ctx, `
    SELECT id, job_type, status, COALESCE(details_json, '{}'::jsonb), started_at, completed_at
    FROM job_runs
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, runID).Scan(&id, &jobTypeVal, &status, &detailsRaw, &startedAt, &completedAt); err != nil {
		return nil, err
	}

	return map[string]any{
		"id":          id,
		"jobType":     jobTypeVal,
		"status":      status,
		"details":     decodeDetails(detailsRaw),
		"startedAt":   startedAt,
		"completedAt": completedAt,
	}, nil
}

func (s *Store) LastJobRun(ctx context.Context, tenantID, jobType string) (map[string]any, error) {
	filter := JobRunFilter{JobType: jobType}
	runs, err := s.ListJobRuns(ctx, tenantID, filter, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[0], nil
}

func buildJobRunsBaseQuery(tenantID string, filter JobRunFilter) (string, []any) {
	query := `
    SELECT id, job_type, status, COALESCE(details_json, '{}'::jsonb), started_at, completed_at
    FROM job_runs
    WHERE tenant_id = $1
  `
	args := []any{tenantID}

	if value := strings.TrimSpace(filter.JobType); value != "" {
		query += " AND job_type = $" + strconv.Itoa(len(args)+1)
		args = append(args, value)
	}
	if value := strings.TrimSpace(filter.Status); value != "" {
		query += " AND status = $" + strconv.Itoa(len(args)+1)
		args = append(args, value)
	}
	if filter.StartedFrom != nil && !filter.StartedFrom.IsZero() {
		query += " AND started_at >= $" + strconv.Itoa(len(args)+1)
		args = append(args, *filter.StartedFrom)
	}
	if filter.StartedTo != nil && !filter.StartedTo.IsZero() {
		query += " AND started_at <= $" + strconv.Itoa(len(args)+1)
		args = append(args, *filter.StartedTo)
	}

	return query, args
}

func decodeDetails(raw []byte) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	details := map[string]any{}
	if err := json.Unmarshal(raw, &details); err != nil {
		return map[string]any{
			"raw": string(raw),
		}
	}
	return details
}
