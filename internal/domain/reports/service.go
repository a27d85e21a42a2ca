package reports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Service struct {
	Store *Store
}

func NewService(store *Store) *Service {
	return &Service{Store: store}
}

func (s *Service) EmployeeIDByUserID(ctx context.Context, tenantID, userID string) (string, error) {
	return s.Store.EmployeeIDByUserID(ctx, tenantID, userID)
}

func (s *Service) RemainingDays(ctx context.Context, tenantID, employeeID string, year int) (decimal.Decimal, error) {
	return s.Store.RemainingDays(ctx, tenantID, employeeID, year)
}

func (s *Service) UsedDays(ctx context.Context, tenantID, employeeID string, year int) (decimal.Decimal, error) {
	return s.Store.UsedDays(ctx, tenantID, employeeID, year)
}

func (s *Service) PendingCount(ctx context.Context, tenantID, employeeID string) (int, error) {
	return s.Store.PendingCount(ctx, tenantID, employeeID)
}

func (s *Service) NextApprovedLeave(ctx context.Context, tenantID, employeeID string) (*time.Time, error) {
	return s.Store.NextApprovedLeave(ctx, tenantID, employeeID)
}

func (s *Service) TeamPendingCount(ctx context.Context, tenantID, managerEmployeeID string) (int, error) {
	return s.Store.TeamPendingCount(ctx, tenantID, managerEmployeeID)
}

func (s *Service) TeamOnLeaveToday(ctx context.Context, tenantID, managerEmployeeID string) (int, error) {
	return s.Store.TeamOnLeaveToday(ctx, tenantID, managerEmployeeID)
}

func (s *Service) TeamSandwichCount(ctx context.Context, tenantID, managerEmployeeID string, year int) (int, error) {
	return s.Store.TeamSandwichCount(ctx, tenantID, managerEmployeeID, year)
}

func (s *Service) OnLeaveToday(ctx context.Context, tenantID string) (int, error) {
	return s.Store.OnLeaveToday(ctx, tenantID)
}

func (s *Service) AllocationTotals(ctx context.Context, tenantID string, year int) (decimal.Decimal, decimal.Decimal, error) {
	return s.Store.AllocationTotals(ctx, tenantID, year)
}

func (s *Service) OverdrawnCount(ctx context.Context, tenantID string, year int) (int, error) {
	return s.Store.OverdrawnCount(ctx, tenantID, year)
}

func (s *Service) SandwichCount(ctx context.Context, tenantID string, year int) (int, error) {
	return s.Store.SandwichCount(ctx, tenantID, year)
}

func (s *Service) HolidayCount(ctx context.Context, tenantID string, year int) (int, error) {
	return s.Store.HolidayCount(ctx, tenantID, year)
}

func (s *Service) JobRuns(ctx context.Context, tenantID string, filter JobRunFilter, limit, offset int) ([]map[string]any, error) {
	return s.Store.ListJobRuns(ctx, tenantID, filter, limit, offset)
}

func (s *Service) CountJobRuns(ctx context.Context, tenantID string, filter JobRunFilter) (int, error) {
	return s.Store.CountJobRuns(ctx, tenantID, filter)
}

func (s *Service) JobRunByID(ctx context.Context, tenantID, runID string) (map[string]any, error) {
	return s.Store.JobRunByID(ctx, tenantID, runID)
}

func (s *Service) LastJobRun(ctx context.Context, tenantID, jobType string) (map[string]any, error) {
	return s.Store.LastJobRun(ctx, tenantID, jobType)
}
