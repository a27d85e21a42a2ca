package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// memStore implements RecalculationStore over plain maps with
// snapshot-based transactions: BeginTx snapshots the state, Commit
// keeps the live copy, Rollback restores the snapshot. Writes made
// inside a transaction are visible to later reads in the same
// transaction, which is what the settlement engine relies on.
type memStore struct {
	apps     map[string]LeaveApplication
	balances map[string]LeaveBalance
	holidays []Holiday
	order    []string
	nextID   int
	saveErr  error
}

var _ RecalculationStore = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		apps:     make(map[string]LeaveApplication),
		balances: make(map[string]LeaveBalance),
	}
}

func balanceKey(employeeID string, year int) string {
	return fmt.Sprintf("%s|%d", employeeID, year)
}

func (s *memStore) addApplication(employeeID string, start, end time.Time, halfDay bool, status string) string {
	s.nextID++
	id := fmt.Sprintf("app-%d", s.nextID)
	s.apps[id] = LeaveApplication{
		ID:         id,
		EmployeeID: employeeID,
		StartDate:  start,
		EndDate:    end,
		HalfDay:    halfDay,
		Status:     status,
		AppliedAt:  time.Now(),
	}
	s.order = append(s.order, id)
	return id
}

func (s *memStore) addBalance(employeeID string, year int, allocated float64) {
	s.nextID++
	s.balances[balanceKey(employeeID, year)] = LeaveBalance{
		ID:            fmt.Sprintf("bal-%d", s.nextID),
		EmployeeID:    employeeID,
		Year:          year,
		AllocatedDays: decimal.NewFromFloat(allocated),
	}
}

func (s *memStore) addHoliday(d time.Time, optional bool) {
	s.holidays = append(s.holidays, Holiday{Date: d, IsOptional: optional})
}

func (s *memStore) app(id string) LeaveApplication {
	return s.apps[id]
}

func (s *memStore) balance(employeeID string, year int) LeaveBalance {
	return s.balances[balanceKey(employeeID, year)]
}

type memTx struct {
	pgx.Tx
	store *memStore
	apps  map[string]LeaveApplication
	bals  map[string]LeaveBalance
	done  bool
}

func (t *memTx) Commit(ctx context.Context) error {
	t.done = true
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.store.apps = t.apps
	t.store.balances = t.bals
	t.done = true
	return nil
}

func copyApps(src map[string]LeaveApplication) map[string]LeaveApplication {
	dst := make(map[string]LeaveApplication, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func copyBalances(src map[string]LeaveBalance) map[string]LeaveBalance {
	dst := make(map[string]LeaveBalance, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (s *memStore) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return &memTx{store: s, apps: copyApps(s.apps), bals: copyBalances(s.balances)}, nil
}

func (s *memStore) ApplicationForUpdateTx(ctx context.Context, tx pgx.Tx, tenantID, applicationID string) (LeaveApplication, error) {
	app, ok := s.apps[applicationID]
	if !ok {
		return LeaveApplication{}, ErrApplicationNotFound
	}
	return app, nil
}

func (s *memStore) NonOptionalHolidaysTx(ctx context.Context, tx pgx.Tx, tenantID string, from, to time.Time) (HolidaySet, error) {
	set := NewHolidaySet()
	for _, h := range s.holidays {
		if h.IsOptional || h.Date.Before(from) || h.Date.After(to) {
			continue
		}
		set.Add(h.Date)
	}
	return set, nil
}

func (s *memStore) ApprovedSingleDaySiblingTx(ctx context.Context, tx pgx.Tx, tenantID, employeeID string, onDate time.Time, excludeID string) (LeaveApplication, bool, error) {
	for _, id := range s.order {
		app, ok := s.apps[id]
		if !ok || app.ID == excludeID || app.EmployeeID != employeeID {
			continue
		}
		if app.Status != StatusApproved || !app.StartDate.Equal(app.EndDate) || !app.StartDate.Equal(onDate) {
			continue
		}
		return app, true, nil
	}
	return LeaveApplication{}, false, nil
}

func (s *memStore) BalanceForUpdateTx(ctx context.Context, tx pgx.Tx, tenantID, employeeID string, year int) (LeaveBalance, bool, error) {
	bal, ok := s.balances[balanceKey(employeeID, year)]
	return bal, ok, nil
}

func (s *memStore) CreateZeroBalanceTx(ctx context.Context, tx pgx.Tx, tenantID, employeeID string, year int) (LeaveBalance, error) {
	s.nextID++
	bal := LeaveBalance{
		ID:         fmt.Sprintf("bal-%d", s.nextID),
		EmployeeID: employeeID,
		Year:       year,
	}
	s.balances[balanceKey(employeeID, year)] = bal
	return bal, nil
}

func (s *memStore) SetBalanceUsedTx(ctx context.Context, tx pgx.Tx, tenantID, balanceID string, used decimal.Decimal) error {
	for key, bal := range s.balances {
		if bal.ID == balanceID {
			bal.UsedDays = used
			bal.UpdatedAt = time.Now()
			s.balances[key] = bal
			return nil
		}
	}
	return ErrBalanceNotFound
}

func (s *memStore) SaveSettlementTx(ctx context.Context, tx pgx.Tx, tenantID, applicationID, status, actorUserID string, d Deduction) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	app, ok := s.apps[applicationID]
	if !ok {
		return ErrApplicationNotFound
	}
	now := time.Now()
	app.Status = status
	app.DeductedDays = d.DeductedDays
	app.IsSandwich = d.IsSandwich
	app.DeductionReason = d.Reason
	app.DecidedBy = actorUserID
	app.DecidedAt = &now
	s.apps[applicationID] = app
	return nil
}

func (s *memStore) UpdateSettlementTx(ctx context.Context, tx pgx.Tx, tenantID, applicationID string, d Deduction) error {
	app, ok := s.apps[applicationID]
	if !ok {
		return ErrApplicationNotFound
	}
	app.DeductedDays = d.DeductedDays
	app.IsSandwich = d.IsSandwich
	app.DeductionReason = d.Reason
	s.apps[applicationID] = app
	return nil
}

func (s *memStore) ClearSettlementTx(ctx context.Context, tx pgx.Tx, tenantID, applicationID, status, actorUserID string) error {
	app, ok := s.apps[applicationID]
	if !ok {
		return ErrApplicationNotFound
	}
	now := time.Now()
	app.Status = status
	app.DeductedDays = decimal.Zero
	app.IsSandwich = false
	app.DeductionReason = ""
	app.DecidedBy = actorUserID
	app.DecidedAt = &now
	s.apps[applicationID] = app
	return nil
}

func (s *memStore) UpdateApplicationStatusTx(ctx context.Context, tx pgx.Tx, tenantID, applicationID, status, actorUserID string) error {
	app, ok := s.apps[applicationID]
	if !ok {
		return ErrApplicationNotFound
	}
	now := time.Now()
	app.Status = status
	app.DecidedBy = actorUserID
	app.DecidedAt = &now
	s.apps[applicationID] = app
	return nil
}

func (s *memStore) ListApprovedApplications(ctx context.Context, tenantID string) ([]LeaveApplication, error) {
	var out []LeaveApplication
	for _, id := range s.order {
		if app, ok := s.apps[id]; ok && app.Status == StatusApproved {
			out = append(out, app)
		}
	}
	return out, nil
}
