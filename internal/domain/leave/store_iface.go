package leave

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// SettlementStore is the transactional surface the settlement engine
// runs against. Every Tx method operates inside the transaction handed
// to it; row locks taken there hold until commit or rollback.
type SettlementStore interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	ApplicationForUpdateTx(ctx context.Context, tx pgx.Tx, tenantID, applicationID string) (LeaveApplication, error)
	NonOptionalHolidaysTx(ctx context.Context, tx pgx.Tx, tenantID string, from, to time.Time) (HolidaySet, error)
	ApprovedSingleDaySiblingTx(ctx context.Context, tx pgx.Tx, tenantID, employeeID string, onDate time.Time, excludeID string) (LeaveApplication, bool, error)
	BalanceForUpdateTx(ctx context.Context, tx pgx.Tx, tenantID, employeeID string, year int) (LeaveBalance, bool, error)
	CreateZeroBalanceTx(ctx context.Context, tx pgx.Tx, tenantID, employeeID string, year int) (LeaveBalance, error)
	SetBalanceUsedTx(ctx context.Context, tx pgx.Tx, tenantID, balanceID string, used decimal.Decimal) error
	SaveSettlementTx(ctx context.Context, tx pgx.Tx, tenantID, applicationID, status, actorUserID string, d Deduction) error
	UpdateSettlementTx(ctx context.Context, tx pgx.Tx, tenantID, applicationID string, d Deduction) error
	ClearSettlementTx(ctx context.Context, tx pgx.Tx, tenantID, applicationID, status, actorUserID string) error
	UpdateApplicationStatusTx(ctx context.Context, tx pgx.Tx, tenantID, applicationID, status, actorUserID string) error
}

// RecalculationStore adds the approved-application scan the bulk
// recalculation pass iterates over.
type RecalculationStore interface {
	SettlementStore
	ListApprovedApplications(ctx context.Context, tenantID string) ([]LeaveApplication, error)
}
