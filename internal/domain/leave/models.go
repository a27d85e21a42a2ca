package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

type LeaveType struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Code        string          `json:"code"`
	DefaultDays decimal.Decimal `json:"defaultDays"`
	IsPaid      bool            `json:"isPaid"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type Holiday struct {
	ID         string    `json:"id"`
	Date       time.Time `json:"date"`
	Name       string    `json:"name"`
	Region     string    `json:"region,omitempty"`
	IsOptional bool      `json:"isOptional"`
	CreatedAt  time.Time `json:"createdAt"`
}

type LeaveApplication struct {
	ID              string          `json:"id"`
	EmployeeID      string          `json:"employeeId"`
	LeaveTypeID     string          `json:"leaveTypeId"`
	StartDate       time.Time       `json:"startDate"`
	EndDate         time.Time       `json:"endDate"`
	HalfDay         bool            `json:"halfDay"`
	Reason          string          `json:"reason,omitempty"`
	Status          string          `json:"status"`
	DeductedDays    decimal.Decimal `json:"deductedDays"`
	IsSandwich      bool            `json:"isSandwich"`
	DeductionReason string          `json:"deductionReason,omitempty"`
	AppliedAt       time.Time       `json:"appliedAt"`
	DecidedBy       string          `json:"decidedBy,omitempty"`
	DecidedAt       *time.Time      `json:"decidedAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

type LeaveBalance struct {
	ID            string          `json:"id"`
	EmployeeID    string          `json:"employeeId"`
	Year          int             `json:"year"`
	AllocatedDays decimal.Decimal `json:"allocatedDays"`
	UsedDays      decimal.Decimal `json:"usedDays"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func (b LeaveBalance) RemainingDays() decimal.Decimal {
	return b.AllocatedDays.Sub(b.UsedDays)
}

type BalanceAdjustment struct {
	ID              string          `json:"id"`
	EmployeeID      string          `json:"employeeId"`
	Year            int             `json:"year"`
	Direction       string          `json:"direction"`
	Amount          decimal.Decimal `json:"amount"`
	AllocatedBefore decimal.Decimal `json:"allocatedBefore"`
	AllocatedAfter  decimal.Decimal `json:"allocatedAfter"`
	Reason          string          `json:"reason,omitempty"`
	CreatedBy       string          `json:"createdBy,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}
