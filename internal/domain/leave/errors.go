package leave

import "errors"

var (
	ErrEndBeforeStart      = errors.New("end date before start date")
	ErrHalfDayRange        = errors.New("half-day leave must cover a single date")
	ErrBeforeJoinDate      = errors.New("leave starts before employee join date")
	ErrOverlappingLeave    = errors.New("overlapping leave application exists")
	ErrApplicationNotFound = errors.New("leave application not found")
	ErrEmployeeNotFound    = errors.New("employee not found")
	ErrBalanceNotFound     = errors.New("leave balance not found")
	ErrTypeNotFound        = errors.New("leave type not found")
	ErrInvalidAmount       = errors.New("adjustment amount must be positive")
	ErrUnknownDirection    = errors.New("adjustment direction must be add or subtract")
	ErrNegativeAllocation  = errors.New("adjustment would make allocation negative")
	ErrUnknownStatus       = errors.New("unknown leave status")
	ErrStatusConflict      = errors.New("application status changed concurrently")
	ErrInvalidState        = errors.New("invalid status transition")
	ErrSelfApproval        = errors.New("cannot decide own leave application")
	ErrForbidden           = errors.New("forbidden")
)
