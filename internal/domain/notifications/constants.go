package notifications

const (
	TypeLeaveSubmitted     = "leave_submitted"
	TypeLeaveApproved      = "leave_approved"
	TypeLeaveRejected      = "leave_rejected"
	TypeLeaveWithdrawn     = "leave_withdrawn"
	TypeLeaveCancelled     = "leave_cancelled"
	TypeLeaveRepriced      = "leave_repriced"
	TypeBalanceAdjusted    = "leave_balance_adjusted"
	TypeStatementAvailable = "leave_statement_available"
)
