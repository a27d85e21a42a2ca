package leave

const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusWithdrawn = "withdrawn"
	StatusCancelled = "cancelled"
)

const (
	DirectionAdd      = "add"
	DirectionSubtract = "subtract"
)

// Deduction reasons recorded on approved applications. They name the rule
// that produced the charge so operators can read a ledger row without
// replaying the calendar.
const (
	ReasonFridayToMonday   = "sandwich_friday_to_monday"
	ReasonFridayWeekend    = "sandwich_friday_weekend"
	ReasonWeekendMonday    = "sandwich_weekend_monday"
	ReasonPairedSingleDay  = "sandwich_paired_single_day"
	ReasonSingleDay        = "single_day_approved"
	ReasonUnapprovedSingle = "sandwich_single_day_unapproved"
	ReasonWorkingDays      = "standard_working_days"
)

func KnownStatus(status string) bool {
	switch status {
	case StatusPending, StatusApproved, StatusRejected, StatusWithdrawn, StatusCancelled:
		return true
	}
	return false
}
