package leave

import "time"

const dateLayout = "2006-01-02"

// HolidaySet indexes holiday dates by calendar day so membership checks
// ignore the time-of-day and zone carried on scanned timestamps.
type HolidaySet map[string]struct{}

func NewHolidaySet(dates ...time.Time) HolidaySet {
	set := make(HolidaySet, len(dates))
	for _, d := range dates {
		set.Add(d)
	}
	return set
}

func (h HolidaySet) Add(d time.Time) {
	h[d.Format(dateLayout)] = struct{}{}
}

func (h HolidaySet) Contains(d time.Time) bool {
	if h == nil {
		return false
	}
	_, ok := h[d.Format(dateLayout)]
	return ok
}

func IsWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func IsFriday(d time.Time) bool {
	return d.Weekday() == time.Friday
}

func IsMonday(d time.Time) bool {
	return d.Weekday() == time.Monday
}

// CountWorkingDays counts days in [start, end] that are neither weekend
// days nor holidays. Both endpoints are inclusive.
func CountWorkingDays(start, end time.Time, holidays HolidaySet) (int, error) {
	if end.Before(start) {
		return 0, ErrEndBeforeStart
	}
	count := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if IsWeekend(d) || holidays.Contains(d) {
			continue
		}
		count++
	}
	return count, nil
}

func spanDays(start, end time.Time) int {
	return int(end.Sub(start).Hours()/24) + 1
}
