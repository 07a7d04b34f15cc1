package core

// The recurrence calculator. All functions are pure and idempotent: the same
// inputs always produce the same output.
//
// Clamp policy: adding months to a day that does not exist in the target month
// clamps to the last day of that month, and later steps advance from the
// clamped date. The original day-of-month is not restored, so a monthly income
// due 2024-01-31 advances to 2024-02-29 and then to 2024-03-29.

import "time"

// months returns the calendar-month step for a frequency, or 0 for none.
func (f Frequency) months() int {
	switch f {
	case FrequencyMonthly:
		return 1
	case FrequencyQuarterly:
		return 3
	case FrequencySemiannual:
		return 6
	case FrequencyAnnual:
		return 12
	}
	return 0
}

// addMonthsClamped adds n calendar months, clamping the day to the length of
// the target month. time.AddDate is not used because it normalizes overflow
// (Jan 31 + 1 month = Mar 2) instead of clamping.
func addMonthsClamped(d Date, n int) Date {
	y, m, day := d.Date()
	firstOfTarget := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, d.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return Date{Time: time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, 0, 0, 0, 0, d.Location())}
}

// NextOccurrence returns the occurrence that follows d for the given
// frequency, or the zero Date if the frequency is none.
func NextOccurrence(d Date, f Frequency) Date {
	n := f.months()
	if n == 0 {
		return Date{}
	}
	return addMonthsClamped(d, n)
}

// NextDueAfter returns the first occurrence of an income strictly after today,
// walking forward from its due date. For frequency none it returns the due
// date itself if still in the future, otherwise the zero Date.
func NextDueAfter(due Date, f Frequency, today Date) Date {
	if !f.Recurring() {
		if due.After(today.Time) {
			return due
		}
		return Date{}
	}
	next := due
	for !next.After(today.Time) {
		next = NextOccurrence(next, f)
	}
	return next
}

// Occurrences lists every occurrence of an income from its due date up to and
// including the given end date, in ascending order.
func Occurrences(due Date, f Frequency, until Date) []Date {
	var out []Date
	if !f.Recurring() {
		if !due.After(until.Time) {
			out = append(out, due)
		}
		return out
	}
	for next := due; !next.After(until.Time); next = NextOccurrence(next, f) {
		out = append(out, next)
	}
	return out
}

// OccursOn reports whether an income has an occurrence exactly on the given
// day.
func OccursOn(due Date, f Frequency, day Date) bool {
	if day.Before(due.Time) {
		return false
	}
	if !f.Recurring() {
		return due.Equal(day.Time)
	}
	for next := due; !next.After(day.Time); next = NextOccurrence(next, f) {
		if next.Equal(day.Time) {
			return true
		}
	}
	return false
}
