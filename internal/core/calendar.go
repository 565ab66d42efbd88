// Package core holds the bookkeeping domain model and the pure calendar
// arithmetic the schedule engine is built on.
//
// This file contains the Gregorian date utilities: month length, day
// clamping, and period stepping. Everything here is pure and deterministic;
// reconciliation idempotence depends on identical output for identical input.
package core

import "time"

// DaysInMonth returns the number of days in the given month, including
// leap-year handling for February.
func DaysInMonth(year int, month int) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampDay limits a nominal day of month to what the month actually has,
// e.g. ClampDay(2024, 2, 31) == 29.
func ClampDay(year, month, day int) int {
	if last := DaysInMonth(year, month); day > last {
		return last
	}
	return day
}

// NthOccurrence computes the date of the nth occurrence (n >= 0) of a
// recurrence anchored at start.
//
// Weekly steps in exact 7-day increments from start. Monthly lands on dueDay
// in the nth month after start, clamped to the month length; dueDay <= 0
// falls back to start's own day. Annual keeps start's month and day in year
// start+n, clamped for Feb 29 anchors.
func NthOccurrence(start Date, p Periodicity, dueDay int, n int) Date {
	switch p {
	case Weekly:
		return start.AddDays(7 * n)
	case Monthly:
		if dueDay <= 0 {
			dueDay = start.Day()
		}
		// Month arithmetic on a flat index avoids time.AddDate's day
		// normalization (Jan 31 + 1 month must not become Mar 2).
		idx := start.Year()*12 + start.Month() - 1 + n
		year, month := idx/12, idx%12+1
		return NewDate(year, month, ClampDay(year, month, dueDay))
	case Annual:
		year := start.Year() + n
		return NewDate(year, start.Month(), ClampDay(year, start.Month(), start.Day()))
	default:
		return start
	}
}
