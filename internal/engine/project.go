package engine

import (
	"strconv"
	"time"
)

// OccurrenceIn returns the concrete occurrence of the partial date in the
// given year, as a whole-day date in loc.
//
// Leap-day policy: Feb 29 projected into a non-leap year is displayed on
// Feb 28, not Mar 1. Go's time.Date would normalize to Mar 1, so the day is
// clamped explicitly.
func (d PartialDate) OccurrenceIn(year int, loc *time.Location) time.Time {
	day := d.Day
	if d.Month == time.February && day == 29 && !isLeapYear(year) {
		day = 28
	}
	return time.Date(year, d.Month, day, 0, 0, 0, 0, loc)
}

// NextOccurrence computes the next occurrence of (Month, Day) on or after the
// reference instant's date, wrapping to next year if this year's occurrence
// has already passed.
func (d PartialDate) NextOccurrence(ref time.Time) time.Time {
	loc := ref.Location()
	todayStart := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, loc)

	candidate := d.OccurrenceIn(ref.Year(), loc)
	if candidate.Before(todayStart) {
		candidate = d.OccurrenceIn(ref.Year()+1, loc)
	}
	return candidate
}

// OccurrencesBetween returns every occurrence intersecting [start, end),
// at most one per year.
func (d PartialDate) OccurrencesBetween(start, end time.Time) []time.Time {
	if !end.After(start) {
		return nil
	}
	var out []time.Time
	for year := start.Year(); year <= end.Year(); year++ {
		occ := d.OccurrenceIn(year, start.Location())
		if occ.Before(start) || !occ.Before(end) {
			continue
		}
		out = append(out, occ)
	}
	return out
}

// AnniversaryCount returns the integer count for an occurrence of a
// year-bearing date (the age, for a birthday). Zero when the year is unknown.
func (d PartialDate) AnniversaryCount(occurrence time.Time) int {
	if !d.YearKnown() {
		return 0
	}
	return occurrence.Year() - d.Year
}

// Ordinal converts an integer into its ordinal representation
// (1st, 2nd, 3rd, 4th, ...). 11 through 13 take "th", not st/nd/rd.
func Ordinal(n int) string {
	suffix := "th"
	if n%100 < 11 || n%100 > 13 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
