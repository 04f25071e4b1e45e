package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tartampluch/go-contactcal/internal/engine"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextOccurrence(t *testing.T) {
	ref := date(2025, time.June, 1).Add(10 * time.Hour)

	tests := []struct {
		name string
		d    engine.PartialDate
		want time.Time
	}{
		{"already passed wraps to next year", engine.PartialDate{Month: time.January, Day: 1}, date(2026, time.January, 1)},
		{"still ahead stays this year", engine.PartialDate{Month: time.December, Day: 31}, date(2025, time.December, 31)},
		{"today counts as upcoming", engine.PartialDate{Month: time.June, Day: 1}, date(2025, time.June, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.NextOccurrence(ref))
		})
	}
}

// TestNextOccurrence_LeapDay pins the documented leap-day display policy:
// Feb 29 falls on Feb 28 in non-leap years, never Mar 1.
func TestNextOccurrence_LeapDay(t *testing.T) {
	leapling := engine.PartialDate{Month: time.February, Day: 29, Year: 2000}

	// 2025 is not a leap year: Feb 28, not Mar 1.
	assert.Equal(t, date(2025, time.February, 28), leapling.NextOccurrence(date(2025, time.January, 15)))

	// 2024 is a leap year: the real Feb 29.
	assert.Equal(t, date(2024, time.February, 29), leapling.NextOccurrence(date(2024, time.January, 15)))

	// Century rule: 2100 is not a leap year despite being divisible by 4.
	assert.Equal(t, date(2100, time.February, 28), leapling.OccurrenceIn(2100, time.UTC))
	// 2000 was: divisible by 400.
	assert.Equal(t, date(2000, time.February, 29), leapling.OccurrenceIn(2000, time.UTC))
}

func TestOccurrencesBetween(t *testing.T) {
	d := engine.PartialDate{Month: time.March, Day: 15}

	t.Run("multi-year window yields one per year", func(t *testing.T) {
		occs := d.OccurrencesBetween(date(2024, time.January, 1), date(2026, time.June, 1))
		assert.Equal(t, []time.Time{
			date(2024, time.March, 15),
			date(2025, time.March, 15),
			date(2026, time.March, 15),
		}, occs)
	})

	t.Run("half-open end excludes the boundary", func(t *testing.T) {
		occs := d.OccurrencesBetween(date(2025, time.January, 1), date(2025, time.March, 15))
		assert.Empty(t, occs)
	})

	t.Run("start boundary is included", func(t *testing.T) {
		occs := d.OccurrencesBetween(date(2025, time.March, 15), date(2025, time.March, 16))
		assert.Equal(t, []time.Time{date(2025, time.March, 15)}, occs)
	})

	t.Run("empty window", func(t *testing.T) {
		assert.Empty(t, d.OccurrencesBetween(date(2025, time.June, 1), date(2025, time.June, 1)))
	})
}

func TestAnniversaryCount(t *testing.T) {
	d := engine.PartialDate{Month: time.March, Day: 15, Year: 1999}
	assert.Equal(t, 27, d.AnniversaryCount(date(2026, time.March, 15)))

	yearless := engine.PartialDate{Month: time.March, Day: 15}
	assert.Equal(t, 0, yearless.AnniversaryCount(date(2026, time.March, 15)))
}

func TestOrdinal(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{1, "1st"},
		{2, "2nd"},
		{3, "3rd"},
		{4, "4th"},
		{11, "11th"},
		{12, "12th"},
		{13, "13th"},
		{21, "21st"},
		{22, "22nd"},
		{23, "23rd"},
		{100, "100th"},
		{111, "111th"},
		{121, "121st"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, engine.Ordinal(tt.n))
		})
	}
}
