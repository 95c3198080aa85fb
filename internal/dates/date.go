// Package dates models calendar dates as reported by biography sources.
// Upstream data is frequently partial (a year with no month, a month with no
// day), so every Date carries an explicit precision instead of smuggling
// placeholder values through time.Time.
package dates

import (
	"fmt"
	"time"
)

// Precision states how much of a Date is actually known.
type Precision int

const (
	// PrecisionYear means only the year is known; Month and Day are the
	// first representable values (January 1).
	PrecisionYear Precision = iota
	// PrecisionMonth means year and month are known; Day is 1.
	PrecisionMonth
	// PrecisionDay means the full calendar date is known.
	PrecisionDay
)

func (p Precision) String() string {
	switch p {
	case PrecisionYear:
		return "year"
	case PrecisionMonth:
		return "month"
	case PrecisionDay:
		return "day"
	default:
		return fmt.Sprintf("precision(%d)", int(p))
	}
}

// Date is a calendar date with a precision marker. The zero value is not a
// valid date; sources return *Date with nil meaning "fact absent".
type Date struct {
	Year      int
	Month     time.Month
	Day       int
	Precision Precision
}

// NewYear returns a year-only Date pinned to January 1.
func NewYear(year int) Date {
	return Date{Year: year, Month: time.January, Day: 1, Precision: PrecisionYear}
}

// NewMonth returns a year-month Date pinned to the 1st.
func NewMonth(year int, month time.Month) Date {
	return Date{Year: year, Month: month, Day: 1, Precision: PrecisionMonth}
}

// New returns a full-precision Date.
func New(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day, Precision: PrecisionDay}
}

// FromTime converts a time.Time into a full-precision Date, dropping the
// clock component.
func FromTime(t time.Time) Date {
	return New(t.Year(), t.Month(), t.Day())
}

// Time returns the first instant representable for the date in UTC.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// String renders the date as ISO-8601 to its known precision.
func (d Date) String() string {
	switch d.Precision {
	case PrecisionYear:
		return fmt.Sprintf("%04d", d.Year)
	case PrecisionMonth:
		return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
	default:
		return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
	}
}

// IsZero reports whether d is the zero value.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Age computes whole years between birth and ref using the anniversary rule:
// the count decrements by one when ref's month/day falls before birth's.
// The same arithmetic applies whether ref is a death date or the current
// date; callers pass whichever reference they have.
func Age(birth, ref Date) int {
	age := ref.Year - birth.Year
	if ref.Month < birth.Month || (ref.Month == birth.Month && ref.Day < birth.Day) {
		age--
	}
	return age
}
