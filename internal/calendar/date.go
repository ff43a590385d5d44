package calendar

import (
	"fmt"
	"time"

	"vocalroom/internal/model"
)

// Date is a plain calendar date with explicit fields. All arithmetic goes
// through time.Date in UTC so month and year rollover is handled by the
// standard library, never by string slicing.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a YYYY-MM-DD string into a Date.
func ParseDate(s string) (Date, error) {
	if !model.ValidISODate(s) {
		return Date{}, fmt.Errorf("%w: %q", model.ErrBadDate, s)
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", model.ErrBadDate, s)
	}
	return DateOf(t), nil
}

// DateOf extracts the calendar date of t.
func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Today returns the current date in local time.
func Today() Date {
	return DateOf(time.Now())
}

// ISO formats the date as fixed-width YYYY-MM-DD.
func (d Date) ISO() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the date n days after d. Negative n walks backwards.
func (d Date) AddDays(n int) Date {
	return DateOf(d.time().AddDate(0, 0, n))
}

// Weekday returns the day of the week, Sunday = 0.
func (d Date) Weekday() time.Weekday {
	return d.time().Weekday()
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	switch month {
	case time.February:
		if (year%4 == 0 && year%100 != 0) || year%400 == 0 {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}

// MonthRange returns the first and last dates of a month.
func MonthRange(year int, month time.Month) (Date, Date) {
	first := Date{Year: year, Month: month, Day: 1}
	last := Date{Year: year, Month: month, Day: DaysInMonth(year, month)}
	return first, last
}

// IsPast reports whether date is strictly before today. Both are fixed-width
// ISO strings, so plain string comparison is exact.
func IsPast(date, today string) bool {
	return date < today
}
