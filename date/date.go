// Package date provides a calendar day type and day ranges.
//
// A meal ledger is keyed by day, not by instant: two meals eaten on the same
// calendar day belong to the same ledger regardless of the time zone they
// were logged in.
package date

import (
	"encoding/json"
	"fmt"
	"iter"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const readDateFormat = "2006-1-2" // Permissive read date format (allows single-digit month/day).

// DateFormat is the format used to represent dates as strings in ISO-8601 format.
const DateFormat = "2006-01-02"

// Date represents a date with day-level granularity.
type Date struct {
	y int        // year
	m time.Month // month
	d int        // day
}

// New returns a normalized Date for the given year, month, and day.
func New(year int, month time.Month, day int) Date {
	d := Date{year, month, day}
	d.y, d.m, d.d = d.time().Date()
	return d
}

// Of returns the calendar day of t in t's own location.
func Of(t time.Time) Date { return New(t.Date()) }

// Today returns the current local date.
func Today() Date { return Of(time.Now()) }

// Year returns current year.
func (d Date) Year() int { return d.y }

// Month returns the month of the date.
func (d Date) Month() time.Month { return d.m }

// Day returns current day of the month.
func (d Date) Day() int { return d.d }

// Weekday returns the day of the week for the date.
func (d Date) Weekday() time.Weekday { return d.time().Weekday() }

// IsZero returns true if the date is the zero value.
func (d Date) IsZero() bool { return d.y == 0 && d.m == 0 && d.d == 0 }

// time returns a time.Time that is a canonical representation of that day (at midnight UTC).
func (d Date) time() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }

// In returns the instant of the day's midnight in loc.
func (d Date) In(loc *time.Location) time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, loc) }

// Before reports whether the day d is before x.
func (d Date) Before(x Date) bool { return d.time().Before(x.time()) }

// After reports whether the day d is after x.
func (d Date) After(x Date) bool { return d.time().After(x.time()) }

// Equal reports whether d and x are the same day.
func (d Date) Equal(x Date) bool { return d == x }

// Add returns a new Date with the given number of days added.
func (d Date) Add(i int) Date { return New(d.y, d.m, d.d+i) }

// AddMonths returns the same day n months later. Days past the end of the
// target month are clamped to its last day: March 31 minus one month is the
// last day of February.
func (d Date) AddMonths(n int) Date {
	first := New(d.y, d.m+time.Month(n), 1)
	last := New(first.y, first.m+1, 0).d
	return New(first.y, first.m, min(d.d, last))
}

// Sub returns the number of days from x to d.
func (d Date) Sub(x Date) int { return int(d.time().Sub(x.time()).Hours() / 24) }

// String format the date in its standard format.
func (d Date) String() string { return d.time().Format(DateFormat) }

var relativeDateRE = regexp.MustCompile(`^([+-])(\d+)([dwmy])$`)

// Parse parses a Date from a string.
//
// It accepts ISO dates, leniently ("2025-7-1" is fine), and dates relative to
// today: "0d" is today, "-1d" yesterday, "-2w" two weeks ago, "+1m", "-1y".
// Months and years are calendar ones, see AddMonths.
func Parse(str string) (Date, error) {
	str = strings.TrimSpace(str)
	if str == "0d" {
		return Today(), nil
	}
	if match := relativeDateRE.FindStringSubmatch(str); match != nil {
		num, err := strconv.Atoi(match[2])
		if err != nil {
			return Date{}, fmt.Errorf("invalid number in relative date %q: %w", str, err)
		}
		if match[1] == "-" {
			num = -num
		}
		today := Today()
		switch match[3] {
		case "d":
			return today.Add(num), nil
		case "w":
			return today.Add(num * 7), nil
		case "m":
			return today.AddMonths(num), nil
		case "y":
			return today.AddMonths(12 * num), nil
		}
	}

	on, err := time.Parse(readDateFormat, str)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q want format %q: %w", str, readDateFormat, err)
	}
	return Of(on), nil
}

// MustParse is like Parse but panics on error.
func MustParse(str string) Date {
	d, err := Parse(str)
	if err != nil {
		panic(err.Error())
	}
	return d
}

// UnmarshalJSON implements the json specific way to unmarshall a date from a json string.
func (d *Date) UnmarshalJSON(bytes []byte) error {
	var str string
	if err := json.Unmarshal(bytes, &str); err != nil {
		return err
	}
	v, err := Parse(str)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// MarshalJSON writes the date in its ISO format.
func (d Date) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

var _ json.Marshaler = (*Date)(nil)
var _ json.Unmarshaler = (*Date)(nil)

// Range represents an inclusive range of dates.
type Range struct{ From, To Date }

// NewRange returns the range from 'from' to 'to', boundaries included.
func NewRange(from, to Date) Range { return Range{From: from, To: to} }

// Contains return true date is included in the range (boundaries included)
func (r Range) Contains(day Date) bool { return !day.Before(r.From) && !day.After(r.To) }

// Len returns the number of days in the range, zero if To is before From.
func (r Range) Len() int {
	if r.To.Before(r.From) {
		return 0
	}
	return r.To.Sub(r.From) + 1
}

// Days iterates over every day of the range in chronological order.
func (r Range) Days() iter.Seq[Date] {
	return func(yield func(Date) bool) {
		for d := r.From; !d.After(r.To); d = d.Add(1) {
			if !yield(d) {
				return
			}
		}
	}
}

func (r Range) String() string { return fmt.Sprintf("%s..%s", r.From, r.To) }
