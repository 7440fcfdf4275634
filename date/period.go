package date

import (
	"fmt"
	"strings"
	"time"
)

// Period is a standard calendar period used to build ranges.
type Period int

const (
	Daily Period = iota
	Weekly
	Monthly
	Yearly
)

func (p Period) String() string {
	switch p {
	case Daily:
		return "daily"
	case Weekly:
		return "weekly"
	case Monthly:
		return "monthly"
	case Yearly:
		return "yearly"
	default:
		panic(fmt.Sprintf("unknown period %d", p))
	}
}

// ParsePeriod parses "day", "week", "month", "year" and their adjective forms.
func ParsePeriod(p string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "daily", "day":
		return Daily, nil
	case "weekly", "week":
		return Weekly, nil
	case "monthly", "month":
		return Monthly, nil
	case "yearly", "year":
		return Yearly, nil
	default:
		return Daily, fmt.Errorf("unknown period %q", p)
	}
}

// Range returns the period containing d.
func (p Period) Range(d Date) Range { return Range{From: d.StartOf(p), To: d.EndOf(p)} }

// StartOf returns the first day of the period containing d. Weeks start on Monday.
func (d Date) StartOf(period Period) Date {
	switch period {
	case Daily:
		return d
	case Weekly:
		offset := int(d.Weekday() - time.Monday)
		if offset < 0 {
			offset += 7
		}
		return d.Add(-offset)
	case Monthly:
		return New(d.y, d.m, 1)
	case Yearly:
		return New(d.y, time.January, 1)
	default:
		panic("unknown period")
	}
}

// EndOf returns the last day of the period containing d.
func (d Date) EndOf(period Period) Date {
	switch period {
	case Daily:
		return d
	case Weekly:
		return d.StartOf(Weekly).Add(6)
	case Monthly:
		return New(d.y, d.m+1, 0)
	case Yearly:
		return New(d.y+1, time.January, 0)
	default:
		panic("unknown period")
	}
}
