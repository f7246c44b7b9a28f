package model

import (
	"time"

	"github.com/bibbank/bib/services/lending-service/internal/domain/valueobject"
)

// Holiday closes a date range. When RescheduleTo is set, due dates inside the range move
// to that date instead of following the calendar's roll convention.
type Holiday struct {
	Name         string
	From         time.Time
	To           time.Time
	RescheduleTo *time.Time
}

func (h Holiday) covers(d time.Time) bool {
	return !d.Before(h.From) && !d.After(h.To)
}

// HolidayCalendar adjusts due dates that fall on non-working days.
type HolidayCalendar struct {
	Convention     valueobject.RollConvention
	NonWorkingDays []time.Weekday
	Holidays       []Holiday
}

// maxRollDays bounds the search for a working day.
const maxRollDays = 366

// IsWorkingDay reports whether d is neither a non-working weekday nor a holiday.
func (c HolidayCalendar) IsWorkingDay(d time.Time) bool {
	for _, wd := range c.NonWorkingDays {
		if d.Weekday() == wd {
			return false
		}
	}
	for _, h := range c.Holidays {
		if h.covers(d) {
			return false
		}
	}
	return true
}

// Adjust returns the date a payment due on d is actually collected.
func (c HolidayCalendar) Adjust(d time.Time) time.Time {
	for _, h := range c.Holidays {
		if h.covers(d) && h.RescheduleTo != nil {
			return *h.RescheduleTo
		}
	}
	if c.IsWorkingDay(d) {
		return d
	}

	switch c.Convention {
	case valueobject.RollFollowing:
		return c.roll(d, 1)
	case valueobject.RollPreceding:
		return c.roll(d, -1)
	case valueobject.RollModifiedFollowing:
		next := c.roll(d, 1)
		if next.Month() != d.Month() {
			return c.roll(d, -1)
		}
		return next
	default:
		return d
	}
}

func (c HolidayCalendar) roll(d time.Time, dir int) time.Time {
	cur := d
	for i := 0; i < maxRollDays; i++ {
		cur = cur.AddDate(0, 0, dir)
		if c.IsWorkingDay(cur) {
			return cur
		}
	}
	return d
}
