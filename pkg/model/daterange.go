package model

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// NormalizeDate truncates a timestamp to UTC midnight. Every date stored or
// compared by the reservation core goes through this first.
func NormalizeDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a normalized UTC date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return NormalizeDate(t), nil
}

// DateRange is a half-open date interval [CheckIn, CheckOut): the check-in day
// is occupied, the check-out day is not. Checkout vacates before the next
// check-in on the same day.
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

func NewDateRange(checkIn, checkOut time.Time) DateRange {
	return DateRange{
		CheckIn:  NormalizeDate(checkIn),
		CheckOut: NormalizeDate(checkOut),
	}
}

// IsValid reports whether the range spans at least one night.
func (r DateRange) IsValid() bool {
	return r.CheckOut.After(r.CheckIn)
}

// Nights is the number of occupied days in the range.
func (r DateRange) Nights() int {
	return int(r.CheckOut.Sub(r.CheckIn).Hours() / 24)
}

// Days returns every date in [CheckIn, CheckOut).
func (r DateRange) Days() []time.Time {
	if !r.IsValid() {
		return nil
	}
	days := make([]time.Time, 0, r.Nights())
	for d := r.CheckIn; d.Before(r.CheckOut); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Contains reports whether the given date is occupied by the range.
func (r DateRange) Contains(d time.Time) bool {
	d = NormalizeDate(d)
	return !d.Before(r.CheckIn) && d.Before(r.CheckOut)
}

// Overlaps applies the half-open overlap test: a.start < b.end && a.end > b.start.
// A range ending on the day another starts does not overlap.
func (r DateRange) Overlaps(other DateRange) bool {
	return r.CheckIn.Before(other.CheckOut) && r.CheckOut.After(other.CheckIn)
}

func (r DateRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.CheckIn.Format(DateLayout), r.CheckOut.Format(DateLayout))
}
