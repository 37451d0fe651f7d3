package timeutil

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a civil calendar date without a timezone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the civil date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD date key.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Key formats the date as YYYY-MM-DD.
func (d Date) Key() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) String() string {
	return d.Key()
}

func (d Date) utc() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.utc().AddDate(0, 0, n))
}

func (d Date) Weekday() time.Weekday {
	return d.utc().Weekday()
}

func (d Date) Before(other Date) bool {
	return d.utc().Before(other.utc())
}

func (d Date) After(other Date) bool {
	return d.utc().After(other.utc())
}

func (d Date) Equal(other Date) bool {
	return d == other
}

// Midnight returns the first instant of the date in loc.
func (d Date) Midnight(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// At returns the instant at the given minute of day in loc. Minutes are clamped to
// [0,1439]. Wall-clock times skipped by a DST transition resolve to the instant Go's
// time.Date normalizes them to.
func (d Date) At(loc *time.Location, minutes int) time.Time {
	minutes = ClampMinutes(minutes)
	return time.Date(d.Year, d.Month, d.Day, minutes/60, minutes%60, 0, 0, loc)
}

// EndOfDay returns 23:59:59 of the date in loc.
func (d Date) EndOfDay(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 23, 59, 59, 0, loc)
}

// UTCMidnight is the representation used for all-day events.
func (d Date) UTCMidnight() time.Time {
	return d.utc()
}

func (d Date) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte{}, nil
	}
	return []byte(d.Key()), nil
}

func (d *Date) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateWindow is an inclusive range of civil dates.
type DateWindow struct {
	Start Date
	End   Date
}

var ErrInvalidWindow = errors.New("invalid date window")

// ParseWindow parses two YYYY-MM-DD keys into a validated window.
func ParseWindow(from, to string) (DateWindow, error) {
	start, err := ParseDate(from)
	if err != nil {
		return DateWindow{}, fmt.Errorf("%w: %v", ErrInvalidWindow, err)
	}
	end, err := ParseDate(to)
	if err != nil {
		return DateWindow{}, fmt.Errorf("%w: %v", ErrInvalidWindow, err)
	}
	w := DateWindow{Start: start, End: end}
	if err := w.Validate(); err != nil {
		return DateWindow{}, err
	}
	return w, nil
}

func (w DateWindow) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidWindow)
	}
	if w.End.Before(w.Start) {
		return fmt.Errorf("%w: end %s is before start %s", ErrInvalidWindow, w.End, w.Start)
	}
	return nil
}

// Days lists every date of the window in order.
func (w DateWindow) Days() []Date {
	var days []Date
	for d := w.Start; !d.After(w.End); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

func (w DateWindow) Contains(d Date) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

// Instants returns the half-open instant range [from, to) covering the window in loc.
func (w DateWindow) Instants(loc *time.Location) (time.Time, time.Time) {
	return w.Start.Midnight(loc), w.End.AddDays(1).Midnight(loc)
}

func (w DateWindow) String() string {
	return w.Start.Key() + ".." + w.End.Key()
}
