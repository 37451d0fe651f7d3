package timeutil

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrInvalidTimezone = errors.New("invalid timezone")

// ZoneParts is the wall-clock decomposition of an instant in a named timezone.
type ZoneParts struct {
	Year   int
	Month  time.Month
	Day    int
	Hour   int
	Minute int
}

var zoneCache sync.Map // zone name -> *time.Location

// LoadZone resolves an IANA timezone identifier. Empty names and "Local" are rejected
// so that results never depend on the host configuration.
func LoadZone(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	if cached, ok := zoneCache.Load(name); ok {
		return cached.(*time.Location), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	zoneCache.Store(name, loc)
	return loc, nil
}

// LoadZoneOr resolves name and falls back to fallback when name is not a recognized zone.
// The returned error is non-nil only as a warning (wrapping ErrInvalidTimezone); the
// returned location is always usable. UTC is used when the fallback is invalid too.
func LoadZoneOr(name string, fallback string) (*time.Location, string, error) {
	loc, err := LoadZone(name)
	if err == nil {
		return loc, name, nil
	}
	fallbackLoc, fallbackErr := LoadZone(fallback)
	if fallbackErr != nil {
		return time.UTC, "UTC", fmt.Errorf("%w, fallback %q unusable, using UTC", err, fallback)
	}
	return fallbackLoc, fallback, fmt.Errorf("%w, using %s", err, fallback)
}

// ToZoneParts decomposes instant into the wall clock of zoneName, applying the zone's
// rules in effect at that instant.
func ToZoneParts(instant time.Time, zoneName string) (ZoneParts, error) {
	loc, err := LoadZone(zoneName)
	if err != nil {
		return ZoneParts{}, err
	}
	return PartsIn(instant, loc), nil
}

// PartsIn is ToZoneParts for an already resolved location.
func PartsIn(instant time.Time, loc *time.Location) ZoneParts {
	local := instant.In(loc)
	return ZoneParts{
		Year:   local.Year(),
		Month:  local.Month(),
		Day:    local.Day(),
		Hour:   local.Hour(),
		Minute: local.Minute(),
	}
}

// MinutesSinceMidnight returns the wall-clock minute of day, always in [0,1439].
func MinutesSinceMidnight(parts ZoneParts) int {
	return ClampMinutes(parts.Hour*60 + parts.Minute)
}

// LocalDateKey formats the civil date of parts as YYYY-MM-DD.
func LocalDateKey(parts ZoneParts) string {
	return parts.Date().Key()
}

// Date returns the civil date of parts.
func (p ZoneParts) Date() Date {
	return Date{Year: p.Year, Month: p.Month, Day: p.Day}
}

// ClampMinutes limits a minute-of-day offset to [0,1439].
func ClampMinutes(minutes int) int {
	if minutes < 0 {
		return 0
	}
	if minutes > MinutesPerDay-1 {
		return MinutesPerDay - 1
	}
	return minutes
}

const MinutesPerDay = 24 * 60
