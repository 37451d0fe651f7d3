package timeutil

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUnparsableTimestamp = errors.New("unparsable timestamp")

var zonedLayouts = []string{
	time.RFC3339Nano,
	"20060102T150405Z",
}

var floatingLayouts = []string{
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"20060102T150405",
}

var dateOnlyLayouts = []string{
	dateLayout,
	"20060102",
}

// ParseTimestamp parses the ISO-ish timestamps providers emit. Values carrying an offset
// (or Z) are absolute; floating values are interpreted in loc. Date-only values report
// allDay and resolve to 00:00 UTC of that date.
func ParseTimestamp(value string, loc *time.Location) (t time.Time, allDay bool, err error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false, fmt.Errorf("%w: empty value", ErrUnparsableTimestamp)
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, false, nil
		}
	}
	for _, layout := range floatingLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, false, nil
		}
	}
	for _, layout := range dateOnlyLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return DateOf(t).UTCMidnight(), true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("%w: %q", ErrUnparsableTimestamp, value)
}
