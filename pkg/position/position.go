package position

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/klokku/daybook/pkg/calendar"
	"github.com/klokku/daybook/pkg/timeutil"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultSpanMinutes replaces a negative local span.
	DefaultSpanMinutes = 30
	// DefaultMinHeightMinutes keeps short events visible and clickable.
	DefaultMinHeightMinutes = 20
)

type ViewKind string

const (
	ViewDay   ViewKind = "day"
	ViewWeek  ViewKind = "week"
	ViewMonth ViewKind = "month"
)

func ParseViewKind(s string) (ViewKind, error) {
	switch v := ViewKind(s); v {
	case ViewDay, ViewWeek, ViewMonth:
		return v, nil
	case "":
		return ViewWeek, nil
	}
	return "", fmt.Errorf("unknown view %q", s)
}

type Options struct {
	MinHeightMinutes   int
	DefaultSpanMinutes int
}

// Minimums holds the minimum rendered height of each view.
type Minimums map[ViewKind]int

func DefaultMinimums() Minimums {
	return Minimums{ViewDay: 20, ViewWeek: 20, ViewMonth: 15}
}

func (m Minimums) Options(view ViewKind) Options {
	min, ok := m[view]
	if !ok {
		min = DefaultMinHeightMinutes
	}
	return Options{MinHeightMinutes: min, DefaultSpanMinutes: DefaultSpanMinutes}
}

func (o Options) withDefaults() Options {
	if o.MinHeightMinutes <= 0 {
		o.MinHeightMinutes = DefaultMinHeightMinutes
	}
	if o.DefaultSpanMinutes <= 0 {
		o.DefaultSpanMinutes = DefaultSpanMinutes
	}
	return o
}

// PositionedEvent is a timed event placed on a 1440-minute vertical scale.
// DurationMinutes is the stored duration used when rescheduling; HeightMinutes is
// only what gets rendered.
type PositionedEvent struct {
	Event           calendar.CanonicalEvent
	TopMinutes      int
	LayoutMinutes   int
	HeightMinutes   int
	DurationMinutes int
	TopFraction     float64
	HeightFraction  float64
	// Column is the lane of the event among overlapping events, Columns the lane count.
	Column  int
	Columns int
}

func (p PositionedEvent) bottom() int {
	return p.TopMinutes + p.HeightMinutes
}

type DayLayout struct {
	DateKey string
	AllDay  []calendar.CanonicalEvent
	Timed   []PositionedEvent
}

// Position lays out one day bucket in zoneName. All-day events keep their order; timed
// events are sorted by start and assigned lanes.
func Position(events []calendar.CanonicalEvent, dateKey string, zoneName string, opts Options) (DayLayout, error) {
	loc, err := timeutil.LoadZone(zoneName)
	if err != nil {
		return DayLayout{}, err
	}
	if _, err := timeutil.ParseDate(dateKey); err != nil {
		return DayLayout{}, fmt.Errorf("%w: %v", timeutil.ErrInvalidWindow, err)
	}
	return PositionIn(events, dateKey, loc, opts), nil
}

func PositionIn(events []calendar.CanonicalEvent, dateKey string, loc *time.Location, opts Options) DayLayout {
	opts = opts.withDefaults()
	layout := DayLayout{DateKey: dateKey, AllDay: []calendar.CanonicalEvent{}, Timed: []PositionedEvent{}}
	for _, e := range events {
		if e.AllDay {
			layout.AllDay = append(layout.AllDay, e)
			continue
		}
		if key := calendar.BucketKey(e, loc); key != dateKey {
			log.Warnf("event %s belongs to %s, not %s; skipped", e.ID, key, dateKey)
			continue
		}
		layout.Timed = append(layout.Timed, place(e, loc, opts))
	}
	sort.SliceStable(layout.Timed, func(i, j int) bool {
		return calendar.Less(layout.Timed[i].Event, layout.Timed[j].Event)
	})
	assignColumns(layout.Timed)
	return layout
}

func place(e calendar.CanonicalEvent, loc *time.Location, opts Options) PositionedEvent {
	top := timeutil.MinutesSinceMidnight(timeutil.PartsIn(e.Start, loc))
	span := timeutil.MinutesSinceMidnight(timeutil.PartsIn(e.End, loc)) - top
	if span < 0 {
		span = opts.DefaultSpanMinutes
	}
	height := span
	if height < opts.MinHeightMinutes {
		height = opts.MinHeightMinutes
	}
	// The block stops at the bottom of the day column.
	if rest := timeutil.MinutesPerDay - top; height > rest {
		height = rest
	}
	return PositionedEvent{
		Event:           e,
		TopMinutes:      top,
		LayoutMinutes:   span,
		HeightMinutes:   height,
		DurationMinutes: int(e.Duration() / time.Minute),
		TopFraction:     float64(top) / timeutil.MinutesPerDay,
		HeightFraction:  float64(height) / timeutil.MinutesPerDay,
	}
}

// assignColumns gives every event the lowest lane free at its top. Events are sorted by
// start; a cluster ends when no rendered block reaches past the next top.
func assignColumns(timed []PositionedEvent) {
	clusterStart := 0
	clusterEnd := -1
	var laneEnds []int
	flush := func(end int) {
		for i := clusterStart; i < end; i++ {
			timed[i].Columns = len(laneEnds)
		}
	}
	for i := range timed {
		if timed[i].TopMinutes >= clusterEnd {
			flush(i)
			clusterStart = i
			laneEnds = laneEnds[:0]
		}
		lane := -1
		for l, end := range laneEnds {
			if end <= timed[i].TopMinutes {
				lane = l
				break
			}
		}
		if lane == -1 {
			lane = len(laneEnds)
			laneEnds = append(laneEnds, 0)
		}
		laneEnds[lane] = timed[i].bottom()
		timed[i].Column = lane
		if timed[i].bottom() > clusterEnd {
			clusterEnd = timed[i].bottom()
		}
	}
	flush(len(timed))
}

// PositionAll lays out every day of the view's window, empty days included.
func PositionAll(view calendar.View, opts Options) []DayLayout {
	days := view.Window.Days()
	layouts := make([]DayLayout, 0, len(days))
	for _, day := range days {
		key := day.Key()
		layouts = append(layouts, PositionIn(view.Buckets[key], key, view.Location, opts))
	}
	return layouts
}

// MinutesFromFraction is the inverse of TopFraction, clamped to the day.
func MinutesFromFraction(fraction float64) int {
	return timeutil.ClampMinutes(int(math.Round(fraction * timeutil.MinutesPerDay)))
}

// MinutesFromPixels converts a vertical offset within a day column of dayHeight pixels
// into minutes, snapped down to snapMinutes when it is positive.
func MinutesFromPixels(offset float64, dayHeight float64, snapMinutes int) int {
	if dayHeight <= 0 {
		return 0
	}
	minutes := MinutesFromFraction(offset / dayHeight)
	if snapMinutes > 1 {
		minutes -= minutes % snapMinutes
	}
	return minutes
}
