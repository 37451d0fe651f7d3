package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/klokku/daybook/pkg/calendar"
	"github.com/klokku/daybook/pkg/routine"
	"github.com/klokku/daybook/pkg/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rulesFunc func(ctx context.Context) ([]routine.Rule, error)

func (f rulesFunc) ListEnabledRules(ctx context.Context) ([]routine.Rule, error) {
	return f(ctx)
}

func staticRules(rules ...routine.Rule) routine.RuleSource {
	return rulesFunc(func(ctx context.Context) ([]routine.Rule, error) { return rules, nil })
}

func staticAdapter(name string, source calendar.SourceType, events ...calendar.CanonicalEvent) calendar.Adapter {
	return calendar.AdapterFunc{
		AdapterName: name,
		Source:      source,
		FetchFunc: func(ctx context.Context, r calendar.TimeRange) ([]calendar.CanonicalEvent, error) {
			return events, nil
		},
	}
}

func hangingAdapter(name string) calendar.Adapter {
	return calendar.AdapterFunc{
		AdapterName: name,
		Source:      calendar.SourceOutlook,
		FetchFunc: func(ctx context.Context, r calendar.TimeRange) ([]calendar.CanonicalEvent, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
}

// sleepingAdapter never looks at ctx.
func sleepingAdapter(name string, d time.Duration, release <-chan struct{}) calendar.Adapter {
	return calendar.AdapterFunc{
		AdapterName: name,
		Source:      calendar.SourceApple,
		FetchFunc: func(ctx context.Context, r calendar.TimeRange) ([]calendar.CanonicalEvent, error) {
			select {
			case <-time.After(d):
			case <-release:
			}
			return []calendar.CanonicalEvent{event("apple:late", calendar.SourceApple, r.From, time.Hour)}, nil
		},
	}
}

func event(id string, source calendar.SourceType, start time.Time, d time.Duration) calendar.CanonicalEvent {
	return calendar.CanonicalEvent{ID: id, Title: id, Start: start, End: start.Add(d), SourceType: source}
}

func window(t *testing.T, from, to string) timeutil.DateWindow {
	w, err := timeutil.ParseWindow(from, to)
	require.NoError(t, err)
	return w
}

func weekdayStandup() routine.Rule {
	return routine.Rule{
		ID:              "wake",
		Title:           "Wake up",
		Kind:            routine.KindWake,
		TimeOfDay:       timeutil.Clock{Hour: 7},
		DaysOfWeek:      []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		DurationMinutes: 30,
		Enabled:         true,
	}
}

func TestAggregate_AdapterIgnoringContextIsAbandonedAtDeadline(t *testing.T) {
	// given
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	aggregator := New(nil, Config{AdapterTimeout: 50 * time.Millisecond})
	day := time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC)
	req := Request{
		Window: window(t, "2024-06-03", "2024-06-09"),
		Zone:   "UTC",
		Adapters: []calendar.Adapter{
			staticAdapter("native", calendar.SourceNative, event("n1", calendar.SourceNative, day, time.Hour)),
			sleepingAdapter("apple:home", 2*time.Second, release),
		},
	}

	// when
	started := time.Now()
	result, err := aggregator.Aggregate(context.Background(), req)

	// then
	require.NoError(t, err)
	assert.Less(t, time.Since(started), 500*time.Millisecond)
	assert.Equal(t, 1, result.View.Buckets.Count())
	_, _, found := result.View.Buckets.Find("apple:late")
	assert.False(t, found)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, AdapterUnavailable, result.Diagnostics[0].Kind)
	assert.Equal(t, "apple:home", result.Diagnostics[0].Source)
}

func TestAggregate_TimedOutAdapterDoesNotBlockOthers(t *testing.T) {
	// given
	aggregator := New(staticRules(weekdayStandup()), Config{AdapterTimeout: 50 * time.Millisecond})
	day := time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC)
	req := Request{
		Window: window(t, "2024-06-03", "2024-06-09"),
		Zone:   "UTC",
		Adapters: []calendar.Adapter{
			staticAdapter("native", calendar.SourceNative, event("n1", calendar.SourceNative, day, time.Hour)),
			hangingAdapter("outlook:work"),
			staticAdapter("google:home", calendar.SourceGoogle, event("google:g1", calendar.SourceGoogle, day.Add(2*time.Hour), time.Hour)),
		},
	}

	// when
	started := time.Now()
	result, err := aggregator.Aggregate(context.Background(), req)

	// then
	require.NoError(t, err)
	assert.Less(t, time.Since(started), 2*time.Second)
	assert.Equal(t, 7, result.View.Buckets.Count(), "two adapters plus five weekday routines")
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, AdapterUnavailable, result.Diagnostics[0].Kind)
	assert.Equal(t, "outlook:work", result.Diagnostics[0].Source)

	routines := 0
	for _, key := range result.View.Buckets.Keys() {
		for _, e := range result.View.Buckets[key] {
			if e.SourceType == calendar.SourceRoutine {
				routines++
				assert.Equal(t, 30*time.Minute, e.Duration())
			}
		}
	}
	assert.Equal(t, 5, routines)
}

func TestAggregate_Deduplication(t *testing.T) {
	// given
	rule := weekdayStandup()
	date, _ := timeutil.ParseDate("2024-06-05")
	key := routine.RecurrenceKey(rule.ID, date)
	persisted := event("6b8e7c5e-0000-4000-8000-000000000001", calendar.SourceNative, date.At(time.UTC, 7*60), 30*time.Minute)
	persisted.RecurrenceKey = key
	shared := event("google:g1", calendar.SourceGoogle, date.At(time.UTC, 600), time.Hour)

	aggregator := New(staticRules(rule), Config{})
	req := Request{
		Window: window(t, "2024-06-05", "2024-06-05"),
		Zone:   "UTC",
		Adapters: []calendar.Adapter{
			staticAdapter("native", calendar.SourceNative, persisted),
			staticAdapter("google:a", calendar.SourceGoogle, shared),
			staticAdapter("google:b", calendar.SourceGoogle, shared),
		},
	}

	// when
	result, err := aggregator.Aggregate(context.Background(), req)

	// then
	require.NoError(t, err)
	bucket := result.View.Buckets["2024-06-05"]
	require.Len(t, bucket, 2)
	assert.Equal(t, persisted.ID, bucket[0].ID, "persisted routine instance replaces the generated one")
	assert.Equal(t, "google:g1", bucket[1].ID)

	ids := map[string]int{}
	for _, e := range bucket {
		ids[e.ID]++
	}
	for id, n := range ids {
		assert.Equal(t, 1, n, id)
	}
}

func TestAggregate_BucketsByDisplayZone(t *testing.T) {
	late := time.Date(2024, 6, 5, 22, 30, 0, 0, time.UTC) // 00:30 on 06-06 in Warsaw
	allDay := calendar.CanonicalEvent{
		ID: "holiday", Title: "Holiday", AllDay: true, SourceType: calendar.SourceApple,
		Start: time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 6, 6, 0, 0, 0, 0, time.UTC),
	}
	adapters := []calendar.Adapter{staticAdapter("apple:x", calendar.SourceApple, event("late", calendar.SourceApple, late, time.Hour), allDay)}

	tests := []struct {
		zone     string
		expected map[string][]string
	}{
		{"UTC", map[string][]string{"2024-06-05": {"holiday", "late"}}},
		{"Europe/Warsaw", map[string][]string{"2024-06-05": {"holiday"}, "2024-06-06": {"late"}}},
		{"America/Los_Angeles", map[string][]string{"2024-06-05": {"holiday", "late"}}},
	}
	for _, tt := range tests {
		t.Run(tt.zone, func(t *testing.T) {
			result, err := New(nil, Config{}).Aggregate(context.Background(), Request{
				Window: window(t, "2024-06-05", "2024-06-06"), Zone: tt.zone, Adapters: adapters,
			})

			require.NoError(t, err)
			actual := map[string][]string{}
			for key, events := range result.View.Buckets {
				for _, e := range events {
					actual[key] = append(actual[key], e.ID)
					assert.Equal(t, key, calendar.BucketKey(e, result.View.Location))
				}
			}
			assert.Equal(t, tt.expected, actual)
		})
	}
}

func TestAggregate_DSTSpringForward(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	start := time.Date(2024, 3, 10, 1, 30, 0, 0, time.FixedZone("PST", -8*3600))

	result, err := New(nil, Config{}).Aggregate(context.Background(), Request{
		Window:   window(t, "2024-03-10", "2024-03-10"),
		Zone:     "America/Los_Angeles",
		Adapters: []calendar.Adapter{staticAdapter("google:x", calendar.SourceGoogle, event("google:dst", calendar.SourceGoogle, start, 2*time.Hour))},
	})

	require.NoError(t, err)
	bucket := result.View.Buckets["2024-03-10"]
	require.Len(t, bucket, 1)
	local := bucket[0].Start.In(la)
	assert.Equal(t, 1, local.Hour())
	assert.Equal(t, 30, local.Minute())
	assert.Equal(t, 4, bucket[0].End.In(la).Hour(), "02:00 does not exist, end lands on 04:30 PDT")
}

func TestAggregate_TieBreakBySourcePriority(t *testing.T) {
	start := time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC)
	adapters := []calendar.Adapter{
		staticAdapter("apple:x", calendar.SourceApple, event("a", calendar.SourceApple, start, time.Hour)),
		staticAdapter("outlook:x", calendar.SourceOutlook, event("o", calendar.SourceOutlook, start, time.Hour)),
		staticAdapter("google:x", calendar.SourceGoogle, event("g", calendar.SourceGoogle, start, time.Hour)),
		staticAdapter("native", calendar.SourceNative, event("n", calendar.SourceNative, start, time.Hour)),
	}

	result, err := New(nil, Config{}).Aggregate(context.Background(), Request{Window: window(t, "2024-06-05", "2024-06-05"), Zone: "UTC", Adapters: adapters})

	require.NoError(t, err)
	var ids []string
	for _, e := range result.View.Buckets["2024-06-05"] {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"n", "g", "o", "a"}, ids)
}

func TestAggregate_Failures(t *testing.T) {
	t.Run("invalid window is an error", func(t *testing.T) {
		_, err := New(nil, Config{}).Aggregate(context.Background(), Request{
			Window: timeutil.DateWindow{Start: timeutil.Date{Year: 2024, Month: 6, Day: 5}, End: timeutil.Date{Year: 2024, Month: 6, Day: 4}},
		})
		assert.ErrorIs(t, err, timeutil.ErrInvalidWindow)
	})

	t.Run("invalid zone falls back to the default", func(t *testing.T) {
		result, err := New(nil, Config{DefaultZone: "Europe/Warsaw"}).Aggregate(context.Background(), Request{
			Window: window(t, "2024-06-05", "2024-06-05"), Zone: "Mars/Olympus",
		})
		require.NoError(t, err)
		assert.Equal(t, "Europe/Warsaw", result.View.Zone)
		require.Len(t, result.Diagnostics, 1)
		assert.Equal(t, InvalidTimezone, result.Diagnostics[0].Kind)
	})

	t.Run("malformed events and failing routine source are diagnostics", func(t *testing.T) {
		start := time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC)
		broken := event("broken", calendar.SourceGoogle, start, -time.Hour)
		untitled := event("untitled", calendar.SourceGoogle, start, time.Hour)
		untitled.Title = ""
		rules := rulesFunc(func(ctx context.Context) ([]routine.Rule, error) { return nil, errors.New("db down") })

		result, err := New(rules, Config{}).Aggregate(context.Background(), Request{
			Window:   window(t, "2024-06-05", "2024-06-05"),
			Zone:     "UTC",
			Adapters: []calendar.Adapter{staticAdapter("google:x", calendar.SourceGoogle, broken, untitled, event("ok", calendar.SourceGoogle, start, time.Hour))},
		})

		require.NoError(t, err)
		assert.Equal(t, 1, result.View.Buckets.Count())
		kinds := map[DiagnosticKind]int{}
		for _, d := range result.Diagnostics {
			kinds[d.Kind]++
		}
		assert.Equal(t, map[DiagnosticKind]int{MalformedEvent: 2, RoutinesUnavailable: 1}, kinds)
	})

	t.Run("cancelled request stops in-flight adapters", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(20*time.Millisecond, cancel)

		_, err := New(nil, Config{AdapterTimeout: time.Minute}).Aggregate(ctx, Request{
			Window: window(t, "2024-06-05", "2024-06-05"), Zone: "UTC", Adapters: []calendar.Adapter{hangingAdapter("outlook:x")},
		})

		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("panicking adapter is isolated", func(t *testing.T) {
		panicking := calendar.AdapterFunc{AdapterName: "google:x", Source: calendar.SourceGoogle,
			FetchFunc: func(ctx context.Context, r calendar.TimeRange) ([]calendar.CanonicalEvent, error) { panic("boom") }}

		result, err := New(nil, Config{}).Aggregate(context.Background(), Request{
			Window: window(t, "2024-06-05", "2024-06-05"), Zone: "UTC", Adapters: []calendar.Adapter{panicking},
		})

		require.NoError(t, err)
		require.Len(t, result.Diagnostics, 1)
		assert.Contains(t, result.Diagnostics[0].Message, "boom")
	})
}

func TestAggregate_FillsMissingProvenance(t *testing.T) {
	start := time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC)
	bare := calendar.CanonicalEvent{ID: "x", Title: "x", Start: start, End: start.Add(time.Hour)}

	result, err := New(nil, Config{}).Aggregate(context.Background(), Request{
		Window: window(t, "2024-06-05", "2024-06-05"), Zone: "UTC",
		Adapters: []calendar.Adapter{staticAdapter("google:home", calendar.SourceGoogle, bare)},
	})

	require.NoError(t, err)
	e := result.View.Buckets["2024-06-05"][0]
	assert.Equal(t, calendar.SourceGoogle, e.SourceType)
	assert.Equal(t, "google:home", e.SourceCalendarName)
}
