package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/klokku/daybook/pkg/calendar"
	"github.com/klokku/daybook/pkg/routine"
	"github.com/klokku/daybook/pkg/timeutil"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const DefaultAdapterTimeout = 10 * time.Second

type DiagnosticKind string

const (
	AdapterUnavailable  DiagnosticKind = "adapter_unavailable"
	InvalidTimezone     DiagnosticKind = "invalid_timezone"
	MalformedEvent      DiagnosticKind = "malformed_event"
	RoutinesUnavailable DiagnosticKind = "routines_unavailable"
)

// Diagnostic records a partial failure. It degrades a result, it never fails it.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Source  string         `json:"source"`
	Message string         `json:"message"`
}

type Request struct {
	Window timeutil.DateWindow
	// Zone is the display timezone.
	Zone string
	// HomeZone anchors routine wall-clock times; empty means Zone.
	HomeZone string
	Adapters []calendar.Adapter
}

type Result struct {
	View        calendar.View
	Diagnostics []Diagnostic
}

type Config struct {
	DefaultZone    string
	AdapterTimeout time.Duration
	// MaxConcurrency bounds parallel adapter calls; zero means unbounded.
	MaxConcurrency int
}

type Aggregator struct {
	rules routine.RuleSource
	cfg   Config
}

// New creates an aggregator. rules may be nil when routines are not used.
func New(rules routine.RuleSource, cfg Config) *Aggregator {
	if cfg.AdapterTimeout <= 0 {
		cfg.AdapterTimeout = DefaultAdapterTimeout
	}
	if cfg.DefaultZone == "" {
		cfg.DefaultZone = "UTC"
	}
	return &Aggregator{rules: rules, cfg: cfg}
}

type fetchResult struct {
	events []calendar.CanonicalEvent
	err    error
}

// Aggregate merges every adapter's events and the expanded routines over the window
// into day buckets of the display zone. Only an invalid window or a cancelled request
// is an error.
func (a *Aggregator) Aggregate(ctx context.Context, req Request) (Result, error) {
	if err := req.Window.Validate(); err != nil {
		return Result{}, err
	}
	var diagnostics []Diagnostic

	loc, zone, err := timeutil.LoadZoneOr(req.Zone, a.cfg.DefaultZone)
	if err != nil {
		log.Warnf("display zone: %v", err)
		diagnostics = append(diagnostics, Diagnostic{Kind: InvalidTimezone, Source: req.Zone, Message: err.Error()})
	}
	homeLoc := loc
	if req.HomeZone != "" && req.HomeZone != zone {
		homeLoc, _, err = timeutil.LoadZoneOr(req.HomeZone, zone)
		if err != nil {
			log.Warnf("home zone: %v", err)
			diagnostics = append(diagnostics, Diagnostic{Kind: InvalidTimezone, Source: req.HomeZone, Message: err.Error()})
		}
	}

	from, to := req.Window.Instants(loc)
	results := a.fetchAll(ctx, req.Adapters, calendar.TimeRange{From: from, To: to})
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("aggregation cancelled: %w", err)
	}

	var all []calendar.CanonicalEvent
	for i, r := range results {
		adapter := req.Adapters[i]
		if r.err != nil {
			log.Warnf("adapter %s skipped: %v", adapter.Name(), r.err)
			diagnostics = append(diagnostics, Diagnostic{Kind: AdapterUnavailable, Source: adapter.Name(), Message: r.err.Error()})
			continue
		}
		for _, e := range r.events {
			all = append(all, withProvenance(e, adapter))
		}
	}

	instances, err := a.expandRoutines(ctx, req.Window, homeLoc)
	if err != nil {
		log.Warnf("routines skipped: %v", err)
		diagnostics = append(diagnostics, Diagnostic{Kind: RoutinesUnavailable, Source: "routine", Message: err.Error()})
	}
	all = append(all, instances...)

	buckets, dropped := Merge(all, req.Window, loc)
	diagnostics = append(diagnostics, dropped...)

	log.Debugf("aggregated %d events over %s in %s from %d adapters", buckets.Count(), req.Window, zone, len(req.Adapters))
	return Result{
		View: calendar.View{
			Window:   req.Window,
			Zone:     zone,
			Location: loc,
			Buckets:  buckets,
		},
		Diagnostics: diagnostics,
	}, nil
}

// fetchAll calls every adapter concurrently, each under its own timeout, and waits for all.
func (a *Aggregator) fetchAll(ctx context.Context, adapters []calendar.Adapter, r calendar.TimeRange) []fetchResult {
	results := make([]fetchResult, len(adapters))
	g, gctx := errgroup.WithContext(ctx)
	if a.cfg.MaxConcurrency > 0 {
		g.SetLimit(a.cfg.MaxConcurrency)
	}
	for i, adapter := range adapters {
		g.Go(func() error {
			results[i] = a.fetch(gctx, adapter, r)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// fetch runs one adapter under its own timeout. Adapters ignoring ctx are abandoned at
// the deadline; their late result is dropped.
func (a *Aggregator) fetch(ctx context.Context, adapter calendar.Adapter, r calendar.TimeRange) fetchResult {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.AdapterTimeout)
	defer cancel()

	started := time.Now()
	done := make(chan fetchResult, 1)
	go func() {
		done <- callAdapter(ctx, adapter, r)
	}()

	var result fetchResult
	select {
	case result = <-done:
		if result.err == nil && ctx.Err() != nil {
			result = fetchResult{err: ctx.Err()}
		}
	case <-ctx.Done():
		log.Warnf("adapter %s did not return within %s", adapter.Name(), a.cfg.AdapterTimeout)
		result = fetchResult{err: ctx.Err()}
	}
	if result.err != nil {
		if !errors.Is(result.err, calendar.ErrAdapterUnavailable) {
			result.err = fmt.Errorf("%w: %w", calendar.ErrAdapterUnavailable, result.err)
		}
		return fetchResult{err: result.err}
	}
	log.Tracef("adapter %s returned %d events in %s", adapter.Name(), len(result.events), time.Since(started))
	return result
}

func callAdapter(ctx context.Context, adapter calendar.Adapter, r calendar.TimeRange) (result fetchResult) {
	defer func() {
		if p := recover(); p != nil {
			result = fetchResult{err: fmt.Errorf("%w: adapter panicked: %v", calendar.ErrAdapterUnavailable, p)}
		}
	}()
	events, err := adapter.Fetch(ctx, r)
	return fetchResult{events: events, err: err}
}

// expandRoutines widens the window by a day on each side so instances whose home date
// differs from their display date are not lost.
func (a *Aggregator) expandRoutines(ctx context.Context, window timeutil.DateWindow, homeLoc *time.Location) ([]calendar.CanonicalEvent, error) {
	if a.rules == nil {
		return nil, nil
	}
	rules, err := a.rules.ListEnabledRules(ctx)
	if err != nil {
		return nil, err
	}
	widened := timeutil.DateWindow{Start: window.Start.AddDays(-1), End: window.End.AddDays(1)}
	return routine.ExpandAll(rules, widened, homeLoc), nil
}

func withProvenance(e calendar.CanonicalEvent, adapter calendar.Adapter) calendar.CanonicalEvent {
	if e.SourceType == "" {
		e.SourceType = adapter.SourceType()
	}
	if e.SourceCalendarName == "" {
		e.SourceCalendarName = adapter.Name()
	}
	return e
}

// Merge validates, de-duplicates and buckets events in loc. The first event of the
// highest priority source wins both for a shared ID and a shared recurrence key, so a
// persisted routine instance replaces its regenerated copy. Events whose display date
// falls outside window are dropped.
func Merge(events []calendar.CanonicalEvent, window timeutil.DateWindow, loc *time.Location) (calendar.DayBuckets, []Diagnostic) {
	var diagnostics []Diagnostic
	valid := make([]calendar.CanonicalEvent, 0, len(events))
	for _, e := range events {
		if err := e.Validate(); err != nil {
			log.Warnf("dropping event: %v", err)
			diagnostics = append(diagnostics, Diagnostic{Kind: MalformedEvent, Source: string(e.SourceType), Message: err.Error()})
			continue
		}
		valid = append(valid, e)
	}
	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].SourceType.Priority() < valid[j].SourceType.Priority()
	})

	seenIDs := make(map[string]struct{}, len(valid))
	seenKeys := make(map[string]struct{})
	buckets := calendar.DayBuckets{}
	for _, e := range valid {
		if _, dup := seenIDs[e.ID]; dup {
			continue
		}
		if e.RecurrenceKey != "" {
			if _, dup := seenKeys[e.RecurrenceKey]; dup {
				continue
			}
		}
		key := calendar.BucketKey(e, loc)
		date, err := timeutil.ParseDate(key)
		if err != nil || !window.Contains(date) {
			continue
		}
		seenIDs[e.ID] = struct{}{}
		if e.RecurrenceKey != "" {
			seenKeys[e.RecurrenceKey] = struct{}{}
		}
		buckets[key] = append(buckets[key], e)
	}
	for _, key := range buckets.Keys() {
		calendar.SortEvents(buckets[key])
	}
	return buckets, diagnostics
}
