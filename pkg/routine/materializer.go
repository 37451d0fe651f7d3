package routine

import (
	"context"
	"fmt"

	"github.com/klokku/daybook/pkg/calendar"
	"github.com/klokku/daybook/pkg/timeutil"
	log "github.com/sirupsen/logrus"
)

// RuleSource supplies the current user's enabled rules.
type RuleSource interface {
	ListEnabledRules(ctx context.Context) ([]Rule, error)
}

// InstanceStore persists routine instances once per recurrence key.
type InstanceStore interface {
	CreateEventsIfAbsent(ctx context.Context, events []calendar.CanonicalEvent) (int, error)
}

type MaterializeResult struct {
	Created  int `json:"created"`
	Existing int `json:"existing"`
}

type Materializer struct {
	rules RuleSource
	store InstanceStore
}

func NewMaterializer(rules RuleSource, store InstanceStore) *Materializer {
	return &Materializer{rules: rules, store: store}
}

// MaterializeRoutines persists the current user's routine instances over window as
// native events. Repeated calls for the same window create nothing new.
func (m *Materializer) MaterializeRoutines(ctx context.Context, window timeutil.DateWindow, zoneName string) (MaterializeResult, error) {
	if err := window.Validate(); err != nil {
		return MaterializeResult{}, err
	}
	loc, err := timeutil.LoadZone(zoneName)
	if err != nil {
		return MaterializeResult{}, err
	}
	rules, err := m.rules.ListEnabledRules(ctx)
	if err != nil {
		return MaterializeResult{}, fmt.Errorf("failed to list routine rules: %w", err)
	}

	instances := ExpandAll(rules, window, loc)
	if len(instances) == 0 {
		return MaterializeResult{}, nil
	}
	created, err := m.store.CreateEventsIfAbsent(ctx, instances)
	if err != nil {
		log.Errorf("failed to materialize %d routine instances: %v", len(instances), err)
		return MaterializeResult{}, fmt.Errorf("%w: %v", calendar.ErrPersistenceFailure, err)
	}
	log.Debugf("materialized routines over %s: %d created, %d existing", window, created, len(instances)-created)
	return MaterializeResult{Created: created, Existing: len(instances) - created}, nil
}
