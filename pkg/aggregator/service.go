package aggregator

import (
	"context"
	"fmt"

	"github.com/klokku/daybook/pkg/calendar"
	"github.com/klokku/daybook/pkg/timeutil"
	"github.com/klokku/daybook/pkg/user"
)

// AdapterSource supplies the current user's adapters.
type AdapterSource interface {
	ActiveAdapters(ctx context.Context) ([]calendar.Adapter, error)
}

// Service aggregates for the user in the context.
type Service struct {
	aggregator *Aggregator
	adapters   AdapterSource
}

func NewService(aggregator *Aggregator, adapters AdapterSource) *Service {
	return &Service{aggregator: aggregator, adapters: adapters}
}

// View aggregates window for the current user. An empty zone uses the user's display zone.
func (s *Service) View(ctx context.Context, window timeutil.DateWindow, zone string) (Result, error) {
	currentUser, err := user.CurrentUser(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if zone == "" {
		zone = currentUser.Settings.ViewZone()
	}
	adapters, err := s.adapters.ActiveAdapters(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to get calendar adapters: %w", err)
	}
	return s.aggregator.Aggregate(ctx, Request{
		Window:   window,
		Zone:     zone,
		HomeZone: currentUser.Settings.Timezone,
		Adapters: adapters,
	})
}
