package connection

import (
	"context"
	"fmt"

	"github.com/klokku/daybook/pkg/calendar"
	"github.com/klokku/daybook/pkg/user"
	log "github.com/sirupsen/logrus"
)

type AdapterBuilder interface {
	Build(ctx context.Context, userId int, c Connection) (calendar.Adapter, error)
}

type Service struct {
	repo    Repository
	builder AdapterBuilder
	native  calendar.Adapter
}

func NewService(repo Repository, builder AdapterBuilder, native calendar.Adapter) *Service {
	return &Service{repo: repo, builder: builder, native: native}
}

func (s *Service) ListConnections(ctx context.Context) ([]Connection, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.GetConnections(ctx, userId)
}

func (s *Service) StoreConnection(ctx context.Context, c Connection) (Connection, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Connection{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Connection{}, err
	}
	stored, err := s.repo.StoreConnection(ctx, userId, c)
	if err != nil {
		return Connection{}, err
	}
	log.Infof("user %d connected %s calendar %s", userId, stored.Provider, stored.DisplayName())
	return stored, nil
}

func (s *Service) DeleteConnection(ctx context.Context, id int) error {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.DeleteConnection(ctx, userId, id)
}

// ActiveAdapters returns the adapters of the current user, native first. A connection
// whose adapter cannot be built is returned as an adapter that always fails, so the
// aggregation reports it like any other unavailable source.
func (s *Service) ActiveAdapters(ctx context.Context) ([]calendar.Adapter, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	connections, err := s.repo.GetConnections(ctx, userId)
	if err != nil {
		return nil, err
	}

	adapters := make([]calendar.Adapter, 0, len(connections)+1)
	if s.native != nil {
		adapters = append(adapters, s.native)
	}
	for _, c := range connections {
		if !c.Enabled {
			continue
		}
		adapter, err := s.builder.Build(ctx, userId, c)
		if err != nil {
			log.Warnf("connection %d (%s) is unusable: %v", c.Id, c.Provider, err)
			adapters = append(adapters, unavailable(c, err))
			continue
		}
		adapters = append(adapters, adapter)
	}
	return adapters, nil
}

func unavailable(c Connection, cause error) calendar.Adapter {
	source := calendar.SourceType(c.Provider)
	return calendar.AdapterFunc{
		AdapterName: string(c.Provider) + ":" + c.DisplayName(),
		Source:      source,
		FetchFunc: func(ctx context.Context, r calendar.TimeRange) ([]calendar.CanonicalEvent, error) {
			return nil, fmt.Errorf("%w: %v", calendar.ErrAdapterUnavailable, cause)
		},
	}
}
