package native

import (
	"context"

	"github.com/klokku/daybook/pkg/calendar"
)

var (
	_ calendar.Adapter = (*Service)(nil)
	_ calendar.Store   = (*Service)(nil)
)

func (s *Service) Name() string {
	return string(calendar.SourceNative)
}

func (s *Service) SourceType() calendar.SourceType {
	return calendar.SourceNative
}

func (s *Service) Fetch(ctx context.Context, r calendar.TimeRange) ([]calendar.CanonicalEvent, error) {
	return s.GetEvents(ctx, r.From, r.To)
}
