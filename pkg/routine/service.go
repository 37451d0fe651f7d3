package routine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/klokku/daybook/internal/event_bus"
	"github.com/klokku/daybook/pkg/user"
	log "github.com/sirupsen/logrus"
)

type Service struct {
	repo Repository
	bus  *event_bus.EventBus
}

func NewService(repo Repository, bus *event_bus.EventBus) *Service {
	return &Service{repo: repo, bus: bus}
}

func (s *Service) ListRules(ctx context.Context) ([]Rule, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.ListRules(ctx, userId)
}

// ListEnabledRules returns the rules the aggregation expands for the current user.
func (s *Service) ListEnabledRules(ctx context.Context) ([]Rule, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.ListEnabledRules(ctx, userId)
}

func (s *Service) StoreRule(ctx context.Context, rule Rule) (Rule, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Rule{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if err := rule.Validate(); err != nil {
		return Rule{}, err
	}
	stored, err := s.repo.StoreRule(ctx, userId, rule)
	if err != nil {
		return Rule{}, fmt.Errorf("failed to store rule: %w", err)
	}
	s.publishChange(ctx, event_bus.RoutineRuleChanged{UserId: userId, RuleId: stored.ID})
	return stored, nil
}

func (s *Service) DeleteRule(ctx context.Context, ruleId string) error {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	if err := s.repo.DeleteRule(ctx, userId, ruleId); err != nil {
		return err
	}
	s.publishChange(ctx, event_bus.RoutineRuleChanged{UserId: userId, RuleId: ruleId, Deleted: true})
	return nil
}

// ImportSeed stores rules for the current user unless they already have some.
// It returns the number of rules imported.
func (s *Service) ImportSeed(ctx context.Context, rules []Rule) (int, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get current user: %w", err)
	}
	existing, err := s.repo.ListRules(ctx, userId)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		log.Debugf("user %d already has %d routine rules, skipping seed", userId, len(existing))
		return 0, nil
	}
	for _, rule := range rules {
		if _, err := s.repo.StoreRule(ctx, userId, rule); err != nil {
			return 0, fmt.Errorf("failed to import rule %s: %w", rule.ID, err)
		}
	}
	if len(rules) > 0 {
		s.publishChange(ctx, event_bus.RoutineRuleChanged{UserId: userId})
	}
	return len(rules), nil
}

func (s *Service) publishChange(ctx context.Context, change event_bus.RoutineRuleChanged) {
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishNew(ctx, event_bus.RoutineRuleChangedType, change); err != nil {
		log.Warnf("routine change of user %d not fully handled: %v", change.UserId, err)
	}
}
