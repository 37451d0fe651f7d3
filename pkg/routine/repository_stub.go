package routine

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type RepositoryStub struct {
	mu    sync.RWMutex
	rules map[int]map[string]Rule // userId -> ruleId -> rule
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{rules: make(map[int]map[string]Rule)}
}

func (r *RepositoryStub) ListRules(ctx context.Context, userId int) ([]Rule, error) {
	return r.list(userId, false), nil
}

func (r *RepositoryStub) ListEnabledRules(ctx context.Context, userId int) ([]Rule, error) {
	return r.list(userId, true), nil
}

func (r *RepositoryStub) list(userId int, enabledOnly bool) []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rules := make([]Rule, 0, len(r.rules[userId]))
	for _, rule := range r.rules[userId] {
		if enabledOnly && !rule.Enabled {
			continue
		}
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].TimeOfDay.Minutes() != rules[j].TimeOfDay.Minutes() {
			return rules[i].TimeOfDay.Minutes() < rules[j].TimeOfDay.Minutes()
		}
		return rules[i].ID < rules[j].ID
	})
	return rules
}

func (r *RepositoryStub) GetRule(ctx context.Context, userId int, ruleId string) (Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, ok := r.rules[userId][ruleId]
	if !ok {
		return Rule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, ruleId)
	}
	return rule, nil
}

func (r *RepositoryStub) StoreRule(ctx context.Context, userId int, rule Rule) (Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rules[userId] == nil {
		r.rules[userId] = make(map[string]Rule)
	}
	r.rules[userId][rule.ID] = rule
	return rule, nil
}

func (r *RepositoryStub) DeleteRule(ctx context.Context, userId int, ruleId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rules[userId][ruleId]; !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, ruleId)
	}
	delete(r.rules[userId], ruleId)
	return nil
}

// Reset clears the stub (useful between tests)
func (r *RepositoryStub) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = make(map[int]map[string]Rule)
}
