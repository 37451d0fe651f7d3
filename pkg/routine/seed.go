package routine

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/klokku/daybook/pkg/timeutil"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Routines []seedRule `yaml:"routines"`
}

type seedRule struct {
	ID         string   `yaml:"id"`
	Title      string   `yaml:"title"`
	Kind       string   `yaml:"kind"`
	Time       string   `yaml:"time"`
	Days       []string `yaml:"days"`
	Duration   int      `yaml:"duration"`
	ValidFrom  string   `yaml:"validFrom"`
	ValidUntil string   `yaml:"validUntil"`
	Enabled    *bool    `yaml:"enabled"`
}

var dayGroups = map[string][]time.Weekday{
	"daily":    {time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday},
	"weekdays": {time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
	"weekends": {time.Saturday, time.Sunday},
}

// LoadSeedFile reads routine rules produced by onboarding from a YAML file:
//
//	routines:
//	  - id: wake
//	    title: Wake up
//	    kind: wake
//	    time: "07:00"
//	    days: [weekdays]
//	    duration: 15
func LoadSeedFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routine seed file: %w", err)
	}
	return ParseSeed(data)
}

func ParseSeed(data []byte) ([]Rule, error) {
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse routine seed: %w", err)
	}

	rules := make([]Rule, 0, len(file.Routines))
	seen := make(map[string]bool, len(file.Routines))
	for i, s := range file.Routines {
		rule, err := s.toRule()
		if err != nil {
			return nil, fmt.Errorf("routine #%d: %w", i+1, err)
		}
		if seen[rule.ID] {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidRule, rule.ID)
		}
		seen[rule.ID] = true
		rules = append(rules, rule)
	}
	return rules, nil
}

func (s seedRule) toRule() (Rule, error) {
	clock, err := timeutil.ParseClock(s.Time)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	rule := Rule{
		ID:              s.ID,
		Title:           s.Title,
		Kind:            Kind(strings.ToLower(s.Kind)),
		TimeOfDay:       clock,
		DurationMinutes: s.Duration,
		Enabled:         s.Enabled == nil || *s.Enabled,
	}
	if rule.Kind == "" {
		rule.Kind = KindCustom
	}
	if rule.DaysOfWeek, err = parseDays(s.Days); err != nil {
		return Rule{}, err
	}
	if s.ValidFrom != "" {
		if rule.ValidFrom, err = timeutil.ParseDate(s.ValidFrom); err != nil {
			return Rule{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
	}
	if s.ValidUntil != "" {
		if rule.ValidUntil, err = timeutil.ParseDate(s.ValidUntil); err != nil {
			return Rule{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
	}
	return rule, rule.Validate()
}

func parseDays(names []string) ([]time.Weekday, error) {
	seen := make(map[time.Weekday]bool, 7)
	var days []time.Weekday
	add := func(d time.Weekday) {
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	for _, name := range names {
		if group, ok := dayGroups[strings.ToLower(strings.TrimSpace(name))]; ok {
			for _, d := range group {
				add(d)
			}
			continue
		}
		d, err := ParseWeekday(name)
		if err != nil {
			return nil, err
		}
		add(d)
	}
	return days, nil
}
