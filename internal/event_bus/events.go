package event_bus

import "time"

const (
	RoutineRuleChangedType EventType = "routine.rule.changed"
	EventRescheduledType   EventType = "calendar.event.rescheduled"
)

type RoutineRuleChanged struct {
	UserId  int
	RuleId  string
	Deleted bool
}

type EventRescheduled struct {
	UserId   int
	EventId  string
	OldStart time.Time
	OldEnd   time.Time
	NewStart time.Time
	NewEnd   time.Time
}
