package routine

import (
	"context"
	"fmt"

	"github.com/klokku/daybook/internal/event_bus"
	"github.com/klokku/daybook/internal/utils"
	"github.com/klokku/daybook/pkg/timeutil"
	"github.com/klokku/daybook/pkg/user"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

type UserLister interface {
	GetAllUsers(ctx context.Context) ([]user.User, error)
}

// MaterializeJob keeps the next HorizonDays of every user's routines persisted.
type MaterializeJob struct {
	users        UserLister
	materializer *Materializer
	clock        utils.Clock
	horizonDays  int
	cron         *cron.Cron
}

func NewMaterializeJob(users UserLister, materializer *Materializer, clock utils.Clock, horizonDays int) *MaterializeJob {
	if horizonDays < 1 {
		horizonDays = 1
	}
	return &MaterializeJob{
		users:        users,
		materializer: materializer,
		clock:        clock,
		horizonDays:  horizonDays,
	}
}

// Start schedules RunAll with a standard five-field cron spec.
func (j *MaterializeJob) Start(spec string) error {
	j.cron = cron.New()
	if _, err := j.cron.AddFunc(spec, func() { j.RunAll(context.Background()) }); err != nil {
		return fmt.Errorf("invalid materialize schedule %q: %w", spec, err)
	}
	j.cron.Start()
	log.Infof("routine materialization scheduled (%s, %d days ahead)", spec, j.horizonDays)
	return nil
}

// Stop stops the schedule and waits for a running pass to finish.
func (j *MaterializeJob) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}

// Subscribe re-materializes a user's horizon whenever their rules change.
func (j *MaterializeJob) Subscribe(bus *event_bus.EventBus) (unsubscribe func()) {
	return event_bus.SubscribeTyped[event_bus.RoutineRuleChanged](bus, event_bus.RoutineRuleChangedType,
		func(e event_bus.EventT[event_bus.RoutineRuleChanged]) error {
			if e.Data.Deleted {
				return nil
			}
			u, err := user.CurrentUser(e.Context())
			if err != nil {
				return err
			}
			_, err = j.RunForUser(e.Context(), u)
			return err
		})
}

func (j *MaterializeJob) RunAll(ctx context.Context) {
	users, err := j.users.GetAllUsers(ctx)
	if err != nil {
		log.Errorf("routine materialization: failed to list users: %v", err)
		return
	}
	for _, u := range users {
		if _, err := j.RunForUser(ctx, u); err != nil {
			log.Errorf("routine materialization failed for user %d: %v", u.Id, err)
		}
	}
}

// RunForUser materializes from today in the user's home zone through the horizon.
func (j *MaterializeJob) RunForUser(ctx context.Context, u user.User) (MaterializeResult, error) {
	loc, zone, warn := timeutil.LoadZoneOr(u.Settings.Timezone, "UTC")
	if warn != nil {
		log.Warnf("user %d: %v", u.Id, warn)
	}
	today := utils.Today(j.clock, loc)
	window := timeutil.DateWindow{Start: today, End: today.AddDays(j.horizonDays - 1)}
	return j.materializer.MaterializeRoutines(user.WithUser(ctx, u), window, zone)
}
