package app

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klokku/daybook/internal/config"
	"github.com/klokku/daybook/internal/event_bus"
	"github.com/klokku/daybook/internal/utils"
	"github.com/klokku/daybook/pkg/aggregator"
	"github.com/klokku/daybook/pkg/connection"
	"github.com/klokku/daybook/pkg/native"
	"github.com/klokku/daybook/pkg/position"
	"github.com/klokku/daybook/pkg/reschedule"
	"github.com/klokku/daybook/pkg/routine"
	"github.com/klokku/daybook/pkg/user"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Clock    utils.Clock
	EventBus *event_bus.EventBus

	UserService user.Service
	UserHandler *user.Handler

	NativeService *native.Service
	NativeHandler *native.Handler

	RoutineService *routine.Service
	Materializer   *routine.Materializer
	MaterializeJob *routine.MaterializeJob
	RoutineHandler *routine.Handler

	ConnectionService *connection.Service
	ConnectionHandler *connection.Handler

	Aggregator        *aggregator.Aggregator
	AggregatorService *aggregator.Service
	AggregatorHandler *aggregator.Handler

	Resolver          *reschedule.Resolver
	RescheduleHandler *reschedule.Handler
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(db *pgxpool.Pool, cfg config.Application) *Dependencies {
	deps := &Dependencies{}

	deps.Clock = &utils.SystemClock{}
	deps.EventBus = event_bus.NewEventBus()

	deps.UserService = user.NewUserService(user.NewUserRepo(db), cfg.Calendar.DefaultTimezone)
	deps.UserHandler = user.NewHandler(deps.UserService)

	deps.NativeService = native.NewService(native.NewRepository(db))
	deps.NativeHandler = native.NewHandler(deps.NativeService)

	deps.RoutineService = routine.NewService(routine.NewRepository(db), deps.EventBus)
	deps.Materializer = routine.NewMaterializer(deps.RoutineService, deps.NativeService)
	deps.MaterializeJob = routine.NewMaterializeJob(deps.UserService, deps.Materializer, deps.Clock, cfg.Routines.HorizonDays)
	deps.RoutineHandler = routine.NewHandler(deps.RoutineService, deps.Materializer)

	connectionRepo := connection.NewRepository(db)
	factory := connection.NewFactory(connectionRepo, connection.FactoryConfig{
		Google:         connection.OAuthClient{ClientId: cfg.Google.ClientId, ClientSecret: cfg.Google.ClientSecret},
		Outlook:        connection.OAuthClient{ClientId: cfg.Outlook.ClientId, ClientSecret: cfg.Outlook.ClientSecret},
		OutlookTenant:  cfg.Outlook.Tenant,
		OutlookBaseURL: cfg.Outlook.BaseURL,
		Timeout:        cfg.Calendar.AdapterTimeout,
	})
	deps.ConnectionService = connection.NewService(connectionRepo, factory, deps.NativeService)
	deps.ConnectionHandler = connection.NewHandler(deps.ConnectionService)

	deps.Aggregator = aggregator.New(deps.RoutineService, aggregator.Config{
		DefaultZone:    cfg.Calendar.DefaultTimezone,
		AdapterTimeout: cfg.Calendar.AdapterTimeout,
		MaxConcurrency: cfg.Calendar.MaxConcurrency,
	})
	deps.AggregatorService = aggregator.NewService(deps.Aggregator, deps.ConnectionService)
	deps.AggregatorHandler = aggregator.NewHandler(deps.AggregatorService, position.Minimums{
		position.ViewDay:   cfg.Positioning.DayMinHeight,
		position.ViewWeek:  cfg.Positioning.WeekMinHeight,
		position.ViewMonth: cfg.Positioning.MonthMinHeight,
	}, deps.Clock)

	deps.Resolver = reschedule.NewResolver(deps.NativeService, deps.EventBus)
	deps.RescheduleHandler = reschedule.NewHandler(deps.AggregatorService, deps.Resolver)

	return deps
}
