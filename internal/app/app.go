package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klokku/daybook/internal/config"
	"github.com/klokku/daybook/internal/database"
	"github.com/klokku/daybook/pkg/routine"
	"github.com/klokku/daybook/pkg/user"
	log "github.com/sirupsen/logrus"
)

// Application wires configuration, database, router, and server lifecycle.
type Application struct {
	cfg    config.Application
	db     *pgxpool.Pool
	deps   *Dependencies
	router *mux.Router
	srv    *http.Server
}

// NewApplication constructs the full HTTP application, ready to Run().
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	// DB + migrations
	if err := database.Migrate(cfg.Database); err != nil {
		return nil, err
	}
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}

	r := mux.NewRouter()

	deps := BuildDependencies(db, cfg)
	SetupMiddleware(r, deps)
	RegisterRoutes(r, deps)

	srv := &http.Server{
		Handler:      r,
		Addr:         cfg.Listen,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Application{cfg: cfg, db: db, deps: deps, router: r, srv: srv}, nil
}

// Run seeds routines, starts background jobs and the HTTP server, and blocks until
// the process is interrupted.
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer a.db.Close()

	if a.cfg.Routines.SeedFile != "" {
		a.importSeed(ctx, a.cfg.Routines.SeedFile)
	}

	if a.cfg.Routines.Materialize {
		unsubscribe := a.deps.MaterializeJob.Subscribe(a.deps.EventBus)
		defer unsubscribe()
		if err := a.deps.MaterializeJob.Start(a.cfg.Routines.Cron); err != nil {
			return err
		}
		defer a.deps.MaterializeJob.Stop()
	}

	errs := make(chan error, 1)
	go func() {
		log.Infof("Starting server on %s", a.srv.Addr)
		errs <- a.srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.srv.Shutdown(shutdownCtx)
}

// importSeed stores the seed routines for every user that has none yet.
func (a *Application) importSeed(ctx context.Context, path string) {
	rules, err := routine.LoadSeedFile(path)
	if err != nil {
		log.Errorf("failed to load routine seed: %v", err)
		return
	}
	users, err := a.deps.UserService.GetAllUsers(ctx)
	if err != nil {
		log.Errorf("failed to list users for routine seed: %v", err)
		return
	}
	for _, u := range users {
		imported, err := a.deps.RoutineService.ImportSeed(user.WithUser(ctx, u), rules)
		if err != nil {
			log.Errorf("failed to import routine seed for user %d: %v", u.Id, err)
			continue
		}
		if imported > 0 {
			log.Infof("imported %d routine rules for user %d", imported, u.Id)
		}
	}
}
