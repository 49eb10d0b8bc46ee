package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"hirelink-backend/internal/availability"
	"hirelink-backend/internal/calendar"
	"hirelink-backend/internal/notify"
	"hirelink-backend/internal/reconcile"
	"hirelink-backend/internal/scheduling"
	"hirelink-backend/internal/shared/config"
	"hirelink-backend/internal/shared/server"
	"hirelink-backend/internal/shared/storage/db"
)

// App holds the shared dependencies for the API server and the worker.
type App struct {
	Config    config.Config
	Router    *gin.Engine
	DB        *sql.DB
	DBOptions db.Options

	Calendar calendar.Client
	Notifier notify.Notifier

	AvailabilityRepo availability.Repo
	SchedulingRepo   scheduling.Repo

	AvailabilityService *availability.Service
	SchedulingService   *scheduling.Service

	AvailabilityHandler *availability.Handler
	SchedulingHandler   *scheduling.Handler

	Reconciler *reconcile.Runner
}

// Build prepares shared dependencies for the API server and wires the router.
func Build(cfg config.Config) (*App, error) {
	return build(cfg, db.OptionsFromEnv(db.DefaultServerOptions()))
}

// BuildWorker prepares the same dependency graph for the reconciliation
// worker, which holds at most one transaction at a time and gets the smaller
// connection pool.
func BuildWorker(cfg config.Config) (*App, error) {
	return build(cfg, db.OptionsFromEnv(db.DefaultWorkerOptions()))
}

func build(cfg config.Config, dbOpts db.Options) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg, dbOpts)
	if err != nil {
		return nil, err
	}

	cal, err := buildCalendar(ctx, cfg)
	if err != nil {
		return nil, err
	}

	notifier, err := buildNotifier(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:    cfg,
		DB:        sqlDB,
		DBOptions: dbOpts,
		Calendar:  cal,
		Notifier:  notifier,
	}
	buildServices(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:              app.Config,
		AvailabilityHandler: app.AvailabilityHandler,
		SchedulingHandler:   app.SchedulingHandler,
	})
	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config, opts db.Options) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildCalendar(ctx context.Context, cfg config.Config) (calendar.Client, error) {
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" || cfg.GoogleRefreshToken == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: google calendar not configured; using local calendar")
			return calendar.NewLocalClient(), nil
		}
		return nil, fmt.Errorf("google calendar credentials are required")
	}
	return calendar.NewGoogleClient(ctx, calendar.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RefreshToken: cfg.GoogleRefreshToken,
		CalendarID:   cfg.GoogleCalendarID,
	})
}

func buildNotifier(ctx context.Context, cfg config.Config) (notify.Notifier, error) {
	if strings.TrimSpace(cfg.NotifyQueueURL) == "" {
		return notify.LogNotifier{}, nil
	}
	return notify.NewSQSNotifier(ctx, cfg.NotifyQueueURL, cfg.AWSRegion)
}

func buildServices(app *App) {
	if app.DB != nil {
		app.AvailabilityRepo = &availability.PGRepo{DB: app.DB}
		app.SchedulingRepo = &scheduling.PGRepo{DB: app.DB}
	} else {
		app.AvailabilityRepo = availability.NewMemoryRepo()
		app.SchedulingRepo = scheduling.NewMemoryRepo()
	}

	app.AvailabilityService = &availability.Service{Repo: app.AvailabilityRepo}
	app.SchedulingService = &scheduling.Service{
		Repo:             app.SchedulingRepo,
		AvailabilityRepo: app.AvailabilityRepo,
		Calendar:         app.Calendar,
		Notifier:         app.Notifier,
		HorizonDays:      app.Config.SlotHorizonDays,
		CalendarTimeout:  app.Config.ExternalCallTimeout,
	}

	app.AvailabilityHandler = availability.NewHandler(app.AvailabilityService)
	app.SchedulingHandler = scheduling.NewHandler(app.SchedulingService)

	app.Reconciler = &reconcile.Runner{
		Repo:                app.SchedulingRepo,
		Calendar:            app.Calendar,
		Notifier:            app.Notifier,
		OfferWindow:         app.Config.OfferWindow,
		ConfirmWindow:       app.Config.ConfirmWindow,
		SlotStartMargin:     app.Config.SlotStartMargin,
		ExternalCallTimeout: app.Config.ExternalCallTimeout,
		LockKey:             reconcile.DefaultLockKey,
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
