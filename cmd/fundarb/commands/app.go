package commands

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"

	"github.com/wonny/fundarb/internal/navcache"
	"github.com/wonny/fundarb/internal/notify"
	"github.com/wonny/fundarb/internal/pipeline"
	"github.com/wonny/fundarb/internal/scheduler"
	"github.com/wonny/fundarb/internal/scheduler/jobs"
	"github.com/wonny/fundarb/pkg/config"
	"github.com/wonny/fundarb/pkg/database"
	"github.com/wonny/fundarb/pkg/logger"
	"github.com/wonny/fundarb/pkg/redis"
)

// ledgerPrefix namespaces the scheduler keys in Redis
const ledgerPrefix = "fundarb"

// app holds the wired components shared by the commands
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	detector *pipeline.Detector
	store    *navcache.Store
	notifier *notify.Notifier
	db       *database.DB // set when the ledger lives in PostgreSQL

	closers []func()
}

// Close releases ledger connections
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// loadConfig loads the --config env file (if any) and then the environment
func loadConfig() (*config.Config, error) {
	if configFile != "" {
		if err := godotenv.Load(configFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", configFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// initApp wires config, logger, pipeline and notifier
func initApp() (*app, error) {
	// 1. Load config
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Build pipeline
	detector, store, err := pipeline.Build(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	// 4. Create notifier
	notifier := notify.New(cfg.Notify, log)

	return &app{
		cfg:      cfg,
		log:      log,
		detector: detector,
		store:    store,
		notifier: notifier,
	}, nil
}

// openLedger opens the fired ledger selected by SCHEDULE_LEDGER
func (a *app) openLedger(ctx context.Context) (scheduler.Ledger, error) {
	switch a.cfg.Schedule.Ledger {
	case "redis":
		client, err := redis.New(a.cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { client.Close() })
		a.log.Info("Using Redis fired ledger")
		return redis.NewFiredLedger(client, ledgerPrefix), nil

	case "postgres":
		db, err := database.New(a.cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.db = db
		ledger, err := database.NewFiredLedger(ctx, db)
		if err != nil {
			return nil, fmt.Errorf("prepare fired ledger: %w", err)
		}
		a.log.Info("Using PostgreSQL fired ledger")
		return ledger, nil

	default:
		a.log.WithField("path", a.cfg.Schedule.LedgerPath).Info("Using file fired ledger")
		return scheduler.NewFileLedger(a.cfg.Schedule.LedgerPath), nil
	}
}

// initScheduler creates the scheduler with its jobs registered
func (a *app) initScheduler(ctx context.Context) (*scheduler.Scheduler, error) {
	ledger, err := a.openLedger(ctx)
	if err != nil {
		return nil, err
	}

	mode, err := pipeline.ParseMode(a.cfg.Schedule.Mode)
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(ledger, a.log,
		scheduler.WithPollInterval(a.cfg.Schedule.PollInterval),
		scheduler.WithLocation(a.cfg.Location()),
	)

	scan, err := jobs.NewOpportunityScanJob(a.detector, a.notifier, mode, a.cfg.Schedule.TriggerTime, a.log)
	if err != nil {
		return nil, err
	}
	if err := sched.AddJob(scan); err != nil {
		return nil, err
	}
	if err := sched.AddJob(jobs.NewNavCacheCleanupJob(a.store, a.cfg.Cache.KeepDays, a.log)); err != nil {
		return nil, err
	}

	return sched, nil
}
