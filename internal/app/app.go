package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/semmidev/dbkeeper/internal/adapter/compressor"
	"github.com/semmidev/dbkeeper/internal/adapter/database"
	"github.com/semmidev/dbkeeper/internal/adapter/notify"
	"github.com/semmidev/dbkeeper/internal/adapter/storage"
	"github.com/semmidev/dbkeeper/internal/config"
	"github.com/semmidev/dbkeeper/internal/domain"
	"github.com/semmidev/dbkeeper/internal/infrastructure/logger"
	"github.com/semmidev/dbkeeper/internal/infrastructure/metrics"
	"github.com/semmidev/dbkeeper/internal/infrastructure/scheduler"
	"github.com/semmidev/dbkeeper/internal/usecase"
)

type App struct {
	config       *config.Config
	logger       *logger.Logger
	desc         domain.DumpDescriptor
	engine       domain.DumpEngine
	notifier     domain.Notifier
	metrics      *metrics.Recorder
	orchestrator *usecase.Orchestrator
	scheduler    *scheduler.Scheduler
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := logger.New(cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	desc := cfg.DumpDescriptor()
	log.Infof("Starting %s for database %s (%s mode)", cfg.App.Name, desc.DatabaseName, desc.Mode)
	dbLog := log.With("database", desc.DatabaseName)

	engine := database.NewPostgreSQL(
		database.NewExecRunner(),
		database.NewPgxInspector(),
		dbLog,
		database.Options{
			DumpTimeout:    cfg.Backup.DumpTimeout,
			RestoreTimeout: cfg.Backup.RestoreTimeout,
		},
	)

	store, err := storage.New(&cfg.Remote)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s storage: %w", cfg.Remote.Type, err)
	}
	if err := store.EnsureFolder(ctx, cfg.Remote.Folder); err != nil {
		return nil, fmt.Errorf("failed to prepare remote folder %s: %w", cfg.Remote.Folder, err)
	}
	log.Infof("✓ Remote storage ready: %s/%s", cfg.Remote.Type, cfg.Remote.Folder)

	var notifier domain.Notifier = notify.Nop{}
	if cfg.Notify.Telegram.Enabled {
		tg, err := notify.NewTelegram(&cfg.Notify.Telegram)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telegram: %w", err)
		}
		notifier = tg
		log.Infof("✓ Telegram notifications enabled")
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone: %w", err)
	}

	recorder := metrics.New()
	orchestrator := usecase.NewOrchestrator(
		engine,
		store,
		compressor.NewGzip(),
		notifier,
		recorder,
		dbLog,
		usecase.Options{
			Compress:        cfg.Backup.Compress,
			StagingDir:      cfg.StagingDirectory(),
			DisableTriggers: cfg.Backup.DisableTriggers,
		},
	)

	return &App{
		config:       cfg,
		logger:       log,
		desc:         desc,
		engine:       engine,
		notifier:     notifier,
		metrics:      recorder,
		orchestrator: orchestrator,
		scheduler:    scheduler.New(loc, log),
	}, nil
}

// Run schedules the daily jobs and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.engine.Ping(ctx, a.desc); err != nil {
		a.logger.Warnf("Database %s is not reachable yet: %v", a.desc.DatabaseName, err)
	} else {
		a.logger.Infof("✓ Connected to %s", a.desc.DatabaseName)
	}

	entries := []domain.ScheduleEntry{{
		Name:   "backup " + a.desc.DatabaseName,
		Hour:   a.config.Backup.Schedule.Hour,
		Minute: a.config.Backup.Schedule.Minute,
		Job:    a.Backup,
	}}
	if a.config.Report.Enabled {
		report := usecase.NewReport(a.config.Report.Path, a.notifier, a.logger)
		entries = append(entries, domain.ScheduleEntry{
			Name:   "report",
			Hour:   a.config.Report.At.Hour,
			Minute: a.config.Report.At.Minute,
			Job:    report.Execute,
		})
	}

	ids := make([]cron.EntryID, 0, len(entries))
	for _, entry := range entries {
		id, err := a.scheduler.Schedule(entry)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	a.scheduler.Start()
	for i, entry := range entries {
		a.logger.Infof("Scheduled %s daily at %02d:%02d, next run %s",
			entry.Name, entry.Hour, entry.Minute, a.scheduler.Next(ids[i]).Format(time.RFC3339))
	}

	errCh := make(chan error, 1)
	if a.config.Metrics.Enabled {
		go func() {
			a.logger.Infof("Serving metrics on %s/metrics", a.config.Metrics.Addr)
			errCh <- a.metrics.Serve(ctx, a.config.Metrics.Addr)
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Backup runs one backup with the configured retention.
func (a *App) Backup(ctx context.Context) error {
	return a.orchestrator.RunBackup(ctx, a.desc, a.config.Backup.RetentionDays)
}

func (a *App) Restore(ctx context.Context, req domain.RestoreRequest) error {
	return a.orchestrator.RestoreLatest(ctx, a.desc, req)
}

func (a *App) List(ctx context.Context) ([]domain.RemoteObject, error) {
	return a.orchestrator.List(ctx, a.desc)
}

func (a *App) Descriptor() domain.DumpDescriptor {
	return a.desc
}

func (a *App) Shutdown() {
	a.logger.Infof("Shutting down application...")
	a.scheduler.Stop()
	a.logger.Close()
}
