package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/semmidev/dbkeeper/internal/domain"
)

type Logger interface {
	Infow(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct {
	log Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Infow("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}

// Scheduler fires jobs at fixed wall-clock times. Each firing runs on its own
// goroutine. Firings missed while the process was down are not replayed.
type Scheduler struct {
	cron   *cron.Cron
	logger Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(loc *time.Location, logger Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	cl := cronLogger{log: logger}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddJob registers job under a six-field cron spec. Errors and panics from the
// job are logged and never stop later firings.
func (s *Scheduler) AddJob(name, spec string, job func(context.Context) error) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, func() {
		s.run(name, job)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	return id, nil
}

// Schedule registers a job firing once a day at entry.Hour:entry.Minute.
func (s *Scheduler) Schedule(entry domain.ScheduleEntry) (cron.EntryID, error) {
	if entry.Hour < 0 || entry.Hour > 23 || entry.Minute < 0 || entry.Minute > 59 {
		return 0, fmt.Errorf("failed to schedule %s: invalid time %02d:%02d", entry.Name, entry.Hour, entry.Minute)
	}
	return s.AddJob(entry.Name, entry.Spec(), entry.Job)
}

func (s *Scheduler) run(name string, job func(context.Context) error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("Scheduled job panicked", "job", name, "panic", r)
		}
	}()

	s.logger.Infow("Scheduled job started", "job", name)
	if err := job(s.ctx); err != nil {
		s.logger.Errorw("Scheduled job failed", "job", name, "error", err, "duration", time.Since(start).Round(time.Millisecond))
		return
	}
	s.logger.Infow("Scheduled job completed", "job", name, "duration", time.Since(start).Round(time.Millisecond))
}

// Next returns the next firing time of the entry, zero if unknown.
func (s *Scheduler) Next(id cron.EntryID) time.Time {
	return s.cron.Entry(id).Next
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new firings, cancels the context handed to running jobs and
// waits for them to return.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	s.cancel()
	<-ctx.Done()
}
