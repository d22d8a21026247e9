package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/semmidev/dbkeeper/internal/domain"
)

type Metrics interface {
	ObserveBackup(d time.Duration, err error)
	ObserveRestore(err error)
	ObservePrune(deleted, failed int)
}

type nopMetrics struct{}

func (nopMetrics) ObserveBackup(time.Duration, error) {}
func (nopMetrics) ObserveRestore(error)               {}
func (nopMetrics) ObservePrune(int, int)              {}

type Options struct {
	// Compress gzips the dump before upload.
	Compress bool
	// StagingDir receives downloaded backups before restore.
	StagingDir      string
	DisableTriggers bool
}

// Orchestrator runs the backup and restore pipelines. At most one pipeline runs
// per database at a time.
type Orchestrator struct {
	engine     domain.DumpEngine
	store      domain.RemoteStore
	compressor domain.Compressor
	notifier   domain.Notifier
	metrics    Metrics
	logger     domain.Logger
	opts       Options
	locks      *keyedMutex
	now        func() time.Time
}

func NewOrchestrator(
	engine domain.DumpEngine,
	store domain.RemoteStore,
	compressor domain.Compressor,
	notifier domain.Notifier,
	metrics Metrics,
	logger domain.Logger,
	opts Options,
) *Orchestrator {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Orchestrator{
		engine:     engine,
		store:      store,
		compressor: compressor,
		notifier:   notifier,
		metrics:    metrics,
		logger:     logger,
		opts:       opts,
		locks:      newKeyedMutex(),
		now:        time.Now,
	}
}

// classified keeps err as is when it already carries a kind, otherwise tags it.
func classified(kind domain.Kind, op, path string, err error) error {
	if _, ok := domain.KindOf(err); ok {
		return err
	}
	return domain.NewError(kind, op, path, err)
}

func (o *Orchestrator) notify(ctx context.Context, format string, args ...interface{}) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(ctx, fmt.Sprintf(format, args...)); err != nil {
		o.logger.Warnf("Failed to send notification: %v", err)
	}
}

// List returns the remote backups of desc, newest first.
func (o *Orchestrator) List(ctx context.Context, desc domain.DumpDescriptor) ([]domain.RemoteObject, error) {
	objects, err := o.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list remote backups: %w", err)
	}

	objects = WithPrefix(objects, desc.FilePrefix())
	sortNewestFirst(objects)
	return objects, nil
}
