package usecase

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/semmidev/dbkeeper/internal/domain"
)

// RestoreLatest downloads the newest backup of desc and loads it into the
// database. It is destructive and runs only for a confirmed request. The staged
// file is kept after a successful restore.
func (o *Orchestrator) RestoreLatest(ctx context.Context, desc domain.DumpDescriptor, req domain.RestoreRequest) (err error) {
	if req.RequestedBy == "" || req.ConfirmDatabase != desc.DatabaseName {
		return domain.ErrNotConfirmed
	}

	release, ok := o.locks.TryLock(desc.DatabaseName)
	if !ok {
		return domain.ErrAlreadyRunning
	}
	defer release()

	tag := "[" + desc.DatabaseName + "]"
	defer func() {
		if !req.DryRun {
			o.metrics.ObserveRestore(err)
		}
		if err != nil {
			o.logger.Errorf("%s Restore failed: %v", tag, err)
		}
	}()

	o.logger.Warnf("%s Restore requested by %s (dry run: %t)", tag, req.RequestedBy, req.DryRun)

	// The listing is a snapshot; nothing prunes while the lock is held.
	objects, err := o.store.ListAll(ctx)
	if err != nil {
		return classified(domain.KindDownloadFailed, "list remote backups", "", err)
	}

	latest, ok := Latest(WithPrefix(objects, desc.FilePrefix()))
	if !ok {
		return domain.NewError(domain.KindNoBackupFound, "restore latest", desc.FilePrefix()+"*", nil)
	}
	o.logger.Infof("%s Latest backup: %s (modified %s)", tag, latest.Name, latest.ModifiedAt.Format("2006-01-02 15:04:05Z07:00"))

	if err := os.MkdirAll(o.opts.StagingDir, 0o755); err != nil {
		return domain.NewError(domain.KindDownloadFailed, "create staging directory", o.opts.StagingDir, err)
	}

	staged := filepath.Join(o.opts.StagingDir, latest.Name)
	if err := o.store.Download(ctx, latest.Name, staged); err != nil {
		return classified(domain.KindDownloadFailed, "download "+latest.Name, staged, err)
	}
	o.logger.Infof("%s Downloaded to %s", tag, staged)

	if ext := o.compressor.Extension(); strings.HasSuffix(staged, ext) {
		plain := strings.TrimSuffix(staged, ext)
		if err := o.compressor.Decompress(staged, plain); err != nil {
			return classified(domain.KindRestoreFailed, "decompress backup", staged, err)
		}
		staged = plain
	}

	switch desc.Mode {
	case domain.ModeDataOnly:
		err = o.engine.RestoreDataOnly(ctx, desc, staged, domain.RestoreOptions{
			DryRun:          req.DryRun,
			DisableTriggers: o.opts.DisableTriggers,
		})
	case domain.ModeFull:
		if req.DryRun {
			o.logger.Infof("%s Dry run: would run pg_restore from %s", tag, staged)
			return nil
		}
		err = o.engine.RestoreFull(ctx, desc, staged)
	default:
		err = domain.NewError(domain.KindRestoreFailed, "restore", staged, domain.ErrConfigInvalid)
	}
	if err != nil {
		return err
	}

	if req.DryRun {
		o.logger.Infof("%s Dry run finished, staged file: %s", tag, staged)
	} else {
		o.logger.Infof("%s Restore completed from %s", tag, staged)
	}
	return nil
}
