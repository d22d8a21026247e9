package usecase

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/semmidev/dbkeeper/internal/domain"
)

// RunBackup dumps desc, uploads the dump, removes the local copy and prunes
// remote backups older than thresholdDays. Only dump and upload failures are
// returned; cleanup problems are logged as warnings.
func (o *Orchestrator) RunBackup(ctx context.Context, desc domain.DumpDescriptor, thresholdDays int) (err error) {
	release, ok := o.locks.TryLock(desc.DatabaseName)
	if !ok {
		return domain.ErrAlreadyRunning
	}
	defer release()

	start := o.now()
	tag := "[" + desc.DatabaseName + " " + uuid.NewString()[:8] + "]"

	defer func() {
		o.metrics.ObserveBackup(o.now().Sub(start), err)
		if err != nil {
			o.logger.Errorf("%s Backup failed: %v", tag, err)
			o.notify(ctx, "Backup of %s failed: %v", desc.DatabaseName, err)
		}
	}()

	o.logger.Infof("%s Starting %s backup", tag, desc.Mode)

	artifact, err := o.engine.CreateDump(ctx, desc)
	if err != nil {
		return err
	}
	o.logger.Infof("%s Dump created: %s (%s)", tag, artifact.LocalPath, humanize.Bytes(uint64(artifact.SizeBytes)))

	if o.opts.Compress {
		artifact, err = o.compress(tag, artifact)
		if err != nil {
			return err
		}
	}

	remote, err := o.store.Upload(ctx, artifact.LocalPath)
	if err != nil {
		// The local artifact stays for a manual retry.
		return classified(domain.KindUploadFailed, "upload", artifact.LocalPath, err)
	}
	o.logger.Infof("%s Uploaded to %s", tag, remote)

	if rmErr := os.Remove(artifact.LocalPath); rmErr != nil {
		o.logger.Warnf("%s Failed to remove local dump %s: %v", tag, artifact.LocalPath, rmErr)
	}

	if pruneErr := o.prune(ctx, tag, desc, artifact.RemoteName, thresholdDays); pruneErr != nil {
		o.logger.Warnf("%s Retention cleanup incomplete: %v", tag, pruneErr)
	}

	elapsed := o.now().Sub(start).Round(time.Second)
	o.logger.Infof("%s Backup completed in %s: %s", tag, elapsed, remote)
	o.notify(ctx, "Backup of %s completed in %s: %s (%s)",
		desc.DatabaseName, elapsed, artifact.RemoteName, humanize.Bytes(uint64(artifact.SizeBytes)))

	return nil
}

func (o *Orchestrator) compress(tag string, artifact domain.BackupArtifact) (domain.BackupArtifact, error) {
	compressedPath := artifact.LocalPath + o.compressor.Extension()

	if err := o.compressor.Compress(artifact.LocalPath, compressedPath); err != nil {
		return artifact, classified(domain.KindDumpFailed, "compress dump", artifact.LocalPath, err)
	}

	info, err := os.Stat(compressedPath)
	if err != nil {
		return artifact, domain.NewError(domain.KindDumpFailed, "stat compressed dump", compressedPath, err)
	}

	if err := os.Remove(artifact.LocalPath); err != nil {
		o.logger.Warnf("%s Failed to remove uncompressed dump %s: %v", tag, artifact.LocalPath, err)
	}

	if artifact.SizeBytes > 0 {
		o.logger.Infof("%s Compressed to %s (%.1f%% of original)",
			tag, humanize.Bytes(uint64(info.Size())), float64(info.Size())/float64(artifact.SizeBytes)*100)
	}

	artifact.LocalPath = compressedPath
	artifact.RemoteName = filepath.Base(compressedPath)
	artifact.SizeBytes = info.Size()
	return artifact, nil
}

// prune deletes the backups of desc that are at least thresholdDays old. Objects
// of other databases and the just uploaded one are never touched. Each deletion
// is attempted regardless of earlier failures.
func (o *Orchestrator) prune(ctx context.Context, tag string, desc domain.DumpDescriptor, uploaded string, thresholdDays int) error {
	objects, err := o.store.ListAll(ctx)
	if err != nil {
		return err
	}

	candidates := make([]domain.RemoteObject, 0, len(objects))
	for _, obj := range WithPrefix(objects, desc.DatabaseName+"_") {
		if obj.Name != uploaded {
			candidates = append(candidates, obj)
		}
	}

	expired := SelectForDeletion(candidates, thresholdDays, o.now())
	if len(expired) == 0 {
		o.logger.Infof("%s No backups older than %d days", tag, thresholdDays)
		return nil
	}

	var errs error
	deleted := 0
	for _, obj := range expired {
		if err := o.store.Delete(ctx, obj.Name); err != nil {
			o.logger.Warnf("%s Failed to delete %s: %v", tag, obj.Name, err)
			errs = multierr.Append(errs, err)
			continue
		}
		deleted++
		o.logger.Infof("%s Deleted old backup %s (modified %s)", tag, obj.Name, obj.ModifiedAt.Format(time.RFC3339))
	}

	o.metrics.ObservePrune(deleted, len(expired)-deleted)
	o.logger.Infof("%s Retention cleanup: %d of %d deleted", tag, deleted, len(expired))
	return errs
}
