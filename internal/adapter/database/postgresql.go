package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/semmidev/dbkeeper/internal/domain"
)

type Options struct {
	DumpTimeout    time.Duration
	RestoreTimeout time.Duration

	PgDump    string
	PgRestore string
	Psql      string
}

func (o Options) withDefaults() Options {
	if o.DumpTimeout <= 0 {
		o.DumpTimeout = 30 * time.Minute
	}
	if o.RestoreTimeout <= 0 {
		o.RestoreTimeout = 30 * time.Minute
	}
	if o.PgDump == "" {
		o.PgDump = "pg_dump"
	}
	if o.PgRestore == "" {
		o.PgRestore = "pg_restore"
	}
	if o.Psql == "" {
		o.Psql = "psql"
	}
	return o
}

type PostgreSQLDatabase struct {
	runner    Runner
	inspector domain.SchemaInspector
	logger    domain.Logger
	opts      Options
	now       func() time.Time
}

func NewPostgreSQL(runner Runner, inspector domain.SchemaInspector, logger domain.Logger, opts Options) *PostgreSQLDatabase {
	return &PostgreSQLDatabase{
		runner:    runner,
		inspector: inspector,
		logger:    logger,
		opts:      opts.withDefaults(),
		now:       time.Now,
	}
}

// connEnv passes connection parameters the libpq way so nothing sensitive ends
// up in the process list.
func connEnv(desc domain.DumpDescriptor) []string {
	env := []string{
		"PGHOST=" + desc.Host,
		"PGPORT=" + strconv.Itoa(desc.Port),
		"PGUSER=" + desc.User,
		"PGDATABASE=" + desc.DatabaseName,
	}
	if desc.Password != "" {
		env = append(env, "PGPASSWORD="+desc.Password)
	}
	if desc.SSLMode != "" {
		env = append(env, "PGSSLMODE="+desc.SSLMode)
	}
	return env
}

func (p *PostgreSQLDatabase) CreateDump(ctx context.Context, desc domain.DumpDescriptor) (domain.BackupArtifact, error) {
	createdAt := p.now()
	name := desc.FileName(createdAt)
	path := filepath.Join(desc.LocalDirectory, name)

	if err := os.MkdirAll(desc.LocalDirectory, 0o755); err != nil {
		return domain.BackupArtifact{}, domain.NewError(domain.KindDumpFailed, "create backup directory", desc.LocalDirectory, err)
	}

	args := []string{"--no-password", "--file=" + path}
	switch desc.Mode {
	case domain.ModeFull:
		args = append(args, "--format=custom")
	case domain.ModeDataOnly:
		// The script recreates what it fills so it replays cleanly after the wipe.
		args = append(args,
			"--format=plain",
			"--inserts",
			"--clean",
			"--if-exists",
			"--no-owner",
			"--no-privileges",
		)
		if desc.Schema != "" {
			args = append(args, "--schema="+desc.Schema)
		}
	default:
		return domain.BackupArtifact{}, domain.NewError(domain.KindDumpFailed, "create dump", path, fmt.Errorf("unknown dump mode %q", desc.Mode))
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.DumpTimeout)
	defer cancel()

	output, err := p.runner.Run(ctx, p.opts.PgDump, args, connEnv(desc))
	if err != nil {
		// A partial file stays on disk for inspection.
		return domain.BackupArtifact{}, classify(domain.KindDumpFailed, "pg_dump", path, output, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return domain.BackupArtifact{}, domain.NewError(domain.KindDumpFailed, "stat dump file", path, err)
	}

	return domain.BackupArtifact{
		LocalPath:  path,
		RemoteName: name,
		CreatedAt:  createdAt,
		SizeBytes:  info.Size(),
	}, nil
}

func (p *PostgreSQLDatabase) RestoreFull(ctx context.Context, desc domain.DumpDescriptor, path string) error {
	if _, err := os.Stat(path); err != nil {
		return domain.NewError(domain.KindRestoreFailed, "stat dump file", path, err)
	}

	args := []string{
		"--no-password",
		"--clean",
		"--if-exists",
		"--no-owner",
		"--single-transaction",
		"--exit-on-error",
		"--dbname=" + desc.DatabaseName,
		path,
	}

	p.logger.Infof("[%s] Restoring full dump from %s", desc.DatabaseName, path)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.RestoreTimeout)
	defer cancel()

	output, err := p.runner.Run(ctx, p.opts.PgRestore, args, connEnv(desc))
	if err != nil {
		return classify(domain.KindRestoreFailed, "pg_restore", path, output, err)
	}

	p.logger.Infof("[%s] Full restore from %s completed", desc.DatabaseName, path)
	return nil
}

// RestoreDataOnly wipes every table of the target schema and replays the script.
// Both phases run inside one psql --single-transaction process: a failure in
// either rolls the server back to the pre-restore state. The process is detached
// from caller cancellation and bounded only by the restore timeout.
func (p *PostgreSQLDatabase) RestoreDataOnly(ctx context.Context, desc domain.DumpDescriptor, path string, opts domain.RestoreOptions) error {
	dbName := desc.DatabaseName

	if _, err := os.Stat(path); err != nil {
		return domain.NewError(domain.KindRestoreFailed, "stat dump file", path, err)
	}

	tables, err := p.inspector.ListTables(ctx, desc)
	if err != nil {
		return domain.NewError(domain.KindRestoreFailed, "list tables", path, err)
	}

	var rows int64
	for _, t := range tables {
		rows += t.Rows
		p.logger.Infof("[%s] Will drop %s (%d rows)", dbName, t.QualifiedName(), t.Rows)
	}
	p.logger.Warnf("[%s] Destructive restore from %s: dropping %d table(s), %d row(s)", dbName, path, len(tables), rows)

	wipePath := path + ".wipe.sql"
	if err := os.WriteFile(wipePath, []byte(WipeScript(tables, opts.DisableTriggers)), 0o600); err != nil {
		return domain.NewError(domain.KindRestoreFailed, "write wipe script", wipePath, err)
	}

	if opts.DryRun {
		p.logger.Infof("[%s] Dry run: wipe script written to %s, nothing executed", dbName, wipePath)
		return nil
	}

	args := []string{
		"--no-password",
		"--no-psqlrc",
		"--quiet",
		"--set=ON_ERROR_STOP=1",
		"--single-transaction",
		"--file=" + wipePath,
		"--file=" + path,
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.RestoreTimeout)
	defer cancel()

	output, err := p.runner.Run(rctx, p.opts.Psql, args, connEnv(desc))
	if err != nil {
		return classify(domain.KindRestoreFailed, "psql", path, output, err)
	}

	restored, err := p.inspector.ListTables(rctx, desc)
	if err != nil {
		p.logger.Warnf("[%s] Restore succeeded but table listing failed: %v", dbName, err)
		return nil
	}

	rows = 0
	for _, t := range restored {
		rows += t.Rows
		p.logger.Infof("[%s] Restored %s (%d rows)", dbName, t.QualifiedName(), t.Rows)
	}
	p.logger.Infof("[%s] Data restore from %s completed: %d table(s), %d row(s)", dbName, path, len(restored), rows)

	return nil
}

func (p *PostgreSQLDatabase) Ping(ctx context.Context, desc domain.DumpDescriptor) error {
	return p.inspector.Ping(ctx, desc)
}

// WipeScript renders the statements that drop every listed table. Triggers and
// foreign-key enforcement are suspended for the session when disableTriggers is set.
func WipeScript(tables []domain.TableStat, disableTriggers bool) string {
	var b strings.Builder
	if disableTriggers {
		b.WriteString("SET session_replication_role = replica;\n")
	}
	for _, t := range tables {
		fmt.Fprintf(&b, "DROP TABLE IF EXISTS %s CASCADE;\n", pgx.Identifier{t.Schema, t.Name}.Sanitize())
	}
	if disableTriggers {
		b.WriteString("SET session_replication_role = DEFAULT;\n")
	}
	return b.String()
}

func classify(kind domain.Kind, op, path string, output []byte, err error) *domain.Error {
	if errors.Is(err, ErrProcessTimedOut) {
		kind = domain.KindTimedOut
	}
	return &domain.Error{
		Kind:        kind,
		Op:          op,
		Path:        path,
		Diagnostics: string(output),
		Err:         err,
	}
}
