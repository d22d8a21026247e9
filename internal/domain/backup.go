package domain

import (
	"context"
	"fmt"
	"time"
)

type DumpMode string

const (
	// ModeFull is a custom-format dump consumable only by pg_restore.
	ModeFull DumpMode = "full"
	// ModeDataOnly is a plain SQL script of INSERT statements replayed with psql.
	ModeDataOnly DumpMode = "data"
)

func ParseDumpMode(s string) (DumpMode, error) {
	switch DumpMode(s) {
	case ModeFull:
		return ModeFull, nil
	case ModeDataOnly:
		return ModeDataOnly, nil
	default:
		return "", fmt.Errorf("unknown dump mode %q", s)
	}
}

// DumpDescriptor is built once from configuration and never mutated.
type DumpDescriptor struct {
	DatabaseName   string
	User           string
	Password       string
	Host           string
	Port           int
	SSLMode        string
	Schema         string
	LocalDirectory string
	Mode           DumpMode
}

// FilePrefix is the name prefix shared by every dump of this database and mode.
func (d DumpDescriptor) FilePrefix() string {
	return fmt.Sprintf("%s_%s_", d.DatabaseName, d.Mode)
}

// FileName returns the deterministic dump name for the given day.
func (d DumpDescriptor) FileName(day time.Time) string {
	return d.FilePrefix() + day.Format("2006-01-02") + ".sql"
}

type BackupArtifact struct {
	LocalPath  string
	RemoteName string
	CreatedAt  time.Time
	SizeBytes  int64
}

// RemoteObject is a snapshot of one object in the remote store. ModifiedAt is UTC.
type RemoteObject struct {
	Name       string
	ModifiedAt time.Time
	RemotePath string
}

type ScheduleEntry struct {
	Name   string
	Hour   int
	Minute int
	Job    func(ctx context.Context) error
}

// Spec renders the entry as a six-field cron expression firing once a day.
func (e ScheduleEntry) Spec() string {
	return fmt.Sprintf("0 %d %d * * *", e.Minute, e.Hour)
}

// RestoreRequest carries the caller's explicit intent for a destructive restore.
// Authorization of RequestedBy is the caller's responsibility.
type RestoreRequest struct {
	RequestedBy     string
	ConfirmDatabase string
	DryRun          bool
}

type RestoreOptions struct {
	DryRun          bool
	DisableTriggers bool
}

type TableStat struct {
	Schema string
	Name   string
	Rows   int64
}

func (t TableStat) QualifiedName() string {
	return t.Schema + "." + t.Name
}
