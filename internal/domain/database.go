package domain

import "context"

// DumpEngine drives the native dump and restore tools. Calls are terminal either
// way; retries are left to the caller.
type DumpEngine interface {
	CreateDump(ctx context.Context, desc DumpDescriptor) (BackupArtifact, error)
	RestoreFull(ctx context.Context, desc DumpDescriptor, path string) error
	RestoreDataOnly(ctx context.Context, desc DumpDescriptor, path string, opts RestoreOptions) error
	Ping(ctx context.Context, desc DumpDescriptor) error
}

type SchemaInspector interface {
	ListTables(ctx context.Context, desc DumpDescriptor) ([]TableStat, error)
	Ping(ctx context.Context, desc DumpDescriptor) error
}
