package domain

import "context"

// RemoteStore is the folder-scoped object storage the backups live in.
type RemoteStore interface {
	EnsureFolder(ctx context.Context, path string) error
	Upload(ctx context.Context, localPath string) (string, error)
	ListAll(ctx context.Context) ([]RemoteObject, error)
	Download(ctx context.Context, remoteName, localPath string) error
	Delete(ctx context.Context, remoteName string) error
}
