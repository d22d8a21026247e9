package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/semmidev/dbkeeper/internal/domain"
)

// LocalStorage keeps "remote" backups in a directory, e.g. a mounted share.
type LocalStorage struct {
	root     string
	basePath string
}

func NewLocal(root, folder string) (*LocalStorage, error) {
	basePath := filepath.Join(root, folder)
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &LocalStorage{root: root, basePath: basePath}, nil
}

func (l *LocalStorage) EnsureFolder(ctx context.Context, path string) error {
	if err := os.MkdirAll(filepath.Join(l.root, path), 0755); err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}
	return nil
}

func (l *LocalStorage) Upload(ctx context.Context, localPath string) (string, error) {
	destPath := l.GetPath(filepath.Base(localPath))

	source, err := os.Open(localPath)
	if err != nil {
		return "", domain.NewError(domain.KindUploadFailed, "failed to open source", localPath, err)
	}
	defer source.Close()

	err = saveFile(destPath, func(dest *os.File) error {
		_, err := io.Copy(dest, source)
		return err
	})
	if err != nil {
		return "", domain.NewError(domain.KindUploadFailed, "failed to copy", localPath, err)
	}

	return destPath, nil
}

func (l *LocalStorage) ListAll(ctx context.Context) ([]domain.RemoteObject, error) {
	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	objects := make([]domain.RemoteObject, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) == ".part" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to get file info for %s: %w", entry.Name(), err)
		}
		objects = append(objects, domain.RemoteObject{
			Name:       entry.Name(),
			ModifiedAt: info.ModTime().UTC(),
			RemotePath: l.GetPath(entry.Name()),
		})
	}

	return objects, nil
}

func (l *LocalStorage) Download(ctx context.Context, remoteName, localPath string) error {
	source, err := os.Open(l.GetPath(filepath.Base(remoteName)))
	if err != nil {
		return domain.NewError(domain.KindDownloadFailed, "failed to open source", localPath, err)
	}
	defer source.Close()

	err = saveFile(localPath, func(dest *os.File) error {
		_, err := io.Copy(dest, source)
		return err
	})
	if err != nil {
		return domain.NewError(domain.KindDownloadFailed, "failed to copy", localPath, err)
	}
	return nil
}

func (l *LocalStorage) Delete(ctx context.Context, remoteName string) error {
	filePath := l.GetPath(filepath.Base(remoteName))
	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (l *LocalStorage) GetPath(filename string) string {
	return filepath.Join(l.basePath, filename)
}
