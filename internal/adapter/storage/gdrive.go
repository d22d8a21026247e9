package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/semmidev/dbkeeper/internal/config"
	"github.com/semmidev/dbkeeper/internal/domain"
)

const driveFolderMime = "application/vnd.google-apps.folder"

type GDriveStorage struct {
	service *drive.Service

	mu       sync.RWMutex
	parentID string
	folderID string
}

func NewGDrive(cfg *config.RemoteConfig) (*GDriveStorage, error) {
	ctx := context.Background()

	service, err := drive.NewService(ctx, option.WithCredentialsFile(cfg.GDrive.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &GDriveStorage{
		service:  service,
		parentID: cfg.GDrive.ParentID,
		folderID: cfg.GDrive.ParentID,
	}, nil
}

func escapeQuery(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `'`, `\'`)
}

func (g *GDriveStorage) folder() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.folderID
}

// EnsureFolder finds or creates each path segment as a folder below the
// configured parent and makes the last one the managed folder.
func (g *GDriveStorage) EnsureFolder(ctx context.Context, p string) error {
	current := g.parentID

	for _, part := range strings.Split(strings.Trim(p, "/"), "/") {
		if part == "" {
			continue
		}
		query := fmt.Sprintf("'%s' in parents and name='%s' and mimeType='%s' and trashed=false",
			escapeQuery(current), escapeQuery(part), driveFolderMime)

		list, err := g.service.Files.List().Q(query).Fields("files(id)").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to look up folder %s: %w", part, err)
		}
		if len(list.Files) > 0 {
			current = list.Files[0].Id
			continue
		}

		created, err := g.service.Files.Create(&drive.File{
			Name:     part,
			MimeType: driveFolderMime,
			Parents:  []string{current},
		}).Fields("id").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to create folder %s: %w", part, err)
		}
		current = created.Id
	}

	g.mu.Lock()
	g.folderID = current
	g.mu.Unlock()
	return nil
}

func (g *GDriveStorage) findFile(ctx context.Context, name string) (*drive.File, error) {
	query := fmt.Sprintf("'%s' in parents and name='%s' and trashed=false",
		escapeQuery(g.folder()), escapeQuery(name))

	list, err := g.service.Files.List().Q(query).Fields("files(id, name)").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to find file: %w", err)
	}
	if len(list.Files) == 0 {
		return nil, nil
	}
	return list.Files[0], nil
}

// Upload replaces the content of a same-named file instead of creating a sibling.
func (g *GDriveStorage) Upload(ctx context.Context, localPath string) (string, error) {
	name := filepath.Base(localPath)

	file, err := os.Open(localPath)
	if err != nil {
		return "", domain.NewError(domain.KindUploadFailed, "open file", localPath, err)
	}
	defer file.Close()

	existing, err := g.findFile(ctx, name)
	if err != nil {
		return "", domain.NewError(domain.KindUploadFailed, "upload to gdrive", localPath, err)
	}

	if existing != nil {
		_, err = g.service.Files.Update(existing.Id, &drive.File{}).Media(file).Context(ctx).Do()
	} else {
		_, err = g.service.Files.Create(&drive.File{
			Name:    name,
			Parents: []string{g.folder()},
		}).Media(file).Context(ctx).Do()
	}
	if err != nil {
		return "", domain.NewError(domain.KindUploadFailed, "upload to gdrive", localPath, err)
	}

	return "gdrive://" + g.folder() + "/" + name, nil
}

func (g *GDriveStorage) ListAll(ctx context.Context) ([]domain.RemoteObject, error) {
	folderID := g.folder()
	query := fmt.Sprintf("'%s' in parents and trashed=false and mimeType!='%s'", escapeQuery(folderID), driveFolderMime)
	objects := make([]domain.RemoteObject, 0)

	err := g.service.Files.List().
		Q(query).
		Fields("nextPageToken, files(id, name, modifiedTime)").
		Context(ctx).
		Pages(ctx, func(page *drive.FileList) error {
			for _, file := range page.Files {
				modified, err := parseRemoteTime(file.ModifiedTime)
				if err != nil {
					return fmt.Errorf("file %s: %w", file.Name, err)
				}
				objects = append(objects, domain.RemoteObject{
					Name:       file.Name,
					ModifiedAt: modified,
					RemotePath: "gdrive://" + folderID + "/" + file.Name,
				})
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return objects, nil
}

func (g *GDriveStorage) Download(ctx context.Context, remoteName, localPath string) error {
	name := path.Base(remoteName)

	existing, err := g.findFile(ctx, name)
	if err != nil {
		return domain.NewError(domain.KindDownloadFailed, "download from gdrive", localPath, err)
	}
	if existing == nil {
		return domain.NewError(domain.KindDownloadFailed, "download from gdrive", localPath, fmt.Errorf("file not found: %s", name))
	}

	err = saveFile(localPath, func(f *os.File) error {
		resp, err := g.service.Files.Get(existing.Id).Context(ctx).Download()
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, err = io.Copy(f, resp.Body)
		return err
	})
	if err != nil {
		return domain.NewError(domain.KindDownloadFailed, "download from gdrive "+name, localPath, err)
	}
	return nil
}

func (g *GDriveStorage) Delete(ctx context.Context, remoteName string) error {
	existing, err := g.findFile(ctx, path.Base(remoteName))
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("file not found: %s", remoteName)
	}

	if err := g.service.Files.Delete(existing.Id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}
