package storage

import (
	"fmt"

	"github.com/semmidev/dbkeeper/internal/config"
	"github.com/semmidev/dbkeeper/internal/domain"
)

// New builds the RemoteStore selected by cfg.Type.
func New(cfg *config.RemoteConfig) (domain.RemoteStore, error) {
	switch cfg.Type {
	case "yandex":
		return NewYandexDisk(cfg)
	case "s3":
		return NewS3(cfg)
	case "gdrive":
		return NewGDrive(cfg)
	case "local":
		return NewLocal(cfg.Local.Path, cfg.Folder)
	default:
		return nil, fmt.Errorf("unknown remote storage type: %s", cfg.Type)
	}
}
