package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/dbkeeper/internal/domain"
)

var envNames = []string{
	"POSTGRES_DB", "POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_USER", "POSTGRES_PASSWORD",
	"DB_BACKUP_DIR", "YANDEX_TOKEN", "REMOTE_FOLDER", "BOT_TOKEN", "SUPERADMIN_ID",
	"DBKEEPER_BACKUP_RETENTION_DAYS", "DBKEEPER_REMOTE_TYPE",
}

func clearEnv(t *testing.T) {
	for _, name := range envNames {
		t.Setenv(name, "")
	}
}

const sampleYAML = `
app:
  name: shop-backups
  log_level: debug
  timezone: UTC
database:
  name: shop
  host: db.internal
  username: backup
  password: secret
backup:
  local_path: /var/backups/shop
  mode: full
  dump_timeout: 45m
  schedule:
    hour: 3
    minute: 30
remote:
  type: local
  folder: shop
  local:
    path: /mnt/backups
`

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	Convey("Given a YAML config file", t, func() {
		clearEnv(t)
		path := writeConfig(t, sampleYAML)

		Convey("Values and defaults are loaded", func() {
			cfg, err := Load(path)
			So(err, ShouldBeNil)

			So(cfg.App.Name, ShouldEqual, "shop-backups")
			So(cfg.Database.Port, ShouldEqual, 5432)
			So(cfg.Database.Schema, ShouldEqual, "public")
			So(cfg.Backup.Mode, ShouldEqual, "full")
			So(cfg.Backup.RetentionDays, ShouldEqual, 7)
			So(cfg.Backup.DumpTimeout, ShouldEqual, 45*time.Minute)
			So(cfg.Backup.RestoreTimeout, ShouldEqual, 30*time.Minute)
			So(cfg.Backup.DisableTriggers, ShouldBeFalse)
			So(cfg.Backup.Schedule, ShouldResemble, ScheduleConfig{Hour: 3, Minute: 30})
			So(cfg.Report.At, ShouldResemble, ScheduleConfig{Hour: 21, Minute: 0})
			So(cfg.Remote.Local.Path, ShouldEqual, "/mnt/backups")
		})

		Convey("Environment variables override the file", func() {
			t.Setenv("POSTGRES_HOST", "10.0.0.5")
			t.Setenv("POSTGRES_PORT", "6543")
			t.Setenv("DBKEEPER_BACKUP_RETENTION_DAYS", "3")

			cfg, err := Load(path)
			So(err, ShouldBeNil)
			So(cfg.Database.Host, ShouldEqual, "10.0.0.5")
			So(cfg.Database.Port, ShouldEqual, 6543)
			So(cfg.Backup.RetentionDays, ShouldEqual, 3)
		})

		Convey("A missing file is an error", func() {
			_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given only environment variables", t, func() {
		clearEnv(t)
		t.Setenv("POSTGRES_DB", "shop")
		t.Setenv("POSTGRES_HOST", "localhost")
		t.Setenv("POSTGRES_USER", "postgres")
		t.Setenv("POSTGRES_PASSWORD", "pw")
		t.Setenv("DB_BACKUP_DIR", "/tmp/dumps")
		t.Setenv("YANDEX_TOKEN", "token")
		t.Setenv("REMOTE_FOLDER", "shop-backups")

		Convey("Legacy variable names are honoured", func() {
			cfg, err := Load("")
			So(err, ShouldBeNil)
			So(cfg.Remote.Type, ShouldEqual, "yandex")
			So(cfg.Remote.Yandex.Token, ShouldEqual, "token")
			So(cfg.Remote.Folder, ShouldEqual, "shop-backups")
			So(cfg.Backup.LocalPath, ShouldEqual, "/tmp/dumps")
			So(cfg.Backup.Mode, ShouldEqual, "data")
			So(cfg.Backup.Schedule, ShouldResemble, ScheduleConfig{Hour: 21, Minute: 10})

			desc := cfg.DumpDescriptor()
			So(desc.DatabaseName, ShouldEqual, "shop")
			So(desc.Password, ShouldEqual, "pw")
			So(desc.Mode, ShouldEqual, domain.ModeDataOnly)
			So(desc.LocalDirectory, ShouldEqual, "/tmp/dumps")
			So(cfg.StagingDirectory(), ShouldEqual, "/tmp/dumps/restore")
		})

		Convey("A missing token is reported as ConfigInvalid", func() {
			t.Setenv("YANDEX_TOKEN", "")
			_, err := Load("")
			So(errors.Is(err, domain.ErrConfigInvalid), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "remote.yandex.token")
		})
	})
}

func validConfig() Config {
	return Config{
		App:      AppConfig{Timezone: "UTC"},
		Database: DatabaseConfig{Name: "shop", Host: "localhost", Port: 5432, Username: "postgres"},
		Backup: BackupConfig{
			LocalPath:     "/tmp/backups",
			Mode:          "data",
			RetentionDays: 7,
			Schedule:      ScheduleConfig{Hour: 21, Minute: 10},
		},
		Remote: RemoteConfig{Type: "local", Folder: "backups", Local: LocalConfig{Path: "/tmp/remote"}},
	}
}

func TestValidate(t *testing.T) {
	Convey("Validate", t, func() {
		cfg := validConfig()

		Convey("Accepts a complete config", func() {
			So(cfg.Validate(), ShouldBeNil)
		})

		cases := map[string]func(c *Config){
			"missing database name": func(c *Config) { c.Database.Name = "" },
			"port out of range":     func(c *Config) { c.Database.Port = 70000 },
			"unknown mode":          func(c *Config) { c.Backup.Mode = "schema" },
			"negative retention":    func(c *Config) { c.Backup.RetentionDays = -1 },
			"hour out of range":     func(c *Config) { c.Backup.Schedule.Hour = 24 },
			"minute out of range":   func(c *Config) { c.Backup.Schedule.Minute = 60 },
			"unknown remote":        func(c *Config) { c.Remote.Type = "ftp" },
			"s3 without bucket":     func(c *Config) { c.Remote.Type = "s3" },
			"telegram without chat": func(c *Config) { c.Notify.Telegram = TelegramConfig{Enabled: true, BotToken: "t"} },
			"report without notify": func(c *Config) { c.Report = ReportConfig{Enabled: true, Path: "out.xlsx"} },
			"unknown timezone":      func(c *Config) { c.App.Timezone = "Mars/Olympus" },
		}
		for name, mutate := range cases {
			Convey("Rejects "+name, func() {
				mutate(&cfg)
				So(errors.Is(cfg.Validate(), domain.ErrConfigInvalid), ShouldBeTrue)
			})
		}

		Convey("Resolves the configured time zone", func() {
			loc, err := cfg.Location()
			So(err, ShouldBeNil)
			So(loc, ShouldEqual, time.UTC)
		})
	})
}
