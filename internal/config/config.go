package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/semmidev/dbkeeper/internal/domain"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Backup   BackupConfig   `mapstructure:"backup"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Report   ReportConfig   `mapstructure:"report"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
	Timezone string `mapstructure:"timezone"`
}

type DatabaseConfig struct {
	Name     string `mapstructure:"name"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"ssl_mode"`
	Schema   string `mapstructure:"schema"`
}

type BackupConfig struct {
	LocalPath       string         `mapstructure:"local_path"`
	StagingPath     string         `mapstructure:"staging_path"`
	Mode            string         `mapstructure:"mode"`
	RetentionDays   int            `mapstructure:"retention_days"`
	Compress        bool           `mapstructure:"compress"`
	DumpTimeout     time.Duration  `mapstructure:"dump_timeout"`
	RestoreTimeout  time.Duration  `mapstructure:"restore_timeout"`
	DisableTriggers bool           `mapstructure:"disable_triggers"`
	Schedule        ScheduleConfig `mapstructure:"schedule"`
}

type ScheduleConfig struct {
	Hour   int `mapstructure:"hour"`
	Minute int `mapstructure:"minute"`
}

type RemoteConfig struct {
	Type    string        `mapstructure:"type"`
	Folder  string        `mapstructure:"folder"`
	Timeout time.Duration `mapstructure:"timeout"`

	Yandex YandexConfig `mapstructure:"yandex"`
	S3     S3Config     `mapstructure:"s3"`
	GDrive GDriveConfig `mapstructure:"gdrive"`
	Local  LocalConfig  `mapstructure:"local"`
}

type YandexConfig struct {
	Token   string `mapstructure:"token"`
	BaseURL string `mapstructure:"base_url"`
	Root    string `mapstructure:"root"`
}

type S3Config struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Endpoint  string `mapstructure:"endpoint"`
}

type GDriveConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	ParentID        string `mapstructure:"parent_id"`
}

type LocalConfig struct {
	Path string `mapstructure:"path"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

type ReportConfig struct {
	Enabled bool           `mapstructure:"enabled"`
	Path    string         `mapstructure:"path"`
	At      ScheduleConfig `mapstructure:"schedule"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// envBindings keeps the variable names existing deployments already export.
var envBindings = map[string]string{
	"database.name":             "POSTGRES_DB",
	"database.host":             "POSTGRES_HOST",
	"database.port":             "POSTGRES_PORT",
	"database.username":         "POSTGRES_USER",
	"database.password":         "POSTGRES_PASSWORD",
	"backup.local_path":         "DB_BACKUP_DIR",
	"remote.yandex.token":       "YANDEX_TOKEN",
	"remote.folder":             "REMOTE_FOLDER",
	"notify.telegram.bot_token": "BOT_TOKEN",
	"notify.telegram.chat_id":   "SUPERADMIN_ID",
}

// Load reads the YAML file at path, if any, and applies environment overrides.
// An empty path loads from the environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("app.name", "dbkeeper")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.timezone", "Local")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.schema", "public")
	v.SetDefault("database.ssl_mode", "prefer")
	v.SetDefault("backup.local_path", "backups")
	v.SetDefault("backup.mode", string(domain.ModeDataOnly))
	v.SetDefault("backup.retention_days", 7)
	v.SetDefault("backup.compress", false)
	v.SetDefault("backup.dump_timeout", 30*time.Minute)
	v.SetDefault("backup.restore_timeout", 30*time.Minute)
	v.SetDefault("backup.disable_triggers", false)
	v.SetDefault("backup.schedule.hour", 21)
	v.SetDefault("backup.schedule.minute", 10)
	v.SetDefault("remote.type", "yandex")
	v.SetDefault("remote.folder", "backups")
	v.SetDefault("remote.timeout", 10*time.Minute)
	v.SetDefault("report.path", "data/output.xlsx")
	v.SetDefault("report.schedule.hour", 21)
	v.SetDefault("report.schedule.minute", 0)
	v.SetDefault("metrics.addr", ":9187")

	v.SetEnvPrefix("DBKEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, "DBKEEPER_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func invalid(format string, args ...interface{}) error {
	return domain.NewError(domain.KindConfigInvalid, "validate config", "", fmt.Errorf(format, args...))
}

func (c *Config) Validate() error {
	if c.Database.Name == "" {
		return invalid("database.name is required")
	}
	if c.Database.Host == "" {
		return invalid("database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return invalid("database.port %d is out of range", c.Database.Port)
	}
	if c.Database.Username == "" {
		return invalid("database.username is required")
	}

	if c.Backup.LocalPath == "" {
		return invalid("backup.local_path is required")
	}
	if _, err := domain.ParseDumpMode(c.Backup.Mode); err != nil {
		return invalid("backup.mode: %v", err)
	}
	if c.Backup.RetentionDays < 0 {
		return invalid("backup.retention_days must not be negative")
	}
	if err := c.Backup.Schedule.validate("backup.schedule"); err != nil {
		return err
	}

	switch c.Remote.Type {
	case "yandex":
		if c.Remote.Yandex.Token == "" {
			return invalid("remote.yandex.token is required")
		}
	case "s3":
		if c.Remote.S3.Bucket == "" || c.Remote.S3.Region == "" {
			return invalid("remote.s3.bucket and remote.s3.region are required")
		}
	case "gdrive":
		if c.Remote.GDrive.CredentialsFile == "" {
			return invalid("remote.gdrive.credentials_file is required")
		}
	case "local":
		if c.Remote.Local.Path == "" {
			return invalid("remote.local.path is required")
		}
	default:
		return invalid("unknown remote.type %q", c.Remote.Type)
	}

	if c.Notify.Telegram.Enabled && (c.Notify.Telegram.BotToken == "" || c.Notify.Telegram.ChatID == 0) {
		return invalid("notify.telegram requires bot_token and chat_id")
	}
	if c.Report.Enabled {
		if c.Report.Path == "" {
			return invalid("report.path is required when report is enabled")
		}
		if !c.Notify.Telegram.Enabled {
			return invalid("report delivery requires notify.telegram")
		}
		if err := c.Report.At.validate("report.schedule"); err != nil {
			return err
		}
	}

	if _, err := c.Location(); err != nil {
		return invalid("app.timezone: %v", err)
	}

	return nil
}

func (s ScheduleConfig) validate(key string) error {
	if s.Hour < 0 || s.Hour > 23 {
		return invalid("%s.hour %d is out of range", key, s.Hour)
	}
	if s.Minute < 0 || s.Minute > 59 {
		return invalid("%s.minute %d is out of range", key, s.Minute)
	}
	return nil
}

// Location is the zone daily triggers fire in.
func (c *Config) Location() (*time.Location, error) {
	if c.App.Timezone == "" || c.App.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.App.Timezone)
}

func (c *Config) DumpDescriptor() domain.DumpDescriptor {
	mode, _ := domain.ParseDumpMode(c.Backup.Mode)
	return domain.DumpDescriptor{
		DatabaseName:   c.Database.Name,
		User:           c.Database.Username,
		Password:       c.Database.Password,
		Host:           c.Database.Host,
		Port:           c.Database.Port,
		SSLMode:        c.Database.SSLMode,
		Schema:         c.Database.Schema,
		LocalDirectory: c.Backup.LocalPath,
		Mode:           mode,
	}
}

// StagingDirectory is where downloaded backups wait for restore.
func (c *Config) StagingDirectory() string {
	if c.Backup.StagingPath != "" {
		return c.Backup.StagingPath
	}
	return c.Backup.LocalPath + "/restore"
}
