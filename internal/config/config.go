// Package config loads the bakery host configuration from an optional YAML
// file, an optional .env file and BAKERY_* environment variables, in that order
// of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"bakerycore/internal/blob"
	"bakerycore/internal/core"
	"bakerycore/internal/scheduler"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig       `yaml:"server"`
	Storage   core.StorageConfig `yaml:"storage"`
	Blob      blob.Config        `yaml:"blob"`
	Archive   ArchiveConfig      `yaml:"archive"`
	Scheduler scheduler.Config   `yaml:"scheduler"`
	Exports   ExportConfig       `yaml:"exports"`
	Log       LogConfig          `yaml:"log"`
}

// ServerConfig holds HTTP server options.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// ArchiveConfig selects where daily summaries are archived.
type ArchiveConfig struct {
	Driver   string `yaml:"driver"` // memory|mongodb
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// ExportConfig tunes the report export worker.
type ExportConfig struct {
	QueueSize int `yaml:"queue_size"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when nothing else is supplied.
func Default() Config {
	return Config{
		Server:  ServerConfig{Addr: ":8080"},
		Storage: core.StorageConfig{Driver: core.StorageSQLite, SQLitePath: "bakery.db"},
		Blob:    blob.Config{Driver: blob.DriverFilesystem, Root: "blobdata"},
		Archive: ArchiveConfig{Driver: "memory", Database: "bakery"},
		Scheduler: scheduler.Config{
			LowStockSpec:     scheduler.DefaultLowStockSpec,
			DailySummarySpec: scheduler.DefaultDailySummarySpec,
			Timezone:         "UTC",
		},
		Exports: ExportConfig{QueueSize: 32},
		Log:     LogConfig{Level: "info"},
	}
}

// Load materializes a Config. path names an optional YAML file; envFile an
// optional dotenv file (empty tries ./.env and ignores its absence).
func Load(path, envFile string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
		}
	} else {
		// a missing .env is fine when the environment is set directly
		_ = godotenv.Load()
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	overrides := map[string]*string{
		"BAKERY_HTTP_ADDR":            &c.Server.Addr,
		"BAKERY_SQLITE_PATH":          &c.Storage.SQLitePath,
		"BAKERY_POSTGRES_DSN":         &c.Storage.PostgresDSN,
		"BAKERY_BLOB_ROOT":            &c.Blob.Root,
		"BAKERY_S3_BUCKET":            &c.Blob.S3.Bucket,
		"BAKERY_S3_REGION":            &c.Blob.S3.Region,
		"BAKERY_S3_ENDPOINT":          &c.Blob.S3.Endpoint,
		"BAKERY_S3_ACCESS_KEY_ID":     &c.Blob.S3.AccessKeyID,
		"BAKERY_S3_SECRET_ACCESS_KEY": &c.Blob.S3.SecretAccessKey,
		"BAKERY_ARCHIVE_DRIVER":       &c.Archive.Driver,
		"BAKERY_MONGODB_URI":          &c.Archive.URI,
		"BAKERY_MONGODB_DATABASE":     &c.Archive.Database,
		"BAKERY_CRON_LOW_STOCK":       &c.Scheduler.LowStockSpec,
		"BAKERY_CRON_DAILY_SUMMARY":   &c.Scheduler.DailySummarySpec,
		"BAKERY_TIMEZONE":             &c.Scheduler.Timezone,
		"BAKERY_LOG_LEVEL":            &c.Log.Level,
	}
	for key, dst := range overrides {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("BAKERY_STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = core.StorageDriver(v)
	}
	if v := os.Getenv("BAKERY_BLOB_DRIVER"); v != "" {
		c.Blob.Driver = blob.Driver(v)
	}
	if v := os.Getenv("BAKERY_S3_PATH_STYLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("BAKERY_S3_PATH_STYLE: %w", err)
		}
		c.Blob.S3.PathStyle = b
	}
	if v := os.Getenv("BAKERY_EXPORT_QUEUE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BAKERY_EXPORT_QUEUE_SIZE: %w", err)
		}
		c.Exports.QueueSize = n
	}
	return nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Server.Addr == "" {
		return errors.New("server address must be provided")
	}
	switch c.Storage.Driver {
	case core.StorageMemory, core.StorageSQLite:
	case core.StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			return errors.New("BAKERY_POSTGRES_DSN must be provided for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Blob.Driver {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			return errors.New("BAKERY_S3_BUCKET must be provided for the s3 blob driver")
		}
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	switch c.Archive.Driver {
	case "memory":
	case "mongodb":
		if c.Archive.URI == "" {
			return errors.New("BAKERY_MONGODB_URI must be provided for the mongodb archive")
		}
		if c.Archive.Database == "" {
			return errors.New("BAKERY_MONGODB_DATABASE must not be empty")
		}
	default:
		return fmt.Errorf("unknown archive driver %q", c.Archive.Driver)
	}
	if c.Exports.QueueSize <= 0 {
		return errors.New("export queue size must be positive")
	}
	return nil
}
