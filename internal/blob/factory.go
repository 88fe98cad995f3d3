package blob

import (
	"context"
	"fmt"

	"bakerycore/internal/infra/blob/fs"
	memorystore "bakerycore/internal/infra/blob/memory"
	infraS3 "bakerycore/internal/infra/blob/s3"
)

// S3Config configures the S3 / MinIO driver.
type S3Config = infraS3.Config

// Config selects and configures a blob driver.
type Config struct {
	Driver Driver   `yaml:"driver"`
	Root   string   `yaml:"root"`
	S3     S3Config `yaml:"s3"`
}

// Open builds the configured Store. An empty driver means the filesystem.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverFilesystem:
		return NewFilesystem(cfg.Root)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}

// NewFilesystem stores artifacts under root, default ./blobdata.
func NewFilesystem(root string) (Store, error) { return fs.New(root) }

// NewMemory returns a process-local store.
func NewMemory() Store { return memorystore.New() }

// NewS3 connects to an S3-compatible bucket.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) { return infraS3.New(ctx, cfg) }
