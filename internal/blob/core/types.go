// Package core holds the blob storage contract shared by the drivers under
// internal/infra/blob and the re-exports in internal/blob.
package core

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver identifies a blob storage backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
	DriverMemory     Driver = "memory"
)

// PutOptions carries optional attributes of a write.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// SignedURLOptions configures a pre-signed download link. Expiry defaults to 15m.
type SignedURLOptions struct {
	Method string
	Expiry time.Duration
}

// Info describes a stored artifact.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
	URL          string            `json:"url,omitempty"`
}

// Store is a create-only key/value artifact store. Put fails with ErrExists
// when the key is taken; Get and Head fail with ErrNotFound for unknown keys.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	PresignURL(ctx context.Context, key string, opts SignedURLOptions) (string, error)
	Driver() Driver
}

var (
	ErrUnsupported = errors.New("blob: unsupported operation")
	ErrNotFound    = errors.New("blob: not found")
	ErrExists      = errors.New("blob: already exists")
	ErrInvalidKey  = errors.New("blob: invalid key")
)

// CloneMetadata copies a metadata map; nil stays nil.
func CloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
