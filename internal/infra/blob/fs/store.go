// Package fs stores blobs as files under a root directory, with a JSON
// sidecar per blob carrying its content type, metadata and checksum.
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"bakerycore/internal/blob/core"
)

const metaSuffix = ".meta"

// Store implements core.Store on the local filesystem. Writers must not race
// on the same key.
type Store struct {
	root string
	now  func() time.Time
}

// New returns a store rooted at root, creating the directory if needed.
func New(root string) (*Store, error) {
	if root == "" {
		root = "./blobdata"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root %s: %w", root, err)
	}
	return &Store{root: root, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

func cleanKey(key string) (string, error) {
	switch {
	case strings.TrimSpace(key) == "":
		return "", fmt.Errorf("%w: empty", core.ErrInvalidKey)
	case strings.Contains(key, ".."):
		return "", fmt.Errorf("%w: %q contains '..'", core.ErrInvalidKey, key)
	case strings.HasPrefix(key, "/"):
		return "", fmt.Errorf("%w: %q is absolute", core.ErrInvalidKey, key)
	case strings.HasSuffix(key, metaSuffix):
		return "", fmt.Errorf("%w: %q uses the reserved %s suffix", core.ErrInvalidKey, key, metaSuffix)
	}
	return filepath.ToSlash(filepath.Clean(key)), nil
}

func (s *Store) paths(key string) (data, meta string, err error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", "", err
	}
	data = filepath.Join(s.root, filepath.FromSlash(k))
	return data, data + metaSuffix, nil
}

type sidecar struct {
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ETag        string            `json:"etag"`
	Size        int64             `json:"size"`
	StoredAt    time.Time         `json:"stored_at"`
}

func (m sidecar) info(s *Store, key string) core.Info {
	return core.Info{
		Key:          key,
		Size:         m.Size,
		ContentType:  m.ContentType,
		ETag:         m.ETag,
		Metadata:     core.CloneMetadata(m.Metadata),
		LastModified: m.StoredAt,
		URL:          s.localURL(key),
	}
}

func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	dataPath, metaPath, err := s.paths(key)
	if err != nil {
		return core.Info{}, err
	}
	if err := ctx.Err(); err != nil {
		return core.Info{}, err
	}
	if _, err := os.Stat(dataPath); err == nil {
		return core.Info{}, fmt.Errorf("%w: %s", core.ErrExists, key)
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return core.Info{}, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dataPath), ".tmp-*")
	if err != nil {
		return core.Info{}, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return core.Info{}, fmt.Errorf("write blob %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), dataPath); err != nil {
		return core.Info{}, err
	}
	meta := sidecar{
		ContentType: opts.ContentType,
		Metadata:    core.CloneMetadata(opts.Metadata),
		ETag:        hex.EncodeToString(h.Sum(nil)),
		Size:        size,
		StoredAt:    s.now(),
	}
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return core.Info{}, err
	}
	if err := os.WriteFile(metaPath, raw, 0o644); err != nil {
		return core.Info{}, err
	}
	return meta.info(s, key), nil
}

func (s *Store) Get(_ context.Context, key string) (core.Info, io.ReadCloser, error) {
	dataPath, metaPath, err := s.paths(key)
	if err != nil {
		return core.Info{}, nil, err
	}
	meta, err := readSidecar(metaPath, key)
	if err != nil {
		return core.Info{}, nil, err
	}
	file, err := os.Open(dataPath)
	if err != nil {
		return core.Info{}, nil, notFound(err, key)
	}
	return meta.info(s, key), file, nil
}

func (s *Store) Head(_ context.Context, key string) (core.Info, error) {
	_, metaPath, err := s.paths(key)
	if err != nil {
		return core.Info{}, err
	}
	meta, err := readSidecar(metaPath, key)
	if err != nil {
		return core.Info{}, err
	}
	return meta.info(s, key), nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	dataPath, metaPath, err := s.paths(key)
	if err != nil {
		return false, err
	}
	if err := os.Remove(dataPath); err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	_ = os.Remove(metaPath)
	return true, nil
}

func (s *Store) List(_ context.Context, prefix string) ([]core.Info, error) {
	var infos []core.Info
	err := filepath.WalkDir(s.root, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, metaSuffix) {
			return nil
		}
		rel, err := filepath.Rel(s.root, strings.TrimSuffix(path, metaSuffix))
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		meta, err := readSidecar(path, key)
		if err != nil {
			return err
		}
		infos = append(infos, meta.info(s, key))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// PresignURL returns an unauthenticated local URL; only GET is supported.
func (s *Store) PresignURL(_ context.Context, key string, opts core.SignedURLOptions) (string, error) {
	if opts.Method != "" && !strings.EqualFold(opts.Method, "GET") {
		return "", core.ErrUnsupported
	}
	if _, err := cleanKey(key); err != nil {
		return "", err
	}
	return s.localURL(key), nil
}

func (s *Store) localURL(key string) string {
	return (&url.URL{Scheme: "http", Host: "local.blob", Path: "/" + key}).String()
}

func readSidecar(path, key string) (sidecar, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return sidecar{}, notFound(err, key)
	}
	var meta sidecar
	if err := json.Unmarshal(raw, &meta); err != nil {
		return sidecar{}, fmt.Errorf("decode blob metadata %s: %w", key, err)
	}
	return meta, nil
}

func notFound(err error, key string) error {
	if errors.Is(err, iofs.ErrNotExist) {
		return fmt.Errorf("%w: %s", core.ErrNotFound, key)
	}
	return err
}
