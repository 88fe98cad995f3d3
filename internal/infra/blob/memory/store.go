// Package memory implements a process-local blob store.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"bakerycore/internal/blob/core"
)

type object struct {
	info core.Info
	data []byte
}

// Store implements core.Store in memory. Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	objs map[string]object
}

// New returns an empty store.
func New() *Store { return &Store{objs: make(map[string]object)} }

func (s *Store) Driver() core.Driver { return core.DriverMemory }

func (s *Store) Put(_ context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	if strings.TrimSpace(key) == "" {
		return core.Info{}, fmt.Errorf("%w: empty", core.ErrInvalidKey)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return core.Info{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objs[key]; exists {
		return core.Info{}, fmt.Errorf("%w: %s", core.ErrExists, key)
	}
	info := core.Info{
		Key:          key,
		Size:         int64(len(data)),
		ContentType:  opts.ContentType,
		Metadata:     core.CloneMetadata(opts.Metadata),
		LastModified: time.Now().UTC(),
	}
	s.objs[key] = object{info: info, data: data}
	return copyInfo(info), nil
}

func (s *Store) lookup(key string) (object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objs[key]
	if !ok {
		return object{}, fmt.Errorf("%w: %s", core.ErrNotFound, key)
	}
	return obj, nil
}

func (s *Store) Get(_ context.Context, key string) (core.Info, io.ReadCloser, error) {
	obj, err := s.lookup(key)
	if err != nil {
		return core.Info{}, nil, err
	}
	return copyInfo(obj.info), io.NopCloser(bytes.NewReader(bytes.Clone(obj.data))), nil
}

func (s *Store) Head(_ context.Context, key string) (core.Info, error) {
	obj, err := s.lookup(key)
	if err != nil {
		return core.Info{}, err
	}
	return copyInfo(obj.info), nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objs[key]
	delete(s.objs, key)
	return ok, nil
}

func (s *Store) List(_ context.Context, prefix string) ([]core.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Info, 0, len(s.objs))
	for key, obj := range s.objs {
		if strings.HasPrefix(key, prefix) {
			out = append(out, copyInfo(obj.info))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// PresignURL is not available in memory.
func (s *Store) PresignURL(context.Context, string, core.SignedURLOptions) (string, error) {
	return "", core.ErrUnsupported
}

func copyInfo(info core.Info) core.Info {
	info.Metadata = core.CloneMetadata(info.Metadata)
	return info
}
