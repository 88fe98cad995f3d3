package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bakerycore/internal/blob/core"
)

func TestRejectsUnsafeKeys(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, key := range []string{"", "  ", "../escape", "/abs/path", "a/../../b", "report.csv.meta"} {
		if _, err := store.Put(context.Background(), key, strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
			t.Fatalf("key %q: want ErrInvalidKey, got %v", key, err)
		}
	}
}

func TestSidecarCarriesChecksumAndClock(t *testing.T) {
	root := t.TempDir()
	store, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	stamp := time.Date(2024, 5, 2, 18, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return stamp }

	info, err := store.Put(context.Background(), "exports/cost.json", strings.NewReader("{}"), core.PutOptions{ContentType: "application/json"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	// sha256("{}")
	if info.ETag != "44136fa355b3678a1146ad16f7e8649e94fb4fc21fe77e8310c060f61caaff8a" {
		t.Fatalf("etag %s", info.ETag)
	}
	if !info.LastModified.Equal(stamp) {
		t.Fatalf("last modified %v", info.LastModified)
	}
	if _, err := os.Stat(filepath.Join(root, "exports", "cost.json.meta")); err != nil {
		t.Fatalf("sidecar missing: %v", err)
	}
	leftovers, _ := filepath.Glob(filepath.Join(root, "exports", ".tmp-*"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
}

func TestCorruptSidecarIsReported(t *testing.T) {
	root := t.TempDir()
	store, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := store.Put(context.Background(), "k", strings.NewReader("v"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "k.meta"), []byte("{"), 0o644); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	if _, err := store.Head(context.Background(), "k"); err == nil || errors.Is(err, core.ErrNotFound) {
		t.Fatalf("want decode error, got %v", err)
	}
	if _, err := store.List(context.Background(), ""); err == nil {
		t.Fatalf("list should surface the decode error")
	}
}

func TestPutHonoursCancelledContext(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Put(ctx, "k", strings.NewReader("v"), core.PutOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}
