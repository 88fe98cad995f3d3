package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"bakerycore/internal/infra/persistence/memory"
	"bakerycore/internal/infra/persistence/postgres/testutil"
	"bakerycore/pkg/domain"
)

func openStub(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)
	store, err := NewStore(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, conn
}

func TestCommitWritesEveryBucket(t *testing.T) {
	store, conn := openStub(t)
	_, err := store.RunInTransaction(context.Background(), func(uow domain.UnitOfWork) error {
		_, err := uow.Ingredients().Add(domain.Ingredient{Name: "Flour", Unit: domain.UnitKilogram, CurrentStock: decimal.NewFromInt(3)})
		return err
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	rows := conn.Rows("state")
	if len(rows) != len(memory.BucketNames) {
		t.Fatalf("expected %d buckets, got %d", len(memory.BucketNames), len(rows))
	}
	for _, row := range rows {
		if row["bucket"] != "ingredients" {
			continue
		}
		var payload map[string]domain.Ingredient
		if err := json.Unmarshal(row["payload"].([]byte), &payload); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(payload) != 1 {
			t.Fatalf("expected one ingredient persisted, got %d", len(payload))
		}
	}
}

func TestFailedCommitLeavesMemoryUnchanged(t *testing.T) {
	store, conn := openStub(t)
	conn.FailCommit = true
	_, err := store.RunInTransaction(context.Background(), func(uow domain.UnitOfWork) error {
		_, err := uow.Products().Add(domain.Product{Name: "Roll"})
		return err
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(conn.Rows("state")) != 0 {
		t.Fatalf("expected staged rows discarded")
	}
	if len(store.ExportState().Products) != 0 {
		t.Fatalf("expected no products after failed commit")
	}
}

func TestNewStoreHydratesFromState(t *testing.T) {
	db, conn := testutil.NewStubDB()
	payload, _ := json.Marshal(map[int64]domain.Product{7: {Base: domain.Base{ID: 7}, Name: "Bagel", IsActive: true}})
	conn.Tables["state"] = []map[string]any{{"bucket": "products", "payload": payload}}
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore(context.Background(), "postgres://stub", nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	bagel, err := store.NewUnitOfWork().Products().GetByID(7)
	if err != nil || bagel.Name != "Bagel" {
		t.Fatalf("expected hydrated product, got %+v err=%v", bagel, err)
	}
}

func TestNewStoreReportsPingFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), "", nil); err == nil {
		t.Fatalf("expected ping failure")
	}
}
