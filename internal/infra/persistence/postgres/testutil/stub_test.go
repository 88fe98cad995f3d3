package testutil

import (
	"context"
	"testing"
)

func TestStagedInsertsApplyOnCommit(t *testing.T) {
	db, conn := NewStubDB()
	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES($1,$2)`, "sales", []byte("{}")); err != nil {
		t.Fatalf("exec: %v", err)
	}
	if len(conn.Rows("state")) != 0 {
		t.Fatalf("expected insert staged until commit")
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES($1,$2)`, "sales", []byte(`{"1":{}}`)); err != nil {
		t.Fatalf("exec: %v", err)
	}
	rows := conn.Rows("state")
	if len(rows) != 1 || string(rows[0]["payload"].([]byte)) != `{"1":{}}` {
		t.Fatalf("expected upsert by bucket, got %+v", rows)
	}
}

func TestRollbackDiscardsStagedInserts(t *testing.T) {
	db, conn := NewStubDB()
	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES($1,$2)`, "sales", []byte("{}")); err != nil {
		t.Fatalf("exec: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if len(conn.Rows("state")) != 0 {
		t.Fatalf("expected rollback to discard staged rows")
	}
}
