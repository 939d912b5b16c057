package dbopen

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestOpenMemory_Pragmas(t *testing.T) {
	db := OpenMemory(t)

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if fk != 1 {
		t.Fatalf("foreign_keys = %d, want 1", fk)
	}

	var busy int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&busy); err != nil {
		t.Fatal(err)
	}
	if busy != 10_000 {
		t.Fatalf("busy_timeout = %d, want 10000", busy)
	}
}

func TestOpen_FileWithSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	db, err := Open(path, WithMkdirAll(), WithSchema(`CREATE TABLE t (v TEXT)`), WithBusyTimeout(500))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if _, err := Exec(context.Background(), db, `INSERT INTO t (v) VALUES (?)`, "x"); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Fatalf("journal_mode = %q, want wal", mode)
	}
}

func TestOpen_BadSchema(t *testing.T) {
	if _, err := Open(":memory:", WithSchema("NOT SQL")); err == nil {
		t.Fatal("want error for invalid schema")
	}
}

func TestIsBusy(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("SQLITE_BUSY"), true},
		{errors.New("database is locked"), true},
		{errors.New("database table is locked"), true},
		{errors.New("no such table"), false},
	}
	for _, tt := range tests {
		if got := IsBusy(tt.err); got != tt.want {
			t.Errorf("IsBusy(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
