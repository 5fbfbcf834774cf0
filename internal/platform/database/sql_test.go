package database

import (
	"context"
	"testing"
)

func TestOpenSQLite(t *testing.T) {
	db, err := OpenSQL(context.Background(), nil, "sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var one int
	if err := db.Get(&one, "SELECT 1"); err != nil || one != 1 {
		t.Fatalf("expected 1, got %d err=%v", one, err)
	}
	if db.Stats().MaxOpenConnections != 1 {
		t.Fatalf("expected a single sqlite connection, got %d", db.Stats().MaxOpenConnections)
	}
}

func TestOpenSQLUnknownDriver(t *testing.T) {
	if _, err := OpenSQL(context.Background(), nil, "nope", "x"); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
