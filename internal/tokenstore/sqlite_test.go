package tokenstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"bank-dashboard-client-go/internal/models"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(context.Background(), models.StorageConfig{
		Path:        ":memory:",
		PingTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestLoadWithoutToken(t *testing.T) {
	store := setupTestStore(t)

	if _, err := store.Load(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveLoadClear(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "token-one"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	token, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if token != "token-one" {
		t.Errorf("expected token-one, got %q", token)
	}

	// The fixed key means a second save replaces, never appends.
	if err := store.Save(ctx, "token-two"); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}
	token, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("Load after overwrite failed: %v", err)
	}
	if token != "token-two" {
		t.Errorf("expected token-two, got %q", token)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after Clear, got %v", err)
	}
}

func TestClearIsIdempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear on empty store failed: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("second Clear failed: %v", err)
	}
}

func TestSaveRejectsEmptyToken(t *testing.T) {
	store := setupTestStore(t)

	if err := store.Save(context.Background(), ""); err == nil {
		t.Error("expected error persisting an empty token")
	}
}
