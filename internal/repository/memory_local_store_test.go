package repository

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryLocalStore_SetAndGet(t *testing.T) {
	store := NewMemoryLocalStore()
	ctx := context.Background()

	if err := store.Set(ctx, "sid-1", "pawhaven_theme", `"dark"`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get(ctx, "sid-1", "pawhaven_theme")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != `"dark"` {
		t.Errorf("value = %q, want %q", got, `"dark"`)
	}
}

func TestMemoryLocalStore_GetMissingKey_ReturnsErrNotFound(t *testing.T) {
	store := NewMemoryLocalStore()

	_, err := store.Get(context.Background(), "sid-1", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryLocalStore_SessionsAreIsolated(t *testing.T) {
	store := NewMemoryLocalStore()
	ctx := context.Background()

	if err := store.Set(ctx, "sid-1", "pawhaven_token", "token-a"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	_, err := store.Get(ctx, "sid-2", "pawhaven_token")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-session read: err = %v, want ErrNotFound", err)
	}
}

func TestMemoryLocalStore_RemoveMissingKey_NoError(t *testing.T) {
	store := NewMemoryLocalStore()

	if err := store.Remove(context.Background(), "sid-1", "missing"); err != nil {
		t.Errorf("Remove of missing key returned error: %v", err)
	}
}

func TestMemoryLocalStore_RemoveAll_ClearsSession(t *testing.T) {
	store := NewMemoryLocalStore()
	ctx := context.Background()

	store.Set(ctx, "sid-1", "pawhaven_user", `{"id":1}`)
	store.Set(ctx, "sid-1", "pawhaven_watchlist", `[]`)
	store.Set(ctx, "sid-2", "pawhaven_user", `{"id":2}`)

	if err := store.RemoveAll(ctx, "sid-1"); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}

	if _, err := store.Get(ctx, "sid-1", "pawhaven_user"); !errors.Is(err, ErrNotFound) {
		t.Errorf("sid-1 pawhaven_user still present after RemoveAll")
	}
	if _, err := store.Get(ctx, "sid-2", "pawhaven_user"); err != nil {
		t.Errorf("sid-2 entry was removed by RemoveAll of sid-1: %v", err)
	}
}
