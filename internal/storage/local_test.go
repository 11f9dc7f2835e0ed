package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStorage_PutGetDelete(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	ctx := context.Background()

	key := "events/ab/object.json.sz"
	content := []byte("hello world")
	if err := storage.Put(ctx, key, content); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	exists, err := storage.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("expected object to exist")
	}

	got, err := storage.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q, want %q", got, content)
	}

	if err := storage.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	exists, err = storage.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists after delete failed: %v", err)
	}
	if exists {
		t.Error("expected object to not exist after delete")
	}
}

func TestLocalStorage_PutReplaces(t *testing.T) {
	storage, _ := NewLocalStorage(t.TempDir())
	ctx := context.Background()

	storage.Put(ctx, "k", []byte("first"))
	if err := storage.Put(ctx, "k", []byte("second")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, _ := storage.Get(ctx, "k")
	if string(got) != "second" {
		t.Errorf("got %q, want second", got)
	}
}

func TestLocalStorage_GetMissing(t *testing.T) {
	storage, _ := NewLocalStorage(t.TempDir())

	_, err := storage.Get(context.Background(), "nope")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestLocalStorage_DeleteMissingIsIdempotent(t *testing.T) {
	storage, _ := NewLocalStorage(t.TempDir())

	if err := storage.Delete(context.Background(), "nope"); err != nil {
		t.Errorf("deleting a missing object should succeed, got %v", err)
	}
}

func TestLocalStorage_List(t *testing.T) {
	storage, _ := NewLocalStorage(t.TempDir())
	ctx := context.Background()

	for _, key := range []string{"events/b/2", "events/a/1", "other/3"} {
		if err := storage.Put(ctx, key, []byte(key)); err != nil {
			t.Fatalf("Put %s: %v", key, err)
		}
	}

	keys, err := storage.List(ctx, "events")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 2 || keys[0] != "events/a/1" || keys[1] != "events/b/2" {
		t.Errorf("List = %v", keys)
	}

	keys, err = storage.List(ctx, "missing")
	if err != nil || len(keys) != 0 {
		t.Errorf("List of missing prefix = %v, %v", keys, err)
	}
}

func TestLocalStorage_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	storage, _ := NewLocalStorage(dir)
	storage.Put(context.Background(), "x/y", []byte("data"))

	entries, err := os.ReadDir(filepath.Join(dir, "x"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "y" {
		t.Errorf("unexpected directory contents %v", entries)
	}
}

func TestLocalStorage_CancelledContext(t *testing.T) {
	storage, _ := NewLocalStorage(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := storage.Put(ctx, "k", []byte("v")); !errors.Is(err, context.Canceled) {
		t.Errorf("Put with cancelled context = %v", err)
	}
	if _, err := storage.Get(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Errorf("Get with cancelled context = %v", err)
	}
}
