package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteAndPath(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	key, err := store.Write(context.Background(), "models/task-1.glb", []byte("bytes"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if key != "models/task-1.glb" {
		t.Fatalf("key = %q", key)
	}

	path, err := store.Path(key)
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "bytes" {
		t.Fatalf("read back: %v %q", err, data)
	}
}

func TestWriteFromStreams(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	key, err := store.WriteFrom(context.Background(), "fits/pred-1.png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("write from: %v", err)
	}
	path, err := store.Path(key)
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if data, _ := os.ReadFile(path); string(data) != "png-bytes" {
		t.Fatalf("read back: %q", data)
	}
}

func TestSanitizeKeyRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if _, err := store.Write(context.Background(), "../escape.txt", []byte("x")); err == nil {
		t.Fatalf("traversal key must be rejected")
	}
	if _, err := store.Write(context.Background(), "", []byte("x")); err == nil {
		t.Fatalf("empty key must be rejected")
	}

	// Leading slashes and backslashes are normalized, not rejected.
	key, err := store.Write(context.Background(), "/models\\task.glb", []byte("x"))
	if err != nil {
		t.Fatalf("normalized key: %v", err)
	}
	if strings.Contains(key, "\\") || strings.HasPrefix(key, "/") {
		t.Fatalf("key = %q", key)
	}
	if _, statErr := os.Stat(filepath.Join(store.BasePath(), filepath.FromSlash(key))); statErr != nil {
		t.Fatalf("file missing: %v", statErr)
	}
}

func TestNilStore(t *testing.T) {
	var store *FileStore
	if _, err := store.Write(context.Background(), "k", nil); err == nil {
		t.Fatalf("nil store must error")
	}
	if _, err := store.Path("k"); err == nil {
		t.Fatalf("nil store must error")
	}
}
