package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"adscope/internal/domain/creative"
	"adscope/internal/infrastructure/storage"
)

func newStore(t *testing.T) (*storage.ContentStore, string) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewContentStore(root, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewContentStore: %v", err)
	}
	return store, root
}

func TestWriteAddressesByFingerprintAndType(t *testing.T) {
	store, root := newStore(t)

	path, err := store.Write(context.Background(), "abc123", creative.MediaTypeImage, ".png", []byte("payload"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	want := filepath.Join(root, "image", "abc123.png")
	if path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("content = %q, want %q", data, "payload")
	}
	if !store.Exists(path) {
		t.Fatal("Exists returned false for a written file")
	}
}

func TestWriteNormalizesExtension(t *testing.T) {
	store, root := newStore(t)

	tests := []struct {
		ext  string
		want string
	}{
		{"mp4", "f1.mp4"},
		{".MP4", "f2.mp4"},
		{"", "f3.bin"},
	}
	for i, tc := range tests {
		fingerprint := []string{"f1", "f2", "f3"}[i]
		path, err := store.Write(context.Background(), fingerprint, creative.MediaTypeVideo, tc.ext, []byte("x"))
		if err != nil {
			t.Fatalf("Write(%q): %v", tc.ext, err)
		}
		if got := filepath.Base(path); got != tc.want {
			t.Errorf("Write(%q) basename = %q, want %q", tc.ext, got, tc.want)
		}
	}

	_ = root
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	store, root := newStore(t)

	if _, err := store.Write(context.Background(), "abc", creative.MediaTypeImage, ".png", []byte("data")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(root, "image"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, entry := range entries {
		if strings.Contains(entry.Name(), ".tmp-") {
			t.Errorf("leftover temp file %q after successful write", entry.Name())
		}
	}
}

func TestRemoveToleratesMissingFile(t *testing.T) {
	store, root := newStore(t)

	missing := filepath.Join(root, "image", "ghost.png")
	if err := store.Remove(context.Background(), missing); err != nil {
		t.Fatalf("Remove(missing) = %v, want nil", err)
	}
}

func TestHealth(t *testing.T) {
	store, _ := newStore(t)
	if err := store.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
}
