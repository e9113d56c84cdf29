package blob

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}

	key := uuid.NewString()
	payload := []byte{0x1a, 0x45, 0xdf, 0xa3, 0x00, 0x01}
	if err := store.Store(key, payload, "webm"); err != nil {
		t.Fatalf("Store error: %v", err)
	}

	data, format, err := store.Load(key)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatalf("payload mismatch: %v", data)
	}
	if format != "webm" {
		t.Fatalf("format = %q, want webm", format)
	}

	if err := store.Delete(key); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, _, err := store.Load(key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestFileStoreRejectsTraversalKeys(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	for _, key := range []string{"", "../escape", "a/b", "a.b"} {
		if err := store.Store(key, []byte("x"), "wav"); err == nil {
			t.Errorf("expected key %q to be rejected", key)
		}
	}
}

func TestFileStoreUnknownFormatFallsBack(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	key := uuid.NewString()
	if err := store.Store(key, []byte("x"), "exe"); err != nil {
		t.Fatalf("Store error: %v", err)
	}
	_, format, err := store.Load(key)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if format != "bin" {
		t.Fatalf("format = %q, want bin", format)
	}
}
