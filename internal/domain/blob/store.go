// Package blob stores recorded audio payloads as opaque objects. Journal
// notes reference payloads by key; the journaling core never inspects the
// bytes beyond duration probing.
package blob

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	platformerrors "voicenote-server-go/internal/platform/errors"
)

// ErrNotFound is returned when a payload key has no stored object.
var ErrNotFound = platformerrors.New(platformerrors.KindStorage, "blob", "payload not found")

// Store persists audio payloads under opaque keys.
type Store interface {
	Store(key string, data []byte, format string) error
	Load(key string) ([]byte, string, error)
	Delete(key string) error
}

// FileStore keeps payloads as files in a flat directory, one file per key
// with the format as extension.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "blob.new",
			"create blob directory", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Store(key string, data []byte, format string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	format = sanitizeFormat(format)
	path := filepath.Join(s.dir, key+"."+format)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "blob.store",
			"write payload", err)
	}
	return nil
}

func (s *FileStore) Load(key string) ([]byte, string, error) {
	if err := validateKey(key); err != nil {
		return nil, "", err
	}
	matches, err := filepath.Glob(filepath.Join(s.dir, key+".*"))
	if err != nil || len(matches) == 0 {
		return nil, "", ErrNotFound
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		return nil, "", platformerrors.Wrap(platformerrors.KindStorage, "blob.load",
			"read payload", err)
	}
	format := strings.TrimPrefix(filepath.Ext(matches[0]), ".")
	return data, format, nil
}

func (s *FileStore) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	matches, err := filepath.Glob(filepath.Join(s.dir, key+".*"))
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "blob.delete",
			"resolve payload", err)
	}
	if len(matches) == 0 {
		return ErrNotFound
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil {
			return platformerrors.Wrap(platformerrors.KindStorage, "blob.delete",
				"remove payload", err)
		}
	}
	return nil
}

// Keys are uuids generated server-side; anything else is rejected so keys
// can never traverse out of the blob directory.
func validateKey(key string) error {
	if key == "" || strings.ContainsAny(key, "/\\.") {
		return platformerrors.New(platformerrors.KindStorage, "blob",
			fmt.Sprintf("invalid payload key %q", key))
	}
	return nil
}

func sanitizeFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "webm", "ogg", "mp3", "wav", "m4a":
		return format
	default:
		return "bin"
	}
}
