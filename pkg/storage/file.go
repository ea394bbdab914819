package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	pkgerrors "github.com/absmach/fedcoord/pkg/errors"
)

type fileStorage struct {
	root string
}

// NewFileStorage stores every blob as a file below root, one directory per
// key segment.
func NewFileStorage(root string) (WeightStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &fileStorage{root: root}, nil
}

func (s *fileStorage) Write(_ context.Context, key string, blob []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()

		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	return nil
}

func (s *fileStorage) Read(_ context.Context, key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, pkgerrors.ErrNotFound
		}

		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}

	return data, nil
}

func (s *fileStorage) path(key string) (string, error) {
	if key == "" {
		return "", pkgerrors.ErrEmptyKey
	}

	segments := strings.Split(key, "/")
	for _, seg := range segments {
		if seg == "" || sanitizeSegment(seg) != seg {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}

	return filepath.Join(append([]string{s.root}, segments...)...), nil
}

// sanitizeSegment keeps only characters that are safe in a file name.
// Keys whose segments change under sanitizing are rejected, so no key can
// escape the storage root.
func sanitizeSegment(seg string) string {
	var b strings.Builder
	for _, r := range seg {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
		}
	}

	out := b.String()
	if out == "." || out == ".." {
		return ""
	}

	return out
}
