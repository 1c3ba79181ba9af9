package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DirStore implements Store on a local directory. Keys map to paths below
// the root; keys escaping the root are rejected.
type DirStore struct {
	root string
}

// NewDirStore creates root if needed and returns a DirStore over it.
func NewDirStore(root string) (*DirStore, error) {
	if root == "" {
		return nil, fmt.Errorf("blob: directory must be set")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, unavailable("create root", err)
	}
	return &DirStore{root: root}, nil
}

func (s *DirStore) path(key string) (string, error) {
	p := filepath.Join(s.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("blob: invalid key %q", key)
	}
	return p, nil
}

// Put writes data atomically by renaming a temp file into place.
func (s *DirStore) Put(_ context.Context, key string, data []byte, _ string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return unavailable("put", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return unavailable("put", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return unavailable("put", err)
	}
	if err := tmp.Close(); err != nil {
		return unavailable("put", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return unavailable("put", err)
	}
	return nil
}

// Get reads the blob under key.
func (s *DirStore) Get(_ context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, unavailable("get", err)
	}
	return data, nil
}

// Delete removes the blob under key.
func (s *DirStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return unavailable("delete", err)
	}
	return nil
}

// Ping checks that the root directory is accessible.
func (s *DirStore) Ping(context.Context) error {
	if _, err := os.Stat(s.root); err != nil {
		return unavailable("ping", err)
	}
	return nil
}
