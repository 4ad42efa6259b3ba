package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// uriScheme prefixes every URI returned by the filesystem store.
const uriScheme = "blob://"

// FSStore stores blobs as files under a root directory. URIs have the form
// blob://<path>.
type FSStore struct {
	root string
}

// NewFSStore creates a filesystem-backed blob store rooted at dir.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create blob root %s: %w", dir, err)
	}
	return &FSStore{root: dir}, nil
}

// Put writes data under path and returns its URI.
func (s *FSStore) Put(_ context.Context, path string, data []byte) (string, error) {
	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o600); err != nil {
		return "", fmt.Errorf("write blob %s: %w", path, err)
	}
	return uriScheme + path, nil
}

// Get reads the bytes addressed by a URI returned by Put.
func (s *FSStore) Get(_ context.Context, uri string) ([]byte, error) {
	path := strings.TrimPrefix(uri, uriScheme)
	if path == uri {
		return nil, fmt.Errorf("unknown blob uri scheme: %s", uri)
	}
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full) //nolint:gosec // path is validated against the store root
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", path, err)
	}
	return data, nil
}

// resolve joins a blob path with the root and rejects escapes.
func (s *FSStore) resolve(path string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(path))
	if !strings.HasPrefix(full, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid blob path: %s", path)
	}
	return full, nil
}
