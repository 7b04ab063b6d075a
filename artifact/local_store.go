package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStoreKind selects the directory-backed store.
const LocalStoreKind = "local"

// LocalStore keeps blobs as files under a root directory.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, errors.New("local store: root directory is required")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("local store: create root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) Kind() string { return LocalStoreKind }

func (s *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("local store: key %q escapes the store root", key)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *LocalStore) Put(_ context.Context, key, localPath string) error {
	dest, err := s.path(key)
	if err != nil {
		return err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("local store: open %q: %w", localPath, err)
	}
	defer src.Close()

	if err := writeFileAtomic(dest, src); err != nil {
		return fmt.Errorf("local store: %w", err)
	}
	return nil
}

func (s *LocalStore) Get(_ context.Context, key, localPath string) error {
	srcPath, err := s.path(key)
	if err != nil {
		return err
	}

	src, err := os.Open(srcPath)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("local store: key %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("local store: open %q: %w", srcPath, err)
	}
	defer src.Close()

	if err := writeFileAtomic(localPath, src); err != nil {
		return fmt.Errorf("local store: %w", err)
	}
	return nil
}
