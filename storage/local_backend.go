package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalBackend keeps blobs in a directory tree
type LocalBackend struct {
	root string
}

// NewLocalBackend creates the blob directory under root
func NewLocalBackend(root string) (*LocalBackend, error) {
	dir := filepath.Join(root, "blobs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &LocalBackend{root: dir}, nil
}

func (b *LocalBackend) Upload(_ context.Context, key, src string) (string, error) {
	dst, err := b.path(key)
	if err != nil {
		return "", err
	}
	if err := copyFile(src, dst); err != nil {
		return "", err
	}
	return "file://" + filepath.ToSlash(dst), nil
}

func (b *LocalBackend) Download(_ context.Context, key, dst string) error {
	src, err := b.path(key)
	if err != nil {
		return err
	}
	return copyFile(src, dst)
}

func (b *LocalBackend) Close() error {
	return nil
}

func (b *LocalBackend) path(key string) (string, error) {
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return "", fmt.Errorf("invalid object key %q", key)
		}
	}
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(b.root, filepath.FromSlash(clean)), nil
}
