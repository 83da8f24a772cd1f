package utils

import (
	"errors"
	"fmt"
	"os"
)

// WithTempDir creates a temporary directory, runs fn inside it and removes the
// directory afterwards, whether fn returns an error or panics.
func WithTempDir(pattern string, fn func(dir string) error) (err error) {
	dir, err := os.MkdirTemp("", pattern)
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to remove temp dir %s: %w", dir, rmErr))
		}
	}()

	return fn(dir)
}
