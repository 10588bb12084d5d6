package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrInvalidKey is returned when a publish key would escape the publish
// directory.
var ErrInvalidKey = errors.New("invalid publish key")

// Compile-time check that LocalStorage implements Storage.
var _ Storage = (*LocalStorage)(nil)

// LocalStorage implements the Storage interface using local disk.
// Without a publish directory videos stay where ffmpeg wrote them;
// otherwise they are copied into it.
type LocalStorage struct {
	publishDir string
}

// NewLocalStorage creates a new LocalStorage instance.
// If publishDir is empty, Publish returns the rendered path unchanged.
// The directory is created if it doesn't exist.
func NewLocalStorage(publishDir string) (*LocalStorage, error) {
	if publishDir != "" {
		if err := os.MkdirAll(publishDir, 0750); err != nil {
			return nil, fmt.Errorf("create publish directory: %w", err)
		}
	}
	return &LocalStorage{publishDir: publishDir}, nil
}

// PublishDir returns the publish directory path.
func (s *LocalStorage) PublishDir() string {
	return s.publishDir
}

// Publish copies the video at path to <publishDir>/<key> and returns the
// destination path.
func (s *LocalStorage) Publish(ctx context.Context, key, path string) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("stat rendered video: %w", err)
	}
	if s.publishDir == "" {
		return path, nil
	}
	if !filepath.IsLocal(filepath.FromSlash(key)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	dst := filepath.Join(s.publishDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0750); err != nil {
		return "", fmt.Errorf("create publish directory: %w", err)
	}
	if err := copyFile(path, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// Cleanup removes the specified files.
// It continues cleanup even if some files fail to delete,
// returning the first error encountered.
func (s *LocalStorage) Cleanup(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove file %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// copyFile streams src into a new file at dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 - src is the rendered video path
	if err != nil {
		return fmt.Errorf("open rendered video: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) // #nosec G304 - dst is inside the publish dir
	if err != nil {
		return fmt.Errorf("create published video: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("write published video: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("close published video: %w", err)
	}
	return nil
}
