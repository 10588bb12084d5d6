// Package storage delivers finished videos to their final location.
// It defines the Storage interface (port) and implementations for local
// disk and S3.
package storage

import "context"

// Storage defines the interface for publishing rendered videos.
type Storage interface {
	// Publish makes the video at path available under key and returns
	// its location: a filesystem path or a URL.
	Publish(ctx context.Context, key, path string) (location string, err error)

	// Cleanup removes the specified local files.
	// It continues cleanup even if some files fail to delete.
	Cleanup(ctx context.Context, paths []string) error
}
