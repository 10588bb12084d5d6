package server

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ErrPathNotAllowed is returned when a request names a path outside the
// render root.
var ErrPathNotAllowed = errors.New("path is outside the render root")

// resolvePath joins rel under root. rel must be a local path, and once
// symlinks are followed it must still point inside root. Paths that cannot
// be resolved yet are checked through their nearest resolvable parent.
func resolvePath(root, rel string) (string, error) {
	if root == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q", ErrPathNotAllowed, rel)
	}
	root = filepath.Clean(root)
	path := filepath.Join(root, rel)

	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", fmt.Errorf("resolve render root: %w", err)
	}

	for existing := path; ; existing = filepath.Dir(existing) {
		real, err := filepath.EvalSymlinks(existing)
		if err != nil {
			if existing == root {
				return "", fmt.Errorf("resolve render root: %w", err)
			}
			continue
		}
		inside, err := filepath.Rel(realRoot, real)
		if err != nil || !filepath.IsLocal(inside) {
			return "", fmt.Errorf("%w: %q", ErrPathNotAllowed, rel)
		}
		return path, nil
	}
}

// validFileName reports whether name is a single local path element.
func validFileName(name string) bool {
	return filepath.IsLocal(name) && filepath.Base(name) == name && name != "."
}
