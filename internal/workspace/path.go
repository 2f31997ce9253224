// Package workspace reads and writes the files edits are applied to.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrOutsideRoot = errors.New("path escapes the workspace root")

// PathResolver maps block paths onto absolute paths under a root.
type PathResolver struct {
	root string
}

// NewPathResolver roots paths at root, or at the working directory when
// root is empty.
func NewPathResolver(root string) (*PathResolver, error) {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("could not get current working directory: %w", err)
		}
		root = wd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &PathResolver{root: abs}, nil
}

func (r *PathResolver) Root() string {
	return r.root
}

// Resolve returns the absolute form of path. Relative paths are joined to
// the root. Either way the result must stay inside the root.
func (r *PathResolver) Resolve(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("empty path")
	}

	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(r.root, path)
	}
	abs = filepath.Clean(abs)

	rel, err := filepath.Rel(r.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", path, ErrOutsideRoot)
	}
	return abs, nil
}

// Rel returns path relative to the root when possible.
func (r *PathResolver) Rel(path string) string {
	if rel, err := filepath.Rel(r.root, path); err == nil {
		return rel
	}
	return path
}
