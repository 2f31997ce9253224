package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Writer commits final file content.
type Writer interface {
	Write(ctx context.Context, path, content string) error
}

// Change is one file's staged content against what was on disk when it
// was first staged.
type Change struct {
	Path    string
	Old     string
	New     string
	Existed bool
}

func (c Change) Created() bool {
	return !c.Existed
}

// Workspace overlays staged content on top of the files under a root.
// Reads see earlier stages, so blocks for the same path build on each
// other before anything is written.
type Workspace struct {
	resolver *PathResolver

	mu     sync.Mutex
	staged map[string]*Change
}

func New(resolver *PathResolver) *Workspace {
	return &Workspace{resolver: resolver, staged: make(map[string]*Change)}
}

func (w *Workspace) Resolver() *PathResolver {
	return w.resolver
}

// Read returns the current content of an absolute path and whether the
// file exists, either staged or on disk.
func (w *Workspace) Read(path string) (string, bool, error) {
	w.mu.Lock()
	if c, ok := w.staged[path]; ok {
		w.mu.Unlock()
		return c.New, true, nil
	}
	w.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), true, nil
}

// Stage records content as the new state of path.
func (w *Workspace) Stage(path, content string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if c, ok := w.staged[path]; ok {
		c.New = content
		return nil
	}

	data, err := os.ReadFile(path)
	existed := err == nil
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	w.staged[path] = &Change{Path: path, Old: string(data), New: content, Existed: existed}
	return nil
}

// Staged returns the staged changes that differ from disk, sorted by path.
func (w *Workspace) Staged() []Change {
	w.mu.Lock()
	defer w.mu.Unlock()

	changes := make([]Change, 0, len(w.staged))
	for _, c := range w.staged {
		if c.Existed && c.Old == c.New {
			continue
		}
		changes = append(changes, *c)
	}
	slices.SortFunc(changes, func(a, b Change) int { return strings.Compare(a.Path, b.Path) })
	return changes
}

// DiskWriter writes files atomically through a temporary file in the same
// directory, creating parent directories as needed.
type DiskWriter struct{}

func (DiskWriter) Write(ctx context.Context, path, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directory '%s': %w", dir, err)
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
