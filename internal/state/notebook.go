// internal/state/notebook.go
package state

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/user/nbbridge/internal/types"
)

const notebookExt = ".ipynb"

// NotebookStore is a file-backed notebook store. Documents are kept as
// nbformat JSON under notebooks/<path>.ipynb, where path is a slash separated
// name relative to the store.
type NotebookStore struct {
	root string
	mu   sync.RWMutex
}

// NewNotebookStore creates a new file-backed NotebookStore rooted at the given directory.
func NewNotebookStore(root string) *NotebookStore {
	return &NotebookStore{root: root}
}

func (s *NotebookStore) notebooksDir() string {
	return filepath.Join(s.root, "notebooks")
}

// CleanPath validates a notebook path and returns its canonical slash form.
// Absolute paths, traversal outside the store and names without the .ipynb
// extension are rejected.
func CleanPath(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	if strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, p)
	}
	cleaned := path.Clean(p)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, p)
	}
	if path.Ext(cleaned) != notebookExt || path.Base(cleaned) == notebookExt {
		return "", fmt.Errorf("%w: must end in %s: %s", ErrInvalidPath, notebookExt, p)
	}
	return cleaned, nil
}

func (s *NotebookStore) filePath(p string) (string, error) {
	cleaned, err := CleanPath(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.notebooksDir(), filepath.FromSlash(cleaned)), nil
}

// Read returns the raw document stored at path.
func (s *NotebookStore) Read(_ context.Context, p string) ([]byte, error) {
	file, err := s.filePath(p)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("notebook %s: %w", p, ErrNotFound)
		}
		return nil, fmt.Errorf("read notebook: %w", err)
	}
	return data, nil
}

// Write stores data at path, replacing any previous content atomically.
func (s *NotebookStore) Write(_ context.Context, p string, data []byte) error {
	file, err := s.filePath(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return writeAtomic(file, data)
}

// List returns every stored notebook, sorted by path.
func (s *NotebookStore) List(_ context.Context) ([]*types.NotebookInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir := s.notebooksDir()
	var out []*types.NotebookInfo
	err := filepath.WalkDir(dir, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && file == dir {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || filepath.Ext(file) != notebookExt {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, file)
		if err != nil {
			return err
		}
		out = append(out, &types.NotebookInfo{
			Path:         filepath.ToSlash(rel),
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list notebooks: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// writeAtomic writes to a temp file then renames it over the destination.
func writeAtomic(file string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp := file + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, file); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
