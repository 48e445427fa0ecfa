// internal/state/checkpoint.go
package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/user/nbbridge/internal/types"
)

// CheckpointStore keeps saved revisions of notebooks. Revisions of a
// notebook live at checkpoints/<path without extension>/<checkpointID>.ipynb
// next to an index.json listing them.
type CheckpointStore struct {
	root string
	max  int
	mu   sync.Mutex
}

// NewCheckpointStore creates a CheckpointStore rooted at the given directory.
// When max is positive, only the newest max checkpoints of each notebook are kept.
func NewCheckpointStore(root string, max int) *CheckpointStore {
	return &CheckpointStore{root: root, max: max}
}

func (c *CheckpointStore) checkpointsDir(p string) (string, error) {
	cleaned, err := CleanPath(p)
	if err != nil {
		return "", err
	}
	base := strings.TrimSuffix(cleaned, notebookExt)
	return filepath.Join(c.root, "checkpoints", filepath.FromSlash(base)), nil
}

func (c *CheckpointStore) loadIndex(dir string) ([]*types.Checkpoint, error) {
	data, err := os.ReadFile(filepath.Join(dir, "index.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return []*types.Checkpoint{}, nil
		}
		return nil, fmt.Errorf("read checkpoint index: %w", err)
	}
	var index []*types.Checkpoint
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint index: %w", err)
	}
	return index, nil
}

func (c *CheckpointStore) saveIndex(dir string, index []*types.Checkpoint) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint index: %w", err)
	}
	return writeAtomic(filepath.Join(dir, "index.json"), data)
}

// Create records data as a new checkpoint of the notebook at path.
func (c *CheckpointStore) Create(_ context.Context, p string, data []byte) (*types.Checkpoint, error) {
	dir, err := c.checkpointsDir(p)
	if err != nil {
		return nil, err
	}
	digest, err := Digest(data)
	if err != nil {
		return nil, fmt.Errorf("digest checkpoint: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	index, err := c.loadIndex(dir)
	if err != nil {
		return nil, err
	}

	cp := &types.Checkpoint{
		ID:           types.NewCheckpointID(),
		LastModified: time.Now().UTC(),
		Digest:       digest,
	}
	if err := writeAtomic(filepath.Join(dir, string(cp.ID)+notebookExt), data); err != nil {
		return nil, fmt.Errorf("write checkpoint: %w", err)
	}
	index = append(index, cp)

	if c.max > 0 && len(index) > c.max {
		for _, old := range index[:len(index)-c.max] {
			os.Remove(filepath.Join(dir, string(old.ID)+notebookExt))
		}
		index = index[len(index)-c.max:]
	}

	if err := c.saveIndex(dir, index); err != nil {
		return nil, err
	}
	return cp, nil
}

// List returns the checkpoints of the notebook at path, oldest first.
func (c *CheckpointStore) List(_ context.Context, p string) ([]*types.Checkpoint, error) {
	dir, err := c.checkpointsDir(p)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	index, err := c.loadIndex(dir)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(index, func(i, j int) bool {
		return index[i].LastModified.Before(index[j].LastModified)
	})
	return index, nil
}

// Get returns the document stored in checkpoint id.
func (c *CheckpointStore) Get(_ context.Context, p string, id types.CheckpointID) ([]byte, error) {
	dir, err := c.checkpointsDir(p)
	if err != nil {
		return nil, err
	}
	if strings.ContainsAny(string(id), `/\`) || id == "" {
		return nil, fmt.Errorf("invalid checkpoint id: %s", id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(dir, string(id)+notebookExt))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("checkpoint %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	return data, nil
}

// Digest returns the sha256 of the RFC 8785 canonical form of a JSON
// document, so that formatting differences do not change it.
func Digest(data []byte) (string, error) {
	canonical, err := jcs.Transform(data)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
