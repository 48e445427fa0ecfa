// Package notebook implements the document sessions the bridge observes: a
// cell-based notebook with an active cell, a dirty flag, a save operation
// that records checkpoints, and the status of its kernel connection.
//
// A Notebook is not safe for concurrent use. The bridge confines every
// access to its event loop; signals fire synchronously on that goroutine.
package notebook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/user/nbbridge/internal/state"
	"github.com/user/nbbridge/internal/types"
)

// StateChange describes a change of the notebook model. Name is the field
// that changed: "ready" once the document is loaded, "cells", "source",
// "metadata" or "dirty".
type StateChange struct {
	Name string
}

type Notebook struct {
	id          types.DocumentID
	path        string
	store       types.NotebookStore
	checkpoints types.CheckpointStore

	ready    bool
	cells    []*Cell
	active   int
	dirty    bool
	metadata map[string]any
	minor    int

	kernel       types.Kernel
	kernelStatus types.KernelStatus
	connection   types.ConnectionStatus

	StateChanged            Signal[StateChange]
	SaveStateChanged        Signal[types.SaveState]
	KernelStatusChanged     Signal[types.KernelStatus]
	ConnectionStatusChanged Signal[types.ConnectionStatus]
}

func newNotebook(p string, store types.NotebookStore, checkpoints types.CheckpointStore) *Notebook {
	return &Notebook{
		id:           types.NewDocumentID(),
		path:         p,
		store:        store,
		checkpoints:  checkpoints,
		active:       -1,
		metadata:     map[string]any{},
		kernelStatus: types.KernelUnknown,
		connection:   types.ConnectionDisconnected,
	}
}

func (n *Notebook) ID() types.DocumentID { return n.id }
func (n *Notebook) Path() string         { return n.path }
func (n *Notebook) Name() string         { return path.Base(n.path) }
func (n *Notebook) Ready() bool          { return n.ready }
func (n *Notebook) Dirty() bool          { return n.dirty }

// load reads the document from the store. A missing document is created
// with a single empty code cell and written back.
func (n *Notebook) load(ctx context.Context) error {
	data, err := n.store.Read(ctx, n.path)
	switch {
	case errors.Is(err, state.ErrNotFound):
		n.cells = []*Cell{newCodeCell()}
		n.minor = nbformatMinor
		encoded, err := n.encode()
		if err != nil {
			return err
		}
		if err := n.store.Write(ctx, n.path, encoded); err != nil {
			return fmt.Errorf("create %s: %w", n.path, err)
		}
	case err != nil:
		return err
	default:
		doc, err := decode(data)
		if err != nil {
			return fmt.Errorf("load %s: %w", n.path, err)
		}
		for _, c := range doc.cells {
			if c.ID == "" {
				c.ID = types.NewCellID()
			}
		}
		n.cells = doc.cells
		n.metadata = doc.metadata
		n.minor = doc.minor
		if len(n.cells) == 0 {
			n.cells = []*Cell{newCodeCell()}
		}
	}
	n.active = 0
	n.ready = true
	n.StateChanged.Emit(StateChange{Name: "ready"})
	return nil
}

// Cells returns the cells in document order.
func (n *Notebook) Cells() []*Cell {
	out := make([]*Cell, len(n.cells))
	copy(out, n.cells)
	return out
}

func (n *Notebook) Len() int { return len(n.cells) }

// ActiveIndex returns the index of the active cell, or -1 if none is active.
func (n *Notebook) ActiveIndex() int { return n.active }

// ActiveCell returns the active cell, or nil if none is active.
func (n *Notebook) ActiveCell() *Cell {
	if n.active < 0 || n.active >= len(n.cells) {
		return nil
	}
	return n.cells[n.active]
}

// SetActiveIndex activates the cell at i. A negative index clears the
// selection.
func (n *Notebook) SetActiveIndex(i int) error {
	if i >= len(n.cells) {
		return fmt.Errorf("cell index %d out of range (%d cells)", i, len(n.cells))
	}
	if i < 0 {
		i = -1
	}
	n.active = i
	return nil
}

// InsertAbove inserts an empty code cell above the active cell and
// activates it. Without an active cell the cell is appended and the
// selection stays empty.
func (n *Notebook) InsertAbove() *Cell {
	cell := newCodeCell()
	if n.ActiveCell() == nil {
		n.cells = append(n.cells, cell)
	} else {
		n.cells = insertAt(n.cells, n.active, cell)
	}
	n.touch("cells")
	return cell
}

// InsertBelow inserts an empty code cell below the active cell and
// activates it. Without an active cell the cell is appended and the
// selection stays empty.
func (n *Notebook) InsertBelow() *Cell {
	cell := newCodeCell()
	if n.ActiveCell() == nil {
		n.cells = append(n.cells, cell)
	} else {
		n.active++
		n.cells = insertAt(n.cells, n.active, cell)
	}
	n.touch("cells")
	return cell
}

func insertAt(cells []*Cell, i int, cell *Cell) []*Cell {
	cells = append(cells, nil)
	copy(cells[i+1:], cells[i:])
	cells[i] = cell
	return cells
}

// SetSource replaces the source of cell.
func (n *Notebook) SetSource(cell *Cell, source string) {
	if cell.Source == source {
		return
	}
	cell.Source = source
	n.touch("source")
}

// SetSourceAt replaces the source of the cell at index i.
func (n *Notebook) SetSourceAt(i int, source string) error {
	if i < 0 || i >= len(n.cells) {
		return fmt.Errorf("cell index %d out of range (%d cells)", i, len(n.cells))
	}
	n.SetSource(n.cells[i], source)
	return nil
}

// Tag adds tag to the cell's metadata.tags. It reports whether the tag was added.
func (n *Notebook) Tag(cell *Cell, tag string) bool {
	if !cell.addTag(tag) {
		return false
	}
	n.touch("metadata")
	return true
}

func (n *Notebook) touch(name string) {
	n.dirty = true
	n.StateChanged.Emit(StateChange{Name: name})
}

func (n *Notebook) setDirty(dirty bool) {
	if n.dirty == dirty {
		return
	}
	n.dirty = dirty
	n.StateChanged.Emit(StateChange{Name: "dirty"})
}

func (n *Notebook) encode() ([]byte, error) {
	return encode(n.cells, n.metadata, n.minor)
}

// JSON returns the whole document as nbformat v4.
func (n *Notebook) JSON() (json.RawMessage, error) {
	data, err := n.encode()
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// Save writes the document to the store and records a checkpoint. Progress
// is reported on SaveStateChanged: started, then completed or failed.
func (n *Notebook) Save(ctx context.Context) error {
	n.SaveStateChanged.Emit(types.SaveStarted)
	if err := n.save(ctx); err != nil {
		n.SaveStateChanged.Emit(types.SaveFailed)
		return fmt.Errorf("save %s: %w", n.path, err)
	}
	n.setDirty(false)
	n.SaveStateChanged.Emit(types.SaveCompleted)
	return nil
}

func (n *Notebook) save(ctx context.Context) error {
	if !n.ready {
		return errors.New("document is not loaded")
	}
	data, err := n.encode()
	if err != nil {
		return err
	}
	if err := n.store.Write(ctx, n.path, data); err != nil {
		return err
	}
	if n.checkpoints == nil {
		return nil
	}
	if _, err := n.checkpoints.Create(ctx, n.path, data); err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}
	return nil
}

// ListCheckpoints returns the saved revisions of the document, oldest first.
func (n *Notebook) ListCheckpoints(ctx context.Context) ([]*types.Checkpoint, error) {
	if n.checkpoints == nil {
		return []*types.Checkpoint{}, nil
	}
	return n.checkpoints.List(ctx, n.path)
}

// Kernel returns the kernel attached to the document, or nil.
func (n *Notebook) Kernel() types.Kernel { return n.kernel }

func (n *Notebook) KernelStatus() types.KernelStatus { return n.kernelStatus }

// SetKernel attaches k and reports status for it. KernelStatusChanged fires
// when either the kernel or its status changed.
func (n *Notebook) SetKernel(k types.Kernel, status types.KernelStatus) {
	changed := n.kernelStatus != status || !sameKernel(n.kernel, k)
	n.kernel = k
	n.kernelStatus = status
	if changed {
		n.KernelStatusChanged.Emit(status)
	}
}

// SetKernelStatus records a status change of the attached kernel.
func (n *Notebook) SetKernelStatus(status types.KernelStatus) {
	if n.kernelStatus == status {
		return
	}
	n.kernelStatus = status
	n.KernelStatusChanged.Emit(status)
}

func sameKernel(a, b types.Kernel) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID() == b.ID()
}

func (n *Notebook) ConnectionStatus() types.ConnectionStatus { return n.connection }

// SetConnectionStatus records a change of the kernel connection.
func (n *Notebook) SetConnectionStatus(status types.ConnectionStatus) {
	if n.connection == status {
		return
	}
	n.connection = status
	n.ConnectionStatusChanged.Emit(status)
}
