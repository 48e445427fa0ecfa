package notebook

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/user/nbbridge/internal/state"
	"github.com/user/nbbridge/internal/types"
)

// ErrNotFound is returned for document ids the tracker does not know.
var ErrNotFound = errors.New("document not found")

// Tracker owns the open documents and knows which one has focus.
// CurrentChanged fires with the newly focused document, or nil when no
// document has focus.
type Tracker struct {
	store       types.NotebookStore
	checkpoints types.CheckpointStore

	docs    map[types.DocumentID]*Notebook
	history []types.DocumentID
	current *Notebook

	CurrentChanged Signal[*Notebook]
}

func NewTracker(store types.NotebookStore, checkpoints types.CheckpointStore) *Tracker {
	return &Tracker{
		store:       store,
		checkpoints: checkpoints,
		docs:        make(map[types.DocumentID]*Notebook),
	}
}

// Open focuses the document at path, loading it first if it is not open.
// Focus moves before loading so observers of CurrentChanged see the
// document's "ready" state change.
func (t *Tracker) Open(ctx context.Context, p string) (*Notebook, error) {
	cleaned, err := state.CleanPath(p)
	if err != nil {
		return nil, err
	}
	for _, nb := range t.docs {
		if nb.path == cleaned {
			t.focus(nb)
			return nb, nil
		}
	}

	nb := newNotebook(cleaned, t.store, t.checkpoints)
	t.docs[nb.id] = nb
	t.focus(nb)
	if err := nb.load(ctx); err != nil {
		t.Close(nb.id)
		return nil, err
	}
	return nb, nil
}

// Get returns the open document with the given id.
func (t *Tracker) Get(id types.DocumentID) (*Notebook, error) {
	nb, ok := t.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nb, nil
}

// Current returns the focused document, or nil.
func (t *Tracker) Current() *Notebook {
	return t.current
}

// List returns the open documents sorted by path.
func (t *Tracker) List() []*Notebook {
	out := make([]*Notebook, 0, len(t.docs))
	for _, nb := range t.docs {
		out = append(out, nb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out
}

// Focus gives focus to an open document.
func (t *Tracker) Focus(id types.DocumentID) error {
	nb, err := t.Get(id)
	if err != nil {
		return err
	}
	t.focus(nb)
	return nil
}

// Blur leaves every document open but none focused.
func (t *Tracker) Blur() {
	t.setCurrent(nil)
}

// Close closes a document. If it had focus, the most recently focused
// remaining document takes it.
func (t *Tracker) Close(id types.DocumentID) error {
	nb, err := t.Get(id)
	if err != nil {
		return err
	}
	delete(t.docs, id)
	t.history = slices.DeleteFunc(t.history, func(h types.DocumentID) bool { return h == id })
	if t.current != nb {
		return nil
	}
	var next *Notebook
	if len(t.history) > 0 {
		next = t.docs[t.history[len(t.history)-1]]
	}
	t.setCurrent(next)
	return nil
}

func (t *Tracker) focus(nb *Notebook) {
	t.history = slices.DeleteFunc(t.history, func(h types.DocumentID) bool { return h == nb.id })
	t.history = append(t.history, nb.id)
	t.setCurrent(nb)
}

func (t *Tracker) setCurrent(nb *Notebook) {
	if t.current == nb {
		return
	}
	t.current = nb
	t.CurrentChanged.Emit(nb)
}
