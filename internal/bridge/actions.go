package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/user/nbbridge/internal/notebook"
	"github.com/user/nbbridge/internal/protocol"
	"github.com/user/nbbridge/internal/types"
)

// ErrNoDocument is returned by actions when no document has focus.
var ErrNoDocument = errors.New("no focused document")

// poster delivers one outbound envelope on behalf of a document.
type poster func(ctx context.Context, doc types.DocumentID, env protocol.Envelope)

// Actions translates host commands into mutations of the focused
// document. It holds no state of its own; every call runs on the loop.
type Actions struct {
	tracker *notebook.Tracker
	post    poster
	logger  *slog.Logger
}

func (a *Actions) current() (*notebook.Notebook, error) {
	doc := a.tracker.Current()
	if doc == nil {
		return nil, ErrNoDocument
	}
	return doc, nil
}

// InsertAbove inserts a cell above the active cell, activates it and sets
// its source. Without an active cell the cell is appended and left empty.
func (a *Actions) InsertAbove(ctx context.Context, source string) error {
	doc, err := a.current()
	if err != nil {
		return err
	}
	doc.InsertAbove()
	if cell := doc.ActiveCell(); cell != nil {
		doc.SetSource(cell, source)
	}
	return nil
}

// InsertBelow inserts a cell below the active cell and sets its source.
// With asParameters the cell is tagged as the parameters cell.
func (a *Actions) InsertBelow(ctx context.Context, source string, asParameters bool) error {
	doc, err := a.current()
	if err != nil {
		return err
	}
	doc.InsertBelow()
	cell := doc.ActiveCell()
	if cell == nil {
		return nil
	}
	doc.SetSource(cell, source)
	if asParameters {
		doc.Tag(cell, notebook.ParametersTag)
	}
	return nil
}

// GetActiveCellText posts the source of the active cell.
func (a *Actions) GetActiveCellText(ctx context.Context) error {
	doc, err := a.current()
	if err != nil {
		return err
	}
	cell := doc.ActiveCell()
	if cell == nil {
		return nil
	}
	a.post(ctx, doc.ID(), protocol.ActiveCellText(cell.Source))
	return nil
}

// Save saves the focused document. The outcome reaches the host through
// the document's save-state signal, not through the returned error.
func (a *Actions) Save(ctx context.Context) error {
	doc, err := a.current()
	if err != nil {
		return err
	}
	if err := doc.Save(ctx); err != nil {
		a.logger.Warn("save failed", "document_id", string(doc.ID()), "error", err)
	}
	return nil
}

// SaveAs posts the whole document as nbformat JSON.
func (a *Actions) SaveAs(ctx context.Context) error {
	doc, err := a.current()
	if err != nil {
		return err
	}
	data, err := doc.JSON()
	if err != nil {
		return fmt.Errorf("encode %s: %w", doc.Path(), err)
	}
	a.post(ctx, doc.ID(), protocol.NotebookJSON(data))
	return nil
}
