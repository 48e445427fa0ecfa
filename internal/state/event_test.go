// internal/state/event_test.go
package state

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/user/nbbridge/internal/types"
)

func TestEventStore(t *testing.T) {
	dir := t.TempDir()
	store := NewEventStore(dir)
	ctx := context.Background()

	documentID := types.NewDocumentID()

	for i, typ := range []string{"NoteBookMessage", "DirtyStatusMessage", "SavedStatusMessage"} {
		event := &types.Event{
			ID:         types.NewEventID(),
			DocumentID: documentID,
			Type:       typ,
			At:         time.Now(),
			Payload:    json.RawMessage(`{"n":1}`),
		}
		if err := store.Append(ctx, event); err != nil {
			t.Fatal(err)
		}
		if event.Seq != int64(i+1) {
			t.Errorf("expected seq %d, got %d", i+1, event.Seq)
		}
	}

	events, err := store.Tail(ctx, documentID, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != "DirtyStatusMessage" || events[1].Type != "SavedStatusMessage" {
		t.Errorf("unexpected tail order: %s, %s", events[0].Type, events[1].Type)
	}

	count, err := store.Count(ctx, documentID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("expected count 3, got %d", count)
	}
}

func TestEventStoreBridgeJournal(t *testing.T) {
	store := NewEventStore(t.TempDir())
	ctx := context.Background()

	if err := store.Append(ctx, &types.Event{ID: types.NewEventID(), Type: "NotebookServerOSRequestMessage", At: time.Now()}); err != nil {
		t.Fatal(err)
	}
	events, err := store.Tail(ctx, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Seq != 1 {
		t.Fatalf("expected one bridge event with seq 1, got %+v", events)
	}
}

func TestEventStoreEmptyTail(t *testing.T) {
	store := NewEventStore(t.TempDir())
	events, err := store.Tail(context.Background(), types.NewDocumentID(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if events != nil {
		t.Errorf("expected nil for missing journal, got %v", events)
	}
}

func TestEventStoreSeqResumesAfterReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	documentID := types.NewDocumentID()

	first := NewEventStore(dir)
	for i := 0; i < 2; i++ {
		if err := first.Append(ctx, &types.Event{ID: types.NewEventID(), DocumentID: documentID, Type: "DirtyStatusMessage", At: time.Now()}); err != nil {
			t.Fatal(err)
		}
	}

	second := NewEventStore(dir)
	event := &types.Event{ID: types.NewEventID(), DocumentID: documentID, Type: "SavedStatusMessage", At: time.Now()}
	if err := second.Append(ctx, event); err != nil {
		t.Fatal(err)
	}
	if event.Seq != 3 {
		t.Errorf("expected seq 3 after reopen, got %d", event.Seq)
	}

	all, err := second.Tail(ctx, documentID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("expected full journal of 3, got %d", len(all))
	}
}
