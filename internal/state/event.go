package state

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/nbbridge/internal/types"
)

// bridgeJournal holds messages that are not about a particular document,
// such as the startup handshake.
const bridgeJournal = "bridge"

const maxJournalLine = 16 * 1024 * 1024

// journal tracks one document's file. seq is read from disk on first use.
type journal struct {
	mu     sync.Mutex
	seq    int64
	loaded bool
}

// EventStore is an append-only JSONL journal of outbound messages, one
// file per document under journal/<documentID>.jsonl.
type EventStore struct {
	root     string
	mu       sync.Mutex
	journals map[types.DocumentID]*journal
}

func NewEventStore(root string) *EventStore {
	return &EventStore{
		root:     root,
		journals: make(map[types.DocumentID]*journal),
	}
}

func (e *EventStore) journalFor(documentID types.DocumentID) *journal {
	e.mu.Lock()
	defer e.mu.Unlock()
	j, ok := e.journals[documentID]
	if !ok {
		j = &journal{}
		e.journals[documentID] = j
	}
	return j
}

func (e *EventStore) eventsPath(documentID types.DocumentID) string {
	name := string(documentID)
	if name == "" {
		name = bridgeJournal
	}
	return filepath.Join(e.root, "journal", filepath.Base(name)+".jsonl")
}

// scan calls fn with each line of the document's journal. A missing file
// has no lines. Caller must hold the journal lock.
func (e *EventStore) scan(documentID types.DocumentID, fn func(line []byte) error) error {
	f, err := os.Open(e.eventsPath(documentID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open journal file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxJournalLine)
	for scanner.Scan() {
		if err := fn(scanner.Bytes()); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan journal file: %w", err)
	}
	return nil
}

// load reads the current sequence from disk once. Caller must hold j.mu.
func (e *EventStore) load(documentID types.DocumentID, j *journal) error {
	if j.loaded {
		return nil
	}
	var n int64
	if err := e.scan(documentID, func([]byte) error { n++; return nil }); err != nil {
		return err
	}
	j.seq, j.loaded = n, true
	return nil
}

// Append writes event to its document's journal and assigns the next
// sequence number. Sequence numbers start at 1 and have no gaps.
func (e *EventStore) Append(_ context.Context, event *types.Event) error {
	j := e.journalFor(event.DocumentID)
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := e.load(event.DocumentID, j); err != nil {
		return err
	}

	file := e.eventsPath(event.DocumentID)
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}

	event.Seq = j.seq + 1
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open journal file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	j.seq = event.Seq
	return nil
}

// Tail returns up to limit of the document's most recent events, oldest
// first. A non-positive limit returns the whole journal.
func (e *EventStore) Tail(_ context.Context, documentID types.DocumentID, limit int) ([]*types.Event, error) {
	j := e.journalFor(documentID)
	j.mu.Lock()
	defer j.mu.Unlock()

	// Keep only the last limit raw lines while scanning.
	var lines [][]byte
	err := e.scan(documentID, func(line []byte) error {
		if limit > 0 && len(lines) == limit {
			lines = lines[1:]
		}
		lines = append(lines, append([]byte(nil), line...))
		return nil
	})
	if err != nil {
		return nil, err
	}

	var events []*types.Event
	for _, line := range lines {
		var event types.Event
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		events = append(events, &event)
	}
	return events, nil
}

// Count returns the number of events journaled for the document.
func (e *EventStore) Count(_ context.Context, documentID types.DocumentID) (int64, error) {
	j := e.journalFor(documentID)
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := e.load(documentID, j); err != nil {
		return 0, err
	}
	return j.seq, nil
}
