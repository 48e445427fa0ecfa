// internal/state/checkpoint_test.go
package state

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCheckpointStore(t *testing.T) {
	store := NewCheckpointStore(t.TempDir(), 0)
	ctx := context.Background()

	empty, err := store.List(ctx, "a.ipynb")
	if err != nil {
		t.Fatal(err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil list, got %v", empty)
	}

	first, err := store.Create(ctx, "a.ipynb", []byte(`{"cells":[],"metadata":{}}`))
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	second, err := store.Create(ctx, "a.ipynb", []byte(`{"metadata":{}, "cells":[1]}`))
	if err != nil {
		t.Fatal(err)
	}

	list, err := store.List(ctx, "a.ipynb")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 checkpoints, got %d", len(list))
	}
	if list[0].ID != first.ID || list[1].ID != second.ID {
		t.Error("expected checkpoints oldest first")
	}

	data, err := store.Get(ctx, "a.ipynb", second.ID)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"metadata":{}, "cells":[1]}` {
		t.Errorf("unexpected checkpoint content %s", data)
	}

	if _, err := store.Get(ctx, "a.ipynb", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Get(ctx, "a.ipynb", "../x"); err == nil {
		t.Error("expected error for traversal in checkpoint id")
	}
}

func TestCheckpointStorePrunes(t *testing.T) {
	store := NewCheckpointStore(t.TempDir(), 2)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		cp, err := store.Create(ctx, "p.ipynb", []byte(`{}`))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, string(cp.ID))
	}

	list, err := store.List(ctx, "p.ipynb")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 checkpoints after pruning, got %d", len(list))
	}
	if _, err := store.Get(ctx, "p.ipynb", list[0].ID); err != nil {
		t.Errorf("expected retained checkpoint to be readable: %v", err)
	}
	for _, cp := range list {
		if string(cp.ID) == ids[0] {
			t.Error("expected oldest checkpoint to be pruned")
		}
	}
}

func TestDigestIgnoresFormatting(t *testing.T) {
	a, err := Digest([]byte(`{"b":1,"a":[1,2]}`))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Digest([]byte("{\n  \"a\": [1, 2],\n  \"b\": 1\n}"))
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("expected equal digests, got %s and %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected hex sha256, got %q", a)
	}
	if _, err := Digest([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
