// internal/types/ids_test.go
package types

import (
	"testing"
)

func TestNewDocumentID(t *testing.T) {
	id := NewDocumentID()
	if id == "" {
		t.Error("expected non-empty DocumentID")
	}
	if len(string(id)) != 36 {
		t.Errorf("expected UUID format, got %s", id)
	}
}

func TestNewCellID(t *testing.T) {
	id := NewCellID()
	if len(id) != 32 {
		t.Errorf("expected 32 hex characters, got %q", id)
	}
	for _, r := range id {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			t.Fatalf("unexpected character %q in cell id %q", r, id)
		}
	}
	if NewCellID() == id {
		t.Error("expected distinct cell ids")
	}
}
