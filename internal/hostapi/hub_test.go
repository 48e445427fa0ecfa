package hostapi

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/user/nbbridge/internal/protocol"
)

func TestHubReplayAndHistory(t *testing.T) {
	hub := NewHub(2, nil)
	ctx := context.Background()
	hub.Deliver(ctx, "", protocol.ServerOSRequest())
	hub.Deliver(ctx, "d1", protocol.Loaded())
	hub.Deliver(ctx, "d1", protocol.DirtyStatus(true))

	if hub.Seq() != 3 {
		t.Fatalf("expected seq 3, got %d", hub.Seq())
	}

	_, unsub, replay := hub.Subscribe(1)
	defer unsub()
	if len(replay) != 2 || replay[0].Seq != 2 || replay[1].Seq != 3 {
		t.Fatalf("unexpected replay %+v", replay)
	}

	_, unsub2, replay := hub.Subscribe(0)
	defer unsub2()
	if len(replay) != 0 {
		t.Errorf("expected no replay without Last-Event-ID, got %d", len(replay))
	}
}

func TestHubFanOut(t *testing.T) {
	hub := NewHub(10, nil)
	a, unsubA, _ := hub.Subscribe(0)
	b, unsubB, _ := hub.Subscribe(0)
	unsubB()
	defer unsubA()

	hub.Deliver(context.Background(), "d1", protocol.Saved())

	select {
	case event := <-a:
		if event.Envelope.MessageType != protocol.TypeSaved || event.DocumentID != "d1" {
			t.Errorf("unexpected event %+v", event)
		}
	default:
		t.Fatal("expected subscriber to receive the event")
	}
	select {
	case event := <-b:
		t.Errorf("unsubscribed channel received %+v", event)
	default:
	}
}

func TestWriteSSEvent(t *testing.T) {
	var buf bytes.Buffer
	if err := writeSSEvent(&buf, StreamEvent{Seq: 7, Envelope: protocol.DirtyStatus(true)}); err != nil {
		t.Fatal(err)
	}
	want := "id: 7\nevent: message\ndata: {\"messageType\":\"DirtyStatusMessage\",\"message\":{\"dirty\":true}}\n\n"
	if buf.String() != want {
		t.Errorf("unexpected frame %q", buf.String())
	}
	if !strings.HasSuffix(buf.String(), "\n\n") {
		t.Error("frame must end with a blank line")
	}
}

func TestHubDisconnectsSlowSubscriber(t *testing.T) {
	hub := NewHub(10, nil)
	slow, unsubSlow, _ := hub.Subscribe(0)
	defer unsubSlow()

	ctx := context.Background()
	for i := 0; i < subscriberBuffer+1; i++ {
		hub.Deliver(ctx, "d1", protocol.DirtyStatus(true))
	}

	received := 0
	for range slow {
		received++
	}
	if received != subscriberBuffer {
		t.Errorf("expected %d buffered events before close, got %d", subscriberBuffer, received)
	}

	// Later publishes must not touch the closed channel.
	hub.Deliver(ctx, "d1", protocol.Saved())

	fresh, unsubFresh, _ := hub.Subscribe(0)
	defer unsubFresh()
	hub.Deliver(ctx, "d1", protocol.Saved())
	select {
	case <-fresh:
	default:
		t.Fatal("expected a new subscriber to keep receiving")
	}
}

func TestHubReportsHistoryGap(t *testing.T) {
	hub := NewHub(2, nil)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		hub.Deliver(ctx, "d1", protocol.DirtyStatus(true))
	}

	tests := []struct {
		after      uint64
		wantMissed bool
		wantReplay int
	}{
		{0, false, 0},
		{1, true, 2},
		{3, false, 2},
		{5, false, 0},
	}
	for _, tt := range tests {
		sub := hub.subscribe(tt.after)
		sub.cancel()
		if sub.missed != tt.wantMissed || len(sub.replay) != tt.wantReplay {
			t.Errorf("after %d: missed=%v replay=%d, want %v %d", tt.after, sub.missed, len(sub.replay), tt.wantMissed, tt.wantReplay)
		}
		if sub.missed && sub.oldest != 4 {
			t.Errorf("after %d: oldest=%d, want 4", tt.after, sub.oldest)
		}
	}
}

func TestWriteGap(t *testing.T) {
	var buf bytes.Buffer
	if err := writeGap(&buf, 1, 4); err != nil {
		t.Fatal(err)
	}
	want := "event: gap\ndata: {\"last_event_id\":1,\"oldest\":4}\n\n"
	if buf.String() != want {
		t.Errorf("unexpected frame %q", buf.String())
	}
}
