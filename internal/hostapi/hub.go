package hostapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/user/nbbridge/internal/protocol"
	"github.com/user/nbbridge/internal/types"
)

const subscriberBuffer = 256

// StreamEvent is one outbound envelope as sent to SSE clients.
type StreamEvent struct {
	Seq        uint64            `json:"seq"`
	DocumentID types.DocumentID  `json:"document_id,omitempty"`
	Envelope   protocol.Envelope `json:"envelope"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Hub broadcasts outbound envelopes to every connected host stream and keeps
// a bounded history for reconnecting clients.
type Hub struct {
	mu          sync.Mutex
	seq         uint64
	history     []StreamEvent
	subs        map[chan StreamEvent]struct{}
	historySize int
	logger      *slog.Logger
}

// NewHub constructs a hub with the given history size.
func NewHub(historySize int, logger *slog.Logger) *Hub {
	if historySize <= 0 {
		historySize = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:        make(map[chan StreamEvent]struct{}),
		historySize: historySize,
		logger:      logger,
	}
}

// Deliver publishes env. It never blocks: a subscriber whose buffer is full
// is disconnected and has to reconnect with Last-Event-ID to catch up.
func (h *Hub) Deliver(_ context.Context, doc types.DocumentID, env protocol.Envelope) error {
	h.publish(StreamEvent{DocumentID: doc, Envelope: env, Timestamp: time.Now()})
	return nil
}

// Subscribe registers a subscriber. It returns the history newer than after
// together with the channel, so nothing published in between is missed.
// The channel is closed if the subscriber falls behind.
func (h *Hub) Subscribe(after uint64) (<-chan StreamEvent, func(), []StreamEvent) {
	sub := h.subscribe(after)
	return sub.events, sub.cancel, sub.replay
}

// subscription is one registered stream. missed is set when events newer
// than the requested id have already left the history.
type subscription struct {
	events <-chan StreamEvent
	cancel func()
	replay []StreamEvent
	missed bool
	oldest uint64
}

func (h *Hub) subscribe(after uint64) subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan StreamEvent, subscriberBuffer)
	h.subs[ch] = struct{}{}
	sub := subscription{events: ch}
	if after > 0 {
		for _, event := range h.history {
			if event.Seq > after {
				sub.replay = append(sub.replay, event)
			}
		}
		oldest := h.seq + 1
		if len(h.history) > 0 {
			oldest = h.history[0].Seq
		}
		sub.missed = after < h.seq && oldest > after+1
		sub.oldest = oldest
	}
	h.logger.Debug("hub subscribe", "subs", len(h.subs), "replay", len(sub.replay), "missed", sub.missed)
	sub.cancel = func() {
		h.mu.Lock()
		delete(h.subs, ch)
		remaining := len(h.subs)
		h.mu.Unlock()
		h.logger.Debug("hub unsubscribe", "subs", remaining)
	}
	return sub
}

// Seq returns the sequence number of the last published event.
func (h *Hub) Seq() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seq
}

// publish sends under the lock so a slow subscriber can be closed without
// racing another publish. Sends never block.
func (h *Hub) publish(event StreamEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	event.Seq = h.seq
	h.history = append(h.history, event)
	if len(h.history) > h.historySize {
		h.history = h.history[len(h.history)-h.historySize:]
	}

	for sub := range h.subs {
		select {
		case sub <- event:
		default:
			delete(h.subs, sub)
			close(sub)
			h.logger.Warn("hub subscriber too slow, disconnected", "seq", event.Seq, "message_type", event.Envelope.MessageType)
		}
	}
}

// writeGap tells the client that events after lastID are no longer
// available and it should resynchronise its state.
func writeGap(w io.Writer, lastID, oldest uint64) error {
	_, err := fmt.Fprintf(w, "event: gap\ndata: {\"last_event_id\":%d,\"oldest\":%d}\n\n", lastID, oldest)
	return err
}

// writeSSEvent writes event as one SSE frame whose data is the envelope.
func writeSSEvent(w io.Writer, event StreamEvent) error {
	data, err := json.Marshal(event.Envelope)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: message\ndata: %s\n\n", event.Seq, data)
	return err
}
