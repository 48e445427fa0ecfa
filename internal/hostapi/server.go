// Package hostapi is the HTTP transport between the host and the bridge:
// inbound envelopes, the outbound event stream and the document API that
// drives document sessions.
package hostapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/user/nbbridge/internal/bridge"
	"github.com/user/nbbridge/internal/notebook"
	"github.com/user/nbbridge/internal/protocol"
	"github.com/user/nbbridge/internal/state"
	"github.com/user/nbbridge/internal/types"
)

const maxMessageBytes = 8 << 20

// KernelFactory returns a handle on the kernel with the given id.
type KernelFactory func(id types.KernelID) types.Kernel

type Options struct {
	Bridge  *bridge.Bridge
	Hub     *Hub
	Journal types.EventStore
	Policy  *protocol.OriginPolicy
	Kernels KernelFactory
	Logger  *slog.Logger
}

// Server is the host-facing HTTP handler.
type Server struct {
	bridge  *bridge.Bridge
	hub     *Hub
	journal types.EventStore
	policy  *protocol.OriginPolicy
	kernels KernelFactory
	logger  *slog.Logger
	mux     *http.ServeMux
}

func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Policy == nil {
		opts.Policy = protocol.NewOriginPolicy(nil)
	}
	s := &Server{
		bridge:  opts.Bridge,
		hub:     opts.Hub,
		journal: opts.Journal,
		policy:  opts.Policy,
		kernels: opts.Kernels,
		logger:  opts.Logger,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/messages", s.handleMessage)
	s.mux.HandleFunc("GET /api/events", s.handleStream)
	s.mux.HandleFunc("GET /api/documents", s.handleListDocuments)
	s.mux.HandleFunc("POST /api/documents", s.handleOpenDocument)
	s.mux.HandleFunc("POST /api/documents/{id}/focus", s.handleFocus)
	s.mux.HandleFunc("DELETE /api/documents/{id}", s.handleClose)
	s.mux.HandleFunc("PUT /api/documents/{id}/cells/{index}", s.handleEditCell)
	s.mux.HandleFunc("POST /api/documents/{id}/active", s.handleActiveCell)
	s.mux.HandleFunc("POST /api/documents/{id}/kernel", s.handleKernel)
	s.mux.HandleFunc("POST /api/documents/{id}/connection", s.handleConnection)
	s.mux.HandleFunc("GET /api/documents/{id}/checkpoints", s.handleCheckpoints)
	s.mux.HandleFunc("GET /api/journal/{id}", s.handleJournal)
	return s
}

// ServeHTTP checks the request origin against the allow-list and delegates
// to the internal mux. Only /health is reachable from any origin.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/health" && !s.policy.Allowed(r.Header.Get("Origin")) {
		s.logger.Warn("request rejected", "origin", r.Header.Get("Origin"), "method", r.Method, "path", r.URL.Path)
		writeError(w, http.StatusForbidden, bridge.ErrUntrustedOrigin)
		return
	}
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, notebook.ErrNotFound), errors.Is(err, state.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, state.ErrInvalidPath), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, notebook.ErrInvalidNotebook):
		return http.StatusUnprocessableEntity
	case errors.Is(err, bridge.ErrUntrustedOrigin):
		return http.StatusForbidden
	case errors.Is(err, bridge.ErrLoopStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

var errBadRequest = errors.New("bad request")

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON"))
		return
	}
	if err := s.bridge.HandleHostMessage(r.Context(), r.Header.Get("Origin"), body); err != nil {
		if errors.Is(err, bridge.ErrUntrustedOrigin) {
			s.logger.Warn("host message rejected", "origin", r.Header.Get("Origin"))
			writeError(w, http.StatusForbidden, err)
			return
		}
		s.logger.Error("host message not queued", "error", err)
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if !s.policy.Allowed(origin) {
		writeError(w, http.StatusForbidden, bridge.ErrUntrustedOrigin)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("stream unsupported"))
		return
	}
	if origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Vary", "Origin")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	lastID, _ := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)
	sub := s.hub.subscribe(lastID)
	defer sub.cancel()

	if sub.missed {
		_ = writeGap(w, lastID, sub.oldest)
	}
	for _, event := range sub.replay {
		_ = writeSSEvent(w, event)
	}
	flusher.Flush()
	s.logger.Info("event stream opened", "origin", origin, "last_id", lastID, "replay", len(sub.replay), "missed", sub.missed)

	var sent uint64
	if len(sub.replay) > 0 {
		sent = sub.replay[len(sub.replay)-1].Seq
	}
	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("event stream closed", "origin", origin)
			return
		case event, ok := <-sub.events:
			if !ok {
				// Dropped for falling behind; the client resumes with Last-Event-ID.
				s.logger.Warn("event stream closed, client too slow", "origin", origin, "last_sent", sent)
				return
			}
			if event.Seq <= sent {
				continue
			}
			sent = event.Seq
			_ = writeSSEvent(w, event)
			flusher.Flush()
		}
	}
}
