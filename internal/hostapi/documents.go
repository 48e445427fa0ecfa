package hostapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/user/nbbridge/internal/notebook"
	"github.com/user/nbbridge/internal/types"
)

type documentResponse struct {
	ID           string                 `json:"id"`
	Path         string                 `json:"path"`
	Focused      bool                   `json:"focused"`
	Ready        bool                   `json:"ready"`
	Dirty        bool                   `json:"dirty"`
	Cells        int                    `json:"cells"`
	ActiveIndex  int                    `json:"active_index"`
	KernelID     string                 `json:"kernel_id,omitempty"`
	KernelStatus types.KernelStatus     `json:"kernel_status"`
	Connection   types.ConnectionStatus `json:"connection"`
}

func describe(doc *notebook.Notebook, current *notebook.Notebook) documentResponse {
	resp := documentResponse{
		ID:           string(doc.ID()),
		Path:         doc.Path(),
		Focused:      doc == current,
		Ready:        doc.Ready(),
		Dirty:        doc.Dirty(),
		Cells:        doc.Len(),
		ActiveIndex:  doc.ActiveIndex(),
		KernelStatus: doc.KernelStatus(),
		Connection:   doc.ConnectionStatus(),
	}
	if k := doc.Kernel(); k != nil {
		resp.KernelID = string(k.ID())
	}
	return resp
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	return nil
}

// withDocument runs fn on the bridge loop against the document named in
// the path and answers with its description.
func (s *Server) withDocument(w http.ResponseWriter, r *http.Request, status int, fn func(ctx context.Context, tr *notebook.Tracker, doc *notebook.Notebook) error) {
	id := types.DocumentID(r.PathValue("id"))
	var resp documentResponse
	err := s.bridge.Do(r.Context(), func(ctx context.Context, tr *notebook.Tracker) error {
		doc, err := tr.Get(id)
		if err != nil {
			return err
		}
		if err := fn(ctx, tr, doc); err != nil {
			return err
		}
		resp = describe(doc, tr.Current())
		return nil
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	var out []documentResponse
	err := s.bridge.Do(r.Context(), func(_ context.Context, tr *notebook.Tracker) error {
		current := tr.Current()
		out = make([]documentResponse, 0)
		for _, doc := range tr.List() {
			out = append(out, describe(doc, current))
		}
		return nil
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type openRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleOpenDocument(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var resp documentResponse
	err := s.bridge.Do(r.Context(), func(ctx context.Context, tr *notebook.Tracker) error {
		doc, err := tr.Open(ctx, req.Path)
		if err != nil {
			return err
		}
		resp = describe(doc, tr.Current())
		return nil
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.logger.Info("document opened", "document_id", resp.ID, "path", resp.Path)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	s.withDocument(w, r, http.StatusOK, func(_ context.Context, tr *notebook.Tracker, doc *notebook.Notebook) error {
		return tr.Focus(doc.ID())
	})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	id := types.DocumentID(r.PathValue("id"))
	err := s.bridge.Do(r.Context(), func(_ context.Context, tr *notebook.Tracker) error {
		return tr.Close(id)
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.logger.Info("document closed", "document_id", string(id))
	w.WriteHeader(http.StatusNoContent)
}

type cellRequest struct {
	Source string `json:"source"`
}

func (s *Server) handleEditCell(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid cell index %q", r.PathValue("index")))
		return
	}
	var req cellRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.withDocument(w, r, http.StatusOK, func(_ context.Context, _ *notebook.Tracker, doc *notebook.Notebook) error {
		if err := doc.SetSourceAt(index, req.Source); err != nil {
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
		return nil
	})
}

type activeRequest struct {
	Index int `json:"index"`
}

func (s *Server) handleActiveCell(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.withDocument(w, r, http.StatusOK, func(_ context.Context, _ *notebook.Tracker, doc *notebook.Notebook) error {
		if err := doc.SetActiveIndex(req.Index); err != nil {
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
		return nil
	})
}

type kernelRequest struct {
	ID     types.KernelID     `json:"id"`
	Status types.KernelStatus `json:"status"`
}

// handleKernel records the kernel attached to a document and its status.
// An empty id detaches the kernel.
func (s *Server) handleKernel(w http.ResponseWriter, r *http.Request) {
	var req kernelRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid kernel status %q", req.Status))
		return
	}
	s.withDocument(w, r, http.StatusOK, func(_ context.Context, _ *notebook.Tracker, doc *notebook.Notebook) error {
		if req.ID == "" {
			doc.SetKernel(nil, req.Status)
			return nil
		}
		if k := doc.Kernel(); k != nil && k.ID() == req.ID {
			doc.SetKernelStatus(req.Status)
			return nil
		}
		doc.SetKernel(s.kernel(req.ID), req.Status)
		return nil
	})
}

func (s *Server) kernel(id types.KernelID) types.Kernel {
	if s.kernels == nil {
		return detachedKernel(id)
	}
	return s.kernels(id)
}

// detachedKernel is a kernel known only by id; probing it always fails.
type detachedKernel types.KernelID

func (k detachedKernel) ID() types.KernelID { return types.KernelID(k) }

func (k detachedKernel) RequestStatus(context.Context) error {
	return fmt.Errorf("kernel %s: no server configured", string(k))
}

type connectionRequest struct {
	Status types.ConnectionStatus `json:"status"`
}

func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	var req connectionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid connection status %q", req.Status))
		return
	}
	s.withDocument(w, r, http.StatusOK, func(_ context.Context, _ *notebook.Tracker, doc *notebook.Notebook) error {
		doc.SetConnectionStatus(req.Status)
		return nil
	})
}

func (s *Server) handleCheckpoints(w http.ResponseWriter, r *http.Request) {
	id := types.DocumentID(r.PathValue("id"))
	var doc *notebook.Notebook
	err := s.bridge.Do(r.Context(), func(_ context.Context, tr *notebook.Tracker) error {
		var err error
		doc, err = tr.Get(id)
		return err
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	checkpoints, err := doc.ListCheckpoints(r.Context())
	if err != nil {
		s.logger.Error("list checkpoints failed", "document_id", string(id), "error", err)
		writeError(w, statusFor(err), err)
		return
	}
	if checkpoints == nil {
		checkpoints = []*types.Checkpoint{}
	}
	writeJSON(w, http.StatusOK, checkpoints)
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("journal not configured"))
		return
	}
	id := types.DocumentID(r.PathValue("id"))
	if id == "bridge" {
		id = ""
	}
	limit := 200
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}
	events, err := s.journal.Tail(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("tail journal failed", "document_id", string(id), "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if events == nil {
		events = []*types.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}
