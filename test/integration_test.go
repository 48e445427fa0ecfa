//go:build integration

package test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/nbbridge/internal/bridge"
	"github.com/user/nbbridge/internal/delivery"
	"github.com/user/nbbridge/internal/hostapi"
	"github.com/user/nbbridge/internal/jupyter"
	"github.com/user/nbbridge/internal/kernel"
	"github.com/user/nbbridge/internal/notebook"
	"github.com/user/nbbridge/internal/protocol"
	"github.com/user/nbbridge/internal/state"
	"github.com/user/nbbridge/internal/types"
)

// fakeJupyter records the requests a Jupyter server would see.
type fakeJupyter struct {
	mu       sync.Mutex
	kernels  []string
	apiCalls int
}

func (f *fakeJupyter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case r.URL.Path == "/api":
		f.apiCalls++
		w.Write([]byte(`{"version":"2.14.0"}`))
	case strings.HasPrefix(r.URL.Path, "/api/kernels/"):
		id := strings.TrimPrefix(r.URL.Path, "/api/kernels/")
		f.kernels = append(f.kernels, id)
		w.Write([]byte(`{"id":"` + id + `","name":"python3","execution_state":"busy"}`))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeJupyter) probed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.kernels...)
}

func (f *fakeJupyter) infoLookups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.apiCalls
}

type stack struct {
	srv     *httptest.Server
	bridge  *bridge.Bridge
	events  *state.EventStore
	jupyter *fakeJupyter
}

func newStack(t *testing.T) *stack {
	t.Helper()
	dir := t.TempDir()

	fj := &fakeJupyter{}
	js := httptest.NewServer(fj)
	t.Cleanup(js.Close)
	client := jupyter.NewClient(js.URL, "secret")

	events := state.NewEventStore(dir)
	hub := hostapi.NewHub(100, nil)
	outbox := delivery.NewRegistry()
	outbox.Register("hub", hub.Deliver)
	outbox.Register("journal", delivery.Journal(events))

	registry := kernel.NewRegistry()
	policy := protocol.NewOriginPolicy([]string{"https://host.example"})
	b, err := bridge.New(bridge.Options{
		Tracker:  notebook.NewTracker(state.NewNotebookStore(dir), state.NewCheckpointStore(dir, 5)),
		Outbox:   outbox,
		Registry: registry,
		Poller:   kernel.NewPoller(registry, time.Second, time.Second, nil),
		Policy:   policy,
		ServerInfo: func(ctx context.Context, _ protocol.ServerOSInfo) error {
			jupyter.LookupServerInfo(ctx, js.URL, "secret", nil)
			return nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(b.Stop)

	srv := httptest.NewServer(hostapi.NewServer(hostapi.Options{
		Bridge:  b,
		Hub:     hub,
		Journal: events,
		Policy:  policy,
		Kernels: func(id types.KernelID) types.Kernel { return jupyter.NewKernel(client, id) },
	}))
	t.Cleanup(srv.Close)
	return &stack{srv: srv, bridge: b, events: events, jupyter: fj}
}

func (s *stack) call(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Origin", "https://host.example")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *stack) idle(t *testing.T) {
	t.Helper()
	if !s.bridge.WaitIdle(3 * time.Second) {
		t.Fatal("bridge did not become idle")
	}
}

func TestEndToEnd(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	resp := s.call(t, http.MethodPost, "/api/documents", `{"path":"analysis.ipynb"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("open: status %d", resp.StatusCode)
	}
	var doc struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}

	for _, msg := range []string{
		`{"messageType":"NotebookServerOSResponseMessage","message":{"serverOS":"linux","isPortal":false}}`,
		`{"messageType":"NotebookMessage","message":"x = 1"}`,
		`{"messageType":"NotebookAddParameters","message":"alpha = 0.1"}`,
		`{"messageType":"NotebookSaveMessage"}`,
	} {
		resp := s.call(t, http.MethodPost, "/api/messages", msg)
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("post %s: status %d", msg, resp.StatusCode)
		}
		s.idle(t)
	}

	tail, err := s.events.Tail(ctx, types.DocumentID(doc.ID), 50)
	if err != nil {
		t.Fatal(err)
	}
	var seen []string
	for _, e := range tail {
		seen = append(seen, e.Type)
	}
	joined := strings.Join(seen, ",")
	for _, want := range []string{protocol.TypeLifecycle, protocol.TypeDirtyStatus, protocol.TypeSaved, protocol.TypeCheckpointStatus} {
		if !strings.Contains(joined, want) {
			t.Errorf("journal %v missing %s", seen, want)
		}
	}
	if strings.Index(joined, protocol.TypeSaved) > strings.LastIndex(joined, protocol.TypeCheckpointStatus) {
		t.Errorf("saved reported after checkpoint status: %v", seen)
	}

	bridgeTail, err := s.events.Tail(ctx, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(bridgeTail) != 1 || bridgeTail[0].Type != protocol.TypeServerOSRequest {
		t.Errorf("bridge journal = %v, want one server OS request", bridgeTail)
	}
	if s.jupyter.infoLookups() != 1 {
		t.Errorf("server info lookups = %d, want 1", s.jupyter.infoLookups())
	}

	resp = s.call(t, http.MethodGet, "/api/documents/"+doc.ID+"/checkpoints", "")
	var cps []types.Checkpoint
	if err := json.NewDecoder(resp.Body).Decode(&cps); err != nil {
		t.Fatal(err)
	}
	if len(cps) != 1 {
		t.Errorf("checkpoints = %d, want 1", len(cps))
	}
}

func TestKeepAliveProbesBusyKernel(t *testing.T) {
	s := newStack(t)

	resp := s.call(t, http.MethodPost, "/api/documents", `{"path":"long.ipynb"}`)
	var doc struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	resp = s.call(t, http.MethodPost, "/api/documents/"+doc.ID+"/kernel", `{"id":"k-1","status":"busy"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("kernel report: status %d", resp.StatusCode)
	}
	s.idle(t)

	deadline := time.Now().Add(4 * time.Second)
	for len(s.jupyter.probed()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("busy kernel was never probed")
		}
		time.Sleep(50 * time.Millisecond)
	}
	if got := s.jupyter.probed()[0]; got != "k-1" {
		t.Errorf("probed kernel %q, want k-1", got)
	}
}

func TestEventStreamCarriesLifecycle(t *testing.T) {
	s := newStack(t)

	req, err := http.NewRequest(http.MethodGet, s.srv.URL+"/api/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req = req.WithContext(ctx)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	s.call(t, http.MethodPost, "/api/documents", `{"path":"stream.ipynb"}`)
	s.call(t, http.MethodPost, "/api/messages", `{"messageType":"NotebookMessage","message":"y = 2"}`)

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") && strings.Contains(line, protocol.TypeLifecycle) {
			return
		}
	}
	t.Fatal("stream closed before the loaded announcement")
}
