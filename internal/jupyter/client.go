// Package jupyter talks to a Jupyter server's REST API: it probes kernels to
// keep them alive and looks up the server's metadata.
package jupyter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/user/nbbridge/internal/types"
)

const defaultTimeout = 30 * time.Second

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// KernelModel is the subset of the server's kernel model the bridge reads.
type KernelModel struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	LastActivity   time.Time          `json:"last_activity"`
	ExecutionState types.KernelStatus `json:"execution_state"`
	Connections    int                `json:"connections"`
}

// ServerInfo is the server metadata returned by GET /api.
type ServerInfo struct {
	Version string `json:"version"`
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	retry   *RetryPolicy
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithRetryPolicy(p *RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// NewClient returns a client for the server at baseURL. token may be empty.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
		retry:   DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) get(ctx context.Context, p string, out any) error {
	u := c.baseURL + p
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, URL: u}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", u, err)
	}
	return nil
}

// GetKernel fetches the model of kernel id. It is not retried: it is the
// keep-alive probe and a missed probe is picked up by the next tick.
func (c *Client) GetKernel(ctx context.Context, id types.KernelID) (*KernelModel, error) {
	var model KernelModel
	if err := c.get(ctx, "/api/kernels/"+url.PathEscape(string(id)), &model); err != nil {
		return nil, err
	}
	return &model, nil
}

// ServerInfo fetches GET /api with retry.
func (c *Client) ServerInfo(ctx context.Context) (*ServerInfo, error) {
	var info ServerInfo
	err := c.retry.Execute(ctx, func(ctx context.Context) error {
		return c.get(ctx, "/api", &info)
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// LookupServerInfo fetches the metadata of the server at baseURL. Any
// failure is logged and resolves to nil.
func LookupServerInfo(ctx context.Context, baseURL, token string, logger *slog.Logger) *ServerInfo {
	if logger == nil {
		logger = slog.Default()
	}
	if baseURL == "" {
		return nil
	}
	info, err := NewClient(baseURL, token).ServerInfo(ctx)
	if err != nil {
		logger.Warn("server info lookup failed", "base_url", baseURL, "error", err)
		return nil
	}
	return info
}

// Kernel is a handle on a server kernel. It satisfies types.Kernel.
type Kernel struct {
	id     types.KernelID
	client *Client
}

// NewKernel returns a handle on kernel id reached through client. A nil
// client yields a handle whose probe always fails.
func NewKernel(client *Client, id types.KernelID) *Kernel {
	return &Kernel{id: id, client: client}
}

func (k *Kernel) ID() types.KernelID { return k.id }

// RequestStatus asks the server for the kernel's model, which counts as
// activity on the kernel.
func (k *Kernel) RequestStatus(ctx context.Context) error {
	if k.client == nil {
		return fmt.Errorf("kernel %s: no server configured", k.id)
	}
	_, err := k.client.GetKernel(ctx, k.id)
	return err
}
