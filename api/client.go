// Package api provides the REST client for the executor backend: workflow
// persistence, run and export requests, the node-type catalog, workspaces,
// and human-input responses. It covers the request/response contracts only;
// the event channel lives in the stream package.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hamletlg/POCKETFLOWGRAPH/catalog"
	"github.com/hamletlg/POCKETFLOWGRAPH/wire"
)

// DefaultTimeout bounds every request issued by the client.
const DefaultTimeout = 30 * time.Second

// Client talks to the executor's REST API. Exactly one request per user
// action is in flight; the session layer enforces that.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config configures a Client.
type Config struct {
	// BaseURL is the executor endpoint, e.g. "http://localhost:8000".
	BaseURL string

	// HTTPClient overrides the default client (tests, custom transports).
	HTTPClient *http.Client
}

// NewClient creates a Client for the given backend.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("api client base URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{baseURL: base, httpClient: httpClient}, nil
}

// BaseURL returns the configured endpoint.
func (c *Client) BaseURL() string { return c.baseURL }

// StreamURL returns the websocket endpoint of the session event channel.
func (c *Client) StreamURL() string {
	wsBase := c.baseURL
	switch {
	case strings.HasPrefix(wsBase, "https://"):
		wsBase = "wss://" + strings.TrimPrefix(wsBase, "https://")
	case strings.HasPrefix(wsBase, "http://"):
		wsBase = "ws://" + strings.TrimPrefix(wsBase, "http://")
	}
	return wsBase + "/api/ws"
}

// NodeTypes fetches the node-type catalog listing.
func (c *Client) NodeTypes(ctx context.Context) ([]catalog.NodeTypeDef, error) {
	var defs []catalog.NodeTypeDef
	if err := c.doJSON(ctx, http.MethodGet, "/api/nodes", nil, &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// ListWorkflows returns the names of all workflows saved in the active
// workspace.
func (c *Client) ListWorkflows(ctx context.Context) ([]string, error) {
	var out struct {
		Workflows []string `json:"workflows"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/workflows", nil, &out); err != nil {
		return nil, err
	}
	return out.Workflows, nil
}

// SaveWorkflow persists a workflow under the given name.
func (c *Client) SaveWorkflow(ctx context.Context, name string, wf wire.Workflow) error {
	return c.doJSON(ctx, http.MethodPost, "/api/workflows/"+url.PathEscape(name), wf, nil)
}

// LoadWorkflow fetches a workflow by name.
func (c *Client) LoadWorkflow(ctx context.Context, name string) (wire.Workflow, error) {
	var wf wire.Workflow
	if err := c.doJSON(ctx, http.MethodGet, "/api/workflows/"+url.PathEscape(name), nil, &wf); err != nil {
		return wire.Workflow{}, err
	}
	return wf, nil
}

// DeleteWorkflow removes a saved workflow.
func (c *Client) DeleteWorkflow(ctx context.Context, name string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/workflows/"+url.PathEscape(name), nil, nil)
}

// RunResult is the terminal response of a run request. Progress arrives on
// the event channel, not here.
type RunResult struct {
	Status  string         `json:"status"`
	Results map[string]any `json:"results,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Run submits a workflow for execution and waits for the terminal result.
func (c *Client) Run(ctx context.Context, wf wire.Workflow) (RunResult, error) {
	var res RunResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/workflow/run", wf, &res); err != nil {
		return RunResult{}, err
	}
	return res, nil
}

// Export asks the backend to generate a downloadable source artifact for
// the workflow and returns its raw bytes.
func (c *Client) Export(ctx context.Context, wf wire.Workflow) ([]byte, error) {
	body, err := json.Marshal(wf)
	if err != nil {
		return nil, fmt.Errorf("encoding workflow: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/export", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building export request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("export request: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading export response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiStatusError(resp.StatusCode, data)
	}
	return data, nil
}

// ListWorkspaces returns all workspace names and the active one.
func (c *Client) ListWorkspaces(ctx context.Context) ([]string, string, error) {
	var out struct {
		Workspaces []string `json:"workspaces"`
		Active     string   `json:"active"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/workspaces", nil, &out); err != nil {
		return nil, "", err
	}
	return out.Workspaces, out.Active, nil
}

// CreateWorkspace creates a workspace.
func (c *Client) CreateWorkspace(ctx context.Context, name string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/workspaces/"+url.PathEscape(name), nil, nil)
}

// SwitchWorkspace makes the named workspace active for the session.
func (c *Client) SwitchWorkspace(ctx context.Context, name string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/workspaces/"+url.PathEscape(name)+"/activate", nil, nil)
}

// DeleteWorkspace removes a workspace. The default and the active workspace
// are protected server-side.
func (c *Client) DeleteWorkspace(ctx context.Context, name string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/workspaces/"+url.PathEscape(name), nil, nil)
}

// SubmitHumanResponse resumes a paused run by answering the human-input
// request with the collected response mapping.
func (c *Client) SubmitHumanResponse(ctx context.Context, requestID string, response map[string]any) error {
	body := map[string]any{"response": response}
	return c.doJSON(ctx, http.MethodPost, "/api/human-input/"+url.PathEscape(requestID), body, nil)
}

// --- internals ---

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request %s %s: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response for %s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %w", method, path, apiStatusError(resp.StatusCode, data))
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response for %s %s: %w", method, path, err)
	}
	return nil
}

// StatusError is a non-2xx response from the backend, with the server's
// message when one was provided.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server returned %d", e.StatusCode)
}

func apiStatusError(status int, body []byte) error {
	// Try the structured error envelope first, then a bare detail field.
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Detail string `json:"detail"`
	}
	msg := ""
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Error.Message != "" {
			msg = envelope.Error.Message
		} else if envelope.Detail != "" {
			msg = envelope.Detail
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
	}
	return &StatusError{StatusCode: status, Message: msg}
}
