package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	pocketgraph "github.com/hamletlg/POCKETFLOWGRAPH"
	"github.com/hamletlg/POCKETFLOWGRAPH/api"
	"github.com/hamletlg/POCKETFLOWGRAPH/catalog"
	"github.com/hamletlg/POCKETFLOWGRAPH/wire"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv := NewServer(ServerConfig{
		Store:   NewMemoryStore(),
		Catalog: catalog.Builtins(),
		Runner:  NewRunService(RunServiceConfig{Catalog: catalog.Builtins()}),
		Hub:     NewHub(nil),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func doRequest(t *testing.T, method, url string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func workflowJSON(t *testing.T) []byte {
	t.Helper()
	data, err := wire.Encode(wire.Workflow{
		Nodes: []wire.Node{{ID: "1", Type: "start", Label: "Start"}},
		Edges: []wire.Edge{},
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return data
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	resp := doRequest(t, http.MethodGet, ts.URL+"/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestNodeTypesEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	resp := doRequest(t, http.MethodGet, ts.URL+"/api/nodes", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var defs []catalog.NodeTypeDef
	decodeBody(t, resp, &defs)
	if len(defs) == 0 {
		t.Fatal("no node types returned")
	}
	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		seen[d.Type] = true
	}
	for _, kind := range []string{"start", "llm", "human_input"} {
		if !seen[kind] {
			t.Errorf("node types missing %q", kind)
		}
	}
}

func TestWorkflowLifecycleOverHTTP(t *testing.T) {
	_, ts := newTestServer(t)

	// Save.
	resp := doRequest(t, http.MethodPost, ts.URL+"/api/workflows/demo", workflowJSON(t))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save status = %d", resp.StatusCode)
	}

	// List includes it.
	resp = doRequest(t, http.MethodGet, ts.URL+"/api/workflows", nil)
	var listing struct {
		Workflows []string `json:"workflows"`
	}
	decodeBody(t, resp, &listing)
	if len(listing.Workflows) != 1 || listing.Workflows[0] != "demo" {
		t.Errorf("workflows = %v", listing.Workflows)
	}

	// Load round-trips the document.
	resp = doRequest(t, http.MethodGet, ts.URL+"/api/workflows/demo", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("load status = %d", resp.StatusCode)
	}
	var wf wire.Workflow
	decodeBody(t, resp, &wf)
	if len(wf.Nodes) != 1 || wf.Nodes[0].ID != "1" {
		t.Errorf("loaded nodes = %+v", wf.Nodes)
	}

	// Delete.
	resp = doRequest(t, http.MethodDelete, ts.URL+"/api/workflows/demo", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp = doRequest(t, http.MethodGet, ts.URL+"/api/workflows/demo", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("load after delete status = %d", resp.StatusCode)
	}
	var apiErr apiError
	decodeBody(t, resp, &apiErr)
	if apiErr.Error.Code != "NOT_FOUND" {
		t.Errorf("error code = %q", apiErr.Error.Code)
	}
}

func TestSaveRejectsMalformedBody(t *testing.T) {
	_, ts := newTestServer(t)
	resp := doRequest(t, http.MethodPost, ts.URL+"/api/workflows/bad", []byte("not json"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestRunEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	resp := doRequest(t, http.MethodPost, ts.URL+"/api/workflow/run", workflowJSON(t))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var result RunResult
	decodeBody(t, resp, &result)
	if result.Status != RunStatusSuccess {
		t.Errorf("result = %+v", result)
	}
	if _, ok := result.Results["1"]; !ok {
		t.Error("results missing the start node")
	}
}

func TestExportEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	body, _ := json.Marshal(map[string]any{
		"name":     "my-flow",
		"workflow": json.RawMessage(workflowJSON(t)),
	})
	resp := doRequest(t, http.MethodPost, ts.URL+"/api/export", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/x-go" {
		t.Errorf("content type = %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "my-flow.go") {
		t.Errorf("content disposition = %q", cd)
	}
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if !strings.Contains(buf.String(), "package main") {
		t.Error("export is not a main package")
	}
}

func TestExportAcceptsRawWorkflowBody(t *testing.T) {
	_, ts := newTestServer(t)
	resp := doRequest(t, http.MethodPost, ts.URL+"/api/export", workflowJSON(t))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "workflow.go") {
		t.Errorf("content disposition = %q", cd)
	}
}

func TestWorkspaceEndpoints(t *testing.T) {
	_, ts := newTestServer(t)

	// Create and list.
	resp := doRequest(t, http.MethodPost, ts.URL+"/api/workspaces/staging", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	resp = doRequest(t, http.MethodGet, ts.URL+"/api/workspaces", nil)
	var listing struct {
		Workspaces []string `json:"workspaces"`
		Active     string   `json:"active"`
	}
	decodeBody(t, resp, &listing)
	if listing.Active != DefaultWorkspace {
		t.Errorf("active = %q", listing.Active)
	}
	if len(listing.Workspaces) != 2 {
		t.Errorf("workspaces = %v", listing.Workspaces)
	}

	// Workflow routes follow the active workspace.
	doRequest(t, http.MethodPost, ts.URL+"/api/workflows/in-default", workflowJSON(t))
	resp = doRequest(t, http.MethodPost, ts.URL+"/api/workspaces/staging/activate", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("activate status = %d", resp.StatusCode)
	}
	resp = doRequest(t, http.MethodGet, ts.URL+"/api/workflows", nil)
	var staging struct {
		Workflows []string `json:"workflows"`
	}
	decodeBody(t, resp, &staging)
	if len(staging.Workflows) != 0 {
		t.Errorf("staging workflows = %v", staging.Workflows)
	}

	// Activating an unknown workspace fails.
	resp = doRequest(t, http.MethodPost, ts.URL+"/api/workspaces/ghost/activate", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("activate unknown status = %d", resp.StatusCode)
	}
}

func TestWorkspaceDeletionRules(t *testing.T) {
	srv, ts := newTestServer(t)

	// The default workspace is protected.
	resp := doRequest(t, http.MethodDelete, ts.URL+"/api/workspaces/default", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("delete default status = %d", resp.StatusCode)
	}
	var apiErr apiError
	decodeBody(t, resp, &apiErr)
	if apiErr.Error.Code != "PROTECTED" {
		t.Errorf("error code = %q", apiErr.Error.Code)
	}

	// The active workspace cannot be deleted.
	doRequest(t, http.MethodPost, ts.URL+"/api/workspaces/staging", nil)
	doRequest(t, http.MethodPost, ts.URL+"/api/workspaces/staging/activate", nil)
	if got := srv.ActiveWorkspace(); got != "staging" {
		t.Fatalf("active workspace = %q", got)
	}
	resp = doRequest(t, http.MethodDelete, ts.URL+"/api/workspaces/staging", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("delete active status = %d", resp.StatusCode)
	}

	// After switching away it can go.
	doRequest(t, http.MethodPost, ts.URL+"/api/workspaces/default/activate", nil)
	resp = doRequest(t, http.MethodDelete, ts.URL+"/api/workspaces/staging", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete after switch status = %d", resp.StatusCode)
	}

	// Unknown workspace.
	resp = doRequest(t, http.MethodDelete, ts.URL+"/api/workspaces/ghost", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("delete unknown status = %d", resp.StatusCode)
	}
}

func TestHumanInputRoundTripThroughClient(t *testing.T) {
	srv, ts := newTestServer(t)
	client, err := api.NewClient(api.Config{BaseURL: ts.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	wf := wire.Workflow{
		Nodes: []wire.Node{
			{ID: "gate", Type: "human_input",
				Data: pocketgraph.ParamsFrom("prompt", "proceed?")},
		},
	}
	data, err := wire.Encode(wf)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	done := make(chan *http.Response, 1)
	runErr := make(chan error, 1)
	go func() {
		resp, err := http.Post(ts.URL+"/api/workflow/run", "application/json", bytes.NewReader(data))
		if err != nil {
			runErr <- err
			return
		}
		done <- resp
	}()

	// Wait until the run suspends on the gate, then answer through the
	// real client so the request body crosses the wire.
	var requestID string
	deadline := time.After(5 * time.Second)
	for requestID == "" {
		select {
		case <-deadline:
			t.Fatal("run never suspended on the gate")
		case <-time.After(5 * time.Millisecond):
		}
		if ids := srv.runner.PendingRequests(); len(ids) == 1 {
			requestID = ids[0]
		}
	}
	values := map[string]any{"name": "ada", "approved": true}
	if err := client.SubmitHumanResponse(context.Background(), requestID, values); err != nil {
		t.Fatalf("SubmitHumanResponse: %v", err)
	}

	var resp *http.Response
	select {
	case err := <-runErr:
		t.Fatalf("run request: %v", err)
	case resp = <-done:
	}
	defer resp.Body.Close()
	var result RunResult
	decodeBody(t, resp, &result)
	if result.Status != RunStatusSuccess {
		t.Fatalf("result = %+v", result)
	}
	out, ok := result.Results["gate"].(map[string]any)
	if !ok {
		t.Fatalf("gate result = %#v", result.Results["gate"])
	}
	response, ok := out["response"].(map[string]any)
	if !ok {
		t.Fatalf("submitted values did not reach the node: response = %#v", out["response"])
	}
	if response["name"] != "ada" || response["approved"] != true {
		t.Errorf("response = %v", response)
	}
}

func TestHumanInputUnknownRequest(t *testing.T) {
	_, ts := newTestServer(t)
	body := []byte(`{"response":{"answer":"yes"}}`)
	resp := doRequest(t, http.MethodPost, ts.URL+"/api/human-input/ghost", body)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	_, ts := newTestServer(t)
	resp := doRequest(t, http.MethodOptions, ts.URL+"/api/workflows", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if origin := resp.Header.Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("allow origin = %q", origin)
	}
}

func TestMaxBodyLimit(t *testing.T) {
	srv := NewServer(ServerConfig{
		Store:   NewMemoryStore(),
		Catalog: catalog.Builtins(),
		Runner:  NewRunService(RunServiceConfig{}),
		Hub:     NewHub(nil),
		MaxBody: 64,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	big := bytes.Repeat([]byte("x"), 1024)
	resp := doRequest(t, http.MethodPost, ts.URL+"/api/workflows/big", big)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
