package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/hamletlg/POCKETFLOWGRAPH/catalog"
)

// ServerConfig configures a Server instance.
type ServerConfig struct {
	Store      WorkflowStore
	Catalog    *catalog.Catalog
	Runner     *RunService
	Hub        *Hub
	Scheduler  *Scheduler
	CORSOrigin string
	MaxBody    int64
	Logger     *slog.Logger
}

// Server is the graph editor's HTTP API: workflow persistence, run
// dispatch, workspace management and the websocket event channel.
type Server struct {
	store     WorkflowStore
	catalog   *catalog.Catalog
	runner    *RunService
	hub       *Hub
	scheduler *Scheduler
	logger    *slog.Logger

	corsOrigin string
	maxBody    int64

	workspaceMu sync.RWMutex
	workspace   string
}

// NewServer creates a new Server with the given configuration.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	corsOrigin := cfg.CORSOrigin
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	maxBody := cfg.MaxBody
	if maxBody <= 0 {
		maxBody = 1 << 20 // 1 MB default
	}
	cat := cfg.Catalog
	if cat == nil {
		cat = catalog.Builtins()
	}
	return &Server{
		store:      cfg.Store,
		catalog:    cat,
		runner:     cfg.Runner,
		hub:        cfg.Hub,
		scheduler:  cfg.Scheduler,
		logger:     logger,
		corsOrigin: corsOrigin,
		maxBody:    maxBody,
		workspace:  DefaultWorkspace,
	}
}

// ActiveWorkspace returns the workspace workflow routes operate on.
func (s *Server) ActiveWorkspace() string {
	s.workspaceMu.RLock()
	defer s.workspaceMu.RUnlock()
	return s.workspace
}

func (s *Server) setActiveWorkspace(name string) {
	s.workspaceMu.Lock()
	s.workspace = name
	s.workspaceMu.Unlock()
}

// Handler returns an http.Handler with all routes and middleware wired.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	var handler http.Handler = mux
	handler = s.corsMiddleware(handler)
	handler = s.maxBodyMiddleware(handler)

	return handler
}

// RegisterRoutes mounts the API routes onto an existing mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/nodes", s.handleNodeTypes)
	mux.HandleFunc("GET /api/workflows", s.handleListWorkflows)
	mux.HandleFunc("POST /api/workflows/{name}", s.handleSaveWorkflow)
	mux.HandleFunc("GET /api/workflows/{name}", s.handleLoadWorkflow)
	mux.HandleFunc("DELETE /api/workflows/{name}", s.handleDeleteWorkflow)
	mux.HandleFunc("POST /api/workflow/run", s.handleRunWorkflow)
	mux.HandleFunc("POST /api/export", s.handleExport)
	mux.HandleFunc("GET /api/workspaces", s.handleListWorkspaces)
	mux.HandleFunc("POST /api/workspaces/{name}", s.handleCreateWorkspace)
	mux.HandleFunc("POST /api/workspaces/{name}/activate", s.handleActivateWorkspace)
	mux.HandleFunc("DELETE /api/workspaces/{name}", s.handleDeleteWorkspace)
	mux.HandleFunc("POST /api/human-input/{request_id}", s.handleHumanInput)
	mux.HandleFunc("GET /api/ws", s.handleEventSocket)
}

// --- Middleware ---

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) maxBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		next.ServeHTTP(w, r)
	})
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// apiError is the standard error envelope.
type apiError struct {
	Error apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Error: apiErrorBody{Code: code, Message: message}})
}
