package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/hamletlg/POCKETFLOWGRAPH/wire"
)

var socketUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleNodeTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.All())
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	names, err := s.store.List(r.Context(), s.ActiveWorkspace())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"workflows": names})
}

func (s *Server) handleSaveWorkflow(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "PARSE_ERROR", "workflow name is required")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "READ_ERROR", err.Error())
		return
	}
	wf, err := wire.Decode(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "PARSE_ERROR", err.Error())
		return
	}

	if err := s.store.Save(r.Context(), s.ActiveWorkspace(), name, wf); err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	s.refreshSchedules(r)
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved", "name": name})
}

func (s *Server) handleLoadWorkflow(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	wf, err := s.store.Load(r.Context(), s.ActiveWorkspace(), name)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("workflow %q not found", name))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	err := s.store.Delete(r.Context(), s.ActiveWorkspace(), name)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("workflow %q not found", name))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	s.refreshSchedules(r)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "name": name})
}

func (s *Server) handleRunWorkflow(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "READ_ERROR", err.Error())
		return
	}
	wf, err := wire.Decode(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "PARSE_ERROR", err.Error())
		return
	}

	result := s.runner.Run(r.Context(), wf)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "READ_ERROR", err.Error())
		return
	}
	var req struct {
		Name     string          `json:"name"`
		Workflow json.RawMessage `json:"workflow"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "PARSE_ERROR", err.Error())
		return
	}
	source := req.Workflow
	if source == nil {
		source = body
	}
	wf, err := wire.Decode(source)
	if err != nil {
		writeError(w, http.StatusBadRequest, "PARSE_ERROR", err.Error())
		return
	}
	name := req.Name
	if name == "" {
		name = "workflow"
	}

	w.Header().Set("Content-Type", "text/x-go")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".go"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(GenerateScript(name, wf))
}

func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	names, err := s.store.ListWorkspaces(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workspaces": names,
		"active":     s.ActiveWorkspace(),
	})
}

func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "PARSE_ERROR", "workspace name is required")
		return
	}
	if err := s.store.CreateWorkspace(r.Context(), name); err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "created", "name": name})
}

func (s *Server) handleActivateWorkspace(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	names, err := s.store.ListWorkspaces(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	found := false
	for _, n := range names {
		if n == name {
			found = true
			break
		}
	}
	if !found {
		writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("workspace %q not found", name))
		return
	}
	s.setActiveWorkspace(name)
	s.refreshSchedules(r)
	writeJSON(w, http.StatusOK, map[string]string{"status": "activated", "name": name})
}

func (s *Server) handleDeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == DefaultWorkspace {
		writeError(w, http.StatusBadRequest, "PROTECTED", "the default workspace cannot be deleted")
		return
	}
	if name == s.ActiveWorkspace() {
		writeError(w, http.StatusConflict, "CONFLICT", "the active workspace cannot be deleted")
		return
	}
	err := s.store.DeleteWorkspace(r.Context(), name)
	if errors.Is(err, ErrWorkspaceNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("workspace %q not found", name))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "name": name})
}

func (s *Server) handleHumanInput(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("request_id")
	var req struct {
		Response map[string]any `json:"response"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "PARSE_ERROR", err.Error())
		return
	}
	err := s.runner.Respond(requestID, req.Response)
	if errors.Is(err, ErrUnknownRequest) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("request %q not found", requestID))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "RUNTIME_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (s *Server) handleEventSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := socketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	s.hub.Add(conn)
	s.logger.Info("event subscriber connected", "remote", r.RemoteAddr)

	// Reads are drained so close frames and pings are processed; the
	// event channel is otherwise one-way.
	go func() {
		defer func() {
			s.hub.Remove(conn)
			_ = conn.Close()
			s.logger.Info("event subscriber disconnected", "remote", r.RemoteAddr)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) refreshSchedules(r *http.Request) {
	if s.scheduler == nil {
		return
	}
	if err := s.scheduler.Refresh(r.Context()); err != nil {
		s.logger.Warn("schedule refresh failed", "error", err)
	}
}
