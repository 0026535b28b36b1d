// Package server is the reference executor backend for the graph editor.
// It implements the REST and event-channel contracts the editor depends on:
// workflow persistence per workspace, a simulated run service that emits the
// execution event sequence, human-input resumption, script export, and cron
// scheduling of saved workflows.
package server

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/hamletlg/POCKETFLOWGRAPH/wire"
)

// DefaultWorkspace always exists and cannot be deleted.
const DefaultWorkspace = "default"

// ErrNotFound is returned for unknown workflow names.
var ErrNotFound = errors.New("workflow not found")

// ErrWorkspaceNotFound is returned for unknown workspace names.
var ErrWorkspaceNotFound = errors.New("workspace not found")

// WorkflowStore persists serialized workflows grouped by workspace.
type WorkflowStore interface {
	// List returns the workflow names in a workspace, sorted.
	List(ctx context.Context, workspace string) ([]string, error)

	// Load returns a saved workflow. ErrNotFound for unknown names.
	Load(ctx context.Context, workspace, name string) (wire.Workflow, error)

	// Save upserts a workflow under (workspace, name).
	Save(ctx context.Context, workspace, name string, wf wire.Workflow) error

	// Delete removes a workflow. ErrNotFound for unknown names.
	Delete(ctx context.Context, workspace, name string) error

	// ListWorkspaces returns all workspace names, sorted, always
	// including the default workspace.
	ListWorkspaces(ctx context.Context) ([]string, error)

	// CreateWorkspace adds a workspace. Existing names are a no-op.
	CreateWorkspace(ctx context.Context, name string) error

	// DeleteWorkspace removes a workspace and its workflows.
	// ErrWorkspaceNotFound for unknown names.
	DeleteWorkspace(ctx context.Context, name string) error

	// Close releases store resources.
	Close() error
}

// MemoryStore is an in-memory WorkflowStore for tests and ephemeral runs.
type MemoryStore struct {
	mu         sync.RWMutex
	workspaces map[string]map[string][]byte
}

// NewMemoryStore creates a MemoryStore with the default workspace.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workspaces: map[string]map[string][]byte{
			DefaultWorkspace: {},
		},
	}
}

// List returns the workflow names in a workspace, sorted.
func (s *MemoryStore) List(_ context.Context, workspace string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	flows, ok := s.workspaces[workspace]
	if !ok {
		return nil, ErrWorkspaceNotFound
	}
	names := make([]string, 0, len(flows))
	for name := range flows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Load returns a saved workflow.
func (s *MemoryStore) Load(_ context.Context, workspace, name string) (wire.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	flows, ok := s.workspaces[workspace]
	if !ok {
		return wire.Workflow{}, ErrWorkspaceNotFound
	}
	data, ok := flows[name]
	if !ok {
		return wire.Workflow{}, ErrNotFound
	}
	return wire.Decode(data)
}

// Save upserts a workflow.
func (s *MemoryStore) Save(_ context.Context, workspace, name string, wf wire.Workflow) error {
	data, err := wire.Encode(wf)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	flows, ok := s.workspaces[workspace]
	if !ok {
		return ErrWorkspaceNotFound
	}
	flows[name] = data
	return nil
}

// Delete removes a workflow.
func (s *MemoryStore) Delete(_ context.Context, workspace, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	flows, ok := s.workspaces[workspace]
	if !ok {
		return ErrWorkspaceNotFound
	}
	if _, ok := flows[name]; !ok {
		return ErrNotFound
	}
	delete(flows, name)
	return nil
}

// ListWorkspaces returns all workspace names, sorted.
func (s *MemoryStore) ListWorkspaces(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.workspaces))
	for name := range s.workspaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// CreateWorkspace adds a workspace. Existing names are a no-op.
func (s *MemoryStore) CreateWorkspace(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workspaces[name]; !ok {
		s.workspaces[name] = map[string][]byte{}
	}
	return nil
}

// DeleteWorkspace removes a workspace and its workflows.
func (s *MemoryStore) DeleteWorkspace(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workspaces[name]; !ok {
		return ErrWorkspaceNotFound
	}
	delete(s.workspaces, name)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

var _ WorkflowStore = (*MemoryStore)(nil)
