package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hamletlg/POCKETFLOWGRAPH/wire"
)

const workflowSQLiteSchema = `
CREATE TABLE IF NOT EXISTS workspaces (
	name TEXT PRIMARY KEY,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS workflows (
	workspace TEXT NOT NULL,
	name TEXT NOT NULL,
	source BLOB NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (workspace, name),
	FOREIGN KEY (workspace) REFERENCES workspaces(name) ON DELETE CASCADE
);`

// SQLiteStoreConfig configures the SQLite workflow store.
type SQLiteStoreConfig struct {
	DSN string
}

// SQLiteStore persists workflows in SQLite, one row per (workspace, name).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite-backed workflow store and
// ensures the default workspace exists.
func NewSQLiteStore(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("workflow store sqlite dsn is required")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("workflow sqlite store open: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("workflow sqlite store set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("workflow sqlite store enable foreign keys: %w", err)
	}
	if _, err := db.Exec(workflowSQLiteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("workflow sqlite store create schema: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.CreateWorkspace(context.Background(), DefaultWorkspace); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("workflow sqlite store ensure default workspace: %w", err)
	}
	return store, nil
}

// List returns the workflow names in a workspace, sorted.
func (s *SQLiteStore) List(ctx context.Context, workspace string) ([]string, error) {
	if exists, err := s.workspaceExists(ctx, workspace); err != nil {
		return nil, err
	} else if !exists {
		return nil, ErrWorkspaceNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM workflows WHERE workspace = ? ORDER BY name", workspace)
	if err != nil {
		return nil, fmt.Errorf("listing workflows: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning workflow name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating workflows: %w", err)
	}
	return names, nil
}

// Load returns a saved workflow.
func (s *SQLiteStore) Load(ctx context.Context, workspace, name string) (wire.Workflow, error) {
	var source []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT source FROM workflows WHERE workspace = ? AND name = ?", workspace, name).
		Scan(&source)
	if errors.Is(err, sql.ErrNoRows) {
		return wire.Workflow{}, ErrNotFound
	}
	if err != nil {
		return wire.Workflow{}, fmt.Errorf("loading workflow %q: %w", name, err)
	}
	return wire.Decode(source)
}

// Save upserts a workflow.
func (s *SQLiteStore) Save(ctx context.Context, workspace, name string, wf wire.Workflow) error {
	if exists, err := s.workspaceExists(ctx, workspace); err != nil {
		return err
	} else if !exists {
		return ErrWorkspaceNotFound
	}

	data, err := wire.Encode(wf)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, `
INSERT INTO workflows (workspace, name, source, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(workspace, name) DO UPDATE SET source = excluded.source, updated_at = excluded.updated_at`,
		workspace, name, data, now, now)
	if err != nil {
		return fmt.Errorf("saving workflow %q: %w", name, err)
	}
	return nil
}

// Delete removes a workflow.
func (s *SQLiteStore) Delete(ctx context.Context, workspace, name string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM workflows WHERE workspace = ? AND name = ?", workspace, name)
	if err != nil {
		return fmt.Errorf("deleting workflow %q: %w", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting workflow %q: %w", name, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListWorkspaces returns all workspace names, sorted.
func (s *SQLiteStore) ListWorkspaces(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM workspaces ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing workspaces: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning workspace name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating workspaces: %w", err)
	}
	return names, nil
}

// CreateWorkspace adds a workspace. Existing names are a no-op.
func (s *SQLiteStore) CreateWorkspace(ctx context.Context, name string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO workspaces (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING",
		name, now)
	if err != nil {
		return fmt.Errorf("creating workspace %q: %w", name, err)
	}
	return nil
}

// DeleteWorkspace removes a workspace and, via the schema's cascade, its
// workflows.
func (s *SQLiteStore) DeleteWorkspace(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM workspaces WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting workspace %q: %w", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting workspace %q: %w", name, err)
	}
	if affected == 0 {
		return ErrWorkspaceNotFound
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) workspaceExists(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM workspaces WHERE name = ?", name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking workspace %q: %w", name, err)
	}
	return true, nil
}

var _ WorkflowStore = (*SQLiteStore)(nil)
