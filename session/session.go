// Package session owns the state of one editor session: the live document,
// the execution consumer and interrupt gate, the event channel, and the
// REST client. It replaces scattered UI flags with one explicit state
// object and replaces blocking confirmation dialogs with a
// confirmation-required error that callers answer with a discard flag.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	pocketgraph "github.com/hamletlg/POCKETFLOWGRAPH"
	"github.com/hamletlg/POCKETFLOWGRAPH/api"
	"github.com/hamletlg/POCKETFLOWGRAPH/catalog"
	"github.com/hamletlg/POCKETFLOWGRAPH/execution"
	"github.com/hamletlg/POCKETFLOWGRAPH/stream"
	"github.com/hamletlg/POCKETFLOWGRAPH/wire"
)

// ErrUnsavedChanges is returned by document-switching operations when the
// live document is dirty and the caller did not pass discard=true. The
// caller confirms with the user and retries with discard set.
var ErrUnsavedChanges = errors.New("document has unsaved changes")

// ErrBusy is returned when another save/load/run/export is still in
// flight. The UI disables the triggering action instead of queueing.
var ErrBusy = errors.New("another operation is in progress")

// Config configures a Session.
type Config struct {
	Client  *api.Client
	Catalog *catalog.Catalog
	Logger  *slog.Logger

	// Stream tunes the event channel; URL and Handler are filled in by
	// the session.
	Stream stream.Config
}

// Session is the single live editor session. Document mutation happens on
// one goroutine; only the execution consumer reacts to background events.
type Session struct {
	logger   *slog.Logger
	catalog  *catalog.Catalog
	client   *api.Client
	doc      *pocketgraph.Document
	gate     *execution.Gate
	consumer *execution.Consumer
	conn     *stream.Conn

	mu   sync.Mutex
	busy bool
}

// New creates a session with the default single-node document.
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cat := cfg.Catalog
	if cat == nil {
		cat = catalog.Builtins()
	}

	doc := pocketgraph.DefaultDocument(cat)
	var sender execution.ResponseSender
	if cfg.Client != nil {
		sender = cfg.Client
	}
	gate := execution.NewGate(sender, logger)
	consumer := execution.NewConsumer(execution.ConsumerConfig{
		Document: doc,
		Gate:     gate,
		Logger:   logger,
	})

	s := &Session{
		logger:   logger,
		catalog:  cat,
		client:   cfg.Client,
		doc:      doc,
		gate:     gate,
		consumer: consumer,
	}

	if cfg.Client != nil {
		streamCfg := cfg.Stream
		streamCfg.URL = cfg.Client.StreamURL()
		streamCfg.Handler = consumer.Handle
		if streamCfg.Logger == nil {
			streamCfg.Logger = logger
		}
		s.conn = stream.New(streamCfg)
	}
	return s
}

// Document returns the live document. There is exactly one per session;
// load and new replace its contents in place.
func (s *Session) Document() *pocketgraph.Document { return s.doc }

// Catalog returns the node-type catalog in use.
func (s *Session) Catalog() *catalog.Catalog { return s.catalog }

// Execution returns the execution-state consumer.
func (s *Session) Execution() *execution.Consumer { return s.consumer }

// Gate returns the human-input interrupt gate.
func (s *Session) Gate() *execution.Gate { return s.gate }

// Connect starts the execution event channel. Reconnection is bounded by
// the stream configuration; exhaustion leaves the last projected state.
func (s *Session) Connect(ctx context.Context) error {
	if s.conn == nil {
		return fmt.Errorf("session has no client configured")
	}
	return s.conn.Start(ctx)
}

// Close stops the event channel and clears execution state.
func (s *Session) Close() {
	if s.conn != nil {
		s.conn.Stop()
	}
	s.consumer.Reset()
	s.gate.Dismiss()
}

// RefreshCatalog replaces the catalog with the executor's current listing.
func (s *Session) RefreshCatalog(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	defs, err := s.client.NodeTypes(ctx)
	if err != nil {
		return fmt.Errorf("fetching node types: %w", err)
	}
	s.catalog = catalog.FromDefs(defs)
	return nil
}

// NewDocument discards the live document and installs the default one.
// When the document is dirty and discard is false, it returns
// ErrUnsavedChanges without touching anything.
func (s *Session) NewDocument(discard bool) error {
	if s.doc.Dirty() && !discard {
		return ErrUnsavedChanges
	}
	fresh := pocketgraph.DefaultDocument(s.catalog)
	s.doc.Replace(fresh.Name(), fresh.Nodes(), fresh.Edges())
	s.consumer.Reset()
	s.gate.Dismiss()
	return nil
}

// Load fetches the named workflow and replaces the live document. A failed
// load leaves the previous document intact. Dirty documents require
// discard=true.
func (s *Session) Load(ctx context.Context, name string, discard bool) error {
	if s.doc.Dirty() && !discard {
		return ErrUnsavedChanges
	}
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	wf, err := s.client.LoadWorkflow(ctx, name)
	if err != nil {
		return fmt.Errorf("loading workflow %q: %w", name, err)
	}
	wire.LoadInto(s.doc, name, wf, s.catalog)
	s.consumer.Reset()
	s.gate.Dismiss()
	return nil
}

// Save persists the live document under name. On success the document is
// renamed and marked clean; on failure the dirty flag is untouched.
func (s *Session) Save(ctx context.Context, name string) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	wf := wire.ToWire(s.doc)
	if err := s.client.SaveWorkflow(ctx, name, wf); err != nil {
		return fmt.Errorf("saving workflow %q: %w", name, err)
	}
	s.doc.SetName(name)
	s.doc.MarkClean()
	return nil
}

// Run serializes the live document and submits it for remote execution.
// Progress is projected by the consumer as events arrive on the channel.
func (s *Session) Run(ctx context.Context) (api.RunResult, error) {
	if err := s.begin(); err != nil {
		return api.RunResult{}, err
	}
	defer s.end()

	return s.client.Run(ctx, wire.ToWire(s.doc))
}

// Export generates the source artifact for the live document.
func (s *Session) Export(ctx context.Context) ([]byte, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()

	return s.client.Export(ctx, wire.ToWire(s.doc))
}

// ListWorkflows returns the saved workflow names in the active workspace.
func (s *Session) ListWorkflows(ctx context.Context) ([]string, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()

	return s.client.ListWorkflows(ctx)
}

// DeleteWorkflow removes a saved workflow. The live document is untouched
// even when it was loaded from that name.
func (s *Session) DeleteWorkflow(ctx context.Context, name string) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	return s.client.DeleteWorkflow(ctx, name)
}

// SubmitInterrupt answers the pending human-input request. A transport
// failure keeps the request pending for retry.
func (s *Session) SubmitInterrupt(ctx context.Context, values map[string]any, approved bool) error {
	return s.gate.Submit(ctx, values, approved)
}

// DismissInterrupt closes the pending request without answering it.
func (s *Session) DismissInterrupt() {
	s.gate.Dismiss()
}

func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrBusy
	}
	if s.client == nil {
		return fmt.Errorf("session has no client configured")
	}
	s.busy = true
	return nil
}

func (s *Session) end() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}
