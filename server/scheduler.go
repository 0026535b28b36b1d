package server

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/hamletlg/POCKETFLOWGRAPH/catalog"
	"github.com/hamletlg/POCKETFLOWGRAPH/wire"
)

// SchedulerConfig configures the workflow scheduler.
type SchedulerConfig struct {
	Store     WorkflowStore
	Runner    *RunService
	Workspace func() string
	Logger    *slog.Logger
}

// Scheduler triggers stored workflows that carry a cron node. Refresh
// rescans the active workspace and replaces the schedule set, so it is
// called after every save and delete.
type Scheduler struct {
	store     WorkflowStore
	runner    *RunService
	workspace func() string
	logger    *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
	started bool
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workspace := cfg.Workspace
	if workspace == nil {
		workspace = func() string { return DefaultWorkspace }
	}
	return &Scheduler{
		store:     cfg.Store,
		runner:    cfg.Runner,
		workspace: workspace,
		logger:    logger,
		cron:      cron.New(),
		entries:   make(map[string]cron.EntryID),
	}
}

// Start begins firing schedules.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.cron.Start()
	s.started = true
}

// Stop halts the scheduler and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	c := s.cron
	s.mu.Unlock()
	<-c.Stop().Done()
}

// Scheduled returns the names of workflows with an active schedule.
func (s *Scheduler) Scheduled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Refresh rescans the active workspace and rebuilds the schedule set.
// Workflows whose cron configuration fails to parse are skipped with a
// warning so one bad workflow cannot take down the rest.
func (s *Scheduler) Refresh(ctx context.Context) error {
	workspace := s.workspace()
	names, err := s.store.List(ctx, workspace)
	if err != nil {
		return fmt.Errorf("scheduler refresh: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for name, id := range s.entries {
		s.cron.Remove(id)
		delete(s.entries, name)
	}

	for _, name := range names {
		wf, err := s.store.Load(ctx, workspace, name)
		if err != nil {
			s.logger.Warn("scheduler skipping workflow", "name", name, "error", err)
			continue
		}
		spec, ok := scheduleSpec(wf)
		if !ok {
			continue
		}
		id, err := s.cron.AddFunc(spec, func() {
			s.logger.Info("scheduled run starting", "workflow", name)
			result := s.runner.Run(context.Background(), wf)
			if result.Status != RunStatusSuccess {
				s.logger.Warn("scheduled run failed", "workflow", name, "error", result.Error)
			}
		})
		if err != nil {
			s.logger.Warn("scheduler rejecting schedule", "name", name, "spec", spec, "error", err)
			continue
		}
		s.entries[name] = id
		s.logger.Info("workflow scheduled", "name", name, "spec", spec)
	}
	return nil
}

// scheduleSpec extracts a cron spec from the workflow's first cron node.
// Interval schedules translate to @every expressions.
func scheduleSpec(wf wire.Workflow) (string, bool) {
	for _, n := range wf.Nodes {
		if n.Type != catalog.KindCron || n.Data == nil {
			continue
		}
		scheduleType := strings.ToLower(n.Data.GetString("schedule_type"))
		switch scheduleType {
		case "interval":
			value := n.Data.GetString("interval_value")
			if _, err := strconv.Atoi(value); err != nil {
				return "", false
			}
			unit := intervalUnit(strings.ToLower(n.Data.GetString("interval_unit")))
			return "@every " + value + unit, true
		default:
			expr := n.Data.GetString("cron_expression")
			if expr == "" {
				return "", false
			}
			return expr, true
		}
	}
	return "", false
}

func intervalUnit(unit string) string {
	switch unit {
	case "seconds":
		return "s"
	case "hours":
		return "h"
	default:
		return "m"
	}
}
