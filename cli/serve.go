package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	otelapi "go.opentelemetry.io/otel"

	"github.com/hamletlg/POCKETFLOWGRAPH/catalog"
	pgotel "github.com/hamletlg/POCKETFLOWGRAPH/otel"
	"github.com/hamletlg/POCKETFLOWGRAPH/server"

	pocketgraph "github.com/hamletlg/POCKETFLOWGRAPH"
)

// NewServeCmd creates the "serve" subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the workflow HTTP server",
		RunE:  runServe,
	}

	cmd.Flags().IntP("port", "p", 8000, "Listen port")
	cmd.Flags().String("host", "0.0.0.0", "Listen host")
	cmd.Flags().String("cors-origin", "*", "Allowed CORS origin")
	cmd.Flags().String("sqlite-path", "", "Path to SQLite database (default: ~/.pocketgraph/pocketgraph.db)")
	cmd.Flags().Bool("in-memory", false, "Use an in-memory workflow store")
	cmd.Flags().Duration("read-timeout", 30*time.Second, "HTTP read timeout")
	cmd.Flags().Duration("write-timeout", 0, "HTTP write timeout (0 allows long-lived streams)")
	cmd.Flags().Int64("max-body", 1<<20, "Max request body size in bytes")
	cmd.Flags().String("otlp-endpoint", "", "OTLP HTTP collector endpoint for traces")
	cmd.Flags().Bool("otlp-insecure", false, "Use plain HTTP to reach the OTLP collector")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")
	corsOrigin, _ := cmd.Flags().GetString("cors-origin")
	readTimeout, _ := cmd.Flags().GetDuration("read-timeout")
	writeTimeout, _ := cmd.Flags().GetDuration("write-timeout")
	maxBody, _ := cmd.Flags().GetInt64("max-body")
	otlpEndpoint, _ := cmd.Flags().GetString("otlp-endpoint")
	otlpInsecure, _ := cmd.Flags().GetBool("otlp-insecure")
	inMemory, _ := cmd.Flags().GetBool("in-memory")

	logger := slog.Default()

	shutdownTracing, err := pgotel.Setup(cmd.Context(), pgotel.SetupConfig{
		Endpoint:    otlpEndpoint,
		ServiceName: "pocketgraph",
		Insecure:    otlpInsecure,
	})
	if err != nil {
		return exitError(exitRuntime, "initializing tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	var store server.WorkflowStore
	if inMemory {
		store = server.NewMemoryStore()
	} else {
		dsn, err := resolveSQLitePath(cmd)
		if err != nil {
			return err
		}
		sqliteStore, err := server.NewSQLiteStore(server.SQLiteStoreConfig{DSN: dsn})
		if err != nil {
			return fmt.Errorf("opening sqlite workflow store: %w", err)
		}
		store = sqliteStore
	}
	defer func() {
		_ = store.Close()
	}()

	hub := server.NewHub(logger)
	defer hub.CloseAll()

	tracing := pgotel.NewTracingHandler(otelapi.GetTracerProvider().Tracer("pocketgraph/run"))
	metrics, err := pgotel.NewMetricsHandler(otelapi.GetMeterProvider().Meter("pocketgraph/run"))
	if err != nil {
		return exitError(exitRuntime, "initializing run metrics: %v", err)
	}

	runner := server.NewRunService(server.RunServiceConfig{
		Catalog: catalog.Builtins(),
		Emit: pocketgraph.MultiEventHandler(
			hub.Broadcast,
			tracing.Handle,
			metrics.Handle,
		),
		Logger: logger,
	})

	// The scheduler follows the server's active workspace; the server
	// refreshes the scheduler after saves and deletes. Late-bind the
	// workspace lookup to break the construction cycle.
	var apiServer *server.Server
	scheduler := server.NewScheduler(server.SchedulerConfig{
		Store:  store,
		Runner: runner,
		Workspace: func() string {
			if apiServer == nil {
				return server.DefaultWorkspace
			}
			return apiServer.ActiveWorkspace()
		},
		Logger: logger,
	})
	apiServer = server.NewServer(server.ServerConfig{
		Store:      store,
		Catalog:    catalog.Builtins(),
		Runner:     runner,
		Hub:        hub,
		Scheduler:  scheduler,
		CORSOrigin: corsOrigin,
		MaxBody:    maxBody,
		Logger:     logger,
	})
	if err := scheduler.Refresh(cmd.Context()); err != nil {
		logger.Warn("initial schedule refresh failed", "error", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      apiServer.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(cmd.OutOrStdout(), "pocketgraph server listening on %s\n", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(cmd.OutOrStdout(), "Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return exitError(exitRuntime, "shutdown error: %v", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return exitError(exitRuntime, "server error: %v", err)
		}
		return nil
	}
}

func resolveSQLitePath(cmd *cobra.Command) (string, error) {
	sqlitePath, _ := cmd.Flags().GetString("sqlite-path")
	if sqlitePath != "" {
		return sqlitePath, nil
	}
	if env := os.Getenv("POCKETGRAPH_SQLITE_PATH"); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving default sqlite path: %w", err)
	}
	dir := filepath.Join(home, ".pocketgraph")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating data directory: %w", err)
	}
	return filepath.Join(dir, "pocketgraph.db"), nil
}
