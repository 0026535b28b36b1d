package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	pocketgraph "github.com/hamletlg/POCKETFLOWGRAPH"
	"github.com/hamletlg/POCKETFLOWGRAPH/stream"
)

// NewWatchCmd creates the "watch" subcommand printing the server's run
// event stream until interrupted.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the server's run event stream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, fileCfg, err := resolveClient(cmd)
			if err != nil {
				return err
			}

			conn := stream.New(stream.Config{
				URL:        client.StreamURL(),
				MaxRetries: fileCfg.Stream.MaxRetries,
				Backoff:    fileCfg.Stream.Backoff,
				Handler: func(e pocketgraph.Event) {
					printEvent(cmd, e)
				},
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := conn.Start(ctx); err != nil {
				return exitError(exitRuntime, "connecting to event stream: %v", err)
			}
			defer conn.Stop()

			fmt.Fprintf(cmd.OutOrStdout(), "watching %s (ctrl-c to stop)\n", client.StreamURL())
			<-ctx.Done()
			return nil
		},
	}
	addClientFlags(cmd)
	return cmd
}

func printEvent(cmd *cobra.Command, e pocketgraph.Event) {
	ts := e.Time.Format("15:04:05")
	switch e.Kind {
	case pocketgraph.EventRunStarted:
		fmt.Fprintf(cmd.OutOrStdout(), "%s run started\n", ts)
	case pocketgraph.EventNodeStarted:
		fmt.Fprintf(cmd.OutOrStdout(), "%s node %s started\n", ts, e.NodeID)
	case pocketgraph.EventNodeFinished:
		fmt.Fprintf(cmd.OutOrStdout(), "%s node %s finished\n", ts, e.NodeID)
	case pocketgraph.EventNodeFailed:
		fmt.Fprintf(cmd.OutOrStdout(), "%s node %s failed: %s\n", ts, e.NodeID, e.Detail)
	case pocketgraph.EventRunFinished:
		fmt.Fprintf(cmd.OutOrStdout(), "%s run finished\n", ts)
	case pocketgraph.EventRunFailed:
		fmt.Fprintf(cmd.OutOrStdout(), "%s run failed: %s\n", ts, e.Detail)
	case pocketgraph.EventInterruptRequired:
		fmt.Fprintf(cmd.OutOrStdout(), "%s input required (request %v)\n", ts, e.Payload["request_id"])
	case pocketgraph.EventStateUpdated:
		fmt.Fprintf(cmd.OutOrStdout(), "%s state updated\n", ts)
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ts, e.Kind)
	}
}
