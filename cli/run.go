package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewRunCmd creates the "run" subcommand executing a workflow file.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Run a workflow file on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := resolveClient(cmd)
			if err != nil {
				return err
			}
			wf, err := readWorkflowFile(args[0])
			if err != nil {
				return err
			}
			result, err := client.Run(cmd.Context(), wf)
			if err != nil {
				return exitError(exitRuntime, "running workflow: %v", err)
			}
			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return exitError(exitRuntime, "rendering result: %v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			if result.Status != "success" {
				return exitError(exitRuntime, "run failed: %s", result.Error)
			}
			return nil
		},
	}
	addClientFlags(cmd)
	return cmd
}
