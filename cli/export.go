package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewExportCmd creates the "export" subcommand turning a workflow file
// into a standalone source artifact.
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Export a workflow file as a standalone Go program",
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
			script, err := client.Export(cmd.Context(), wf)
			if err != nil {
				return exitError(exitRuntime, "exporting workflow: %v", err)
			}

			output, _ := cmd.Flags().GetString("output")
			if output == "" {
				fmt.Fprint(cmd.OutOrStdout(), string(script))
				return nil
			}
			if err := os.WriteFile(output, script, 0o644); err != nil {
				return exitError(exitRuntime, "writing %s: %v", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Write the exported program to a file")
	addClientFlags(cmd)
	return cmd
}
