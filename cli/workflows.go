package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hamletlg/POCKETFLOWGRAPH/wire"
)

// NewWorkflowsCmd creates the "workflows" subcommand group.
func NewWorkflowsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflows",
		Short: "Manage saved workflows on the server",
	}
	cmd.AddCommand(newWorkflowsListCmd())
	cmd.AddCommand(newWorkflowsSaveCmd())
	cmd.AddCommand(newWorkflowsLoadCmd())
	cmd.AddCommand(newWorkflowsDeleteCmd())
	return cmd
}

func newWorkflowsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved workflows",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, _, err := resolveClient(cmd)
			if err != nil {
				return err
			}
			names, err := client.ListWorkflows(cmd.Context())
			if err != nil {
				return exitError(exitRuntime, "listing workflows: %v", err)
			}
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no saved workflows")
				return nil
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
	addClientFlags(cmd)
	return cmd
}

func newWorkflowsSaveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save <name> <file>",
		Short: "Save a workflow file to the server",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := resolveClient(cmd)
			if err != nil {
				return err
			}
			wf, err := readWorkflowFile(args[1])
			if err != nil {
				return err
			}
			if err := client.SaveWorkflow(cmd.Context(), args[0], wf); err != nil {
				return exitError(exitRuntime, "saving workflow: %v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", args[0])
			return nil
		},
	}
	addClientFlags(cmd)
	return cmd
}

func newWorkflowsLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <name>",
		Short: "Print a saved workflow as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := resolveClient(cmd)
			if err != nil {
				return err
			}
			wf, err := client.LoadWorkflow(cmd.Context(), args[0])
			if err != nil {
				return exitError(exitRuntime, "loading workflow: %v", err)
			}
			data, err := wire.Encode(wf)
			if err != nil {
				return exitError(exitRuntime, "encoding workflow: %v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	addClientFlags(cmd)
	return cmd
}

func newWorkflowsDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a saved workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := resolveClient(cmd)
			if err != nil {
				return err
			}
			if err := client.DeleteWorkflow(cmd.Context(), args[0]); err != nil {
				return exitError(exitRuntime, "deleting workflow: %v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
	addClientFlags(cmd)
	return cmd
}

func readWorkflowFile(path string) (wire.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return wire.Workflow{}, exitError(exitFileNotFound, "reading %s: %v", path, err)
	}
	wf, err := wire.Decode(data)
	if err != nil {
		return wire.Workflow{}, exitError(exitInputParse, "parsing %s: %v", path, err)
	}
	return wf, nil
}
