package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewNodesCmd creates the "nodes" subcommand listing available node types.
func NewNodesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "List the node types the server supports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, _, err := resolveClient(cmd)
			if err != nil {
				return err
			}
			defs, err := client.NodeTypes(cmd.Context())
			if err != nil {
				return exitError(exitRuntime, "fetching node types: %v", err)
			}
			for _, def := range defs {
				fmt.Fprintf(cmd.OutOrStdout(), "%-14s %s\n", def.Type, def.Description)
			}
			return nil
		},
	}
	addClientFlags(cmd)
	return cmd
}
