package cli

import (
	"github.com/spf13/cobra"

	"github.com/hamletlg/POCKETFLOWGRAPH/api"
	"github.com/hamletlg/POCKETFLOWGRAPH/session"
)

// addClientFlags registers the flags shared by every command that talks
// to a running server.
func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().String("server", "", "Server base URL (default from config or http://localhost:8000)")
	cmd.Flags().String("config", "", "Path to pocketgraph.yaml config")
}

// resolveClient builds an API client from flags and the discovered
// config file. Flags win over the file; the file wins over defaults.
func resolveClient(cmd *cobra.Command) (*api.Client, session.FileConfig, error) {
	fileCfg := session.DefaultFileConfig()

	explicitPath, _ := cmd.Flags().GetString("config")
	path, found, err := session.DiscoverConfigPath(explicitPath)
	if err != nil {
		return nil, fileCfg, exitError(exitFileNotFound, "locating config: %v", err)
	}
	if found {
		fileCfg, err = session.LoadFileConfig(path)
		if err != nil {
			return nil, fileCfg, exitError(exitInputParse, "loading config %s: %v", path, err)
		}
	}

	if server, _ := cmd.Flags().GetString("server"); server != "" {
		fileCfg.ServerURL = server
	}

	client, err := api.NewClient(api.Config{BaseURL: fileCfg.ServerURL})
	if err != nil {
		return nil, fileCfg, exitError(exitInputParse, "invalid server URL: %v", err)
	}

	// A non-default workspace in the config is activated up front so every
	// workflow operation lands in it.
	if ws := fileCfg.Workspace; ws != "" && ws != session.DefaultFileConfig().Workspace {
		if err := client.SwitchWorkspace(cmd.Context(), ws); err != nil {
			return nil, fileCfg, exitError(exitRuntime, "activating workspace %s: %v", ws, err)
		}
	}
	return client, fileCfg, nil
}
