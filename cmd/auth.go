package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/relayhq/relay/internal/credential"
	"github.com/relayhq/relay/internal/oauth"
	"github.com/relayhq/relay/internal/source"
)

// Common auth flags, shared across subcommands.
var (
	authWorkspace      string
	authCredentialsDir string
	authSourcesDir     string
	authQuiet          bool
)

// authCmd represents the auth command group.
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage source authentication",
	Long: `Manage authentication for the sources of a workspace.

The auth command group provides subcommands to login, logout and check the
authentication status of configured sources (MCP servers and REST APIs).

Examples:
  relay auth status -w acme            # Show auth status of all sources
  relay auth login -w acme linear      # Run the OAuth flow for a source
  relay auth logout -w acme linear     # Clear the stored credential`,
}

// authPrint prints output only if the --quiet flag is not set.
// Use this for progress messages and non-essential output.
func authPrint(format string, args ...interface{}) {
	if !authQuiet {
		fmt.Printf(format, args...)
	}
}

// authPrintln prints a line only if the --quiet flag is not set.
func authPrintln(a ...interface{}) {
	if !authQuiet {
		fmt.Println(a...)
	}
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)

	authCmd.PersistentFlags().StringVarP(&authWorkspace, "workspace", "w", "", "Workspace ID (env: RELAY_WORKSPACE)")
	authCmd.PersistentFlags().StringVar(&authCredentialsDir, "credentials-dir", "", "Credential store directory (default: ~/"+credential.DefaultStoreDir+")")
	authCmd.PersistentFlags().StringVar(&authSourcesDir, "sources-dir", "", "Workspace configuration directory")
	authCmd.PersistentFlags().BoolVarP(&authQuiet, "quiet", "q", false, "Suppress non-essential output")
}

// resolveWorkspace returns the workspace from the flag or the environment.
func resolveWorkspace() (string, error) {
	if authWorkspace != "" {
		return authWorkspace, nil
	}
	if ws := os.Getenv("RELAY_WORKSPACE"); ws != "" {
		return ws, nil
	}
	return "", fmt.Errorf("no workspace selected; use --workspace or set RELAY_WORKSPACE")
}

// buildManager assembles the credential manager with the production adapter
// set. OAuth clients for the named providers come from the environment so
// the binary itself ships without secrets.
func buildManager() (*credential.Manager, *source.Storage, error) {
	store, err := credential.NewFileStore(authCredentialsDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	var sources *source.Storage
	if authSourcesDir != "" {
		sources = source.NewStorageWithRoot(authSourcesDir)
	} else {
		sources, err = source.NewStorage()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open workspace storage: %w", err)
		}
	}

	adapters := credential.DefaultAdapters(
		oauth.AdapterConfig{
			ClientID:     os.Getenv("RELAY_GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("RELAY_GOOGLE_CLIENT_SECRET"),
		},
		oauth.AdapterConfig{
			ClientID:     os.Getenv("RELAY_SLACK_CLIENT_ID"),
			ClientSecret: os.Getenv("RELAY_SLACK_CLIENT_SECRET"),
		},
		oauth.AdapterConfig{
			ClientID: os.Getenv("RELAY_MICROSOFT_CLIENT_ID"),
		},
	)

	return credential.NewManager(store, sources, adapters), sources, nil
}

// loadSource resolves a source slug within the selected workspace.
func loadSource(sources *source.Storage, workspaceID, slug string) (*source.Source, error) {
	src, err := sources.Load(workspaceID, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to load source %q: %w", slug, err)
	}
	if src == nil {
		return nil, fmt.Errorf("source %q not found in workspace %q", slug, workspaceID)
	}
	return src, nil
}
