package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// authLogoutCmd represents the auth logout command.
var authLogoutCmd = &cobra.Command{
	Use:   "logout <source>",
	Short: "Clear a source's stored credential",
	Long: `Delete the stored credential of a source and mark it as needing
re-authentication.

Examples:
  relay auth logout -w acme linear`,
	Args: cobra.ExactArgs(1),
	RunE: runAuthLogout,
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	workspace, err := resolveWorkspace()
	if err != nil {
		return err
	}

	manager, sources, err := buildManager()
	if err != nil {
		return err
	}

	src, err := loadSource(sources, workspace, args[0])
	if err != nil {
		return err
	}

	deleted, err := manager.Delete(cmd.Context(), src)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	if !deleted {
		authPrintln("No stored credential for", src.Slug)
		return nil
	}

	manager.MarkNeedsReauth(src, "logged out")
	authPrint("Cleared stored credential for %s.\n", src.Slug)
	return nil
}
