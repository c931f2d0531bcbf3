package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/relayhq/relay/internal/source"
)

// authStatusCmd represents the auth status command.
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status of the workspace's sources",
	Long: `Show the authentication status of every source in a workspace.

The output lists each source with its type, provider, connection status and
whether a usable credential is currently stored.

Examples:
  relay auth status -w acme
  relay auth status -w acme --quiet`,
	RunE: runAuthStatus,
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	workspace, err := resolveWorkspace()
	if err != nil {
		return err
	}

	manager, sources, err := buildManager()
	if err != nil {
		return err
	}

	all, err := sources.List(workspace)
	if err != nil {
		return fmt.Errorf("failed to list sources: %w", err)
	}
	if len(all) == 0 {
		authPrintln("No sources configured in workspace", workspace)
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"SOURCE", "TYPE", "PROVIDER", "STATUS", "CREDENTIAL"})

	ctx := cmd.Context()
	for _, src := range all {
		t.AppendRow(table.Row{
			src.Slug,
			src.Type,
			orDash(src.Provider),
			renderStatus(src),
			renderCredential(manager.HasValidCredentials(ctx, src), src),
		})
	}
	t.SetStyle(table.StyleLight)
	t.Render()

	if needing := manager.SourcesNeedingAuth(all); len(needing) > 0 {
		authPrintln()
		for _, src := range needing {
			authPrint("Run: relay auth login -w %s %s\n", workspace, src.Slug)
		}
	}

	return nil
}

func renderStatus(src *source.Source) string {
	if !src.Enabled {
		return text.FgHiBlack.Sprint("disabled")
	}
	switch src.ConnectionStatus {
	case source.StatusConnected:
		return text.FgGreen.Sprint(src.ConnectionStatus)
	case source.StatusNeedsAuth:
		return text.FgYellow.Sprint(src.ConnectionStatus)
	case source.StatusError:
		return text.FgRed.Sprint(src.ConnectionStatus)
	case "":
		return text.FgHiBlack.Sprint("unknown")
	default:
		return src.ConnectionStatus
	}
}

func renderCredential(valid bool, src *source.Source) string {
	if valid {
		return text.FgGreen.Sprint("valid")
	}
	if source.NeedsAuthentication(src) {
		return text.FgYellow.Sprint("missing")
	}
	return text.FgHiBlack.Sprint("n/a")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
