package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/relayhq/relay/internal/oauth"
	"github.com/relayhq/relay/internal/source"
)

// authLoginCmd represents the auth login command.
var authLoginCmd = &cobra.Command{
	Use:   "login <source>",
	Short: "Authenticate a source via its OAuth flow",
	Long: `Run the interactive OAuth flow for a source and store the
resulting credential.

A browser window opens for the provider's consent screen; the flow completes
on a local callback. Sources that do not use OAuth (bearer, basic, api-key)
are configured with their credential directly and cannot be logged in to.

Examples:
  relay auth login -w acme linear
  relay auth login -w acme gmail`,
	Args: cobra.ExactArgs(1),
	RunE: runAuthLogin,
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
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

	if !source.NeedsAuthentication(src) && src.IsAuthenticated {
		authPrint("Source %s is already authenticated. Continuing will replace the stored credential.\n", src.Slug)
	}

	authPrint("Opening browser to authenticate %s...\n", src.Slug)

	result := manager.Authenticate(cmd.Context(), src, oauth.Callbacks{
		OpenURL: func(url string) error {
			authPrint("If the browser does not open, visit:\n  %s\n", url)
			return oauth.OpenBrowser(url)
		},
	})
	if !result.Success {
		return &AuthFailedError{Source: src.Slug, Reason: result.Error}
	}

	if result.IdentityHint != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s Authenticated %s as %s\n", text.FgGreen.Sprint("✓"), src.Slug, result.IdentityHint)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s Authenticated %s\n", text.FgGreen.Sprint("✓"), src.Slug)
	}
	return nil
}
