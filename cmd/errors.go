package cmd

import "fmt"

// AuthRequiredError indicates a command needs an authenticated source but
// none of its credentials are usable. Mapped to ExitCodeAuthRequired.
type AuthRequiredError struct {
	Source string
}

func (e *AuthRequiredError) Error() string {
	return fmt.Sprintf("source %q requires authentication; run: relay auth login %s", e.Source, e.Source)
}

// AuthFailedError indicates an OAuth flow was attempted and failed. Mapped
// to ExitCodeAuthFailed.
type AuthFailedError struct {
	Source string
	Reason string
}

func (e *AuthFailedError) Error() string {
	return fmt.Sprintf("authentication for source %q failed: %s", e.Source, e.Reason)
}
