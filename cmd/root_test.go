package cmd

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCodeError, getExitCode(errors.New("boom")))
	assert.Equal(t, ExitCodeAuthRequired, getExitCode(&AuthRequiredError{Source: "linear"}))
	assert.Equal(t, ExitCodeAuthFailed, getExitCode(&AuthFailedError{Source: "linear", Reason: "access_denied"}))
}

func TestVersionCommand(t *testing.T) {
	prev := rootCmd.Version
	t.Cleanup(func() { rootCmd.Version = prev })
	SetVersion("1.2.3")

	var out bytes.Buffer
	cmd := newVersionCmd()
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "relay version 1.2.3\n", out.String())
	assert.Equal(t, "1.2.3", GetVersion())
}
