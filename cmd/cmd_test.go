package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "helpdesk v")
}

func TestUnknownCommand(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"frobnicate"})

	require.Error(t, root.Execute())
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	// Relies on env; not parallel.
	t.Setenv("HELPDESK_UPSTREAM_ENDPOINT", "")
	t.Setenv("HELPDESK_UPSTREAM_API_KEY", "")
	t.Chdir(t.TempDir())

	root := newRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"serve"})

	require.Error(t, root.Execute())
}
