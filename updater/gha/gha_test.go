package gha_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/actions_updater/updater/gha"
)

func TestConsole_commands(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	c := gha.NewWithWriter(&buf)
	c.Notice("all good")
	c.Warning("heads up")
	c.Error("broken")
	c.Echo("plain")

	out := buf.String()

	assert.Contains(t, out, "::notice::all good\n")
	assert.Contains(t, out, "::warning::heads up\n")
	assert.Contains(t, out, "::error::broken\n")
	assert.Contains(t, out, "plain\n")
}

func TestConsole_escapes_data(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	c := gha.NewWithWriter(&buf)
	c.Warning("line one\nline two % done")

	assert.Contains(
		t, buf.String(),
		"::warning::line one%0Aline two %25 done\n",
	)
}

func TestConsole_group(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	c := gha.NewWithWriter(&buf)

	end := c.Group("Checking workflows")
	c.Echo("inside")
	end()

	assert.Equal(
		t,
		"::group::Checking workflows\n"+
			"inside\n"+
			"::endgroup::\n",
		buf.String(),
	)
}

func TestAppendSummary(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "summary")

	require.NoError(
		t, gha.AppendSummary(path, "### Updates"),
	)
	require.NoError(
		t, gha.AppendSummary(path, "* one"),
	)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(
		t, "### Updates\n* one\n", string(data),
	)
}

func TestAppendSummary_no_path(t *testing.T) {
	t.Parallel()

	assert.NoError(t, gha.AppendSummary("", "ignored"))
}

func TestSetOutput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "output")

	require.NoError(
		t, gha.SetOutput(path, "updated", "true"),
	)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "updated=true\n", string(data))
}

func TestSetOutput_rejects_multiline(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "output")

	err := gha.SetOutput(path, "body", "a\nb")

	assert.ErrorContains(t, err, "single-line")
}
