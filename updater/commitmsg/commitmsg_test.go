package commitmsg_test

import (
	"testing"

	"github.com/byte4ever/actions_updater/updater/commitmsg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_produces_markers(t *testing.T) {
	t.Parallel()

	msg := commitmsg.Generate(
		"ci: update GitHub Action versions",
		[]string{
			"actions/checkout@v4",
			"actions/setup-go@v5",
		},
	)

	assert.Contains(
		t, msg, "ci: update GitHub Action versions",
	)
	assert.Contains(
		t, msg, "--- updated actions begin ---",
	)
	assert.Contains(
		t, msg, "--- updated actions end ---",
	)
	assert.Contains(t, msg, "actions/checkout@v4")
	assert.Contains(t, msg, "actions/setup-go@v5")
}

func TestExtractActions_roundtrip(t *testing.T) {
	t.Parallel()

	actions := []string{
		"actions/checkout@v4",
		"actions/setup-go@v5",
	}

	msg := commitmsg.Generate("ci: update", actions)
	got := commitmsg.ExtractActions(msg)

	require.Equal(t, actions, got)
}

func TestExtractActions_no_markers(t *testing.T) {
	t.Parallel()

	got := commitmsg.ExtractActions(
		"just a regular commit message",
	)

	assert.Empty(t, got)
}

func TestExtractActions_missing_end_marker(
	t *testing.T,
) {
	t.Parallel()

	msg := "--- updated actions begin ---\n" +
		"actions/checkout@v4\n"
	got := commitmsg.ExtractActions(msg)

	assert.Empty(t, got)
}
