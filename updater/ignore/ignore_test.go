package ignore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/byte4ever/actions_updater/updater/ignore"
)

func TestMatches_pinned_ref(t *testing.T) {
	t.Parallel()

	l := ignore.New([]string{
		"octo/release-action@main",
	})

	assert.True(
		t, l.Matches("octo/release-action", "main"),
	)
	assert.False(
		t, l.Matches("octo/release-action", "v2"),
	)
}

func TestMatches_whole_repo(t *testing.T) {
	t.Parallel()

	l := ignore.New([]string{"octo/deploy-action"})

	assert.True(
		t, l.Matches("octo/deploy-action", "v1"),
	)
	assert.True(
		t, l.Matches("octo/deploy-action", "main"),
	)
	assert.False(
		t, l.Matches("octo/other-action", "v1"),
	)
}

func TestMatches_case_insensitive(t *testing.T) {
	t.Parallel()

	l := ignore.New([]string{"Octo/Release-Action@V2"})

	assert.True(
		t, l.Matches("octo/release-action", "v2"),
	)
}

func TestEmpty(t *testing.T) {
	t.Parallel()

	assert.True(t, ignore.New(nil).Empty())
	assert.True(
		t, ignore.New([]string{"  ", ""}).Empty(),
	)
	assert.False(
		t, ignore.New([]string{"a/b"}).Empty(),
	)
}
