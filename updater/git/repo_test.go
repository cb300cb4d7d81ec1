package git_test

import (
	"context"
	"os"
	oe "os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/actions_updater/updater/git"
)

func TestOpen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	initGitRepo(t, dir)

	rp, err := git.Open(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, dir, rp.Dir)
	assert.Equal(t, "origin", rp.RemoteName)
}

func TestOpen_not_a_repo(t *testing.T) {
	t.Parallel()

	rp, err := git.Open(
		context.Background(), t.TempDir(),
	)

	assert.Nil(t, rp)
	assert.ErrorContains(t, err, "not a git checkout")
}

func TestOpen_missing_dir(t *testing.T) {
	t.Parallel()

	rp, err := git.Open(
		context.Background(),
		filepath.Join(t.TempDir(), "nope"),
	)

	assert.Nil(t, rp)
	assert.Error(t, err)
}

func TestRepo_IsClean(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	dir := t.TempDir()
	initGitRepo(t, dir)

	rp, err := git.Open(ctx, dir)
	require.NoError(t, err)

	assert.True(t, rp.IsClean(ctx))
	assert.False(t, rp.HasChanges(ctx))
}

func TestRepo_HasChanges_dirty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	dir := t.TempDir()
	initGitRepo(t, dir)

	fp := filepath.Join(dir, "workflow.yml")
	require.NoError(t, os.WriteFile(
		fp, []byte("jobs: {}\n"), 0o600,
	))

	rp, err := git.Open(ctx, dir)
	require.NoError(t, err)

	assert.True(t, rp.HasChanges(ctx))
}

func TestRepo_Commit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	dir := t.TempDir()
	initGitRepo(t, dir)

	rp, err := git.Open(ctx, dir)
	require.NoError(t, err)

	// Clean tree: nothing to commit.
	assert.False(t, rp.Commit(ctx, "empty"))

	fp := filepath.Join(dir, "workflow.yml")
	require.NoError(t, os.WriteFile(
		fp, []byte("jobs: {}\n"), 0o600,
	))

	assert.True(
		t, rp.Commit(ctx, "ci: update versions"),
	)
	assert.True(t, rp.IsClean(ctx))
	assert.Contains(
		t,
		rp.GetLastCommitMessage(ctx),
		"ci: update versions",
	)
}

func TestRepo_SwitchToBranch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	dir := t.TempDir()
	initGitRepo(t, dir)

	rp, err := git.Open(ctx, dir)
	require.NoError(t, err)

	isNew := rp.SwitchToBranch(
		ctx, "actions-update", "main",
	)
	assert.True(t, isNew)

	// Second switch finds the existing branch.
	rp.SwitchToBranch(ctx, "main", "main")
	isNew = rp.SwitchToBranch(
		ctx, "actions-update", "main",
	)
	assert.False(t, isNew)
}

func TestRepo_RecreateBranch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	dir := t.TempDir()
	initGitRepo(t, dir)

	rp, err := git.Open(ctx, dir)
	require.NoError(t, err)

	rp.SwitchToBranch(ctx, "actions-update", "main")

	fp := filepath.Join(dir, "stale.yml")
	require.NoError(t, os.WriteFile(
		fp, []byte("old: true\n"), 0o600,
	))
	require.True(t, rp.Commit(ctx, "stale update"))

	rp.RecreateBranch(ctx, "actions-update", "main")

	_, statErr := os.Stat(fp)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRepo_Diff(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	dir := t.TempDir()
	initGitRepo(t, dir)

	fp := filepath.Join(dir, "tracked.yml")
	require.NoError(t, os.WriteFile(
		fp, []byte("ref: v3\n"), 0o600,
	))

	gitCmd(t, dir, "add", "tracked.yml")
	gitCmd(t, dir, "commit", "-m", "add tracked")

	require.NoError(t, os.WriteFile(
		fp, []byte("ref: v4\n"), 0o600,
	))

	rp, err := git.Open(ctx, dir)
	require.NoError(t, err)

	diff := rp.Diff(ctx)

	assert.Contains(t, diff, "-ref: v3")
	assert.Contains(t, diff, "+ref: v4")
}

// initGitRepo creates a git repository with one
// initial commit. Git hooks are disabled to avoid
// interference from pre-commit hooks.
func initGitRepo(tb testing.TB, dir string) {
	tb.Helper()

	cmds := [][]string{
		{"init", "-b", "main"},
		{
			"config",
			"user.email", "test@test.com",
		},
		{"config", "user.name", "Test"},
		// Disable hooks so pre-commit scanners do
		// not interfere with tests.
		{
			"config", "core.hooksPath",
			"/dev/null",
		},
		{
			"commit", "--allow-empty",
			"-m", "initial",
		},
	}

	for _, args := range cmds {
		gitCmd(tb, dir, args...)
	}
}

// gitCmd runs a git command in dir and fails the test
// on error.
func gitCmd(
	tb testing.TB,
	dir string,
	args ...string,
) {
	tb.Helper()

	cmd := oe.Command("git", args...)
	cmd.Dir = dir

	out, err := cmd.CombinedOutput()
	require.NoError(tb, err, string(out))
}
