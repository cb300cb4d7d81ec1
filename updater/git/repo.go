package git

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	oe "os/exec"
	"strings"

	"github.com/byte4ever/actions_updater/updater/exec"
)

// Repo is an existing local checkout of a git
// repository, normally the action runner workspace.
type Repo struct {
	// Dir is the filesystem location of the checkout.
	Dir string
	// RemoteName is the name of the upstream remote.
	RemoteName string
}

// Open wraps an existing checkout directory. It fails
// when dir is not inside a git work tree.
func Open(
	ctx context.Context,
	dir string,
) (*Repo, error) {
	const errCtx = "opening repository"

	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	if _, err := exec.Ex(
		ctx, dir, "git",
		"rev-parse", "--is-inside-work-tree",
	); err != nil {
		return nil, fmt.Errorf(
			"%s: %s is not a git checkout: %w",
			errCtx, dir, err,
		)
	}

	return &Repo{
		Dir:        dir,
		RemoteName: "origin",
	}, nil
}

// ConfigureAuthor sets the local commit author
// identity.
func (r *Repo) ConfigureAuthor(
	ctx context.Context,
	name string,
	email string,
) {
	exec.MustEx(
		ctx, r.Dir, "git",
		"config", "user.name", name,
	)
	exec.MustEx(
		ctx, r.Dir, "git",
		"config", "user.email", email,
	)
}

// MarkSafe registers dir as a safe directory in the
// global git config. The action container runs as a
// different uid than the checkout owner, and git
// refuses to operate on the checkout without this.
// Must run before Open, which already needs git access
// to dir.
func MarkSafe(ctx context.Context, dir string) {
	exec.MustEx(
		ctx, dir, "git",
		"config", "--global", "--add",
		"safe.directory", dir,
	)
}

// SwitchToBranch switches to branch, creating it from
// baseBranch if it does not exist locally or on the
// remote. Returns true when the branch was newly
// created.
func (r *Repo) SwitchToBranch(
	ctx context.Context,
	branch string,
	baseBranch string,
) bool {
	if _, err := exec.Ex(
		ctx, r.Dir, "git", "checkout", branch,
	); err != nil {
		// Branch does not exist yet: create and
		// check out.
		exec.MustEx(
			ctx, r.Dir, "git",
			"branch", branch, baseBranch,
		)
		exec.MustEx(
			ctx, r.Dir, "git", "checkout", branch,
		)

		return true
	}

	return false
}

// RecreateBranch discards the content of branch and
// resets it from baseBranch.
func (r *Repo) RecreateBranch(
	ctx context.Context,
	branch string,
	baseBranch string,
) {
	exec.MustEx(
		ctx, r.Dir, "git", "checkout", baseBranch,
	)
	exec.MustEx(
		ctx, r.Dir, "git",
		"branch", "-f", branch, baseBranch,
	)
	exec.MustEx(
		ctx, r.Dir, "git", "checkout", branch,
	)
}

// GetLastCommitMessage returns the most recent commit
// message on the current branch. Returns empty string
// on error.
func (r *Repo) GetLastCommitMessage(
	ctx context.Context,
) string {
	msg, err := exec.Ex(
		ctx, r.Dir, "git",
		"log", "-1", "--pretty=%B",
	)
	if err != nil {
		return ""
	}

	return msg
}

// Commit stages all changes and commits them. Returns
// true when changes were committed, false when the tree
// was clean.
func (r *Repo) Commit(
	ctx context.Context,
	message string,
) bool {
	exec.MustEx(ctx, r.Dir, "git", "add", "-A")

	if r.IsClean(ctx) {
		return false
	}

	exec.MustEx(
		ctx, r.Dir, "git",
		"commit", "-m", message,
	)

	return true
}

// HasChanges reports whether the working tree differs
// from HEAD.
func (r *Repo) HasChanges(ctx context.Context) bool {
	return !r.IsClean(ctx)
}

// IsClean reports whether the working tree has no
// uncommitted changes.
func (r *Repo) IsClean(ctx context.Context) bool {
	//nolint:gosec // args are constants
	cmd := oe.CommandContext(
		ctx, "git", "status", "--porcelain",
	)
	cmd.Dir = r.Dir

	by, err := cmd.CombinedOutput()
	if err != nil {
		slog.Error(
			"failed to check repo status",
			"error", err,
		)

		return false
	}

	return len(by) == 0
}

// Diff returns the unified diff of uncommitted changes.
func (r *Repo) Diff(ctx context.Context) string {
	out, err := exec.Ex(ctx, r.Dir, "git", "diff")
	if err != nil {
		slog.Error(
			"failed to get diff", "error", err,
		)

		return ""
	}

	return out
}

// Push force-pushes the given branch to the remote. All
// changes should be committed before calling Push.
func (r *Repo) Push(
	ctx context.Context,
	branch string,
) error {
	const errCtx = "pushing branch"

	if _, err := exec.Ex(
		ctx, r.Dir, "git",
		"push", r.RemoteName,
		"-f", "--set-upstream", branch,
	); err != nil {
		return fmt.Errorf(
			"%s: %s: %w",
			errCtx, strings.TrimSpace(branch), err,
		)
	}

	return nil
}
