package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	gh "github.com/google/go-github/v68/github"
)

// Discover lists the repository's workflows through the
// GitHub API and maps them to files under the workspace
// checkout. Extra locations (files or glob patterns
// relative to the workspace) are appended. Paths that
// do not exist locally are dropped with a warning.
func Discover(
	ctx context.Context,
	client *gh.Client,
	owner string,
	repo string,
	workspace string,
	extra []string,
) ([]string, error) {
	const errCtx = "discovering workflows"

	var paths []string

	opts := &gh.ListOptions{PerPage: 100}

	for {
		workflows, resp, err :=
			client.Actions.ListWorkflows(
				ctx, owner, repo, opts,
			)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: list workflows for %s/%s: %w",
				errCtx, owner, repo, err,
			)
		}

		for _, wf := range workflows.Workflows {
			if wf.GetPath() == "" {
				continue
			}

			paths = append(paths, filepath.Join(
				workspace, wf.GetPath(),
			))
		}

		if resp.NextPage == 0 {
			break
		}

		opts.Page = resp.NextPage
	}

	extraPaths, err := expandExtra(workspace, extra)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	paths = append(paths, extraPaths...)

	return dedupeExisting(paths), nil
}

// expandExtra resolves extra workflow locations, glob
// patterns included, against the workspace.
func expandExtra(
	workspace string,
	extra []string,
) ([]string, error) {
	var paths []string

	for _, loc := range extra {
		pattern := filepath.Join(workspace, loc)

		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf(
				"bad location pattern %q: %w",
				loc, err,
			)
		}

		if len(matches) == 0 {
			slog.Warn(
				"extra workflow location matched "+
					"nothing",
				"location", loc,
			)
		}

		paths = append(paths, matches...)
	}

	return paths, nil
}

// dedupeExisting drops duplicates and paths missing
// from the local checkout, and returns a sorted list.
func dedupeExisting(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))

	var out []string

	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}

		seen[p] = struct{}{}

		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			slog.Warn(
				"workflow file not in checkout",
				"path", p,
			)

			continue
		}

		out = append(out, p)
	}

	sort.Strings(out)

	return out
}
