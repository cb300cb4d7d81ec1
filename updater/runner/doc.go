// Package runner orchestrates a GitHub Actions version update run. It
// discovers the repository's workflow files, extracts every pinned action
// reference, resolves the latest versions through the GitHub API using a
// bounded worker pool, rewrites the workflow files in place, and commits,
// pushes, and opens a pull request via a git.Provider.
//
// The main entry point is Run, which accepts a Config struct with all
// collaborators and settings for the run.
package runner
