// Package config loads the updater's settings from the
// GitHub Actions runner environment: user inputs arrive
// as INPUT_* variables, runner facts as GITHUB_*
// variables.
package config

import (
	"fmt"
	"strings"
)

// Resolution strategies for picking the new version of
// an action.
const (
	// StrategyReleaseTag pins to the tag name of the
	// latest published release.
	StrategyReleaseTag = "release-tag"

	// StrategyReleaseCommitSHA pins to the commit SHA
	// the latest release tag points at.
	StrategyReleaseCommitSHA = "release-commit-sha"

	// StrategyDefaultBranchSHA pins to the HEAD commit
	// SHA of the repository default branch.
	StrategyDefaultBranchSHA = "default-branch-sha"
)

// Release type names accepted by the release_types
// input.
const (
	ReleaseTypeMajor = "major"
	ReleaseTypeMinor = "minor"
	ReleaseTypePatch = "patch"
)

// Getenv is the environment lookup used by the loaders.
// It matches os.Getenv so tests can substitute a map.
type Getenv func(key string) string

// Configuration holds all user-supplied inputs of the
// action.
type Configuration struct {
	// GitHubToken authenticates API and push
	// operations.
	GitHubToken string

	// SkipPullRequest reports pending updates in the
	// job summary and fails the job instead of
	// committing them.
	SkipPullRequest bool

	// UpdateVersionWith is the resolution strategy,
	// one of the Strategy* constants.
	UpdateVersionWith string

	// ReleaseTypes restricts which version bumps are
	// applied. Contains major/minor/patch; the input
	// value "all" expands to all three.
	ReleaseTypes []string

	// IgnoreActions lists action references to skip.
	// Entries are either "owner/repo@ref" (skip that
	// pinned ref only) or "owner/repo" (skip all
	// refs).
	IgnoreActions []string

	// PullRequestTitle is the title of the created
	// pull request.
	PullRequestTitle string

	// PullRequestBranch is a fixed branch name for
	// the pull request. Empty means a timestamped
	// branch per run.
	PullRequestBranch string

	// PullRequestLabels are applied to the created
	// pull request.
	PullRequestLabels []string

	// PullRequestUserReviewers are requested as
	// reviewers on the created pull request.
	PullRequestUserReviewers []string

	// PullRequestTeamReviewers are requested as team
	// reviewers on the created pull request.
	PullRequestTeamReviewers []string

	// CommitMessage is the first line of the update
	// commit.
	CommitMessage string

	// CommitterName and CommitterEmail form the git
	// author of the update commit.
	CommitterName  string
	CommitterEmail string

	// ExtraWorkflowLocations are additional files or
	// glob patterns (relative to the workspace) to
	// scan besides the repository workflows.
	ExtraWorkflowLocations []string

	// ResolveParallelism bounds concurrent version
	// lookups against the GitHub API.
	ResolveParallelism int

	// ReportPath, when set, receives a JSON report of
	// the applied updates.
	ReportPath string

	// ReportLineTemplate overrides the per-update line
	// of the pull request body and job summary
	// (fasttemplate placeholders). Empty keeps the
	// built-in template.
	ReportLineTemplate string
}

// ActionEnvironment holds the runner-provided facts
// about the repository the action operates on.
type ActionEnvironment struct {
	// Repository is the "owner/name" slug.
	Repository string

	// BaseBranch is the branch the action ran on,
	// used as the pull request base.
	BaseBranch string

	// Workspace is the checkout directory.
	Workspace string

	// APIBaseURL is the GitHub API root, which
	// differs on GitHub Enterprise.
	APIBaseURL string

	// StepSummaryPath is the job summary sink file.
	StepSummaryPath string

	// OutputPath is the step outputs sink file.
	OutputPath string
}

// Load reads the action inputs from env and validates
// them.
func Load(env Getenv) (*Configuration, error) {
	const errCtx = "loading configuration"

	cfg := &Configuration{
		GitHubToken: env("INPUT_TOKEN"),
		SkipPullRequest: parseBool(
			env("INPUT_SKIP_PULL_REQUEST"),
		),
		UpdateVersionWith: defaultString(
			env("INPUT_UPDATE_VERSION_WITH"),
			StrategyReleaseTag,
		),
		PullRequestTitle: defaultString(
			env("INPUT_PULL_REQUEST_TITLE"),
			"Update GitHub Action Versions",
		),
		PullRequestBranch: env(
			"INPUT_PULL_REQUEST_BRANCH",
		),
		PullRequestLabels: splitList(
			env("INPUT_PULL_REQUEST_LABELS"),
		),
		PullRequestUserReviewers: splitList(
			env("INPUT_PULL_REQUEST_USER_REVIEWERS"),
		),
		PullRequestTeamReviewers: splitList(
			env("INPUT_PULL_REQUEST_TEAM_REVIEWERS"),
		),
		IgnoreActions: splitList(env("INPUT_IGNORE")),
		CommitMessage: defaultString(
			env("INPUT_COMMIT_MESSAGE"),
			"ci: update GitHub Action versions",
		),
		CommitterName: defaultString(
			env("INPUT_COMMITTER_NAME"),
			"github-actions[bot]",
		),
		CommitterEmail: defaultString(
			env("INPUT_COMMITTER_EMAIL"),
			"41898282+github-actions[bot]"+
				"@users.noreply.github.com",
		),
		ExtraWorkflowLocations: splitList(
			env("INPUT_EXTRA_WORKFLOW_LOCATIONS"),
		),
		ResolveParallelism: 4,
		ReportPath:         env("INPUT_REPORT_PATH"),
		ReportLineTemplate: env(
			"INPUT_REPORT_LINE_TEMPLATE",
		),
	}

	types, err := parseReleaseTypes(
		env("INPUT_RELEASE_TYPES"),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	cfg.ReleaseTypes = types

	if cfg.GitHubToken == "" {
		return nil, fmt.Errorf(
			"%s: token must be set", errCtx,
		)
	}

	switch cfg.UpdateVersionWith {
	case StrategyReleaseTag,
		StrategyReleaseCommitSHA,
		StrategyDefaultBranchSHA:
	default:
		return nil, fmt.Errorf(
			"%s: unknown update strategy %q",
			errCtx, cfg.UpdateVersionWith,
		)
	}

	return cfg, nil
}

// LoadEnvironment reads the runner environment from env
// and validates it.
func LoadEnvironment(
	env Getenv,
) (*ActionEnvironment, error) {
	const errCtx = "loading action environment"

	ae := &ActionEnvironment{
		Repository: env("GITHUB_REPOSITORY"),
		BaseBranch: env("GITHUB_REF_NAME"),
		Workspace: defaultString(
			env("GITHUB_WORKSPACE"), ".",
		),
		APIBaseURL: defaultString(
			env("GITHUB_API_URL"),
			"https://api.github.com",
		),
		StepSummaryPath: env("GITHUB_STEP_SUMMARY"),
		OutputPath:      env("GITHUB_OUTPUT"),
	}

	if ae.Repository == "" {
		return nil, fmt.Errorf(
			"%s: GITHUB_REPOSITORY must be set",
			errCtx,
		)
	}

	if !strings.Contains(ae.Repository, "/") {
		return nil, fmt.Errorf(
			"%s: repository %q is not owner/name",
			errCtx, ae.Repository,
		)
	}

	if ae.BaseBranch == "" {
		return nil, fmt.Errorf(
			"%s: GITHUB_REF_NAME must be set", errCtx,
		)
	}

	return ae, nil
}

// Owner returns the repository owner part of the slug.
func (ae *ActionEnvironment) Owner() string {
	owner, _, _ := strings.Cut(ae.Repository, "/")

	return owner
}

// Name returns the repository name part of the slug.
func (ae *ActionEnvironment) Name() string {
	_, name, _ := strings.Cut(ae.Repository, "/")

	return name
}

// parseReleaseTypes expands and validates the
// release_types input. Empty input and "all" both mean
// every release type.
func parseReleaseTypes(raw string) ([]string, error) {
	all := []string{
		ReleaseTypeMajor,
		ReleaseTypeMinor,
		ReleaseTypePatch,
	}

	items := splitList(raw)
	if len(items) == 0 {
		return all, nil
	}

	var types []string

	for _, item := range items {
		switch t := strings.ToLower(item); t {
		case "all":
			return all, nil
		case ReleaseTypeMajor,
			ReleaseTypeMinor,
			ReleaseTypePatch:
			types = append(types, t)
		default:
			return nil, fmt.Errorf(
				"unknown release type %q", item,
			)
		}
	}

	return types, nil
}

// splitList splits a comma or newline separated input
// into trimmed, non-empty items.
func splitList(raw string) []string {
	var items []string

	for _, part := range strings.FieldsFunc(
		raw,
		func(r rune) bool {
			return r == ',' || r == '\n'
		},
	) {
		part = strings.TrimSpace(part)
		if part != "" {
			items = append(items, part)
		}
	}

	return items
}

// parseBool interprets common truthy spellings of
// boolean action inputs. Anything else is false.
func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "on", "1":
		return true
	default:
		return false
	}
}

// defaultString returns val, or def when val is empty.
func defaultString(val, def string) string {
	if val == "" {
		return def
	}

	return val
}
