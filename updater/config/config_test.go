package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/actions_updater/updater/config"
)

func mapEnv(m map[string]string) config.Getenv {
	return func(key string) string {
		return m[key]
	}
}

func TestLoad_defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(mapEnv(map[string]string{
		"INPUT_TOKEN": "tok",
	}))

	require.NoError(t, err)
	assert.Equal(
		t, config.StrategyReleaseTag,
		cfg.UpdateVersionWith,
	)
	assert.False(t, cfg.SkipPullRequest)
	assert.ElementsMatch(
		t,
		[]string{"major", "minor", "patch"},
		cfg.ReleaseTypes,
	)
	assert.Equal(
		t,
		"ci: update GitHub Action versions",
		cfg.CommitMessage,
	)
	assert.Equal(
		t, "github-actions[bot]", cfg.CommitterName,
	)
	assert.Empty(t, cfg.PullRequestBranch)
}

func TestLoad_missing_token(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(
		mapEnv(map[string]string{}),
	)

	assert.Nil(t, cfg)
	assert.ErrorContains(t, err, "token must be set")
}

func TestLoad_unknown_strategy(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(mapEnv(map[string]string{
		"INPUT_TOKEN":               "tok",
		"INPUT_UPDATE_VERSION_WITH": "latest-sha",
	}))

	assert.Nil(t, cfg)
	assert.ErrorContains(
		t, err, "unknown update strategy",
	)
}

func TestLoad_release_types(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(mapEnv(map[string]string{
		"INPUT_TOKEN":         "tok",
		"INPUT_RELEASE_TYPES": "major, patch",
	}))

	require.NoError(t, err)
	assert.ElementsMatch(
		t, []string{"major", "patch"},
		cfg.ReleaseTypes,
	)
}

func TestLoad_release_types_all(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(mapEnv(map[string]string{
		"INPUT_TOKEN":         "tok",
		"INPUT_RELEASE_TYPES": "all",
	}))

	require.NoError(t, err)
	assert.Len(t, cfg.ReleaseTypes, 3)
}

func TestLoad_release_types_invalid(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(mapEnv(map[string]string{
		"INPUT_TOKEN":         "tok",
		"INPUT_RELEASE_TYPES": "gigantic",
	}))

	assert.Nil(t, cfg)
	assert.ErrorContains(
		t, err, "unknown release type",
	)
}

func TestLoad_lists_and_booleans(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(mapEnv(map[string]string{
		"INPUT_TOKEN":             "tok",
		"INPUT_SKIP_PULL_REQUEST": "True",
		"INPUT_PULL_REQUEST_LABELS": "dependencies," +
			" automated",
		"INPUT_IGNORE": "octo/release-action@main\n" +
			"octo/deploy-action",
	}))

	require.NoError(t, err)
	assert.True(t, cfg.SkipPullRequest)
	assert.Equal(
		t,
		[]string{"dependencies", "automated"},
		cfg.PullRequestLabels,
	)
	assert.Equal(
		t,
		[]string{
			"octo/release-action@main",
			"octo/deploy-action",
		},
		cfg.IgnoreActions,
	)
}

func TestLoad_report_line_template(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(mapEnv(map[string]string{
		"INPUT_TOKEN": "tok",
		"INPUT_REPORT_LINE_TEMPLATE": "- {{action}}" +
			" {{old_ref}} -> {{new_ref}}",
	}))

	require.NoError(t, err)
	assert.Equal(
		t,
		"- {{action}} {{old_ref}} -> {{new_ref}}",
		cfg.ReportLineTemplate,
	)
}

func TestLoadEnvironment_valid(t *testing.T) {
	t.Parallel()

	ae, err := config.LoadEnvironment(
		mapEnv(map[string]string{
			"GITHUB_REPOSITORY": "octo/repo",
			"GITHUB_REF_NAME":   "main",
			"GITHUB_WORKSPACE":  "/work",
		}),
	)

	require.NoError(t, err)
	assert.Equal(t, "octo", ae.Owner())
	assert.Equal(t, "repo", ae.Name())
	assert.Equal(t, "/work", ae.Workspace)
	assert.Equal(
		t, "https://api.github.com", ae.APIBaseURL,
	)
}

func TestLoadEnvironment_missing_repository(
	t *testing.T,
) {
	t.Parallel()

	ae, err := config.LoadEnvironment(
		mapEnv(map[string]string{
			"GITHUB_REF_NAME": "main",
		}),
	)

	assert.Nil(t, ae)
	assert.ErrorContains(t, err, "GITHUB_REPOSITORY")
}

func TestLoadEnvironment_bad_slug(t *testing.T) {
	t.Parallel()

	ae, err := config.LoadEnvironment(
		mapEnv(map[string]string{
			"GITHUB_REPOSITORY": "justname",
			"GITHUB_REF_NAME":   "main",
		}),
	)

	assert.Nil(t, ae)
	assert.ErrorContains(t, err, "not owner/name")
}

func TestLoadEnvironment_missing_branch(t *testing.T) {
	t.Parallel()

	ae, err := config.LoadEnvironment(
		mapEnv(map[string]string{
			"GITHUB_REPOSITORY": "octo/repo",
		}),
	)

	assert.Nil(t, ae)
	assert.ErrorContains(t, err, "GITHUB_REF_NAME")
}
