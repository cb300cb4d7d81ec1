// Command update_actions keeps the GitHub Action
// versions of a repository up to date. It scans the
// workflow files of the checked-out repository,
// resolves the latest version of every referenced
// action, rewrites the pins, and opens a pull request
// with the changes on the configured git hosting
// platform.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	gh "github.com/google/go-github/v68/github"

	"github.com/byte4ever/actions_updater/updater/config"
	"github.com/byte4ever/actions_updater/updater/gha"
	"github.com/byte4ever/actions_updater/updater/git"
	"github.com/byte4ever/actions_updater/updater/git/bitbucket"
	"github.com/byte4ever/actions_updater/updater/git/github"
	"github.com/byte4ever/actions_updater/updater/git/gitlab"
	"github.com/byte4ever/actions_updater/updater/resolve"
	"github.com/byte4ever/actions_updater/updater/runner"
)

func main() {
	if err := run(); err != nil {
		if !errors.Is(err, runner.ErrUpdatesPending) {
			slog.Error("fatal", "error", err)
		}

		os.Exit(1)
	}
}

//nolint:funlen // CLI flag setup is inherently long
func run() error {
	const errCtx = "running update_actions"

	debug := flag.Bool(
		"debug", false,
		"Enable debug logging",
	)

	// Resolution cache flags.
	cachePath := flag.String(
		"cache_path", "",
		"File persisting version resolutions "+
			"across runs (empty disables caching)",
	)
	cacheTTL := flag.Duration(
		"cache_ttl", 24*time.Hour,
		"Lifetime of cached version resolutions",
	)

	// Git provider selection.
	gitServer := flag.String(
		"git_server", "github",
		"Git hosting platform: github, gitlab, "+
			"or bitbucket",
	)

	// GitLab-specific flags.
	glHost := flag.String(
		"gitlab_host", "",
		"GitLab instance URL",
	)
	glRepo := flag.String(
		"gitlab_repo", "",
		"GitLab project path (org/project)",
	)
	glToken := flag.String(
		"gitlab_access_token", "",
		"GitLab personal access token",
	)

	// Bitbucket-specific flags.
	bbEndpoint := flag.String(
		"bitbucket_api_endpoint", "",
		"Bitbucket Server REST API URL",
	)
	bbProjectKey := flag.String(
		"bitbucket_project_key", "",
		"Bitbucket project key",
	)
	bbRepoSlug := flag.String(
		"bitbucket_repo_slug", "",
		"Bitbucket repository slug",
	)
	bbUser := flag.String(
		"bitbucket_user", "",
		"Bitbucket API username",
	)
	bbPassword := flag.String(
		"bitbucket_password", "",
		"Bitbucket API password or token",
	)

	flag.Parse()

	if *debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	settings, err := config.Load(os.Getenv)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	env, err := config.LoadEnvironment(os.Getenv)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	// The runner checkout is owned by a different uid
	// than the container user.
	git.MarkSafe(ctx, env.Workspace)

	client, err := newAPIClient(
		settings.GitHubToken, env.APIBaseURL,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	provider, err := newGitProvider(
		*gitServer,
		providerFlags{
			client:       client,
			env:          env,
			token:        settings.GitHubToken,
			glHost:       *glHost,
			glRepo:       *glRepo,
			glToken:      *glToken,
			bbEndpoint:   *bbEndpoint,
			bbProjectKey: *bbProjectKey,
			bbRepoSlug:   *bbRepoSlug,
			bbUser:       *bbUser,
			bbPassword:   *bbPassword,
		},
	)
	if err != nil {
		return fmt.Errorf(
			"%s: create provider: %w", errCtx, err,
		)
	}

	var cache *resolve.Cache

	if *cachePath != "" {
		cache, err = resolve.OpenCache(
			*cachePath, *cacheTTL,
		)
		if err != nil {
			return fmt.Errorf(
				"%s: open cache: %w", errCtx, err,
			)
		}

		defer func() {
			if flushErr := cache.Flush(); flushErr != nil {
				slog.Warn(
					"failed to flush cache",
					"error", flushErr,
				)
			}
		}()
	}

	if err := runner.Run(ctx, runner.Config{
		Settings: settings,
		Env:      env,
		Client:   client,
		Provider: provider,
		Console:  gha.New(),
		Cache:    cache,
	}); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// newAPIClient builds the GitHub API client, honoring
// the runner-provided API root so the action works on
// GitHub Enterprise.
func newAPIClient(
	token string,
	apiBaseURL string,
) (*gh.Client, error) {
	const errCtx = "creating api client"

	client := gh.NewClient(nil).WithAuthToken(token)

	if apiBaseURL != "" &&
		apiBaseURL != "https://api.github.com" {
		base, err := url.Parse(
			strings.TrimSuffix(apiBaseURL, "/") + "/",
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		client.BaseURL = base
	}

	return client, nil
}

// providerFlags bundles provider-specific values to
// keep newGitProvider under the 4-argument limit.
type providerFlags struct {
	client       *gh.Client
	env          *config.ActionEnvironment
	token        string
	glHost       string
	glRepo       string
	glToken      string
	bbEndpoint   string
	bbProjectKey string
	bbRepoSlug   string
	bbUser       string
	bbPassword   string
}

// newGitProvider creates a git.Provider based on the
// server name. Pattern: Factory -- selects platform
// implementation at runtime.
func newGitProvider(
	server string,
	pf providerFlags,
) (git.Provider, error) {
	const errCtx = "creating git provider"

	switch server {
	case "github":
		p, err := github.NewProvider(github.Config{
			RepoOwner:   pf.env.Owner(),
			Repo:        pf.env.Name(),
			AccessToken: pf.token,
			Client:      pf.client,
		})
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return p, nil

	case "gitlab":
		p, err := gitlab.NewProvider(gitlab.Config{
			Host:        pf.glHost,
			Repo:        pf.glRepo,
			AccessToken: pf.glToken,
		})
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return p, nil

	case "bitbucket":
		p, err := bitbucket.NewProvider(
			bitbucket.Config{
				APIEndpoint: pf.bbEndpoint,
				ProjectKey:  pf.bbProjectKey,
				RepoSlug:    pf.bbRepoSlug,
				User:        pf.bbUser,
				Password:    pf.bbPassword,
			},
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return p, nil

	default:
		return nil, fmt.Errorf(
			"%s: unknown server %q", errCtx, server,
		)
	}
}
