package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	gh "github.com/google/go-github/v68/github"

	"github.com/byte4ever/actions_updater/updater/git"
)

// Config holds the settings needed to create a GitHub
// pull request provider.
type Config struct {
	// RepoOwner is the GitHub user or organisation
	// that owns the repository.
	RepoOwner string
	// Repo is the repository name (without owner).
	Repo string
	// AccessToken is a personal access token or
	// GitHub App token used for authentication.
	AccessToken string
	// EnterpriseHost is an optional GitHub Enterprise
	// hostname (e.g. "git.corp.example.com"). Leave
	// empty for github.com.
	EnterpriseHost string
	// Client overrides the API client, used by tests
	// to point at a fake server. Leave nil otherwise.
	Client *gh.Client
}

// Provider creates pull requests on GitHub.
//
// Pattern: Strategy -- implements git.Provider.
type Provider struct {
	client    *gh.Client
	repoOwner string
	repo      string
}

// NewProvider validates cfg and returns a Provider
// ready to create pull requests.
func NewProvider(cfg Config) (*Provider, error) {
	const errCtx = "creating github provider"

	if cfg.RepoOwner == "" {
		return nil, fmt.Errorf(
			"%s: repo owner must be set", errCtx,
		)
	}

	if cfg.Repo == "" {
		return nil, fmt.Errorf(
			"%s: repo must be set", errCtx,
		)
	}

	if cfg.AccessToken == "" && cfg.Client == nil {
		return nil, fmt.Errorf(
			"%s: access token must be set", errCtx,
		)
	}

	client := cfg.Client

	if client == nil {
		client = gh.NewClient(nil).
			WithAuthToken(cfg.AccessToken)

		if cfg.EnterpriseHost != "" {
			baseURL := "https://" +
				cfg.EnterpriseHost + "/api/v3/"
			uploadURL := "https://" +
				cfg.EnterpriseHost + "/api/uploads/"

			var err error

			client, err = client.WithEnterpriseURLs(
				baseURL, uploadURL,
			)
			if err != nil {
				return nil, fmt.Errorf(
					"%s: enterprise urls: %w",
					errCtx, err,
				)
			}
		}
	}

	return &Provider{
		client:    client,
		repoOwner: cfg.RepoOwner,
		repo:      cfg.Repo,
	}, nil
}

// CreatePR creates a pull request for pr. If one
// already exists for the same head (HTTP 422) it is
// found and its title and body are refreshed instead.
// Labels and reviewers are applied afterwards; their
// failures are logged, not fatal.
func (p *Provider) CreatePR(
	ctx context.Context,
	pr git.PullRequest,
) (string, error) {
	const errCtx = "creating github pull request"

	newPR := &gh.NewPullRequest{
		Title: &pr.Title,
		Head:  &pr.Head,
		Base:  &pr.Base,
		Body:  &pr.Body,
	}

	created, resp, err := p.client.PullRequests.Create(
		ctx, p.repoOwner, p.repo, newPR,
	)

	switch {
	case err == nil:
		slog.Info(
			"created pull request",
			"url", created.GetHTMLURL(),
		)

	case resp != nil &&
		resp.StatusCode ==
			http.StatusUnprocessableEntity:
		// HTTP 422: PR already exists for this
		// head/base pair. Refresh it instead.
		created, err = p.refreshExisting(ctx, pr)
		if err != nil {
			return "", fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

	default:
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	p.decorate(ctx, created, pr)

	return created.GetHTMLURL(), nil
}

// refreshExisting finds the open pull request for the
// head branch and updates its title and body.
func (p *Provider) refreshExisting(
	ctx context.Context,
	pr git.PullRequest,
) (*gh.PullRequest, error) {
	const errCtx = "refreshing existing pull request"

	existing, _, err := p.client.PullRequests.List(
		ctx, p.repoOwner, p.repo,
		&gh.PullRequestListOptions{
			State: "open",
			Head:  p.repoOwner + ":" + pr.Head,
			Base:  pr.Base,
		},
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: list: %w", errCtx, err,
		)
	}

	if len(existing) == 0 {
		return nil, fmt.Errorf(
			"%s: no open pull request for head %q",
			errCtx, pr.Head,
		)
	}

	found := existing[0]
	found.Title = &pr.Title
	found.Body = &pr.Body

	updated, _, err := p.client.PullRequests.Edit(
		ctx, p.repoOwner, p.repo,
		found.GetNumber(), found,
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: edit: %w", errCtx, err,
		)
	}

	slog.Info(
		"reusing existing pull request",
		"url", updated.GetHTMLURL(),
	)

	return updated, nil
}

// decorate applies labels and requests reviewers on
// the pull request. Failures here should not undo an
// otherwise successful update run, so they only warn.
func (p *Provider) decorate(
	ctx context.Context,
	created *gh.PullRequest,
	pr git.PullRequest,
) {
	number := created.GetNumber()

	if len(pr.Labels) > 0 {
		_, _, err := p.client.Issues.AddLabelsToIssue(
			ctx, p.repoOwner, p.repo,
			number, pr.Labels,
		)
		if err != nil {
			slog.Warn(
				"failed to add labels",
				"pr", number,
				"error", err,
			)
		}
	}

	if len(pr.UserReviewers) == 0 &&
		len(pr.TeamReviewers) == 0 {
		return
	}

	_, _, err := p.client.PullRequests.RequestReviewers(
		ctx, p.repoOwner, p.repo, number,
		gh.ReviewersRequest{
			Reviewers:     pr.UserReviewers,
			TeamReviewers: pr.TeamReviewers,
		},
	)
	if err != nil {
		slog.Warn(
			"failed to request reviewers",
			"pr", number,
			"error", err,
		)
	}
}
