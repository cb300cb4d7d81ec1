package git

import "context"

// Pattern: Strategy -- swap git platform without
// changing PR creation logic.

// PullRequest describes the pull request a provider
// should create for a pushed update branch.
type PullRequest struct {
	// Head is the branch carrying the updates.
	Head string

	// Base is the branch the pull request targets.
	Base string

	// Title and Body are the pull request contents.
	// When Body is empty the title is used.
	Title string
	Body  string

	// Labels are applied after creation.
	Labels []string

	// UserReviewers and TeamReviewers are requested
	// as reviewers after creation.
	UserReviewers []string
	TeamReviewers []string
}

// Provider creates pull requests on a git hosting
// platform. It returns the web URL of the created (or
// reused) pull request.
type Provider interface {
	CreatePR(
		ctx context.Context,
		pr PullRequest,
	) (string, error)
}

// ProviderFunc adapts a plain function to the Provider
// interface. When the body is empty the title is used
// as body.
type ProviderFunc func(
	ctx context.Context,
	pr PullRequest,
) (string, error)

// CreatePR delegates to the wrapped function. If the
// body is empty, the title is substituted.
func (f ProviderFunc) CreatePR(
	ctx context.Context,
	pr PullRequest,
) (string, error) {
	if pr.Body == "" {
		pr.Body = pr.Title
	}

	return f(ctx, pr)
}
