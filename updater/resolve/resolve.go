// Package resolve picks the new version for an action
// repository through the GitHub API. Three strategies
// are supported: the latest release tag, the commit SHA
// behind that tag, and the HEAD SHA of the default
// branch.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	gh "github.com/google/go-github/v68/github"

	"github.com/byte4ever/actions_updater/updater/config"
)

// Resolution is the outcome of resolving one action
// repository.
type Resolution struct {
	// Ref is the value to pin after the "@".
	Ref string

	// Comment is the pin comment for SHA refs (the
	// tag or branch the SHA stands for), empty when
	// the ref is already human-readable.
	Comment string

	// TagName is the release tag backing the
	// resolution, when one exists.
	TagName string

	// HTMLURL links to the release page.
	HTMLURL string

	// PublishedAt is the release publish timestamp in
	// RFC 3339 form.
	PublishedAt string
}

// Resolver resolves action repositories under a fixed
// strategy, memoizing one lookup per repository.
type Resolver struct {
	client   *gh.Client
	strategy string

	mu   sync.Mutex
	memo map[string]*memoEntry

	// cache, when set, persists resolutions across
	// runs.
	cache *Cache
}

// memoEntry caches the outcome of one repository
// lookup, including negative and failed ones.
type memoEntry struct {
	res *Resolution
	err error
}

// New returns a Resolver using the given client and
// strategy (one of the config.Strategy* constants).
func New(
	client *gh.Client,
	strategy string,
) (*Resolver, error) {
	const errCtx = "creating resolver"

	switch strategy {
	case config.StrategyReleaseTag,
		config.StrategyReleaseCommitSHA,
		config.StrategyDefaultBranchSHA:
	default:
		return nil, fmt.Errorf(
			"%s: unknown strategy %q",
			errCtx, strategy,
		)
	}

	return &Resolver{
		client:   client,
		strategy: strategy,
		memo:     make(map[string]*memoEntry),
	}, nil
}

// UseCache attaches a persistent cache consulted
// before the API and updated after successful lookups.
func (r *Resolver) UseCache(cache *Cache) {
	r.cache = cache
}

// Resolve returns the resolution for an "owner/repo"
// slug. A repository without any release (or without
// access) yields (nil, nil) so the caller can leave the
// reference untouched.
func (r *Resolver) Resolve(
	ctx context.Context,
	repoSlug string,
) (*Resolution, error) {
	const errCtx = "resolving action version"

	r.mu.Lock()

	if entry, ok := r.memo[repoSlug]; ok {
		r.mu.Unlock()

		return entry.res, entry.err
	}

	r.mu.Unlock()

	cacheKey := r.strategy + "|" + repoSlug

	if r.cache != nil {
		if res, ok := r.cache.Get(cacheKey); ok {
			r.mu.Lock()
			r.memo[repoSlug] = &memoEntry{res: res}
			r.mu.Unlock()

			return res, nil
		}
	}

	res, err := r.lookup(ctx, repoSlug)
	if err != nil {
		err = fmt.Errorf(
			"%s: %s: %w", errCtx, repoSlug, err,
		)
	}

	if err == nil && res != nil && r.cache != nil {
		r.cache.Put(cacheKey, *res)
	}

	r.mu.Lock()
	r.memo[repoSlug] = &memoEntry{res: res, err: err}
	r.mu.Unlock()

	return res, err
}

// ResolveAll resolves the given repository slugs with
// bounded parallelism and returns the successful
// resolutions keyed by slug. Lookup failures abort with
// the first error; not-found repositories are simply
// absent from the result.
func (r *Resolver) ResolveAll(
	ctx context.Context,
	repoSlugs []string,
	parallelism int,
) (map[string]*Resolution, error) {
	const errCtx = "resolving action versions"

	if parallelism <= 0 {
		parallelism = 1
	}

	slugs := dedupe(repoSlugs)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	results := make(map[string]*Resolution)
	sem := make(chan struct{}, parallelism)

	for _, slug := range slugs {
		if ctx.Err() != nil {
			mu.Lock()
			errs = append(errs, ctx.Err())
			mu.Unlock()

			break
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(slug string) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := r.Resolve(ctx, slug)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				errs = append(errs, err)

				return
			}

			if res != nil {
				results[slug] = res
			}
		}(slug)
	}

	wg.Wait()

	if len(errs) > 0 {
		return nil, fmt.Errorf(
			"%s: %d errors, first: %w",
			errCtx, len(errs), errs[0],
		)
	}

	return results, nil
}

// lookup performs the strategy-specific API round trips
// for one repository.
func (r *Resolver) lookup(
	ctx context.Context,
	repoSlug string,
) (*Resolution, error) {
	owner, name, found := strings.Cut(repoSlug, "/")
	if !found {
		return nil, fmt.Errorf(
			"slug %q is not owner/repo", repoSlug,
		)
	}

	switch r.strategy {
	case config.StrategyDefaultBranchSHA:
		return r.defaultBranchSHA(ctx, owner, name)
	default:
		return r.latestRelease(ctx, owner, name)
	}
}

// latestRelease resolves through the latest published
// release, optionally dereferencing the tag to its
// commit SHA.
func (r *Resolver) latestRelease(
	ctx context.Context,
	owner string,
	name string,
) (*Resolution, error) {
	release, resp, err :=
		r.client.Repositories.GetLatestRelease(
			ctx, owner, name,
		)
	if err != nil {
		// Repositories without releases return 404.
		if isNotFound(resp, err) {
			slog.Warn(
				"no release found",
				"repository", owner+"/"+name,
			)

			return nil, nil
		}

		return nil, fmt.Errorf(
			"latest release: %w", err,
		)
	}

	res := &Resolution{
		Ref:         release.GetTagName(),
		TagName:     release.GetTagName(),
		HTMLURL:     release.GetHTMLURL(),
		PublishedAt: release.GetPublishedAt().
			Format(time.RFC3339),
	}

	if r.strategy == config.StrategyReleaseTag {
		return res, nil
	}

	sha, err := r.tagCommitSHA(
		ctx, owner, name, release.GetTagName(),
	)
	if err != nil {
		return nil, err
	}

	res.Ref = sha
	res.Comment = release.GetTagName()

	return res, nil
}

// tagCommitSHA resolves a tag name to the commit SHA it
// points at, dereferencing annotated tags.
func (r *Resolver) tagCommitSHA(
	ctx context.Context,
	owner string,
	name string,
	tag string,
) (string, error) {
	ref, _, err := r.client.Git.GetRef(
		ctx, owner, name, "tags/"+tag,
	)
	if err != nil {
		return "", fmt.Errorf(
			"tag ref %s: %w", tag, err,
		)
	}

	obj := ref.GetObject()

	if obj.GetType() != "tag" {
		return obj.GetSHA(), nil
	}

	// Annotated tag: one more hop to the commit.
	tagObj, _, err := r.client.Git.GetTag(
		ctx, owner, name, obj.GetSHA(),
	)
	if err != nil {
		return "", fmt.Errorf(
			"annotated tag %s: %w", tag, err,
		)
	}

	return tagObj.GetObject().GetSHA(), nil
}

// defaultBranchSHA resolves to the HEAD commit of the
// repository default branch.
func (r *Resolver) defaultBranchSHA(
	ctx context.Context,
	owner string,
	name string,
) (*Resolution, error) {
	repo, resp, err := r.client.Repositories.Get(
		ctx, owner, name,
	)
	if err != nil {
		if isNotFound(resp, err) {
			slog.Warn(
				"repository not found",
				"repository", owner+"/"+name,
			)

			return nil, nil
		}

		return nil, fmt.Errorf(
			"repository: %w", err,
		)
	}

	branch := repo.GetDefaultBranch()

	ref, _, err := r.client.Git.GetRef(
		ctx, owner, name, "heads/"+branch,
	)
	if err != nil {
		return nil, fmt.Errorf(
			"branch ref %s: %w", branch, err,
		)
	}

	return &Resolution{
		Ref:     ref.GetObject().GetSHA(),
		Comment: branch,
		HTMLURL: repo.GetHTMLURL(),
	}, nil
}

// isNotFound reports whether an API error is a plain
// HTTP 404.
func isNotFound(resp *gh.Response, err error) bool {
	if resp != nil &&
		resp.StatusCode == http.StatusNotFound {
		return true
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) &&
		ghErr.Response != nil {
		return ghErr.Response.StatusCode ==
			http.StatusNotFound
	}

	return false
}

// dedupe returns the sorted distinct slugs.
func dedupe(slugs []string) []string {
	seen := make(map[string]struct{}, len(slugs))

	var out []string

	for _, s := range slugs {
		if _, ok := seen[s]; ok {
			continue
		}

		seen[s] = struct{}{}
		out = append(out, s)
	}

	sort.Strings(out)

	return out
}
