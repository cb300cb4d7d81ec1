package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	gh "github.com/google/go-github/v68/github"

	"github.com/byte4ever/actions_updater/updater/commitmsg"
	"github.com/byte4ever/actions_updater/updater/config"
	"github.com/byte4ever/actions_updater/updater/gha"
	"github.com/byte4ever/actions_updater/updater/git"
	"github.com/byte4ever/actions_updater/updater/ignore"
	"github.com/byte4ever/actions_updater/updater/report"
	"github.com/byte4ever/actions_updater/updater/resolve"
	"github.com/byte4ever/actions_updater/updater/version"
	"github.com/byte4ever/actions_updater/updater/workflow"
)

// ErrUpdatesPending is returned when updates were found
// but skip_pull_request prevented applying them
// upstream. The job must fail so the pending updates
// stay visible.
var ErrUpdatesPending = errors.New(
	"updates found but pull request was skipped",
)

// Config holds all collaborators and settings for one
// update run.
type Config struct {
	// Settings are the parsed action inputs.
	Settings *config.Configuration

	// Env is the runner-provided environment.
	Env *config.ActionEnvironment

	// Client is the GitHub API client used for
	// workflow discovery and version resolution.
	Client *gh.Client

	// Provider creates the pull request on the
	// hosting platform.
	Provider git.Provider

	// Console emits workflow commands to the job log.
	Console *gha.Console

	// Cache optionally persists resolutions across
	// runs.
	Cache *resolve.Cache
}

// pendingUpdate is one qualifying version change,
// tracked with the files it applies to.
type pendingUpdate struct {
	ref   workflow.Ref
	res   *resolve.Resolution
	files []string
}

// Run executes the full update workflow: discover
// workflow files, extract and resolve action
// references, rewrite the files, and commit, push, and
// open a pull request for the result.
func Run(ctx context.Context, cfg Config) error {
	const errCtx = "running version update"

	paths, err := workflow.Discover(
		ctx,
		cfg.Client,
		cfg.Env.Owner(),
		cfg.Env.Name(),
		cfg.Env.Workspace,
		cfg.Settings.ExtraWorkflowLocations,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if len(paths) == 0 {
		cfg.Console.Warning(fmt.Sprintf(
			"no workflow found in %q, skipping "+
				"version update",
			cfg.Env.Repository,
		))

		return nil
	}

	ignored := ignore.New(cfg.Settings.IgnoreActions)
	if !ignored.Empty() {
		cfg.Console.Echo(fmt.Sprintf(
			"actions %v will be skipped",
			cfg.Settings.IgnoreActions,
		))
	}

	files, refsByFile, err := scanFiles(
		cfg, paths, ignored,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	updates, err := resolveUpdates(
		ctx, cfg, refsByFile,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	rep := report.New(
		cfg.Settings.ReportLineTemplate,
	)

	if err := applyUpdates(
		cfg, files, updates, rep,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if rep.Empty() {
		cfg.Console.Notice(
			"everything is up-to-date",
		)

		return finishOutputs(cfg, "", false)
	}

	if cfg.Settings.ReportPath != "" {
		if err := rep.WriteJSON(
			cfg.Settings.ReportPath,
		); err != nil {
			slog.Warn(
				"failed to write report",
				"error", err,
			)
		}
	}

	if err := gha.AppendSummary(
		cfg.Env.StepSummaryPath, rep.Markdown(),
	); err != nil {
		slog.Warn(
			"failed to append summary",
			"error", err,
		)
	}

	if cfg.Settings.SkipPullRequest {
		return reportPending(ctx, cfg)
	}

	url, err := publish(ctx, cfg, rep)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return finishOutputs(cfg, url, true)
}

// scanFiles reads every workflow file and extracts its
// action references, dropping ignored ones. It returns
// file contents by path and references by path.
func scanFiles(
	cfg Config,
	paths []string,
	ignored *ignore.List,
) (
	map[string][]byte,
	map[string][]workflow.Ref,
	error,
) {
	const errCtx = "scanning workflow files"

	files := make(map[string][]byte, len(paths))
	refsByFile := make(
		map[string][]workflow.Ref, len(paths),
	)

	for _, path := range paths {
		endGroup := cfg.Console.Group(fmt.Sprintf(
			"checking %q for updates", path,
		))

		content, err := os.ReadFile(path) //nolint:gosec // discovered workflow path
		if err != nil {
			endGroup()

			return nil, nil, fmt.Errorf(
				"%s: read %s: %w", errCtx, path, err,
			)
		}

		refs, skipped, err := workflow.Extract(
			content,
		)
		if err != nil {
			// A workflow that does not parse should
			// not abort the whole run.
			cfg.Console.Warning(fmt.Sprintf(
				"skipping %q: %v", path, err,
			))
			endGroup()

			continue
		}

		for _, value := range skipped {
			slog.Debug(
				"skipping unsupported reference",
				"file", path,
				"uses", value,
			)
		}

		var kept []workflow.Ref

		for _, ref := range refs {
			if ignored.Matches(ref.Name, ref.Ref) {
				cfg.Console.Echo(fmt.Sprintf(
					"ignoring %s", ref,
				))

				continue
			}

			kept = append(kept, ref)
		}

		files[path] = content
		refsByFile[path] = kept

		endGroup()
	}

	return files, refsByFile, nil
}

// resolveUpdates resolves all referenced action
// repositories and keeps the references whose
// resolution passes the release-type filter.
func resolveUpdates(
	ctx context.Context,
	cfg Config,
	refsByFile map[string][]workflow.Ref,
) ([]pendingUpdate, error) {
	const errCtx = "resolving updates"

	resolver, err := resolve.New(
		cfg.Client,
		cfg.Settings.UpdateVersionWith,
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	if cfg.Cache != nil {
		resolver.UseCache(cfg.Cache)
	}

	// One entry per distinct name@ref pair, with the
	// files it occurs in.
	type occurrence struct {
		ref   workflow.Ref
		files []string
	}

	occurrences := make(map[string]*occurrence)

	var repos []string

	for path, refs := range refsByFile {
		for _, ref := range refs {
			key := ref.String()

			occ, ok := occurrences[key]
			if !ok {
				occ = &occurrence{ref: ref}
				occurrences[key] = occ

				repos = append(
					repos, ref.Repository(),
				)
			}

			occ.files = append(occ.files, path)
		}
	}

	resolutions, err := resolver.ResolveAll(
		ctx, repos,
		cfg.Settings.ResolveParallelism,
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	var updates []pendingUpdate

	for _, occ := range occurrences {
		res, ok := resolutions[occ.ref.Repository()]
		if !ok {
			continue
		}

		if res.Ref == occ.ref.Ref {
			slog.Info(
				"no update found",
				"action", occ.ref.Name,
			)

			continue
		}

		if !bumpAllowed(cfg, occ.ref, res) {
			slog.Info(
				"update filtered by release type",
				"action", occ.ref.Name,
				"current", occ.ref.Ref,
				"next", res.Ref,
			)

			continue
		}

		updates = append(updates, pendingUpdate{
			ref:   occ.ref,
			res:   res,
			files: occ.files,
		})
	}

	return updates, nil
}

// bumpAllowed applies the release-type filter. For SHA
// strategies the comparison uses the human-readable tag
// behind the SHA; the currently pinned version comes
// from the pin comment when the ref itself is a SHA.
func bumpAllowed(
	cfg Config,
	ref workflow.Ref,
	res *resolve.Resolution,
) bool {
	next := res.TagName
	if next == "" {
		next = res.Ref
	}

	current := ref.Ref
	if ref.Comment != "" {
		current = ref.Comment
	}

	return version.Allowed(
		cfg.Settings.ReleaseTypes, current, next,
	)
}

// applyUpdates rewrites every occurrence of each update
// in the scanned files and records the result.
func applyUpdates(
	cfg Config,
	files map[string][]byte,
	updates []pendingUpdate,
	rep *report.Report,
) error {
	const errCtx = "applying updates"

	touched := make(map[string]struct{})

	for _, upd := range updates {
		cfg.Console.Echo(fmt.Sprintf(
			"updating %q to %q",
			upd.ref.String(),
			upd.ref.Name+"@"+upd.res.Ref,
		))

		var updatedFiles []string

		for _, path := range upd.files {
			content, changed := workflow.Rewrite(
				files[path],
				upd.ref.Name,
				upd.ref.Ref,
				upd.res.Ref,
				upd.res.Comment,
			)

			if changed == 0 {
				continue
			}

			files[path] = content
			touched[path] = struct{}{}
			updatedFiles = append(
				updatedFiles,
				relWorkspace(cfg, path),
			)
		}

		rep.Add(report.Update{
			Action:      upd.ref.Name,
			Repository:  upd.ref.Repository(),
			OldRef:      upd.ref.Ref,
			NewRef:      upd.res.Ref,
			TagName:     upd.res.TagName,
			ReleaseURL:  upd.res.HTMLURL,
			PublishedAt: upd.res.PublishedAt,
			Files:       updatedFiles,
		})
	}

	for path := range touched {
		//nolint:gosec // workflow files keep their conventional mode
		if err := os.WriteFile(
			path, files[path], 0o644,
		); err != nil {
			return fmt.Errorf(
				"%s: write %s: %w",
				errCtx, path, err,
			)
		}
	}

	return nil
}

// reportPending handles skip_pull_request mode: the
// diff lands in the job summary and the run fails so
// the pending updates are visible.
func reportPending(
	ctx context.Context,
	cfg Config,
) error {
	repo, err := git.Open(ctx, cfg.Env.Workspace)
	if err != nil {
		return fmt.Errorf(
			"reporting pending updates: %w", err,
		)
	}

	diff := repo.Diff(ctx)

	if err := gha.AppendSummary(
		cfg.Env.StepSummaryPath,
		"```diff\n"+diff+"```",
	); err != nil {
		slog.Warn(
			"failed to append diff to summary",
			"error", err,
		)
	}

	cfg.Console.Error(
		"updates found but skipping pull request, " +
			"check the job summary for details",
	)

	return ErrUpdatesPending
}

// publish commits the rewritten workflows on the update
// branch, pushes it, and creates the pull request.
// Returns the pull request URL.
func publish(
	ctx context.Context,
	cfg Config,
	rep *report.Report,
) (string, error) {
	const errCtx = "publishing updates"

	repo, err := git.Open(ctx, cfg.Env.Workspace)
	if err != nil {
		return "", fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	repo.ConfigureAuthor(
		ctx,
		cfg.Settings.CommitterName,
		cfg.Settings.CommitterEmail,
	)

	branch := cfg.Settings.PullRequestBranch
	timestamped := branch == ""

	if timestamped {
		// Timestamp ensures uniqueness of the new
		// branch.
		branch = fmt.Sprintf(
			"gh-actions-update-%d",
			time.Now().Unix(),
		)
	}

	actions := updatedActionList(rep)

	isNew := repo.SwitchToBranch(
		ctx, branch, cfg.Env.BaseBranch,
	)

	if !isNew && !timestamped {
		prev := commitmsg.ExtractActions(
			repo.GetLastCommitMessage(ctx),
		)

		if hasStaleActions(prev, actions) {
			slog.Info(
				"recreating branch due to stale "+
					"updates",
				"branch", branch,
			)

			repo.RecreateBranch(
				ctx, branch, cfg.Env.BaseBranch,
			)
		}
	}

	committed := repo.Commit(
		ctx,
		commitmsg.Generate(
			cfg.Settings.CommitMessage, actions,
		),
	)

	if committed {
		if err := repo.Push(ctx, branch); err != nil {
			return "", fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}
	}

	url, err := cfg.Provider.CreatePR(
		ctx,
		git.PullRequest{
			Head:  branch,
			Base:  cfg.Env.BaseBranch,
			Title: cfg.Settings.PullRequestTitle,
			Body:  rep.Markdown(),
			Labels: cfg.Settings.
				PullRequestLabels,
			UserReviewers: cfg.Settings.
				PullRequestUserReviewers,
			TeamReviewers: cfg.Settings.
				PullRequestTeamReviewers,
		},
	)
	if err != nil {
		return "", fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return url, nil
}

// finishOutputs writes the step outputs for downstream
// jobs.
func finishOutputs(
	cfg Config,
	url string,
	updated bool,
) error {
	const errCtx = "writing step outputs"

	if err := gha.SetOutput(
		cfg.Env.OutputPath,
		"updated",
		fmt.Sprintf("%t", updated),
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if url != "" {
		if err := gha.SetOutput(
			cfg.Env.OutputPath,
			"pull_request_url",
			url,
		); err != nil {
			return fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}
	}

	return nil
}

// updatedActionList renders the applied updates as
// "name@newref" lines for the commit message markers.
func updatedActionList(rep *report.Report) []string {
	actions := make(
		[]string, 0, len(rep.Updates),
	)

	for _, u := range rep.Updates {
		actions = append(
			actions, u.Action+"@"+u.NewRef,
		)
	}

	return actions
}

// hasStaleActions returns true if any previously
// committed update is missing from the current set.
func hasStaleActions(
	prev []string,
	current []string,
) bool {
	cur := make(
		map[string]struct{}, len(current),
	)
	for _, a := range current {
		cur[a] = struct{}{}
	}

	for _, a := range prev {
		if _, ok := cur[a]; !ok {
			return true
		}
	}

	return false
}

// relWorkspace strips the workspace prefix from a
// discovered path for reporting.
func relWorkspace(cfg Config, path string) string {
	ws := cfg.Env.Workspace
	if ws == "" {
		return path
	}

	rel, err := filepath.Rel(ws, path)
	if err != nil {
		return path
	}

	return rel
}
