// Package report collects the updates applied in a run
// and renders them as a pull request body, a job
// summary, and a machine-readable JSON artifact.
package report

import (
	"fmt"
	"os"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/valyala/fasttemplate"
)

// Header is the first line of the rendered markdown.
const Header = "### GitHub Actions Version Updates"

// DefaultLineTemplate renders one update as a markdown
// bullet. Placeholders are expanded with fasttemplate.
const DefaultLineTemplate = "* **[{{action}}]" +
	"(https://github.com/{{repository}})** " +
	"updated from `{{old_ref}}` to " +
	"[`{{new_ref}}`]({{release_url}})" +
	"{{published_suffix}}"

// Update records one applied action version change.
type Update struct {
	// Action is the full action name
	// ("owner/repo" or "owner/repo/subdir").
	Action string `json:"action"`

	// Repository is the "owner/repo" slug behind the
	// action.
	Repository string `json:"repository"`

	// OldRef and NewRef are the pinned refs before
	// and after the update.
	OldRef string `json:"old_ref"`
	NewRef string `json:"new_ref"`

	// TagName is the release tag backing NewRef when
	// NewRef is a commit SHA.
	TagName string `json:"tag_name,omitempty"`

	// ReleaseURL links to the release page.
	ReleaseURL string `json:"release_url,omitempty"`

	// PublishedAt is the release publish timestamp.
	PublishedAt string `json:"published_at,omitempty"`

	// Files are the workspace-relative workflow files
	// the update touched.
	Files []string `json:"files"`
}

// Report accumulates updates over a run.
type Report struct {
	Updates []Update `json:"updates"`

	lineTemplate string
}

// New returns an empty report rendering lines with
// lineTemplate (empty means DefaultLineTemplate).
func New(lineTemplate string) *Report {
	if lineTemplate == "" {
		lineTemplate = DefaultLineTemplate
	}

	return &Report{lineTemplate: lineTemplate}
}

// Add records an update. Updates for the same action
// and ref pair are merged, accumulating files.
func (r *Report) Add(u Update) {
	for i := range r.Updates {
		existing := &r.Updates[i]

		if existing.Action == u.Action &&
			existing.OldRef == u.OldRef &&
			existing.NewRef == u.NewRef {
			existing.Files = mergeFiles(
				existing.Files, u.Files,
			)

			return
		}
	}

	sort.Strings(u.Files)
	r.Updates = append(r.Updates, u)
}

// Empty reports whether no updates were recorded.
func (r *Report) Empty() bool {
	return len(r.Updates) == 0
}

// Markdown renders the report as a pull request body /
// job summary. Lines are sorted by action name.
func (r *Report) Markdown() string {
	var sb strings.Builder

	sb.WriteString(Header)
	sb.WriteByte('\n')

	updates := make([]Update, len(r.Updates))
	copy(updates, r.Updates)

	sort.Slice(updates, func(i, j int) bool {
		if updates[i].Action != updates[j].Action {
			return updates[i].Action <
				updates[j].Action
		}

		return updates[i].OldRef < updates[j].OldRef
	})

	tpl := fasttemplate.New(
		r.lineTemplate, "{{", "}}",
	)

	for _, u := range updates {
		sb.WriteString(
			tpl.ExecuteString(templateContext(u)),
		)
		sb.WriteByte('\n')
	}

	return sb.String()
}

// WriteJSON writes the full report to path.
func (r *Report) WriteJSON(path string) error {
	const errCtx = "writing json report"

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	//nolint:gosec // report path comes from configuration
	if err := os.WriteFile(
		path, data, 0o644,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// templateContext maps an update to the line template
// placeholders.
func templateContext(u Update) map[string]interface{} {
	newRef := u.NewRef
	if u.TagName != "" && u.TagName != u.NewRef {
		newRef = u.NewRef + " (" + u.TagName + ")"
	}

	suffix := ""
	if u.PublishedAt != "" {
		suffix = " published on " + u.PublishedAt
	}

	releaseURL := u.ReleaseURL
	if releaseURL == "" {
		releaseURL = "https://github.com/" +
			u.Repository + "/releases"
	}

	return map[string]interface{}{
		"action":           u.Action,
		"repository":       u.Repository,
		"old_ref":          u.OldRef,
		"new_ref":          newRef,
		"tag_name":         u.TagName,
		"release_url":      releaseURL,
		"published_at":     u.PublishedAt,
		"published_suffix": suffix,
	}
}

// mergeFiles unions two sorted file lists.
func mergeFiles(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))

	var out []string

	for _, f := range append(a, b...) {
		if _, ok := seen[f]; ok {
			continue
		}

		seen[f] = struct{}{}
		out = append(out, f)
	}

	sort.Strings(out)

	return out
}
