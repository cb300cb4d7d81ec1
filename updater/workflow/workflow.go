// Package workflow locates GitHub workflow files,
// extracts the action references they pin, and rewrites
// those references in place without disturbing the
// surrounding YAML formatting.
package workflow

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml"
)

// workflowUsesKey is the YAML key holding action
// references.
const workflowUsesKey = "uses"

// Sentinel errors returned by ParseRef for references
// that are skipped rather than updated.
var (
	// ErrLocalRef marks "./path" references to
	// actions in the same repository.
	ErrLocalRef = errors.New("local action reference")

	// ErrDockerRef marks "docker://image" references.
	ErrDockerRef = errors.New(
		"docker action reference",
	)

	// ErrUnpinned marks references without an "@ref"
	// part.
	ErrUnpinned = errors.New(
		"unpinned action reference",
	)
)

// Ref is one pinned action reference found in a
// workflow file.
type Ref struct {
	// Name is the action path, "owner/repo" or
	// "owner/repo/subdir".
	Name string

	// Ref is the pinned tag, branch, or commit SHA.
	Ref string

	// Comment is the trailing version pin comment on
	// the uses line, without the "#" (e.g. "v4.2.1").
	Comment string

	// Line is the 1-based line of the first
	// occurrence, 0 when unknown.
	Line int
}

// String renders the reference in uses-line form.
func (r Ref) String() string {
	return r.Name + "@" + r.Ref
}

// Repository returns the "owner/repo" part of the
// action name, dropping any subdirectory.
func (r Ref) Repository() string {
	parts := strings.SplitN(r.Name, "/", 3)
	if len(parts) < 2 {
		return r.Name
	}

	return parts[0] + "/" + parts[1]
}

// ParseRef splits a raw uses value into name and ref.
// Local, docker, and unpinned references return the
// corresponding sentinel error.
func ParseRef(value string) (Ref, error) {
	const errCtx = "parsing action reference"

	value = strings.TrimSpace(value)

	if strings.HasPrefix(value, "./") {
		return Ref{}, fmt.Errorf(
			"%s: %q: %w", errCtx, value, ErrLocalRef,
		)
	}

	if strings.HasPrefix(value, "docker://") {
		return Ref{}, fmt.Errorf(
			"%s: %q: %w", errCtx, value, ErrDockerRef,
		)
	}

	name, ref, found := strings.Cut(value, "@")
	if !found || name == "" || ref == "" {
		return Ref{}, fmt.Errorf(
			"%s: %q: %w", errCtx, value, ErrUnpinned,
		)
	}

	if !strings.Contains(name, "/") {
		return Ref{}, fmt.Errorf(
			"%s: %q: %w", errCtx, value, ErrUnpinned,
		)
	}

	return Ref{Name: name, Ref: ref}, nil
}

// Extract returns the distinct pinned action references
// in a workflow document. References are collected from
// the decoded YAML at any nesting depth, then located
// in the raw text to pick up line numbers and pin
// comments. Skipped values (local, docker, unpinned)
// are returned separately.
func Extract(
	content []byte,
) (refs []Ref, skipped []string, err error) {
	const errCtx = "extracting action references"

	values, err := collectUsesValues(content)
	if err != nil {
		return nil, nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	seen := make(map[string]struct{})

	for _, value := range values {
		ref, parseErr := ParseRef(value)
		if parseErr != nil {
			if !isSkippable(parseErr) {
				return nil, nil, fmt.Errorf(
					"%s: %w", errCtx, parseErr,
				)
			}

			skipped = append(skipped, value)

			continue
		}

		if _, ok := seen[ref.String()]; ok {
			continue
		}

		seen[ref.String()] = struct{}{}

		ref.Line, ref.Comment = locate(content, ref)
		refs = append(refs, ref)
	}

	return refs, skipped, nil
}

// collectUsesValues decodes every YAML document in
// content and walks it for string values under a uses
// key.
func collectUsesValues(
	content []byte,
) ([]string, error) {
	decoder := yaml.NewDecoder(
		bytes.NewReader(content),
	)

	var values []string

	for {
		var doc interface{}

		err := decoder.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf(
				"decoding yaml: %w", err,
			)
		}

		if doc == nil {
			continue
		}

		values = append(values, walkUses(doc)...)
	}

	return values, nil
}

// walkUses recursively collects uses values from a
// decoded YAML node. Map keys are matched as strings;
// anything else (e.g. the "on" trigger key decoded as
// a boolean) is descended into but never matches.
func walkUses(node interface{}) []string {
	var values []string

	switch n := node.(type) {
	case map[string]interface{}:
		for key, value := range n {
			if key == workflowUsesKey {
				if s, ok := value.(string); ok {
					values = append(values, s)
				}

				continue
			}

			values = append(
				values, walkUses(value)...,
			)
		}
	case map[interface{}]interface{}:
		for key, value := range n {
			if s, ok := key.(string); ok &&
				s == workflowUsesKey {
				if v, ok := value.(string); ok {
					values = append(values, v)
				}

				continue
			}

			values = append(
				values, walkUses(value)...,
			)
		}
	case []interface{}:
		for _, item := range n {
			values = append(
				values, walkUses(item)...,
			)
		}
	}

	return values
}

// isSkippable reports whether a parse error marks a
// reference kind the updater ignores.
func isSkippable(err error) bool {
	return errors.Is(err, ErrLocalRef) ||
		errors.Is(err, ErrDockerRef) ||
		errors.Is(err, ErrUnpinned)
}

// locate finds the first uses line holding ref and
// returns its 1-based line number and trailing pin
// comment.
func locate(content []byte, ref Ref) (int, string) {
	lines := strings.Split(string(content), "\n")

	for i, line := range lines {
		if !usesLineMatches(line, ref) {
			continue
		}

		return i + 1, pinComment(line)
	}

	return 0, ""
}

// pinComment returns the trailing comment of a uses
// line when it looks like a version pin, empty
// otherwise. Free-form comments never stand in for the
// pinned version.
func pinComment(line string) string {
	c := trailingComment(line)
	if c == "" || !pinCommentPattern.MatchString(c) {
		return ""
	}

	return c
}

// usesLineMatches reports whether line is a uses line
// pinning ref.
func usesLineMatches(line string, ref Ref) bool {
	return usesTokenIndex(line, ref.String()) >= 0
}

// usesTokenIndex returns the index of token in the
// value part of a uses line, or -1. The match happens
// in the value part only so commented-out lines do not
// count, and the token must be delimited on both sides
// so a short ref never matches inside a longer one
// (v3 inside v3.1.0).
func usesTokenIndex(line, token string) int {
	idx := strings.Index(line, workflowUsesKey+":")
	if idx < 0 {
		return -1
	}

	before := strings.TrimLeft(
		line[:idx], " \t-",
	)
	if before != "" {
		return -1
	}

	start := idx + len(workflowUsesKey) + 1
	value := line[start:]

	end := len(value)
	if hash := strings.Index(value, "#"); hash >= 0 {
		end = hash
	}

	for i := 0; i < end; {
		rel := strings.Index(value[i:end], token)
		if rel < 0 {
			return -1
		}

		pos := i + rel

		if tokenDelimited(value, pos, len(token)) {
			return start + pos
		}

		i = pos + 1
	}

	return -1
}

// tokenDelimited reports whether the token at pos in s
// is bounded by whitespace, quotes, a comment, or the
// string ends.
func tokenDelimited(s string, pos, length int) bool {
	if pos > 0 {
		switch s[pos-1] {
		case ' ', '\t', '"', '\'':
		default:
			return false
		}
	}

	after := pos + length
	if after >= len(s) {
		return true
	}

	switch s[after] {
	case ' ', '\t', '#', '"', '\'':
		return true
	}

	return false
}

// pinCommentPattern matches comments that look like a
// version pin (e.g. "# v4.2.1", "# 4.2").
var pinCommentPattern = regexp.MustCompile(
	`^v?\d+(\.\d+)*$`,
)

// trailingComment extracts the trailing comment text of
// a uses line, empty when absent.
func trailingComment(line string) string {
	hash := strings.Index(line, "#")
	if hash < 0 {
		return ""
	}

	return strings.TrimSpace(line[hash+1:])
}

// Rewrite replaces every uses-line occurrence of
// name@oldRef with name@newRef in content. A non-empty
// comment is written (or refreshed) as a trailing
// "# comment"; an empty comment removes an existing
// pin-style comment. Returns the rewritten content and
// the number of lines changed.
func Rewrite(
	content []byte,
	name string,
	oldRef string,
	newRef string,
	comment string,
) ([]byte, int) {
	oldToken := name + "@" + oldRef
	newToken := name + "@" + newRef

	lines := strings.Split(string(content), "\n")
	changed := 0

	for i, line := range lines {
		pos := usesTokenIndex(line, oldToken)
		if pos < 0 {
			continue
		}

		line = line[:pos] + newToken +
			line[pos+len(oldToken):]
		line = setPinComment(line, comment)

		lines[i] = line
		changed++
	}

	if changed == 0 {
		return content, 0
	}

	return []byte(strings.Join(lines, "\n")), changed
}

// setPinComment rewrites the trailing comment of a uses
// line. Non-pin comments are preserved when comment is
// empty.
func setPinComment(line, comment string) string {
	hash := strings.Index(line, "#")

	existing := ""
	body := line

	if hash >= 0 {
		existing = strings.TrimSpace(line[hash+1:])
		body = strings.TrimRight(
			line[:hash], " \t",
		)
	}

	if comment != "" {
		return body + " # " + comment
	}

	if existing != "" &&
		!pinCommentPattern.MatchString(existing) {
		// Keep comments that are not version pins.
		return line
	}

	return body
}
