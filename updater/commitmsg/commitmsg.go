// Package commitmsg embeds and recovers the list of
// updated action references in git commit messages.
// The markers let a later run decide whether a reused
// pull request branch still matches its pending
// updates.
package commitmsg

import (
	"log/slog"
	"strings"
)

const (
	begin = "--- updated actions begin ---"
	end   = "--- updated actions end ---"
)

// ExtractActions extracts the updated action references
// from a commit message delimited by begin/end markers.
func ExtractActions(msg string) []string {
	var actions []string

	betweenMarkers := false

	for _, line := range strings.Split(msg, "\n") {
		switch line {
		case begin:
			betweenMarkers = true
		case end:
			betweenMarkers = false
		default:
			if betweenMarkers && line != "" {
				actions = append(actions, line)
			}
		}
	}

	if betweenMarkers {
		slog.Warn(
			"no end marker in commit message",
		)

		return nil
	}

	return actions
}

// Generate produces a commit message from the first
// line and the updated action references between
// begin/end markers.
func Generate(
	message string,
	actions []string,
) string {
	var sb strings.Builder

	sb.WriteString(message)
	sb.WriteString("\n\n")
	sb.WriteString(begin)
	sb.WriteByte('\n')

	for _, a := range actions {
		sb.WriteString(a)
		sb.WriteByte('\n')
	}

	sb.WriteString(end)
	sb.WriteByte('\n')

	return sb.String()
}
