// Package version classifies version bumps between two
// action refs so updates can be filtered by release
// type.
package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Bump kinds returned by Classify.
const (
	BumpMajor = "major"
	BumpMinor = "minor"
	BumpPatch = "patch"

	// BumpNone means the two refs denote the same
	// version.
	BumpNone = "none"

	// BumpUnknown means at least one ref does not
	// parse as a version. Unknown bumps are treated
	// like major ones by the filter.
	BumpUnknown = "unknown"
)

// Classify reports the kind of version bump going from
// current to next. Accepts "v" prefixes and short forms
// like "v4" or "v4.2" (tolerant coercion).
func Classify(current, next string) string {
	cur, err := parse(current)
	if err != nil {
		return BumpUnknown
	}

	nxt, err := parse(next)
	if err != nil {
		return BumpUnknown
	}

	switch {
	case nxt.Major() != cur.Major():
		return BumpMajor
	case nxt.Minor() != cur.Minor():
		return BumpMinor
	case nxt.Patch() != cur.Patch():
		return BumpPatch
	case nxt.Equal(cur):
		return BumpNone
	default:
		// Same core version, different prerelease or
		// metadata.
		return BumpPatch
	}
}

// Allowed reports whether the bump from current to next
// passes the release-type filter. Unknown bumps pass
// only when the filter includes major, mirroring the
// behavior of the "all" default.
func Allowed(types []string, current, next string) bool {
	bump := Classify(current, next)

	if bump == BumpNone {
		return false
	}

	if bump == BumpUnknown {
		bump = BumpMajor
	}

	for _, t := range types {
		if t == bump {
			return true
		}
	}

	return false
}

// parse coerces an action ref into a semver version.
// semver.NewVersion already tolerates "v" prefixes and
// missing minor/patch parts.
func parse(ref string) (*semver.Version, error) {
	return semver.NewVersion(strings.TrimSpace(ref))
}
