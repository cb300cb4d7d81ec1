// Package ignore implements the action exclusion list.
// Entries either name a pinned ref ("owner/repo@ref")
// or a whole repository ("owner/repo").
package ignore

import "strings"

// List is a parsed exclusion list.
type List struct {
	pinned map[string]struct{}
	repos  map[string]struct{}
}

// New builds a List from raw entries. Blank entries are
// dropped; matching is case-insensitive.
func New(entries []string) *List {
	l := &List{
		pinned: make(map[string]struct{}),
		repos:  make(map[string]struct{}),
	}

	for _, e := range entries {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}

		if strings.Contains(e, "@") {
			l.pinned[e] = struct{}{}
		} else {
			l.repos[e] = struct{}{}
		}
	}

	return l
}

// Matches reports whether the action name pinned at ref
// is excluded.
func (l *List) Matches(name, ref string) bool {
	name = strings.ToLower(name)

	if _, ok := l.repos[name]; ok {
		return true
	}

	key := name + "@" + strings.ToLower(ref)
	_, ok := l.pinned[key]

	return ok
}

// Empty reports whether the list has no entries.
func (l *List) Empty() bool {
	return len(l.pinned) == 0 && len(l.repos) == 0
}
