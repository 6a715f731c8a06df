package syncplan

import (
	"cmp"
	"slices"
	"strings"
)

// CompareActions orders actions for application by the client. It returns a
// negative number when a sorts before b.
//
// Actions sort by kind rank first, then actions without a new version go after
// those with one. Two file EDITs sort by SortKey ascending and then by new name
// descending; two directory EDITs sort by new path and then by old path, both
// ascending, so parents precede their children. nil actions sort last.
// Anything not covered compares equal and keeps its input order under
// SortActions.
func CompareActions(a, b *Action) int {
	if a == nil || b == nil {
		return nilLast(a == nil, b == nil)
	}
	if c := cmp.Compare(a.Kind.Rank(), b.Kind.Rank()); c != 0 {
		return c
	}
	if a.NewVersion == nil || b.NewVersion == nil {
		return nilLast(a.NewVersion == nil, b.NewVersion == nil)
	}
	if a.Kind != ActionEdit {
		return 0
	}

	fa, fb := a.NewVersion.Family(), b.NewVersion.Family()
	if fa != fb {
		return 0
	}

	switch fa {
	case FamilyFile:
		if c := cmp.Compare(a.SortKey, b.SortKey); c != 0 {
			return c
		}
		// reverse lexicographic on purpose, clients rely on it
		return strings.Compare(b.NewVersion.Identity(), a.NewVersion.Identity())
	case FamilyDirectory:
		if c := strings.Compare(a.NewVersion.Identity(), b.NewVersion.Identity()); c != 0 {
			return c
		}
		if a.Version == nil || b.Version == nil {
			return nilLast(a.Version == nil, b.Version == nil)
		}
		return strings.Compare(a.Version.Identity(), b.Version.Identity())
	}
	return 0
}

// nilLast orders absent values after present ones.
func nilLast(aNil, bNil bool) int {
	switch {
	case aNil && bNil:
		return 0
	case aNil:
		return 1
	case bNil:
		return -1
	}
	return 0
}

// SortActions sorts actions in place; equal actions keep their relative order.
func SortActions(actions []*Action) {
	slices.SortStableFunc(actions, CompareActions)
}
