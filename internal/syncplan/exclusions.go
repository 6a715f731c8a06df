package syncplan

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/sabhiram/go-gitignore"
)

var defaultExclusionLines = []string{
	// partial transfers
	"*.part",
	"*.drivepart",
	// OS-specific
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
	"Icon",
	// editor lock and swap files
	".~lock.*#",
	".*.swp",
}

// Exclusions decides which items take no part in synchronization. Server
// patterns use gitignore syntax, client patterns are doublestar globs matched
// against the full path without leading slash.
type Exclusions struct {
	server *gitignore.GitIgnore
	client []string
}

// NewExclusions compiles the default patterns followed by lines.
func NewExclusions(lines ...string) *Exclusions {
	all := append(append([]string{}, defaultExclusionLines...), lines...)
	return &Exclusions{server: gitignore.CompileIgnoreLines(all...)}
}

// WithClientPatterns returns a copy that additionally honors the given globs.
func (e *Exclusions) WithClientPatterns(patterns ...string) (*Exclusions, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclusion pattern %q", p)
		}
	}
	return &Exclusions{
		server: e.server,
		client: append(append([]string{}, e.client...), patterns...),
	}, nil
}

// Excluded reports whether the item at the '/'-separated path is excluded.
func (e *Exclusions) Excluded(p string) bool {
	rel := strings.TrimPrefix(path.Clean("/"+p), "/")
	if rel == "" {
		return false
	}
	if e.server != nil && e.server.MatchesPath(rel) {
		return true
	}
	for _, pattern := range e.client {
		if ok, _ := doublestar.Match(strings.TrimPrefix(pattern, "/"), rel); ok {
			return true
		}
	}
	return false
}

// Filter drops the comparisons of excluded items. Files are matched by their
// path inside folder, directories by their own path.
func (e *Exclusions) Filter(folder string, comparisons []*ThreeWayComparison) []*ThreeWayComparison {
	if e == nil {
		return comparisons
	}
	out := make([]*ThreeWayComparison, 0, len(comparisons))
	for _, c := range comparisons {
		p := c.Identity()
		if c.Family() == FamilyFile {
			p = path.Join(folder, p)
		}
		if !e.Excluded(p) {
			out = append(out, c)
		}
	}
	return out
}
