package sync

import (
	"path"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// Excluder decides which relative paths are left out of a run. Patterns use
// gitignore syntax and apply identically to both sides, so an excluded path
// is never classified, propagated or recorded in the baseline.
type Excluder struct {
	matcher *ignore.GitIgnore
}

// NewExcluder compiles gitignore-style patterns. Empty lines and comments
// are ignored; a nil or empty pattern list excludes nothing.
func NewExcluder(patterns []string) *Excluder {
	lines := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		lines = append(lines, p)
	}
	if len(lines) == 0 {
		return &Excluder{}
	}
	return &Excluder{matcher: ignore.CompileIgnoreLines(lines...)}
}

// Excluded checks a slash-separated relative file path. A file inside an
// excluded directory is excluded too.
func (e *Excluder) Excluded(relativePath string) bool {
	if e == nil || e.matcher == nil {
		return false
	}
	if e.matcher.MatchesPath(relativePath) {
		return true
	}

	// directory patterns such as "build/" only match the directory itself
	for dir := path.Dir(relativePath); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if e.matcher.MatchesPath(dir + "/") {
			return true
		}
	}
	return false
}
