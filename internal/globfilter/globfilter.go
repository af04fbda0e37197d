// Package globfilter selects which package entries a CLI command should
// act on, using the doublestar glob dialect (** for recursive matching).
package globfilter

import "github.com/bmatcuk/doublestar/v4"

// Filter decides whether a slash-separated path should be processed, by
// include/exclude doublestar glob patterns. An empty include list means
// "everything", matching the usual meaning of an absent --include flag;
// an exclude match always wins over an include match.
type Filter struct {
	include []string
	exclude []string
}

// New validates include and exclude as doublestar patterns and returns a
// Filter. A malformed pattern is reported immediately rather than at
// first use.
func New(include, exclude []string) (*Filter, error) {
	for _, p := range include {
		if !doublestar.ValidatePattern(p) {
			return nil, &PatternError{Pattern: p}
		}
	}
	for _, p := range exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, &PatternError{Pattern: p}
		}
	}
	return &Filter{include: include, exclude: exclude}, nil
}

// PatternError reports a malformed glob pattern.
type PatternError struct{ Pattern string }

func (e *PatternError) Error() string { return "globfilter: invalid pattern " + e.Pattern }

// Match reports whether path should be processed.
func (f *Filter) Match(path string) bool {
	for _, p := range f.exclude {
		if ok, _ := doublestar.Match(p, path); ok {
			return false
		}
	}
	if len(f.include) == 0 {
		return true
	}
	for _, p := range f.include {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}
