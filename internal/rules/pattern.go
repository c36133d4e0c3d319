// internal/rules/pattern.go
package rules

import (
	"fmt"
	"regexp"

	"github.com/solatis/logview/internal/types"
)

/*
 * Regex patterns and capture binding.
 *
 * A Pattern is compiled once when a view is loaded and matched against many
 * records. Only named groups produce bindings: unnamed groups, groups that did
 * not participate in the match, and groups that matched an empty span are
 * ignored. The whole match (group 0) is never exposed.
 *
 * Group names are resolved in group index order, so a name reused by several
 * groups binds the last participating one.
 */

// Pattern is a compiled regular expression with its named capture groups.
type Pattern struct {
	source string
	re     *regexp.Regexp
	groups []string // named groups in index order, deduplicated
}

// NewPattern compiles source. Errors wrap types.ErrInvalidPattern and are
// configuration errors: callers abort the load instead of processing records.
func NewPattern(source string) (*Pattern, error) {
	if len(source) > types.MaxPatternLength {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", types.ErrPatternTooLong, len(source), types.MaxPatternLength)
	}
	re, err := regexp.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidPattern, err)
	}

	var groups []string
	seen := make(map[string]bool)
	for _, name := range re.SubexpNames() {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		groups = append(groups, name)
	}

	return &Pattern{source: source, re: re, groups: groups}, nil
}

// MustPattern is like NewPattern but panics on an invalid source.
// Intended for views built in code, where a bad regex is a programming error.
func MustPattern(source string) *Pattern {
	p, err := NewPattern(source)
	if err != nil {
		panic(err)
	}
	return p
}

// Source returns the regex text the pattern was built from.
func (p *Pattern) Source() string {
	return p.source
}

// Groups returns the named capture groups in definition order.
func (p *Pattern) Groups() []string {
	out := make([]string, len(p.groups))
	copy(out, p.groups)
	return out
}

// String implements fmt.Stringer.
func (p *Pattern) String() string {
	return p.source
}

// Match runs the pattern against text. Returns (nil, false) on no match.
// On match, returns the non-empty named captures (possibly an empty map).
func (p *Pattern) Match(text string) (map[string]string, bool) {
	loc := p.re.FindStringSubmatchIndex(text)
	if loc == nil {
		return nil, false
	}

	captures := make(map[string]string, len(p.groups))
	for i, name := range p.re.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		start, end := loc[2*i], loc[2*i+1]
		if start < 0 || end <= start {
			continue
		}
		captures[name] = text[start:end]
	}
	return captures, true
}
