package mirror

import "regexp"

// Matcher selects entry names. Patterns are case-insensitive regular
// expressions that may match anywhere in a name; a pattern that does not
// compile is matched as a literal substring instead.
type Matcher struct {
	any   *regexp.Regexp
	exact *regexp.Regexp
}

func NewMatcher(pattern string) *Matcher {
	expr := pattern
	if _, err := regexp.Compile(expr); err != nil {
		expr = regexp.QuoteMeta(pattern)
	}
	return &Matcher{
		any:   regexp.MustCompile("(?i)" + expr),
		exact: regexp.MustCompile("(?i)^(?:" + expr + ")$"),
	}
}

// Match reports whether name contains a match.
func (m *Matcher) Match(name string) bool { return m.any.MatchString(name) }

// Exact reports whether the whole of name matches.
func (m *Matcher) Exact(name string) bool { return m.exact.MatchString(name) }
