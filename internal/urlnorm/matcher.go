package urlnorm

import (
	"fmt"
	"regexp"
	"strings"
)

// Matcher tests query keys and path segments. It holds either a literal,
// compared with case-sensitive equality, or a compiled pattern.
type Matcher struct {
	literal string
	pattern *regexp.Regexp
}

// Literal matches values equal to s.
func Literal(s string) Matcher {
	return Matcher{literal: s}
}

// Pattern matches values in which re finds a match.
func Pattern(re *regexp.Regexp) Matcher {
	return Matcher{pattern: re}
}

// MustPattern compiles expr and panics on failure.
func MustPattern(expr string) Matcher {
	return Pattern(regexp.MustCompile(expr))
}

// Match reports whether value matches.
func (m Matcher) Match(value string) bool {
	if m.pattern != nil {
		return m.pattern.MatchString(value)
	}
	return m.literal == value
}

func (m Matcher) String() string {
	if m.pattern != nil {
		return "/" + m.pattern.String() + "/"
	}
	return m.literal
}

func matchAny(matchers []Matcher, value string) bool {
	for _, m := range matchers {
		if m.Match(value) {
			return true
		}
	}
	return false
}

var patternFlags = map[rune]string{
	'i': "i",
	'm': "m",
	's': "s",
	'g': "",
	'u': "",
}

// ParseMatcher turns a string into a Matcher. Strings written as /expr/flags
// become patterns; everything else is a literal.
func ParseMatcher(s string) (Matcher, error) {
	end := strings.LastIndexByte(s, '/')
	if len(s) < 2 || s[0] != '/' || end <= 0 {
		return Literal(s), nil
	}
	expr, flags := s[1:end], s[end+1:]
	var prefix strings.Builder
	for _, f := range flags {
		re2, ok := patternFlags[f]
		if !ok {
			return Matcher{}, fmt.Errorf("unsupported pattern flag %q in %s", f, s)
		}
		if re2 != "" && !strings.Contains(prefix.String(), re2) {
			prefix.WriteString(re2)
		}
	}
	if prefix.Len() > 0 {
		expr = "(?" + prefix.String() + ")" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return Matcher{}, err
	}
	return Pattern(re), nil
}
