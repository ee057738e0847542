package urlnorm

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Options selects which rewrites Normalize applies.
type Options struct {
	// DefaultProtocol is prepended to input without a scheme.
	DefaultProtocol string
	// NormalizeProtocol turns protocol-relative input into an absolute URL.
	NormalizeProtocol bool
	ForceHTTP         bool
	ForceHTTPS        bool
	// StripAuthentication drops username and password.
	StripAuthentication bool
	StripHash           bool
	StripWWW            bool
	// RemoveQueryParameters lists the query keys to drop. Nil disables removal.
	RemoveQueryParameters []Matcher
	RemoveTrailingSlash   bool
	// RemoveDirectoryIndex lists the file names treated as a directory index.
	// Nil disables removal; see DirectoryIndexMatchers for the usual set.
	RemoveDirectoryIndex []Matcher
	SortQueryParameters  bool
	StripProtocol        bool
}

// DefaultOptions returns the options Normalize is normally used with.
func DefaultOptions() Options {
	return Options{
		DefaultProtocol:       "http:",
		NormalizeProtocol:     true,
		StripAuthentication:   true,
		StripWWW:              true,
		RemoveQueryParameters: []Matcher{MustPattern(`(?i)^utm_\w+`)},
		RemoveTrailingSlash:   true,
		SortQueryParameters:   true,
	}
}

// DirectoryIndexMatchers returns the matchers used when directory index
// removal is switched on without an explicit list.
func DirectoryIndexMatchers() []Matcher {
	return []Matcher{MustPattern(`^index\.[a-z]+$`)}
}

func (o Options) validate() error {
	if o.ForceHTTP && o.ForceHTTPS {
		return &ConfigurationError{Msg: "the forceHttp and forceHttps options cannot be used together"}
	}
	return nil
}

func (o Options) protocol() string {
	p := o.DefaultProtocol
	if p == "" {
		return "http:"
	}
	if !strings.HasSuffix(p, ":") {
		p += ":"
	}
	return p
}

var renamedOptions = []struct{ old, new string }{
	{"normalizeHttps", "forceHttp"},
	{"normalizeHttp", "forceHttps"},
	{"stripFragment", "stripHash"},
}

// optionBag mirrors Options with the loosely typed fields callers supply in maps.
type optionBag struct {
	DefaultProtocol       string      `mapstructure:"defaultProtocol"`
	NormalizeProtocol     bool        `mapstructure:"normalizeProtocol"`
	ForceHTTP             bool        `mapstructure:"forceHttp"`
	ForceHTTPS            bool        `mapstructure:"forceHttps"`
	StripAuthentication   bool        `mapstructure:"stripAuthentication"`
	StripHash             bool        `mapstructure:"stripHash"`
	StripWWW              bool        `mapstructure:"stripWWW"`
	RemoveQueryParameters interface{} `mapstructure:"removeQueryParameters"`
	RemoveTrailingSlash   bool        `mapstructure:"removeTrailingSlash"`
	RemoveDirectoryIndex  interface{} `mapstructure:"removeDirectoryIndex"`
	SortQueryParameters   bool        `mapstructure:"sortQueryParameters"`
	StripProtocol         bool        `mapstructure:"stripProtocol"`
}

// DecodeOptions builds Options from a key/value map layered over DefaultOptions.
func DecodeOptions(m map[string]interface{}) (Options, error) {
	return DefaultOptions().Merge(m)
}

// Merge returns a copy of o with the keys present in m applied. Keys match
// case-insensitively; renamed and unknown keys are rejected.
func (o Options) Merge(m map[string]interface{}) (Options, error) {
	if len(m) == 0 {
		return o, o.validate()
	}
	for _, r := range renamedOptions {
		if hasKey(m, r.old) {
			return Options{}, &ConfigurationError{Msg: fmt.Sprintf("options.%s is renamed to options.%s", r.old, r.new)}
		}
	}

	bag := optionBag{
		DefaultProtocol:     o.DefaultProtocol,
		NormalizeProtocol:   o.NormalizeProtocol,
		ForceHTTP:           o.ForceHTTP,
		ForceHTTPS:          o.ForceHTTPS,
		StripAuthentication: o.StripAuthentication,
		StripHash:           o.StripHash,
		StripWWW:            o.StripWWW,
		RemoveTrailingSlash: o.RemoveTrailingSlash,
		SortQueryParameters: o.SortQueryParameters,
		StripProtocol:       o.StripProtocol,
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		Result:           &bag,
	})
	if err != nil {
		return Options{}, &ConfigurationError{Msg: "build option decoder", Err: err}
	}
	if err := dec.Decode(m); err != nil {
		return Options{}, &ConfigurationError{Msg: "decode options", Err: err}
	}

	out := Options{
		DefaultProtocol:       bag.DefaultProtocol,
		NormalizeProtocol:     bag.NormalizeProtocol,
		ForceHTTP:             bag.ForceHTTP,
		ForceHTTPS:            bag.ForceHTTPS,
		StripAuthentication:   bag.StripAuthentication,
		StripHash:             bag.StripHash,
		StripWWW:              bag.StripWWW,
		RemoveQueryParameters: o.RemoveQueryParameters,
		RemoveTrailingSlash:   bag.RemoveTrailingSlash,
		RemoveDirectoryIndex:  o.RemoveDirectoryIndex,
		SortQueryParameters:   bag.SortQueryParameters,
		StripProtocol:         bag.StripProtocol,
	}
	if hasKey(m, "removeQueryParameters") {
		if out.RemoveQueryParameters, err = queryMatchers(bag.RemoveQueryParameters); err != nil {
			return Options{}, &ConfigurationError{Msg: "removeQueryParameters", Err: err}
		}
	}
	if hasKey(m, "removeDirectoryIndex") {
		if out.RemoveDirectoryIndex, err = directoryIndexMatchers(bag.RemoveDirectoryIndex); err != nil {
			return Options{}, &ConfigurationError{Msg: "removeDirectoryIndex", Err: err}
		}
	}
	if err := out.validate(); err != nil {
		return Options{}, err
	}
	return out, nil
}

func hasKey(m map[string]interface{}, key string) bool {
	for k := range m {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

func queryMatchers(v interface{}) ([]Matcher, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case bool:
		if t {
			return nil, fmt.Errorf("expected a list of matchers or false")
		}
		return nil, nil
	}
	return matcherList(v)
}

func directoryIndexMatchers(v interface{}) ([]Matcher, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case bool:
		if t {
			return DirectoryIndexMatchers(), nil
		}
		return nil, nil
	}
	return matcherList(v)
}

func matcherList(v interface{}) ([]Matcher, error) {
	var items []interface{}
	switch t := v.(type) {
	case []Matcher:
		return append([]Matcher(nil), t...), nil
	case []string:
		for _, s := range t {
			items = append(items, s)
		}
	case []interface{}:
		items = t
	default:
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	out := make([]Matcher, 0, len(items))
	for _, item := range items {
		switch t := item.(type) {
		case Matcher:
			out = append(out, t)
		case *regexp.Regexp:
			out = append(out, Pattern(t))
		case string:
			m, err := ParseMatcher(t)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		default:
			return nil, fmt.Errorf("unsupported matcher %T", item)
		}
	}
	return out, nil
}
