package urlnorm

import (
	"errors"
	"sort"
	"strings"

	"github.com/nlnwa/whatwg-url/url"
)

// MaxQueryPairs bounds how many query pairs Keys will enumerate.
var MaxQueryPairs = 10_000

// ErrIterationLimit is returned when a query holds more pairs than
// MaxQueryPairs. Normalize treats it as an empty key set.
var ErrIterationLimit = errors.New("urlnorm: query key iteration limit exceeded")

// formEncodeSet leaves only ASCII alphanumerics and *-._ unescaped.
var formEncodeSet = func() *url.PercentEncodeSet {
	var escaped []uint
	for c := uint(0x21); c <= 0x7e; c++ {
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		case c == '*' || c == '-' || c == '.' || c == '_':
		default:
			escaped = append(escaped, c)
		}
	}
	return url.NewPercentEncodeSet(0x21, escaped...)
}()

var formParser = url.NewParser(url.WithQueryPercentEncodeSet(formEncodeSet))

// formEncoder serializes with formEncodeSet, writing spaces as '+'.
var formEncoder = formParser.NewUrl().SearchParams()

// The parser's lenient decoder leaves malformed escapes untouched.
var formDecoder = formParser.(interface{ DecodePercentEncoded(string) string })

// searchParams is the decoded form of a URL query. The library's own
// SearchParams decodes '+' after percent-decoding, which turns %2B into a
// space, so pairs are decoded here and written back through SetSearch.
type searchParams struct {
	pairs []url.NameValuePair
}

func parseSearchParams(query string) *searchParams {
	s := &searchParams{}
	for _, seq := range strings.Split(query, "&") {
		if seq == "" {
			continue
		}
		name, value, _ := strings.Cut(seq, "=")
		s.pairs = append(s.pairs, url.NameValuePair{
			Name:  decodeFormComponent(name),
			Value: decodeFormComponent(value),
		})
	}
	return s
}

// Keys returns every pair's name in order, duplicates included.
func (s *searchParams) Keys() ([]string, error) {
	if len(s.pairs) > MaxQueryPairs {
		return nil, ErrIterationLimit
	}
	keys := make([]string, 0, len(s.pairs))
	for _, p := range s.pairs {
		keys = append(keys, p.Name)
	}
	return keys, nil
}

func (s *searchParams) Delete(name string) {
	kept := s.pairs[:0]
	for _, p := range s.pairs {
		if p.Name != name {
			kept = append(kept, p)
		}
	}
	s.pairs = kept
}

// Sort orders pairs by name; equal names keep their relative order.
func (s *searchParams) Sort() {
	sort.SliceStable(s.pairs, func(i, j int) bool {
		return s.pairs[i].Name < s.pairs[j].Name
	})
}

func (s *searchParams) String() string {
	var b strings.Builder
	for i, p := range s.pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		formEncoder.QueryEscape(p.Name, &b)
		b.WriteByte('=')
		formEncoder.QueryEscape(p.Value, &b)
	}
	return b.String()
}

// writeTo replaces u's query. An empty result drops the '?'.
func (s *searchParams) writeTo(u *url.Url) {
	u.SetSearch(s.String())
}

func decodeFormComponent(s string) string {
	return strings.ToValidUTF8(formDecoder.DecodePercentEncoded(strings.ReplaceAll(s, "+", " ")), "\uFFFD")
}
