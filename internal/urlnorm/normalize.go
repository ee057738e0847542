package urlnorm

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nlnwa/whatwg-url/url"
)

var (
	relativeURL    = regexp.MustCompile(`^\.*/`)
	schemePrefix   = regexp.MustCompile(`^\w+://`)
	wwwHost        = regexp.MustCompile(`^www\.([a-z\-\d]{2,63})\.([a-z.]{2,5})$`)
	fullURL        = regexp.MustCompile(`(?i)^https?://`)
	protocolPrefix = regexp.MustCompile(`^(?i:https?:)?//`)
)

// queryKeys enumerates query keys; tests replace it to inject failures.
var queryKeys = (*searchParams).Keys

// Normalize rewrites raw into its canonical form according to opts.
func Normalize(raw string, opts Options) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}

	input := strings.TrimFunc(raw, isTrimmable)
	hasRelativeProtocol := strings.HasPrefix(input, "//")
	isRelative := !hasRelativeProtocol && relativeURL.MatchString(input)
	if !isRelative {
		input = prependProtocol(input, opts.protocol())
	}

	u, err := url.Parse(input)
	if err != nil {
		return "", &ParseError{Input: raw, Err: err}
	}

	if opts.ForceHTTP && u.Protocol() == "https:" {
		u.SetProtocol("http:")
	}
	if opts.ForceHTTPS && u.Protocol() == "http:" {
		u.SetProtocol("https:")
	}

	if opts.StripAuthentication {
		u.SetUsername("")
		u.SetPassword("")
	}

	if opts.StripHash {
		u.SetHash("")
	}

	if p := u.Pathname(); p != "" {
		u.SetPathname(collapseSlashes(p))
	}

	if p := u.Pathname(); p != "" {
		decoded, err := decodePath(p)
		if err != nil {
			return "", &ParseError{Input: raw, Err: err}
		}
		u.SetPathname(decoded)
	}

	if len(opts.RemoveDirectoryIndex) > 0 {
		segments := strings.Split(u.Pathname(), "/")
		last := len(segments) - 1
		for last > 0 && segments[last] == "" {
			last--
		}
		if last > 0 && matchAny(opts.RemoveDirectoryIndex, segments[last]) {
			u.SetPathname(strings.Join(segments[1:last], "/") + "/")
		}
	}

	if host := u.Hostname(); host != "" {
		host = strings.TrimSuffix(host, ".")
		if opts.StripWWW && wwwHost.MatchString(host) {
			host = strings.TrimPrefix(host, "www.")
		}
		u.SetHostname(host)
	}

	if len(opts.RemoveQueryParameters) > 0 || opts.SortQueryParameters {
		params := parseSearchParams(u.Query())
		changed := false
		if len(opts.RemoveQueryParameters) > 0 {
			keys, err := queryKeys(params)
			if err != nil {
				if !errors.Is(err, ErrIterationLimit) {
					return "", err
				}
				keys = nil
			}
			for _, key := range keys {
				if matchAny(opts.RemoveQueryParameters, key) {
					params.Delete(key)
					changed = true
				}
			}
		}
		if opts.SortQueryParameters {
			params.Sort()
			changed = true
		}
		if changed {
			params.writeTo(u)
		}
	}

	if opts.RemoveTrailingSlash {
		if p := u.Pathname(); strings.HasSuffix(p, "/") {
			u.SetPathname(strings.TrimSuffix(p, "/"))
		}
	}

	out := u.String()

	if (opts.RemoveTrailingSlash || u.Pathname() == "/") && u.Hash() == "" {
		out = strings.TrimSuffix(out, "/")
	}

	if hasRelativeProtocol && !opts.NormalizeProtocol {
		if rest, ok := strings.CutPrefix(out, "http://"); ok {
			out = "//" + rest
		}
	}

	if opts.StripProtocol {
		out = protocolPrefix.ReplaceAllString(out, "")
	}

	return out, nil
}

// IsFullURL reports whether s starts with an http or https scheme.
func IsFullURL(s string) bool {
	return fullURL.MatchString(s)
}

// isTrimmable reports the runes stripped from both ends of the input. A
// leading byte order mark counts as white space.
func isTrimmable(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}

func prependProtocol(s, protocol string) string {
	if rest, ok := strings.CutPrefix(s, "//"); ok {
		return protocol + rest
	}
	if schemePrefix.MatchString(s) {
		return s
	}
	return protocol + s
}

// collapseSlashes folds runs of '/' into one. A run right after ':' is kept as
// "//" so embedded URLs like /s3://bucket stay intact.
func collapseSlashes(p string) string {
	var b strings.Builder
	b.Grow(len(p))
	for i := 0; i < len(p); {
		if p[i] != '/' {
			b.WriteByte(p[i])
			i++
			continue
		}
		j := i
		for j < len(p) && p[j] == '/' {
			j++
		}
		switch n := j - i; {
		case n == 1:
			b.WriteByte('/')
		case i > 0 && p[i-1] == ':':
			b.WriteString("//")
		default:
			b.WriteByte('/')
		}
		i = j
	}
	return b.String()
}

// uriReserved escapes stay encoded when decoding a path. '%' is kept as well
// so a decoded path never contains a bare escape introducer.
const uriReserved = ";/?:@&=+$,#%"

// decodePath percent-decodes escapes that form complete UTF-8 sequences.
// Malformed escapes are reported as errors.
func decodePath(p string) (string, error) {
	if !strings.Contains(p, "%") {
		return p, nil
	}
	var b strings.Builder
	b.Grow(len(p))
	for i := 0; i < len(p); {
		if p[i] != '%' {
			b.WriteByte(p[i])
			i++
			continue
		}
		lead, ok := escapedByte(p, i)
		if !ok {
			return "", fmt.Errorf("malformed escape at offset %d in %q", i, p)
		}
		if lead < utf8.RuneSelf {
			if strings.IndexByte(uriReserved, lead) >= 0 {
				b.WriteString(p[i : i+3])
			} else {
				b.WriteByte(lead)
			}
			i += 3
			continue
		}

		size := utf8SequenceLength(lead)
		if size == 0 {
			return "", fmt.Errorf("invalid UTF-8 escape at offset %d in %q", i, p)
		}
		seq := []byte{lead}
		for k := 1; k < size; k++ {
			next, ok := escapedByte(p, i+3*k)
			if !ok || next&0xC0 != 0x80 {
				return "", fmt.Errorf("truncated UTF-8 escape at offset %d in %q", i, p)
			}
			seq = append(seq, next)
		}
		if !utf8.Valid(seq) {
			return "", fmt.Errorf("invalid UTF-8 escape at offset %d in %q", i, p)
		}
		b.Write(seq)
		i += 3 * size
	}
	return b.String(), nil
}

func escapedByte(s string, i int) (byte, bool) {
	if i+2 >= len(s) || s[i] != '%' {
		return 0, false
	}
	hi, ok1 := fromHex(s[i+1])
	lo, ok2 := fromHex(s[i+2])
	if !ok1 || !ok2 {
		return 0, false
	}
	return hi<<4 | lo, true
}

func fromHex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func utf8SequenceLength(lead byte) int {
	switch {
	case lead&0xE0 == 0xC0:
		return 2
	case lead&0xF0 == 0xE0:
		return 3
	case lead&0xF8 == 0xF0:
		return 4
	}
	return 0
}
