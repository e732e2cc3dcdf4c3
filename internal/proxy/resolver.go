package proxy

import (
	"net/url"
	"regexp"
	"strings"
)

// hostPattern splits an unprefixed or scheme-relative string into an optional
// scheme, a host with optional port, and a path/query tail.
var hostPattern = regexp.MustCompile(`(?i)^(?:(https?:)?//)?(([^/?]+?)(?::(\d{0,5}))?)([/?][\s\S]*|$)`)

var bareSchemePattern = regexp.MustCompile(`(?i)^https?:`)

// ResolveURL turns reference into an absolute URL. With a base it applies
// RFC 3986 reference resolution; without one it falls back to a host
// heuristic. The second return is false when no usable URL can be produced.
func ResolveURL(reference, base string) (string, bool) {
	if base != "" {
		return resolveAgainst(reference, base)
	}
	return resolveBare(reference)
}

func resolveAgainst(reference, base string) (string, bool) {
	b, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(reference)
	if err != nil {
		return "", false
	}
	out := b.ResolveReference(ref)
	if out.Scheme == "" || out.Host == "" {
		return "", false
	}
	return out.String(), true
}

func resolveBare(reference string) (string, bool) {
	m := hostPattern.FindStringSubmatch(reference)
	if m == nil {
		return "", false
	}

	raw := reference
	if m[1] == "" {
		if bareSchemePattern.MatchString(reference) {
			return "", false
		}
		if !strings.HasPrefix(raw, "//") {
			raw = "//" + raw
		}
		scheme := "http:"
		if m[4] == "443" {
			scheme = "https:"
		}
		raw = scheme + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", false
	}
	u.Host = strings.ToLower(u.Host)
	switch {
	case u.Scheme == "https" && u.Port() == "443":
		u.Host = strings.TrimSuffix(u.Host, ":443")
	case u.Scheme == "http" && u.Port() == "80":
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), true
}
