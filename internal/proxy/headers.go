package proxy

import (
	"net/http"
	"strings"
)

// DefaultUserAgent is sent upstream when the client supplies none.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:93.0) Gecko/20100101 Firefox/93.0"

const playlistContentType = "application/vnd.apple.mpegurl"

// headerAliases maps client-controllable headers to the canonical header they
// stand in for. Browsers refuse to set the canonical ones from script.
var headerAliases = []struct{ alias, canonical string }{
	{"X-Cookie", "Cookie"},
	{"X-Referer", "Referer"},
	{"X-Origin", "Origin"},
	{"X-User-Agent", "User-Agent"},
	{"X-X-Real-Ip", "X-Real-Ip"},
}

// passthroughHeaders are copied upstream unchanged when present.
var passthroughHeaders = []string{"Cookie", "Referer", "Origin"}

var blacklistedHeaders = func() map[string]struct{} {
	names := []string{
		"cf-connecting-ip",
		"cf-worker",
		"cf-ray",
		"cf-visitor",
		"cf-ew-via",
		"cdn-loop",
		"x-amzn-trace-id",
		"cf-ipcountry",
		"x-forwarded-for",
		"x-forwarded-host",
		"x-forwarded-proto",
		"forwarded",
		"x-real-ip",
		"content-length",
	}
	for _, a := range headerAliases {
		names = append(names, a.alias)
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = struct{}{}
	}
	return set
}()

// IsBlacklisted reports whether a header must never cross the proxy in either direction.
func IsBlacklisted(name string) bool {
	_, ok := blacklistedHeaders[strings.ToLower(name)]
	return ok
}

// BlacklistedHeaders returns the blacklist as lower-case names.
func BlacklistedHeaders() []string {
	out := make([]string, 0, len(blacklistedHeaders))
	for n := range blacklistedHeaders {
		out = append(out, n)
	}
	return out
}

// ProxyHeaders builds the outbound header set for an upstream request from the
// inbound client headers.
func ProxyHeaders(in http.Header) http.Header {
	out := make(http.Header)
	out.Set("User-Agent", DefaultUserAgent)

	for _, a := range headerAliases {
		if vs, ok := in[http.CanonicalHeaderKey(a.alias)]; ok && len(vs) > 0 {
			out.Set(a.canonical, vs[0])
		}
	}
	for _, name := range passthroughHeaders {
		if v := in.Get(name); v != "" {
			out.Set(name, v)
		}
	}
	return out
}

// CopyAllowedHeaders copies every non-blacklisted header from src into dst.
func CopyAllowedHeaders(dst, src http.Header) {
	for k, vs := range src {
		if IsBlacklisted(k) {
			continue
		}
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

// AfterResponseHeaders returns the headers added to a proxied response:
// open CORS, the final upstream URL after redirects, and the upstream cookies
// both as Set-Cookie and mirrored under X-Set-Cookie for script access.
// Each cookie keeps its own Set-Cookie line; net/http folds newlines inside a
// value, so separate lines are the wire form of a newline-joined header.
func AfterResponseHeaders(upstream http.Header, finalURL string) http.Header {
	out := make(http.Header)
	out.Set("Access-Control-Allow-Origin", "*")
	out.Set("Access-Control-Expose-Headers", "*")
	out.Set("Vary", "Origin")
	out.Set("X-Final-Destination", finalURL)

	if cookies := upstream.Values("Set-Cookie"); len(cookies) > 0 {
		out["Set-Cookie"] = append([]string(nil), cookies...)
		out.Set("X-Set-Cookie", strings.Join(cookies, "; "))
	}
	return out
}

// PlaylistHeaders are the fixed headers of every rewritten playlist response.
func PlaylistHeaders() http.Header {
	h := make(http.Header)
	h.Set("Content-Type", playlistContentType)
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "*")
	h.Set("Access-Control-Allow-Methods", "*")
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	return h
}

// SegmentHeaders builds response headers for raw bytes served by the segment proxy.
func SegmentHeaders(upstream http.Header) http.Header {
	h := make(http.Header)
	CopyAllowedHeaders(h, upstream)
	h.Del("Set-Cookie")
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "*")
	h.Set("Access-Control-Allow-Methods", "*")
	return h
}

func applyHeaders(w http.ResponseWriter, h http.Header) {
	for k, vs := range h {
		w.Header()[k] = append([]string(nil), vs...)
	}
}
