package proxy

import (
	"net/http"
	"reflect"
	"testing"
)

func TestProxyHeaders(t *testing.T) {
	t.Run("default_user_agent", func(t *testing.T) {
		out := ProxyHeaders(http.Header{})
		if got := out.Get("User-Agent"); got != DefaultUserAgent {
			t.Errorf("got %q", got)
		}
	})

	t.Run("aliases_resolved", func(t *testing.T) {
		in := http.Header{}
		in.Set("X-Cookie", "a=1")
		in.Set("X-Referer", "https://site.example/")
		in.Set("X-Origin", "https://site.example")
		in.Set("X-User-Agent", "Custom/1.0")
		in.Set("X-X-Real-Ip", "7.7.7.7")

		out := ProxyHeaders(in)
		want := map[string]string{
			"Cookie":     "a=1",
			"Referer":    "https://site.example/",
			"Origin":     "https://site.example",
			"User-Agent": "Custom/1.0",
			"X-Real-Ip":  "7.7.7.7",
		}
		for k, v := range want {
			if got := out.Get(k); got != v {
				t.Errorf("%s: got %q want %q", k, got, v)
			}
		}
		for _, a := range headerAliases {
			if out.Get(a.alias) != "" {
				t.Errorf("alias %s must not be sent upstream", a.alias)
			}
		}
	})

	t.Run("direct_headers_win_over_aliases", func(t *testing.T) {
		in := http.Header{}
		in.Set("X-Referer", "https://alias.example/")
		in.Set("Referer", "https://direct.example/")
		if got := ProxyHeaders(in).Get("Referer"); got != "https://direct.example/" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("client_user_agent_not_forwarded", func(t *testing.T) {
		in := http.Header{}
		in.Set("User-Agent", "Browser/1.0")
		if got := ProxyHeaders(in).Get("User-Agent"); got != DefaultUserAgent {
			t.Errorf("got %q", got)
		}
	})

	t.Run("infrastructure_headers_dropped", func(t *testing.T) {
		in := http.Header{}
		in.Set("X-Forwarded-For", "1.2.3.4")
		in.Set("Cf-Ray", "abc")
		in.Set("Accept-Language", "en")
		out := ProxyHeaders(in)
		for _, k := range []string{"X-Forwarded-For", "Cf-Ray", "Accept-Language"} {
			if out.Get(k) != "" {
				t.Errorf("%s should not be forwarded", k)
			}
		}
	})
}

func TestIsBlacklisted(t *testing.T) {
	for _, name := range []string{"CF-Ray", "x-forwarded-for", "Content-Length", "X-Cookie", "forwarded"} {
		if !IsBlacklisted(name) {
			t.Errorf("%s should be blacklisted", name)
		}
	}
	for _, name := range []string{"Content-Type", "Cookie", "Cache-Control"} {
		if IsBlacklisted(name) {
			t.Errorf("%s should not be blacklisted", name)
		}
	}
	if n := len(BlacklistedHeaders()); n != 14+len(headerAliases) {
		t.Errorf("unexpected blacklist size %d", n)
	}
}

func TestCopyAllowedHeaders(t *testing.T) {
	src := http.Header{}
	src.Set("Content-Type", "video/mp2t")
	src.Set("Content-Length", "100")
	src.Set("Cf-Ray", "xyz")
	src.Add("Set-Cookie", "a=1")
	src.Add("Set-Cookie", "b=2")

	dst := http.Header{}
	CopyAllowedHeaders(dst, src)

	if dst.Get("Content-Type") != "video/mp2t" {
		t.Error("Content-Type should be copied")
	}
	if dst.Get("Content-Length") != "" || dst.Get("Cf-Ray") != "" {
		t.Errorf("blacklisted headers copied: %v", dst)
	}
	if got := dst.Values("Set-Cookie"); len(got) != 2 {
		t.Errorf("Set-Cookie values: %v", got)
	}
}

func TestAfterResponseHeaders(t *testing.T) {
	upstream := http.Header{}
	upstream.Add("Set-Cookie", "sid=1; Path=/")
	upstream.Add("Set-Cookie", "x=2")

	out := AfterResponseHeaders(upstream, "https://cdn.example/final")

	if out.Get("Access-Control-Allow-Origin") != "*" || out.Get("Access-Control-Expose-Headers") != "*" {
		t.Errorf("cors headers: %v", out)
	}
	if out.Get("Vary") != "Origin" {
		t.Errorf("Vary: %q", out.Get("Vary"))
	}
	if out.Get("X-Final-Destination") != "https://cdn.example/final" {
		t.Errorf("X-Final-Destination: %q", out.Get("X-Final-Destination"))
	}
	if got := out.Values("Set-Cookie"); !reflect.DeepEqual(got, []string{"sid=1; Path=/", "x=2"}) {
		t.Errorf("Set-Cookie: %v", got)
	}
	if got := out.Get("X-Set-Cookie"); got != "sid=1; Path=/; x=2" {
		t.Errorf("X-Set-Cookie: %q", got)
	}

	bare := AfterResponseHeaders(http.Header{}, "https://a.example/")
	if bare.Get("Set-Cookie") != "" || bare.Get("X-Set-Cookie") != "" {
		t.Errorf("no cookie headers expected: %v", bare)
	}
}

func TestPlaylistHeaders(t *testing.T) {
	h := PlaylistHeaders()
	if h.Get("Content-Type") != "application/vnd.apple.mpegurl" {
		t.Errorf("Content-Type: %q", h.Get("Content-Type"))
	}
	if h.Get("Cache-Control") != "no-cache, no-store, must-revalidate" {
		t.Errorf("Cache-Control: %q", h.Get("Cache-Control"))
	}
	for _, k := range []string{"Access-Control-Allow-Origin", "Access-Control-Allow-Headers", "Access-Control-Allow-Methods"} {
		if h.Get(k) != "*" {
			t.Errorf("%s: %q", k, h.Get(k))
		}
	}
}

func TestSegmentHeaders(t *testing.T) {
	upstream := http.Header{}
	upstream.Set("Content-Type", "video/mp2t")
	upstream.Set("Set-Cookie", "a=1")
	upstream.Set("X-Forwarded-Host", "internal")

	h := SegmentHeaders(upstream)
	if h.Get("Content-Type") != "video/mp2t" {
		t.Errorf("Content-Type: %q", h.Get("Content-Type"))
	}
	if h.Get("Set-Cookie") != "" || h.Get("X-Forwarded-Host") != "" {
		t.Errorf("unexpected headers: %v", h)
	}
	if h.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS")
	}
}
