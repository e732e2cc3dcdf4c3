package proxy

import (
	"net/url"
	"reflect"
	"testing"
)

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		raw       string
		kind      LineKind
		directive DirectiveKind
	}{
		{"", LineBlank, DirectiveOther},
		{"   ", LineBlank, DirectiveOther},
		{"#EXTM3U", LineDirective, DirectiveOther},
		{`#EXT-X-KEY:METHOD=AES-128,URI="k.bin"`, LineDirective, DirectiveKey},
		{`#EXT-X-MEDIA:TYPE=AUDIO,URI="a.m3u8"`, LineDirective, DirectiveMedia},
		{"#EXT-X-STREAM-INF:BANDWIDTH=1,RESOLUTION=640x360", LineDirective, DirectiveOther},
		{"seg-001.ts", LineReference, DirectiveOther},
		{"  https://cdn.example/seg.ts  ", LineReference, DirectiveOther},
	}
	for _, tt := range tests {
		got := ClassifyLine(tt.raw)
		if got.Kind != tt.kind || got.Directive != tt.directive {
			t.Errorf("ClassifyLine(%q) = kind %v directive %v, want %v %v", tt.raw, got.Kind, got.Directive, tt.kind, tt.directive)
		}
	}
}

func TestIsMasterPlaylist(t *testing.T) {
	if !IsMasterPlaylist("#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360\nlow.m3u8") {
		t.Error("expected master playlist")
	}
	if IsMasterPlaylist("#EXTM3U\n#EXTINF:4.0,\nseg.ts") {
		t.Error("expected media playlist")
	}
}

func TestHeaders_round_trip(t *testing.T) {
	cases := []map[string]string{
		{},
		{"Referer": "https://site.example/watch?v=1&t=2"},
		{"Cookie": "a=b; c=d", "User-Agent": "Mozilla/5.0 (X11; Linux)", "Origin": "https://site.example"},
		{"X-Weird": `quote " and slash / and plus + and percent %`},
	}
	for _, h := range cases {
		enc := EncodeHeaders(h)
		raw, err := url.QueryUnescape(enc)
		if err != nil {
			t.Fatalf("unescape %q: %v", enc, err)
		}
		got, err := DecodeHeaders(raw)
		if err != nil {
			t.Fatalf("DecodeHeaders(%q): %v", raw, err)
		}
		if !reflect.DeepEqual(got, h) {
			t.Errorf("round trip: got %v want %v", got, h)
		}

		// And through a full proxy URL as a client would receive it.
		u, err := url.Parse(proxyURL("https://proxy.example", segmentPath, "https://cdn.example/a.ts", enc))
		if err != nil {
			t.Fatal(err)
		}
		got, err = DecodeHeaders(u.Query().Get("headers"))
		if err != nil || !reflect.DeepEqual(got, h) {
			t.Errorf("via url: got %v (%v) want %v", got, err, h)
		}
	}
}

func TestEncodeHeaders_nil(t *testing.T) {
	if got := EncodeHeaders(nil); got != "%7B%7D" {
		t.Errorf("got %q", got)
	}
}

func TestDecodeHeaders_invalid(t *testing.T) {
	for _, raw := range []string{"not-json", "[1,2]", `{"a":1}`, "{"} {
		if _, err := DecodeHeaders(raw); err != ErrInvalidHeaders {
			t.Errorf("DecodeHeaders(%q): expected ErrInvalidHeaders, got %v", raw, err)
		}
	}
	got, err := DecodeHeaders("")
	if err != nil || len(got) != 0 {
		t.Errorf("empty: got %v, %v", got, err)
	}
}

func TestEmbeddedURL(t *testing.T) {
	base := "https://cdn.example/live/index.m3u8"

	orig, abs, ok := embeddedURL(`#EXT-X-KEY:METHOD=AES-128,URI="https://keys.example/k.bin",IV=0x01`, base)
	if !ok || orig != "https://keys.example/k.bin" || abs != orig {
		t.Errorf("absolute: %q %q %v", orig, abs, ok)
	}

	orig, abs, ok = embeddedURL(`#EXT-X-KEY:METHOD=AES-128,URI="../keys/k.bin"`, base)
	if !ok || orig != "../keys/k.bin" || abs != "https://cdn.example/keys/k.bin" {
		t.Errorf("relative: %q %q %v", orig, abs, ok)
	}

	if _, _, ok = embeddedURL(`#EXT-X-KEY:METHOD=NONE`, base); ok {
		t.Error("METHOD=NONE has no URL")
	}
}

func TestIsHTTPURL(t *testing.T) {
	for u, want := range map[string]bool{
		"https://cdn.example/a.ts": true,
		"HTTP://cdn.example/a.ts":  true,
		"skd://key-id-123":         false,
		"data:text/plain,abc":      false,
		"ftp://files.example/a":    false,
	} {
		if got := isHTTPURL(u); got != want {
			t.Errorf("isHTTPURL(%q) = %v, want %v", u, got, want)
		}
	}
}
