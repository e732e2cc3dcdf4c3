package proxy

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
)

const (
	tagKey   = "#EXT-X-KEY:"
	tagMedia = "#EXT-X-MEDIA:"

	masterMarker = "RESOLUTION="

	playlistPath = "/m3u8-proxy"
	segmentPath  = "/ts-proxy"
)

var (
	absoluteURLPattern = regexp.MustCompile(`https?://[^"\s]+`)
	uriAttrPattern     = regexp.MustCompile(`URI="([^"]*)"`)
)

// ClassifyLine reports how the rewriter should treat a raw playlist line.
func ClassifyLine(raw string) PlaylistLine {
	line := PlaylistLine{Raw: raw}
	switch {
	case strings.HasPrefix(raw, "#"):
		line.Kind = LineDirective
		switch {
		case strings.HasPrefix(raw, tagKey):
			line.Directive = DirectiveKey
		case strings.HasPrefix(raw, tagMedia):
			line.Directive = DirectiveMedia
		}
	case strings.TrimSpace(raw) != "":
		line.Kind = LineReference
	default:
		line.Kind = LineBlank
	}
	return line
}

// IsMasterPlaylist reports whether body lists variant streams rather than segments.
func IsMasterPlaylist(body string) bool {
	return strings.Contains(body, masterMarker)
}

// embeddedURL finds the URL carried by a directive. The first absolute URL
// wins; otherwise a relative URI attribute is resolved against base.
// It returns the exact text to replace and its absolute form.
func embeddedURL(line, base string) (original, absolute string, ok bool) {
	if loc := absoluteURLPattern.FindString(line); loc != "" {
		return loc, loc, true
	}
	m := uriAttrPattern.FindStringSubmatch(line)
	if m == nil || m[1] == "" {
		return "", "", false
	}
	abs, ok := ResolveURL(m[1], base)
	if !ok || !isHTTPURL(abs) {
		return "", "", false
	}
	return m[1], abs, true
}

// isHTTPURL reports whether u can be fetched through the proxy. Other
// schemes (skd://, data:) belong to the player.
func isHTTPURL(u string) bool {
	scheme, _, ok := strings.Cut(u, "://")
	if !ok {
		return false
	}
	scheme = strings.ToLower(scheme)
	return scheme == "http" || scheme == "https"
}

// EncodeHeaders renders the replay headers as the url-encoded JSON object
// carried in the headers query parameter.
func EncodeHeaders(headers map[string]string) string {
	if headers == nil {
		headers = map[string]string{}
	}
	b, err := json.Marshal(headers)
	if err != nil {
		return url.QueryEscape("{}")
	}
	return url.QueryEscape(string(b))
}

// DecodeHeaders parses the (already query-unescaped) headers parameter.
// An empty value yields an empty map.
func DecodeHeaders(raw string) (map[string]string, error) {
	headers := map[string]string{}
	if raw == "" {
		return headers, nil
	}
	if err := json.Unmarshal([]byte(raw), &headers); err != nil {
		return nil, ErrInvalidHeaders
	}
	return headers, nil
}

// proxyURL builds base + path + ?url=...&headers=... with encodedHeaders
// already escaped by EncodeHeaders.
func proxyURL(base, path, target, encodedHeaders string) string {
	var b strings.Builder
	b.Grow(len(base) + len(path) + len(target)*3/2 + len(encodedHeaders) + 16)
	b.WriteString(base)
	b.WriteString(path)
	b.WriteString("?url=")
	b.WriteString(url.QueryEscape(target))
	b.WriteString("&headers=")
	b.WriteString(encodedHeaders)
	return b.String()
}
