package proxy

import (
	"log/slog"
	"strings"
)

// Prefetcher warms a cache with resources the client is about to request.
// Implementations must return immediately.
type Prefetcher interface {
	Prefetch(url string, headers map[string]string)
}

// RewriteRequest is the input to a single playlist rewrite.
type RewriteRequest struct {
	Body      string
	SourceURL string            // URL the playlist was fetched from; base for relative references
	Headers   map[string]string // replayed verbatim on every rewritten URL
	ProxyBase string            // scheme://host of this service
}

// RewriteResult is the rewritten playlist and the upstream URLs discovered in it.
type RewriteResult struct {
	Body     string
	Master   bool
	Keys     []string
	Segments []string
}

// Rewriter rewrites playlists and hands discovered keys and segments to a Prefetcher.
type Rewriter struct {
	prefetcher Prefetcher
	log        *slog.Logger
}

// NewRewriter returns a Rewriter. prefetcher may be nil to disable prefetching.
func NewRewriter(prefetcher Prefetcher, log *slog.Logger) *Rewriter {
	if log == nil {
		log = slog.Default()
	}
	return &Rewriter{prefetcher: prefetcher, log: log}
}

// Rewrite rewrites req.Body and schedules prefetches for every key and
// segment it found. It never waits for those prefetches.
func (rw *Rewriter) Rewrite(req RewriteRequest) RewriteResult {
	res := RewritePlaylist(req)
	if rw.prefetcher == nil {
		return res
	}

	for _, k := range res.Keys {
		rw.prefetcher.Prefetch(k, req.Headers)
	}
	if len(res.Segments) > 0 {
		rw.log.Debug("prefetching segments",
			slog.String("playlist", req.SourceURL),
			slog.Int("count", len(res.Segments)))
		for _, s := range res.Segments {
			rw.prefetcher.Prefetch(s, req.Headers)
		}
	}
	return res
}

// RewritePlaylist rewrites every URL in an HLS playlist so that it points back
// at the proxy. Output lines correspond one to one with input lines. A line
// whose URL cannot be resolved is emitted unchanged.
func RewritePlaylist(req RewriteRequest) RewriteResult {
	res := RewriteResult{Master: IsMasterPlaylist(req.Body)}
	encHeaders := EncodeHeaders(req.Headers)

	lines := strings.Split(req.Body, "\n")
	out := make([]string, len(lines))

	for i, raw := range lines {
		line := ClassifyLine(raw)
		out[i] = raw

		switch line.Kind {
		case LineDirective:
			switch {
			case line.Directive == DirectiveKey:
				original, abs, ok := embeddedURL(raw, req.SourceURL)
				if !ok {
					continue
				}
				out[i] = replaceEmbedded(raw, original, proxyURL(req.ProxyBase, segmentPath, abs, encHeaders))
				res.Keys = append(res.Keys, abs)

			case line.Directive == DirectiveMedia && res.Master:
				original, abs, ok := embeddedURL(raw, req.SourceURL)
				if !ok {
					continue
				}
				out[i] = replaceEmbedded(raw, original, proxyURL(req.ProxyBase, playlistPath, abs, encHeaders))
			}

		case LineReference:
			abs, ok := ResolveURL(strings.TrimSpace(raw), req.SourceURL)
			if !ok || !isHTTPURL(abs) {
				continue
			}
			if res.Master {
				out[i] = proxyURL(req.ProxyBase, playlistPath, abs, encHeaders)
				continue
			}
			out[i] = proxyURL(req.ProxyBase, segmentPath, abs, encHeaders)
			res.Segments = append(res.Segments, abs)
		}
	}

	res.Body = strings.Join(out, "\n")
	return res
}

// replaceEmbedded swaps the URI attribute value of a directive line, falling
// back to the first bare occurrence for unquoted absolute URLs.
func replaceEmbedded(raw, original, replacement string) string {
	quoted := `"` + original + `"`
	if strings.Contains(raw, quoted) {
		return strings.Replace(raw, quoted, `"`+replacement+`"`, 1)
	}
	return strings.Replace(raw, original, replacement, 1)
}
