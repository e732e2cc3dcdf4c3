package proxy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"hls-proxy/internal/platform/metrics"
)

// Service ties together upstream fetching, playlist rewriting, the segment
// cache and the cookie session store.
type Service struct {
	fetcher  *Fetcher
	rewriter *Rewriter
	cache    *SegmentCache
	sessions *SessionStore
	log      *slog.Logger
	metrics  *metrics.Metrics
}

// NewService returns a Service. cache may be nil, in which case nothing is
// prefetched and segments are always fetched on demand.
func NewService(f *Fetcher, cache *SegmentCache, sessions *SessionStore, log *slog.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = slog.Default()
	}
	var pf Prefetcher
	if cache != nil {
		pf = cache
	}
	return &Service{
		fetcher:  f,
		rewriter: NewRewriter(pf, log),
		cache:    cache,
		sessions: sessions,
		log:      log,
		metrics:  m,
	}
}

// ProxyPlaylist fetches the playlist at target and rewrites it to route every
// reference through proxyBase. Keys and segments found are prefetched in the
// background.
func (s *Service) ProxyPlaylist(ctx context.Context, target string, headers map[string]string, proxyBase string) (RewriteResult, error) {
	resp, err := s.fetcher.Get(ctx, target, headers)
	if err != nil {
		return RewriteResult{}, fmt.Errorf("fetch playlist: %w", err)
	}

	res := s.rewriter.Rewrite(RewriteRequest{
		Body:      string(resp.Body),
		SourceURL: target,
		Headers:   headers,
		ProxyBase: proxyBase,
	})
	s.metrics.IncPlaylistsRewritten()
	return res, nil
}

// ProxySegment returns the bytes at target, from the cache when present.
func (s *Service) ProxySegment(ctx context.Context, target string, headers map[string]string) (*CacheEntry, bool, error) {
	if s.cache != nil {
		return s.cache.Fetch(ctx, target, headers)
	}
	resp, err := s.fetcher.Get(ctx, target, headers)
	if err != nil {
		return nil, false, err
	}
	return &CacheEntry{URL: target, Data: resp.Body, Header: resp.Header}, false, nil
}

// Forward sends r's method and body to destination with sanitized headers and
// the client's session cookies, then records any cookies the origin set.
// The caller must close the returned response body.
func (s *Service) Forward(ctx context.Context, r *http.Request, destination string) (*http.Response, error) {
	out := forwardHeaders(r.Header)
	if s.sessions != nil {
		if stored := s.sessions.Cookies(r.Header); stored != "" {
			if existing := out.Get("Cookie"); existing != "" {
				out.Set("Cookie", existing+"; "+stored)
			} else {
				out.Set("Cookie", stored)
			}
		}
	}

	var body io.Reader
	if r.Method != http.MethodGet && r.Method != http.MethodHead && r.Body != nil {
		body = r.Body
	}

	resp, err := s.fetcher.Do(ctx, r.Method, destination, out, body)
	if err != nil {
		return nil, err
	}

	if cookies := resp.Header.Values("Set-Cookie"); len(cookies) > 0 && s.sessions != nil {
		s.sessions.UpdateCookies(r.Header, cookies)
	}
	return resp, nil
}

// forwardHeaders is every non-blacklisted client header with ProxyHeaders
// laid over it. The proxy's own token never leaves.
func forwardHeaders(in http.Header) http.Header {
	out := make(http.Header)
	CopyAllowedHeaders(out, in)
	for k, vs := range ProxyHeaders(in) {
		out[k] = vs
	}
	out.Del(TokenHeader)
	return out
}
