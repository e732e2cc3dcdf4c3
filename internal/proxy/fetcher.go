package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxRedirects = 10

// DefaultMaxBodyBytes caps a buffered upstream body when no limit is configured.
const DefaultMaxBodyBytes = 64 << 20

// UpstreamResponse is a fully buffered origin response.
type UpstreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	FinalURL   string // after redirects
}

// Fetcher performs origin requests on behalf of clients.
type Fetcher struct {
	client  *http.Client
	maxBody int64
}

// NewFetcher returns a Fetcher whose requests give up after timeout and whose
// buffered bodies may not exceed maxBody bytes (<= 0 selects DefaultMaxBodyBytes).
func NewFetcher(timeout time.Duration, maxBody int64) *Fetcher {
	return NewFetcherWithClient(&http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}, maxBody)
}

// NewFetcherWithClient wraps an existing client. Useful in tests.
func NewFetcherWithClient(c *http.Client, maxBody int64) *Fetcher {
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	return &Fetcher{client: c, maxBody: maxBody}
}

// Get fetches target with the default user agent, overridden by any of the
// given headers, and buffers the body. A non-2xx status is an *UpstreamError;
// a body over the limit is ErrBodyTooLarge.
func (f *Fetcher) Get(ctx context.Context, target string, headers map[string]string) (*UpstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", target, err)
	}
	req.Header.Set("User-Agent", DefaultUserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &UpstreamError{URL: target, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}
	if int64(len(body)) > f.maxBody {
		return nil, fmt.Errorf("read %s: %w", target, ErrBodyTooLarge)
	}

	return &UpstreamResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		FinalURL:   resp.Request.URL.String(),
	}, nil
}

// Do sends an arbitrary request and returns the unread response. The caller
// owns the body. Any status is returned as-is.
func (f *Fetcher) Do(ctx context.Context, method, target string, header http.Header, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", target, err)
	}
	if header != nil {
		req.Header = header
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forward to %s: %w", target, err)
	}
	return resp, nil
}
