package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"hls-proxy/internal/platform/metrics"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/sync/singleflight"
)

// Defaults applied by NewSegmentCache for zero CacheOptions fields.
const (
	DefaultCacheMaxBytes   = 256 << 20
	DefaultPrefetchWorkers = 8
	DefaultFetchTimeout    = 30 * time.Second

	// typical segment size, used only to size ristretto's admission counters
	avgEntryBytes = 512 << 10
)

// CacheOptions bounds the SegmentCache.
type CacheOptions struct {
	MaxBytes     int64         // total payload+header bytes held
	TTL          time.Duration // zero keeps entries until evicted
	Workers      int           // concurrent prefetch fetches
	FetchTimeout time.Duration // per upstream fetch, independent of the requesting client
}

// SegmentCache holds segment and key bytes fetched ahead of the client.
// Population is best effort: a failed prefetch leaves no entry and the
// caller falls back to Fetch.
type SegmentCache struct {
	cache   *ristretto.Cache
	ttl     time.Duration
	fetcher *Fetcher
	log     *slog.Logger
	metrics *metrics.Metrics

	flights singleflight.Group
	pending sync.Map // url -> struct{}, prefetches scheduled but not finished
	sem     chan struct{}
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSegmentCache returns a SegmentCache fetching through f. m may be nil.
func NewSegmentCache(f *Fetcher, opts CacheOptions, log *slog.Logger, m *metrics.Metrics) (*SegmentCache, error) {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultCacheMaxBytes
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultPrefetchWorkers
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if log == nil {
		log = slog.Default()
	}

	counters := opts.MaxBytes / avgEntryBytes * 10
	if counters < 1000 {
		counters = 1000
	}
	rc, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        counters,
		MaxCost:            opts.MaxBytes,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("init segment cache: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &SegmentCache{
		cache:   rc,
		ttl:     opts.TTL,
		fetcher: f,
		log:     log,
		metrics: m,
		sem:     make(chan struct{}, opts.Workers),
		timeout: opts.FetchTimeout,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Lookup returns the cached entry for url, if any.
func (c *SegmentCache) Lookup(url string) (*CacheEntry, bool) {
	v, ok := c.cache.Get(url)
	if !ok {
		return nil, false
	}
	e, ok := v.(*CacheEntry)
	return e, ok
}

// Prefetch schedules a background fetch of url. It returns immediately and is
// a no-op when url is already cached or already scheduled.
func (c *SegmentCache) Prefetch(url string, headers map[string]string) {
	if _, ok := c.Lookup(url); ok {
		return
	}
	if _, loaded := c.pending.LoadOrStore(url, struct{}{}); loaded {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.pending.Delete(url)
		defer func() {
			if r := recover(); r != nil {
				c.log.Error("prefetch panicked", slog.String("url", url), slog.Any("panic", r))
			}
		}()

		select {
		case c.sem <- struct{}{}:
		case <-c.ctx.Done():
			return
		}
		defer func() { <-c.sem }()

		if _, err := c.load(c.ctx, url, headers); err != nil {
			c.metrics.IncPrefetchFailures()
			c.log.Warn("prefetch failed", slog.String("url", url), slog.String("error", err.Error()))
			return
		}
		c.metrics.IncPrefetchSuccess()
		c.log.Debug("prefetched", slog.String("url", url))
	}()
}

// Fetch returns the entry for url from the cache, or fetches and stores it.
// A fetch already in flight for url is joined rather than repeated.
// hit reports whether the entry was served without waiting on the origin.
func (c *SegmentCache) Fetch(ctx context.Context, url string, headers map[string]string) (entry *CacheEntry, hit bool, err error) {
	if e, ok := c.Lookup(url); ok {
		c.metrics.IncCacheHits()
		return e, true, nil
	}
	c.metrics.IncCacheMisses()
	e, err := c.load(ctx, url, headers)
	return e, false, err
}

// load joins or starts the single upstream fetch for url. The fetch runs on
// the cache's context and timeout; ctx only bounds how long this caller waits.
func (c *SegmentCache) load(ctx context.Context, url string, headers map[string]string) (*CacheEntry, error) {
	ch := c.flights.DoChan(url, func() (interface{}, error) {
		if e, ok := c.Lookup(url); ok {
			return e, nil
		}
		fctx, cancel := context.WithTimeout(c.ctx, c.timeout)
		defer cancel()

		resp, err := c.fetcher.Get(fctx, url, headers)
		if err != nil {
			return nil, err
		}
		e := &CacheEntry{
			URL:       url,
			Data:      resp.Body,
			Header:    resp.Header.Clone(),
			FetchedAt: time.Now().UTC(),
		}
		c.store(e)
		return e, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*CacheEntry), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *SegmentCache) store(e *CacheEntry) {
	if c.ctx.Err() != nil {
		return
	}
	if c.ttl > 0 {
		c.cache.SetWithTTL(e.URL, e, e.size(), c.ttl)
	} else {
		c.cache.Set(e.URL, e, e.size())
	}
	// make the entry visible to Lookup before the flight completes
	c.cache.Wait()
}

// Close stops scheduling, cancels in-flight prefetches, waits for them, and
// releases the cache.
func (c *SegmentCache) Close() {
	c.cancel()
	c.wg.Wait()
	c.cache.Close()
}
