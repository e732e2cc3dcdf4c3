package proxy

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// LineKind classifies a single playlist line.
type LineKind int

const (
	LineBlank LineKind = iota
	LineDirective
	LineReference
)

// DirectiveKind narrows a directive line to the tags the rewriter acts on.
type DirectiveKind int

const (
	DirectiveOther DirectiveKind = iota
	DirectiveKey
	DirectiveMedia
)

// PlaylistLine is one line of an HLS manifest together with its classification.
type PlaylistLine struct {
	Raw       string
	Kind      LineKind
	Directive DirectiveKind
}

// CacheEntry is a fetched upstream resource held by the SegmentCache.
// Entries are never mutated once stored.
type CacheEntry struct {
	URL       string
	Data      []byte
	Header    http.Header
	FetchedAt time.Time
}

// size is the cost charged against the cache byte budget.
func (e *CacheEntry) size() int64 {
	n := int64(len(e.Data))
	for k, vs := range e.Header {
		for _, v := range vs {
			n += int64(len(k) + len(v))
		}
	}
	return n
}

// SessionKey is the derived, non-cryptographic identity of a client.
type SessionKey string

// Session holds the cookie jar replayed for one SessionKey.
type Session struct {
	Key SessionKey

	mu         sync.Mutex
	cookies    map[string]string
	order      []string
	lastAccess time.Time
}

func newSession(key SessionKey, now time.Time) *Session {
	return &Session{
		Key:        key,
		cookies:    make(map[string]string),
		lastAccess: now,
	}
}

// LastAccess reports when the session was last read or written.
func (s *Session) LastAccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

func (s *Session) setLastAccess(t time.Time) {
	s.mu.Lock()
	s.lastAccess = t
	s.mu.Unlock()
}

var (
	// ErrMissingURL is returned when the url query parameter is absent.
	ErrMissingURL = errors.New("url parameter is required")

	// ErrInvalidHeaders is returned when the headers query parameter is not a
	// JSON object of strings.
	ErrInvalidHeaders = errors.New("invalid headers format")

	// ErrBodyTooLarge is returned when an upstream body exceeds the fetcher's limit.
	ErrBodyTooLarge = errors.New("upstream body exceeds size limit")
)

// UpstreamError reports a non-2xx response from the origin.
type UpstreamError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s returned %s", e.URL, e.Status)
}
