package proxy

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultSessionTimeout is how long an untouched session survives.
	DefaultSessionTimeout = 30 * time.Minute

	// DefaultSweepInterval is how often expired sessions are removed.
	DefaultSweepInterval = 5 * time.Minute

	maxSessionKeyLen = 64
)

var sessionKeyUnsafe = regexp.MustCompile(`[^a-zA-Z0-9-]`)

// DeriveSessionKey computes the session identity of a client from its
// User-Agent and forwarded address. Nothing is issued to the client, so two
// browsers of the same build behind one egress IP share a session.
func DeriveSessionKey(h http.Header) SessionKey {
	ua := h.Get("User-Agent")
	if ua == "" {
		ua = "unknown"
	}
	ip := h.Get("X-Forwarded-For")
	if ip == "" {
		ip = h.Get("X-Real-Ip")
	}
	if ip == "" {
		ip = "unknown"
	}

	key := sessionKeyUnsafe.ReplaceAllString(ua+"-"+ip, "")
	if len(key) > maxSessionKeyLen {
		key = key[:maxSessionKeyLen]
	}
	return SessionKey(key)
}

// SessionStore keeps the cookies each client has been given by origins and
// replays them on later requests.
type SessionStore struct {
	mu      sync.RWMutex
	store   Store
	timeout time.Duration
	now     func() time.Time
	log     *slog.Logger
}

// NewSessionStore constructs a SessionStore backed by an InMemoryStore.
// A timeout <= 0 selects DefaultSessionTimeout.
func NewSessionStore(timeout time.Duration, log *slog.Logger) *SessionStore {
	return NewSessionStoreWithStore(NewInMemoryStore(), timeout, log)
}

// NewSessionStoreWithStore constructs a SessionStore that uses the given Store.
func NewSessionStoreWithStore(store Store, timeout time.Duration, log *slog.Logger) *SessionStore {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &SessionStore{
		store:   store,
		timeout: timeout,
		now:     time.Now,
		log:     log,
	}
}

// Cookies returns the stored cookies for the client identified by h as a
// Cookie header value, or "" when there are none.
func (s *SessionStore) Cookies(h http.Header) string {
	sess := s.touch(DeriveSessionKey(h))

	sess.mu.Lock()
	defer sess.mu.Unlock()

	pairs := make([]string, 0, len(sess.order))
	for _, name := range sess.order {
		pairs = append(pairs, name+"="+sess.cookies[name])
	}
	return strings.Join(pairs, "; ")
}

// UpdateCookies records every name=value pair from the given Set-Cookie
// values. Attributes are dropped; a later value for a name replaces the earlier one.
func (s *SessionStore) UpdateCookies(h http.Header, setCookies []string) {
	key := DeriveSessionKey(h)
	sess := s.touch(key)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	for _, raw := range setCookies {
		name, value, ok := parseSetCookie(raw)
		if !ok {
			s.log.Debug("ignoring malformed set-cookie", slog.String("session", string(key)))
			continue
		}
		if _, exists := sess.cookies[name]; !exists {
			sess.order = append(sess.order, name)
		}
		sess.cookies[name] = value
	}
	s.log.Debug("session cookies updated",
		slog.String("session", string(key)),
		slog.Int("cookies", len(sess.cookies)))
}

// Sweep removes sessions idle for longer than the timeout and returns how
// many were removed.
func (s *SessionStore) Sweep() int {
	cutoff := s.now().Add(-s.timeout)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, key := range s.store.Keys() {
		sess, ok := s.store.Get(key)
		if !ok {
			continue
		}
		if sess.LastAccess().Before(cutoff) {
			s.store.Delete(key)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is cancelled.
func (s *SessionStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.log.Info("expired sessions removed", slog.Int("count", n), slog.Int("remaining", s.Len()))
			}
		}
	}
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.store.Keys())
}

// touch returns the session for key, creating it if needed, and marks it
// accessed. The access time is written under s.mu so a concurrent Sweep
// cannot remove a session that is being handed out.
func (s *SessionStore) touch(key SessionKey) *Session {
	now := s.now()

	s.mu.RLock()
	sess, ok := s.store.Get(key)
	if ok {
		sess.setLastAccess(now)
	}
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok = s.store.Get(key); !ok {
		sess = newSession(key, now)
		s.store.Set(sess)
		s.log.Debug("session created", slog.String("session", string(key)))
	}
	sess.setLastAccess(now)
	return sess
}

// parseSetCookie extracts the leading name=value pair of a Set-Cookie value.
func parseSetCookie(raw string) (name, value string, ok bool) {
	pair, _, _ := strings.Cut(raw, ";")
	name, value, ok = strings.Cut(pair, "=")
	if !ok {
		return "", "", false
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(value), true
}
