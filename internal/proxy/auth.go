package proxy

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// TokenHeader carries the proxy token on generic proxy requests.
const TokenHeader = "X-Token"

// Authorizer decides whether a generic proxy request may reach its destination.
type Authorizer interface {
	Authorize(r *http.Request) bool
}

// AllowAll authorizes every request.
type AllowAll struct{}

// Authorize implements Authorizer.
func (AllowAll) Authorize(*http.Request) bool { return true }

// TokenAuthorizer requires a shared token in the X-Token header or as a
// bearer Authorization header.
type TokenAuthorizer struct {
	token []byte
}

// NewAuthorizer returns AllowAll for an empty token, otherwise a TokenAuthorizer.
func NewAuthorizer(token string) Authorizer {
	if token == "" {
		return AllowAll{}
	}
	return &TokenAuthorizer{token: []byte(token)}
}

// Authorize implements Authorizer.
func (a *TokenAuthorizer) Authorize(r *http.Request) bool {
	got := r.Header.Get(TokenHeader)
	if got == "" {
		got = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), a.token) == 1
}
