package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// Handler exposes the proxy endpoints. Routing is left to the caller (go-chi in cmd/server).
type Handler struct {
	svc     *Service
	auth    Authorizer
	log     *slog.Logger
	version string
}

// NewHandler returns a Handler. auth may be nil to allow every generic proxy
// request; log defaults to slog.Default.
func NewHandler(svc *Service, auth Authorizer, log *slog.Logger, version string) *Handler {
	if auth == nil {
		auth = AllowAll{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, auth: auth, log: log, version: version}
}

// Playlist handles GET /m3u8-proxy?url=...&headers=...
func (h *Handler) Playlist(w http.ResponseWriter, r *http.Request) {
	target, headers, err := parseTarget(r)
	if err != nil {
		h.log.Debug("invalid playlist request", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, clientMessage(err))
		return
	}

	res, err := h.svc.ProxyPlaylist(r.Context(), target, headers, proxyBase(r))
	if err != nil {
		h.log.Error("playlist proxy failed", slog.String("url", target), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.log.Debug("playlist rewritten",
		slog.String("url", target),
		slog.Bool("master", res.Master),
		slog.Int("segments", len(res.Segments)),
		slog.Int("keys", len(res.Keys)))

	applyHeaders(w, PlaylistHeaders())
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, res.Body)
}

// Segment handles GET /ts-proxy?url=...&headers=... serving segment and key
// bytes, from the prefetch cache when possible.
func (h *Handler) Segment(w http.ResponseWriter, r *http.Request) {
	target, headers, err := parseTarget(r)
	if err != nil {
		h.log.Debug("invalid segment request", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, clientMessage(err))
		return
	}

	entry, hit, err := h.svc.ProxySegment(r.Context(), target, headers)
	if err != nil {
		h.log.Error("segment proxy failed", slog.String("url", target), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	applyHeaders(w, SegmentHeaders(entry.Header))
	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(entry.Data)
	}
}

// Forward handles the generic proxy at /?destination=... Without a
// destination it reports that the proxy is alive.
func (h *Handler) Forward(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}

	destination := r.URL.Query().Get("destination")
	if destination == "" {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": fmt.Sprintf("Proxy is working as expected (v%s)", h.version),
		})
		return
	}

	if !h.auth.Authorize(r) {
		writeError(w, http.StatusUnauthorized, "Invalid or missing token")
		return
	}

	resp, err := h.svc.Forward(r.Context(), r, destination)
	if err != nil {
		h.log.Error("forward failed", slog.String("destination", destination), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer resp.Body.Close()

	CopyAllowedHeaders(w.Header(), resp.Header)
	applyHeaders(w, AfterResponseHeaders(resp.Header, resp.Request.URL.String()))
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.log.Debug("forward body copy interrupted", slog.String("destination", destination), slog.String("error", err.Error()))
	}
}

// parseTarget reads the url and headers query parameters shared by the
// playlist and segment endpoints.
func parseTarget(r *http.Request) (string, map[string]string, error) {
	q := r.URL.Query()
	target := q.Get("url")
	if target == "" {
		return "", nil, ErrMissingURL
	}
	headers, err := DecodeHeaders(q.Get("headers"))
	if err != nil {
		return "", nil, err
	}
	return target, headers, nil
}

// proxyBase is the scheme://host clients use to reach this service.
func proxyBase(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = strings.TrimSpace(strings.Split(p, ",")[0])
	}
	return scheme + "://" + r.Host
}

func clientMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingURL):
		return "URL parameter is required"
	case errors.Is(err, ErrInvalidHeaders):
		return "Invalid headers format"
	default:
		return "Bad Request"
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
