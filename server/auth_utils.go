package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// browserCookieMaxAge is long lived; the session keys behind it carry their own TTL
const browserCookieMaxAge = 60 * 60 * 24 * 30

// browserID returns the id in the browser cookie, or "" when there is none or
// it is not one we issued
func (s *Server) browserID(r *http.Request) string {
	cookie, err := r.Cookie(s.config.GetCookieName())
	if err != nil || cookie.Value == "" {
		return ""
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		return ""
	}
	return cookie.Value
}

func (s *Server) SetBrowserCookie(w http.ResponseWriter, r *http.Request, id string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.GetCookieName(),
		Value:    id,
		Path:     s.cookiePath(),
		HttpOnly: true,
		Secure:   s.config.GetCookieSecure() || getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func (s *Server) cookiePath() string {
	if s.basePath == "" {
		return "/"
	}
	return s.basePath
}

func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	return "http"
}

// safeNext accepts only a relative portal path so the login page cannot be
// used as an open redirect
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return ""
	}
	return next
}

// withQuery appends a single query parameter to path
func withQuery(path, key, value string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + key + "=" + url.QueryEscape(value)
}

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent) // 204 - no content, just redirect instruction
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// redirectWithError helper for htmx-aware error redirects
func redirectWithError(w http.ResponseWriter, r *http.Request, path, errorMsg string) {
	redirectSuccess(w, r, withQuery(path, "error", errorMsg))
}

// redirectWithNotice carries a one-off success message to the next page
func redirectWithNotice(w http.ResponseWriter, r *http.Request, path, notice string) {
	redirectSuccess(w, r, withQuery(path, "notice", notice))
}

// isHTMXRequest checks if the request was initiated by HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
