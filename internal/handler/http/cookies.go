package http

import (
	"net/http"
	"time"
)

// Cookie names used by the auth surface.
const (
	accessTokenCookie = "accessToken"
	csrfCookie        = "XSRF-TOKEN"
)

// CookieConfig controls the attributes of auth cookies.
type CookieConfig struct {
	Secure   bool
	SameSite string
	TTL      time.Duration
}

// CookieManager writes and clears the session and CSRF cookies.
type CookieManager struct {
	cfg      CookieConfig
	sameSite http.SameSite
}

// NewCookieManager creates a cookie manager. Unknown same-site values fall
// back to lax.
func NewCookieManager(cfg CookieConfig) *CookieManager {
	sameSite := http.SameSiteLaxMode
	switch cfg.SameSite {
	case "strict":
		sameSite = http.SameSiteStrictMode
	case "none":
		sameSite = http.SameSiteNoneMode
	}
	return &CookieManager{cfg: cfg, sameSite: sameSite}
}

// SetAccessToken writes the session cookie. It is httpOnly so scripts never
// see the token.
func (m *CookieManager) SetAccessToken(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: m.sameSite,
	})
}

// ClearAccessToken expires the session cookie.
func (m *CookieManager) ClearAccessToken(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: m.sameSite,
	})
}

// SetCSRF writes the CSRF cookie. It is deliberately not httpOnly; the
// double-submit scheme requires the frontend to read it back into a header.
func (m *CookieManager) SetCSRF(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.cfg.TTL.Seconds()),
		HttpOnly: false,
		Secure:   m.cfg.Secure,
		SameSite: m.sameSite,
	})
}
