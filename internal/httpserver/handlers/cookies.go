package handlers

import (
	"net/http"
	"time"

	"authgate/internal/auth"
)

// CookieConfig drives the auth cookie attributes. Secure is on in production.
// The refresh cookie's lifetime follows the issued token, so only the access
// TTL is fixed here.
type CookieConfig struct {
	Secure    bool
	AccessTTL time.Duration
}

func authCookie(name, value string, maxAge time.Duration, secure bool) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	if value == "" {
		c.MaxAge = -1
	} else {
		c.MaxAge = int(maxAge / time.Second)
	}
	return c
}

func setAuthCookies(w http.ResponseWriter, cc CookieConfig, access, refresh string, refreshTTL time.Duration) {
	http.SetCookie(w, authCookie(auth.AccessTokenCookie, access, cc.AccessTTL, cc.Secure))
	http.SetCookie(w, authCookie(auth.RefreshTokenCookie, refresh, refreshTTL, cc.Secure))
}

func clearAuthCookies(w http.ResponseWriter, cc CookieConfig) {
	http.SetCookie(w, authCookie(auth.AccessTokenCookie, "", 0, cc.Secure))
	http.SetCookie(w, authCookie(auth.RefreshTokenCookie, "", 0, cc.Secure))
}
