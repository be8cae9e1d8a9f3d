package session

import (
	"net/http"
	"time"
)

const (
	// CookieName is the name of the session cookie.
	CookieName = "pka_session"

	// CookieMaxAge is how long a session cookie stays valid in the browser.
	CookieMaxAge = 30 * 24 * time.Hour
)

// CookieOptions controls cookie attributes that differ between
// deployments. Secure should only be disabled for plain-HTTP development.
type CookieOptions struct {
	Secure bool
}

// SetCookie writes a signed session cookie for userID.
func (c *Codec) SetCookie(w http.ResponseWriter, userID string, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    c.Encode(userID),
		Path:     "/",
		MaxAge:   int(CookieMaxAge / time.Second),
		Expires:  time.Now().Add(CookieMaxAge),
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// UserIDFromRequest returns the verified user id from the request's
// session cookie, if any.
func (c *Codec) UserIDFromRequest(r *http.Request) (string, bool) {
	ck, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	return c.Decode(ck.Value)
}
