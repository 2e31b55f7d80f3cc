package session

import (
	"errors"
	"net/http"
	"time"
)

// CookieName is the name of the session cookie.
const CookieName = "rolegate_session"

// ErrNoCookie is returned when the request carries no session cookie.
var ErrNoCookie = errors.New("no session cookie")

// Cookies moves session IDs in and out of HTTP cookies.
type Cookies struct {
	codec  *Codec
	secure bool
}

func NewCookies(codec *Codec, secure bool) *Cookies {
	return &Cookies{codec: codec, secure: secure}
}

// Set writes a signed cookie for sessionID valid until expiresAt.
func (c *Cookies) Set(w http.ResponseWriter, sessionID string, expiresAt time.Time) error {
	value, err := c.codec.Encode(sessionID, expiresAt)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Read returns the session ID carried by the request's cookie.
func (c *Cookies) Read(r *http.Request) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", ErrNoCookie
	}
	return c.codec.Decode(cookie.Value)
}

// Clear instructs the browser to drop the session cookie.
func (c *Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
