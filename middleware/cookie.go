package middleware

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	goGate "github.com/MrEthical07/goGate"
	"github.com/gorilla/securecookie"
)

// CookieCodec carries the session key in a signed (and, with a block key,
// encrypted) cookie. The cookie value is never the raw key.
type CookieCodec struct {
	cfg goGate.CookieConfig
	sc  *securecookie.SecureCookie
}

// NewCookieCodec decodes the hex keys in cfg. An empty HashKey produces a
// random per-process key, so sessions do not survive a restart.
func NewCookieCodec(cfg goGate.CookieConfig) (*CookieCodec, error) {
	hashKey, err := decodeKey(cfg.HashKey)
	if err != nil {
		return nil, fmt.Errorf("cookie hash key: %w", err)
	}
	if hashKey == nil {
		hashKey = securecookie.GenerateRandomKey(32)
	}
	blockKey, err := decodeKey(cfg.BlockKey)
	if err != nil {
		return nil, fmt.Errorf("cookie block key: %w", err)
	}

	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(0)
	return &CookieCodec{cfg: cfg, sc: sc}, nil
}

func decodeKey(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}

// Read returns the session key carried by r, or "" when the cookie is
// missing or fails verification.
func (c *CookieCodec) Read(r *http.Request) string {
	cookie, err := r.Cookie(c.cfg.Name)
	if err != nil {
		return ""
	}
	var sid string
	if err := c.sc.Decode(c.cfg.Name, cookie.Value, &sid); err != nil {
		return ""
	}
	return sid
}

// Write sets the session cookie. A positive maxAge makes the cookie
// persistent; zero leaves it a browser-session cookie.
func (c *CookieCodec) Write(w http.ResponseWriter, sessionID string, maxAge time.Duration) error {
	value, err := c.sc.Encode(c.cfg.Name, sessionID)
	if err != nil {
		return err
	}
	cookie := c.base()
	cookie.Value = value
	if maxAge > 0 {
		cookie.MaxAge = int(maxAge / time.Second)
		cookie.Expires = time.Now().Add(maxAge)
	}
	http.SetCookie(w, cookie)
	return nil
}

// Clear expires the session cookie.
func (c *CookieCodec) Clear(w http.ResponseWriter) {
	cookie := c.base()
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0)
	http.SetCookie(w, cookie)
}

func (c *CookieCodec) base() *http.Cookie {
	return &http.Cookie{
		Name:     c.cfg.Name,
		Path:     c.cfg.Path,
		Domain:   c.cfg.Domain,
		Secure:   c.cfg.Secure,
		HttpOnly: true,
		SameSite: c.cfg.SameSiteMode(),
	}
}
