package middleware

import (
	"crypto/rand"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
)

const ContextGuestID = "guest_id"

type CookieConfig struct {
	Name   string
	Domain string
	Secure bool
	MaxAge time.Duration
}

// SetCookie writes an HttpOnly, SameSite=Lax cookie. A negative maxAge deletes it.
func SetCookie(c *gin.Context, cfg CookieConfig, value string, maxAge time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.Name, value, int(maxAge.Seconds()), "/", cfg.Domain, cfg.Secure, true)
}

func ClearCookie(c *gin.Context, cfg CookieConfig) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.Name, "", -1, "/", cfg.Domain, cfg.Secure, true)
}

// GuestSession gives callers without a session a ULID keyed guest id. It must
// run after the session middleware.
func GuestSession(cfg CookieConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := ClaimsFrom(c); ok {
			c.Next()
			return
		}

		id, err := c.Cookie(cfg.Name)
		if _, perr := ulid.ParseStrict(id); err != nil || perr != nil {
			id = ulid.MustNew(ulid.Now(), rand.Reader).String()
			SetCookie(c, cfg, id, cfg.MaxAge)
		}

		c.Set(ContextGuestID, id)
		c.Next()
	}
}

func GuestIDFrom(c *gin.Context) string {
	return c.GetString(ContextGuestID)
}
