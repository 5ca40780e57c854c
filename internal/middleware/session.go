package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flicky/grocer/internal/config"
)

const sessionIDKey = "sessionID"

// Session makes sure every request carries an anonymous session id. The
// cart is keyed by it, so it survives login and outlives the JWT.
func Session(cfg config.SessionConfig) gin.HandlerFunc {
	maxAge := int(cfg.CartTTL.Seconds())
	return func(c *gin.Context) {
		sid, err := c.Cookie(cfg.CookieName)
		sid = strings.TrimSpace(sid)
		if err != nil || uuid.Validate(sid) != nil {
			sid = uuid.NewString()
		}
		// Refresh on every request so the cookie lives as long as the cart.
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cfg.CookieName, sid, maxAge, "/", "", cfg.Secure, true)
		c.Set(sessionIDKey, sid)
		c.Next()
	}
}

func GetSessionID(c *gin.Context) string {
	sid, _ := c.Get(sessionIDKey)
	s, _ := sid.(string)
	return s
}
