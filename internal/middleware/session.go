package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"estate-dashboard/internal/model"
)

const CookieName = "estate_session"

const sessionKey = "session"

// Session loads the session named by the cookie, if any, and puts it on
// both the echo context and the request context. It never rejects; the
// guards decide what an anonymous request may do.
func Session(sessions SessionReader, secret string, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ck, err := c.Cookie(CookieName)
			if err != nil || ck.Value == "" {
				return next(c)
			}
			req := c.Request()
			s, err := Resolve(req.Context(), sessions, secret, ck.Value)
			if err != nil {
				log.Debug().Err(err).Msg("dropping stale session cookie")
				ClearCookie(c)
				return next(c)
			}
			c.Set(sessionKey, s)
			c.SetRequest(req.WithContext(WithSession(req.Context(), s)))
			return next(c)
		}
	}
}

func CurrentSession(c echo.Context) *model.Session {
	s, _ := c.Get(sessionKey).(*model.Session)
	return s
}

func SetCookie(c echo.Context, value string, ttl time.Duration) {
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.Scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	})
}
