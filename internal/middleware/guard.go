package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"estate-dashboard/internal/model"
	"estate-dashboard/internal/policy"
)

// Denied is the body of a rejected API call. The client navigates to Redirect.
type Denied struct {
	Error    string        `json:"error"`
	Redirect string        `json:"redirect,omitempty"`
	Notice   *model.Notice `json:"notice,omitempty"`
}

// Pages applies the route guard to page navigations. Redirects use 303 so the
// browser replaces the entry rather than stacking one per bounce.
func Pages(t *policy.Table) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			d := t.Check(CurrentSession(c), c.Request().URL.Path)
			switch d.Verdict {
			case policy.Redirect:
				return c.Redirect(http.StatusSeeOther, d.Location)
			case policy.NotFound:
				return echo.ErrNotFound
			}
			return next(c)
		}
	}
}

type ScopeFunc func(c echo.Context) string

func Scope(name string) ScopeFunc {
	return func(echo.Context) string { return name }
}

// Require rejects API calls whose session lacks the scope.
func Require(t *policy.Table, scope ScopeFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s := CurrentSession(c)
			err := t.Permit(s, scope(c))
			switch {
			case err == nil:
				return next(c)
			case errors.Is(err, policy.ErrNoSession):
				return c.JSON(http.StatusUnauthorized, Denied{Error: "sign in required", Redirect: t.SignIn})
			default:
				return c.JSON(http.StatusForbidden, Denied{
					Error:    "not allowed",
					Redirect: t.HomeFor(s.Role),
					Notice:   model.Failure("You do not have access to that"),
				})
			}
		}
	}
}

// SignedIn requires any session.
func SignedIn(t *policy.Table) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if s := CurrentSession(c); s == nil || s.Token == "" {
				return c.JSON(http.StatusUnauthorized, Denied{Error: "sign in required", Redirect: t.SignIn})
			}
			return next(c)
		}
	}
}
