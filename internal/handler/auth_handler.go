package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"estate-dashboard/internal/auth"
	"estate-dashboard/internal/backend"
	"estate-dashboard/internal/middleware"
	"estate-dashboard/internal/model"
	"estate-dashboard/internal/session"
)

type signInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type sessionView struct {
	Role      model.Role `json:"role"`
	UserID    string     `json:"userId"`
	UserName  string     `json:"userName"`
	ExpiresAt time.Time  `json:"expiresAt"`
	Home      string     `json:"home"`
}

func (h *Handler) view(s *model.Session) sessionView {
	return sessionView{
		Role:      s.Role,
		UserID:    s.UserID,
		UserName:  s.UserName,
		ExpiresAt: s.ExpiresAt,
		Home:      h.policy.HomeFor(s.Role),
	}
}

func (h *Handler) SignIn(c echo.Context) error {
	var req signInRequest
	if err := bind(c, &req); err != nil {
		return h.fail(c, err, "Sign in failed")
	}

	ctx := c.Request().Context()
	res, err := h.backend.Login(ctx, req.Email, req.Password)
	if err != nil {
		st := backend.StatusOf(err)
		if st == http.StatusUnauthorized || st == http.StatusBadRequest || st == http.StatusNotFound || errors.Is(err, backend.ErrBadLogin) {
			h.log.Info().Str("email", req.Email).Msg("sign in rejected")
			return c.JSON(http.StatusUnauthorized, reply{
				Error:  "invalid credentials",
				Notice: model.Failure("Invalid email or password"),
			})
		}
		return h.fail(c, err, "Sign in failed")
	}

	s, err := h.sessions.Create(ctx, res.Token, res.Role, res.UserID, res.UserName)
	if err != nil {
		return h.fail(c, err, "Sign in failed")
	}
	tok, err := auth.MakeToken(s.ID, s.UserID, h.secret, h.sessions.TTL())
	if err != nil {
		return h.fail(c, err, "Sign in failed")
	}
	middleware.SetCookie(c, tok, h.sessions.TTL())

	h.log.Info().Str("user_id", s.UserID).Str("role", string(s.Role)).Msg("signed in")
	return c.JSON(http.StatusOK, reply{
		Data:   h.view(s),
		Notice: model.Success("Welcome back, " + displayName(s)),
	})
}

func displayName(s *model.Session) string {
	if s.UserName != "" {
		return s.UserName
	}
	return "there"
}

// SignOut ends the current session, or every session of the user with ?all=true.
func (h *Handler) SignOut(c echo.Context) error {
	s := middleware.CurrentSession(c)
	ctx := c.Request().Context()

	var err error
	if c.QueryParam("all") == "true" && s.UserID != "" {
		err = h.sessions.DestroyUser(ctx, s.UserID)
	} else {
		err = h.sessions.Destroy(ctx, s.ID)
	}
	middleware.ClearCookie(c)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return h.fail(c, err, "Sign out failed")
	}
	return c.JSON(http.StatusOK, reply{
		Data:   map[string]string{"redirect": h.policy.SignIn},
		Notice: model.Success("Signed out"),
	})
}

func (h *Handler) Session(c echo.Context) error {
	return c.JSON(http.StatusOK, reply{Data: h.view(middleware.CurrentSession(c))})
}

// Events streams the session's lifecycle so every open tab leaves together.
func (h *Handler) Events(c echo.Context) error {
	s := middleware.CurrentSession(c)
	events, cancel := h.sessions.Subscribe(s.ID)
	defer cancel()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(ev session.Event) {
		b, _ := json.Marshal(ev)
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, b)
		w.Flush()
	}

	ctx := c.Request().Context()
	// the session may have ended between the guard and Subscribe
	if _, err := h.sessions.Get(ctx, s.ID); err != nil {
		kind := session.SignedOut
		if errors.Is(err, session.ErrExpired) {
			kind = session.Expired
		}
		send(session.Event{Kind: kind, SessionID: s.ID, UserID: s.UserID})
		return nil
	}
	fmt.Fprint(w, "event: ready\ndata: {}\n\n")
	w.Flush()

	ping := time.NewTicker(h.heartbeat)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			send(ev)
			if ev.Kind != session.SignedIn {
				return nil
			}
		case <-ping.C:
			fmt.Fprint(w, ": ping\n\n")
			w.Flush()
		}
	}
}

func (h *Handler) Nav(c echo.Context) error {
	s := middleware.CurrentSession(c)
	return c.JSON(http.StatusOK, reply{Data: h.policy.Menu(s.Role, c.QueryParam("path"))})
}

// Guard reports what the route guard would do for a path without navigating.
func (h *Handler) Guard(c echo.Context) error {
	path := c.QueryParam("path")
	if path == "" {
		return c.JSON(http.StatusBadRequest, reply{Error: "path is required"})
	}
	return c.JSON(http.StatusOK, reply{Data: h.policy.Check(middleware.CurrentSession(c), path)})
}
