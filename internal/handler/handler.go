package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"estate-dashboard/internal/backend"
	"estate-dashboard/internal/middleware"
	"estate-dashboard/internal/model"
	"estate-dashboard/internal/policy"
	"estate-dashboard/internal/schedule"
	"estate-dashboard/internal/session"
)

type Deps struct {
	Policy    *policy.Table
	Sessions  *session.Store
	Backend   *backend.Client
	Calendars *schedule.Calendars
	Limiter   *middleware.RateLimiter
	Secret    string
	StaticDir string
	Log       zerolog.Logger
}

type Handler struct {
	policy    *policy.Table
	sessions  *session.Store
	backend   *backend.Client
	calendars *schedule.Calendars
	limiter   *middleware.RateLimiter
	secret    string
	staticDir string
	log       zerolog.Logger
	resources map[string]*resource
	heartbeat time.Duration
}

func New(d Deps) *Handler {
	return &Handler{
		policy:    d.Policy,
		sessions:  d.Sessions,
		backend:   d.Backend,
		calendars: d.Calendars,
		limiter:   d.Limiter,
		secret:    d.Secret,
		staticDir: d.StaticDir,
		log:       d.Log,
		resources: newResources(d.Backend),
		heartbeat: 25 * time.Second,
	}
}

// Register mounts every route on e.
func (h *Handler) Register(e *echo.Echo) {
	e.Validator = NewValidator()
	e.GET("/healthz", h.Health)

	signedIn := middleware.SignedIn(h.policy)

	a := e.Group("/auth")
	a.POST("/signin", h.SignIn, middleware.LimitByIP(h.limiter))
	a.POST("/signout", h.SignOut, signedIn)

	api := e.Group("/api")
	api.GET("/guard", h.Guard)
	api.GET("/session", h.Session, signedIn)
	api.GET("/session/events", h.Events, signedIn)
	api.GET("/nav", h.Nav, signedIn)

	cal := middleware.Require(h.policy, middleware.Scope("calendar"))
	api.GET("/calendar", h.Calendar, cal)
	api.GET("/calendar/day/:date", h.Day, cal)

	appts := middleware.Require(h.policy, middleware.Scope("appointments"))
	api.GET("/appointments", h.ListAppointments, appts)
	api.PUT("/appointments/:id", h.UpdateAppointment, appts)
	api.DELETE("/appointments/:id", h.DeleteAppointment, appts)

	res := api.Group("/resources/:resource", h.knownResource, middleware.Require(h.policy, resourceScope))
	res.GET("", h.ListRecords)
	res.POST("", h.CreateRecord)
	res.GET("/:id", h.GetRecord)
	res.PUT("/:id", h.UpdateRecord)
	res.DELETE("/:id", h.DeleteRecord)

	an := api.Group("/analytics", middleware.Require(h.policy, middleware.Scope("analytics")))
	an.GET("/comprehensive", h.Comprehensive)
	an.GET("/monthly-revenue", h.MonthlyRevenue)
	an.PUT("/target", h.SetMonthlyTarget)

	e.Static("/assets", filepath.Join(h.staticDir, "assets"))
	pages := middleware.Pages(h.policy)
	for _, p := range h.policy.Patterns() {
		e.GET(p, h.Page, pages)
	}
}

// Watch drops a session's calendar once the session ends. It subscribes
// before returning and runs until ctx is done.
func (h *Handler) Watch(ctx context.Context) {
	events, cancel := h.sessions.Subscribe("")
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.Kind != session.SignedIn {
					h.calendars.Drop(ev.SessionID)
				}
			}
		}
	}()
}

type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{v: validator.New()}
}

func (cv *Validator) Validate(i any) error {
	return cv.v.Struct(i)
}

type reply struct {
	Data   any           `json:"data,omitempty"`
	Error  string        `json:"error,omitempty"`
	Notice *model.Notice `json:"notice,omitempty"`
}

var errMalformed = errors.New("malformed request body")

// statusClientClosed is logged when the caller went away mid-request.
const statusClientClosed = 499

// bind decodes and validates a request.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return errMalformed
	}
	return c.Validate(req)
}

// classify maps an error to a status and a message safe to show.
func classify(err error) (int, string) {
	var verrs validator.ValidationErrors
	var apiErr *backend.APIError
	var urlErr *url.Error

	switch {
	case errors.As(err, &verrs):
		fields := make([]string, len(verrs))
		for i, fe := range verrs {
			fields[i] = strings.ToLower(fe.Field())
		}
		return http.StatusBadRequest, "invalid " + strings.Join(fields, ", ")
	case errors.Is(err, errMalformed), errors.Is(err, schedule.ErrInvalid):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, schedule.ErrTooLate):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, schedule.ErrTransition):
		return http.StatusConflict, err.Error()
	case errors.Is(err, schedule.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, backend.ErrNoToken), errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrExpired):
		return http.StatusUnauthorized, "sign in required"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "backend timed out"
	case errors.Is(err, context.Canceled):
		return statusClientClosed, "request cancelled"
	case errors.As(err, &apiErr):
		switch {
		case apiErr.Status == http.StatusUnauthorized:
			return http.StatusUnauthorized, "session rejected by backend"
		case apiErr.Status >= 500:
			return http.StatusBadGateway, "backend unavailable"
		}
		msg := apiErr.Message
		if msg == "" {
			msg = strings.ToLower(http.StatusText(apiErr.Status))
		}
		return apiErr.Status, msg
	case errors.As(err, &urlErr):
		return http.StatusBadGateway, "backend unavailable"
	}
	return http.StatusInternalServerError, "internal error"
}

// fail answers a failed request with a notice and logs it.
func (h *Handler) fail(c echo.Context, err error, action string) error {
	code, msg := classify(err)
	ev := h.log.Warn()
	if code >= 500 {
		ev = h.log.Error()
	}
	ev.Err(err).Str("action", action).Int("status", code).Msg("request failed")
	return c.JSON(code, reply{Error: msg, Notice: model.Failure(action + ": " + msg)})
}

func (h *Handler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	backendState := "up"
	if err := h.backend.Ping(ctx); err != nil {
		backendState = "down"
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "backend": backendState})
}

// Page serves the single-page app shell for a guarded route.
func (h *Handler) Page(c echo.Context) error {
	return c.File(filepath.Join(h.staticDir, "index.html"))
}
