package handler

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"estate-dashboard/internal/middleware"
	"estate-dashboard/internal/model"
	"estate-dashboard/internal/schedule"
)

func (h *Handler) calendar(c echo.Context) *schedule.Calendar {
	return h.calendars.For(middleware.CurrentSession(c).ID)
}

// Calendar returns the session's calendar in the requested view. The list is
// fetched on every call; cached=true only switches the view and fetches on
// first use, and reload=true abandons any fetch already in flight.
func (h *Handler) Calendar(c echo.Context) error {
	view, err := schedule.ParseView(c.QueryParam("view"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, reply{Error: err.Error()})
	}
	cal := h.calendar(c)
	cal.SetView(view)

	ctx := c.Request().Context()
	switch {
	case c.QueryParam("reload") == "true":
		err = cal.Reload(ctx)
	case c.QueryParam("cached") == "true":
		err = cal.Ensure(ctx)
	default:
		err = cal.Load(ctx)
	}
	snap := cal.Snapshot()
	if err != nil {
		code, msg := classify(err)
		h.log.Warn().Err(err).Int("status", code).Msg("calendar load failed")
		return c.JSON(code, reply{
			Data:   snap,
			Error:  msg,
			Notice: model.Failure("Could not load appointments: " + msg),
		})
	}
	return c.JSON(http.StatusOK, reply{Data: snap})
}

// Day selects a date. width is the client viewport and picks panel or modal.
func (h *Handler) Day(c echo.Context) error {
	width := 0
	if w := c.QueryParam("width"); w != "" {
		n, err := strconv.Atoi(w)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, reply{Error: "width must be a non-negative integer"})
		}
		width = n
	}
	cal := h.calendar(c)
	if err := cal.Ensure(c.Request().Context()); err != nil {
		return h.fail(c, err, "Could not load appointments")
	}
	sel, err := cal.SelectDate(c.Param("date"), width)
	if err != nil {
		return h.fail(c, err, "Could not open day")
	}
	return c.JSON(http.StatusOK, reply{Data: sel})
}

// ListAppointments is the table view of the same list the calendar draws.
func (h *Handler) ListAppointments(c echo.Context) error {
	status := model.Status(c.QueryParam("status"))
	if status != "" && !status.Valid() {
		return c.JSON(http.StatusBadRequest, reply{Error: "unknown status"})
	}
	cal := h.calendar(c)
	if err := cal.Load(c.Request().Context()); err != nil {
		return h.fail(c, err, "Could not load appointments")
	}

	q := strings.ToLower(strings.TrimSpace(c.QueryParam("q")))
	list := slices.DeleteFunc(cal.Appointments(), func(a model.Appointment) bool {
		if status != "" && a.Status != status {
			return true
		}
		return q != "" && !appointmentMatches(&a, q)
	})
	slices.SortStableFunc(list, func(a, b model.Appointment) int {
		return b.EffectiveTime().Compare(a.EffectiveTime())
	})
	return c.JSON(http.StatusOK, reply{Data: list})
}

func appointmentMatches(a *model.Appointment, q string) bool {
	for _, f := range []string{a.User.Name, a.User.Email, a.User.Phone, a.Property.Name, a.Property.Address, string(a.Status)} {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

type appointmentRequest struct {
	Status       *model.Status `json:"status" validate:"omitempty,oneof=Pending Confirmed Cancelled Completed"`
	ScheduleTime *time.Time    `json:"scheduleTime"`
}

type appointmentResult struct {
	Appointment *model.Appointment `json:"appointment,omitempty"`
	Calendar    schedule.Snapshot  `json:"calendar"`
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	var req appointmentRequest
	if err := bind(c, &req); err != nil {
		return h.fail(c, err, "Could not update appointment")
	}
	s := middleware.CurrentSession(c)
	cal := h.calendar(c)
	ctx := c.Request().Context()
	if err := cal.Ensure(ctx); err != nil {
		return h.fail(c, err, "Could not update appointment")
	}

	id := c.Param("id")
	a, err := cal.Update(ctx, s.Role, id, model.AppointmentChange{Status: req.Status, ScheduleTime: req.ScheduleTime})
	if err != nil {
		return h.fail(c, err, "Could not update appointment")
	}
	h.log.Info().Str("appointment_id", id).Str("user_id", s.UserID).Msg("appointment updated")
	return c.JSON(http.StatusOK, reply{
		Data:   appointmentResult{Appointment: a, Calendar: cal.Snapshot()},
		Notice: model.Success("Appointment updated"),
	})
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	s := middleware.CurrentSession(c)
	cal := h.calendar(c)
	ctx := c.Request().Context()
	if err := cal.Ensure(ctx); err != nil {
		return h.fail(c, err, "Could not delete appointment")
	}

	id := c.Param("id")
	if err := cal.Delete(ctx, s.Role, id); err != nil {
		return h.fail(c, err, "Could not delete appointment")
	}
	h.log.Info().Str("appointment_id", id).Str("user_id", s.UserID).Msg("appointment deleted")
	return c.JSON(http.StatusOK, reply{
		Data:   appointmentResult{Calendar: cal.Snapshot()},
		Notice: model.Success("Appointment deleted"),
	})
}
