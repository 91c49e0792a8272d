package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"estate-dashboard/internal/model"
)

func (h *Handler) Comprehensive(c echo.Context) error {
	raw, err := h.backend.Comprehensive(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "Could not load analytics")
	}
	return c.JSON(http.StatusOK, reply{Data: raw})
}

func (h *Handler) MonthlyRevenue(c echo.Context) error {
	raw, err := h.backend.MonthlyRevenue(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "Could not load revenue")
	}
	return c.JSON(http.StatusOK, reply{Data: raw})
}

type targetRequest struct {
	Target float64 `json:"target" validate:"gt=0"`
}

func (h *Handler) SetMonthlyTarget(c echo.Context) error {
	var req targetRequest
	if err := bind(c, &req); err != nil {
		return h.fail(c, err, "Could not set target")
	}
	raw, err := h.backend.SetMonthlyTarget(c.Request().Context(), req.Target)
	if err != nil {
		return h.fail(c, err, "Could not set target")
	}
	return c.JSON(http.StatusOK, reply{Data: raw, Notice: model.Success("Monthly target updated")})
}
