package schedule

import (
	"errors"
	"time"

	"estate-dashboard/internal/model"
)

const RescheduleWindow = 24 * time.Hour

var (
	ErrTooLate    = errors.New("appointments can only be changed at least 24 hours ahead")
	ErrTransition = errors.New("status change not allowed")
	ErrInvalid    = errors.New("invalid appointment change")
	ErrNotFound   = errors.New("appointment not found")
)

// CanReschedule applies the 24 hour window to the user role only.
func CanReschedule(role model.Role, at, now time.Time) bool {
	if role == model.RoleAdmin || role == model.RoleSuperAdmin {
		return true
	}
	return at.Sub(now) >= RescheduleWindow
}

var transitions = map[model.Status][]model.Status{
	model.StatusPending:   {model.StatusConfirmed, model.StatusCancelled},
	model.StatusConfirmed: {model.StatusCancelled, model.StatusCompleted},
}

// AllowedTransition is the strict status table. Re-setting the same status is always allowed.
func AllowedTransition(from, to model.Status) bool {
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
