package schedule

import (
	"time"

	"estate-dashboard/internal/model"
)

const DateLayout = "2006-01-02"

// DayKey is the calendar day an appointment falls on in loc.
func DayKey(a *model.Appointment, loc *time.Location) string {
	return a.EffectiveTime().In(loc).Format(DateLayout)
}

// CountsByDate groups appointments per day. Days with none are absent.
func CountsByDate(appts []model.Appointment, loc *time.Location) map[string]int {
	out := make(map[string]int)
	for i := range appts {
		out[DayKey(&appts[i], loc)]++
	}
	return out
}

// OnDate returns the appointments whose day key is date, in list order.
func OnDate(appts []model.Appointment, date string, loc *time.Location) []model.Appointment {
	out := []model.Appointment{}
	for i := range appts {
		if DayKey(&appts[i], loc) == date {
			out = append(out, appts[i])
		}
	}
	return out
}

type Presentation string

const (
	Panel Presentation = "panel"
	Modal Presentation = "modal"

	narrowViewport = 1024
)

// PresentationFor picks the modal on narrow screens. Unknown width means desktop.
func PresentationFor(width int) Presentation {
	if width > 0 && width < narrowViewport {
		return Modal
	}
	return Panel
}
