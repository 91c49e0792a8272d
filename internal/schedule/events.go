// Package schedule derives the appointment calendar from one canonical list.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"estate-dashboard/internal/model"
)

type View string

const (
	Month View = "month"
	Week  View = "week"
	Day   View = "day"
)

func ParseView(s string) (View, error) {
	switch v := View(strings.ToLower(s)); v {
	case Month, Week, Day:
		return v, nil
	case "":
		return Month, nil
	}
	return "", fmt.Errorf("unknown calendar view %q", s)
}

const (
	ColorPending   = "#f59e0b"
	ColorConfirmed = "#10b981"
	ColorCancelled = "#ef4444"
	ColorCompleted = "#3b82f6"
	colorUnknown   = "#6b7280"

	propertyRunes = 20
	eventLength   = time.Hour
)

func Color(s model.Status) string {
	switch s {
	case model.StatusPending:
		return ColorPending
	case model.StatusConfirmed:
		return ColorConfirmed
	case model.StatusCancelled:
		return ColorCancelled
	case model.StatusCompleted:
		return ColorCompleted
	}
	return colorUnknown
}

type Event struct {
	ID     string       `json:"id"`
	Title  string       `json:"title"`
	Start  time.Time    `json:"start"`
	End    time.Time    `json:"end"`
	Color  string       `json:"color"`
	Status model.Status `json:"status"`
}

// Title gets more verbose as the view narrows: month shows the name,
// week adds a shortened property, day adds the phone.
func Title(a *model.Appointment, v View) string {
	name := a.User.Name
	if name == "" {
		name = "Appointment"
	}
	switch v {
	case Week:
		if a.Property.Name == "" {
			return name
		}
		return name + " - " + truncate(a.Property.Name, propertyRunes)
	case Day:
		parts := []string{name}
		if a.Property.Name != "" {
			parts = append(parts, a.Property.Name)
		}
		if a.User.Phone != "" {
			parts = append(parts, a.User.Phone)
		}
		return strings.Join(parts, " - ")
	}
	return name
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// Events maps each appointment to exactly one calendar event.
func Events(appts []model.Appointment, v View, loc *time.Location) []Event {
	out := make([]Event, len(appts))
	for i := range appts {
		a := &appts[i]
		start := a.EffectiveTime().In(loc)
		out[i] = Event{
			ID:     a.ID,
			Title:  Title(a, v),
			Start:  start,
			End:    start.Add(eventLength),
			Color:  Color(a.Status),
			Status: a.Status,
		}
	}
	return out
}
