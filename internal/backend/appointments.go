package backend

import (
	"context"
	"encoding/json"
	"time"

	"estate-dashboard/internal/model"
)

// wire shapes of the backend's populated appointment documents

type wireUser struct {
	ID       string `json:"_id"`
	UserName string `json:"User_Name"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
}

type wireProperty struct {
	ID      string `json:"_id"`
	Name    string `json:"name"`
	Title   string `json:"title"`
	Address string `json:"address"`
}

// Unpopulated references arrive as bare id strings.

func (u *wireUser) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &u.ID)
	}
	type plain wireUser
	return json.Unmarshal(b, (*plain)(u))
}

func (p *wireProperty) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &p.ID)
	}
	type plain wireProperty
	return json.Unmarshal(b, (*plain)(p))
}

type wireAppointment struct {
	ID           string        `json:"_id"`
	User         *wireUser     `json:"user"`
	UserID       *wireUser     `json:"userId"`
	Property     *wireProperty `json:"property"`
	PropertyID   *wireProperty `json:"propertyId"`
	Status       model.Status  `json:"status"`
	ScheduleTime *time.Time    `json:"scheduleTime"`
	CreatedAt    time.Time     `json:"createdAt"`
}

func (w *wireAppointment) model() model.Appointment {
	a := model.Appointment{
		ID:           w.ID,
		Status:       w.Status,
		ScheduleTime: w.ScheduleTime,
		CreatedAt:    w.CreatedAt,
	}
	u := w.User
	if u == nil {
		u = w.UserID
	}
	if u != nil {
		a.User = model.UserRef{ID: u.ID, Name: u.UserName, Phone: u.Phone, Email: u.Email}
		if a.User.Name == "" {
			a.User.Name = u.Name
		}
	}
	p := w.Property
	if p == nil {
		p = w.PropertyID
	}
	if p != nil {
		a.Property = model.PropertyRef{ID: p.ID, Name: p.Name, Address: p.Address}
		if a.Property.Name == "" {
			a.Property.Name = p.Title
		}
	}
	return a
}

type appointmentUpdate struct {
	Status       *model.Status `json:"status,omitempty"`
	ScheduleTime *time.Time    `json:"scheduleTime,omitempty"`
}

func (c *Client) appointments() *Resource[wireAppointment] {
	return NewResource[wireAppointment](c, "/appointments", "appointments", "appointment")
}

// Appointments fetches every appointment across all pages.
func (c *Client) Appointments(ctx context.Context) ([]model.Appointment, error) {
	wire, err := c.appointments().All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Appointment, len(wire))
	for i := range wire {
		out[i] = wire[i].model()
	}
	return out, nil
}

// UpdateAppointment PUTs the change and returns the backend's version of the record.
func (c *Client) UpdateAppointment(ctx context.Context, id string, ch model.AppointmentChange) (*model.Appointment, error) {
	w, err := c.appointments().Update(ctx, id, appointmentUpdate{Status: ch.Status, ScheduleTime: ch.ScheduleTime})
	if err != nil {
		return nil, err
	}
	if w == nil || w.ID == "" {
		return nil, nil
	}
	a := w.model()
	return &a, nil
}

func (c *Client) DeleteAppointment(ctx context.Context, id string) error {
	return c.appointments().Delete(ctx, id)
}
