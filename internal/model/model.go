package model

import "time"

type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

type Status string

const (
	StatusPending   Status = "Pending"
	StatusConfirmed Status = "Confirmed"
	StatusCancelled Status = "Cancelled"
	StatusCompleted Status = "Completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Session is the server-side replacement for the browser's token/role/userid/userName keys.
type Session struct {
	ID        string    `json:"-"`
	Token     string    `json:"-"`
	Role      Role      `json:"role"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

type PropertyRef struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

type Appointment struct {
	ID           string      `json:"id"`
	User         UserRef     `json:"user"`
	Property     PropertyRef `json:"property"`
	Status       Status      `json:"status"`
	ScheduleTime *time.Time  `json:"scheduleTime,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// EffectiveTime is the schedule time, or the creation time for unscheduled requests.
func (a *Appointment) EffectiveTime() time.Time {
	if a.ScheduleTime != nil && !a.ScheduleTime.IsZero() {
		return *a.ScheduleTime
	}
	return a.CreatedAt
}

// AppointmentChange is a partial update; nil fields are left alone.
type AppointmentChange struct {
	Status       *Status    `json:"status,omitempty"`
	ScheduleTime *time.Time `json:"scheduleTime,omitempty"`
}

func (c AppointmentChange) Empty() bool {
	return c.Status == nil && c.ScheduleTime == nil
}

type NavItem struct {
	Name     string    `json:"name"`
	Icon     string    `json:"icon"`
	Path     string    `json:"path,omitempty"`
	SubItems []NavItem `json:"subItems,omitempty"`
	Active   bool      `json:"active"`
	Expanded bool      `json:"expanded,omitempty"`
}

// Record is an opaque backend document (listing, tenant, lead, admin).
type Record map[string]any

func (r Record) ID() string {
	for _, k := range []string{"_id", "id"} {
		if v, ok := r[k].(string); ok {
			return v
		}
	}
	return ""
}

type Page[T any] struct {
	Data        []T `json:"data"`
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	TotalItems  int `json:"totalItems"`
}

// Notice is the one user-facing message shape every mutation answers with.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

func Success(msg string) *Notice { return &Notice{Level: "success", Message: msg} }
func Failure(msg string) *Notice { return &Notice{Level: "error", Message: msg} }
