package schedule

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"estate-dashboard/internal/model"
)

// Source is the backend side of the calendar.
type Source interface {
	Appointments(ctx context.Context) ([]model.Appointment, error)
	UpdateAppointment(ctx context.Context, id string, ch model.AppointmentChange) (*model.Appointment, error)
	DeleteAppointment(ctx context.Context, id string) error
}

type Options struct {
	Location          *time.Location
	StrictTransitions bool
	Now               func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type Selection struct {
	Date         string              `json:"date"`
	Presentation Presentation        `json:"presentation"`
	Appointments []model.Appointment `json:"appointments"`
}

type Snapshot struct {
	View     View           `json:"view"`
	Loaded   bool           `json:"loaded"`
	Events   []Event        `json:"events"`
	Counts   map[string]int `json:"counts"`
	Selected *Selection     `json:"selected,omitempty"`
}

type selection struct {
	date  string
	width int
}

// Calendar holds one session's appointment list. Events, counts and the
// selected-day list are always derived from that list, never patched.
type Calendar struct {
	src  Source
	opts Options
	sf   singleflight.Group

	mu       sync.Mutex
	list     []model.Appointment
	loaded   bool
	gen      uint64
	view     View
	selected *selection
}

func NewCalendar(src Source, opts Options) *Calendar {
	return &Calendar{src: src, opts: opts.withDefaults(), view: Month}
}

const loadKey = "appointments"

// Load replaces the list with the backend's. Concurrent calls share one
// fetch, and a result is dropped if a reload or mutation started after it.
// The shared fetch outlives any one caller; a caller whose ctx ends stops
// waiting without failing the others. On error the previous list stays.
func (c *Calendar) Load(ctx context.Context) error {
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.sf.DoChan(loadKey, func() (any, error) {
		c.mu.Lock()
		c.gen++
		gen := c.gen
		c.mu.Unlock()

		list, err := c.src.Appointments(fetchCtx)
		if err != nil {
			return nil, fmt.Errorf("load appointments: %w", err)
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen != gen {
			return nil, nil
		}
		c.list = list
		c.loaded = true
		return nil, nil
	})
	select {
	case <-ctx.Done():
		return fmt.Errorf("load appointments: %w", ctx.Err())
	case res := <-ch:
		return res.Err
	}
}

// Reload starts a fresh fetch even if one is in flight; the older one loses.
func (c *Calendar) Reload(ctx context.Context) error {
	c.sf.Forget(loadKey)
	return c.Load(ctx)
}

// Ensure loads once.
func (c *Calendar) Ensure(ctx context.Context) error {
	c.mu.Lock()
	loaded := c.loaded
	c.mu.Unlock()
	if loaded {
		return nil
	}
	return c.Load(ctx)
}

// SetView only changes presentation; the list is not refetched.
func (c *Calendar) SetView(v View) {
	c.mu.Lock()
	c.view = v
	c.mu.Unlock()
}

func (c *Calendar) SelectDate(date string, width int) (*Selection, error) {
	if _, err := time.ParseInLocation(DateLayout, date, c.opts.Location); err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalid)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = &selection{date: date, width: width}
	return c.selection(), nil
}

func (c *Calendar) ClearSelection() {
	c.mu.Lock()
	c.selected = nil
	c.mu.Unlock()
}

func (c *Calendar) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		View:     c.view,
		Loaded:   c.loaded,
		Events:   Events(c.list, c.view, c.opts.Location),
		Counts:   CountsByDate(c.list, c.opts.Location),
		Selected: c.selection(),
	}
}

func (c *Calendar) Appointments() []model.Appointment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.list)
}

// selection must be called with mu held.
func (c *Calendar) selection() *Selection {
	if c.selected == nil {
		return nil
	}
	return &Selection{
		Date:         c.selected.date,
		Presentation: PresentationFor(c.selected.width),
		Appointments: OnDate(c.list, c.selected.date, c.opts.Location),
	}
}

// lookup finds id in the list, refetching once when it is missing.
func (c *Calendar) lookup(ctx context.Context, id string) (model.Appointment, error) {
	if a, ok := c.find(id); ok {
		return a, nil
	}
	if err := c.Load(ctx); err != nil {
		return model.Appointment{}, err
	}
	if a, ok := c.find(id); ok {
		return a, nil
	}
	return model.Appointment{}, ErrNotFound
}

func (c *Calendar) find(id string) (model.Appointment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := slices.IndexFunc(c.list, func(a model.Appointment) bool { return a.ID == id })
	if i < 0 {
		return model.Appointment{}, false
	}
	return c.list[i], true
}

func (c *Calendar) checkWindow(role model.Role, cur model.Appointment, ch *model.AppointmentChange) error {
	now := c.opts.Now()
	if !CanReschedule(role, cur.EffectiveTime(), now) {
		return ErrTooLate
	}
	if ch != nil && ch.ScheduleTime != nil && !CanReschedule(role, *ch.ScheduleTime, now) {
		return ErrTooLate
	}
	return nil
}

// Update sends the change to the backend and, only on success, swaps the
// backend's record into the list.
func (c *Calendar) Update(ctx context.Context, role model.Role, id string, ch model.AppointmentChange) (*model.Appointment, error) {
	if ch.Empty() {
		return nil, fmt.Errorf("%w: nothing to change", ErrInvalid)
	}
	if ch.Status != nil && !ch.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalid, *ch.Status)
	}
	cur, err := c.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.checkWindow(role, cur, &ch); err != nil {
		return nil, err
	}
	if c.opts.StrictTransitions && ch.Status != nil && !AllowedTransition(cur.Status, *ch.Status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrTransition, cur.Status, *ch.Status)
	}

	resp, err := c.src.UpdateAppointment(ctx, id, ch)
	if err != nil {
		return nil, fmt.Errorf("update appointment: %w", err)
	}
	rec := merge(cur, ch, resp)

	c.mu.Lock()
	c.gen++
	if i := slices.IndexFunc(c.list, func(a model.Appointment) bool { return a.ID == id }); i >= 0 {
		c.list[i] = rec
	} else {
		c.list = append(c.list, rec)
	}
	c.mu.Unlock()
	return &rec, nil
}

func (c *Calendar) Delete(ctx context.Context, role model.Role, id string) error {
	cur, err := c.lookup(ctx, id)
	if err != nil {
		return err
	}
	if err := c.checkWindow(role, cur, nil); err != nil {
		return err
	}
	if err := c.src.DeleteAppointment(ctx, id); err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}

	c.mu.Lock()
	c.gen++
	c.list = slices.DeleteFunc(c.list, func(a model.Appointment) bool { return a.ID == id })
	c.mu.Unlock()
	return nil
}

// merge prefers the backend's record, filling references it left unpopulated.
func merge(cur model.Appointment, ch model.AppointmentChange, resp *model.Appointment) model.Appointment {
	if resp == nil {
		out := cur
		if ch.Status != nil {
			out.Status = *ch.Status
		}
		if ch.ScheduleTime != nil {
			t := *ch.ScheduleTime
			out.ScheduleTime = &t
		}
		return out
	}
	out := *resp
	if out.ID == "" {
		out.ID = cur.ID
	}
	if out.User.Name == "" && (out.User.ID == "" || out.User.ID == cur.User.ID) {
		out.User = cur.User
	}
	if out.Property.Name == "" && (out.Property.ID == "" || out.Property.ID == cur.Property.ID) {
		out.Property = cur.Property
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = cur.CreatedAt
	}
	if out.Status == "" {
		out.Status = cur.Status
	}
	return out
}

// Calendars keeps one Calendar per session.
type Calendars struct {
	src  Source
	opts Options

	mu sync.Mutex
	m  map[string]*Calendar
}

func NewCalendars(src Source, opts Options) *Calendars {
	return &Calendars{src: src, opts: opts, m: make(map[string]*Calendar)}
}

func (cs *Calendars) For(sessionID string) *Calendar {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	c, ok := cs.m[sessionID]
	if !ok {
		c = NewCalendar(cs.src, cs.opts)
		cs.m[sessionID] = c
	}
	return c
}

func (cs *Calendars) Drop(sessionID string) {
	cs.mu.Lock()
	delete(cs.m, sessionID)
	cs.mu.Unlock()
}

func (cs *Calendars) Len() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.m)
}
