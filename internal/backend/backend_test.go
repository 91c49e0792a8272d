package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"estate-dashboard/internal/backend"
	"estate-dashboard/internal/model"
)

func authed() context.Context {
	return backend.WithToken(context.Background(), "tok-123")
}

func newClient(t *testing.T, h http.HandlerFunc) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return backend.New(srv.URL+"/", 5*time.Second)
}

func TestBearerTokenAttached(t *testing.T) {
	var got string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Write([]byte(`{"appointments":{"data":[],"currentPage":1,"totalPages":1,"totalItems":0}}`))
	})

	if _, err := c.Appointments(authed()); err != nil {
		t.Fatalf("appointments: %v", err)
	}
	if got != "Bearer tok-123" {
		t.Errorf("authorization header: %q", got)
	}

	if _, err := c.Appointments(context.Background()); !errors.Is(err, backend.ErrNoToken) {
		t.Errorf("expected ErrNoToken, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/loginUser" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("login must not send a bearer token")
		}
		var in map[string]string
		json.NewDecoder(r.Body).Decode(&in)
		if in["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"Invalid credentials"}`))
			return
		}
		w.Write([]byte(`{"token":"jwt-1","user":{"_id":"u1","role":"admin","User_Name":"Ada"}}`))
	})

	res, err := c.Login(context.Background(), "ada@example.com", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Token != "jwt-1" || res.Role != model.RoleAdmin || res.UserID != "u1" || res.UserName != "Ada" {
		t.Errorf("got %+v", res)
	}

	_, err = c.Login(context.Background(), "ada@example.com", "wrong")
	var apiErr *backend.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Message != "Invalid credentials" {
		t.Errorf("got %+v", apiErr)
	}
	if backend.StatusOf(err) != http.StatusUnauthorized {
		t.Errorf("StatusOf: %d", backend.StatusOf(err))
	}
}

func TestLoginWithoutRole(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token":"jwt-1","user":{"_id":"u1"}}`))
	})
	if _, err := c.Login(context.Background(), "a@b.c", "x"); !errors.Is(err, backend.ErrBadLogin) {
		t.Fatalf("expected ErrBadLogin, got %v", err)
	}
}

func TestAppointmentsWalksPages(t *testing.T) {
	pages := 0
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		pages++
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if r.URL.Query().Get("limit") != "100" {
			t.Errorf("limit: %s", r.URL.Query().Get("limit"))
		}
		fmt.Fprintf(w, `{"appointments":{"data":[{
			"_id":"a%d",
			"userId":{"_id":"u1","User_Name":"Grace","phone":"555-0100"},
			"propertyId":{"_id":"p1","name":"Harbour View","address":"1 Quay St"},
			"status":"Pending",
			"scheduleTime":"2025-06-0%dT10:00:00Z",
			"createdAt":"2025-05-01T09:00:00Z"}],
			"currentPage":%d,"totalPages":3,"totalItems":3}}`, page, page, page)
	})

	got, err := c.Appointments(authed())
	if err != nil {
		t.Fatalf("appointments: %v", err)
	}
	if pages != 3 || len(got) != 3 {
		t.Fatalf("pages=%d items=%d", pages, len(got))
	}
	a := got[1]
	if a.ID != "a2" || a.User.Name != "Grace" || a.User.Phone != "555-0100" || a.Property.Name != "Harbour View" {
		t.Errorf("mapped wrong: %+v", a)
	}
	if a.ScheduleTime == nil || a.ScheduleTime.Day() != 2 {
		t.Errorf("schedule time: %v", a.ScheduleTime)
	}
}

func TestUpdateAppointment(t *testing.T) {
	var body map[string]any
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/appointments/a1" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"message":"updated","appointment":{"_id":"a1","user":"u1","property":"p1","status":"Confirmed","scheduleTime":"2025-06-03T15:00:00Z","createdAt":"2025-05-01T09:00:00Z"}}`))
	})

	st := model.StatusConfirmed
	at := time.Date(2025, 6, 3, 15, 0, 0, 0, time.UTC)
	a, err := c.UpdateAppointment(authed(), "a1", model.AppointmentChange{Status: &st, ScheduleTime: &at})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if body["status"] != "Confirmed" || body["scheduleTime"] != "2025-06-03T15:00:00Z" {
		t.Errorf("sent body: %v", body)
	}
	if a.Status != model.StatusConfirmed || a.User.ID != "u1" || a.Property.ID != "p1" {
		t.Errorf("got %+v", a)
	}
}

func TestResourceUnwrapping(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tenant":
			w.Write([]byte(`[{"_id":"t1","name":"Ann"},{"_id":"t2","name":"Bob"}]`))
		case "/tenant/t1":
			w.Write([]byte(`{"tenant":{"_id":"t1","name":"Ann"}}`))
		case "/property":
			w.Write([]byte(`{"properties":{"data":[{"_id":"p1"}],"currentPage":2,"totalPages":4,"totalItems":31}}`))
		default:
			http.NotFound(w, r)
		}
	})

	tenants := backend.NewResource[model.Record](c, "/tenant", "tenants", "tenant")
	p, err := tenants.List(authed(), 1, 10)
	if err != nil {
		t.Fatalf("list tenants: %v", err)
	}
	if len(p.Data) != 2 || p.TotalItems != 2 || p.TotalPages != 1 {
		t.Errorf("bare array page: %+v", p)
	}
	one, err := tenants.Get(authed(), "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if one.ID() != "t1" {
		t.Errorf("get unwrapped: %v", *one)
	}

	props := backend.NewResource[model.Record](c, "/property", "properties", "property")
	pp, err := props.List(authed(), 2, 10)
	if err != nil {
		t.Fatalf("list properties: %v", err)
	}
	if pp.CurrentPage != 2 || pp.TotalPages != 4 || pp.TotalItems != 31 || len(pp.Data) != 1 {
		t.Errorf("wrapped page: %+v", pp)
	}

	_, err = tenants.Get(authed(), "missing")
	if backend.StatusOf(err) != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestCancelledContextAbortsRequest(t *testing.T) {
	release := make(chan struct{})
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(authed())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := c.Appointments(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFilterAndSort(t *testing.T) {
	recs := []model.Record{
		{"_id": "1", "name": "Oak Villa", "rent": 1200.0, "owner": map[string]any{"name": "Kim"}},
		{"_id": "2", "name": "birch house", "rent": 800.0},
		{"_id": "3", "name": "Pine Loft"},
	}

	if got := backend.Filter(recs, "  KIM "); len(got) != 1 || got[0].ID() != "1" {
		t.Errorf("nested filter: %v", got)
	}
	if got := backend.Filter(recs, "800"); len(got) != 1 || got[0].ID() != "2" {
		t.Errorf("number filter: %v", got)
	}
	if got := backend.Filter(recs, ""); len(got) != 3 {
		t.Errorf("empty query filtered: %v", got)
	}

	sorted := append([]model.Record(nil), recs...)
	backend.Sort(sorted, "rent", false)
	if sorted[0].ID() != "2" || sorted[1].ID() != "1" || sorted[2].ID() != "3" {
		t.Errorf("asc rent: %v", sorted)
	}
	backend.Sort(sorted, "rent", true)
	if sorted[0].ID() != "1" || sorted[2].ID() != "3" {
		t.Errorf("desc rent keeps missing last: %v", sorted)
	}
	backend.Sort(sorted, "name", false)
	if sorted[0].ID() != "2" || sorted[1].ID() != "1" {
		t.Errorf("case-insensitive name sort: %v", sorted)
	}
}
