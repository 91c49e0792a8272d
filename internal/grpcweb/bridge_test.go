package grpcweb_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"estate-dashboard/internal/auth"
	"estate-dashboard/internal/grpcweb"
	"estate-dashboard/internal/middleware"
	"estate-dashboard/internal/model"
	"estate-dashboard/internal/policy"
	"estate-dashboard/internal/rpc"
	"estate-dashboard/internal/schedule"
	"estate-dashboard/internal/session"
)

const secret = "bridge-test-secret-01234"

type source struct{}

func (source) Appointments(context.Context) ([]model.Appointment, error) {
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	return []model.Appointment{{ID: "a1", Status: model.StatusPending, ScheduleTime: &at}}, nil
}

func (source) UpdateAppointment(context.Context, string, model.AppointmentChange) (*model.Appointment, error) {
	return nil, nil
}

func (source) DeleteAppointment(context.Context, string) error { return nil }

func setup(t *testing.T) (*httptest.Server, *session.Store) {
	t.Helper()
	tbl, err := policy.Load()
	if err != nil {
		t.Fatal(err)
	}
	log := zerolog.Nop()
	sessions := session.New(time.Hour, nil, log)

	srv := grpc.NewServer(grpc.UnaryInterceptor(middleware.Auth(sessions, secret)))
	rpc.Register(srv, rpc.NewCalendar(tbl, schedule.NewCalendars(source{}, schedule.Options{}), log))
	lis := bufconn.Listen(1 << 20)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	bridge, err := grpcweb.New("passthrough:///bufnet", middleware.CookieName, log,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { bridge.Close() })

	web := httptest.NewServer(bridge)
	t.Cleanup(web.Close)
	return web, sessions
}

func frame(t *testing.T, m proto.Message) []byte {
	t.Helper()
	b, err := proto.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	out := make([]byte, 5+len(b))
	binary.BigEndian.PutUint32(out[1:5], uint32(len(b)))
	copy(out[5:], b)
	return out
}

// split returns the data payload and the trailer text.
func split(t *testing.T, body []byte) ([]byte, string) {
	t.Helper()
	var data []byte
	var trailer string
	for len(body) >= 5 {
		n := binary.BigEndian.Uint32(body[1:5])
		chunk := body[5 : 5+n]
		if body[0]&0x80 != 0 {
			trailer = string(chunk)
		} else {
			data = chunk
		}
		body = body[5+n:]
	}
	return data, trailer
}

func post(t *testing.T, url string, body []byte, cookie string) []byte {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, url+"/"+rpc.ServiceName+"/GetCounts", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/grpc-web+proto")
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: middleware.CookieName, Value: cookie})
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return out
}

func TestBridgeForwardsCookie(t *testing.T) {
	web, sessions := setup(t)
	s, err := sessions.Create(context.Background(), "tok", model.RoleAdmin, "u1", "Pat")
	if err != nil {
		t.Fatal(err)
	}
	ck, err := auth.MakeToken(s.ID, s.UserID, secret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	data, trailer := split(t, post(t, web.URL, frame(t, &structpb.Struct{}), ck))
	if !strings.Contains(trailer, "grpc-status:0") {
		t.Fatalf("trailer %q", trailer)
	}
	var out structpb.Struct
	if err := proto.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if n := out.GetFields()["counts"].GetStructValue().GetFields()["2026-05-01"].GetNumberValue(); n != 1 {
		t.Errorf("counts %v", &out)
	}
}

func TestBridgeErrors(t *testing.T) {
	web, _ := setup(t)

	tests := []struct {
		name string
		body []byte
		want string
	}{
		{"anonymous", frame(t, &structpb.Struct{}), "grpc-status:16"},
		{"short body", []byte{0, 0}, "grpc-status:3"},
		{"truncated frame", []byte{0, 0, 0, 0, 9, 1}, "grpc-status:3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, trailer := split(t, post(t, web.URL, tt.body, ""))
			if !strings.HasPrefix(trailer, tt.want) {
				t.Errorf("trailer %q, want %s", trailer, tt.want)
			}
		})
	}

	resp, err := http.Get(web.URL + "/" + rpc.ServiceName + "/GetCounts")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET: %d", resp.StatusCode)
	}
}

func TestBridgeForwardsClientIP(t *testing.T) {
	tbl, err := policy.Load()
	if err != nil {
		t.Fatal(err)
	}
	log := zerolog.Nop()
	seen := make(chan []string, 1)
	capture := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		seen <- md.Get(middleware.ForwardedFor)
		return nil, status.Error(codes.Unauthenticated, "stop")
	}
	srv := grpc.NewServer(grpc.UnaryInterceptor(capture))
	rpc.Register(srv, rpc.NewCalendar(tbl, schedule.NewCalendars(source{}, schedule.Options{}), log))
	lis := bufconn.Listen(1 << 20)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	bridge, err := grpcweb.New("passthrough:///bufnet", middleware.CookieName, log,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { bridge.Close() })

	tests := []struct {
		name   string
		header map[string]string
		want   string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "203.0.113.9"},
		{"real ip", map[string]string{"X-Real-Ip": "203.0.113.10"}, "203.0.113.10"},
		{"connection", nil, "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/"+rpc.ServiceName+"/GetCounts", bytes.NewReader(frame(t, &structpb.Struct{})))
			req.Header.Set("Content-Type", "application/grpc-web+proto")
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			bridge.ServeHTTP(httptest.NewRecorder(), req)
			got := <-seen
			if len(got) != 1 || got[0] != tt.want {
				t.Errorf("x-forwarded-for %v, want %s", got, tt.want)
			}
		})
	}
}
