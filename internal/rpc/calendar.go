// Package rpc serves the calendar read model over gRPC for internal tools.
// Messages are google.protobuf.Struct so no generated code is needed.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"estate-dashboard/internal/backend"
	"estate-dashboard/internal/middleware"
	"estate-dashboard/internal/policy"
	"estate-dashboard/internal/schedule"
)

const ServiceName = "estate.dashboard.v1.CalendarService"

type CalendarServer interface {
	GetCalendar(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCounts(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var CalendarServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CalendarServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetCalendar", Handler: unary("GetCalendar", CalendarServer.GetCalendar)},
		{MethodName: "GetCounts", Handler: unary("GetCounts", CalendarServer.GetCounts)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "estate/dashboard/v1/calendar.proto",
}

type method func(CalendarServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// unaryHandler matches grpc.MethodDesc.Handler.
type unaryHandler = func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error)

func unary(name string, m method) unaryHandler {
	full := "/" + ServiceName + "/" + name
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return m(srv.(CalendarServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
		handler := func(ctx context.Context, req any) (any, error) {
			return m(srv.(CalendarServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type Calendar struct {
	policy    *policy.Table
	calendars *schedule.Calendars
	log       zerolog.Logger
}

func NewCalendar(t *policy.Table, cs *schedule.Calendars, log zerolog.Logger) *Calendar {
	return &Calendar{policy: t, calendars: cs, log: log}
}

func Register(s *grpc.Server, c *Calendar) {
	s.RegisterService(&CalendarServiceDesc, c)
}

// open checks the session's scope and returns its calendar, loaded.
func (c *Calendar) open(ctx context.Context, reload bool) (*schedule.Calendar, error) {
	s := middleware.SessionFrom(ctx)
	if err := c.policy.Permit(s, "calendar"); err != nil {
		if errors.Is(err, policy.ErrNoSession) {
			return nil, status.Error(codes.Unauthenticated, "sign in required")
		}
		return nil, status.Error(codes.PermissionDenied, "not allowed")
	}
	cal := c.calendars.For(s.ID)
	var err error
	if reload {
		err = cal.Reload(ctx)
	} else {
		err = cal.Load(ctx)
	}
	if err != nil {
		c.log.Warn().Err(err).Str("user_id", s.UserID).Msg("rpc calendar load failed")
		return nil, toStatus(err)
	}
	return cal, nil
}

// GetCalendar accepts {view, reload, date, width} and answers with the
// calendar snapshot.
func (c *Calendar) GetCalendar(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f := in.GetFields()
	view, err := schedule.ParseView(f["view"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	cal, err := c.open(ctx, f["reload"].GetBoolValue())
	if err != nil {
		return nil, err
	}
	cal.SetView(view)
	if date := f["date"].GetStringValue(); date != "" {
		if _, err := cal.SelectDate(date, int(f["width"].GetNumberValue())); err != nil {
			return nil, toStatus(err)
		}
	}
	return toStruct(cal.Snapshot())
}

// GetCounts accepts an optional {month: "YYYY-MM"} and answers with
// {counts: {date: n}}.
func (c *Calendar) GetCounts(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	month := in.GetFields()["month"].GetStringValue()
	cal, err := c.open(ctx, false)
	if err != nil {
		return nil, err
	}
	counts := cal.Snapshot().Counts
	if month != "" {
		for day := range counts {
			if !strings.HasPrefix(day, month+"-") {
				delete(counts, day)
			}
		}
	}
	return toStruct(map[string]any{"counts": counts})
}

func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, schedule.ErrInvalid):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, schedule.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, schedule.ErrTooLate):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, backend.ErrNoToken):
		return status.Error(codes.Unauthenticated, "sign in required")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "backend timed out")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request cancelled")
	case backend.StatusOf(err) == http.StatusUnauthorized:
		return status.Error(codes.Unauthenticated, "session rejected by backend")
	}
	return status.Error(codes.Unavailable, "backend unavailable")
}

var _ CalendarServer = (*Calendar)(nil)
