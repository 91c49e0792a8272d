package middleware

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"estate-dashboard/internal/auth"
	"estate-dashboard/internal/backend"
	"estate-dashboard/internal/model"
	"estate-dashboard/internal/policy"
)

type ctxKey string

const SessionKey ctxKey = "session"

type SessionReader interface {
	Get(ctx context.Context, id string) (*model.Session, error)
}

func WithSession(ctx context.Context, s *model.Session) context.Context {
	ctx = backend.WithToken(ctx, s.Token)
	return context.WithValue(ctx, SessionKey, s)
}

func SessionFrom(ctx context.Context) *model.Session {
	s, _ := ctx.Value(SessionKey).(*model.Session)
	return s
}

// Resolve turns a signed session cookie value into the live session.
func Resolve(ctx context.Context, sessions SessionReader, secret, raw string) (*model.Session, error) {
	if raw == "" {
		return nil, policy.ErrNoSession
	}
	claims, err := auth.ParseToken(raw, secret)
	if err != nil {
		return nil, err
	}
	return sessions.Get(ctx, claims.SessionID)
}

// skip auth for these
var open = map[string]bool{
	"/grpc.health.v1.Health/Check": true,
}

func Auth(sessions SessionReader, secret string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if open[info.FullMethod] {
			return next(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		// session cookie value from Authorization: Bearer <token>
		raw := ""
		vals := md.Get("authorization")
		if len(vals) > 0 {
			raw = strings.TrimPrefix(vals[0], "Bearer ")
		}

		if raw == "" {
			return nil, status.Error(codes.Unauthenticated, "no token")
		}

		s, err := Resolve(ctx, sessions, secret, raw)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "bad token")
		}

		return next(WithSession(ctx, s), req)
	}
}
