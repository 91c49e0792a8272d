// Package grpcweb lets browsers call the gRPC calendar service. Requests
// are forwarded as raw bytes to the native server, so the bridge knows
// nothing about the messages it carries.
package grpcweb

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	frameData    = 0x00
	frameTrailer = 0x80
	maxBody      = 4 << 20
)

// Bridge translates gRPC-Web (HTTP/1.1) to native gRPC.
type Bridge struct {
	conn   *grpc.ClientConn
	cookie string
	log    zerolog.Logger
}

// New dials the gRPC server at addr. The session cookie named cookie is
// forwarded as the bearer token when no Authorization header is sent.
func New(addr, cookie string, log zerolog.Logger, opts ...grpc.DialOption) (*Bridge, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpcweb dial: %w", err)
	}
	return &Bridge{conn: conn, cookie: cookie, log: log}, nil
}

func (b *Bridge) Close() error { return b.conn.Close() }

func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/grpc-web") {
		http.Error(w, "not grpc-web", http.StatusUnsupportedMediaType)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, codes.Internal, "read body failed")
		return
	}
	payload, err := unframe(body)
	if err != nil {
		writeError(w, codes.InvalidArgument, err.Error())
		return
	}

	md := metadata.MD{}
	if vals := r.Header.Values("Authorization"); len(vals) > 0 {
		md.Set("authorization", vals...)
	} else if ck, err := r.Cookie(b.cookie); err == nil && ck.Value != "" {
		md.Set("authorization", "Bearer "+ck.Value)
	}
	if ip := clientIP(r); ip != "" {
		md.Set("x-forwarded-for", ip)
	}
	ctx := metadata.NewOutgoingContext(r.Context(), md)

	resp := &rawMsg{}
	err = b.conn.Invoke(ctx, r.URL.Path, &rawMsg{data: payload}, resp,
		grpc.ForceCodec(rawCodec{}), grpc.CallContentSubtype("proto"))
	if err != nil {
		st, _ := status.FromError(err)
		b.log.Debug().Str("method", r.URL.Path).Str("code", st.Code().String()).Msg("grpc-web call failed")
		writeError(w, st.Code(), st.Message())
		return
	}
	writeSuccess(w, resp.data)
}

// clientIP picks the browser's address the way echo's RealIP does: the first
// X-Forwarded-For entry, then X-Real-IP, then the connection's host.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if ip := r.Header.Get("X-Real-Ip"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// unframe reads a single message: 1-byte flag, 4-byte big-endian length, payload.
func unframe(body []byte) ([]byte, error) {
	if len(body) < 5 {
		return nil, fmt.Errorf("body too short")
	}
	if body[0] != frameData {
		return nil, fmt.Errorf("unsupported frame flag %#x", body[0])
	}
	n := binary.BigEndian.Uint32(body[1:5])
	if int(n)+5 > len(body) {
		return nil, fmt.Errorf("incomplete frame")
	}
	return body[5 : 5+n], nil
}

func frame(flag byte, data []byte) []byte {
	out := make([]byte, 5+len(data))
	out[0] = flag
	binary.BigEndian.PutUint32(out[1:5], uint32(len(data)))
	copy(out[5:], data)
	return out
}

// rawMsg wraps already-encoded protobuf bytes.
type rawMsg struct{ data []byte }

// rawCodec passes bytes through untouched.
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	return v.(*rawMsg).data, nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	v.(*rawMsg).data = append([]byte(nil), data...)
	return nil
}

func (rawCodec) Name() string { return "raw" }

func writeError(w http.ResponseWriter, code codes.Code, msg string) {
	w.Header().Set("Content-Type", "application/grpc-web+proto")
	w.WriteHeader(http.StatusOK)
	w.Write(frame(frameTrailer, []byte(fmt.Sprintf("grpc-status:%d\r\ngrpc-message:%s\r\n", code, msg))))
}

func writeSuccess(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/grpc-web+proto")
	w.WriteHeader(http.StatusOK)
	w.Write(frame(frameData, data))
	w.Write(frame(frameTrailer, []byte("grpc-status:0\r\n")))
}
