package auth_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"estate-dashboard/internal/auth"
)

const secret = "test-secret-0123456789"

func TestTokenRoundTrip(t *testing.T) {
	sid := auth.NewSessionID()
	tok, err := auth.MakeToken(sid, "u1", secret, time.Hour)
	if err != nil {
		t.Fatalf("make: %v", err)
	}
	c, err := auth.ParseToken(tok, secret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.SessionID != sid {
		t.Errorf("sid: got %s, want %s", c.SessionID, sid)
	}
	if c.Subject != "u1" {
		t.Errorf("subject: got %s", c.Subject)
	}
}

func TestParseTokenRejects(t *testing.T) {
	good, _ := auth.MakeToken("s1", "u1", secret, time.Hour)
	expired, _ := auth.MakeToken("s1", "u1", secret, -time.Minute)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, auth.Claims{SessionID: "s1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	noSID, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{}).SignedString([]byte(secret))

	tests := []struct {
		name   string
		raw    string
		secret string
	}{
		{"wrong secret", good, "another-secret-000000"},
		{"expired", expired, secret},
		{"alg none", none, secret},
		{"missing session id", noSID, secret},
		{"garbage", "not.a.token", secret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := auth.ParseToken(tt.raw, tt.secret); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestHashToken(t *testing.T) {
	a := auth.HashToken("abc")
	if a != auth.HashToken("abc") {
		t.Fatal("hash not deterministic")
	}
	if a == auth.HashToken("abd") {
		t.Fatal("different inputs collided")
	}
	if len(a) != 64 {
		t.Errorf("expected hex sha256, got len %d", len(a))
	}
}

func TestSealOpen(t *testing.T) {
	k, err := auth.DeriveKey(secret, "sessions")
	if err != nil {
		t.Fatal(err)
	}
	sealed, err := auth.Seal(k, "backend-bearer")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if strings.Contains(sealed, "backend-bearer") {
		t.Fatal("plaintext visible in sealed value")
	}
	again, _ := auth.Seal(k, "backend-bearer")
	if again == sealed {
		t.Error("nonce reused")
	}
	got, err := auth.Open(k, sealed)
	if err != nil || got != "backend-bearer" {
		t.Fatalf("open: %q %v", got, err)
	}

	other, _ := auth.DeriveKey(secret, "something-else")
	tampered := []byte(sealed)
	tampered[len(tampered)-2] ^= 'A' ^ 'B'

	tests := []struct {
		name   string
		key    *auth.Key
		sealed string
	}{
		{"other purpose", other, sealed},
		{"tampered", k, string(tampered)},
		{"truncated", k, sealed[:10]},
		{"not base64", k, "%%%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := auth.Open(tt.key, tt.sealed); !errors.Is(err, auth.ErrSealed) {
				t.Errorf("got %v", err)
			}
		})
	}
}
