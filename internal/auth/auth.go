package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrBadToken = errors.New("invalid token")

// Claims ride in the session cookie. The session itself stays server-side.
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

func NewSessionID() string {
	return uuid.New().String()
}

func MakeToken(sid, uid, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := Claims{
		SessionID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}

func ParseToken(raw, secret string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		// block alg confusion
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	c, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || c.SessionID == "" {
		return nil, ErrBadToken
	}
	return c, nil
}

// HashToken is what gets stored instead of a raw session id.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
