package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

var ErrSealed = errors.New("sealed value corrupt or wrong key")

const nonceSize = 24

type Key [32]byte

// DeriveKey stretches the session secret into a key bound to purpose.
func DeriveKey(secret, purpose string) (*Key, error) {
	k := new(Key)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(purpose))
	if _, err := io.ReadFull(r, k[:]); err != nil {
		return nil, err
	}
	return k, nil
}

// Seal encrypts plain for storage. The nonce is prepended.
func Seal(k *Key, plain string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err
	}
	out := secretbox.Seal(nonce[:], []byte(plain), &nonce, (*[32]byte)(k))
	return base64.RawStdEncoding.EncodeToString(out), nil
}

func Open(k *Key, sealed string) (string, error) {
	b, err := base64.RawStdEncoding.DecodeString(sealed)
	if err != nil || len(b) < nonceSize+secretbox.Overhead {
		return "", ErrSealed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], b[:nonceSize])
	plain, ok := secretbox.Open(nil, b[nonceSize:], &nonce, (*[32]byte)(k))
	if !ok {
		return "", ErrSealed
	}
	return string(plain), nil
}
