package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// TokenBytes is the entropy of an access token before hex encoding.
const TokenBytes = 32

var ErrEmptySecret = errors.New("token secret must not be empty")

// NewToken mints an opaque access token (hex encoded random bytes).
func NewToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewSecret returns a random secret suitable for TOKEN_SECRET.
func NewSecret() (string, error) {
	return NewToken()
}

// TokenHasher computes room-bound token digests. Only digests are stored, so a
// leaked store dump does not yield usable tokens.
type TokenHasher struct {
	key []byte
}

// NewTokenHasher derives the digest key from secret with HKDF-SHA256.
func NewTokenHasher(secret string) (*TokenHasher, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	key := make([]byte, sha256.Size)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("realtime-chat room token digest v1"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}

	return &TokenHasher{key: key}, nil
}

// Digest binds token to roomID. The same token presented for another room
// produces a different digest.
func (h *TokenHasher) Digest(roomID, token string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(roomID))
	mac.Write([]byte{0})
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// Equal compares two tokens in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
