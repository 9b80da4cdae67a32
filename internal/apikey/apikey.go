// Package apikey issues and checks the bearer keys customers and admins use
// against the API. Keys are stored twice: a SHA-256 hex digest for indexed
// lookup and a bcrypt hash for verification.
package apikey

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	prefix   = "sk_"
	keyBytes = 32
	cost     = 10
)

// Credentials is a freshly generated key. Plain is shown to the operator once.
type Credentials struct {
	Plain  string
	Lookup string
	Hash   string
}

func Generate() (Credentials, error) {
	buf := make([]byte, keyBytes)
	if _, err := rand.Read(buf); err != nil {
		return Credentials{}, fmt.Errorf("generate api key: %w", err)
	}
	plain := prefix + hex.EncodeToString(buf)

	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return Credentials{}, fmt.Errorf("hash api key: %w", err)
	}
	return Credentials{Plain: plain, Lookup: Lookup(plain), Hash: string(hash)}, nil
}

func Lookup(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func Verify(hash, key string) bool {
	if hash == "" || key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}

// FromHeader extracts the key from an "Authorization: Bearer <key>" value.
func FromHeader(header string) (string, bool) {
	scheme, key, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	key = strings.TrimSpace(key)
	return key, key != ""
}
