package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

const csrfValueRawSize = 32

// NewCSRFValue generates a cryptographically random anti-forgery token
// value, base64url without padding.
func NewCSRFValue() (string, error) {
	var raw [csrfValueRawSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// HashCSRFValue maps a token value to its stored digest. Only digests are
// persisted; a leaked store never yields presentable values.
func HashCSRFValue(value string) [32]byte {
	return sha256.Sum256([]byte(value))
}

// CompositeIdentifier builds the rate-limit identity for a caller: the
// network address joined with a short digest of the client-presented
// fingerprint. Rotating IPs alone is not enough to escape a window, and
// the raw fingerprint never becomes a Redis key.
func CompositeIdentifier(ip, fingerprint string) string {
	if ip == "" {
		ip = "unknown"
	}
	if fingerprint == "" {
		return ip
	}

	sum := sha256.Sum256([]byte(fingerprint))
	return ip + ":" + hex.EncodeToString(sum[:6])
}
