package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

// opaqueTokenBytes is the entropy of refresh and reset tokens (256 bits).
const opaqueTokenBytes = 32

// ErrMalformedToken is returned by NormalizeOpaqueToken when the value is not
// a canonical unpadded base64url token of the expected length.
var ErrMalformedToken = errors.New("malformed opaque token")

// NewOpaqueToken generates a cryptographically random opaque token, encoded as
// unpadded base64url. Used for refresh and password-reset tokens. Only the
// SHA-256 hash of the returned value may be persisted.
func NewOpaqueToken() (string, error) {
	b := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NormalizeOpaqueToken validates that s is a canonical unpadded base64url
// encoding of a token of the expected length and returns it unchanged. One
// canonical encoding is fixed at the transport boundary; there is no fallback
// decoding.
func NormalizeOpaqueToken(s string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil || len(raw) != opaqueTokenBytes {
		return "", ErrMalformedToken
	}
	return s, nil
}

// HashOpaqueToken returns the hex-encoded SHA-256 hash of the token string.
// Stores and lookups use the hash; the raw value never touches storage.
func HashOpaqueToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// OpaqueTokenHashEqual compares the provided token's hash against the stored
// hash in constant time. Returns true only on a match.
func OpaqueTokenHashEqual(providedToken, storedHash string) bool {
	providedHash := HashOpaqueToken(providedToken)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}
