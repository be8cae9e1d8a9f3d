package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// DefaultSecret is used when SESSION_SECRET is unset. Servers log a
// warning when they fall back to it.
const DefaultSecret = "unsafe_default"

// tokenEncoding rejects non-zero trailing bits so that every token has a
// single valid spelling.
var tokenEncoding = base64.RawURLEncoding.Strict()

// Codec signs and verifies user identifiers carried in the session cookie.
// The token is base64url(id + "." + hex(HMAC-SHA256(secret, id))).
type Codec struct {
	secret []byte
}

// NewCodec creates a Codec keyed with secret. An empty secret falls back
// to DefaultSecret.
func NewCodec(secret string) *Codec {
	if secret == "" {
		secret = DefaultSecret
	}
	return &Codec{secret: []byte(secret)}
}

// Encode returns the cookie token for userID.
func (c *Codec) Encode(userID string) string {
	payload := userID + "." + c.sign(userID)
	return tokenEncoding.EncodeToString([]byte(payload))
}

// Decode verifies token and returns the user id it carries. Any malformed,
// truncated or tampered token yields ("", false).
func (c *Codec) Decode(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	raw, err := tokenEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return "", false
	}
	decoded := string(raw)
	i := strings.LastIndexByte(decoded, '.')
	if i <= 0 || i == len(decoded)-1 {
		return "", false
	}
	userID, sig := decoded[:i], decoded[i+1:]
	expected := c.sign(userID)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return "", false
	}
	return userID, true
}

func (c *Codec) sign(value string) string {
	h := hmac.New(sha256.New, c.secret)
	h.Write([]byte(value))
	return hex.EncodeToString(h.Sum(nil))
}
