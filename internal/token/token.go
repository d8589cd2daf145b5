// Package token implements the signed download capability scheme.
//
// A token encodes an expiry timestamp and an HMAC over "resourceID:expiry".
// The resource identifier is deliberately not embedded: the caller supplies
// it again at redemption (it travels in the URL path) and it is bound to the
// token only through the signature input, so a token minted for one file can
// never redeem another.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidToken covers every redemption failure: bad encoding, missing
// fields, expiry in the past, or a signature mismatch. Callers never learn
// which check failed.
var ErrInvalidToken = errors.New("invalid or expired download token")

// Codec signs and verifies download capabilities.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec creates a Codec from the download-signing secret.
func NewCodec(secret []byte) *Codec {
	return &Codec{secret: secret, now: time.Now}
}

// WithClock overrides the time source. Test use only.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	c.now = now
	return c
}

// Issue mints a capability for resourceID valid for ttl from now.
// The returned expiry is in Unix milliseconds, matching the wire format.
func (c *Codec) Issue(resourceID string, ttl time.Duration) (string, time.Time) {
	expiresAt := c.now().Add(ttl)
	millis := expiresAt.UnixMilli()
	sig := c.sign(resourceID, millis)
	raw := strconv.FormatInt(millis, 10) + ":" + sig
	return base64.RawURLEncoding.EncodeToString([]byte(raw)), expiresAt
}

// Redeem validates a capability for resourceID. Expiry is boundary-inclusive:
// a token is accepted up to and including its expiry instant.
func (c *Codec) Redeem(resourceID, tok string) error {
	decoded, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		return ErrInvalidToken
	}
	expiresStr, sig, ok := strings.Cut(string(decoded), ":")
	if !ok || expiresStr == "" || sig == "" {
		return ErrInvalidToken
	}
	millis, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil || millis <= 0 {
		return ErrInvalidToken
	}
	if c.now().UnixMilli() > millis {
		return ErrInvalidToken
	}
	expected := c.sign(resourceID, millis)
	// hmac.Equal is constant-time and rejects length mismatches without
	// leaking how many leading bytes matched.
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return ErrInvalidToken
	}
	return nil
}

func (c *Codec) sign(resourceID string, expiresMillis int64) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(resourceID + ":" + strconv.FormatInt(expiresMillis, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}
