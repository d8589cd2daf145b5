// Package webhook authenticates gateway callbacks.
//
// Paystack signs every delivery with HMAC-SHA512 over the exact bytes it
// sent, hex-encoded in the X-Paystack-Signature header. Verification must
// run against the raw request body; re-serializing the JSON first would
// silently diverge from the sender's signature.
package webhook

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// SignatureHeader is the HTTP header carrying the hex HMAC.
const SignatureHeader = "X-Paystack-Signature"

// Verifier checks webhook payload signatures against the shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier from the gateway shared secret.
func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret}
}

// Verify reports whether providedHex is the HMAC-SHA512 of rawBody.
// Comparison is constant-time.
func (v *Verifier) Verify(rawBody []byte, providedHex string) bool {
	providedHex = strings.TrimSpace(providedHex)
	if providedHex == "" {
		return false
	}
	mac := hmac.New(sha512.New, v.secret)
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(providedHex))
}

// Sign computes the hex signature for a payload. Used by tests and tooling.
func (v *Verifier) Sign(rawBody []byte) string {
	mac := hmac.New(sha512.New, v.secret)
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}

// Event is the envelope the gateway delivers. Data stays opaque until the
// handler for the specific event type decodes it.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ParseEvent decodes the envelope from verified raw bytes.
func ParseEvent(rawBody []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(rawBody, &evt); err != nil {
		return Event{}, fmt.Errorf("decode webhook event: %w", err)
	}
	if strings.TrimSpace(evt.Event) == "" {
		return Event{}, fmt.Errorf("webhook event type missing")
	}
	return evt, nil
}
