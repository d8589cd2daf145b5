package token

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestIssueRedeemRoundTrip(t *testing.T) {
	c := NewCodec([]byte("download-secret"))
	tok, expiresAt := c.Issue("book1.pdf", time.Hour)
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expected future expiry, got %v", expiresAt)
	}
	if err := c.Redeem("book1.pdf", tok); err != nil {
		t.Fatalf("Redeem: %v", err)
	}
}

func TestRedeemExpiryBoundary(t *testing.T) {
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewCodec([]byte("download-secret")).WithClock(fixedClock(issued))
	tok, expiresAt := c.Issue("book1.pdf", time.Minute)

	// Exactly at expiry: still valid.
	c.WithClock(fixedClock(expiresAt))
	if err := c.Redeem("book1.pdf", tok); err != nil {
		t.Fatalf("token rejected at expiry instant: %v", err)
	}

	// One millisecond past expiry: rejected.
	c.WithClock(fixedClock(expiresAt.Add(time.Millisecond)))
	if err := c.Redeem("book1.pdf", tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}
}

func TestRedeemWrongResource(t *testing.T) {
	c := NewCodec([]byte("download-secret"))
	tok, _ := c.Issue("book1.pdf", time.Hour)
	if err := c.Redeem("book2.pdf", tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token for book1 accepted for book2")
	}
}

func TestRedeemWrongSecret(t *testing.T) {
	tok, _ := NewCodec([]byte("secret-a")).Issue("book1.pdf", time.Hour)
	if err := NewCodec([]byte("secret-b")).Redeem("book1.pdf", tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token signed with foreign secret accepted")
	}
}

func TestRedeemMalformedTokens(t *testing.T) {
	c := NewCodec([]byte("download-secret"))
	valid, _ := c.Issue("book1.pdf", time.Hour)

	cases := map[string]string{
		"empty":           "",
		"not base64":      "!!!not-base64!!!",
		"no separator":    base64.RawURLEncoding.EncodeToString([]byte("justonefield")),
		"empty signature": base64.RawURLEncoding.EncodeToString([]byte("1893456000000:")),
		"non-numeric exp": base64.RawURLEncoding.EncodeToString([]byte("soon:abcd")),
		"negative exp":    base64.RawURLEncoding.EncodeToString([]byte("-5:abcd")),
		"short signature": base64.RawURLEncoding.EncodeToString([]byte("1893456000000:ab")),
		"truncated valid": valid[:len(valid)/2],
		"padded valid":    valid + "AA",
	}
	for name, tok := range cases {
		if err := c.Redeem("book1.pdf", tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestRedeemTamperedSignature(t *testing.T) {
	c := NewCodec([]byte("download-secret"))
	tok, _ := c.Issue("book1.pdf", time.Hour)

	decoded, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	raw := string(decoded)
	// Flip the last signature hex digit.
	last := raw[len(raw)-1]
	replacement := byte('0')
	if last == '0' {
		replacement = '1'
	}
	tampered := base64.RawURLEncoding.EncodeToString([]byte(raw[:len(raw)-1] + string(replacement)))
	if err := c.Redeem("book1.pdf", tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("tampered signature accepted")
	}
}

func FuzzRedeemNeverPanics(f *testing.F) {
	c := NewCodec([]byte("download-secret"))
	seed, _ := c.Issue("book1.pdf", time.Hour)
	f.Add("book1.pdf", seed)
	f.Add("book1.pdf", "")
	f.Add("../../etc/passwd", strings.Repeat("A", 512))
	f.Fuzz(func(t *testing.T, resource, tok string) {
		// Redemption must fail closed on arbitrary input, never panic.
		_ = c.Redeem(resource, tok)
	})
}
