package webhook

import (
	"strings"
	"testing"
)

func TestVerifyRoundTrip(t *testing.T) {
	v := NewVerifier([]byte("sk_test_secret"))
	body := []byte(`{"event":"charge.success","data":{"reference":"EPC_1"}}`)
	sig := v.Sign(body)
	if !v.Verify(body, sig) {
		t.Fatal("valid signature rejected")
	}
}

func TestVerifyTamperedBody(t *testing.T) {
	v := NewVerifier([]byte("sk_test_secret"))
	body := []byte(`{"event":"charge.success","data":{"reference":"EPC_1"}}`)
	sig := v.Sign(body)

	for i := range body {
		tampered := append([]byte(nil), body...)
		tampered[i] ^= 0x01
		if v.Verify(tampered, sig) {
			t.Fatalf("signature accepted after flipping byte %d", i)
		}
	}
}

func TestVerifyRejectsBadSignatures(t *testing.T) {
	v := NewVerifier([]byte("sk_test_secret"))
	body := []byte(`{"event":"charge.success"}`)
	sig := v.Sign(body)

	cases := map[string]string{
		"empty":        "",
		"whitespace":   "   ",
		"short":        sig[:16],
		"wrong secret": NewVerifier([]byte("other")).Sign(body),
		"not hex":      strings.Repeat("zz", 64),
	}
	for name, bad := range cases {
		if v.Verify(body, bad) {
			t.Fatalf("%s signature accepted", name)
		}
	}
}

func TestParseEvent(t *testing.T) {
	evt, err := ParseEvent([]byte(`{"event":"charge.success","data":{"reference":"EPC_9","amount":5000}}`))
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if evt.Event != "charge.success" {
		t.Fatalf("unexpected event type: %q", evt.Event)
	}
	if len(evt.Data) == 0 {
		t.Fatal("expected raw data payload")
	}

	if _, err := ParseEvent([]byte(`{"data":{}}`)); err == nil {
		t.Fatal("expected error for missing event type")
	}
	if _, err := ParseEvent([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}
