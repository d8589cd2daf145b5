package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                             "/",
		"/metrics":                     "/metrics",
		"/download/book1.pdf":          "/download/:id",
		"/download/book1.pdf?token=xx": "/download/:id",
		"/download/generate":           "/download/generate",
		"/v1/books":                    "/v1/books",
		"/v1/books/01J8XYZ":            "/v1/books/:id",
		"/pay/init":                    "/pay/init",
		"/webhook/paystack":            "/webhook/paystack",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
