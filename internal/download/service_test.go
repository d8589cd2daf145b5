package download

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"epcbooks.org/internal/token"
)

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "book1.pdf"), []byte("pdf-bytes"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	codec := token.NewCodec([]byte("download-secret"))
	return NewService(root, codec, time.Hour), root
}

func TestIssueAndOpen(t *testing.T) {
	svc, _ := newTestService(t)

	grant, err := svc.Issue("book1.pdf", time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !strings.HasPrefix(grant.URL, "/download/book1.pdf?token=") {
		t.Fatalf("unexpected url: %s", grant.URL)
	}
	if time.Until(grant.ExpiresAt) <= 0 {
		t.Fatalf("expected future expiry: %v", grant.ExpiresAt)
	}

	tok := strings.TrimPrefix(grant.URL, "/download/book1.pdf?token=")
	f, info, err := svc.Open("book1.pdf", tok)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	if info.Size() != int64(len("pdf-bytes")) {
		t.Fatalf("unexpected size: %d", info.Size())
	}
}

func TestIssueUnknownResource(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Issue("missing.pdf", time.Minute); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Issue("", time.Minute); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty id, got %v", err)
	}
}

func TestOpenRejectsInvalidToken(t *testing.T) {
	svc, _ := newTestService(t)
	if _, _, err := svc.Open("book1.pdf", "garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestPathTraversalResolvesToBasename(t *testing.T) {
	svc, root := newTestService(t)

	// A sensitive file outside the storage root must be unreachable even
	// with a validly signed token for the traversal string.
	outside := filepath.Join(filepath.Dir(root), "secret.txt")
	_ = os.WriteFile(outside, []byte("secret"), 0o600)

	traversal := "../../etc/passwd"
	codec := token.NewCodec([]byte("download-secret"))
	tok, _ := codec.Issue(traversal, time.Minute)

	if _, _, err := svc.Open(traversal, tok); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for traversal, got %v", err)
	}
	if _, err := svc.Issue(traversal, time.Minute); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound issuing for traversal, got %v", err)
	}
}

func TestSafeName(t *testing.T) {
	cases := map[string]string{
		"book1.pdf":          "book1.pdf",
		"../../etc/passwd":   "passwd",
		"..\\..\\boot.ini":   "boot.ini",
		"/abs/path/file.pdf": "file.pdf",
		"..":                 "",
		".":                  "",
		"":                   "",
		"dir/sub/x.pdf":      "x.pdf",
	}
	for input, expected := range cases {
		if got := SafeName(input); got != expected {
			t.Fatalf("SafeName(%q)=%q, want %q", input, got, expected)
		}
	}
}
