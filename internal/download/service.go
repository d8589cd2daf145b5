// Package download issues and redeems signed capabilities for files kept in
// a private storage root outside any public document tree.
//
// Tokens are not single-use: a capability stays redeemable until it expires.
// Making downloads one-shot would need a redemption ledger and a product
// decision that has not been made.
package download

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"epcbooks.org/internal/token"
)

var (
	// ErrNotFound means the resource does not exist under the storage root.
	ErrNotFound = errors.New("file not found")
	// ErrInvalidToken re-exports the codec failure for boundary mapping.
	ErrInvalidToken = token.ErrInvalidToken
)

// Grant is the result of issuing a capability.
type Grant struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service combines the token codec with filesystem resolution.
type Service struct {
	root       string
	codec      *token.Codec
	defaultTTL time.Duration
}

// NewService creates a Service rooted at dir.
func NewService(dir string, codec *token.Codec, defaultTTL time.Duration) *Service {
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	return &Service{root: dir, codec: codec, defaultTTL: defaultTTL}
}

// DefaultTTL returns the TTL applied when the caller does not supply one.
func (s *Service) DefaultTTL() time.Duration { return s.defaultTTL }

// Root returns the private storage directory.
func (s *Service) Root() string { return s.root }

// SafeName strips any directory components from a caller-supplied
// identifier. Every filesystem lookup goes through this, so a resourceID
// like "../../etc/passwd" degrades to a plain basename lookup inside the
// storage root.
func SafeName(resourceID string) string {
	name := filepath.Base(filepath.Clean(strings.ReplaceAll(resourceID, "\\", "/")))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return ""
	}
	return name
}

// Issue mints a capability for resourceID, refusing when the underlying
// file does not exist. The returned URL is relative to the service host.
func (s *Service) Issue(resourceID string, ttl time.Duration) (Grant, error) {
	name := SafeName(resourceID)
	if name == "" {
		return Grant{}, ErrNotFound
	}
	if _, err := os.Stat(filepath.Join(s.root, name)); err != nil {
		return Grant{}, ErrNotFound
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	tok, expiresAt := s.codec.Issue(resourceID, ttl)
	u := "/download/" + url.PathEscape(resourceID) + "?token=" + url.QueryEscape(tok)
	return Grant{URL: u, ExpiresAt: expiresAt}, nil
}

// Open validates the capability and opens the backing file. The caller owns
// the returned handle. Token validation runs before any filesystem access,
// so forged tokens cannot probe for file existence.
func (s *Service) Open(resourceID, tok string) (*os.File, fs.FileInfo, error) {
	if err := s.codec.Redeem(resourceID, tok); err != nil {
		return nil, nil, err
	}
	name := SafeName(resourceID)
	if name == "" {
		return nil, nil, ErrNotFound
	}
	f, err := os.Open(filepath.Join(s.root, name))
	if err != nil {
		return nil, nil, ErrNotFound
	}
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		f.Close()
		return nil, nil, ErrNotFound
	}
	return f, info, nil
}
