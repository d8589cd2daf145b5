package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"epcbooks.org/internal/ids"
)

// Service defines catalog operations.
type Service interface {
	Add(ctx context.Context, b Book) (Book, error)
	Get(ctx context.Context, id string) (Book, error)
	List(ctx context.Context) ([]Book, error)
}

// InMemory implements Service with in-process concurrency safety.
type InMemory struct {
	mu    sync.RWMutex
	books map[string]Book
}

// NewInMemory creates an empty catalog.
func NewInMemory() *InMemory {
	return &InMemory{books: make(map[string]Book)}
}

func (s *InMemory) Add(ctx context.Context, b Book) (Book, error) {
	b.Title = strings.TrimSpace(b.Title)
	if err := b.Validate(); err != nil {
		return Book{}, err
	}
	if b.Currency == "" {
		b.Currency = "GHS"
	}
	b.ID = ids.New()
	b.CreatedAt = time.Now().UTC()

	s.mu.Lock()
	s.books[b.ID] = b
	s.mu.Unlock()
	return b, nil
}

func (s *InMemory) Get(ctx context.Context, id string) (Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[id]
	if !ok {
		return Book{}, ErrNotFound
	}
	return b, nil
}

func (s *InMemory) List(ctx context.Context) ([]Book, error) {
	s.mu.RLock()
	out := make([]Book, 0, len(s.books))
	for _, b := range s.books {
		out = append(out, b)
	}
	s.mu.RUnlock()

	// ULIDs sort by creation time.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
