package catalog

import (
	"errors"
	"time"
)

// Book describes one catalog entry. Prices are minor currency units, no floats.
type Book struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	PriceMinor  int64     `json:"price_minor"`
	Currency    string    `json:"currency"`
	Category    string    `json:"category,omitempty"`
	File        string    `json:"file"`
	Image       string    `json:"image,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

var (
	ErrNotFound     = errors.New("book not found")
	ErrInvalidTitle = errors.New("title is required")
	ErrInvalidPrice = errors.New("price must be > 0")
	ErrInvalidFile  = errors.New("file name is required")
)

// Validate checks the fields a caller must supply before Add.
func (b Book) Validate() error {
	if b.Title == "" {
		return ErrInvalidTitle
	}
	if b.PriceMinor <= 0 {
		return ErrInvalidPrice
	}
	if b.File == "" {
		return ErrInvalidFile
	}
	return nil
}
