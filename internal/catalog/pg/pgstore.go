package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"epcbooks.org/internal/catalog"
	"epcbooks.org/internal/ids"
)

// Store persists the book catalog in Postgres.
type Store struct {
	db *sql.DB
}

var _ catalog.Service = (*Store)(nil)

// Open connects via the pgx stdlib driver.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing handle (tests).
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Add(ctx context.Context, b catalog.Book) (catalog.Book, error) {
	b.Title = strings.TrimSpace(b.Title)
	if err := b.Validate(); err != nil {
		return catalog.Book{}, err
	}
	if b.Currency == "" {
		b.Currency = "GHS"
	}
	b.ID = ids.New()
	b.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		insert into books(id, title, description, price_minor, currency, category, file, image, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, b.ID, b.Title, b.Description, b.PriceMinor, b.Currency, b.Category, b.File, b.Image, b.CreatedAt)
	if err != nil {
		return catalog.Book{}, err
	}
	return b, nil
}

func (s *Store) Get(ctx context.Context, id string) (catalog.Book, error) {
	var b catalog.Book
	err := s.db.QueryRowContext(ctx, `
		select id, title, description, price_minor, currency, category, file, image, created_at
		from books where id=$1
	`, id).Scan(&b.ID, &b.Title, &b.Description, &b.PriceMinor, &b.Currency, &b.Category, &b.File, &b.Image, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Book{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Book{}, err
	}
	return b, nil
}

func (s *Store) List(ctx context.Context) ([]catalog.Book, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, title, description, price_minor, currency, category, file, image, created_at
		from books order by id asc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Book
	for rows.Next() {
		var b catalog.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Description, &b.PriceMinor, &b.Currency, &b.Category, &b.File, &b.Image, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
