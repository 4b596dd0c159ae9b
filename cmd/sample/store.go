package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bjaus/dtoapi/dto/pgxrow"
)

var errNotFound = errors.New("book not found")

// bookStore persists books. Update only applies the non-zero fields of patch.
type bookStore interface {
	List(ctx context.Context, limit, offset int) ([]Book, int, error)
	Get(ctx context.Context, id int64) (Book, error)
	Create(ctx context.Context, b Book) (Book, error)
	Update(ctx context.Context, id int64, patch Book) (Book, error)
	Delete(ctx context.Context, id int64) error
}

type memStore struct {
	mu     sync.RWMutex
	books  map[int64]Book
	nextID int64
}

func newMemStore(seed ...Book) *memStore {
	s := &memStore{books: make(map[int64]Book), nextID: 1}
	for _, b := range seed {
		//nolint:errcheck // the memory store never fails
		s.Create(context.Background(), b)
	}
	return s
}

func (s *memStore) List(_ context.Context, limit, offset int) ([]Book, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Book, 0, len(s.books))
	for _, b := range s.books {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b Book) int { return cmp.Compare(a.ID, b.ID) })

	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (s *memStore) Get(_ context.Context, id int64) (Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[id]
	if !ok {
		return Book{}, errNotFound
	}
	return b, nil
}

func (s *memStore) Create(_ context.Context, b Book) (Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = s.nextID
	b.CreatedAt = time.Now().UTC()
	s.nextID++
	s.books[b.ID] = b
	return b, nil
}

func (s *memStore) Update(_ context.Context, id int64, patch Book) (Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok {
		return Book{}, errNotFound
	}
	if patch.Title != "" {
		b.Title = patch.Title
	}
	if patch.Author != "" {
		b.Author = patch.Author
	}
	if patch.Pages != 0 {
		b.Pages = patch.Pages
	}
	s.books[id] = b
	return b, nil
}

func (s *memStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[id]; !ok {
		return errNotFound
	}
	delete(s.books, id)
	return nil
}

const schema = `CREATE TABLE IF NOT EXISTS books (
	id         BIGSERIAL PRIMARY KEY,
	title      TEXT NOT NULL,
	author     TEXT NOT NULL DEFAULT '',
	pages      INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	notes      TEXT NOT NULL DEFAULT ''
)`

const bookColumns = "id, title, author, pages, created_at, notes"

// pgStore keeps books in PostgreSQL. Rows are scanned by their db tags.
type pgStore struct {
	pool *pgxpool.Pool
}

func newPGStore(ctx context.Context, cfg DatabaseConfig) (*pgStore, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pcfg.MaxConns = cfg.MaxConns
	pcfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &pgStore{pool: pool}, nil
}

func (s *pgStore) Close() { s.pool.Close() }

func (s *pgStore) List(ctx context.Context, limit, offset int) ([]Book, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM books").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count books: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		"SELECT "+bookColumns+" FROM books ORDER BY id LIMIT $1 OFFSET $2", limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}
	books, err := pgxrow.Collect[Book](rows)
	if err != nil {
		return nil, 0, fmt.Errorf("scan books: %w", err)
	}
	return books, total, nil
}

func (s *pgStore) Get(ctx context.Context, id int64) (Book, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+bookColumns+" FROM books WHERE id = $1", id)
	if err != nil {
		return Book{}, fmt.Errorf("get book: %w", err)
	}
	return one(rows)
}

func (s *pgStore) Create(ctx context.Context, b Book) (Book, error) {
	rows, err := s.pool.Query(ctx,
		"INSERT INTO books (title, author, pages, notes) VALUES ($1, $2, $3, $4) RETURNING "+bookColumns,
		b.Title, b.Author, b.Pages, b.Notes)
	if err != nil {
		return Book{}, fmt.Errorf("create book: %w", err)
	}
	return one(rows)
}

func (s *pgStore) Update(ctx context.Context, id int64, patch Book) (Book, error) {
	rows, err := s.pool.Query(ctx, `UPDATE books SET
	title  = COALESCE(NULLIF($2, ''), title),
	author = COALESCE(NULLIF($3, ''), author),
	pages  = COALESCE(NULLIF($4, 0), pages)
WHERE id = $1 RETURNING `+bookColumns,
		id, patch.Title, patch.Author, patch.Pages)
	if err != nil {
		return Book{}, fmt.Errorf("update book: %w", err)
	}
	return one(rows)
}

func (s *pgStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM books WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errNotFound
	}
	return nil
}

func one(rows pgx.Rows) (Book, error) {
	b, err := pgxrow.CollectOne[Book](rows)
	if errors.Is(err, pgx.ErrNoRows) {
		return Book{}, errNotFound
	}
	return b, err
}
