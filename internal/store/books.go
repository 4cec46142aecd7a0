package store

import (
	"context"
	"fmt"
)

func (s *Store) CreateBook(ctx context.Context, title, owner string) (Book, error) {
	b := Book{ID: newID(), Title: title, Owner: owner, CreatedAt: s.now().UTC()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO books (id, title, owner, created_at) VALUES (?, ?, ?, ?)`,
		b.ID, b.Title, b.Owner, toUnix(b.CreatedAt))
	if err != nil {
		return Book{}, fmt.Errorf("insert book: %w", err)
	}
	return b, nil
}

func (s *Store) GetBook(ctx context.Context, id string) (Book, error) {
	var b Book
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, owner, created_at FROM books WHERE id = ?`, id).
		Scan(&b.ID, &b.Title, &b.Owner, &created)
	if err != nil {
		return Book{}, notFound(err, "get book")
	}
	b.CreatedAt = fromUnix(created)
	return b, nil
}

// ListBooks returns all books, newest first.
func (s *Store) ListBooks(ctx context.Context) ([]Book, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, owner, created_at FROM books ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var books []Book
	for rows.Next() {
		var b Book
		var created int64
		if err := rows.Scan(&b.ID, &b.Title, &b.Owner, &created); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		b.CreatedAt = fromUnix(created)
		books = append(books, b)
	}
	return books, rows.Err()
}
