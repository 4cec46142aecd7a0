// Package store persists books, documents, blocks, card sets and chats in
// SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidField is returned by UpdateCard for fields other than
	// question and answer.
	ErrInvalidField = errors.New("invalid field")
	// ErrBusy is returned when a row is already being processed.
	ErrBusy = errors.New("busy")
)

// Document kinds.
const (
	KindPDF     = "pdf"
	KindYouTube = "youtube"
	KindFile    = "file"
)

type Book struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Owner     string    `json:"owner,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Document struct {
	ID          string    `json:"id"`
	BookID      string    `json:"book_id"`
	Title       string    `json:"title"`
	Kind        string    `json:"kind"`
	Source      string    `json:"source"`
	ContentHash string    `json:"content_hash,omitempty"`
	Processing  bool      `json:"processing"`
	Error       string    `json:"error,omitempty"`
	BlockCount  int       `json:"block_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type Block struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Seq        int    `json:"seq"`
	Content    string `json:"content"`
}

type CardSet struct {
	ID         string    `json:"id"`
	BookID     string    `json:"book_id"`
	Title      string    `json:"title"`
	Processing bool      `json:"processing"`
	CreatedAt  time.Time `json:"created_at"`
	Cards      []Card    `json:"cards,omitempty"`
}

type Card struct {
	ID        string `json:"id"`
	CardSetID string `json:"card_set_id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Position  int    `json:"position"`
}

type Chat struct {
	ID         string    `json:"id"`
	BookID     string    `json:"book_id"`
	User       string    `json:"user"`
	AIResponse string    `json:"ai_response"`
	CreatedAt  time.Time `json:"created_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS books (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	owner      TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS documents (
	id           TEXT PRIMARY KEY,
	book_id      TEXT NOT NULL REFERENCES books(id),
	title        TEXT NOT NULL,
	kind         TEXT NOT NULL,
	source       TEXT NOT NULL DEFAULT '',
	content_hash TEXT NOT NULL DEFAULT '',
	processing   INTEGER NOT NULL DEFAULT 1,
	error        TEXT NOT NULL DEFAULT '',
	block_count  INTEGER NOT NULL DEFAULT 0,
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS documents_book ON documents(book_id);
CREATE INDEX IF NOT EXISTS documents_hash ON documents(book_id, content_hash);
CREATE TABLE IF NOT EXISTS blocks (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id),
	seq         INTEGER NOT NULL,
	content     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS blocks_document ON blocks(document_id, seq);
CREATE TABLE IF NOT EXISTS card_sets (
	id         TEXT PRIMARY KEY,
	book_id    TEXT NOT NULL REFERENCES books(id),
	title      TEXT NOT NULL,
	processing INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS cards (
	id          TEXT PRIMARY KEY,
	card_set_id TEXT NOT NULL REFERENCES card_sets(id),
	question    TEXT NOT NULL,
	answer      TEXT NOT NULL,
	position    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS cards_set ON cards(card_set_id, position);
CREATE TABLE IF NOT EXISTS chats (
	id           TEXT PRIMARY KEY,
	book_id      TEXT NOT NULL REFERENCES books(id),
	user_message TEXT NOT NULL,
	ai_response  TEXT NOT NULL,
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS chats_book ON chats(book_id, created_at);
`

// Store is a SQLite-backed repository.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the database at dsn and creates the schema. Use ":memory:" for
// an ephemeral database.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func newID() string {
	return uuid.NewString()
}

func toUnix(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// inTx runs fn inside a transaction.
func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func checkAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
