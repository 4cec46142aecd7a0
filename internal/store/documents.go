package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const documentColumns = `id, book_id, title, kind, source, content_hash, processing, error, block_count, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(r rowScanner) (Document, error) {
	var d Document
	var created int64
	err := r.Scan(&d.ID, &d.BookID, &d.Title, &d.Kind, &d.Source, &d.ContentHash,
		&d.Processing, &d.Error, &d.BlockCount, &created)
	if err != nil {
		return Document{}, err
	}
	d.CreatedAt = fromUnix(created)
	return d, nil
}

// CreateDocument inserts d in the processing state. ID and CreatedAt are
// assigned here.
func (s *Store) CreateDocument(ctx context.Context, d Document) (Document, error) {
	d.ID = newID()
	d.CreatedAt = s.now().UTC()
	d.Processing = true
	// Null bytes are not valid in SQLite text.
	d.Title = strings.ReplaceAll(d.Title, "\x00", "")

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (`+documentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.BookID, d.Title, d.Kind, d.Source, d.ContentHash, d.Processing, d.Error, d.BlockCount, toUnix(d.CreatedAt))
	if err != nil {
		return Document{}, fmt.Errorf("insert document: %w", err)
	}
	return d, nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (Document, error) {
	d, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if err != nil {
		return Document{}, notFound(err, "get document")
	}
	return d, nil
}

// ListDocuments returns the documents of a book in upload order.
func (s *Store) ListDocuments(ctx context.Context, bookID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE book_id = ? ORDER BY created_at, rowid`, bookID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// ClaimDocumentHash records hash on document id unless another document of
// bookID that has not failed already carries it, ready or still processing.
// In that case the earliest such document is returned with claimed false and
// nothing is written. Check and write share one transaction.
func (s *Store) ClaimDocumentHash(ctx context.Context, bookID, id, hash string) (existing Document, claimed bool, err error) {
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		d, err := scanDocument(tx.QueryRowContext(ctx,
			`SELECT `+documentColumns+` FROM documents
			 WHERE book_id = ? AND content_hash = ? AND id <> ? AND error = ''
			 ORDER BY created_at LIMIT 1`, bookID, hash, id))
		if err == nil {
			existing = d
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("find document by hash: %w", err)
		}

		res, err := tx.ExecContext(ctx, `UPDATE documents SET content_hash = ? WHERE id = ?`, hash, id)
		if err != nil {
			return fmt.Errorf("set document hash: %w", err)
		}
		if err := checkAffected(res, "set document hash"); err != nil {
			return err
		}
		claimed = true
		return nil
	})
	if err != nil {
		return Document{}, false, err
	}
	return existing, claimed, nil
}

func (s *Store) MarkDocumentReady(ctx context.Context, id string, blockCount int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET processing = 0, error = '', block_count = ? WHERE id = ?`, blockCount, id)
	if err != nil {
		return fmt.Errorf("mark document ready: %w", err)
	}
	return checkAffected(res, "mark document ready")
}

func (s *Store) MarkDocumentFailed(ctx context.Context, id, msg string) error {
	if msg == "" {
		msg = "processing failed"
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET processing = 0, error = ? WHERE id = ?`, msg, id)
	if err != nil {
		return fmt.Errorf("mark document failed: %w", err)
	}
	return checkAffected(res, "mark document failed")
}

// DeleteDocument removes a document and its blocks.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM blocks WHERE document_id = ?`, id); err != nil {
			return fmt.Errorf("delete blocks: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		return checkAffected(res, "delete document")
	})
}

// InsertBlocks stores the packed blocks of a document. IDs are assigned to
// blocks that have none and written back into the slice.
func (s *Store) InsertBlocks(ctx context.Context, documentID string, blocks []Block) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO blocks (id, document_id, seq, content) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert block: %w", err)
		}
		defer stmt.Close()

		for i := range blocks {
			if blocks[i].ID == "" {
				blocks[i].ID = newID()
			}
			blocks[i].DocumentID = documentID
			content := strings.ReplaceAll(blocks[i].Content, "\x00", "")
			if _, err := stmt.ExecContext(ctx, blocks[i].ID, documentID, blocks[i].Seq, content); err != nil {
				return fmt.Errorf("insert block %d: %w", blocks[i].Seq, err)
			}
		}
		return nil
	})
}

// ListBookBlocks returns the blocks of every ready document of a book, in
// document upload order and then block order.
func (s *Store) ListBookBlocks(ctx context.Context, bookID string) ([]Block, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT b.id, b.document_id, b.seq, b.content
		 FROM blocks b JOIN documents d ON d.id = b.document_id
		 WHERE d.book_id = ? AND d.processing = 0 AND d.error = ''
		 ORDER BY d.created_at, d.rowid, b.seq`, bookID)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	var blocks []Block
	for rows.Next() {
		var b Block
		if err := rows.Scan(&b.ID, &b.DocumentID, &b.Seq, &b.Content); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}
