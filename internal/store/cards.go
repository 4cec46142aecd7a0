package store

import (
	"context"
	"database/sql"
	"fmt"
)

func (s *Store) CreateCardSet(ctx context.Context, bookID, title string) (CardSet, error) {
	cs := CardSet{ID: newID(), BookID: bookID, Title: title, Processing: true, CreatedAt: s.now().UTC()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO card_sets (id, book_id, title, processing, created_at) VALUES (?, ?, ?, ?, ?)`,
		cs.ID, cs.BookID, cs.Title, cs.Processing, toUnix(cs.CreatedAt))
	if err != nil {
		return CardSet{}, fmt.Errorf("insert card set: %w", err)
	}
	return cs, nil
}

// GetCardSet returns a card set with its cards.
func (s *Store) GetCardSet(ctx context.Context, id string) (CardSet, error) {
	var cs CardSet
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, book_id, title, processing, created_at FROM card_sets WHERE id = ?`, id).
		Scan(&cs.ID, &cs.BookID, &cs.Title, &cs.Processing, &created)
	if err != nil {
		return CardSet{}, notFound(err, "get card set")
	}
	cs.CreatedAt = fromUnix(created)

	cs.Cards, err = s.ListCards(ctx, id)
	if err != nil {
		return CardSet{}, err
	}
	return cs, nil
}

// ListCardSets returns the card sets of a book, newest first, without cards.
func (s *Store) ListCardSets(ctx context.Context, bookID string) ([]CardSet, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, book_id, title, processing, created_at FROM card_sets
		 WHERE book_id = ? ORDER BY created_at DESC, rowid DESC`, bookID)
	if err != nil {
		return nil, fmt.Errorf("list card sets: %w", err)
	}
	defer rows.Close()

	var sets []CardSet
	for rows.Next() {
		var cs CardSet
		var created int64
		if err := rows.Scan(&cs.ID, &cs.BookID, &cs.Title, &cs.Processing, &created); err != nil {
			return nil, fmt.Errorf("scan card set: %w", err)
		}
		cs.CreatedAt = fromUnix(created)
		sets = append(sets, cs)
	}
	return sets, rows.Err()
}

func (s *Store) SetCardSetProcessing(ctx context.Context, id string, processing bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE card_sets SET processing = ? WHERE id = ?`, processing, id)
	if err != nil {
		return fmt.Errorf("update card set: %w", err)
	}
	return checkAffected(res, "update card set")
}

// ClaimCardSet marks an idle card set as processing. It fails with ErrBusy
// when the set is already processing, so only one caller wins.
func (s *Store) ClaimCardSet(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE card_sets SET processing = 1 WHERE id = ? AND processing = 0`, id)
	if err != nil {
		return fmt.Errorf("claim card set: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim card set: %w", err)
	}
	if n == 1 {
		return nil
	}
	if _, err := s.GetCardSet(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("claim card set: %w", ErrBusy)
}

// DeleteCardSet removes a card set and its cards.
func (s *Store) DeleteCardSet(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE card_set_id = ?`, id); err != nil {
			return fmt.Errorf("delete cards: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM card_sets WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete card set: %w", err)
		}
		return checkAffected(res, "delete card set")
	})
}

// ReplaceCards swaps the cards of a set for cards, numbered in order.
func (s *Store) ReplaceCards(ctx context.Context, setID string, cards []Card) ([]Card, error) {
	out := make([]Card, len(cards))
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM card_sets WHERE id = ?`, setID).Scan(&exists); err != nil {
			return notFound(err, "replace cards")
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE card_set_id = ?`, setID); err != nil {
			return fmt.Errorf("delete cards: %w", err)
		}
		for i, c := range cards {
			c.ID = newID()
			c.CardSetID = setID
			c.Position = i
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO cards (id, card_set_id, question, answer, position) VALUES (?, ?, ?, ?, ?)`,
				c.ID, c.CardSetID, c.Question, c.Answer, c.Position); err != nil {
				return fmt.Errorf("insert card: %w", err)
			}
			out[i] = c
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListCards(ctx context.Context, setID string) ([]Card, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, card_set_id, question, answer, position FROM cards
		 WHERE card_set_id = ? ORDER BY position`, setID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var cards []Card
	for rows.Next() {
		var c Card
		if err := rows.Scan(&c.ID, &c.CardSetID, &c.Question, &c.Answer, &c.Position); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func (s *Store) GetCard(ctx context.Context, id string) (Card, error) {
	var c Card
	err := s.db.QueryRowContext(ctx,
		`SELECT id, card_set_id, question, answer, position FROM cards WHERE id = ?`, id).
		Scan(&c.ID, &c.CardSetID, &c.Question, &c.Answer, &c.Position)
	if err != nil {
		return Card{}, notFound(err, "get card")
	}
	return c, nil
}

// UpdateCard sets one field of a card. Only "question" and "answer" can be
// changed.
func (s *Store) UpdateCard(ctx context.Context, id, field, value string) (Card, error) {
	var query string
	switch field {
	case "question":
		query = `UPDATE cards SET question = ? WHERE id = ?`
	case "answer":
		query = `UPDATE cards SET answer = ? WHERE id = ?`
	default:
		return Card{}, fmt.Errorf("update card field %q: %w", field, ErrInvalidField)
	}

	res, err := s.db.ExecContext(ctx, query, value, id)
	if err != nil {
		return Card{}, fmt.Errorf("update card: %w", err)
	}
	if err := checkAffected(res, "update card"); err != nil {
		return Card{}, err
	}
	return s.GetCard(ctx, id)
}

func (s *Store) DeleteCard(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	return checkAffected(res, "delete card")
}
