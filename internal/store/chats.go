package store

import (
	"context"
	"fmt"
)

func (s *Store) InsertChat(ctx context.Context, bookID, user, answer string) (Chat, error) {
	c := Chat{ID: newID(), BookID: bookID, User: user, AIResponse: answer, CreatedAt: s.now().UTC()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (id, book_id, user_message, ai_response, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.BookID, c.User, c.AIResponse, toUnix(c.CreatedAt))
	if err != nil {
		return Chat{}, fmt.Errorf("insert chat: %w", err)
	}
	return c, nil
}

// ListChats returns the chat history of a book, oldest first.
func (s *Store) ListChats(ctx context.Context, bookID string) ([]Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, book_id, user_message, ai_response, created_at FROM chats
		 WHERE book_id = ? ORDER BY created_at, rowid`, bookID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		var c Chat
		var created int64
		if err := rows.Scan(&c.ID, &c.BookID, &c.User, &c.AIResponse, &created); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		c.CreatedAt = fromUnix(created)
		chats = append(chats, c)
	}
	return chats, rows.Err()
}
