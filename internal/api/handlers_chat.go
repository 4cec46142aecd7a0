package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dgallion1/studydeck/internal/generate"
	"github.com/dgallion1/studydeck/internal/store"
)

type chatSource struct {
	BlockID    string  `json:"block_id"`
	DocumentID string  `json:"document_id"`
	Similarity float32 `json:"similarity"`
}

type chatResponse struct {
	Answer  string       `json:"answer"`
	Cached  bool         `json:"cached"`
	Chat    store.Chat   `json:"chat"`
	Sources []chatSource `json:"sources"`
}

// handleChat answers a question from the book's most similar blocks. Answers
// are cached per book and normalized question when a cache is configured.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	question := strings.TrimSpace(req.Message)
	if question == "" {
		jsonError(w, "message is required", http.StatusBadRequest)
		return
	}
	book, ok := s.book(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	log := s.log.With("book_id", book.ID)
	resp := chatResponse{Sources: []chatSource{}}

	if s.cache != nil {
		answer, hit, err := s.cache.GetAnswer(ctx, book.ID, question)
		if err != nil {
			log.Warn("answer cache lookup failed", "error", err)
		}
		if hit {
			resp.Answer = answer
			resp.Cached = true
		}
	}

	if !resp.Cached {
		hits, err := s.vectors.Query(ctx, book.ID, question, s.cfg.ChatTopK)
		if err != nil {
			log.Error("similarity search failed", "error", err)
			jsonError(w, "search failed", http.StatusInternalServerError)
			return
		}
		excerpts := make([]string, len(hits))
		for i, h := range hits {
			excerpts[i] = h.Content
			resp.Sources = append(resp.Sources, chatSource{BlockID: h.BlockID, DocumentID: h.DocumentID, Similarity: h.Similarity})
		}

		answer, err := s.llm.Complete(ctx, generate.OpChat, generate.BuildChatPrompt(question, excerpts))
		if err != nil {
			log.Error("chat completion failed", "error", err)
			var retryErr *generate.RetryableError
			if errors.As(err, &retryErr) {
				jsonError(w, "model is busy, try again later", http.StatusServiceUnavailable)
				return
			}
			jsonError(w, "model request failed", http.StatusBadGateway)
			return
		}
		resp.Answer = strings.TrimSpace(answer)

		if s.cache != nil {
			if err := s.cache.SetAnswer(ctx, book.ID, question, resp.Answer, s.cfg.ChatCacheTTL); err != nil {
				log.Warn("answer cache store failed", "error", err)
			}
		}
	}

	chat, err := s.store.InsertChat(ctx, book.ID, question, resp.Answer)
	if err != nil {
		s.storeError(w, err, "chat")
		return
	}
	resp.Chat = chat
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	book, ok := s.book(w, r)
	if !ok {
		return
	}
	chats, err := s.store.ListChats(r.Context(), book.ID)
	if err != nil {
		s.storeError(w, err, "chats")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chats": nonNil(chats)})
}
