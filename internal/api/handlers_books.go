package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dgallion1/studydeck/internal/store"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
		Owner string `json:"owner"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		jsonError(w, "title is required", http.StatusBadRequest)
		return
	}

	book, err := s.store.CreateBook(r.Context(), title, strings.TrimSpace(req.Owner))
	if err != nil {
		s.storeError(w, err, "book")
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.store.ListBooks(r.Context())
	if err != nil {
		s.storeError(w, err, "books")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"books": nonNil(books)})
}

// handleGetBook returns a book with its documents and card sets.
func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	book, ok := s.book(w, r)
	if !ok {
		return
	}
	docs, err := s.store.ListDocuments(ctx, book.ID)
	if err != nil {
		s.storeError(w, err, "documents")
		return
	}
	sets, err := s.store.ListCardSets(ctx, book.ID)
	if err != nil {
		s.storeError(w, err, "card sets")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"book":      book,
		"documents": nonNil(docs),
		"card_sets": nonNil(sets),
	})
}

// book loads the book named by the bookID URL parameter, writing a 404
// when it does not exist.
func (s *Server) book(w http.ResponseWriter, r *http.Request) (store.Book, bool) {
	book, err := s.store.GetBook(r.Context(), chi.URLParam(r, "bookID"))
	if err != nil {
		s.storeError(w, err, "book")
		return store.Book{}, false
	}
	return book, true
}

// storeError maps a store error to a JSON error response.
func (s *Server) storeError(w http.ResponseWriter, err error, what string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, what+" not found", http.StatusNotFound)
	case errors.Is(err, store.ErrBusy):
		jsonError(w, what+" is still processing", http.StatusConflict)
	case errors.Is(err, store.ErrInvalidField):
		jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		s.log.Error("store error", "what", what, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
