package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dgallion1/studydeck/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

const defaultCardSetTitle = "Flashcards"

// handleGenerateCardSet creates an empty card set and queues generation.
func (s *Server) handleGenerateCardSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
		Count int    `json:"count"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	book, ok := s.book(w, r)
	if !ok {
		return
	}

	count := req.Count
	switch {
	case count == 0:
		count = s.cfg.DefaultCardCount
	case count < 0 || count > s.cfg.MaxCardCount:
		jsonError(w, fmt.Sprintf("count must be between 1 and %d", s.cfg.MaxCardCount), http.StatusBadRequest)
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultCardSetTitle
	}

	ctx := r.Context()
	set, err := s.store.CreateCardSet(ctx, book.ID, title)
	if err != nil {
		s.storeError(w, err, "card set")
		return
	}

	job := pipeline.NewJob(pipeline.KindGenerate, book.ID)
	job.CardSetID = set.ID
	job.Count = count
	if err := s.orchestrator.Submit(job); err != nil {
		if dErr := s.store.DeleteCardSet(ctx, set.ID); dErr != nil {
			s.log.Warn("delete rejected card set", "card_set_id", set.ID, "error", dErr)
		}
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":      job.ID,
		"card_set_id": set.ID,
		"status":      pipeline.StatusQueued,
		"poll_url":    fmt.Sprintf("/api/jobs/%s", job.ID),
	})
}

// handleEditCardSet queues a rewrite of a card set following the prompt.
func (s *Server) handleEditCardSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		jsonError(w, "prompt is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	set, err := s.store.GetCardSet(ctx, chi.URLParam(r, "setID"))
	if err != nil {
		s.storeError(w, err, "card set")
		return
	}
	if err := s.store.ClaimCardSet(ctx, set.ID); err != nil {
		s.storeError(w, err, "card set")
		return
	}

	job := pipeline.NewJob(pipeline.KindEdit, set.BookID)
	job.CardSetID = set.ID
	job.Instruction = prompt
	if err := s.orchestrator.Submit(job); err != nil {
		if pErr := s.store.SetCardSetProcessing(ctx, set.ID, false); pErr != nil {
			s.log.Warn("clear processing flag", "card_set_id", set.ID, "error", pErr)
		}
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":      job.ID,
		"card_set_id": set.ID,
		"status":      pipeline.StatusQueued,
		"poll_url":    fmt.Sprintf("/api/jobs/%s", job.ID),
	})
}

func (s *Server) handleListCardSets(w http.ResponseWriter, r *http.Request) {
	book, ok := s.book(w, r)
	if !ok {
		return
	}
	sets, err := s.store.ListCardSets(r.Context(), book.ID)
	if err != nil {
		s.storeError(w, err, "card sets")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"card_sets": nonNil(sets)})
}

func (s *Server) handleGetCardSet(w http.ResponseWriter, r *http.Request) {
	set, err := s.store.GetCardSet(r.Context(), chi.URLParam(r, "setID"))
	if err != nil {
		s.storeError(w, err, "card set")
		return
	}
	set.Cards = nonNil(set.Cards)
	writeJSON(w, http.StatusOK, set)
}

func (s *Server) handleDeleteCardSet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	set, err := s.store.GetCardSet(ctx, chi.URLParam(r, "setID"))
	if err != nil {
		s.storeError(w, err, "card set")
		return
	}
	if set.Processing {
		jsonError(w, "card set is still processing", http.StatusConflict)
		return
	}
	if err := s.store.DeleteCardSet(ctx, set.ID); err != nil {
		s.storeError(w, err, "card set")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"card_set_id": set.ID, "cards_deleted": len(set.Cards)})
}

// handleUpdateCard changes the question or the answer of one card.
func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	value := strings.TrimSpace(req.Value)
	if value == "" {
		jsonError(w, "value is required", http.StatusBadRequest)
		return
	}

	card, err := s.store.UpdateCard(r.Context(), chi.URLParam(r, "cardID"), req.Field, value)
	if err != nil {
		s.storeError(w, err, "card")
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "cardID")
	if err := s.store.DeleteCard(r.Context(), id); err != nil {
		s.storeError(w, err, "card")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"card_id": id})
}
