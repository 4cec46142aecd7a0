package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dgallion1/studydeck/internal/config"
	"github.com/dgallion1/studydeck/internal/generate"
	"github.com/dgallion1/studydeck/internal/pipeline"
	"github.com/dgallion1/studydeck/internal/store"
	"github.com/dgallion1/studydeck/internal/vectorstore"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// LLM answers chat questions and reports call latencies.
type LLM interface {
	Complete(ctx context.Context, op generate.Op, prompt string) (string, error)
	Stats() *generate.Stats
	Model() string
}

// AnswerCache stores chat answers per book.
type AnswerCache interface {
	GetAnswer(ctx context.Context, bookID, question string) (string, bool, error)
	SetAnswer(ctx context.Context, bookID, question, answer string, ttl time.Duration) error
	InvalidateBook(ctx context.Context, bookID string) error
}

// RateLimiter counts requests per client within a fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, client string, limit int, window time.Duration) (bool, error)
}

// Deps are the server's collaborators. Cache and Limiter may be nil.
type Deps struct {
	Orchestrator *pipeline.Orchestrator
	Store        *store.Store
	Vectors      *vectorstore.Store
	LLM          LLM
	Cache        AnswerCache
	Limiter      RateLimiter
}

// Server is the HTTP API server for studydeck.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	store        *store.Store
	vectors      *vectorstore.Store
	llm          LLM
	cache        AnswerCache
	limiter      RateLimiter
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(deps Deps, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: deps.Orchestrator,
		store:        deps.Store,
		vectors:      deps.Vectors,
		llm:          deps.LLM,
		cache:        deps.Cache,
		limiter:      deps.Limiter,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.StudydeckAPIKey, s.log))
		if s.limiter != nil {
			r.Use(RateLimit(s.limiter, s.cfg.RateLimit, s.cfg.RateLimitWindow, s.log))
		}

		r.Route("/api/books", func(r chi.Router) {
			r.Post("/", s.handleCreateBook)
			r.Get("/", s.handleListBooks)
			r.Route("/{bookID}", func(r chi.Router) {
				r.Get("/", s.handleGetBook)
				r.Post("/documents", s.handleUploadDocument)
				r.Get("/documents", s.handleListDocuments)
				r.Post("/cardsets", s.handleGenerateCardSet)
				r.Get("/cardsets", s.handleListCardSets)
				r.Post("/chat", s.handleChat)
				r.Get("/chats", s.handleListChats)
			})
		})

		r.Get("/api/jobs/{jobID}", s.handleJobStatus)

		r.Get("/api/documents/{docID}", s.handleGetDocument)
		r.Delete("/api/documents/{docID}", s.handleDeleteDocument)

		r.Get("/api/cardsets/{setID}", s.handleGetCardSet)
		r.Delete("/api/cardsets/{setID}", s.handleDeleteCardSet)
		r.Post("/api/cardsets/{setID}/edit", s.handleEditCardSet)

		r.Patch("/api/cards/{cardID}", s.handleUpdateCard)
		r.Delete("/api/cards/{cardID}", s.handleDeleteCard)

		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.Error("health check failed", "error", err)
		jsonError(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.orchestrator.QueueDepth(),
		"vectors":     s.vectors.Count(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// decodeJSON reads a small JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
