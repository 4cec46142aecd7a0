// Package embed owns the embedding model handle. A Service is built without
// I/O and initializes itself on first use.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/philippgille/chromem-go"
)

// ErrClosed is returned by Embed after Close.
var ErrClosed = errors.New("embedding service closed")

const (
	defaultInitTimeout = 10 * time.Minute
	defaultInitRetry   = 2 * time.Second
)

// Service embeds text through an Ollama model.
type Service struct {
	baseURL     string
	model       string
	log         *slog.Logger
	httpClient  *http.Client
	initTimeout time.Duration
	initRetry   time.Duration // Minimum gap between init attempts after a failure

	mu          sync.Mutex
	fn          chromem.EmbeddingFunc // Set once init succeeds
	initErr     error
	lastAttempt time.Time

	closed atomic.Bool
	dims   atomic.Int64
}

// New creates a Service for model served by the Ollama instance at baseURL,
// e.g. http://localhost:11434. No request is made until the first Embed.
func New(baseURL, model string, log *slog.Logger) *Service {
	return &Service{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		log:         log.With("component", "embed", "model", model),
		httpClient:  &http.Client{},
		initTimeout: defaultInitTimeout,
		initRetry:   defaultInitRetry,
	}
}

// Embed returns the embedding of text. Until init succeeds, each call checks
// that Ollama is reachable and pulls the model if it is missing. After a
// failed init the error is returned without I/O until initRetry has passed.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	fn, err := s.ready(ctx)
	if err != nil {
		return nil, fmt.Errorf("init embedding model: %w", err)
	}

	vec, err := fn(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	s.dims.Store(int64(len(vec)))
	return vec, nil
}

// ready returns the embedding func, running init when needed. Concurrent
// callers wait for a single attempt.
func (s *Service) ready(ctx context.Context) (chromem.EmbeddingFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fn != nil {
		return s.fn, nil
	}
	if s.initErr != nil && time.Since(s.lastAttempt) < s.initRetry {
		return nil, s.initErr
	}

	// Init outlives the request that triggered it.
	initCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.initTimeout)
	defer cancel()

	s.lastAttempt = time.Now()
	if err := s.init(initCtx); err != nil {
		s.initErr = err
		s.log.Warn("embedding init failed", "error", err, "retry_after", s.initRetry)
		return nil, err
	}
	s.initErr = nil
	s.fn = chromem.NewEmbeddingFuncOllama(s.model, s.baseURL+"/api")
	return s.fn, nil
}

// Func adapts the service to chromem's embedding function type.
func (s *Service) Func() chromem.EmbeddingFunc {
	return s.Embed
}

// Dimensions reports the vector size of the last embedding, or 0 before the
// first successful call.
func (s *Service) Dimensions() int {
	return int(s.dims.Load())
}

// Close releases the service. Later Embed calls return ErrClosed.
func (s *Service) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.httpClient.CloseIdleConnections()
		s.log.Info("embedding service closed")
	}
}

func (s *Service) init(ctx context.Context) error {
	base, err := url.Parse(s.baseURL)
	if err != nil {
		return fmt.Errorf("parse ollama url: %w", err)
	}
	client := api.NewClient(base, s.httpClient)

	has, err := s.hasModel(ctx, client)
	if err != nil {
		return err
	}
	if !has {
		s.log.Info("model not found, pulling")
		if err := s.pull(ctx, client); err != nil {
			return err
		}
		s.log.Info("model pulled")
	}
	return nil
}

func (s *Service) hasModel(ctx context.Context, client *api.Client) (bool, error) {
	list, err := client.List(ctx)
	if err != nil {
		return false, fmt.Errorf("ollama list models at %s: %w", s.baseURL, err)
	}
	for _, m := range list.Models {
		if matchesModel(m.Name, s.model) || matchesModel(m.Model, s.model) {
			return true, nil
		}
	}
	return false, nil
}

// matchesModel treats "name" and "name:latest" as the same model.
func matchesModel(have, want string) bool {
	if have == want {
		return true
	}
	if !strings.Contains(want, ":") {
		return have == want+":latest"
	}
	return false
}

// pull downloads the model. Pulls can run for minutes; the init context
// bounds them.
func (s *Service) pull(ctx context.Context, client *api.Client) error {
	last := ""
	err := client.Pull(ctx, &api.PullRequest{Model: s.model}, func(p api.ProgressResponse) error {
		if p.Status != last {
			s.log.Debug("pull progress", "status", p.Status)
			last = p.Status
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("pull model %s: %w", s.model, err)
	}
	return nil
}
