package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/studydeck/internal/chunker"
	"github.com/dgallion1/studydeck/internal/fragment"
	"github.com/dgallion1/studydeck/internal/generate"
	"github.com/dgallion1/studydeck/internal/parser"
	"github.com/dgallion1/studydeck/internal/store"
	"github.com/dgallion1/studydeck/internal/vectorstore"
)

var (
	errNoContent = errors.New("no extractable content")
	errNoCards   = errors.New("model returned no usable flashcards")
	errEmptyBook = errors.New("book has no processed documents")
)

// Embedder turns block text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator runs one model completion.
type Generator interface {
	Complete(ctx context.Context, op generate.Op, prompt string) (string, error)
}

// TranscriptSource fetches the caption fragments of a video.
type TranscriptSource interface {
	Fetch(ctx context.Context, videoURL string) (*parser.Result, error)
}

// BookCache drops cached answers of a book whose content changed.
type BookCache interface {
	InvalidateBook(ctx context.Context, bookID string) error
}

// Deps are the collaborators shared by every worker. Cache may be nil.
type Deps struct {
	Store       *store.Store
	Vectors     *vectorstore.Store
	Embedder    Embedder
	Generator   Generator
	Transcripts TranscriptSource
	Cache       BookCache
}

// WorkerConfig holds the per-job tunables.
type WorkerConfig struct {
	Pack               chunker.Options
	Parse              parser.Options
	EmbedConcurrency   int
	ContextTokenBudget int
}

// Worker processes a single job.
type Worker struct {
	deps    Deps
	log     *slog.Logger
	cfg     WorkerConfig
	backoff func(attempt int) time.Duration
}

func NewWorker(deps Deps, log *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = 1
	}
	return &Worker{
		deps:    deps,
		log:     log,
		cfg:     cfg,
		backoff: Backoff,
	}
}

// Process runs the job to completion, recording the outcome on the job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	switch job.Kind {
	case KindIngest:
		w.ingest(ctx, job)
	case KindGenerate:
		w.generateCards(ctx, job)
	case KindEdit:
		w.editCards(ctx, job)
	default:
		job.AddError(fmt.Sprintf("unknown job kind %q", job.Kind))
		job.SetStatus(StatusFailed, "dispatch")
	}
}

func (w *Worker) ingest(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "document_id", job.DocumentID, "book_id", job.BookID)

	// Phase 1: Extract
	job.SetStatus(StatusExtracting, "extracting")
	res, err := w.extract(ctx, job)
	if err != nil {
		w.failIngest(ctx, log, job, "extracting", fmt.Errorf("extract: %w", err))
		return
	}

	// Phase 1.5: Dedup against the book's ready and in-flight documents.
	hash := ContentHashHex([]byte(flattenFragments(res.Fragments)))
	existing, claimed, err := w.deps.Store.ClaimDocumentHash(ctx, job.BookID, job.DocumentID, hash)
	if err != nil {
		w.failIngest(ctx, log, job, "dedup", fmt.Errorf("claim content hash: %w", err))
		return
	}
	if !claimed {
		log.Info("duplicate document, skipping", "existing_document_id", existing.ID)
		if err := w.deps.Store.DeleteDocument(ctx, job.DocumentID); err != nil {
			log.Warn("delete duplicate document", "error", err)
		}
		job.MarkDuplicate(hash, existing.ID)
		return
	}
	job.SetContentHash(hash)

	// Phase 2: Pack
	job.SetStatus(StatusPacking, "packing")
	blocks := chunker.PackBlocks(res.Fragments, w.cfg.Pack)
	job.SetPacked(len(res.Fragments), len(blocks))
	log.Info("packed document", "fragments", len(res.Fragments), "blocks", len(blocks))
	if len(blocks) == 0 {
		w.failIngest(ctx, log, job, "packing", errNoContent)
		return
	}

	// Phase 3: Embed
	job.SetStatus(StatusEmbedding, "embedding")
	vectors, err := w.embedBlocks(ctx, log, job, blocks)
	if err != nil {
		w.failIngest(ctx, log, job, "embedding", fmt.Errorf("embed: %w", err))
		return
	}

	// Phase 4: Store
	job.SetStatus(StatusStoring, "storing")
	rows := make([]store.Block, len(blocks))
	for i, b := range blocks {
		rows[i] = store.Block{Seq: i, Content: b.Text}
	}
	if err := w.deps.Store.InsertBlocks(ctx, job.DocumentID, rows); err != nil {
		w.failIngest(ctx, log, job, "storing", fmt.Errorf("store blocks: %w", err))
		return
	}
	entries := make([]vectorstore.Entry, len(rows))
	for i, r := range rows {
		entries[i] = vectorstore.Entry{
			BlockID:    r.ID,
			BookID:     job.BookID,
			DocumentID: job.DocumentID,
			Seq:        r.Seq,
			Content:    r.Content,
			Embedding:  vectors[i],
		}
	}
	if err := w.deps.Vectors.Add(ctx, entries); err != nil {
		w.failIngest(ctx, log, job, "storing", fmt.Errorf("store vectors: %w", err))
		return
	}
	if err := w.deps.Store.MarkDocumentReady(ctx, job.DocumentID, len(rows)); err != nil {
		w.failIngest(ctx, log, job, "storing", fmt.Errorf("mark ready: %w", err))
		return
	}
	w.invalidate(ctx, log, job.BookID)

	job.SetStatus(StatusCompleted, "done")
	log.Info("ingest completed", "blocks", len(rows))
}

func (w *Worker) extract(ctx context.Context, job *Job) (*parser.Result, error) {
	if job.SourceKind == store.KindYouTube {
		return w.deps.Transcripts.Fetch(ctx, job.Source)
	}
	p, err := parser.ForFile(job.Source, w.cfg.Parse)
	if err != nil {
		return nil, err
	}
	defer job.releaseFileData()
	return p.Parse(bytes.NewReader(job.FileData()), job.Source)
}

// embedBlocks embeds every block with bounded concurrency. The first
// block that still fails after retries cancels the rest.
func (w *Worker) embedBlocks(ctx context.Context, log *slog.Logger, job *Job, blocks []chunker.Block) ([][]float32, error) {
	vectors := make([][]float32, len(blocks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.EmbedConcurrency)
	for i, b := range blocks {
		g.Go(func() error {
			err := withRetry(gctx, log, "embed", isRetryableEmbed, w.backoff, func() error {
				v, err := w.deps.Embedder.Embed(gctx, b.Text)
				if err != nil {
					return err
				}
				vectors[i] = v
				return nil
			})
			if err != nil {
				return fmt.Errorf("block %d: %w", i, err)
			}
			job.IncrBlocksEmbedded()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (w *Worker) failIngest(ctx context.Context, log *slog.Logger, job *Job, phase string, err error) {
	log.Error("ingest failed", "phase", phase, "error", err)
	msg := err.Error()

	ctx = context.WithoutCancel(ctx)
	if err := w.deps.Vectors.DeleteDocument(ctx, job.DocumentID); err != nil {
		log.Warn("remove partial vectors", "error", err)
	}
	if err := w.deps.Store.MarkDocumentFailed(ctx, job.DocumentID, msg); err != nil {
		log.Warn("mark document failed", "error", err)
	}
	job.AddError(msg)
	job.SetStatus(StatusFailed, phase)
}

func (w *Worker) generateCards(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "card_set_id", job.CardSetID, "book_id", job.BookID)

	job.SetStatus(StatusGenerating, "loading context")
	title, excerpts, err := w.bookContext(ctx, job.BookID)
	if err == nil && len(excerpts) == 0 {
		err = errEmptyBook
	}
	if err != nil {
		w.failGenerate(ctx, log, job, err)
		return
	}

	job.SetStatus(StatusGenerating, "generating")
	prompt := generate.BuildFlashcardPrompt(title, excerpts, job.Count)
	cards, err := w.completeCards(ctx, log, generate.OpFlashcards, prompt, job.Count)
	if err != nil {
		w.failGenerate(ctx, log, job, err)
		return
	}

	stored, err := w.saveCards(ctx, job.CardSetID, cards)
	if err != nil {
		w.failGenerate(ctx, log, job, err)
		return
	}
	job.SetCards(len(stored))
	job.SetStatus(StatusCompleted, "done")
	log.Info("card set generated", "cards", len(stored))
}

// failGenerate removes the card set so no empty set is left behind.
func (w *Worker) failGenerate(ctx context.Context, log *slog.Logger, job *Job, err error) {
	log.Error("generate failed", "error", err)
	if err := w.deps.Store.DeleteCardSet(context.WithoutCancel(ctx), job.CardSetID); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Warn("delete failed card set", "error", err)
	}
	job.AddError(err.Error())
	job.SetStatus(StatusFailed, "generating")
}

func (w *Worker) editCards(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "card_set_id", job.CardSetID, "book_id", job.BookID)

	job.SetStatus(StatusGenerating, "loading context")
	existing, err := w.deps.Store.ListCards(ctx, job.CardSetID)
	if err != nil {
		w.failEdit(ctx, log, job, fmt.Errorf("load cards: %w", err))
		return
	}
	title, excerpts, err := w.bookContext(ctx, job.BookID)
	if err != nil {
		w.failEdit(ctx, log, job, err)
		return
	}
	log.Debug("editing card set", "book", title, "cards", len(existing))

	current := make([]generate.Card, len(existing))
	for i, c := range existing {
		current[i] = generate.Card{Question: c.Question, Answer: c.Answer}
	}

	job.SetStatus(StatusGenerating, "editing")
	prompt := generate.BuildEditPrompt(current, job.Instruction, excerpts)
	cards, err := w.completeCards(ctx, log, generate.OpEdit, prompt, 0)
	if err != nil {
		w.failEdit(ctx, log, job, err)
		return
	}

	stored, err := w.saveCards(ctx, job.CardSetID, cards)
	if err != nil {
		w.failEdit(ctx, log, job, err)
		return
	}
	job.SetCards(len(stored))
	job.SetStatus(StatusCompleted, "done")
	log.Info("card set edited", "cards", len(stored))
}

// failEdit keeps the existing cards and clears the processing flag.
func (w *Worker) failEdit(ctx context.Context, log *slog.Logger, job *Job, err error) {
	log.Error("edit failed", "error", err)
	if err := w.deps.Store.SetCardSetProcessing(context.WithoutCancel(ctx), job.CardSetID, false); err != nil {
		log.Warn("clear processing flag", "error", err)
	}
	job.AddError(err.Error())
	job.SetStatus(StatusFailed, "editing")
}

// bookContext returns the book title and the leading blocks that fit the
// context token budget.
func (w *Worker) bookContext(ctx context.Context, bookID string) (string, []string, error) {
	book, err := w.deps.Store.GetBook(ctx, bookID)
	if err != nil {
		return "", nil, fmt.Errorf("load book: %w", err)
	}
	blocks, err := w.deps.Store.ListBookBlocks(ctx, bookID)
	if err != nil {
		return "", nil, fmt.Errorf("load blocks: %w", err)
	}
	texts := make([]string, len(blocks))
	for i, b := range blocks {
		texts[i] = b.Content
	}
	return book.Title, chunker.SelectContext(texts, w.cfg.ContextTokenBudget), nil
}

// completeCards calls the model with retries and parses its reply. A
// positive limit truncates the result.
func (w *Worker) completeCards(ctx context.Context, log *slog.Logger, op generate.Op, prompt string, limit int) ([]generate.Card, error) {
	var text string
	err := withRetry(ctx, log, string(op), IsRetryable, w.backoff, func() error {
		var err error
		text, err = w.deps.Generator.Complete(ctx, op, prompt)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}

	cards := generate.ParseCards(text)
	if len(cards) == 0 {
		return nil, errNoCards
	}
	if limit > 0 && len(cards) > limit {
		cards = cards[:limit]
	}
	return cards, nil
}

func (w *Worker) saveCards(ctx context.Context, setID string, cards []generate.Card) ([]store.Card, error) {
	rows := make([]store.Card, len(cards))
	for i, c := range cards {
		rows[i] = store.Card{Question: c.Question, Answer: c.Answer}
	}
	stored, err := w.deps.Store.ReplaceCards(ctx, setID, rows)
	if err != nil {
		return nil, fmt.Errorf("store cards: %w", err)
	}
	if err := w.deps.Store.SetCardSetProcessing(ctx, setID, false); err != nil {
		return nil, fmt.Errorf("mark card set ready: %w", err)
	}
	return stored, nil
}

func (w *Worker) invalidate(ctx context.Context, log *slog.Logger, bookID string) {
	if w.deps.Cache == nil {
		return
	}
	if err := w.deps.Cache.InvalidateBook(ctx, bookID); err != nil {
		log.Warn("invalidate answer cache", "error", err)
	}
}

// flattenFragments joins fragment content for hashing.
func flattenFragments(frags []fragment.Fragment) string {
	var b strings.Builder
	for _, f := range frags {
		b.WriteString(f.Content)
		b.WriteString("\n")
	}
	return b.String()
}
