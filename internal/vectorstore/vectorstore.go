// Package vectorstore keeps block embeddings in a chromem-go collection and
// answers similarity queries scoped to a book.
package vectorstore

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
)

const collectionName = "blocks"

// Entry is one embedded block to store.
type Entry struct {
	BlockID    string
	BookID     string
	DocumentID string
	Seq        int
	Content    string
	Embedding  []float32
}

// Hit is one query result.
type Hit struct {
	BlockID    string
	DocumentID string
	Seq        int
	Content    string
	Similarity float32
}

// Store wraps a chromem collection.
type Store struct {
	db   *chromem.DB
	coll *chromem.Collection
}

// Open opens a persistent store at path, or an in-memory one when path is
// empty. embed is used for query text and for entries without an embedding.
func Open(path string, embed chromem.EmbeddingFunc) (*Store, error) {
	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, true)
		if err != nil {
			return nil, fmt.Errorf("open vector db: %w", err)
		}
	}

	coll, err := db.GetOrCreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}
	return &Store{db: db, coll: coll}, nil
}

// Add stores entries. Entries sharing a BlockID replace earlier ones.
func (s *Store) Add(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		docs[i] = chromem.Document{
			ID: e.BlockID,
			Metadata: map[string]string{
				"book_id":     e.BookID,
				"document_id": e.DocumentID,
				"seq":         strconv.Itoa(e.Seq),
			},
			Embedding: e.Embedding,
			Content:   e.Content,
		}
	}
	if err := s.coll.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add vectors: %w", err)
	}
	return nil
}

// Query returns up to k blocks of bookID most similar to text, best first.
func (s *Store) Query(ctx context.Context, bookID, text string, k int) ([]Hit, error) {
	if k <= 0 || text == "" {
		return nil, nil
	}
	// chromem rejects k larger than the collection.
	k = min(k, s.coll.Count())
	if k == 0 {
		return nil, nil
	}

	results, err := s.coll.Query(ctx, text, k, map[string]string{"book_id": bookID}, nil)
	if err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}

	hits := make([]Hit, len(results))
	for i, r := range results {
		seq, _ := strconv.Atoi(r.Metadata["seq"])
		hits[i] = Hit{
			BlockID:    r.ID,
			DocumentID: r.Metadata["document_id"],
			Seq:        seq,
			Content:    r.Content,
			Similarity: r.Similarity,
		}
	}
	return hits, nil
}

// DeleteDocument removes every block of a document.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	if err := s.coll.Delete(ctx, map[string]string{"document_id": documentID}, nil); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	return nil
}

// Count returns the number of stored blocks across all books.
func (s *Store) Count() int {
	return s.coll.Count()
}
