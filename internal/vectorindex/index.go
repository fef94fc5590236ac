// Package vectorindex persists one nearest-neighbor index per document,
// backed by chromem-go collections stored under a per-document directory.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	chromem "github.com/philippgille/chromem-go"
)

// ErrUnavailable is returned when a document's index is missing or unreadable.
var ErrUnavailable = errors.New("vector index unavailable")

// collectionName is the single collection inside each per-document store.
const collectionName = "chunks"

// Embedder produces a query embedding in the same space the chunks were
// embedded in at ingestion time.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index manages per-document chromem stores under a shared root directory.
// The directory for a document is derived from its id and nothing else; the
// relational store holds no reference to it.
type Index struct {
	root     string
	embedder Embedder
}

// New creates an Index rooted at dir. The embedder is used only for queries;
// chunk vectors are supplied precomputed at build time.
func New(dir string, embedder Embedder) *Index {
	return &Index{root: dir, embedder: embedder}
}

// Path returns the storage directory for a document id.
func (ix *Index) Path(documentID string) string {
	return filepath.Join(ix.root, documentID)
}

// Exists reports whether an index directory exists for the document.
func (ix *Index) Exists(documentID string) bool {
	info, err := os.Stat(ix.Path(documentID))
	return err == nil && info.IsDir()
}

// Build replaces the document's index with one built from the given chunks
// and their embeddings. Any previous content at the path is removed first;
// there is no incremental update.
func (ix *Index) Build(ctx context.Context, documentID string, chunks []string, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunk/embedding count mismatch: %d vs %d", len(chunks), len(embeddings))
	}

	path := ix.Path(documentID)
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("removing stale index: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return fmt.Errorf("creating index store: %w", err)
	}
	collection, err := db.GetOrCreateCollection(collectionName, nil, ix.embeddingFunc())
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = chromem.Document{
			ID:        fmt.Sprintf("chunk-%05d", i),
			Content:   chunk,
			Embedding: embeddings[i],
			Metadata:  map[string]string{"ordinal": fmt.Sprintf("%d", i)},
		}
	}
	// Embeddings are precomputed, so no concurrency is needed here.
	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("adding chunks: %w", err)
	}
	return nil
}

// CreateEmpty provisions the index directory without any content. Used by the
// degraded mode, which never embeds anything.
func (ix *Index) CreateEmpty(documentID string) error {
	if err := os.MkdirAll(ix.Path(documentID), 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	return nil
}

// Search embeds the query and returns the text of the topK most similar
// chunks, best first. Returns ErrUnavailable when the document has no
// readable index.
func (ix *Index) Search(ctx context.Context, documentID, query string, topK int) ([]string, error) {
	path := ix.Path(documentID)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, path)
	}

	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("%w: opening store: %v", ErrUnavailable, err)
	}
	collection := db.GetCollection(collectionName, ix.embeddingFunc())
	if collection == nil {
		return nil, fmt.Errorf("%w: collection missing at %s", ErrUnavailable, path)
	}

	// chromem rejects nResults above the stored document count.
	count := collection.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	results, err := collection.Query(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	chunks := make([]string, len(results))
	for i, r := range results {
		chunks[i] = r.Content
	}
	return chunks, nil
}

func (ix *Index) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return ix.embedder.Embed(ctx, text)
	}
}
