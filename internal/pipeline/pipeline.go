// Package pipeline implements the two core flows: document ingestion
// (extract, chunk, embed, index, summarize, extract entities) and
// conversational querying (retrieve, compose, generate, record).
package pipeline

import (
	"context"
	"errors"

	"github.com/paperchat/paperchat/internal/extract"
	"github.com/paperchat/paperchat/internal/vectorindex"
)

// Pipeline error taxonomy. Callers classify failures with errors.Is; the
// wrapped message carries the underlying cause.
var (
	ErrExtraction = errors.New("text extraction failed")
	ErrEmbedding  = errors.New("embedding failed")
	ErrGeneration = errors.New("text generation failed")
	ErrNotReady   = errors.New("document not processed yet")
	ErrEmptyQuery = errors.New("no query provided")

	// ErrIndexUnavailable surfaces a missing or corrupt persisted index.
	ErrIndexUnavailable = vectorindex.ErrUnavailable
)

// ExtractFunc turns a stored file into ordered text segments.
type ExtractFunc func(path string) ([]extract.Segment, error)

// Embedder generates embedding vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces natural-language text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float64) (string, error)
}

// Index is the per-document vector index used for retrieval.
type Index interface {
	Build(ctx context.Context, documentID string, chunks []string, embeddings [][]float32) error
	CreateEmpty(documentID string) error
	Search(ctx context.Context, documentID, query string, topK int) ([]string, error)
}
