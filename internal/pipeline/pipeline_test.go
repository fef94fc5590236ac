package pipeline

import (
	"context"
	"testing"

	"github.com/paperchat/paperchat/internal/config"
	"github.com/paperchat/paperchat/internal/extract"
	"github.com/paperchat/paperchat/internal/storage"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestDocument(t *testing.T, s *storage.Store, id string) {
	t.Helper()
	doc := storage.Document{
		ID:       id,
		Filename: id + ".pdf",
		Path:     "/tmp/uploads/" + id + ".pdf",
	}
	if err := s.CreateDocument(doc); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
}

var validOpenAI = config.OpenAIConfig{APIKey: "sk-test"}

type fakeEmbedder struct {
	embedFn      func(ctx context.Context, text string) ([]float32, error)
	embedTextsFn func(ctx context.Context, texts []string) ([][]float32, error)
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.embedFn(ctx, text)
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return f.embedTextsFn(ctx, texts)
}

type fakeGenerator struct {
	generateFn func(ctx context.Context, prompt string, temperature float64) (string, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	return f.generateFn(ctx, prompt, temperature)
}

type fakeIndex struct {
	buildFn       func(ctx context.Context, documentID string, chunks []string, embeddings [][]float32) error
	createEmptyFn func(documentID string) error
	searchFn      func(ctx context.Context, documentID, query string, topK int) ([]string, error)
}

func (f *fakeIndex) Build(ctx context.Context, documentID string, chunks []string, embeddings [][]float32) error {
	return f.buildFn(ctx, documentID, chunks, embeddings)
}

func (f *fakeIndex) CreateEmpty(documentID string) error {
	return f.createEmptyFn(documentID)
}

func (f *fakeIndex) Search(ctx context.Context, documentID, query string, topK int) ([]string, error) {
	return f.searchFn(ctx, documentID, query, topK)
}

func unitEmbedder() *fakeEmbedder {
	return &fakeEmbedder{
		embedFn: func(context.Context, string) ([]float32, error) {
			return []float32{1, 0}, nil
		},
		embedTextsFn: func(_ context.Context, texts []string) ([][]float32, error) {
			vecs := make([][]float32, len(texts))
			for i := range vecs {
				vecs[i] = []float32{1, 0}
			}
			return vecs, nil
		},
	}
}

func staticExtract(segments ...extract.Segment) ExtractFunc {
	return func(string) ([]extract.Segment, error) {
		return segments, nil
	}
}
