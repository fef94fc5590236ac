package vectorindex

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// fakeEmbedder maps known texts to fixed unit vectors so similarity ordering
// is predictable without a network provider.
type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func newTestIndex(t *testing.T) (*Index, *fakeEmbedder) {
	t.Helper()
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"about cats": {1, 0, 0},
		"about dogs": {0, 1, 0},
		"about fish": {0, 0, 1},
	}}
	return New(t.TempDir(), emb), emb
}

func TestBuildAndSearch(t *testing.T) {
	ix, emb := newTestIndex(t)
	ctx := context.Background()

	chunks := []string{"about cats", "about dogs", "about fish"}
	embeddings := make([][]float32, len(chunks))
	for i, c := range chunks {
		embeddings[i], _ = emb.Embed(ctx, c)
	}

	if err := ix.Build(ctx, "doc-1", chunks, embeddings); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !ix.Exists("doc-1") {
		t.Fatal("Exists = false after Build")
	}

	got, err := ix.Search(ctx, "doc-1", "about dogs", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0] != "about dogs" {
		t.Errorf("best match = %q, want %q", got[0], "about dogs")
	}
}

func TestSearchClampsTopK(t *testing.T) {
	ix, emb := newTestIndex(t)
	ctx := context.Background()

	chunks := []string{"about cats"}
	vec, _ := emb.Embed(ctx, chunks[0])
	if err := ix.Build(ctx, "doc-1", chunks, [][]float32{vec}); err != nil {
		t.Fatalf("Build: %v", err)
	}

	got, err := ix.Search(ctx, "doc-1", "about cats", 5)
	if err != nil {
		t.Fatalf("Search with topK beyond count: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 result, got %d", len(got))
	}
}

func TestBuildReplacesExistingIndex(t *testing.T) {
	ix, emb := newTestIndex(t)
	ctx := context.Background()

	v1, _ := emb.Embed(ctx, "about cats")
	if err := ix.Build(ctx, "doc-1", []string{"about cats"}, [][]float32{v1}); err != nil {
		t.Fatalf("first Build: %v", err)
	}
	// Drop a marker file to prove the directory is wiped, not merged.
	marker := filepath.Join(ix.Path("doc-1"), "stale-marker")
	if err := os.WriteFile(marker, []byte("old"), 0o644); err != nil {
		t.Fatalf("writing marker: %v", err)
	}

	v2, _ := emb.Embed(ctx, "about dogs")
	if err := ix.Build(ctx, "doc-1", []string{"about dogs"}, [][]float32{v2}); err != nil {
		t.Fatalf("second Build: %v", err)
	}

	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Error("rebuild did not replace the index directory")
	}

	got, err := ix.Search(ctx, "doc-1", "about dogs", 5)
	if err != nil {
		t.Fatalf("Search after rebuild: %v", err)
	}
	if len(got) != 1 || got[0] != "about dogs" {
		t.Errorf("results after rebuild = %v", got)
	}
}

func TestSearchMissingIndex(t *testing.T) {
	ix, _ := newTestIndex(t)

	_, err := ix.Search(context.Background(), "no-such-doc", "anything", 5)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestCreateEmpty(t *testing.T) {
	ix, _ := newTestIndex(t)

	if err := ix.CreateEmpty("doc-1"); err != nil {
		t.Fatalf("CreateEmpty: %v", err)
	}
	if !ix.Exists("doc-1") {
		t.Error("Exists = false after CreateEmpty")
	}

	// An empty directory is not a queryable index.
	_, err := ix.Search(context.Background(), "doc-1", "anything", 5)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for empty index, got %v", err)
	}
}

func TestBuildMismatchedInput(t *testing.T) {
	ix, _ := newTestIndex(t)

	err := ix.Build(context.Background(), "doc-1", []string{"a", "b"}, [][]float32{{1}})
	if err == nil {
		t.Fatal("expected error for mismatched chunk/embedding counts")
	}
}
