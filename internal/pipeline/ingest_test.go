package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paperchat/paperchat/internal/chunker"
	"github.com/paperchat/paperchat/internal/config"
	"github.com/paperchat/paperchat/internal/extract"
	"github.com/paperchat/paperchat/internal/storage"
)

func TestIngestDummyMode(t *testing.T) {
	store := openTestStore(t)
	createTestDocument(t, store, "doc-1")

	var created []string
	ing := NewIngestor(IngestorConfig{
		Store: store,
		Extract: func(string) ([]extract.Segment, error) {
			t.Fatal("extract should not run in dummy mode")
			return nil, nil
		},
		Splitter: chunker.New(0, 0),
		Index: &fakeIndex{
			createEmptyFn: func(id string) error {
				created = append(created, id)
				return nil
			},
		},
		OpenAI: config.OpenAIConfig{APIKey: "sk-your-key-here"},
	})

	if err := ing.Ingest(context.Background(), "doc-1"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	doc, err := store.GetDocument("doc-1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if !doc.Processed {
		t.Error("document should be marked processed")
	}
	if doc.Summary != DummySummary {
		t.Errorf("summary = %q, want %q", doc.Summary, DummySummary)
	}
	if len(created) != 1 || created[0] != "doc-1" {
		t.Errorf("CreateEmpty calls = %v, want [doc-1]", created)
	}

	entities, err := store.ListEntities("doc-1")
	if err != nil {
		t.Fatalf("ListEntities: %v", err)
	}
	if len(entities) != 1 {
		t.Fatalf("got %d entities, want 1", len(entities))
	}
	if entities[0].Type != DummyEntityType || entities[0].Text != DummyEntityText || entities[0].Count != 1 {
		t.Errorf("unexpected entity: %+v", entities[0])
	}
}

func TestIngestFullPipeline(t *testing.T) {
	store := openTestStore(t)
	createTestDocument(t, store, "doc-1")

	var builtChunks []string
	var prompts []string
	var temps []float64

	ing := NewIngestor(IngestorConfig{
		Store: store,
		Extract: staticExtract(
			extract.Segment{Page: 1, Text: "First page content."},
			extract.Segment{Page: 2, Text: "Second page content."},
		),
		Splitter: chunker.New(1000, 200),
		Embedder: unitEmbedder(),
		Generator: &fakeGenerator{
			generateFn: func(_ context.Context, prompt string, temperature float64) (string, error) {
				prompts = append(prompts, prompt)
				temps = append(temps, temperature)
				if len(prompts) == 1 {
					return "A concise summary.", nil
				}
				return `[{"type": "person", "text": "Ada Lovelace", "count": 2}]`, nil
			},
		},
		Index: &fakeIndex{
			buildFn: func(_ context.Context, id string, chunks []string, embeddings [][]float32) error {
				builtChunks = chunks
				if len(embeddings) != len(chunks) {
					t.Errorf("got %d embeddings for %d chunks", len(embeddings), len(chunks))
				}
				return nil
			},
		},
		OpenAI: validOpenAI,
	})

	if err := ing.Ingest(context.Background(), "doc-1"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if len(builtChunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(builtChunks))
	}
	if len(prompts) != 2 {
		t.Fatalf("got %d generation calls, want 2", len(prompts))
	}
	if !strings.Contains(prompts[0], "Summarize the following document") {
		t.Errorf("first prompt is not the summary prompt: %q", prompts[0])
	}
	if !strings.Contains(prompts[0], "First page content. Second page content.") {
		t.Errorf("summary prompt missing joined chunks: %q", prompts[0])
	}
	if !strings.Contains(prompts[1], "Extract key entities") {
		t.Errorf("second prompt is not the entity prompt: %q", prompts[1])
	}
	if temps[0] != 0.2 || temps[1] != 0.2 {
		t.Errorf("temperatures = %v, want [0.2 0.2]", temps)
	}

	doc, err := store.GetDocument("doc-1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if !doc.Processed {
		t.Error("document should be marked processed")
	}
	if doc.Summary != "A concise summary." {
		t.Errorf("summary = %q", doc.Summary)
	}

	entities, err := store.ListEntities("doc-1")
	if err != nil {
		t.Fatalf("ListEntities: %v", err)
	}
	if len(entities) != 1 || entities[0].Text != "Ada Lovelace" || entities[0].Count != 2 {
		t.Errorf("unexpected entities: %+v", entities)
	}
}

func TestIngestUnknownDocument(t *testing.T) {
	store := openTestStore(t)
	ing := NewIngestor(IngestorConfig{Store: store, OpenAI: validOpenAI})

	err := ing.Ingest(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want storage.ErrNotFound", err)
	}
}

func TestIngestExtractionFailure(t *testing.T) {
	store := openTestStore(t)
	createTestDocument(t, store, "doc-1")

	ing := NewIngestor(IngestorConfig{
		Store: store,
		Extract: func(string) ([]extract.Segment, error) {
			return nil, errors.New("broken xref table")
		},
		Splitter: chunker.New(0, 0),
		OpenAI:   validOpenAI,
	})

	err := ing.Ingest(context.Background(), "doc-1")
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("err = %v, want ErrExtraction", err)
	}

	doc, _ := store.GetDocument("doc-1")
	if doc.Processed {
		t.Error("failed ingestion must not mark the document processed")
	}
}

func TestIngestEmbeddingFailure(t *testing.T) {
	store := openTestStore(t)
	createTestDocument(t, store, "doc-1")

	ing := NewIngestor(IngestorConfig{
		Store:    store,
		Extract:  staticExtract(extract.Segment{Page: 1, Text: "content"}),
		Splitter: chunker.New(0, 0),
		Embedder: &fakeEmbedder{
			embedTextsFn: func(context.Context, []string) ([][]float32, error) {
				return nil, errors.New("429 rate limited")
			},
		},
		OpenAI: validOpenAI,
	})

	err := ing.Ingest(context.Background(), "doc-1")
	if !errors.Is(err, ErrEmbedding) {
		t.Fatalf("err = %v, want ErrEmbedding", err)
	}

	doc, _ := store.GetDocument("doc-1")
	if doc.Processed {
		t.Error("failed ingestion must not mark the document processed")
	}
}

func TestIngestSummaryGenerationFailure(t *testing.T) {
	store := openTestStore(t)
	createTestDocument(t, store, "doc-1")

	ing := NewIngestor(IngestorConfig{
		Store:    store,
		Extract:  staticExtract(extract.Segment{Page: 1, Text: "content"}),
		Splitter: chunker.New(0, 0),
		Embedder: unitEmbedder(),
		Generator: &fakeGenerator{
			generateFn: func(context.Context, string, float64) (string, error) {
				return "", errors.New("model overloaded")
			},
		},
		Index: &fakeIndex{
			buildFn: func(context.Context, string, []string, [][]float32) error { return nil },
		},
		OpenAI: validOpenAI,
	})

	err := ing.Ingest(context.Background(), "doc-1")
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("err = %v, want ErrGeneration", err)
	}
}

func TestIngestUnparseableEntitiesAreSkipped(t *testing.T) {
	store := openTestStore(t)
	createTestDocument(t, store, "doc-1")

	calls := 0
	ing := NewIngestor(IngestorConfig{
		Store:    store,
		Extract:  staticExtract(extract.Segment{Page: 1, Text: "content"}),
		Splitter: chunker.New(0, 0),
		Embedder: unitEmbedder(),
		Generator: &fakeGenerator{
			generateFn: func(context.Context, string, float64) (string, error) {
				calls++
				if calls == 1 {
					return "A summary.", nil
				}
				return "I could not find any entities in this text.", nil
			},
		},
		Index: &fakeIndex{
			buildFn: func(context.Context, string, []string, [][]float32) error { return nil },
		},
		OpenAI: validOpenAI,
	})

	if err := ing.Ingest(context.Background(), "doc-1"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	doc, _ := store.GetDocument("doc-1")
	if !doc.Processed {
		t.Error("document should still be marked processed")
	}
	entities, err := store.ListEntities("doc-1")
	if err != nil {
		t.Fatalf("ListEntities: %v", err)
	}
	if len(entities) != 0 {
		t.Errorf("got %d entities, want 0", len(entities))
	}
}

func TestIngestCoalescesConcurrentRuns(t *testing.T) {
	store := openTestStore(t)
	createTestDocument(t, store, "doc-1")

	var extractCalls atomic.Int32
	ing := NewIngestor(IngestorConfig{
		Store: store,
		Extract: func(string) ([]extract.Segment, error) {
			extractCalls.Add(1)
			time.Sleep(50 * time.Millisecond)
			return []extract.Segment{{Page: 1, Text: "content"}}, nil
		},
		Splitter: chunker.New(0, 0),
		Embedder: unitEmbedder(),
		Generator: &fakeGenerator{
			generateFn: func(context.Context, string, float64) (string, error) {
				return `[{"type": "person", "text": "X", "count": 1}]`, nil
			},
		},
		Index: &fakeIndex{
			buildFn: func(context.Context, string, []string, [][]float32) error { return nil },
		},
		OpenAI: validOpenAI,
	})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ing.Ingest(context.Background(), "doc-1"); err != nil {
				t.Errorf("Ingest: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := extractCalls.Load(); got != 1 {
		t.Errorf("extract ran %d times, want 1", got)
	}
}
